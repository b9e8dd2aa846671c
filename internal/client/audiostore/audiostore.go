// Package audiostore uploads recorded audio to cloud storage before the
// recording is registered with the server.
package audiostore

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/fieldrec/internal/filex"
	"github.com/google/uuid"
)

// ErrUpload is wrapped by every storage-side failure.
var ErrUpload = errors.New("audio upload failed")

// Uploader stores the file at audioPath and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, audioPath string) (string, error)
}

var newID = uuid.NewString

var contentTypes = map[string]string{
	"m4a": "audio/mp4",
	"mp3": "audio/mpeg",
	"wav": "audio/wav",
	"aac": "audio/aac",
	"ogg": "audio/ogg",
}

// ContentType maps a file extension (without dot) to its MIME type.
func ContentType(ext string) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ObjectName returns a fresh file name that keeps the extension of audioPath.
func ObjectName(audioPath string) string {
	ext := filex.Ext(audioPath)
	if ext == "" {
		return newID()
	}
	return newID() + "." + ext
}
