package audiostore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"

	"github.com/dmitrijs2005/fieldrec/internal/filex"
)

// Doer sends a request; api.Client adds the session headers on the way.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPUploader posts the file as multipart/form-data to a storage endpoint.
type HTTPUploader struct {
	client   Doer
	endpoint string
	folder   string
	pais     string
}

func NewHTTPUploader(client Doer, endpoint, folder, pais string) *HTTPUploader {
	return &HTTPUploader{client: client, endpoint: endpoint, folder: folder, pais: pais}
}

func (u *HTTPUploader) Upload(ctx context.Context, audioPath string) (string, error) {
	data, err := os.ReadFile(filex.LocalPath(audioPath))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	name := ObjectName(audioPath)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="archivo"; filename="%s"`, name))
	h.Set("Content-Type", ContentType(filex.Ext(audioPath)))
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.WriteField("folder", u.folder); err != nil {
		return "", err
	}
	if err := mw.WriteField("pais", u.pais); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s; body: %s", ErrUpload, resp.Status, string(body))
	}

	var out struct {
		Url      string `json:"Url"`
		LowerURL string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrUpload, err)
	}
	if out.Url != "" {
		return out.Url, nil
	}
	if out.LowerURL != "" {
		return out.LowerURL, nil
	}
	return "", fmt.Errorf("%w: response has no url", ErrUpload)
}
