package audiostore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedID(t *testing.T, id string) {
	t.Helper()
	orig := newID
	newID = func() string { return id }
	t.Cleanup(func() { newID = orig })
}

func writeAudio(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"m4a": "audio/mp4",
		"mp3": "audio/mpeg",
		"wav": "audio/wav",
		"aac": "audio/aac",
		"ogg": "audio/ogg",
		"3gp": "application/octet-stream",
		"":    "application/octet-stream",
	}
	for ext, want := range cases {
		assert.Equal(t, want, ContentType(ext), ext)
	}
}

func TestObjectName_KeepsExtension(t *testing.T) {
	fixedID(t, "abc")
	assert.Equal(t, "abc.m4a", ObjectName("file:///data/rec.M4A"))
	assert.Equal(t, "abc", ObjectName("/data/rec"))
}

func TestHTTPUploader_SendsMultipart(t *testing.T) {
	fixedID(t, "1111")
	audio := writeAudio(t, "rec.mp3", []byte("ID3-audio"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "grabaciones", r.FormValue("folder"))
		assert.Equal(t, "PE", r.FormValue("pais"))

		f, hdr, err := r.FormFile("archivo")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "1111.mp3", hdr.Filename)
		assert.Equal(t, "audio/mpeg", hdr.Header.Get("Content-Type"))
		b, _ := io.ReadAll(f)
		assert.Equal(t, "ID3-audio", string(b))

		_, _ = io.WriteString(w, `{"url":"https://cdn.example/1111.mp3"}`)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.Client(), srv.URL+"/upload", "grabaciones", "PE")
	url, err := u.Upload(context.Background(), "file://"+audio)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/1111.mp3", url)
}

func TestHTTPUploader_CapitalizedURL(t *testing.T) {
	audio := writeAudio(t, "rec.wav", []byte("RIFF"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Url":"https://cdn.example/x.wav"}`)
	}))
	defer srv.Close()

	url, err := NewHTTPUploader(srv.Client(), srv.URL, "f", "EC").Upload(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/x.wav", url)
}

func TestHTTPUploader_Non2xxFails(t *testing.T) {
	audio := writeAudio(t, "rec.ogg", []byte("OggS"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	_, err := NewHTTPUploader(srv.Client(), srv.URL, "f", "EC").Upload(context.Background(), audio)
	require.ErrorIs(t, err, ErrUpload)
}

func TestHTTPUploader_NoURLFails(t *testing.T) {
	audio := writeAudio(t, "rec.aac", []byte("x"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := NewHTTPUploader(srv.Client(), srv.URL, "f", "EC").Upload(context.Background(), audio)
	require.ErrorIs(t, err, ErrUpload)
}

func TestHTTPUploader_MissingFile(t *testing.T) {
	u := NewHTTPUploader(http.DefaultClient, "http://127.0.0.1:1", "f", "EC")
	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.m4a"))
	require.ErrorIs(t, err, ErrUpload)
}

type fakePutter struct {
	in  *s3.PutObjectInput
	err error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	return &s3.PutObjectOutput{}, f.err
}

func stubAWS(t *testing.T, putter *fakePutter) *s3.Options {
	t.Helper()
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		return aws.Config{Region: lo.Region}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) putObjectAPI {
		for _, fn := range optFns {
			fn(&opts)
		}
		return putter
	}
	return &opts
}

func TestS3Uploader_PutsUnderDatedKey(t *testing.T) {
	fixedID(t, "2222")
	putter := &fakePutter{}
	opts := stubAWS(t, putter)

	u, err := NewS3Uploader(context.Background(), S3Config{
		Region:    "us-east-1",
		Endpoint:  "http://127.0.0.1:9000",
		Bucket:    "audios",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}, "grabaciones", "PE")
	require.NoError(t, err)
	u.now = func() time.Time { return time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC) }

	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	audio := writeAudio(t, "rec.m4a", []byte("ftyp"))
	url, err := u.Upload(context.Background(), audio)
	require.NoError(t, err)

	assert.Equal(t, "grabaciones/PE/2025/03/07/2222.m4a", aws.ToString(putter.in.Key))
	assert.Equal(t, "audios", aws.ToString(putter.in.Bucket))
	assert.Equal(t, "audio/mp4", aws.ToString(putter.in.ContentType))
	assert.Equal(t, "http://127.0.0.1:9000/audios/grabaciones/PE/2025/03/07/2222.m4a", url)
}

func TestS3Uploader_PutError(t *testing.T) {
	putter := &fakePutter{err: errors.New("AccessDenied")}
	stubAWS(t, putter)

	u, err := NewS3Uploader(context.Background(), S3Config{Region: "us-east-1", Bucket: "b", PublicURL: "https://cdn/"}, "f", "EC")
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), writeAudio(t, "a.mp3", []byte("x")))
	require.ErrorIs(t, err, ErrUpload)
}

func TestS3Uploader_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3Uploader(context.Background(), S3Config{}, "f", "EC")
	require.Error(t, err)
}

func TestS3Uploader_PublicURL(t *testing.T) {
	u := &S3Uploader{cfg: S3Config{PublicURL: "https://cdn.example/"}}
	assert.Equal(t, "https://cdn.example/a/b.mp3", u.objectURL("a/b.mp3"))

	u = &S3Uploader{cfg: S3Config{Region: "sa-east-1", Bucket: "bk"}}
	assert.Equal(t, "https://s3.sa-east-1.amazonaws.com/bk/k", u.objectURL("k"))
}
