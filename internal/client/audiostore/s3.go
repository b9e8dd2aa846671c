package audiostore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/fieldrec/internal/filex"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) putObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Region    string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicURL prefixes returned object URLs; defaults to Endpoint/Bucket.
	PublicURL string
}

// S3Uploader puts audio straight into an S3-compatible bucket.
type S3Uploader struct {
	client putObjectAPI
	cfg    S3Config
	folder string
	pais   string
	now    func() time.Time
}

func NewS3Uploader(ctx context.Context, cfg S3Config, folder, pais string) (*S3Uploader, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{client: client, cfg: cfg, folder: folder, pais: pais, now: time.Now}, nil
}

// Key builds <folder>/<pais>/yyyy/mm/dd/<name>.
func (u *S3Uploader) Key(name string) string {
	return path.Join(u.folder, u.pais, u.now().Format("2006/01/02"), name)
}

func (u *S3Uploader) Upload(ctx context.Context, audioPath string) (string, error) {
	data, err := os.ReadFile(filex.LocalPath(audioPath))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}

	key := u.Key(ObjectName(audioPath))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType(filex.Ext(audioPath))),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %w", ErrUpload, key, err)
	}

	return u.objectURL(key), nil
}

func (u *S3Uploader) objectURL(key string) string {
	base := u.cfg.PublicURL
	if base == "" {
		endpoint := u.cfg.Endpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", u.cfg.Region)
		}
		base = strings.TrimRight(endpoint, "/") + "/" + u.cfg.Bucket
	}
	return strings.TrimRight(base, "/") + "/" + key
}
