package blob

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Local directory used to stage uploads before they are sent.
	SpoolDir string
}

type S3 struct {
	client         *minio.Client
	bucket         string
	spoolDir       string
	maxUploadBytes int64
}

var _ Store = (*S3)(nil)

func NewS3(cfg S3Config, maxUploadBytes int64) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}

	spoolDir := cfg.SpoolDir
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}

	return &S3{
		client:         client,
		bucket:         cfg.Bucket,
		spoolDir:       spoolDir,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

func (s *S3) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Put stages the payload on disk first so the size limit and signature
// screening run before anything reaches the bucket.
func (s *S3) Put(ctx context.Context, key string, src io.Reader) (int64, error) {
	clean, err := validateKey(key)
	if err != nil {
		return 0, err
	}

	return spool(s.spoolDir, src, s.maxUploadBytes, func(tmpPath string) error {
		_, err := s.client.FPutObject(ctx, s.bucket, clean, tmpPath, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		return err
	})
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	clean, err := validateKey(key)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, clean, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before any bytes are streamed.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return obj, nil
}

func (s *S3) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	clean, err := validateKey(key)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, clean, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing object: %w", err)
	}
	return nil
}
