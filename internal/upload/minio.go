package upload

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL is where the bucket is reachable by clients, e.g.
	// "https://cdn.example.com/profile-images".
	PublicURL string
}

func NewMinioClient(cfg MinioConfig) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
}

// MinioStorage keeps profile images in an S3 compatible bucket.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioStorage(client *minio.Client, cfg MinioConfig) *MinioStorage {
	return &MinioStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)

	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}

	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})

	if err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}

	return nil
}

func (s *MinioStorage) Store(ctx context.Context, f File) (string, error) {
	name := objectName(f)

	_, err := s.client.PutObject(ctx, s.bucket, name, f.Reader, f.Size, minio.PutObjectOptions{
		ContentType: f.ContentType,
	})

	if err != nil {
		return "", fmt.Errorf("put object %s: %w", name, err)
	}

	return name, nil
}

func (s *MinioStorage) Remove(ctx context.Context, name string) error {
	if !safeName(name) {
		return fmt.Errorf("refusing to remove %q", name)
	}

	err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})

	if err != nil {
		return fmt.Errorf("remove object %s: %w", name, err)
	}

	return nil
}

func (s *MinioStorage) URL(name string) string {
	if s.publicURL != "" {
		return joinURL(s.publicURL, "", name)
	}

	return joinURL(s.client.EndpointURL().String(), s.bucket, name)
}
