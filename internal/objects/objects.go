package objects

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pulsewatch/pulsewatch/internal/config"
)

// Store holds oversized ping bodies in an S3-compatible bucket, keyed by
// check code and ping sequence number. The ingest writer fills it and the
// email transport reads it back when quoting ping bodies in alerts.
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore connects to the configured S3 endpoint. Returns nil when body
// offloading is not configured; callers treat a nil store as inline-only.
func NewStore(cfg config.S3Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

func objectKey(checkCode string, n int) string {
	return fmt.Sprintf("%s/%d", checkCode, n)
}

// PutPingBody stores one ping body.
func (s *Store) PutPingBody(ctx context.Context, checkCode string, n int, body []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(checkCode, n),
		bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType: "text/plain",
		})
	if err != nil {
		return fmt.Errorf("failed to store ping body: %w", err)
	}
	return nil
}

// GetPingBody retrieves one ping body.
func (s *Store) GetPingBody(ctx context.Context, checkCode string, n int) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(checkCode, n), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ping body: %w", err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read ping body: %w", err)
	}
	return body, nil
}

// DeletePingBody removes one stored body, for retention sweeps.
func (s *Store) DeletePingBody(ctx context.Context, checkCode string, n int) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectKey(checkCode, n), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete ping body: %w", err)
	}
	return nil
}

// DeletePingBodies removes all stored bodies of a check, for cascade
// deletion.
func (s *Store) DeletePingBodies(ctx context.Context, checkCode string) error {
	list := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    checkCode + "/",
		Recursive: true,
	})
	for obj := range list {
		if obj.Err != nil {
			return obj.Err
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}
