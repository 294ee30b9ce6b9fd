// Package object wraps the S3-compatible bucket holding uploaded files.
// Presigned upload URLs are issued elsewhere; ingestion only reads.
package object

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/mindvault/backend/pkg/logger"
)

type Store struct {
	client *minio.Client
	bucket string
}

func NewStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	logger.Info("Object storage client initialized",
		zap.String("endpoint", endpoint),
		zap.String("bucket", bucket),
	)

	return &Store{client: client, bucket: bucket}, nil
}

// Fetch downloads the raw bytes stored under key. Each ingestion run
// calls this exactly once.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", key, err)
	}

	logger.Debug("Object fetched", zap.String("key", key), zap.Int("bytes", len(data)))
	return data, nil
}
