// Package object uploads generated artifacts to S3-compatible storage.
package object

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/easymatter-bot/config"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultRegion  = "us-east-1"
	presignExpiry  = 24 * time.Hour
	pythonMIMEType = "text/x-python"
)

type ArtifactStorage struct {
	client *minio.Client
	bucket string

	// mu guards ready. A failed bucket check is retried on the next upload.
	mu    sync.Mutex
	ready bool
}

func NewArtifactStorage(cfg config.Artifacts) (*ArtifactStorage, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("artifacts endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("artifacts bucket is required")
	}
	client, err := minio.New(
		endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: defaultRegion,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &ArtifactStorage{
		client: client,
		bucket: bucket,
	}, nil
}

func (a *ArtifactStorage) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: defaultRegion}); err != nil {
			return err
		}
	}
	a.ready = true
	return nil
}

// PutArtifact uploads the artifact under its session and returns a presigned download URL.
func (a *ArtifactStorage) PutArtifact(ctx context.Context, sessionID uuid.UUID, artifact model.Artifact) (
	string,
	error,
) {
	if err := a.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("failed to ensure bucket %s: %w", a.bucket, err)
	}
	key := objectKey(sessionID, artifact.Filename)
	content := []byte(artifact.Code)
	_, err := a.client.PutObject(
		ctx, a.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
			ContentType: pythonMIMEType,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to put artifact %s: %w", key, err)
	}
	url, err := a.client.PresignedGetObject(ctx, a.bucket, key, presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign artifact %s: %w", key, err)
	}
	return url.String(), nil
}

func objectKey(sessionID uuid.UUID, filename string) string {
	return sessionID.String() + "/" + strings.TrimLeft(strings.TrimSpace(filename), "/")
}
