package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio stores snapshots as objects named <draftId>/<versionId>.snapshot
// with the content checksum kept in object metadata.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio creates an object-storage snapshot store and ensures the
// bucket exists.
func NewMinio(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Minio, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &Minio{client: client, bucket: bucket}, nil
}

func objectName(draftID, versionID string) string {
	return draftID + "/" + versionID + ".snapshot"
}

// LoadInitialState fetches the snapshot object, or ErrNotFound if the
// room has never been persisted.
func (s *Minio) LoadInitialState(ctx context.Context, draftID, versionID string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(draftID, versionID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get snapshot object: %w", err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot object: %w", err)
	}
	return content, nil
}

// SaveSnapshot writes the decoded snapshot bytes as one object.
func (s *Minio) SaveSnapshot(ctx context.Context, draftID, versionID, base64Content, checksum string) error {
	if base64Content == "" || checksum == "" {
		return fmt.Errorf("save snapshot: %w: content and checksum are required", ErrValidation)
	}
	content, err := base64.StdEncoding.DecodeString(base64Content)
	if err != nil {
		return fmt.Errorf("save snapshot: %w: bad base64 content", ErrValidation)
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectName(draftID, versionID),
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{
			ContentType:  "application/octet-stream",
			UserMetadata: map[string]string{"checksum": checksum},
		})
	if err != nil {
		return fmt.Errorf("put snapshot object: %w", err)
	}
	return nil
}
