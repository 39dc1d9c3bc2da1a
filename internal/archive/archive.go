// Package archive stores copies of scanned receipt files in a cloud bucket
// so originals can be re-examined after the extracted draft is edited.
package archive

import (
	"context"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Store saves an uploaded receipt and returns the object name it was
// stored under.
type Store interface {
	Save(ctx context.Context, userID, mimeType string, data []byte) (string, error)
}

// GCSStore writes receipts to a Google Cloud Storage bucket, one prefix
// per user.
type GCSStore struct {
	bucket string
}

func NewGCSStore(bucket string) *GCSStore {
	return &GCSStore{bucket: bucket}
}

func (s *GCSStore) Save(ctx context.Context, userID, mimeType string, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("Save: create storage client: %w", err)
	}
	defer client.Close()

	objectName := path.Join("receipts", userID,
		time.Now().UTC().Format("2006/01/02"), uuid.NewString()+extensionFor(mimeType))

	w := client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("Save: write object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Save: close object %s: %w", objectName, err)
	}

	return objectName, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

// Disabled is used when no bucket is configured. Save succeeds without
// storing anything so scanning keeps working in local setups.
type Disabled struct{}

func (Disabled) Save(context.Context, string, string, []byte) (string, error) {
	return "", nil
}
