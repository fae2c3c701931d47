package storage

import (
	"context"
	"io"
	"time"
)

// Service stores uploaded images in remote object storage.
type Service interface {
	// UploadObject stores body under key and returns a publicly reachable URL.
	UploadObject(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	DeleteObject(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL for a private object.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}
