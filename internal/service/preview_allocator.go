package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/duetly/api/internal/client"
	"github.com/google/uuid"
)

// previewExpiry bounds how long a presigned preview handle stays playable.
const previewExpiry = 24 * time.Hour

// storageAllocator backs preview handles with object storage: the assembled
// artifact is uploaded under a preview key and served through a presigned
// URL. Release deletes the object so the handle stops resolving.
type storageAllocator struct {
	storage client.StorageClient

	mu   sync.Mutex
	keys map[string]string // presigned URL -> object key
}

func (a *storageAllocator) Allocate(ctx context.Context, sessionID string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("previews/%s/%s.webm", sessionID, uuid.New().String())

	if _, err := a.storage.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("failed to upload preview: %w", err)
	}

	url, err := a.storage.GetSignedURL(ctx, key, previewExpiry)
	if err != nil {
		// Keep the pair releasable even when presigning fails.
		_ = a.storage.Delete(ctx, key)
		return "", fmt.Errorf("failed to presign preview: %w", err)
	}

	a.mu.Lock()
	if a.keys == nil {
		a.keys = make(map[string]string)
	}
	a.keys[url] = key
	a.mu.Unlock()
	return url, nil
}

func (a *storageAllocator) Release(ctx context.Context, url string) error {
	a.mu.Lock()
	key, ok := a.keys[url]
	delete(a.keys, url)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return a.storage.Delete(ctx, key)
}
