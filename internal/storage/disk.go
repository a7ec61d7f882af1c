package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

// DiskStore keeps blobs on the local filesystem. URLs point at the /files route.
type DiskStore struct {
	d       *diskv.Diskv
	baseURL string
}

// NewDiskStore stores blobs under dir; baseURL is the public address of this service.
func NewDiskStore(dir, baseURL string) *DiskStore {
	return &DiskStore{
		d: diskv.New(diskv.Options{
			BasePath:          dir,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			CacheSizeMax:      1024 * 1024,
		}),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *DiskStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.d.WriteStream(key, r, true); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

func (s *DiskStore) URL(_ context.Context, key string) (string, error) {
	if !s.d.Has(key) {
		return "", fmt.Errorf("url for %s: %w", key, ErrNotFound)
	}
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/files/" + strings.Join(parts, "/"), nil
}

func (s *DiskStore) Remove(_ context.Context, key string) error {
	if !s.d.Has(key) {
		return nil
	}
	if err := s.d.Erase(key); err != nil {
		return fmt.Errorf("erase blob %s: %w", key, err)
	}
	return nil
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !s.d.Has(key) {
		return nil, ErrNotFound
	}
	rc, err := s.d.ReadStream(key, true)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return rc, nil
}

func keyToPathTransform(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	if len(pathKey.Path) == 0 {
		return pathKey.FileName
	}
	return strings.Join(pathKey.Path, "/") + "/" + pathKey.FileName
}
