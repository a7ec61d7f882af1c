package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"focusflow/internal/apperr"
	"focusflow/internal/model"
)

// DefaultAllowedTypes mirrors what the journal and notes forms accept.
var DefaultAllowedTypes = []string{
	"image/*",
	"text/*",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Upload is one local file waiting to be attached.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Policy limits what may be uploaded.
type Policy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Attacher uploads batches of files for a record kind.
type Attacher struct {
	store  Store
	policy Policy
	log    *logrus.Entry
	now    func() time.Time
}

func NewAttacher(store Store, policy Policy, log *logrus.Entry) *Attacher {
	if len(policy.AllowedTypes) == 0 {
		policy.AllowedTypes = DefaultAllowedTypes
	}
	return &Attacher{store: store, policy: policy, log: log, now: time.Now}
}

// Attach uploads every file concurrently and returns their descriptors in
// input order. It is all-or-nothing: if any upload fails, blobs already
// written by this batch are removed and no descriptor is returned.
func (a *Attacher) Attach(ctx context.Context, ownerID, kind string, files []Upload) (model.AttachedFiles, error) {
	if len(files) == 0 {
		return model.AttachedFiles{}, nil
	}
	for i := range files {
		if err := a.check(&files[i]); err != nil {
			return nil, apperr.Upload("attach files", err)
		}
	}

	stamp := a.now().UnixMilli()
	out := make(model.AttachedFiles, len(files))
	var (
		mu      sync.Mutex
		written []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		i := i
		f := files[i]
		key := fmt.Sprintf("%s/%s/%d_%d_%s", ownerID, kind, stamp, i, safeName(f.Name))
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", f.Name, err)
			}
			defer rc.Close()

			if err := a.store.Put(gctx, key, rc, f.Size, f.ContentType); err != nil {
				return err
			}
			mu.Lock()
			written = append(written, key)
			mu.Unlock()

			u, err := a.store.URL(gctx, key)
			if err != nil {
				return err
			}
			out[i] = model.AttachedFile{
				Name:        f.Name,
				URL:         u,
				Key:         key,
				ContentType: f.ContentType,
				Size:        f.Size,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.rollback(written)
		a.log.WithFields(logrus.Fields{
			"owner_id": ownerID,
			"kind":     kind,
			"files":    len(files),
			"error":    err.Error(),
		}).Warn("attach batch failed")
		return nil, apperr.Upload("attach files", err)
	}
	return out, nil
}

// Discard removes the blobs behind descriptors whose record was never saved.
func (a *Attacher) Discard(files model.AttachedFiles) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.Key)
	}
	a.rollback(keys)
}

func (a *Attacher) rollback(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := a.store.Remove(ctx, key); err != nil {
			a.log.WithField("key", key).WithError(err).Warn("remove orphaned blob")
		}
	}
}

func (a *Attacher) check(f *Upload) error {
	if strings.TrimSpace(f.Name) == "" {
		return apperr.Invalid("check file", "file name is required")
	}
	if f.Open == nil {
		return apperr.Invalid("check file", fmt.Sprintf("%s: no content", f.Name))
	}
	if a.policy.MaxBytes > 0 && f.Size > a.policy.MaxBytes {
		return apperr.Invalid("check file", fmt.Sprintf("%s: file size exceeds %dMB limit", f.Name, a.policy.MaxBytes>>20))
	}
	if f.ContentType == "" || f.ContentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name))); byExt != "" {
			f.ContentType = byExt
		}
	}
	if !allowed(f.ContentType, a.policy.AllowedTypes) {
		return apperr.Invalid("check file", fmt.Sprintf("%s: file type not allowed", f.Name))
	}
	return nil
}

func allowed(contentType string, patterns []string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
			continue
		}
		if mediaType == p {
			return true
		}
	}
	return false
}

func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	if name == "." || name == ".." || name == "" {
		return "file"
	}
	return name
}
