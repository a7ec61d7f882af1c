// Package view holds the per-session state of the record lists: what was
// fetched, what is being written and what failed last.
package view

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"focusflow/internal/apperr"
	"focusflow/internal/model"
	"focusflow/internal/repository"
)

// ErrClosed is returned by operations on a torn-down view.
var ErrClosed = errors.New("view closed")

// Store is the owner-scoped persistence a view writes through.
type Store[T model.Record] interface {
	ListByOwner(ctx context.Context, ownerID string) ([]T, error)
	Create(ctx context.Context, ownerID string, rec *T) error
	Update(ctx context.Context, ownerID, id string, fields map[string]any) error
	Delete(ctx context.Context, ownerID, id string) error
}

// Status describes the last fetch.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is a consistent copy of a view's state.
type Snapshot[T model.Record] struct {
	Status Status `json:"status"`
	Items  []T    `json:"items"`
	Error  string `json:"error,omitempty"`
}

// RecordView owns one owner's list of one record kind.
//
// Store calls are made without holding the lock. Their results are applied
// in completion order, and discarded once the view is closed.
type RecordView[T model.Record] struct {
	kind  string
	owner string
	store Store[T]
	log   *logrus.Entry

	mu      sync.Mutex
	items   []T
	status  Status
	lastErr error
	closed  bool
}

func NewRecordView[T model.Record](kind, ownerID string, store Store[T], log *logrus.Entry) *RecordView[T] {
	return &RecordView[T]{
		kind:  kind,
		owner: ownerID,
		store: store,
		log:   log.WithFields(logrus.Fields{"view": kind, "user_id": ownerID}),
	}
}

// Fetch reloads the list. On failure the previous list is kept.
func (v *RecordView[T]) Fetch(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.status = StatusLoading
	v.mu.Unlock()

	items, err := v.store.ListByOwner(ctx, v.owner)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if err != nil {
		err = apperr.Query("fetch "+v.kind, err)
		v.status = StatusFailed
		v.lastErr = err
		v.log.WithError(err).Warn("fetch failed")
		return err
	}
	if items == nil {
		items = []T{}
	}
	v.items = items
	v.status = StatusReady
	v.lastErr = nil
	v.log.WithField("count", len(items)).Debug("fetched")
	return nil
}

// Create validates rec, persists it and appends the stored copy.
func (v *RecordView[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	if err := rec.Validate(); err != nil {
		return zero, err
	}
	if v.isClosed() {
		return zero, ErrClosed
	}

	if err := v.store.Create(ctx, v.owner, &rec); err != nil {
		return zero, v.fail(apperr.Write("create "+v.kind, err))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return rec, nil
	}
	v.items = append(v.items, rec)
	v.lastErr = nil
	v.log.WithField("id", rec.RecordID()).Info("created")
	return rec, nil
}

// Update applies mutate to a copy of the local record, writes the mutable
// fields and replaces the local record. Last write wins.
func (v *RecordView[T]) Update(ctx context.Context, id string, mutate func(*T)) (T, error) {
	var zero T
	current, ok := v.Get(id)
	if !ok {
		return zero, apperr.NotFound("update "+v.kind, repository.ErrNotFound)
	}

	updated := current
	mutate(&updated)
	if err := updated.Validate(); err != nil {
		return zero, err
	}

	if err := v.store.Update(ctx, v.owner, id, updated.MutableFields()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return zero, v.fail(apperr.NotFound("update "+v.kind, err))
		}
		return zero, v.fail(apperr.Write("update "+v.kind, err))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return updated, nil
	}
	if i := v.indexOf(id); i >= 0 {
		v.items[i] = updated
	}
	v.lastErr = nil
	v.log.WithField("id", id).Info("updated")
	return updated, nil
}

// Delete removes the record remotely, then locally. A failed remote delete
// leaves the local list untouched.
func (v *RecordView[T]) Delete(ctx context.Context, id string) error {
	if _, ok := v.Get(id); !ok {
		return apperr.NotFound("delete "+v.kind, repository.ErrNotFound)
	}

	if err := v.store.Delete(ctx, v.owner, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return v.fail(apperr.NotFound("delete "+v.kind, err))
		}
		return v.fail(apperr.Write("delete "+v.kind, err))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	if i := v.indexOf(id); i >= 0 {
		v.items = append(v.items[:i:i], v.items[i+1:]...)
	}
	v.lastErr = nil
	v.log.WithField("id", id).Info("deleted")
	return nil
}

// Get returns the local copy of a record.
func (v *RecordView[T]) Get(id string) (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i := v.indexOf(id); i >= 0 {
		return v.items[i], true
	}
	var zero T
	return zero, false
}

// Items returns a copy of the local list.
func (v *RecordView[T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]T{}, v.items...)
}

// Filter applies the search and category predicates to the local list.
func (v *RecordView[T]) Filter(term, category string) []T {
	return Filter(v.Items(), term, category)
}

// Snapshot returns status, filtered items and the last error message.
func (v *RecordView[T]) Snapshot(term, category string) Snapshot[T] {
	v.mu.Lock()
	s := Snapshot[T]{Status: v.status}
	if v.lastErr != nil {
		s.Error = v.lastErr.Error()
	}
	items := append([]T{}, v.items...)
	v.mu.Unlock()

	s.Items = Filter(items, term, category)
	return s
}

func (v *RecordView[T]) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Err is the last failure, cleared by the next successful operation.
func (v *RecordView[T]) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Close tears the view down; later results are discarded.
func (v *RecordView[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.items = nil
}

func (v *RecordView[T]) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *RecordView[T]) fail(err error) error {
	v.mu.Lock()
	if !v.closed {
		v.lastErr = err
	}
	v.mu.Unlock()
	v.log.WithError(err).Warn("operation failed")
	return err
}

func (v *RecordView[T]) indexOf(id string) int {
	for i := range v.items {
		if v.items[i].RecordID() == id {
			return i
		}
	}
	return -1
}

// Filter keeps items whose search fields contain term (case-insensitive)
// and whose category equals category. Empty predicates match everything.
func Filter[T model.Record](items []T, term, category string) []T {
	needle := strings.ToLower(term)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if category != "" && it.RecordCategory() != category {
			continue
		}
		if needle != "" && !containsFold(it.SearchFields(), needle) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func containsFold(fields []string, needle string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
