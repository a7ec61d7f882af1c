package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"focusflow/internal/model"
)

// ErrNotFound is returned when no row matches both id and owner.
var ErrNotFound = errors.New("record not found")

// Repository is CRUD over one collection, always scoped by owner_id.
type Repository[T any] struct {
	db    *gorm.DB
	name  string
	order string
}

// NewRepository binds a collection. order is a SQL ORDER BY clause used when listing.
func NewRepository[T any](db *gorm.DB, name, order string) *Repository[T] {
	return &Repository[T]{db: db, name: name, order: order}
}

func NewTaskRepository(db *gorm.DB) *Repository[model.Task] {
	return NewRepository[model.Task](db, "tasks", "created_at ASC")
}

func NewNoteRepository(db *gorm.DB) *Repository[model.Note] {
	return NewRepository[model.Note](db, "notes", "created_at ASC")
}

func NewJournalRepository(db *gorm.DB) *Repository[model.JournalEntry] {
	return NewRepository[model.JournalEntry](db, "journals", "date DESC, created_at DESC")
}

func NewCategoryRepository(db *gorm.DB) *Repository[model.Category] {
	return NewRepository[model.Category](db, "categories", "created_at ASC")
}

func (r *Repository[T]) ListByOwner(ctx context.Context, ownerID string) ([]T, error) {
	var items []T
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if r.order != "" {
		q = q.Order(r.order)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", r.name, err)
	}
	return items, nil
}

func (r *Repository[T]) FindByID(ctx context.Context, ownerID, id string) (*T, error) {
	var item T
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&item).Error
	switch {
	case err == nil:
		return &item, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("find %s %s: %w", r.name, id, ErrNotFound)
	default:
		return nil, fmt.Errorf("find %s %s: %w", r.name, id, err)
	}
}

// Create stamps the owner on rec and inserts it. The generated id is set on rec.
func (r *Repository[T]) Create(ctx context.Context, ownerID string, rec *T) error {
	if o, ok := any(rec).(model.Ownable); ok {
		o.SetOwner(ownerID)
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create %s: %w", r.name, err)
	}
	return nil
}

// Update merges fields into the row. Last write wins.
func (r *Repository[T]) Update(ctx context.Context, ownerID, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ? AND owner_id = ?", id, ownerID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update %s %s: %w", r.name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s %s: %w", r.name, id, ErrNotFound)
	}
	return nil
}

func (r *Repository[T]) Delete(ctx context.Context, ownerID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("delete %s %s: %w", r.name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete %s %s: %w", r.name, id, ErrNotFound)
	}
	return nil
}

// CountByOwner is used by the dashboard.
func (r *Repository[T]) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(new(T)).Where("owner_id = ?", ownerID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.name, err)
	}
	return n, nil
}
