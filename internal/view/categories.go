package view

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"focusflow/internal/apperr"
	"focusflow/internal/model"
	"focusflow/internal/repository"
)

// CategoryRegistry is the owner's set of category tags. Records keep the
// category name as a plain string, so nothing here rewrites them.
type CategoryRegistry struct {
	view *RecordView[model.Category]
}

func NewCategoryRegistry(ownerID string, store Store[model.Category], log *logrus.Entry) *CategoryRegistry {
	return &CategoryRegistry{view: NewRecordView("categories", ownerID, store, log)}
}

func (r *CategoryRegistry) Fetch(ctx context.Context) error { return r.view.Fetch(ctx) }

// List returns the loaded categories in creation order.
func (r *CategoryRegistry) List() []model.Category { return r.view.Items() }

// Names returns the loaded category names.
func (r *CategoryRegistry) Names() []string {
	cats := r.view.Items()
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	return names
}

// Add stores a trimmed name. Duplicates are allowed.
func (r *CategoryRegistry) Add(ctx context.Context, name string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, apperr.Invalid("add category", "name is required")
	}
	return r.view.Create(ctx, model.Category{Name: name})
}

// Delete removes the first loaded category called name.
func (r *CategoryRegistry) Delete(ctx context.Context, name string) error {
	for _, c := range r.view.Items() {
		if c.Name == name {
			return r.view.Delete(ctx, c.ID)
		}
	}
	return apperr.NotFound("delete category", repository.ErrNotFound)
}

func (r *CategoryRegistry) Snapshot() Snapshot[model.Category] { return r.view.Snapshot("", "") }

func (r *CategoryRegistry) Close() { r.view.Close() }
