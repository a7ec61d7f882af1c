package model

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"focusflow/internal/apperr"
)

// Category is a free-text tag. Records copy its name; they do not reference it.
type Category struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID   string    `gorm:"index;size:36" json:"owner_id"`
	Name      string    `gorm:"index" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	newID(&c.ID)
	return nil
}

func (c *Category) SetOwner(ownerID string) { c.OwnerID = ownerID }

func (c Category) RecordID() string       { return c.ID }
func (c Category) RecordOwner() string    { return c.OwnerID }
func (c Category) RecordCategory() string { return "" }
func (c Category) SearchFields() []string { return []string{c.Name} }

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Invalid("category", "name is required")
	}
	return nil
}

func (c Category) MutableFields() map[string]any {
	return map[string]any{"name": c.Name}
}
