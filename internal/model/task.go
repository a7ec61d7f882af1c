package model

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"focusflow/internal/apperr"
)

// Task is a single to-do item.
type Task struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID   string    `gorm:"index;size:36" json:"owner_id"`
	Text      string    `json:"text"`
	Done      bool      `gorm:"default:false" json:"done"`
	Category  string    `gorm:"index" json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	newID(&t.ID)
	return nil
}

func (t *Task) SetOwner(ownerID string) { t.OwnerID = ownerID }

func (t Task) RecordID() string       { return t.ID }
func (t Task) RecordOwner() string    { return t.OwnerID }
func (t Task) RecordCategory() string { return t.Category }
func (t Task) SearchFields() []string { return []string{t.Text} }

func (t Task) Validate() error {
	if strings.TrimSpace(t.Text) == "" {
		return apperr.Invalid("task", "text is required")
	}
	return nil
}

func (t Task) MutableFields() map[string]any {
	return map[string]any{
		"text":     t.Text,
		"done":     t.Done,
		"category": t.Category,
	}
}
