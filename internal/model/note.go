package model

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"focusflow/internal/apperr"
)

// Note is a titled free-form text with optional attachments.
type Note struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	OwnerID   string        `gorm:"index;size:36" json:"owner_id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Category  string        `gorm:"index" json:"category,omitempty"`
	Files     AttachedFiles `gorm:"type:text" json:"files"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (n *Note) BeforeCreate(*gorm.DB) error {
	newID(&n.ID)
	return nil
}

func (n *Note) SetOwner(ownerID string) { n.OwnerID = ownerID }

func (n Note) RecordID() string       { return n.ID }
func (n Note) RecordOwner() string    { return n.OwnerID }
func (n Note) RecordCategory() string { return n.Category }
func (n Note) SearchFields() []string { return []string{n.Title, n.Content} }

func (n Note) Validate() error {
	if strings.TrimSpace(n.Content) == "" {
		return apperr.Invalid("note", "content is required")
	}
	return nil
}

func (n Note) MutableFields() map[string]any {
	return map[string]any{
		"title":    n.Title,
		"content":  n.Content,
		"category": n.Category,
		"files":    n.Files,
	}
}
