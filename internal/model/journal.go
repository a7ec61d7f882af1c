package model

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"focusflow/internal/apperr"
)

// JournalEntry is a dated reflection with optional attachments.
type JournalEntry struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	OwnerID   string        `gorm:"index;size:36" json:"owner_id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Date      time.Time     `gorm:"index" json:"date"`
	Category  string        `gorm:"index" json:"category,omitempty"`
	Files     AttachedFiles `gorm:"type:text" json:"files"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TableName keeps the collection name used by the original backend.
func (JournalEntry) TableName() string { return "journals" }

func (j *JournalEntry) BeforeCreate(*gorm.DB) error {
	newID(&j.ID)
	if j.Date.IsZero() {
		j.Date = time.Now()
	}
	return nil
}

func (j *JournalEntry) SetOwner(ownerID string) { j.OwnerID = ownerID }

func (j JournalEntry) RecordID() string       { return j.ID }
func (j JournalEntry) RecordOwner() string    { return j.OwnerID }
func (j JournalEntry) RecordCategory() string { return j.Category }
func (j JournalEntry) SearchFields() []string { return []string{j.Title, j.Content} }

func (j JournalEntry) Validate() error {
	if strings.TrimSpace(j.Content) == "" {
		return apperr.Invalid("journal entry", "content is required")
	}
	return nil
}

func (j JournalEntry) MutableFields() map[string]any {
	return map[string]any{
		"title":    j.Title,
		"content":  j.Content,
		"date":     j.Date,
		"category": j.Category,
		"files":    j.Files,
	}
}
