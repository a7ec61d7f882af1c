package model

import (
	"github.com/google/uuid"
)

// Record is an owner-scoped entity the record views operate on.
type Record interface {
	RecordID() string
	RecordOwner() string
	RecordCategory() string
	// SearchFields are matched by free-text filtering.
	SearchFields() []string
	// Validate rejects records that must never reach the store.
	Validate() error
	// MutableFields maps column names to the values an update writes.
	MutableFields() map[string]any
}

// Ownable is implemented by pointers to records so the store can stamp the owner.
type Ownable interface {
	SetOwner(ownerID string)
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
