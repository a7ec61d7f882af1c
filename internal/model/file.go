package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AttachedFile describes an uploaded blob. It is immutable once created.
type AttachedFile struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
}

// AttachedFiles is stored as a JSON column on its parent record.
type AttachedFiles []AttachedFile

func (f AttachedFiles) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *AttachedFiles) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = AttachedFiles{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan attached files: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*f = AttachedFiles{}
		return nil
	}
	return json.Unmarshal(raw, f)
}

// Without returns a copy with the descriptor at index removed.
func (f AttachedFiles) Without(index int) (AttachedFiles, error) {
	if index < 0 || index >= len(f) {
		return nil, fmt.Errorf("file index %d out of range", index)
	}
	out := make(AttachedFiles, 0, len(f)-1)
	out = append(out, f[:index]...)
	return append(out, f[index+1:]...), nil
}
