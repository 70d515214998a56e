package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Meta is the envelope every persisted entity embeds.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewMeta stamps a fresh envelope with a generated id.
func NewMeta(now time.Time) Meta {
	return Meta{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
}

// Touch refreshes the updated timestamp.
func (m *Meta) Touch(now time.Time) {
	m.UpdatedAt = now
}

// Decode unmarshals a document into an entity.
func Decode[T any](doc Document) (T, error) {
	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return v, fmt.Errorf("store: decode %s: %w", doc.ID, err)
	}
	return v, nil
}

// DecodeAll unmarshals a slice of documents.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := Decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
