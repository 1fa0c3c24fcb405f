// internal/store/document.go
package store

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Document is the envelope every collection record travels in. Data holds the
// entity JSON; the store and the sync engine never look inside it except
// through registered guards.
type Document struct {
	ID        string          `json:"id"`
	UpdatedAt time.Time       `json:"updated_at"`
	Data      json.RawMessage `json:"data"`
}

// NewDocument wraps v into a Document. An empty id gets a fresh ULID.
func NewDocument(id string, v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Document{}, err
	}
	if id == "" {
		id = ulid.Make().String()
	}
	return Document{ID: id, UpdatedAt: time.Now().UTC(), Data: data}, nil
}

// Decode unmarshals the document payload into v.
func (d Document) Decode(v interface{}) error {
	return json.Unmarshal(d.Data, v)
}
