package types

import (
	"encoding/json"
	"time"
)

// Principal is the identity currently authenticated against the identity service.
type Principal struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	Kind      string `json:"kind"`
}

// Document is a single record read from the document store.
type Document struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
