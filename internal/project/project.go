// Package project fetches persisted project records for the design data
// parser. The compositor never writes projects back; the SQLite store only
// exists so projects can be rendered offline.
package project

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when no project exists for an id.
var ErrNotFound = errors.New("project not found")

// Record is a persisted project as returned by the project API.
// DesignsData and PagesData stay raw: their shape depends on the category
// and is interpreted by the designdata package only.
type Record struct {
	ID           string          `json:"id,omitempty"`
	Title        string          `json:"title"`
	CategorySlug string          `json:"categorySlug"`
	DesignsData  json.RawMessage `json:"designsData,omitempty"`
	PagesData    json.RawMessage `json:"pagesData,omitempty"`
	VariantID    string          `json:"variantId,omitempty"`
}

// envelope is the API response wrapper.
type envelope struct {
	Data Record `json:"data"`
}

// Source loads a project by id.
type Source interface {
	Fetch(ctx context.Context, id string) (*Record, error)
}
