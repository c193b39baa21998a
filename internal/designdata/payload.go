package designdata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/project"
)

// Kind discriminates the stored payload families.
type Kind string

const (
	KindFlat        Kind = "flat"
	KindLegacyPages Kind = "legacy-pages"
	KindSpreads     Kind = "spreads"
)

// SpreadsVersion is the pagesData version carrying editor state.
const SpreadsVersion = 2

// Payload is the decoded, tagged form of a project's design data. Exactly
// one of the variant fields is set, matching Kind.
type Payload struct {
	Kind    Kind
	Flat    *FlatPayload
	Legacy  *LegacyPayload
	Spreads *SpreadPayload
}

// PageData is a stored page before normalization.
type PageData struct {
	ID              string                `json:"id,omitempty"`
	Label           string                `json:"label,omitempty"`
	Objects         []models.CanvasObject `json:"objects"`
	Background      models.Background     `json:"background"`
	BackgroundLeft  models.Background     `json:"backgroundLeft"`
	BackgroundRight models.Background     `json:"backgroundRight"`
	Orientation     models.Orientation    `json:"orientation,omitempty"`
	Quantity        int                   `json:"quantity,omitempty"`
}

// FlatPayload is designsData: a list of pages with an optional variant.
type FlatPayload struct {
	Designs       []PageData            `json:"designs"`
	VariantConfig *models.VariantConfig `json:"variantConfig,omitempty"`
}

// LegacyPayload is the unversioned pagesData form.
type LegacyPayload struct {
	Pages         []PageData            `json:"pages"`
	VariantConfig *models.VariantConfig `json:"variantConfig,omitempty"`
}

// AlbumSize is the physical page size of a book product in inches.
type AlbumSize struct {
	WidthInches  float64 `json:"widthInches"`
	HeightInches float64 `json:"heightInches"`
}

// Spread is one double page as authored in the book editor. Object
// coordinates span both pages.
type Spread struct {
	ID              string                `json:"id,omitempty"`
	Objects         []models.CanvasObject `json:"objects"`
	Background      models.Background     `json:"background"`
	BackgroundLeft  models.Background     `json:"backgroundLeft"`
	BackgroundRight models.Background     `json:"backgroundRight"`
}

// EditorState is the book editor's saved state.
type EditorState struct {
	AlbumSize AlbumSize `json:"albumSize"`
	Spreads   []Spread  `json:"spreads"`
}

// SpreadPayload is the versioned pagesData form.
type SpreadPayload struct {
	Version     int          `json:"version"`
	EditorState *EditorState `json:"editorState"`
}

// Detect decodes a record's design data and tags its family. designsData
// wins over pagesData when both are present.
func Detect(rec *project.Record) (*Payload, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrUnrecognizedPayload)
	}

	if raw, ok, err := unwrap(rec.DesignsData); err != nil {
		return nil, fmt.Errorf("designsData: %w", err)
	} else if ok {
		keys, err := topLevelKeys(raw)
		if err != nil {
			return nil, fmt.Errorf("designsData: %w", err)
		}
		if _, has := keys["designs"]; !has {
			return nil, fmt.Errorf("%w: designsData has no designs", ErrUnrecognizedPayload)
		}
		var flat FlatPayload
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("designsData: %w", err)
		}
		return &Payload{Kind: KindFlat, Flat: &flat}, nil
	}

	raw, ok, err := unwrap(rec.PagesData)
	if err != nil {
		return nil, fmt.Errorf("pagesData: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no designsData or pagesData", ErrUnrecognizedPayload)
	}

	keys, err := topLevelKeys(raw)
	if err != nil {
		return nil, fmt.Errorf("pagesData: %w", err)
	}

	var version int
	if v, has := keys["version"]; has {
		if err := json.Unmarshal(v, &version); err != nil {
			return nil, fmt.Errorf("pagesData version: %w", err)
		}
	}

	switch {
	case version == SpreadsVersion:
		var sp SpreadPayload
		if err := json.Unmarshal(raw, &sp); err != nil {
			return nil, fmt.Errorf("pagesData: %w", err)
		}
		if sp.EditorState == nil {
			return nil, fmt.Errorf("%w: version %d without editorState", ErrUnrecognizedPayload, version)
		}
		return &Payload{Kind: KindSpreads, Spreads: &sp}, nil
	case version != 0:
		return nil, fmt.Errorf("%w: unsupported pagesData version %d", ErrUnrecognizedPayload, version)
	}

	if _, has := keys["pages"]; !has {
		return nil, fmt.Errorf("%w: pagesData has no pages", ErrUnrecognizedPayload)
	}
	var legacy LegacyPayload
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("pagesData: %w", err)
	}
	return &Payload{Kind: KindLegacyPages, Legacy: &legacy}, nil
}

// unwrap reports whether raw holds a payload. Payloads stored as JSON
// strings (double encoded) are decoded once.
func unwrap(raw json.RawMessage) (json.RawMessage, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, false, err
		}
		inner := bytes.TrimSpace([]byte(s))
		if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
			return nil, false, nil
		}
		return inner, true, nil
	}
	return trimmed, true, nil
}

func topLevelKeys(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}
