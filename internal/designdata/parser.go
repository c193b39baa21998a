// Package designdata normalizes a project's category-specific payload into a
// canonical list of per-page designs plus one variant config.
package designdata

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"slices"

	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/project"
)

const (
	// EditorReferenceDPI is the resolution book-editor coordinates were
	// authored at. It is unrelated to the export DPI.
	EditorReferenceDPI = 96
	// SpreadBleedMm is the bleed of every book product.
	SpreadBleedMm = 3
	// PortraitCategory is the only category whose pages default to portrait.
	PortraitCategory = "poster"
)

var (
	// ErrNoDesignData tells callers there is nothing to render or export.
	ErrNoDesignData = errors.New("no design data")
	// ErrUnrecognizedPayload marks design data of an unknown shape.
	ErrUnrecognizedPayload = errors.New("unrecognized design payload")
)

// DefaultVariant is used when neither the payload nor the variant catalog
// describe the product: 150x100mm, 3mm bleed, 300dpi.
var DefaultVariant = models.VariantConfig{WidthMm: 150, HeightMm: 100, BleedMm: 3, DPI: 300}

// Options tune parsing.
type Options struct {
	// Variants maps a project's variantId to a product profile. It is
	// consulted when the payload carries no variantConfig of its own.
	Variants map[string]models.VariantConfig
}

// Result is the canonical form of a project.
type Result struct {
	Designs       []models.Design      `json:"designs"`
	VariantConfig models.VariantConfig `json:"variantConfig"`
	ProjectTitle  string               `json:"projectTitle"`
	CategorySlug  string               `json:"categorySlug"`
	Kind          Kind                 `json:"kind"`
	// PageWidthPx is the single page width in design pixels for spread
	// projects, zero otherwise.
	PageWidthPx float64 `json:"pageWidthPx,omitempty"`
}

// Parse normalizes rec. It returns (nil, nil) when the project decodes
// fine but yields no designs; malformed or unrecognized payloads return an
// error.
func Parse(rec *project.Record, opts Options) (*Result, error) {
	payload, err := Detect(rec)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch payload.Kind {
	case KindFlat:
		res = normalizeFlat(rec, payload.Flat, opts)
	case KindLegacyPages:
		res = normalizeLegacy(rec, payload.Legacy, opts)
	case KindSpreads:
		res, err = normalizeSpreads(payload.Spreads)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnrecognizedPayload, payload.Kind)
	}

	if len(res.Designs) == 0 {
		slog.Debug("Project has no designs", "project_id", rec.ID, "kind", payload.Kind)
		return nil, nil
	}

	res.Kind = payload.Kind
	res.ProjectTitle = rec.Title
	res.CategorySlug = rec.CategorySlug
	return res, nil
}

// Safe is Parse for listing and batch flows: failures are logged and, like
// empty projects, reported as nil.
func Safe(rec *project.Record, opts Options) *Result {
	res, err := Parse(rec, opts)
	if err != nil {
		id := ""
		if rec != nil {
			id = rec.ID
		}
		slog.Warn("Failed to parse design data", "project_id", id, "err", err)
		return nil
	}
	return res
}

func normalizeFlat(rec *project.Record, p *FlatPayload, opts Options) *Result {
	orientation := models.Landscape
	if rec.CategorySlug == PortraitCategory {
		orientation = models.Portrait
	}

	designs := make([]models.Design, 0, len(p.Designs))
	for i, d := range p.Designs {
		designs = append(designs, pageToDesign(d, i, orientation))
	}

	return &Result{
		Designs:       designs,
		VariantConfig: resolveVariant(rec, p.VariantConfig, opts),
	}
}

func normalizeLegacy(rec *project.Record, p *LegacyPayload, opts Options) *Result {
	designs := make([]models.Design, 0, len(p.Pages))
	for i, page := range p.Pages {
		d := pageToDesign(page, i, models.Landscape)
		d.Quantity = 1
		designs = append(designs, d)
	}

	return &Result{
		Designs:       designs,
		VariantConfig: resolveVariant(rec, p.VariantConfig, opts),
	}
}

func pageToDesign(p PageData, i int, defaultOrientation models.Orientation) models.Design {
	d := models.Design{
		ID:              p.ID,
		Label:           p.Label,
		Objects:         p.Objects,
		Background:      p.Background,
		BackgroundLeft:  p.BackgroundLeft,
		BackgroundRight: p.BackgroundRight,
		Orientation:     p.Orientation,
		Quantity:        p.Quantity,
	}
	if d.ID == "" {
		d.ID = fmt.Sprintf("page-%d", i+1)
	}
	if d.Label == "" {
		d.Label = fmt.Sprintf("Page %d", i+1)
	}
	if d.Objects == nil {
		d.Objects = []models.CanvasObject{}
	}
	if d.Orientation != models.Landscape && d.Orientation != models.Portrait {
		d.Orientation = defaultOrientation
	}
	if d.Quantity <= 0 {
		d.Quantity = 1
	}
	return d
}

func resolveVariant(rec *project.Record, embedded *models.VariantConfig, opts Options) models.VariantConfig {
	if embedded != nil {
		err := embedded.Validate()
		if err == nil {
			return *embedded
		}
		slog.Warn("Ignoring invalid embedded variant", "project_id", rec.ID, "err", err)
	}
	if v, ok := opts.Variants[rec.VariantID]; ok && rec.VariantID != "" {
		return v
	}
	return DefaultVariant
}

// PageMetrics derives page sizes from an album size in inches.
func PageMetrics(album AlbumSize) (widthMm, heightMm, widthPx float64) {
	widthMm = math.Round(geometry.InchesToMm(album.WidthInches))
	heightMm = math.Round(geometry.InchesToMm(album.HeightInches))
	widthPx = geometry.CeilPx(geometry.MmToPx(widthMm, EditorReferenceDPI))
	return widthMm, heightMm, widthPx
}

func normalizeSpreads(p *SpreadPayload) (*Result, error) {
	album := p.EditorState.AlbumSize
	if album.WidthInches <= 0 || album.HeightInches <= 0 {
		return nil, fmt.Errorf("%w: invalid album size %vx%v inches", ErrUnrecognizedPayload, album.WidthInches, album.HeightInches)
	}

	widthMm, heightMm, pageWidthPx := PageMetrics(album)

	designs := make([]models.Design, 0, 2*len(p.EditorState.Spreads))
	for i, sp := range p.EditorState.Spreads {
		left, right := SplitSpread(sp.Objects, pageWidthPx)

		base := sp.ID
		if base == "" {
			base = fmt.Sprintf("spread-%d", i+1)
		}
		for _, side := range []struct {
			side    models.Side
			objects []models.CanvasObject
			label   string
		}{
			{models.SideLeft, left, "Left"},
			{models.SideRight, right, "Right"},
		} {
			designs = append(designs, models.Design{
				ID:              fmt.Sprintf("%s-%s", base, side.side),
				Label:           fmt.Sprintf("Spread %d %s", i+1, side.label),
				Objects:         side.objects,
				Background:      sp.Background,
				BackgroundLeft:  sp.BackgroundLeft,
				BackgroundRight: sp.BackgroundRight,
				Orientation:     orientationOf(widthMm, heightMm),
				Quantity:        1,
				Side:            side.side,
			})
		}
	}

	return &Result{
		Designs: designs,
		VariantConfig: models.VariantConfig{
			WidthMm:  widthMm,
			HeightMm: heightMm,
			BleedMm:  SpreadBleedMm,
			DPI:      EditorReferenceDPI,
		},
		PageWidthPx: pageWidthPx,
	}, nil
}

func orientationOf(widthMm, heightMm float64) models.Orientation {
	if heightMm > widthMm {
		return models.Portrait
	}
	return models.Landscape
}

// SplitSpread partitions spread objects into left and right pages by their
// horizontal extent. Objects crossing the gutter appear on both pages; the
// page surface clips them when rendered. Right-page copies are rebased so
// x is relative to the right page.
func SplitSpread(objects []models.CanvasObject, pageWidthPx float64) (left, right []models.CanvasObject) {
	left = []models.CanvasObject{}
	right = []models.CanvasObject{}
	for _, obj := range objects {
		b := geometry.BoundsOf(obj.X, obj.Y, obj.Width, obj.Height)
		if geometry.OverlapsInterval(b.Left, b.Right, 0, pageWidthPx) {
			left = append(left, obj)
		}
		onRight := geometry.OverlapsInterval(b.Left, b.Right, pageWidthPx, 2*pageWidthPx)
		if onRight {
			moved := obj
			moved.X -= pageWidthPx
			right = append(right, moved)
		}
		if !onRight && !geometry.OverlapsInterval(b.Left, b.Right, 0, pageWidthPx) {
			slog.Debug("Dropping object outside spread", "object_id", obj.ID, "left", b.Left, "right", b.Right, "spread_width", 2*pageWidthPx)
		}
	}
	return left, right
}

// Recombine is the inverse of SplitSpread: right-page objects are moved
// back by pageWidthPx and objects present on both pages are kept once.
// Objects keep left-page order followed by right-only objects.
//
// Objects are matched by ID. An object without an ID is matched against a
// left-page object without an ID that crosses the gutter and is identical
// once moved back; each left object absorbs at most one right copy.
func Recombine(left, right []models.CanvasObject, pageWidthPx float64) []models.CanvasObject {
	out := make([]models.CanvasObject, 0, len(left)+len(right))
	seen := make(map[string]bool, len(left))
	var anonymous []int
	for _, obj := range left {
		out = append(out, obj)
		switch {
		case obj.ID != "":
			seen[obj.ID] = true
		case geometry.BoundsOf(obj.X, obj.Y, obj.Width, obj.Height).Right > pageWidthPx:
			anonymous = append(anonymous, len(out)-1)
		}
	}
	for _, obj := range right {
		if obj.ID != "" && seen[obj.ID] {
			continue
		}
		obj.X += pageWidthPx
		if obj.ID == "" {
			if i := slices.IndexFunc(anonymous, func(j int) bool { return reflect.DeepEqual(out[j], obj) }); i >= 0 {
				anonymous = slices.Delete(anonymous, i, i+1)
				continue
			}
		}
		out = append(out, obj)
	}
	return out
}

// CanvasSize returns the editing surface of a design in design pixels: the
// trim size of the variant, oriented like the design, at the variant DPI.
func CanvasSize(v models.VariantConfig, o models.Orientation) geometry.Size {
	v = v.Oriented(o)
	return geometry.Size{
		Width:  geometry.MmToPx(v.WidthMm, v.DPI),
		Height: geometry.MmToPx(v.HeightMm, v.DPI),
	}
}
