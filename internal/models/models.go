package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"strings"
)

// ObjectType identifies what a CanvasObject paints.
type ObjectType string

const (
	ObjectImage ObjectType = "image"
	ObjectText  ObjectType = "text"
	ObjectShape ObjectType = "shape"
)

// Orientation of a printed page
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// Side marks which half of a spread a Design was cut from.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ErrInvalidVariant is returned when a VariantConfig cannot describe a
// printable surface.
var ErrInvalidVariant = errors.New("invalid variant config")

// CanvasObject is a single positioned element on a page.
//
// X/Y is the top-left corner in design pixels. Width may be negative while an
// object is dragged past its anchor. For images the content rectangle is the
// placement of the full source bitmap relative to the object's top-left
// corner; the object frame is the visible crop window.
type CanvasObject struct {
	ID       string     `json:"id"`
	Type     ObjectType `json:"type"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Rotation float64    `json:"rotation,omitempty"` // degrees, clockwise about the frame center
	Opacity  *float64   `json:"opacity,omitempty"`
	ZIndex   int        `json:"zIndex"`

	// image
	Src           string  `json:"src,omitempty"`
	FullSrc       string  `json:"fullSrc,omitempty"`
	ContentX      float64 `json:"contentX,omitempty"`
	ContentY      float64 `json:"contentY,omitempty"`
	ContentWidth  float64 `json:"contentWidth,omitempty"`
	ContentHeight float64 `json:"contentHeight,omitempty"`

	// text
	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontWeight string  `json:"fontWeight,omitempty"` // "normal", "bold"
	Color      string  `json:"color,omitempty"`
	Align      string  `json:"align,omitempty"` // "left", "center", "right"

	// shape
	Shape       string  `json:"shape,omitempty"` // "rect", "ellipse"
	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}

// Alpha returns the effective opacity; an absent opacity is fully opaque.
func (o CanvasObject) Alpha() float64 {
	if o.Opacity == nil {
		return 1
	}
	a := *o.Opacity
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}

// Source returns the best available image reference, preferring the full
// resolution original.
func (o CanvasObject) Source() string {
	if o.FullSrc != "" {
		return o.FullSrc
	}
	return o.Src
}

// HasContentRect reports whether the object carries an explicit crop.
func (o CanvasObject) HasContentRect() bool {
	return o.ContentWidth != 0 && o.ContentHeight != 0
}

// Background is either a flat color or an image covering the page.
type Background struct {
	Color    string `json:"color,omitempty" yaml:"color,omitempty"`
	ImageURL string `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
}

// IsZero reports whether no background was set.
func (b Background) IsZero() bool {
	return b.Color == "" && b.ImageURL == ""
}

// NamedColors are the color keywords accepted wherever a color is expected.
var NamedColors = map[string]color.NRGBA{
	"transparent": {},
	"white":       {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	"black":       {A: 0xff},
	"red":         {R: 0xff, A: 0xff},
	"green":       {G: 0x80, A: 0xff},
	"blue":        {B: 0xff, A: 0xff},
	"gray":        {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	"grey":        {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
}

// IsColorString reports whether s reads as a color rather than an image
// reference: a hex value, an rgb()/rgba() function or a color keyword.
func IsColorString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := NamedColors[s]; ok {
		return true
	}
	return strings.HasPrefix(s, "#") || strings.HasPrefix(s, "rgb")
}

// UnmarshalJSON accepts either the object form or a plain string. Color
// strings set Color, anything else is an image URL.
func (b *Background) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = Background{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = Background{}
		switch {
		case s == "":
		case IsColorString(s):
			b.Color = s
		default:
			b.ImageURL = s
		}
		return nil
	}
	type plain Background
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("background: %w", err)
	}
	*b = Background(p)
	return nil
}

// Design is one printable page, or one side of a spread.
type Design struct {
	ID              string         `json:"id"`
	Label           string         `json:"label,omitempty"`
	Objects         []CanvasObject `json:"objects"`
	Background      Background     `json:"background"`
	BackgroundLeft  Background     `json:"backgroundLeft,omitempty"`
	BackgroundRight Background     `json:"backgroundRight,omitempty"`
	Orientation     Orientation    `json:"orientation"`
	Quantity        int            `json:"quantity"`
	Side            Side           `json:"side,omitempty"`
}

// PageBackground resolves the background to paint for this design, taking
// the spread side into account.
func (d Design) PageBackground() Background {
	switch d.Side {
	case SideLeft:
		if !d.BackgroundLeft.IsZero() {
			return d.BackgroundLeft
		}
	case SideRight:
		if !d.BackgroundRight.IsZero() {
			return d.BackgroundRight
		}
	}
	return d.Background
}

// NextZIndex returns a z-index strictly greater than every object's.
func (d Design) NextZIndex() int {
	next := 0
	for _, o := range d.Objects {
		if o.ZIndex >= next {
			next = o.ZIndex + 1
		}
	}
	return next
}

// VariantConfig is a physical product profile.
type VariantConfig struct {
	WidthMm  float64 `json:"widthMm" yaml:"widthMm"`
	HeightMm float64 `json:"heightMm" yaml:"heightMm"`
	BleedMm  float64 `json:"bleedMm" yaml:"bleedMm"`
	DPI      float64 `json:"dpi" yaml:"dpi"`
}

// Validate checks the physical invariants of a variant.
func (v VariantConfig) Validate() error {
	switch {
	case v.DPI <= 0:
		return fmt.Errorf("%w: dpi must be positive, got %v", ErrInvalidVariant, v.DPI)
	case v.WidthMm <= 0 || v.HeightMm <= 0:
		return fmt.Errorf("%w: size must be positive, got %vx%vmm", ErrInvalidVariant, v.WidthMm, v.HeightMm)
	case v.BleedMm < 0:
		return fmt.Errorf("%w: bleed must not be negative, got %vmm", ErrInvalidVariant, v.BleedMm)
	}
	return nil
}

// Oriented returns the variant with width and height swapped when needed so
// that it matches the requested orientation. Square variants are unchanged.
func (v VariantConfig) Oriented(o Orientation) VariantConfig {
	switch {
	case o == Portrait && v.WidthMm > v.HeightMm,
		o == Landscape && v.HeightMm > v.WidthMm:
		v.WidthMm, v.HeightMm = v.HeightMm, v.WidthMm
	}
	return v
}

// AssetItem represents an uploaded source image
type AssetItem struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	FullURL string `json:"fullUrl"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// SnapLineType tells whether a guide comes from the canvas or another object.
type SnapLineType string

const (
	SnapCanvas SnapLineType = "canvas"
	SnapObject SnapLineType = "object"
)

// SnapDirection is the orientation of a guide line. Vertical lines constrain
// x, horizontal lines constrain y.
type SnapDirection string

const (
	Horizontal SnapDirection = "horizontal"
	Vertical   SnapDirection = "vertical"
)

// SnapLine is an alignment guide, recomputed every drag frame.
type SnapLine struct {
	Type           SnapLineType  `json:"type"`
	Direction      SnapDirection `json:"direction"`
	Position       float64       `json:"position"`
	SourceObjectID string        `json:"sourceObjectId,omitempty"`
	Start          float64       `json:"start"`
	End            float64       `json:"end"`
}

// PageState is the cache lifecycle of a preview page.
type PageState string

const (
	PageUncached  PageState = "uncached"
	PageRendering PageState = "rendering"
	PageCached    PageState = "cached"
)

// PreviewPage is the cache entry of one rendered design.
type PreviewPage struct {
	ID           string    `json:"id"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Label        string    `json:"label"`
	State        PageState `json:"state"`
}
