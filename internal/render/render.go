// Package render rasterizes designs into bitmaps at a physical size and
// resolution. Rendering is a pure function of the design, the variant, the
// options and the bitmaps returned by the AssetSource.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sort"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/models"
)

// ErrUnsupportedObject is returned for objects the pipeline cannot paint.
var ErrUnsupportedObject = errors.New("unsupported object")

// AssetSource resolves image references to decoded bitmaps.
type AssetSource interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Pipeline renders designs. It is safe for concurrent use when its
// AssetSource is.
type Pipeline struct {
	source  AssetSource
	regular *opentype.Font
	bold    *opentype.Font
}

// New creates a pipeline backed by source.
func New(source AssetSource) (*Pipeline, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return &Pipeline{source: source, regular: regular, bold: bold}, nil
}

// SurfaceSize returns the output bitmap size for a variant that already
// matches the design orientation.
func SurfaceSize(v models.VariantConfig, opts ExportOptions) image.Point {
	wMm, hMm := v.WidthMm, v.HeightMm
	if opts.IncludeBleed {
		wMm += 2 * v.BleedMm
		hMm += 2 * v.BleedMm
	}
	w := int(math.Round(geometry.MmToPx(wMm, opts.DPI)))
	h := int(math.Round(geometry.MmToPx(hMm, opts.DPI)))
	return image.Pt(max(w, 1), max(h, 1))
}

// transform maps design pixels to output pixels.
type transform struct {
	scale   float64
	offsetX float64
	offsetY float64
}

func (t transform) apply(p geometry.Point) geometry.Point {
	return geometry.Point{X: p.X*t.scale + t.offsetX, Y: p.Y*t.scale + t.offsetY}
}

func newTransform(v models.VariantConfig, opts ExportOptions) transform {
	t := transform{scale: opts.DPI / v.DPI}
	if opts.IncludeBleed {
		bleed := geometry.MmToPx(v.BleedMm, opts.DPI)
		t.offsetX, t.offsetY = bleed, bleed
	}
	return t
}

// interpolator picks the resampling kernel from the output resolution.
func interpolator(dpi float64) xdraw.Interpolator {
	if dpi < 150 {
		return xdraw.ApproxBiLinear
	}
	return xdraw.CatmullRom
}

// Render paints design onto a new surface sized from variant and opts.
func (p *Pipeline) Render(ctx context.Context, design *models.Design, variant models.VariantConfig, opts ExportOptions) (*image.RGBA, error) {
	if design == nil {
		return nil, fmt.Errorf("render: nil design")
	}
	if err := variant.Validate(); err != nil {
		return nil, fmt.Errorf("render %s: %w", design.ID, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("render %s: %w", design.ID, err)
	}

	v := variant.Oriented(design.Orientation)
	size := SurfaceSize(v, opts)
	dst := image.NewRGBA(image.Rectangle{Max: size})
	r := &renderer{
		p:      p,
		dst:    dst,
		t:      newTransform(v, opts),
		interp: interpolator(opts.DPI),
	}

	if err := r.background(ctx, design.PageBackground()); err != nil {
		return nil, fmt.Errorf("render %s: %w", design.ID, err)
	}

	objects := make([]models.CanvasObject, len(design.Objects))
	copy(objects, design.Objects)
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].ZIndex < objects[j].ZIndex
	})

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.object(ctx, obj); err != nil {
			return nil, fmt.Errorf("render %s object %s: %w", design.ID, obj.ID, err)
		}
	}

	slog.Debug("Rendered design", "design_id", design.ID, "width", size.X, "height", size.Y, "dpi", opts.DPI, "objects", len(objects))
	return dst, nil
}

type renderer struct {
	p      *Pipeline
	dst    *image.RGBA
	t      transform
	interp xdraw.Interpolator
}

func (r *renderer) background(ctx context.Context, bg models.Background) error {
	xdraw.Draw(r.dst, r.dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	if bg.Color != "" {
		c, err := ParseColor(bg.Color)
		if err != nil {
			slog.Warn("Ignoring background color", "color", bg.Color, "err", err)
		} else {
			xdraw.Draw(r.dst, r.dst.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Over)
		}
	}

	if bg.ImageURL == "" {
		return nil
	}
	src, err := r.p.source.Load(ctx, bg.ImageURL)
	if err != nil {
		return fmt.Errorf("background image: %w", err)
	}
	r.interp.Scale(r.dst, r.dst.Bounds(), src, coverCrop(src.Bounds(), r.dst.Bounds()), xdraw.Over, nil)
	return nil
}

// coverCrop returns the centered part of src with the aspect ratio of dst.
func coverCrop(src, dst image.Rectangle) image.Rectangle {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	dw, dh := float64(dst.Dx()), float64(dst.Dy())
	if sw == 0 || sh == 0 || dw == 0 || dh == 0 {
		return src
	}
	if sw/sh > dw/dh {
		w := int(math.Round(sh * dw / dh))
		x := src.Min.X + (src.Dx()-w)/2
		return image.Rect(x, src.Min.Y, x+w, src.Max.Y)
	}
	h := int(math.Round(sw * dh / dw))
	y := src.Min.Y + (src.Dy()-h)/2
	return image.Rect(src.Min.X, y, src.Max.X, y+h)
}

func (r *renderer) object(ctx context.Context, obj models.CanvasObject) error {
	frame := geometry.BoundsOf(obj.X, obj.Y, obj.Width, obj.Height)
	if frame.Width() == 0 || frame.Height() == 0 || obj.Alpha() == 0 {
		return nil
	}

	switch obj.Type {
	case models.ObjectImage:
		return r.image(ctx, obj, frame)
	case models.ObjectText:
		return r.text(obj, frame)
	case models.ObjectShape:
		return r.shape(obj, frame)
	default:
		return fmt.Errorf("%w: type %q", ErrUnsupportedObject, obj.Type)
	}
}
