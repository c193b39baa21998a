package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/placement"
)

const (
	defaultFontSize   = 16
	lineHeightFactor  = 1.2
	ellipseKappa      = 0.5522847498
	defaultTextColor  = "#000000"
	defaultStrokeSize = 1
)

func (r *renderer) image(ctx context.Context, obj models.CanvasObject, frame geometry.Bounds) error {
	ref := obj.Source()
	if ref == "" {
		slog.Debug("Skipping image object without source", "object_id", obj.ID)
		return nil
	}
	src, err := r.p.source.Load(ctx, ref)
	if err != nil {
		return fmt.Errorf("image %s: %w", ref, err)
	}

	var content geometry.Bounds
	if obj.HasContentRect() {
		content = geometry.BoundsOf(frame.Left+obj.ContentX, frame.Top+obj.ContentY, obj.ContentWidth, obj.ContentHeight)
	} else {
		sb := src.Bounds()
		pl := placement.ComputeDefaultImagePlacement(
			geometry.Size{Width: float64(sb.Dx()), Height: float64(sb.Dy())},
			geometry.NewRect(frame.Left, frame.Top, frame.Width(), frame.Height()),
			placement.FitCover,
		)
		content = geometry.BoundsOf(pl.X+pl.ContentX, pl.Y+pl.ContentY, pl.ContentWidth, pl.ContentHeight)
	}

	r.composite(src, content, frame, obj.Rotation, obj.Alpha())
	return nil
}

// composite draws src stretched over content (design pixels), clipped to
// frame, rotated about the frame center and multiplied by alpha.
func (r *renderer) composite(src image.Image, content, frame geometry.Bounds, rotation, alpha float64) {
	sb := src.Bounds()
	if sb.Empty() || content.Width() == 0 || content.Height() == 0 {
		return
	}

	mask := r.frameMask(frame, rotation, alpha)
	if mask == nil {
		return
	}

	s := r.t.scale
	rad := rotation * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	cx, cy := frame.CenterX, frame.CenterY
	kx := content.Width() / float64(sb.Dx())
	ky := content.Height() / float64(sb.Dy())
	left := content.Left - float64(sb.Min.X)*kx
	top := content.Top - float64(sb.Min.Y)*ky

	s2d := f64.Aff3{
		s * cos * kx, -s * sin * ky, s*(cx+cos*(left-cx)-sin*(top-cy)) + r.t.offsetX,
		s * sin * kx, s * cos * ky, s*(cy+sin*(left-cx)+cos*(top-cy)) + r.t.offsetY,
	}
	r.interp.Transform(r.dst, s2d, src, sb, xdraw.Over, &xdraw.Options{DstMask: mask})
}

// frameMask rasterizes the rotated frame into an alpha mask in output
// coordinates. It returns nil when the frame lies outside the surface.
func (r *renderer) frameMask(frame geometry.Bounds, rotation, alpha float64) *image.Alpha {
	corners := r.frameCorners(frame, rotation)

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
		minY, maxY = math.Min(minY, c.Y), math.Max(maxY, c.Y)
	}
	box := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
	box = box.Intersect(r.dst.Bounds())
	if box.Empty() {
		return nil
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	z.MoveTo(float32(corners[0].X-ox), float32(corners[0].Y-oy))
	for _, c := range corners[1:] {
		z.LineTo(float32(c.X-ox), float32(c.Y-oy))
	}
	z.ClosePath()

	mask := image.NewAlpha(box)
	a := uint8(math.Round(geometry.Clamp(alpha, 0, 1) * 255))
	z.Draw(mask, box, image.NewUniform(color.Alpha{A: a}), image.Point{})
	return mask
}

func (r *renderer) frameCorners(frame geometry.Bounds, rotation float64) [4]geometry.Point {
	rad := rotation * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	center := geometry.Point{X: frame.CenterX, Y: frame.CenterY}
	pts := [4]geometry.Point{
		{X: frame.Left, Y: frame.Top},
		{X: frame.Right, Y: frame.Top},
		{X: frame.Right, Y: frame.Bottom},
		{X: frame.Left, Y: frame.Bottom},
	}
	for i, p := range pts {
		d := p.Sub(center)
		rotated := geometry.Point{X: center.X + cos*d.X - sin*d.Y, Y: center.Y + sin*d.X + cos*d.Y}
		pts[i] = r.t.apply(rotated)
	}
	return pts
}

// layer allocates an offscreen bitmap covering frame at output resolution.
func (r *renderer) layer(frame geometry.Bounds) *image.RGBA {
	w := int(math.Round(frame.Width() * r.t.scale))
	h := int(math.Round(frame.Height() * r.t.scale))
	return image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
}

func (r *renderer) text(obj models.CanvasObject, frame geometry.Bounds) error {
	if strings.TrimSpace(obj.Text) == "" {
		return nil
	}

	layer := r.layer(frame)

	size := obj.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	size *= r.t.scale

	f := r.p.regular
	if obj.FontWeight == "bold" || obj.FontWeight == "700" {
		f = r.p.bold
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return fmt.Errorf("text face: %w", err)
	}
	defer face.Close()

	colorName := obj.Color
	if colorName == "" {
		colorName = defaultTextColor
	}
	c, err := ParseColor(colorName)
	if err != nil {
		slog.Warn("Falling back to default text color", "object_id", obj.ID, "color", obj.Color, "err", err)
		c, _ = ParseColor(defaultTextColor)
	}

	d := &font.Drawer{Dst: layer, Src: image.NewUniform(c), Face: face}
	width := layer.Bounds().Dx()
	ascent := face.Metrics().Ascent.Ceil()
	lineHeight := int(math.Round(size * lineHeightFactor))

	for i, line := range wrapText(d, obj.Text, width) {
		adv := d.MeasureString(line).Ceil()
		x := 0
		switch obj.Align {
		case "center":
			x = (width - adv) / 2
		case "right":
			x = width - adv
		}
		d.Dot = fixed.P(x, ascent+i*lineHeight)
		d.DrawString(line)
	}

	r.composite(layer, frame, frame, obj.Rotation, obj.Alpha())
	return nil
}

// wrapText breaks text into lines no wider than width, honoring explicit
// newlines. Words longer than width get a line of their own.
func wrapText(d *font.Drawer, text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if d.MeasureString(candidate).Ceil() <= width {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = w
		}
		lines = append(lines, line)
	}
	return lines
}

func (r *renderer) shape(obj models.CanvasObject, frame geometry.Bounds) error {
	var ellipse bool
	switch obj.Shape {
	case "", "rect", "rectangle", "square":
	case "ellipse", "circle":
		ellipse = true
	default:
		return fmt.Errorf("%w: shape %q", ErrUnsupportedObject, obj.Shape)
	}

	layer := r.layer(frame)
	w, h := float32(layer.Bounds().Dx()), float32(layer.Bounds().Dy())

	if obj.Fill != "" {
		c, err := ParseColor(obj.Fill)
		if err != nil {
			slog.Warn("Ignoring shape fill", "object_id", obj.ID, "fill", obj.Fill, "err", err)
		} else {
			z := vector.NewRasterizer(int(w), int(h))
			shapePath(z, 0, 0, w, h, ellipse, false)
			z.Draw(layer, layer.Bounds(), image.NewUniform(c), image.Point{})
		}
	}

	if obj.Stroke != "" {
		c, err := ParseColor(obj.Stroke)
		if err != nil {
			slog.Warn("Ignoring shape stroke", "object_id", obj.ID, "stroke", obj.Stroke, "err", err)
		} else {
			sw := obj.StrokeWidth
			if sw <= 0 {
				sw = defaultStrokeSize
			}
			inset := float32(sw * r.t.scale)
			z := vector.NewRasterizer(int(w), int(h))
			shapePath(z, 0, 0, w, h, ellipse, false)
			if 2*inset < w && 2*inset < h {
				shapePath(z, inset, inset, w-inset, h-inset, ellipse, true)
			}
			z.Draw(layer, layer.Bounds(), image.NewUniform(c), image.Point{})
		}
	}

	r.composite(layer, frame, frame, obj.Rotation, obj.Alpha())
	return nil
}

// shapePath adds a closed rectangle or ellipse spanning (x0,y0)-(x1,y1).
// Reversed paths wind the other way so they cut holes.
func shapePath(z *vector.Rasterizer, x0, y0, x1, y1 float32, ellipse, reverse bool) {
	if !ellipse {
		if reverse {
			z.MoveTo(x0, y0)
			z.LineTo(x0, y1)
			z.LineTo(x1, y1)
			z.LineTo(x1, y0)
		} else {
			z.MoveTo(x0, y0)
			z.LineTo(x1, y0)
			z.LineTo(x1, y1)
			z.LineTo(x0, y1)
		}
		z.ClosePath()
		return
	}

	cx, cy := (x0+x1)/2, (y0+y1)/2
	rx, ry := (x1-x0)/2, (y1-y0)/2
	kx, ky := rx*ellipseKappa, ry*ellipseKappa
	if reverse {
		z.MoveTo(cx+rx, cy)
		z.CubeTo(cx+rx, cy-ky, cx+kx, cy-ry, cx, cy-ry)
		z.CubeTo(cx-kx, cy-ry, cx-rx, cy-ky, cx-rx, cy)
		z.CubeTo(cx-rx, cy+ky, cx-kx, cy+ry, cx, cy+ry)
		z.CubeTo(cx+kx, cy+ry, cx+rx, cy+ky, cx+rx, cy)
	} else {
		z.MoveTo(cx+rx, cy)
		z.CubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
		z.CubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
		z.CubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
		z.CubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	}
	z.ClosePath()
}
