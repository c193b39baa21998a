// Package geometry provides the coordinate types and unit conversions shared by
// the compositor packages.
package geometry

import "math"

// MmPerInch is the only unit constant the compositor relies on.
const MmPerInch = 25.4

// Point is a 2D point in canvas pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the sum of two points.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Midpoint returns the point halfway between p and other.
func (p Point) Midpoint(other Point) Point {
	return Point{X: (p.X + other.X) / 2, Y: (p.Y + other.Y) / 2}
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Aspect returns width divided by height, or 0 for a degenerate size.
func (s Size) Aspect() float64 {
	if s.Height == 0 {
		return 0
	}
	return s.Width / s.Height
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Size returns the rectangle's dimensions.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Bounds returns the normalized edges of the rectangle.
func (r Rect) Bounds() Bounds {
	return BoundsOf(r.X, r.Y, r.Width, r.Height)
}

// Bounds holds the axis-aligned edges and centers of a positioned box.
// Left <= Right and Top <= Bottom even when the source size is negative.
type Bounds struct {
	Left    float64
	Right   float64
	Top     float64
	Bottom  float64
	CenterX float64
	CenterY float64
}

// BoundsOf computes the bounding edges of a box placed at (x, y) with the
// given size. Negative sizes, which occur while an object is being dragged
// past its own anchor, are normalized.
func BoundsOf(x, y, width, height float64) Bounds {
	left, right := minMax(x, x+width)
	top, bottom := minMax(y, y+height)
	return Bounds{
		Left:    left,
		Right:   right,
		Top:     top,
		Bottom:  bottom,
		CenterX: x + width/2,
		CenterY: y + height/2,
	}
}

// Width returns Right-Left.
func (b Bounds) Width() float64 { return b.Right - b.Left }

// Height returns Bottom-Top.
func (b Bounds) Height() float64 { return b.Bottom - b.Top }

// OverlapsInterval reports whether the half-open interval [lo, hi) overlaps
// [start, end). An empty interval (lo == hi) overlaps when lo lies in
// [start, end).
func OverlapsInterval(lo, hi, start, end float64) bool {
	if lo == hi {
		return lo >= start && lo < end
	}
	return lo < end && hi > start
}

// MmToPx converts millimeters to pixels at the given DPI.
func MmToPx(mm, dpi float64) float64 {
	return mm / MmPerInch * dpi
}

// PxToMm converts pixels at the given DPI to millimeters.
func PxToMm(px, dpi float64) float64 {
	return px / dpi * MmPerInch
}

// InchesToMm converts inches to millimeters.
func InchesToMm(in float64) float64 {
	return in * MmPerInch
}

// CeilPx rounds a converted pixel length up to a whole pixel, ignoring
// floating point noise on values that are already integral.
func CeilPx(px float64) float64 {
	return math.Ceil(px - 1e-9)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func minMax(a, b float64) (float64, float64) {
	if a <= b {
		return a, b
	}
	return b, a
}
