package geometry

import (
	"math"
	"testing"
)

func TestBoundsOf(t *testing.T) {
	tests := []struct {
		name                     string
		x, y, w, h               float64
		left, right, top, bottom float64
		centerX, centerY         float64
	}{
		{
			name: "positive size",
			x:    10, y: 20, w: 100, h: 50,
			left: 10, right: 110, top: 20, bottom: 70,
			centerX: 60, centerY: 45,
		},
		{
			name: "negative width while dragging",
			x:    100, y: 0, w: -40, h: 10,
			left: 60, right: 100, top: 0, bottom: 10,
			centerX: 80, centerY: 5,
		},
		{
			name: "zero size",
			x:    5, y: 5,
			left: 5, right: 5, top: 5, bottom: 5,
			centerX: 5, centerY: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BoundsOf(tt.x, tt.y, tt.w, tt.h)
			if b.Left != tt.left || b.Right != tt.right || b.Top != tt.top || b.Bottom != tt.bottom {
				t.Errorf("Expected edges %v/%v/%v/%v, got %+v", tt.left, tt.right, tt.top, tt.bottom, b)
			}
			if b.CenterX != tt.centerX || b.CenterY != tt.centerY {
				t.Errorf("Expected center (%v,%v), got (%v,%v)", tt.centerX, tt.centerY, b.CenterX, b.CenterY)
			}
		})
	}
}

func TestOverlapsInterval(t *testing.T) {
	tests := []struct {
		name       string
		lo, hi     float64
		start, end float64
		expected   bool
	}{
		{"inside", 10, 20, 0, 768, true},
		{"touching end is outside", 768, 800, 0, 768, false},
		{"straddling", 700, 800, 0, 768, true},
		{"ending at start is outside", -50, 0, 0, 768, false},
		{"empty interval inside", 5, 5, 0, 768, true},
		{"empty interval at end", 768, 768, 0, 768, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverlapsInterval(tt.lo, tt.hi, tt.start, tt.end); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestUnitConversion(t *testing.T) {
	if got := MmToPx(25.4, 300); got != 300 {
		t.Errorf("Expected 300px, got %v", got)
	}
	if got := PxToMm(96, 96); got != 25.4 {
		t.Errorf("Expected 25.4mm, got %v", got)
	}
	// 8in album page at the editor's 96dpi
	mm := math.Round(InchesToMm(8))
	if mm != 203 {
		t.Errorf("Expected 203mm, got %v", mm)
	}
	if px := CeilPx(MmToPx(mm, 96)); px != 768 {
		t.Errorf("Expected 768px, got %v", px)
	}
	if px := CeilPx(MmToPx(254, 96)); px != 960 {
		t.Errorf("Expected exact conversions to stay put, got %v", px)
	}
}

func TestPointMath(t *testing.T) {
	a := Point{X: 100, Y: 100}
	b := Point{X: 200, Y: 100}
	if d := a.Distance(b); d != 100 {
		t.Errorf("Expected distance 100, got %v", d)
	}
	if m := a.Midpoint(b); m != (Point{X: 150, Y: 100}) {
		t.Errorf("Expected midpoint (150,100), got %+v", m)
	}
	if c := Clamp(5, 0.1, 3); c != 3 {
		t.Errorf("Expected clamp to 3, got %v", c)
	}
}
