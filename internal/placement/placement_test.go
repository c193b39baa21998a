package placement

import (
	"testing"

	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/models"
)

func TestComputeDefaultImagePlacement(t *testing.T) {
	target := geometry.Rect{X: 0, Y: 0, Width: 400, Height: 200}

	tests := []struct {
		name     string
		asset    geometry.Size
		mode     FitMode
		expected Placement
	}{
		{
			name:  "cover wide target with square asset",
			asset: geometry.Size{Width: 100, Height: 100},
			mode:  FitCover,
			expected: Placement{
				Width: 400, Height: 200,
				ContentX: 0, ContentY: -100, ContentWidth: 400, ContentHeight: 400,
			},
		},
		{
			name:  "contain square asset",
			asset: geometry.Size{Width: 100, Height: 100},
			mode:  FitContain,
			expected: Placement{
				X: 100, Y: 0, Width: 200, Height: 200,
				ContentWidth: 200, ContentHeight: 200,
			},
		},
		{
			name:  "degenerate asset fills target",
			asset: geometry.Size{},
			mode:  FitCover,
			expected: Placement{
				Width: 400, Height: 200, ContentWidth: 400, ContentHeight: 200,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDefaultImagePlacement(tt.asset, target, tt.mode)
			if got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestComputeSpreadImagePlacement(t *testing.T) {
	page := geometry.Size{Width: 768, Height: 768}
	asset := geometry.Size{Width: 1000, Height: 1000}

	left := ComputeSpreadImagePlacement(asset, page, models.SideLeft, FitCover)
	if left.X != 0 || left.Width != 768 {
		t.Errorf("Expected left page frame, got %+v", left)
	}

	right := ComputeSpreadImagePlacement(asset, page, models.SideRight, FitCover)
	if right.X != 768 || right.Width != 768 {
		t.Errorf("Expected right page frame, got %+v", right)
	}

	full := ComputeSpreadImagePlacement(asset, page, models.SideNone, FitCover)
	if full.X != 0 || full.Width != 1536 || full.ContentHeight != 1536 || full.ContentY != -384 {
		t.Errorf("Expected full spread cover, got %+v", full)
	}
}

func TestPlacementApply(t *testing.T) {
	var obj models.CanvasObject
	p := Placement{X: 1, Y: 2, Width: 3, Height: 4, ContentX: 5, ContentY: 6, ContentWidth: 7, ContentHeight: 8}
	p.Apply(&obj)
	if obj.X != 1 || obj.Height != 4 || obj.ContentX != 5 || obj.ContentHeight != 8 {
		t.Errorf("Apply did not copy placement: %+v", obj)
	}
}
