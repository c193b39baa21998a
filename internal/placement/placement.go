// Package placement computes where a newly inserted image lands on a page
// and bridges asset ingestion into the design model.
package placement

import (
	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/models"
)

// FitMode selects how an asset is fitted into its target area.
type FitMode string

const (
	// FitCover fills the target and crops the overflowing content.
	FitCover FitMode = "cover"
	// FitContain shrinks the frame to the asset's aspect ratio.
	FitContain FitMode = "contain"
)

// Placement is the frame and content-crop geometry of a new image object.
// Content coordinates are relative to the frame's top-left corner.
type Placement struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	ContentX      float64 `json:"contentX"`
	ContentY      float64 `json:"contentY"`
	ContentWidth  float64 `json:"contentWidth"`
	ContentHeight float64 `json:"contentHeight"`
}

// Apply copies the placement into obj.
func (p Placement) Apply(obj *models.CanvasObject) {
	obj.X, obj.Y = p.X, p.Y
	obj.Width, obj.Height = p.Width, p.Height
	obj.ContentX, obj.ContentY = p.ContentX, p.ContentY
	obj.ContentWidth, obj.ContentHeight = p.ContentWidth, p.ContentHeight
}

// ComputeDefaultImagePlacement places an asset of the given intrinsic size
// into target.
func ComputeDefaultImagePlacement(asset geometry.Size, target geometry.Rect, mode FitMode) Placement {
	if asset.Width <= 0 || asset.Height <= 0 || target.Width <= 0 || target.Height <= 0 {
		return Placement{
			X: target.X, Y: target.Y,
			Width: target.Width, Height: target.Height,
			ContentWidth: target.Width, ContentHeight: target.Height,
		}
	}

	sx := target.Width / asset.Width
	sy := target.Height / asset.Height

	if mode == FitContain {
		s := min(sx, sy)
		w, h := asset.Width*s, asset.Height*s
		return Placement{
			X:            target.X + (target.Width-w)/2,
			Y:            target.Y + (target.Height-h)/2,
			Width:        w,
			Height:       h,
			ContentWidth: w, ContentHeight: h,
		}
	}

	s := max(sx, sy)
	cw, ch := asset.Width*s, asset.Height*s
	return Placement{
		X:             target.X,
		Y:             target.Y,
		Width:         target.Width,
		Height:        target.Height,
		ContentX:      (target.Width - cw) / 2,
		ContentY:      (target.Height - ch) / 2,
		ContentWidth:  cw,
		ContentHeight: ch,
	}
}

// ComputeSpreadImagePlacement places an asset on one page of a spread, or
// across the whole spread when side is SideNone. page is the size of a
// single page in design pixels.
func ComputeSpreadImagePlacement(asset geometry.Size, page geometry.Size, side models.Side, mode FitMode) Placement {
	target := geometry.Rect{Width: page.Width, Height: page.Height}
	switch side {
	case models.SideRight:
		target.X = page.Width
	case models.SideNone:
		target.Width = page.Width * 2
	}
	return ComputeDefaultImagePlacement(asset, target, mode)
}
