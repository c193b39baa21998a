// Package snap computes alignment guides for a dragged object and resolves
// the nearest guide within a pixel threshold on each axis.
package snap

import (
	"math"

	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/models"
)

// DefaultThreshold is the snapping distance in canvas pixels.
const DefaultThreshold = 8

// Config controls snapping.
type Config struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Enabled   bool    `json:"enabled" yaml:"enabled"`
}

// DefaultConfig returns an enabled config with the default threshold.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, Enabled: true}
}

// Result is the outcome of FindNearestSnap. ActiveLines holds at most one
// line per axis, stretched to cover both the guide and the dragged object.
type Result struct {
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	SnappedX    bool              `json:"snappedX"`
	SnappedY    bool              `json:"snappedY"`
	ActiveLines []models.SnapLine `json:"activeLines"`
}

// ComputeSnapLines returns the canvas guides followed by the guides of every
// object except excludeID. Vertical lines come in left/center/right order and
// horizontal lines in top/center/bottom order.
func ComputeSnapLines(canvas geometry.Size, objects []models.CanvasObject, excludeID string) []models.SnapLine {
	lines := make([]models.SnapLine, 0, 6+6*len(objects))

	for _, pos := range []float64{0, canvas.Width / 2, canvas.Width} {
		lines = append(lines, models.SnapLine{
			Type:      models.SnapCanvas,
			Direction: models.Vertical,
			Position:  pos,
			Start:     0,
			End:       canvas.Height,
		})
	}
	for _, pos := range []float64{0, canvas.Height / 2, canvas.Height} {
		lines = append(lines, models.SnapLine{
			Type:      models.SnapCanvas,
			Direction: models.Horizontal,
			Position:  pos,
			Start:     0,
			End:       canvas.Width,
		})
	}

	for _, obj := range objects {
		if obj.ID == excludeID {
			continue
		}
		b := geometry.BoundsOf(obj.X, obj.Y, obj.Width, obj.Height)
		for _, pos := range []float64{b.Left, b.CenterX, b.Right} {
			lines = append(lines, models.SnapLine{
				Type:           models.SnapObject,
				Direction:      models.Vertical,
				Position:       pos,
				SourceObjectID: obj.ID,
				Start:          b.Top,
				End:            b.Bottom,
			})
		}
		for _, pos := range []float64{b.Top, b.CenterY, b.Bottom} {
			lines = append(lines, models.SnapLine{
				Type:           models.SnapObject,
				Direction:      models.Horizontal,
				Position:       pos,
				SourceObjectID: obj.ID,
				Start:          b.Left,
				End:            b.Right,
			})
		}
	}

	return lines
}

// match is the best candidate found on one axis. offset is the distance from
// the anchor coordinate (x or y) to the winning edge.
type match struct {
	line     models.SnapLine
	offset   float64
	distance float64
	found    bool
}

// FindNearestSnap snaps the box at (x, y) with the given size to the closest
// line within cfg.Threshold. The two axes are resolved independently; an axis
// with no line in range keeps its input coordinate.
func FindNearestSnap(x, y, width, height float64, lines []models.SnapLine, cfg Config) Result {
	result := Result{X: x, Y: y, ActiveLines: []models.SnapLine{}}
	if !cfg.Enabled {
		return result
	}

	vertical := nearest(x, []float64{0, width / 2, width}, lines, models.Vertical, cfg.Threshold)
	if vertical.found {
		result.X = vertical.line.Position - vertical.offset
		result.SnappedX = true
		b := geometry.BoundsOf(result.X, y, width, height)
		result.ActiveLines = append(result.ActiveLines, stretch(vertical.line, b.Top, b.Bottom))
	}

	horizontal := nearest(y, []float64{0, height / 2, height}, lines, models.Horizontal, cfg.Threshold)
	if horizontal.found {
		result.Y = horizontal.line.Position - horizontal.offset
		result.SnappedY = true
		b := geometry.BoundsOf(result.X, result.Y, width, height)
		result.ActiveLines = append(result.ActiveLines, stretch(horizontal.line, b.Left, b.Right))
	}

	return result
}

// nearest scans edge offsets in declaration order against lines of one direction.
// Ties keep the first candidate encountered.
func nearest(anchor float64, offsets []float64, lines []models.SnapLine, dir models.SnapDirection, threshold float64) match {
	best := match{distance: math.Inf(1)}
	for _, off := range offsets {
		pos := anchor + off
		for _, line := range lines {
			if line.Direction != dir {
				continue
			}
			d := math.Abs(pos - line.Position)
			if d <= threshold && d < best.distance {
				best = match{line: line, offset: off, distance: d, found: true}
			}
		}
	}
	return best
}

func stretch(line models.SnapLine, lo, hi float64) models.SnapLine {
	line.Start = math.Min(line.Start, lo)
	line.End = math.Max(line.End, hi)
	return line
}
