package snap

import (
	"log/slog"

	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/models"
)

// Engine binds the snapping functions to one canvas for the duration of a
// drag interaction.
type Engine struct {
	Canvas geometry.Size
	Config Config
}

// NewEngine creates an engine for a canvas of the given size.
func NewEngine(canvas geometry.Size, cfg Config) *Engine {
	return &Engine{Canvas: canvas, Config: cfg}
}

// Drag computes the snapped position of obj among objects for one drag frame.
func (e *Engine) Drag(obj models.CanvasObject, objects []models.CanvasObject) Result {
	lines := ComputeSnapLines(e.Canvas, objects, obj.ID)
	return FindNearestSnap(obj.X, obj.Y, obj.Width, obj.Height, lines, e.Config)
}

// Commit writes the snapped position back into the object with the given id
// at drag end. It returns false when the object is not in the list.
func (e *Engine) Commit(objects []models.CanvasObject, id string, res Result) bool {
	for i := range objects {
		if objects[i].ID != id {
			continue
		}
		objects[i].X = res.X
		objects[i].Y = res.Y
		slog.Debug("Snap committed", "object_id", id, "x", res.X, "y", res.Y, "snapped_x", res.SnappedX, "snapped_y", res.SnappedY)
		return true
	}
	return false
}
