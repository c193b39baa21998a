package snap

import (
	"math"
	"testing"

	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/models"
)

var canvas800 = geometry.Size{Width: 800, Height: 600}

func TestComputeSnapLines(t *testing.T) {
	objects := []models.CanvasObject{
		{ID: "dragged", X: 10, Y: 10, Width: 20, Height: 20},
		{ID: "other", X: 100, Y: 200, Width: 50, Height: 40},
	}

	lines := ComputeSnapLines(canvas800, objects, "dragged")
	if len(lines) != 12 {
		t.Fatalf("Expected 12 lines, got %d", len(lines))
	}

	expected := []struct {
		typ models.SnapLineType
		dir models.SnapDirection
		pos float64
	}{
		{models.SnapCanvas, models.Vertical, 0},
		{models.SnapCanvas, models.Vertical, 400},
		{models.SnapCanvas, models.Vertical, 800},
		{models.SnapCanvas, models.Horizontal, 0},
		{models.SnapCanvas, models.Horizontal, 300},
		{models.SnapCanvas, models.Horizontal, 600},
		{models.SnapObject, models.Vertical, 100},
		{models.SnapObject, models.Vertical, 125},
		{models.SnapObject, models.Vertical, 150},
		{models.SnapObject, models.Horizontal, 200},
		{models.SnapObject, models.Horizontal, 220},
		{models.SnapObject, models.Horizontal, 240},
	}
	for i, e := range expected {
		l := lines[i]
		if l.Type != e.typ || l.Direction != e.dir || l.Position != e.pos {
			t.Errorf("line %d: expected %s/%s@%v, got %s/%s@%v", i, e.typ, e.dir, e.pos, l.Type, l.Direction, l.Position)
		}
		if e.typ == models.SnapObject && l.SourceObjectID != "other" {
			t.Errorf("line %d: expected source object 'other', got %q", i, l.SourceObjectID)
		}
	}
}

func TestComputeSnapLinesNegativeWidth(t *testing.T) {
	objects := []models.CanvasObject{{ID: "flipped", X: 200, Y: 0, Width: -100, Height: 10}}
	lines := ComputeSnapLines(canvas800, objects, "")
	if lines[6].Position != 100 || lines[7].Position != 150 || lines[8].Position != 200 {
		t.Errorf("Expected normalized edges 100/150/200, got %v/%v/%v", lines[6].Position, lines[7].Position, lines[8].Position)
	}
}

// Object at x=395, width=10 is centered on the 800px canvas already.
func TestFindNearestSnapCenteredNoOp(t *testing.T) {
	lines := ComputeSnapLines(canvas800, nil, "")
	res := FindNearestSnap(395, 50, 10, 10, lines, Config{Threshold: 8, Enabled: true})

	if !res.SnappedX {
		t.Fatal("Expected SnappedX=true")
	}
	if res.X != 395 {
		t.Errorf("Expected x unchanged at 395, got %v", res.X)
	}
	if len(res.ActiveLines) == 0 || res.ActiveLines[0].Position != 400 {
		t.Errorf("Expected active canvas center line at 400, got %+v", res.ActiveLines)
	}
}

func TestFindNearestSnapWithinThreshold(t *testing.T) {
	lines := ComputeSnapLines(canvas800, []models.CanvasObject{
		{ID: "anchor", X: 300, Y: 100, Width: 100, Height: 100},
	}, "dragged")
	cfg := Config{Threshold: 8, Enabled: true}
	const w, h = 30.0, 20.0

	for _, delta := range []float64{-8, -5, -0.5, 0, 3, 7.9, 8} {
		// left edge near anchor's right edge (400) with nothing closer
		x := 400 + delta
		res := FindNearestSnap(x, 500, w, h, lines, cfg)
		if !res.SnappedX {
			t.Errorf("delta %v: expected SnappedX", delta)
			continue
		}
		b := geometry.BoundsOf(res.X, 500, w, h)
		onLine := false
		for _, pos := range []float64{400, 350, 300, 0, 800} {
			if b.Left == pos || b.CenterX == pos || b.Right == pos {
				onLine = true
			}
		}
		if !onLine {
			t.Errorf("delta %v: snapped x=%v does not place an edge on a line", delta, res.X)
		}
		if math.Abs(res.X-x) > cfg.Threshold {
			t.Errorf("delta %v: moved %v, more than threshold", delta, math.Abs(res.X-x))
		}
	}
}

func TestFindNearestSnapEdges(t *testing.T) {
	lines := []models.SnapLine{
		{Type: models.SnapObject, Direction: models.Vertical, Position: 500, SourceObjectID: "a"},
		{Type: models.SnapObject, Direction: models.Horizontal, Position: 250, SourceObjectID: "a"},
	}
	cfg := Config{Threshold: 10, Enabled: true}

	tests := []struct {
		name  string
		x, y  float64
		wantX float64
		wantY float64
	}{
		{"left edge", 497, 0, 500, 0},
		{"center edge", 446, 0, 450, 0},
		{"right edge", 395, 0, 400, 0},
		{"top edge", 0, 244, 0, 250},
		{"middle edge", 0, 202, 0, 200},
		{"bottom edge", 0, 153, 0, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FindNearestSnap(tt.x, tt.y, 100, 100, lines, cfg)
			if tt.wantX != tt.x && (!res.SnappedX || res.X != tt.wantX) {
				t.Errorf("Expected x=%v snapped, got x=%v snapped=%v", tt.wantX, res.X, res.SnappedX)
			}
			if tt.wantY != tt.y && (!res.SnappedY || res.Y != tt.wantY) {
				t.Errorf("Expected y=%v snapped, got y=%v snapped=%v", tt.wantY, res.Y, res.SnappedY)
			}
		})
	}
}

func TestFindNearestSnapOutOfThreshold(t *testing.T) {
	lines := ComputeSnapLines(geometry.Size{Width: 1000, Height: 1000}, nil, "")
	cfg := Config{Threshold: 8, Enabled: true}

	// edges at 100/105/110 and 700/705/710: far from 0, 500, 1000
	res := FindNearestSnap(100, 700, 10, 10, lines, cfg)
	if res.SnappedX || res.SnappedY {
		t.Errorf("Expected no snap, got %+v", res)
	}
	if res.X != 100 || res.Y != 700 {
		t.Errorf("Expected coordinates unchanged, got (%v,%v)", res.X, res.Y)
	}
	if len(res.ActiveLines) != 0 {
		t.Errorf("Expected no active lines, got %d", len(res.ActiveLines))
	}
}

func TestFindNearestSnapDisabled(t *testing.T) {
	lines := ComputeSnapLines(canvas800, nil, "")
	res := FindNearestSnap(1, 1, 10, 10, lines, Config{Threshold: 8})
	if res.SnappedX || res.SnappedY || res.X != 1 || res.Y != 1 {
		t.Errorf("Expected passthrough when disabled, got %+v", res)
	}
}

func TestFindNearestSnapAxesIndependent(t *testing.T) {
	lines := ComputeSnapLines(canvas800, nil, "")
	res := FindNearestSnap(3, 150, 10, 10, lines, Config{Threshold: 8, Enabled: true})
	if !res.SnappedX || res.X != 0 {
		t.Errorf("Expected x snapped to 0, got %+v", res)
	}
	if res.SnappedY || res.Y != 150 {
		t.Errorf("Expected y untouched, got %+v", res)
	}
}

func TestFindNearestSnapTieBreak(t *testing.T) {
	lines := []models.SnapLine{
		{Type: models.SnapCanvas, Direction: models.Vertical, Position: 100},
		{Type: models.SnapObject, Direction: models.Vertical, Position: 110, SourceObjectID: "b"},
	}
	// left edge at 105 is 5 from both lines; the first line wins
	res := FindNearestSnap(105, 0, 50, 10, lines, Config{Threshold: 8, Enabled: true})
	if res.X != 100 {
		t.Errorf("Expected first line to win tie, got x=%v", res.X)
	}
	if res.ActiveLines[0].Type != models.SnapCanvas {
		t.Errorf("Expected canvas line active, got %+v", res.ActiveLines[0])
	}
}

func TestActiveLineStretch(t *testing.T) {
	lines := []models.SnapLine{
		{Type: models.SnapObject, Direction: models.Vertical, Position: 100, Start: 10, End: 20, SourceObjectID: "a"},
	}
	res := FindNearestSnap(98, 300, 10, 50, lines, Config{Threshold: 8, Enabled: true})
	if len(res.ActiveLines) != 1 {
		t.Fatalf("Expected 1 active line, got %d", len(res.ActiveLines))
	}
	l := res.ActiveLines[0]
	if l.Start != 10 || l.End != 350 {
		t.Errorf("Expected line stretched to [10,350], got [%v,%v]", l.Start, l.End)
	}
}

func TestEngineDragAndCommit(t *testing.T) {
	objects := []models.CanvasObject{
		{ID: "a", X: 0, Y: 0, Width: 100, Height: 100},
		{ID: "b", X: 104, Y: 300, Width: 50, Height: 50},
	}
	e := NewEngine(canvas800, DefaultConfig())

	res := e.Drag(objects[1], objects)
	if !res.SnappedX || res.X != 100 {
		t.Fatalf("Expected b to snap to a's right edge, got %+v", res)
	}
	if !e.Commit(objects, "b", res) {
		t.Fatal("Expected commit to find object b")
	}
	if objects[1].X != 100 {
		t.Errorf("Expected committed x=100, got %v", objects[1].X)
	}
	if e.Commit(objects, "missing", res) {
		t.Error("Expected commit of unknown object to fail")
	}
}
