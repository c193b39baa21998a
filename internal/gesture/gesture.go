// Package gesture turns raw multi-pointer input into a view scale and pan
// offset. It never touches design data.
package gesture

import (
	"sync"

	"github.com/mediprint/compositor/internal/geometry"
)

const (
	DefaultMinScale = 0.1
	DefaultMaxScale = 3.0
)

// Options configures a Controller. Zero scale bounds fall back to the defaults.
type Options struct {
	MinScale     float64
	MaxScale     float64
	InitialScale float64
	InitialPan   geometry.Point

	// Callbacks run synchronously on every state change, after the
	// controller has released its lock. They must be cheap or debounce.
	OnScaleChange    func(scale float64)
	OnPanChange      func(pan geometry.Point)
	OnReleaseCapture func(pointerID int)
}

// Controller is the pinch-zoom/pan state machine.
type Controller struct {
	mu   sync.Mutex
	opts Options

	scale float64
	pan   geometry.Point

	pointers map[int]geometry.Point
	order    []int // pointer ids in arrival order

	pinching       bool
	pinchDistance  float64
	pinchScale     float64
	pinchMidpoint  geometry.Point
	pinchPan       geometry.Point
	panAnchor      *geometry.Point
	panAnchorStart geometry.Point
}

// New creates a Controller.
func New(opts Options) *Controller {
	if opts.MinScale <= 0 {
		opts.MinScale = DefaultMinScale
	}
	if opts.MaxScale <= 0 {
		opts.MaxScale = DefaultMaxScale
	}
	if opts.MaxScale < opts.MinScale {
		opts.MinScale, opts.MaxScale = opts.MaxScale, opts.MinScale
	}
	scale := opts.InitialScale
	if scale == 0 {
		scale = 1
	}
	return &Controller{
		opts:     opts,
		scale:    geometry.Clamp(scale, opts.MinScale, opts.MaxScale),
		pan:      opts.InitialPan,
		pointers: make(map[int]geometry.Point),
	}
}

// Scale returns the current view scale.
func (c *Controller) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scale
}

// Pan returns the current pan offset.
func (c *Controller) Pan() geometry.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pan
}

// IsPinching reports whether two pointers are driving a pinch.
func (c *Controller) IsPinching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinching
}

// ActivePointers returns the number of pointers currently down.
func (c *Controller) ActivePointers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pointers)
}

// SetScale sets the scale from outside a gesture (zoom buttons, fit-to-view).
func (c *Controller) SetScale(scale float64) {
	c.mu.Lock()
	c.scale = geometry.Clamp(scale, c.opts.MinScale, c.opts.MaxScale)
	s := c.scale
	c.mu.Unlock()
	c.emitScale(s)
}

// SetPan sets the pan offset from outside a gesture.
func (c *Controller) SetPan(pan geometry.Point) {
	c.mu.Lock()
	c.pan = pan
	c.mu.Unlock()
	c.emitPan(pan)
}

// Reset drops all pointers and returns to the initial transform.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.pointers = make(map[int]geometry.Point)
	c.order = nil
	c.pinching = false
	c.panAnchor = nil
	scale := c.opts.InitialScale
	if scale == 0 {
		scale = 1
	}
	c.scale = geometry.Clamp(scale, c.opts.MinScale, c.opts.MaxScale)
	c.pan = c.opts.InitialPan
	s, p := c.scale, c.pan
	c.mu.Unlock()
	c.emitScale(s)
	c.emitPan(p)
}

// PointerDown registers a pointer. The first pointer anchors a pan, the
// second switches to pinch mode.
func (c *Controller) PointerDown(id int, x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt := geometry.Point{X: x, Y: y}
	if _, exists := c.pointers[id]; !exists {
		c.order = append(c.order, id)
	}
	c.pointers[id] = pt

	switch len(c.pointers) {
	case 1:
		c.anchorPan(pt)
	case 2:
		a, b := c.firstTwo()
		c.pinching = true
		c.pinchDistance = a.Distance(b)
		c.pinchScale = c.scale
		c.pinchMidpoint = a.Midpoint(b)
		c.pinchPan = c.pan
		c.panAnchor = nil
	}
}

// PointerMove updates a registered pointer and emits the resulting transform.
// Moves of unknown pointers are ignored.
func (c *Controller) PointerMove(id int, x, y float64) {
	c.mu.Lock()
	if _, ok := c.pointers[id]; !ok {
		c.mu.Unlock()
		return
	}
	pt := geometry.Point{X: x, Y: y}
	c.pointers[id] = pt

	var (
		emitScale, emitPan bool
		scale              float64
		pan                geometry.Point
	)

	switch {
	case c.pinching && len(c.pointers) >= 2:
		a, b := c.firstTwo()
		if c.pinchDistance > 0 {
			c.scale = geometry.Clamp(c.pinchScale*a.Distance(b)/c.pinchDistance, c.opts.MinScale, c.opts.MaxScale)
			emitScale = true
		}
		c.pan = c.pinchPan.Add(a.Midpoint(b).Sub(c.pinchMidpoint))
		emitPan = true
	case len(c.pointers) == 1 && c.panAnchor != nil:
		c.pan = c.panAnchorStart.Add(pt.Sub(*c.panAnchor))
		emitPan = true
	}
	scale, pan = c.scale, c.pan
	c.mu.Unlock()

	if emitScale {
		c.emitScale(scale)
	}
	if emitPan {
		c.emitPan(pan)
	}
}

// PointerUp removes a pointer. When a pinch drops to one pointer, the
// remaining pointer is re-anchored at its current position so the view does
// not jump.
func (c *Controller) PointerUp(id int, x, y float64) {
	c.release(id)
}

// PointerCancel behaves like PointerUp.
func (c *Controller) PointerCancel(id int) {
	c.release(id)
}

func (c *Controller) release(id int) {
	c.mu.Lock()
	if _, ok := c.pointers[id]; !ok {
		c.mu.Unlock()
		return
	}
	before := len(c.pointers)
	delete(c.pointers, id)
	for i, pid := range c.order {
		if pid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	switch len(c.pointers) {
	case 0:
		c.pinching = false
		c.panAnchor = nil
	case 1:
		if before == 2 {
			c.pinching = false
			c.anchorPan(c.pointers[c.order[0]])
		}
	default:
		if c.pinching && before > len(c.pointers) {
			// a pinch pointer left while others remain; restart the pinch
			// from the two oldest pointers
			a, b := c.firstTwo()
			c.pinchDistance = a.Distance(b)
			c.pinchScale = c.scale
			c.pinchMidpoint = a.Midpoint(b)
			c.pinchPan = c.pan
		}
	}
	c.mu.Unlock()

	if c.opts.OnReleaseCapture != nil {
		c.opts.OnReleaseCapture(id)
	}
}

// anchorPan must be called with the lock held.
func (c *Controller) anchorPan(pt geometry.Point) {
	anchor := pt
	c.panAnchor = &anchor
	c.panAnchorStart = c.pan
}

// firstTwo returns the two oldest active pointers. Lock must be held.
func (c *Controller) firstTwo() (geometry.Point, geometry.Point) {
	return c.pointers[c.order[0]], c.pointers[c.order[1]]
}

func (c *Controller) emitScale(s float64) {
	if c.opts.OnScaleChange != nil {
		c.opts.OnScaleChange(s)
	}
}

func (c *Controller) emitPan(p geometry.Point) {
	if c.opts.OnPanChange != nil {
		c.opts.OnPanChange(p)
	}
}
