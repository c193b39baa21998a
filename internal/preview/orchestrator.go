// Package preview owns the per-session render cache: it renders pages on
// demand, deduplicates concurrent requests for the same page and runs
// cancellable full passes.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/render"
)

// Renderer paints one design. *render.Pipeline satisfies it.
type Renderer interface {
	Render(ctx context.Context, design *models.Design, variant models.VariantConfig, opts render.ExportOptions) (*image.RGBA, error)
}

// PassStatus tells how a full pass ended.
type PassStatus string

const (
	PassCompleted PassStatus = "completed"
	// PassAborted means a newer pass, ClearCache or the caller cancelled the
	// pass between two pages. It is not a failure.
	PassAborted PassStatus = "aborted"
)

// PassResult summarizes a RenderAllPages call.
type PassResult struct {
	Status   PassStatus `json:"status"`
	Rendered int        `json:"rendered"`
	Skipped  int        `json:"skipped"`
	Failed   int        `json:"failed"`
}

// Options tune an orchestrator.
type Options struct {
	Export        render.ExportOptions
	ThumbnailSize int
	// PageURL builds the URL published in PreviewPage.ImageURL and
	// ThumbnailURL. When nil the encoded bitmaps are published as data URLs.
	PageURL func(index int, id string, thumbnail bool) string
}

// DefaultOptions renders screen previews with 240px thumbnails.
func DefaultOptions() Options {
	return Options{Export: render.PreviewOptions(), ThumbnailSize: 240}
}

type cached struct {
	image     []byte
	thumbnail []byte
}

// Orchestrator caches rendered pages of one editing session.
type Orchestrator struct {
	renderer Renderer
	designs  []models.Design
	variant  models.VariantConfig
	opts     Options

	mu         sync.RWMutex
	revisions  []uint64
	pages      []models.PreviewPage
	index      map[string]int
	cache      map[string]*cached
	generation uint64

	inflight inFlight

	passMu     sync.Mutex
	passSeq    uint64
	cancelPass context.CancelFunc
}

// New creates an orchestrator for designs. All pages start uncached.
func New(renderer Renderer, designs []models.Design, variant models.VariantConfig, opts Options) *Orchestrator {
	o := &Orchestrator{
		renderer:  renderer,
		designs:   slices.Clone(designs),
		variant:   variant,
		opts:      opts,
		revisions: make([]uint64, len(designs)),
		pages:     make([]models.PreviewPage, len(designs)),
		index:     make(map[string]int, len(designs)),
		cache:     make(map[string]*cached),
	}
	for i, d := range designs {
		o.pages[i] = models.PreviewPage{ID: d.ID, Label: d.Label, State: models.PageUncached}
		o.index[d.ID] = i
	}
	return o
}

// Len returns the number of pages.
func (o *Orchestrator) Len() int {
	return len(o.designs)
}

// Design returns the design at index.
func (o *Orchestrator) Design(index int) (models.Design, bool) {
	if index < 0 || index >= len(o.designs) {
		return models.Design{}, false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.designs[index], true
}

// Designs returns a snapshot of every design.
func (o *Orchestrator) Designs() []models.Design {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.Design, len(o.designs))
	copy(out, o.designs)
	return out
}

// UpdateDesign replaces the design at index after an edit and drops its
// cached bitmaps. A render of the previous revision that is still running
// is discarded when it finishes. d must not share its Objects backing array
// with the previous revision.
func (o *Orchestrator) UpdateDesign(index int, d models.Design) error {
	if index < 0 || index >= len(o.designs) {
		return fmt.Errorf("page index %d out of range [0,%d)", index, len(o.designs))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	old := o.designs[index]
	delete(o.cache, old.ID)
	delete(o.index, old.ID)
	o.designs[index] = d
	o.revisions[index]++
	o.index[d.ID] = index
	o.pages[index] = models.PreviewPage{ID: d.ID, Label: d.Label, State: models.PageUncached}
	return nil
}

// Variant returns the variant every page is rendered with.
func (o *Orchestrator) Variant() models.VariantConfig {
	return o.variant
}

// Pages returns a snapshot of every page.
func (o *Orchestrator) Pages() []models.PreviewPage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.PreviewPage, len(o.pages))
	copy(out, o.pages)
	return out
}

// Page returns a snapshot of the page with the given design id.
func (o *Orchestrator) Page(id string) (models.PreviewPage, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	i, ok := o.index[id]
	if !ok {
		return models.PreviewPage{}, false
	}
	return o.pages[i], true
}

// Image returns the encoded bitmap of a cached page.
func (o *Orchestrator) Image(id string) ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.cache[id]
	if !ok {
		return nil, false
	}
	return c.image, true
}

// Thumbnail returns the encoded thumbnail of a cached page.
func (o *Orchestrator) Thumbnail(id string) ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.cache[id]
	if !ok {
		return nil, false
	}
	return c.thumbnail, true
}

// ContentType is the media type of Image and Thumbnail.
func (o *Orchestrator) ContentType() string {
	return o.opts.Export.Format.MIMEType()
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeRendered
	outcomeFailed
)

// RenderPage renders the page at index unless it is cached or already
// rendering, in which case it returns false and no error. Callers that need
// the bitmap must re-check the cache afterwards.
func (o *Orchestrator) RenderPage(ctx context.Context, index int) (bool, error) {
	if index < 0 || index >= len(o.designs) {
		return false, fmt.Errorf("page index %d out of range [0,%d)", index, len(o.designs))
	}
	out, err := o.renderOne(ctx, index)
	return out == outcomeRendered, err
}

// RenderAdjacentPages renders index and its direct neighbours concurrently.
// Page failures are logged and leave the page uncached.
func (o *Orchestrator) RenderAdjacentPages(ctx context.Context, index int) error {
	if index < 0 || index >= len(o.designs) {
		return fmt.Errorf("page index %d out of range [0,%d)", index, len(o.designs))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := max(index-1, 0); i <= min(index+1, len(o.designs)-1); i++ {
		g.Go(func() error {
			if _, err := o.renderOne(gctx, i); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	return g.Wait()
}

// RenderAllPages renders every page in order, skipping cached and in-flight
// pages, and reports progress 0..100 after each page. Starting a pass
// aborts the previous one. Cancellation is observed between pages only.
func (o *Orchestrator) RenderAllPages(ctx context.Context, onProgress func(int)) (PassResult, error) {
	passCtx, cancel := context.WithCancel(ctx)

	o.passMu.Lock()
	if o.cancelPass != nil {
		o.cancelPass()
	}
	o.passSeq++
	seq := o.passSeq
	o.cancelPass = cancel
	o.passMu.Unlock()

	defer func() {
		o.passMu.Lock()
		if o.passSeq == seq {
			o.cancelPass = nil
		}
		o.passMu.Unlock()
		cancel()
	}()

	report := func(p int) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	var res PassResult
	n := len(o.designs)
	if n == 0 {
		report(100)
		res.Status = PassCompleted
		return res, nil
	}

	// A started page runs to completion even if the pass is aborted.
	pageCtx := context.WithoutCancel(passCtx)

	for i := range o.designs {
		if passCtx.Err() != nil {
			res.Status = PassAborted
			slog.Info("Render pass aborted", "pass", seq, "done", i, "total", n)
			return res, nil
		}

		out, _ := o.renderOne(pageCtx, i)
		switch out {
		case outcomeRendered:
			res.Rendered++
		case outcomeFailed:
			res.Failed++
		default:
			res.Skipped++
		}
		report((i + 1) * 100 / n)
	}

	res.Status = PassCompleted
	slog.Debug("Render pass completed", "pass", seq, "rendered", res.Rendered, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// ClearCache releases every encoded bitmap, forgets in-flight renders,
// aborts the active pass and resets all pages to uncached. Renders that
// finish afterwards are discarded.
func (o *Orchestrator) ClearCache() {
	o.passMu.Lock()
	if o.cancelPass != nil {
		o.cancelPass()
		o.cancelPass = nil
	}
	o.passMu.Unlock()

	o.mu.Lock()
	o.generation++
	for id, c := range o.cache {
		c.image, c.thumbnail = nil, nil
		delete(o.cache, id)
	}
	for i := range o.pages {
		o.pages[i].State = models.PageUncached
		o.pages[i].ImageURL = ""
		o.pages[i].ThumbnailURL = ""
	}
	o.inflight.Reset()
	o.mu.Unlock()

	slog.Debug("Preview cache cleared", "pages", len(o.pages))
}

// Close clears the cache and waits for in-flight renders to return.
func (o *Orchestrator) Close(ctx context.Context) {
	o.ClearCache()
	o.inflight.WaitAll(ctx)
}

func (o *Orchestrator) renderOne(ctx context.Context, i int) (outcome, error) {
	o.mu.RLock()
	d := o.designs[i]
	rev := o.revisions[i]
	gen := o.generation
	_, hit := o.cache[d.ID]
	o.mu.RUnlock()
	if hit {
		return outcomeSkipped, nil
	}
	if !o.inflight.TryLock(d.ID, gen) {
		return outcomeSkipped, nil
	}
	defer o.inflight.Unlock(d.ID, gen)

	if !o.transition(i, gen, rev, models.PageRendering) {
		return outcomeSkipped, nil
	}

	entry, err := o.paint(ctx, &d)
	if err != nil {
		slog.Warn("Failed to render page", "design_id", d.ID, "index", i, "err", err)
		o.transition(i, gen, rev, models.PageUncached)
		return outcomeFailed, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generation != gen || o.revisions[i] != rev {
		return outcomeSkipped, nil
	}
	o.cache[d.ID] = entry
	o.pages[i].State = models.PageCached
	o.pages[i].ImageURL = o.url(i, d.ID, false, entry.image)
	o.pages[i].ThumbnailURL = o.url(i, d.ID, true, entry.thumbnail)
	return outcomeRendered, nil
}

// transition sets the state of page i unless the cache was cleared or the
// design replaced since the render started, or the page is already cached.
func (o *Orchestrator) transition(i int, gen, rev uint64, state models.PageState) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generation != gen || o.revisions[i] != rev {
		return false
	}
	if _, hit := o.cache[o.pages[i].ID]; hit {
		return false
	}
	o.pages[i].State = state
	return true
}

func (o *Orchestrator) paint(ctx context.Context, d *models.Design) (*cached, error) {
	img, err := o.renderer.Render(ctx, d, o.variant, o.opts.Export)
	if err != nil {
		return nil, err
	}

	var full bytes.Buffer
	if err := render.Encode(&full, img, o.opts.Export); err != nil {
		return nil, err
	}

	entry := &cached{image: full.Bytes()}
	if o.opts.ThumbnailSize > 0 {
		var thumb bytes.Buffer
		if err := render.Encode(&thumb, render.Thumbnail(img, o.opts.ThumbnailSize), o.opts.Export); err != nil {
			return nil, err
		}
		entry.thumbnail = thumb.Bytes()
	}
	return entry, nil
}

func (o *Orchestrator) url(i int, id string, thumbnail bool, data []byte) string {
	if data == nil {
		return ""
	}
	if o.opts.PageURL != nil {
		return o.opts.PageURL(i, id, thumbnail)
	}
	return render.DataURL(data, o.opts.Export.Format)
}
