// Package export renders every page of a parsed project to disk and records
// what was produced in YAML and Parquet manifests.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/render"
)

// ErrNothingToExport is returned for projects without designs.
var ErrNothingToExport = errors.New("nothing to export")

// Renderer paints one design. *render.Pipeline satisfies it.
type Renderer interface {
	Render(ctx context.Context, design *models.Design, variant models.VariantConfig, opts render.ExportOptions) (*image.RGBA, error)
}

// Options control an export run.
type Options struct {
	OutDir      string
	Export      render.ExportOptions
	Concurrency int
	// Formats selects the manifests to write: "yaml", "parquet" or both.
	// Empty writes both.
	Formats []string
}

// Page is the outcome of exporting one design.
type Page struct {
	Index    int                `yaml:"index"`
	DesignID string             `yaml:"designid"`
	Label    string             `yaml:"label,omitempty"`
	Side     models.Side        `yaml:"side,omitempty"`
	File     string             `yaml:"file,omitempty"`
	Width    int                `yaml:"width,omitempty"`
	Height   int                `yaml:"height,omitempty"`
	Bytes    int64              `yaml:"bytes,omitempty"`
	Quantity int                `yaml:"quantity"`
	Error    string             `yaml:"error,omitempty"`
	Orient   models.Orientation `yaml:"orientation"`
}

// Manifest describes an export run.
type Manifest struct {
	Project     string               `yaml:"project"`
	Category    string               `yaml:"category"`
	Kind        designdata.Kind      `yaml:"kind"`
	Variant     models.VariantConfig `yaml:"variant"`
	Options     render.ExportOptions `yaml:"options"`
	GeneratedAt string               `yaml:"generatedat"`
	Pages       []Page               `yaml:"pages"`
	Exported    int                  `yaml:"exported"`
	Failed      int                  `yaml:"failed"`
	Prints      int                  `yaml:"prints"`
}

// Runner exports parsed projects.
type Runner struct {
	renderer Renderer
	now      func() time.Time
}

// NewRunner creates a runner using renderer.
func NewRunner(renderer Renderer) *Runner {
	return &Runner{renderer: renderer, now: time.Now}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the on-disk name of the page at index.
func FileName(index int, designID string, format render.Format) string {
	return fmt.Sprintf("%03d-%s.%s", index+1, unsafeName.ReplaceAllString(designID, "-"), format.Extension())
}

// Run renders every design of res into opts.OutDir. Pages fail
// independently; the error is non-nil only when nothing could be exported
// or the manifests could not be written.
func (r *Runner) Run(ctx context.Context, res *designdata.Result, opts Options) (*Manifest, error) {
	if res == nil || len(res.Designs) == 0 {
		return nil, ErrNothingToExport
	}
	if err := opts.Export.Validate(); err != nil {
		return nil, fmt.Errorf("invalid export options: %w", err)
	}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	slog.Info("Exporting project", "project", res.ProjectTitle, "pages", len(res.Designs), "dpi", opts.Export.DPI, "concurrency", concurrency)

	pages := make([]Page, len(res.Designs))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i := range res.Designs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			pages[idx] = r.exportPage(ctx, idx, &res.Designs[idx], res.VariantConfig, opts)
		}(i)
	}
	wg.Wait()

	m := &Manifest{
		Project:     res.ProjectTitle,
		Category:    res.CategorySlug,
		Kind:        res.Kind,
		Variant:     res.VariantConfig,
		Options:     opts.Export,
		GeneratedAt: r.now().UTC().Format(time.RFC3339),
		Pages:       pages,
	}
	for _, p := range pages {
		if p.Error != "" {
			m.Failed++
			continue
		}
		m.Exported++
		m.Prints += p.Quantity
	}

	if err := writeManifests(m, opts); err != nil {
		return m, err
	}

	if m.Exported == 0 {
		return m, fmt.Errorf("all %d pages failed to export", m.Failed)
	}
	slog.Info("Export finished", "exported", m.Exported, "failed", m.Failed, "prints", m.Prints, "dir", opts.OutDir)
	return m, nil
}

func (r *Runner) exportPage(ctx context.Context, idx int, d *models.Design, variant models.VariantConfig, opts Options) Page {
	p := Page{
		Index:    idx,
		DesignID: d.ID,
		Label:    d.Label,
		Side:     d.Side,
		Quantity: max(d.Quantity, 1),
		Orient:   d.Orientation,
	}

	fail := func(err error) Page {
		slog.Warn("Failed to export page", "design_id", d.ID, "index", idx, "err", err)
		p.Error = err.Error()
		return p
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	img, err := r.renderer.Render(ctx, d, variant, opts.Export)
	if err != nil {
		return fail(err)
	}

	name := FileName(idx, d.ID, opts.Export.Format)
	path := filepath.Join(opts.OutDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fail(fmt.Errorf("failed to create file: %w", err))
	}
	// A page that fails past this point must not leave a partial file behind.
	discard := func(err error) Page {
		if rerr := os.Remove(path); rerr != nil {
			slog.Warn("Failed to remove partial page", "file", path, "err", rerr)
		}
		return fail(err)
	}
	if err := render.Encode(f, img, opts.Export); err != nil {
		f.Close()
		return discard(err)
	}
	info, err := f.Stat()
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return discard(fmt.Errorf("failed to write file: %w", err))
	}

	p.File = name
	p.Width = img.Bounds().Dx()
	p.Height = img.Bounds().Dy()
	p.Bytes = info.Size()
	slog.Debug("Exported page", "design_id", d.ID, "file", name, "bytes", p.Bytes)
	return p
}
