package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/render"
)

type stubRenderer struct {
	fail map[string]bool
	// empty designs render to a zero-sized image, which PNG cannot encode.
	empty map[string]bool
}

func (s stubRenderer) Render(_ context.Context, d *models.Design, v models.VariantConfig, opts render.ExportOptions) (*image.RGBA, error) {
	if s.fail[d.ID] {
		return nil, fmt.Errorf("broken design %s", d.ID)
	}
	if s.empty[d.ID] {
		return image.NewRGBA(image.Rectangle{}), nil
	}
	size := render.SurfaceSize(v.Oriented(d.Orientation), opts)
	return image.NewRGBA(image.Rectangle{Max: size}), nil
}

func testResult() *designdata.Result {
	return &designdata.Result{
		ProjectTitle:  "Family album",
		CategorySlug:  "photobook",
		Kind:          designdata.KindSpreads,
		VariantConfig: models.VariantConfig{WidthMm: 25.4, HeightMm: 12.7, BleedMm: 0, DPI: 100},
		Designs: []models.Design{
			{ID: "spread-1-left", Label: "Spread 1 Left", Quantity: 2, Orientation: models.Landscape, Side: models.SideLeft},
			{ID: "spread/1 right", Label: "Spread 1 Right", Quantity: 1, Orientation: models.Portrait, Side: models.SideRight},
			{ID: "broken", Quantity: 5},
		},
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		index  int
		id     string
		format render.Format
		want   string
	}{
		{0, "page-1", render.FormatPNG, "001-page-1.png"},
		{11, "spread/1 right", render.FormatJPEG, "012-spread-1-right.jpg"},
	}
	for _, tt := range tests {
		if got := FileName(tt.index, tt.id, tt.format); got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, got)
		}
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(stubRenderer{fail: map[string]bool{"broken": true}})
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	m, err := r.Run(context.Background(), testResult(), Options{
		OutDir:      dir,
		Export:      render.ExportOptions{DPI: 100, Format: render.FormatPNG},
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if m.Exported != 2 || m.Failed != 1 || m.Prints != 3 {
		t.Errorf("Unexpected totals exported=%d failed=%d prints=%d", m.Exported, m.Failed, m.Prints)
	}
	if m.GeneratedAt != "2026-01-02T03:04:05Z" {
		t.Errorf("Unexpected timestamp %s", m.GeneratedAt)
	}
	if m.Pages[1].File != "002-spread-1-right.png" || m.Pages[1].Width != 50 || m.Pages[1].Height != 100 {
		t.Errorf("Unexpected page %+v", m.Pages[1])
	}
	if m.Pages[2].Error == "" || m.Pages[2].File != "" {
		t.Errorf("Expected broken page to carry its error, got %+v", m.Pages[2])
	}
	for _, p := range m.Pages[:2] {
		if _, err := os.Stat(filepath.Join(dir, p.File)); err != nil {
			t.Errorf("Expected %s on disk: %v", p.File, err)
		}
	}

	saved, err := ReadYAMLManifest(filepath.Join(dir, ManifestYAML))
	if err != nil {
		t.Fatalf("ReadYAMLManifest failed: %v", err)
	}
	if saved.Project != "Family album" || len(saved.Pages) != 3 || saved.Variant != m.Variant {
		t.Errorf("Unexpected saved manifest %+v", saved)
	}

	rows, err := ReadParquetManifest(filepath.Join(dir, ManifestParquet))
	if err != nil {
		t.Fatalf("ReadParquetManifest failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected one row per print, got %d", len(rows))
	}
	if rows[0].Copy != 1 || rows[1].Copy != 2 || rows[1].DesignID != "spread-1-left" {
		t.Errorf("Unexpected copies %+v", rows[:2])
	}
	if rows[2].WidthMm != 12.7 || rows[2].HeightMm != 25.4 || rows[2].Side != "right" {
		t.Errorf("Expected portrait page dimensions, got %+v", rows[2])
	}
}

func TestRunNothingToExport(t *testing.T) {
	r := NewRunner(stubRenderer{})
	for _, res := range []*designdata.Result{nil, {}} {
		if _, err := r.Run(context.Background(), res, Options{OutDir: t.TempDir(), Export: render.PreviewOptions()}); !errors.Is(err, ErrNothingToExport) {
			t.Errorf("Expected ErrNothingToExport, got %v", err)
		}
	}
}

func TestRunAllFailed(t *testing.T) {
	res := testResult()
	fail := map[string]bool{}
	for _, d := range res.Designs {
		fail[d.ID] = true
	}
	dir := t.TempDir()
	m, err := NewRunner(stubRenderer{fail: fail}).Run(context.Background(), res, Options{
		OutDir:  dir,
		Export:  render.PreviewOptions(),
		Formats: []string{"yaml"},
	})
	if err == nil {
		t.Fatal("Expected error when every page fails")
	}
	if m == nil || m.Failed != 3 {
		t.Errorf("Expected manifest with 3 failures, got %+v", m)
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestParquet)); !os.IsNotExist(err) {
		t.Error("Expected parquet manifest to be skipped")
	}
}

func TestRunEncodeFailureRemovesFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(stubRenderer{empty: map[string]bool{"broken": true}})
	m, err := r.Run(context.Background(), testResult(), Options{
		OutDir:  dir,
		Export:  render.ExportOptions{DPI: 100, Format: render.FormatPNG},
		Formats: []string{"yaml"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if m.Exported != 2 || m.Failed != 1 {
		t.Errorf("Expected 2 exported and 1 failed, got %d and %d", m.Exported, m.Failed)
	}
	if m.Pages[2].Error == "" || m.Pages[2].File != "" {
		t.Errorf("Expected broken page to fail without a file, got %+v", m.Pages[2])
	}
	name := FileName(2, "broken", render.FormatPNG)
	if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed, got %v", name, err)
	}
	if _, err := os.Stat(filepath.Join(dir, m.Pages[0].File)); err != nil {
		t.Errorf("Expected %s to exist, got %v", m.Pages[0].File, err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := NewRunner(stubRenderer{}).Run(ctx, testResult(), Options{OutDir: t.TempDir(), Export: render.PreviewOptions()})
	if err == nil || m.Exported != 0 {
		t.Errorf("Expected cancelled run to export nothing, got %+v, %v", m, err)
	}
}
