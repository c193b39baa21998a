package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mediprint/compositor/internal/export"
)

const cardProject = `{"data": {
	"title": "Card",
	"categorySlug": "cards",
	"designsData": {
		"variantConfig": {"widthMm": 25.4, "heightMm": 25.4, "bleedMm": 0, "dpi": 100},
		"designs": [
			{"id": "front", "quantity": 2, "background": "#336699", "objects": [
				{"id": "a", "type": "shape", "shape": "ellipse", "x": 10, "y": 10, "width": 50, "height": 30, "fill": "#ffcc00"}
			]},
			{"id": "back", "objects": []}
		]
	}
}}`

// An 8 inch album splits at 768 design pixels.
const bookProject = `{"title": "Album", "categorySlug": "photobook", "pagesData": {
	"version": 2,
	"editorState": {
		"albumSize": {"widthInches": 8, "heightInches": 8},
		"spreads": [{"id": "s1", "objects": [
			{"id": "left", "type": "shape", "x": 10, "y": 0, "width": 100, "height": 100},
			{"id": "gutter", "type": "shape", "x": 700, "y": 0, "width": 200, "height": 100},
			{"id": "right", "type": "shape", "x": 800, "y": 0, "width": 100, "height": 100}
		]}]
	}
}}`

func setup(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	configPath = filepath.Join(dir, "compositor.yaml")
	config := "projects:\n  database: " + filepath.Join(dir, "projects.db") +
		"\nexport:\n  outdir: " + filepath.Join(dir, "exports") +
		"\nassets:\n  dir: " + filepath.Join(dir, "uploads") + "\n"
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "card.json"), []byte(cardProject), 0644); err != nil {
		t.Fatalf("Failed to write project: %v", err)
	}
	return dir, configPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportInspectRender(t *testing.T) {
	dir, configPath := setup(t)

	if _, err := run(t, "import", "--config", configPath, filepath.Join(dir, "card.json")); err != nil {
		t.Fatalf("Expected import to succeed, got %v", err)
	}

	out, err := run(t, "import", "--config", configPath, "--list")
	if err != nil {
		t.Fatalf("Expected list to succeed, got %v", err)
	}
	if !strings.Contains(out, "card") || !strings.Contains(out, "Card") {
		t.Errorf("Expected listing to contain the imported project, got %q", out)
	}

	out, err = run(t, "inspect", "--config", configPath, "card")
	if err != nil {
		t.Fatalf("Expected inspect to succeed, got %v", err)
	}
	for _, want := range []string{"kind: flat", "id: front", "id: back", "quantity: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected inspect output to contain %q, got:\n%s", want, out)
		}
	}

	if _, err := run(t, "render", "--config", configPath, "card"); err != nil {
		t.Fatalf("Expected render to succeed, got %v", err)
	}
	outDir := filepath.Join(dir, "exports", "card")
	for _, name := range []string{export.FileName(0, "front", "png"), export.FileName(1, "back", "png"), export.ManifestYAML, export.ManifestParquet} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("Expected %s to be written, got %v", name, err)
		}
	}

	out, err = run(t, "inspect", "--manifest", filepath.Join(outDir, export.ManifestParquet))
	if err != nil {
		t.Fatalf("Expected manifest inspect to succeed, got %v", err)
	}
	if n := strings.Count(out, "designid:"); n != 3 {
		t.Errorf("Expected 3 print rows, got %d in:\n%s", n, out)
	}
}

func TestRenderFromFile(t *testing.T) {
	dir, configPath := setup(t)
	outDir := filepath.Join(dir, "out")

	_, err := run(t, "render", "--config", configPath,
		"--file", filepath.Join(dir, "card.json"),
		"--out", outDir, "--format", "jpg", "--dpi", "72", "--manifest", "yaml")
	if err != nil {
		t.Fatalf("Expected render to succeed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, export.FileName(0, "front", "jpeg"))); err != nil {
		t.Errorf("Expected jpeg page, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, export.ManifestParquet)); !os.IsNotExist(err) {
		t.Errorf("Expected no parquet manifest, got %v", err)
	}

	m, err := export.ReadYAMLManifest(filepath.Join(outDir, export.ManifestYAML))
	if err != nil {
		t.Fatalf("Failed to read manifest: %v", err)
	}
	if m.Exported != 2 || m.Prints != 3 {
		t.Errorf("Expected 2 pages and 3 prints, got %d and %d", m.Exported, m.Prints)
	}
	if m.Pages[0].Width != 72 {
		t.Errorf("Expected 72px page at 72 dpi, got %d", m.Pages[0].Width)
	}
}

func TestInspectSpreads(t *testing.T) {
	dir, configPath := setup(t)
	book := filepath.Join(dir, "book.json")
	if err := os.WriteFile(book, []byte(bookProject), 0644); err != nil {
		t.Fatalf("Failed to write project: %v", err)
	}

	out, err := run(t, "inspect", "--config", configPath, "--file", book)
	if err != nil {
		t.Fatalf("Expected inspect to succeed, got %v", err)
	}
	for _, want := range []string{"left: s1-left", "right: s1-right", "objects: 3", "gutter: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected inspect output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	_, configPath := setup(t)

	tests := []struct {
		name string
		args []string
	}{
		{"render without project", []string{"render", "--config", configPath}},
		{"inspect unknown project", []string{"inspect", "--config", configPath, "missing"}},
		{"import without files", []string{"import", "--config", configPath}},
		{"import missing file", []string{"import", "--config", configPath, "nope.json"}},
		{"bad format", []string{"render", "--config", configPath, "--format", "tiff", "card"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
