package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

const (
	// ManifestYAML is the YAML manifest file name inside the output directory.
	ManifestYAML = "manifest.yaml"
	// ManifestParquet holds one row per physical print.
	ManifestParquet = "manifest.parquet"
)

// PrintRow is one physical print. Pages with a quantity of n yield n rows.
type PrintRow struct {
	Page     int32   `parquet:"page"`
	Copy     int32   `parquet:"copy"`
	DesignID string  `parquet:"design_id"`
	Side     string  `parquet:"side"`
	File     string  `parquet:"file"`
	WidthPx  int32   `parquet:"width_px"`
	HeightPx int32   `parquet:"height_px"`
	DPI      float64 `parquet:"dpi"`
	WidthMm  float64 `parquet:"width_mm"`
	HeightMm float64 `parquet:"height_mm"`
	BleedMm  float64 `parquet:"bleed_mm"`
}

// PrintRows expands the exported pages of m by quantity. Failed pages are
// left out.
func PrintRows(m *Manifest) []PrintRow {
	var rows []PrintRow
	for _, p := range m.Pages {
		if p.Error != "" {
			continue
		}
		v := m.Variant.Oriented(p.Orient)
		for c := 1; c <= p.Quantity; c++ {
			rows = append(rows, PrintRow{
				Page:     int32(p.Index + 1),
				Copy:     int32(c),
				DesignID: p.DesignID,
				Side:     string(p.Side),
				File:     p.File,
				WidthPx:  int32(p.Width),
				HeightPx: int32(p.Height),
				DPI:      m.Options.DPI,
				WidthMm:  v.WidthMm,
				HeightMm: v.HeightMm,
				BleedMm:  v.BleedMm,
			})
		}
	}
	return rows
}

func writeManifests(m *Manifest, opts Options) error {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{"yaml", "parquet"}
	}

	if slices.Contains(formats, "yaml") {
		if err := WriteYAMLManifest(filepath.Join(opts.OutDir, ManifestYAML), m); err != nil {
			return err
		}
	}
	if slices.Contains(formats, "parquet") {
		if err := WriteParquetManifest(filepath.Join(opts.OutDir, ManifestParquet), PrintRows(m)); err != nil {
			return err
		}
	}
	return nil
}

// WriteYAMLManifest saves m as YAML.
func WriteYAMLManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// ReadYAMLManifest loads a manifest written by WriteYAMLManifest.
func ReadYAMLManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML manifest: %w", err)
	}
	return &m, nil
}

// WriteParquetManifest saves rows as a Parquet file.
func WriteParquetManifest(path string, rows []PrintRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[PrintRow](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return file.Close()
}

// ReadParquetManifest loads the rows written by WriteParquetManifest.
func ReadParquetManifest(path string) ([]PrintRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}
	slog.Debug("Parquet manifest opened", "path", path, "num_rows", pf.NumRows())

	reader := parquet.NewGenericReader[PrintRow](pf)
	defer reader.Close()

	var rows []PrintRow
	batch := make([]PrintRow, 128)
	for {
		n, err := reader.Read(batch)
		rows = append(rows, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return rows, nil
}
