// Package config loads compositor settings from an optional YAML file and
// COMPOSITOR_* environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mediprint/compositor/internal/gesture"
	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/render"
	"github.com/mediprint/compositor/internal/snap"
)

// DefaultPath is read when no --config flag is given. A missing default file
// is not an error.
const DefaultPath = "compositor.yaml"

// Config holds every tunable of the compositor.
type Config struct {
	Projects ProjectsConfig `yaml:"projects"`
	Assets   AssetsConfig   `yaml:"assets"`
	Preview  PreviewConfig  `yaml:"preview"`
	Export   ExportConfig   `yaml:"export"`
	Snap     SnapConfig     `yaml:"snap"`
	Gesture  GestureConfig  `yaml:"gesture"`
	Server   ServerConfig   `yaml:"server"`
	// Variants maps a project's variantId to its product profile.
	Variants map[string]models.VariantConfig `yaml:"variants"`
}

// ProjectsConfig selects where project records come from.
type ProjectsConfig struct {
	APIURL   string `yaml:"apiurl"`
	APIToken string `yaml:"apitoken"`
	Database string `yaml:"database"`
}

// AssetsConfig configures asset ingestion and loading.
type AssetsConfig struct {
	Dir         string        `yaml:"dir"`
	BaseURL     string        `yaml:"baseurl"`
	IngestURL   string        `yaml:"ingesturl"`
	IngestToken string        `yaml:"ingesttoken"`
	HTTPTimeout time.Duration `yaml:"httptimeout"`
}

// PreviewConfig tunes on-screen previews.
type PreviewConfig struct {
	DPI           float64 `yaml:"dpi"`
	Quality       int     `yaml:"quality"`
	ThumbnailSize int     `yaml:"thumbnailsize"`
}

// ExportConfig tunes print exports.
type ExportConfig struct {
	// DPI overrides the variant resolution when positive.
	DPI         float64 `yaml:"dpi"`
	Format      string  `yaml:"format"`
	Quality     int     `yaml:"quality"`
	Concurrency int     `yaml:"concurrency"`
	OutDir      string  `yaml:"outdir"`
}

// SnapConfig tunes alignment guides.
type SnapConfig struct {
	Threshold float64 `yaml:"threshold"`
	Disabled  bool    `yaml:"disabled"`
}

// GestureConfig bounds the view zoom.
type GestureConfig struct {
	MinScale float64 `yaml:"minscale"`
	MaxScale float64 `yaml:"maxscale"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Projects: ProjectsConfig{Database: "compositor.db"},
		Assets:   AssetsConfig{Dir: "uploads", BaseURL: "/static/uploads", HTTPTimeout: 30 * time.Second},
		Preview:  PreviewConfig{DPI: 72, Quality: 80, ThumbnailSize: 240},
		Export:   ExportConfig{Format: "png", Quality: 95, Concurrency: 4, OutDir: "exports"},
		Snap:     SnapConfig{Threshold: 8},
		Gesture:  GestureConfig{MinScale: 0.1, MaxScale: 3},
		Server:   ServerConfig{Port: "8888"},
		Variants: map[string]models.VariantConfig{},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is tolerated only when path is DefaultPath or empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		slog.Debug("No config file, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		slog.Debug("Loaded config", "path", path)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside a render.
func (c *Config) Validate() error {
	if c.Preview.DPI <= 0 {
		return fmt.Errorf("preview.dpi must be positive, got %v", c.Preview.DPI)
	}
	if c.Gesture.MinScale <= 0 || c.Gesture.MaxScale < c.Gesture.MinScale {
		return fmt.Errorf("invalid gesture scale bounds %v..%v", c.Gesture.MinScale, c.Gesture.MaxScale)
	}
	if c.Export.Format != "" {
		if _, err := render.ParseFormat(c.Export.Format); err != nil {
			return fmt.Errorf("export.format: %w", err)
		}
	}
	if c.Snap.Threshold < 0 {
		return fmt.Errorf("snap.threshold must not be negative, got %v", c.Snap.Threshold)
	}
	for id, v := range c.Variants {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variant %s: %w", id, err)
		}
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"COMPOSITOR_PROJECT_API_URL":   &c.Projects.APIURL,
		"COMPOSITOR_PROJECT_API_TOKEN": &c.Projects.APIToken,
		"COMPOSITOR_DATABASE":          &c.Projects.Database,
		"COMPOSITOR_ASSET_DIR":         &c.Assets.Dir,
		"COMPOSITOR_ASSET_BASE_URL":    &c.Assets.BaseURL,
		"COMPOSITOR_INGEST_URL":        &c.Assets.IngestURL,
		"COMPOSITOR_INGEST_TOKEN":      &c.Assets.IngestToken,
		"COMPOSITOR_EXPORT_FORMAT":     &c.Export.Format,
		"COMPOSITOR_EXPORT_DIR":        &c.Export.OutDir,
		"COMPOSITOR_PORT":              &c.Server.Port,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"COMPOSITOR_PREVIEW_DPI":    &c.Preview.DPI,
		"COMPOSITOR_EXPORT_DPI":     &c.Export.DPI,
		"COMPOSITOR_SNAP_THRESHOLD": &c.Snap.Threshold,
		"COMPOSITOR_GESTURE_MIN":    &c.Gesture.MinScale,
		"COMPOSITOR_GESTURE_MAX":    &c.Gesture.MaxScale,
	}
	for key, dst := range floats {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = f
	}

	ints := map[string]*int{
		"COMPOSITOR_PREVIEW_QUALITY":    &c.Preview.Quality,
		"COMPOSITOR_EXPORT_QUALITY":     &c.Export.Quality,
		"COMPOSITOR_EXPORT_CONCURRENCY": &c.Export.Concurrency,
		"COMPOSITOR_PREVIEW_THUMBNAIL":  &c.Preview.ThumbnailSize,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := lookup("COMPOSITOR_ASSET_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMPOSITOR_ASSET_TIMEOUT: %w", err)
		}
		c.Assets.HTTPTimeout = d
	}
	if v, ok := lookup("COMPOSITOR_SNAP_DISABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COMPOSITOR_SNAP_DISABLED: %w", err)
		}
		c.Snap.Disabled = b
	}
	return nil
}

// PreviewOptions returns the export options used for previews.
func (c *Config) PreviewOptions() render.ExportOptions {
	opts := render.PreviewOptions()
	opts.DPI = c.Preview.DPI
	if c.Preview.Quality > 0 {
		opts.Quality = c.Preview.Quality
	}
	return opts
}

// PrintOptions returns the export options for printing variant v.
func (c *Config) PrintOptions(v models.VariantConfig) render.ExportOptions {
	opts := render.PrintOptions(v)
	if c.Export.DPI > 0 {
		opts.DPI = c.Export.DPI
	}
	if f, err := render.ParseFormat(c.Export.Format); err == nil {
		opts.Format = f
	}
	if c.Export.Quality > 0 {
		opts.Quality = c.Export.Quality
	}
	return opts
}

// SnapConfig returns the snapping settings.
func (c *Config) SnapConfig() snap.Config {
	return snap.Config{Threshold: c.Snap.Threshold, Enabled: !c.Snap.Disabled}
}

// GestureOptions returns controller options with the configured bounds.
func (c *Config) GestureOptions() gesture.Options {
	return gesture.Options{MinScale: c.Gesture.MinScale, MaxScale: c.Gesture.MaxScale}
}
