package render

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/mediprint/compositor/internal/models"
)

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts a format name case-insensitively; "jpg" means JPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// MIMEType returns the media type of the format.
func (f Format) MIMEType() string {
	return "image/" + string(f)
}

// ExportOptions controls resolution and encoding of a render.
type ExportOptions struct {
	DPI          float64 `json:"dpi" yaml:"dpi"`
	Format       Format  `json:"format" yaml:"format"`
	Quality      int     `json:"quality" yaml:"quality"` // JPEG only, 1..100
	IncludeBleed bool    `json:"includeBleed" yaml:"includeBleed"`
}

// Validate checks the options.
func (o ExportOptions) Validate() error {
	if o.DPI <= 0 || math.IsNaN(o.DPI) || math.IsInf(o.DPI, 0) {
		return fmt.Errorf("export dpi must be positive, got %v", o.DPI)
	}
	switch o.Format {
	case FormatPNG:
	case FormatJPEG:
		if o.Quality < 1 || o.Quality > 100 {
			return fmt.Errorf("jpeg quality must be within 1..100, got %d", o.Quality)
		}
	default:
		return fmt.Errorf("unsupported format %q", o.Format)
	}
	return nil
}

// PreviewOptions are used for on-screen previews: 72dpi JPEG without bleed.
func PreviewOptions() ExportOptions {
	return ExportOptions{DPI: 72, Format: FormatJPEG, Quality: 80}
}

// PrintOptions renders at the variant's native resolution with bleed, as
// lossless PNG.
func PrintOptions(v models.VariantConfig) ExportOptions {
	return ExportOptions{DPI: v.DPI, Format: FormatPNG, Quality: 100, IncludeBleed: true}
}

// Encode writes img in the format selected by opts.
func Encode(w io.Writer, img image.Image, opts ExportOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	switch opts.Format {
	case FormatJPEG:
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
			return fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("failed to encode png: %w", err)
		}
	}
	return nil
}

// DataURL wraps bytes produced by Encode in format as a base64 data URL.
func DataURL(data []byte, format Format) string {
	return "data:" + format.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Thumbnail downscales img so its longest side is at most maxSide. Smaller
// images are copied unchanged.
func Thumbnail(img image.Image, maxSide int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide > 0 && (w > maxSide || h > maxSide) {
		if w >= h {
			h = max(1, int(math.Round(float64(h)*float64(maxSide)/float64(w))))
			w = maxSide
		} else {
			w = max(1, int(math.Round(float64(w)*float64(maxSide)/float64(h))))
			h = maxSide
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
