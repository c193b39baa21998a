package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// PreviewMaxSide bounds the longest side of the generated preview.
const PreviewMaxSide = 1024

// LocalIngestor stores uploads under Dir using the content hash as file name
// and writes a downscaled JPEG preview next to the original.
type LocalIngestor struct {
	Dir     string
	BaseURL string // URL prefix the files are served under
}

// NewLocalIngestor creates an ingestor rooted at dir.
func NewLocalIngestor(dir, baseURL string) *LocalIngestor {
	return &LocalIngestor{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// Upload saves every file. Files that fail are reported in Errors and do not
// stop the remaining files.
func (l *LocalIngestor) Upload(ctx context.Context, files []File) (UploadResult, error) {
	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return UploadResult{}, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	var result UploadResult
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		asset, err := l.saveFile(f)
		if err != nil {
			slog.Warn("Rejected upload", "file", f.Name, "err", err)
			result.Errors = append(result.Errors, FileError{Name: f.Name, Message: err.Error()})
			continue
		}
		result.Assets = append(result.Assets, asset)
	}
	result.Success = len(result.Errors) == 0 && len(result.Assets) > 0
	return result, nil
}

func (l *LocalIngestor) saveFile(f File) (Asset, error) {
	if len(f.Data) >= MaxUploadSize {
		return Asset{}, ErrTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return Asset{}, fmt.Errorf("failed to decode image: %w", err)
	}

	hash := dataMD5(f.Data)
	ext := strings.ToLower(filepath.Ext(f.Name))
	if ext == "" {
		ext = ".bin"
	}
	originalName := hash + ext
	previewName := hash + "_preview.jpg"

	if err := os.WriteFile(filepath.Join(l.Dir, originalName), f.Data, 0644); err != nil {
		return Asset{}, fmt.Errorf("failed to save image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, downscale(img, PreviewMaxSide), &jpeg.Options{Quality: 85}); err != nil {
		return Asset{}, fmt.Errorf("failed to encode preview: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.Dir, previewName), buf.Bytes(), 0644); err != nil {
		return Asset{}, fmt.Errorf("failed to save preview: %w", err)
	}

	b := img.Bounds()
	slog.Info("Image saved", "filename", originalName, "width", b.Dx(), "height", b.Dy())

	return Asset{
		ID:      hash,
		URL:     l.url(previewName),
		FullURL: l.url(originalName),
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}

// Delete removes the original and preview files. Missing files are not an
// error.
func (l *LocalIngestor) Delete(ctx context.Context, originalURL, previewURL string) error {
	for _, u := range []string{originalURL, previewURL} {
		if u == "" {
			continue
		}
		name := filepath.Base(strings.TrimPrefix(u, l.BaseURL))
		if name == "." || name == "/" || strings.Contains(name, "..") {
			return fmt.Errorf("invalid asset url: %s", u)
		}
		if err := os.Remove(filepath.Join(l.Dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
	}
	return nil
}

func (l *LocalIngestor) url(name string) string {
	if l.BaseURL == "" {
		return filepath.Join(l.Dir, name)
	}
	return l.BaseURL + "/" + name
}

func downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	if w >= h {
		h = max(1, h*maxSide/w)
		w = maxSide
	} else {
		w = max(1, w*maxSide/h)
		h = maxSide
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
