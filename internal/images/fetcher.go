// Package images loads and caches the decoded bitmaps referenced by canvas
// objects and backgrounds.
package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp"
)

// MaxImageSize caps a single downloaded asset.
const MaxImageSize = 64 * 1024 * 1024

// Fetcher retrieves asset bitmaps from URLs or the local filesystem
type Fetcher struct {
	HTTPClient *http.Client
	// BaseDir resolves relative paths. Empty means the working directory.
	BaseDir string

	mu     sync.RWMutex
	cache  map[string]image.Image
	mounts map[string]string
}

// NewFetcher creates a new image fetcher
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		cache: make(map[string]image.Image),
	}
}

// Mount maps references starting with prefix to files under dir, so that
// URLs served by the local ingestor resolve without a network round trip.
func (f *Fetcher) Mount(prefix, dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mounts == nil {
		f.mounts = make(map[string]string)
	}
	f.mounts[prefix] = dir
}

// Load returns the decoded image for ref, downloading and decoding it on
// first use. Decoded images are shared between callers and must not be
// mutated.
func (f *Fetcher) Load(ctx context.Context, ref string) (image.Image, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty image reference")
	}

	f.mu.RLock()
	img, ok := f.cache[ref]
	f.mu.RUnlock()
	if ok {
		return img, nil
	}

	data, err := f.read(ctx, ref)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", ref, err)
	}
	slog.Debug("Decoded image", "ref", ref, "format", format, "bounds", img.Bounds().String())

	f.mu.Lock()
	if f.cache == nil {
		f.cache = make(map[string]image.Image)
	}
	if cached, ok := f.cache[ref]; ok {
		img = cached
	} else {
		f.cache[ref] = img
	}
	f.mu.Unlock()

	return img, nil
}

// Forget drops ref from the cache.
func (f *Fetcher) Forget(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, ref)
}

// Purge empties the cache.
func (f *Fetcher) Purge() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]image.Image)
}

// Len returns the number of cached images.
func (f *Fetcher) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

func (f *Fetcher) read(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.download(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid file URL %s: %w", ref, err)
		}
		return f.readFile(u.Path)
	}

	f.mu.RLock()
	for prefix, dir := range f.mounts {
		if rest, ok := strings.CutPrefix(ref, prefix); ok {
			f.mu.RUnlock()
			if strings.Contains(rest, "..") {
				return nil, fmt.Errorf("invalid image reference %s", ref)
			}
			return os.ReadFile(filepath.Join(dir, rest))
		}
	}
	f.mu.RUnlock()
	return f.readFile(ref)
}

// download fetches an image from a URL
func (f *Fetcher) download(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image URL %s returned status %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("image %s exceeds %d bytes", ref, MaxImageSize)
	}
	return data, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	if f.BaseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.BaseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}
