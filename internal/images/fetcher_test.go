package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestLoadHTTPCaches(t *testing.T) {
	var hits int32
	data := pngBytes(t, 4, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	f := NewFetcher(0)
	for i := 0; i < 3; i++ {
		img, err := f.Load(context.Background(), srv.URL+"/a.png")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
			t.Errorf("Expected 4x3, got %v", img.Bounds())
		}
	}
	if hits != 1 {
		t.Errorf("Expected 1 request, got %d", hits)
	}
	if f.Len() != 1 {
		t.Errorf("Expected 1 cached image, got %d", f.Len())
	}

	f.Forget(srv.URL + "/a.png")
	if _, err := f.Load(context.Background(), srv.URL+"/a.png"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if hits != 2 {
		t.Errorf("Expected refetch after Forget, got %d requests", hits)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bg.png")
	if err := os.WriteFile(path, pngBytes(t, 2, 2), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(0)
	for _, ref := range []string{path, "file://" + path} {
		if _, err := f.Load(context.Background(), ref); err != nil {
			t.Errorf("Load(%s) failed: %v", ref, err)
		}
	}

	rel := NewFetcher(0)
	rel.BaseDir = dir
	if _, err := rel.Load(context.Background(), "bg.png"); err != nil {
		t.Errorf("Expected relative path to resolve against BaseDir: %v", err)
	}
}

func TestLoadMounted(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.png"), pngBytes(t, 5, 2), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	f := NewFetcher(0)
	f.Mount("/static/uploads/", dir)

	img, err := f.Load(context.Background(), "/static/uploads/b.png")
	if err != nil {
		t.Fatalf("Expected mounted file to load, got %v", err)
	}
	if b := img.Bounds(); b.Dx() != 5 || b.Dy() != 2 {
		t.Errorf("Expected 5x2, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := f.Load(context.Background(), "/static/uploads/../b.png"); err == nil {
		t.Error("Expected traversal outside the mount to fail")
	}
}

func TestLoadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	f := NewFetcher(0)
	for _, ref := range []string{"", srv.URL + "/missing", srv.URL + "/garbage", filepath.Join(t.TempDir(), "nope.png")} {
		if _, err := f.Load(context.Background(), ref); err == nil {
			t.Errorf("Expected error for %q", ref)
		}
	}
	if f.Len() != 0 {
		t.Errorf("Expected failures not to be cached, got %d entries", f.Len())
	}
}
