package project

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleProject = `{"data":{"title":"Ward 3 Calendar","categorySlug":"postcard","designsData":{"designs":[]},"variantId":"v-1"}}`

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects/p1":
			if r.Header.Get("Authorization") != "Bearer tok" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(sampleProject))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	rec, err := c.Fetch(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if rec.ID != "p1" || rec.Title != "Ward 3 Calendar" || rec.CategorySlug != "postcard" || rec.VariantID != "v-1" {
		t.Errorf("Unexpected record %+v", rec)
	}
	if string(rec.DesignsData) != `{"designs":[]}` {
		t.Errorf("Expected raw designsData, got %s", rec.DesignsData)
	}

	if _, err := c.Fetch(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, err := NewClient(srv.URL, "").Fetch(context.Background(), "p1"); err == nil {
		t.Error("Expected error for unauthorized fetch")
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "p1.json"), []byte(sampleProject), 0644); err != nil {
		t.Fatalf("Failed to write project: %v", err)
	}
	bare := `{"title":"Bare","categorySlug":"photobook","pagesData":{"pages":[]}}`
	if err := os.WriteFile(filepath.Join(dir, "p2.json"), []byte(bare), 0644); err != nil {
		t.Fatalf("Failed to write project: %v", err)
	}

	src := NewFileSource(dir)

	rec, err := src.Fetch(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if rec.Title != "Ward 3 Calendar" || rec.ID != "p1" {
		t.Errorf("Unexpected record %+v", rec)
	}

	rec, err = src.Fetch(context.Background(), "p2")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if rec.Title != "Bare" || len(rec.PagesData) == 0 {
		t.Errorf("Unexpected bare record %+v", rec)
	}

	if _, err := src.Fetch(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := src.Fetch(context.Background(), "../p1"); err == nil {
		t.Error("Expected traversal to be rejected")
	}

	single := NewFileSource(filepath.Join(dir, "p1.json"))
	rec, err = single.Fetch(context.Background(), "anything")
	if err != nil || rec.Title != "Ward 3 Calendar" {
		t.Errorf("Expected single-file source to return the file, got %+v, %v", rec, err)
	}
}

func TestDecodeRecordInvalid(t *testing.T) {
	if _, err := DecodeRecord([]byte("{not json")); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenStore(filepath.Join(t.TempDir(), "db", "projects.db"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer s.Close()

	rec := &Record{ID: "p1", Title: "First", CategorySlug: "photobook", PagesData: []byte(`{"pages":[]}`)}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rec.Title = "Renamed"
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put (update) failed: %v", err)
	}

	got, err := s.Fetch(ctx, "p1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.Title != "Renamed" || string(got.PagesData) != `{"pages":[]}` || got.DesignsData != nil {
		t.Errorf("Unexpected record %+v", got)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "p1" {
		t.Errorf("Expected one listed project, got %+v", list)
	}

	if err := s.Put(ctx, &Record{}); err == nil {
		t.Error("Expected error for record without id")
	}

	if err := s.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Fetch(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}
