package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// HandleStatic serves ingested assets from the uploads directory.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	if h.deps.UploadsDir == "" {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/static/uploads/")

	// Prevent directory traversal attacks
	if name == "" || strings.Contains(name, "..") || strings.ContainsRune(name, '/') {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		w.Header().Set("Content-Type", "image/jpeg")
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".webp":
		w.Header().Set("Content-Type", "image/webp")
	}

	http.ServeFile(w, r, filepath.Join(h.deps.UploadsDir, name))
}
