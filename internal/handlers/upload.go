package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/ingest"
	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/placement"
	"github.com/mediprint/compositor/internal/preview"
	"github.com/mediprint/compositor/internal/storage"
)

// maxMultipartMemory bounds the in-memory part of a multipart upload.
const maxMultipartMemory = 32 << 20

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, session *storage.Session, index int) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.deps.Placement == nil {
		h.writeError(w, "Asset uploads are not configured", http.StatusNotImplemented)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.writeError(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		h.writeError(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	files := make([]ingest.File, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return
		}
		// One byte past the limit lets the ingestor reject oversized files.
		fileData, err := io.ReadAll(io.LimitReader(file, ingest.MaxUploadSize+1))
		file.Close()
		if err != nil {
			h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
			return
		}
		files = append(files, ingest.File{Name: header.Filename, Data: fileData})
	}

	mode := placement.FitMode(r.FormValue("mode"))
	if mode == "" {
		mode = placement.FitCover
	}
	if mode != placement.FitCover && mode != placement.FitContain {
		h.writeError(w, "Invalid mode. Must be 'cover' or 'contain'", http.StatusBadRequest)
		return
	}

	session.Lock()
	defer session.Unlock()

	design, _ := session.Preview.Design(index)
	if design.Side != models.SideNone && !hasTarget(r) {
		h.uploadToSpread(w, r, session, index, design, files, mode)
		return
	}
	target, err := uploadTarget(r, pageTarget(session, design))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	design.Objects = slices.Clone(design.Objects)
	created, fileErrors, err := h.deps.Placement.Insert(r.Context(), &design, files, target, mode)
	if err != nil {
		h.writeError(w, "Failed to ingest assets: "+err.Error(), http.StatusBadGateway)
		return
	}
	if len(created) > 0 {
		if err := session.Preview.UpdateDesign(index, design); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	slog.Info("Assets placed", "session_id", session.ID, "page", index, "objects", len(created), "errors", len(fileErrors))

	code := http.StatusOK
	if len(created) == 0 {
		code = http.StatusUnprocessableEntity
	}
	h.writeJSONStatus(w, code, map[string]any{
		"objects": created,
		"errors":  fileErrors,
	})
}

// uploadToSpread places assets on a page of a book spread. With span=spread
// the assets cover both facing pages and each page receives its part. The
// response reports objects in spread coordinates.
func (h *Handler) uploadToSpread(w http.ResponseWriter, r *http.Request, session *storage.Session, index int, design models.Design, files []ingest.File, mode placement.FitMode) {
	left, right, ok := facingPages(session.Preview, index, design.Side)
	side := design.Side
	switch span := r.FormValue("span"); span {
	case "", "page":
	case "spread":
		if !ok {
			h.writeError(w, "Page has no facing page", http.StatusBadRequest)
			return
		}
		side = models.SideNone
	default:
		h.writeError(w, "Invalid span. Must be 'page' or 'spread'", http.StatusBadRequest)
		return
	}

	page := spreadPageSize(session, design)
	indexes := []int{index}
	if ok {
		indexes = []int{left, right}
	}
	pages := make(map[int]models.Design, len(indexes))
	z := 0
	for _, i := range indexes {
		d, _ := session.Preview.Design(i)
		d.Objects = slices.Clone(d.Objects)
		pages[i] = d
		z = max(z, d.NextZIndex())
	}

	created, fileErrors, err := h.deps.Placement.InsertSpread(r.Context(), files, page, side, mode, z)
	if err != nil {
		h.writeError(w, "Failed to ingest assets: "+err.Error(), http.StatusBadGateway)
		return
	}
	if len(created) > 0 {
		onLeft, onRight := designdata.SplitSpread(created, page.Width)
		for i, objs := range map[int][]models.CanvasObject{left: onLeft, right: onRight} {
			d, found := pages[i]
			if !found || len(objs) == 0 {
				continue
			}
			d.Objects = append(d.Objects, objs...)
			if err := session.Preview.UpdateDesign(i, d); err != nil {
				h.writeError(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
	}

	slog.Info("Assets placed on spread", "session_id", session.ID, "page", index, "side", side, "objects", len(created), "errors", len(fileErrors))

	code := http.StatusOK
	if len(created) == 0 {
		code = http.StatusUnprocessableEntity
	}
	h.writeJSONStatus(w, code, map[string]any{
		"objects": created,
		"errors":  fileErrors,
	})
}

// facingPages returns the left and right page indexes of the spread
// holding index. ok is false when the facing page is missing.
func facingPages(p *preview.Orchestrator, index int, side models.Side) (left, right int, ok bool) {
	left, right = index, index+1
	want := models.SideRight
	if side == models.SideRight {
		left, right = index-1, index
		want = models.SideLeft
	}
	other := right
	if other == index {
		other = left
	}
	d, found := p.Design(other)
	return left, right, found && d.Side == want
}

// spreadPageSize is the single page size of a spread design. Book projects
// record the exact page width they were split at.
func spreadPageSize(session *storage.Session, design models.Design) geometry.Size {
	size := designdata.CanvasSize(session.Preview.Variant(), design.Orientation)
	if session.Result != nil && session.Result.PageWidthPx > 0 {
		size.Width = session.Result.PageWidthPx
	}
	return size
}

// hasTarget reports whether the form names any part of a target area.
func hasTarget(r *http.Request) bool {
	for _, name := range []string{"x", "y", "width", "height"} {
		if r.FormValue(name) != "" {
			return true
		}
	}
	return false
}

// uploadTarget reads an optional x/y/width/height target area from the
// form, defaulting to the whole page.
func uploadTarget(r *http.Request, page geometry.Rect) (geometry.Rect, error) {
	target := page
	fields := []struct {
		name string
		dst  *float64
	}{
		{"x", &target.X},
		{"y", &target.Y},
		{"width", &target.Width},
		{"height", &target.Height},
	}
	for _, f := range fields {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return geometry.Rect{}, errors.New("invalid " + f.name + ": " + v)
		}
		*f.dst = n
	}
	if target.Width <= 0 || target.Height <= 0 {
		return geometry.Rect{}, errors.New("target area must have a positive size")
	}
	return target, nil
}

func (h *Handler) handleDeleteObject(w http.ResponseWriter, r *http.Request, session *storage.Session, index int, objectID string) {
	if r.Method != http.MethodDelete {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.deps.Placement == nil {
		h.writeError(w, "Asset uploads are not configured", http.StatusNotImplemented)
		return
	}
	cascade := r.URL.Query().Get("cascade") == "true"

	session.Lock()
	defer session.Unlock()

	design, _ := session.Preview.Design(index)
	design.Objects = slices.Clone(design.Objects)
	err := h.deps.Placement.Remove(r.Context(), &design, objectID, cascade)
	if errors.Is(err, placement.ErrObjectNotFound) {
		h.writeError(w, "Object not found", http.StatusNotFound)
		return
	}
	// The object is gone from the design even when the asset delete failed.
	if updateErr := session.Preview.UpdateDesign(index, design); updateErr != nil {
		h.writeError(w, updateErr.Error(), http.StatusInternalServerError)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
