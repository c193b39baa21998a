package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/preview"
	"github.com/mediprint/compositor/internal/snap"
	"github.com/mediprint/compositor/internal/storage"
)

func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request, session *storage.Session) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := session.Preview.RenderAllPages(r.Context(), func(p int) {
		slog.Debug("Render progress", "session_id", session.ID, "progress", p)
	})
	if err != nil {
		h.writeError(w, "Render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, struct {
		Result preview.PassResult   `json:"result"`
		Pages  []models.PreviewPage `json:"pages"`
	}{res, session.Preview.Pages()})
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request, session *storage.Session, index int, thumbnail bool) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := session.Preview.RenderAdjacentPages(r.Context(), index); err != nil {
		h.writeError(w, "Render cancelled: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	design, _ := session.Preview.Design(index)
	data, ok := h.cachedImage(session.Preview, design.ID, thumbnail)
	if !ok {
		// The prefetch either failed or lost the race to another request.
		if _, err := session.Preview.RenderPage(r.Context(), index); err != nil {
			h.writeError(w, "Failed to render page: "+err.Error(), http.StatusInternalServerError)
			return
		}
		data, ok = h.cachedImage(session.Preview, design.ID, thumbnail)
	}
	if !ok {
		w.Header().Set("Retry-After", "1")
		h.writeError(w, "Page is rendering", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", session.Preview.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write page image", "session_id", session.ID, "index", index, "err", err)
	}
}

func (h *Handler) cachedImage(o *preview.Orchestrator, id string, thumbnail bool) ([]byte, bool) {
	if thumbnail {
		return o.Thumbnail(id)
	}
	return o.Image(id)
}

type snapRequest struct {
	Page   int                 `json:"page"`
	Object models.CanvasObject `json:"object"`
	// Commit stores the snapped position in the design.
	Commit bool `json:"commit"`
}

func (h *Handler) handleSnap(w http.ResponseWriter, r *http.Request, session *storage.Session) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request snapRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	session.Lock()
	defer session.Unlock()

	design, ok := session.Preview.Design(request.Page)
	if !ok {
		h.writeError(w, "Page not found", http.StatusNotFound)
		return
	}

	engine := snap.NewEngine(designdata.CanvasSize(session.Preview.Variant(), design.Orientation), h.deps.Snap)
	res := engine.Drag(request.Object, design.Objects)

	if request.Commit {
		design.Objects = slices.Clone(design.Objects)
		if !engine.Commit(design.Objects, request.Object.ID, res) {
			h.writeError(w, "Object not found", http.StatusNotFound)
			return
		}
		if err := session.Preview.UpdateDesign(request.Page, design); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	h.writeJSON(w, res)
}

type pointerEvent struct {
	Type string  `json:"type"` // down, move, up, cancel
	ID   int     `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request, session *storage.Session) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var request struct {
			Reset  bool           `json:"reset"`
			Scale  *float64       `json:"scale,omitempty"`
			Events []pointerEvent `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if request.Reset {
			session.View.Reset()
		}
		if request.Scale != nil {
			session.View.SetScale(*request.Scale)
		}
		for _, ev := range request.Events {
			switch ev.Type {
			case "down":
				session.View.PointerDown(ev.ID, ev.X, ev.Y)
			case "move":
				session.View.PointerMove(ev.ID, ev.X, ev.Y)
			case "up":
				session.View.PointerUp(ev.ID, ev.X, ev.Y)
			case "cancel":
				session.View.PointerCancel(ev.ID)
			default:
				h.writeError(w, "Unknown pointer event type: "+ev.Type, http.StatusBadRequest)
				return
			}
		}
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, viewOf(session.View))
}

// pageTarget is the whole trim area of a design in design pixels.
func pageTarget(session *storage.Session, design models.Design) geometry.Rect {
	size := designdata.CanvasSize(session.Preview.Variant(), design.Orientation)
	return geometry.NewRect(0, 0, size.Width, size.Height)
}
