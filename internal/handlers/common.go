package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/gesture"
	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/placement"
	"github.com/mediprint/compositor/internal/preview"
	"github.com/mediprint/compositor/internal/project"
	"github.com/mediprint/compositor/internal/snap"
	"github.com/mediprint/compositor/internal/storage"
)

// Dependencies are the collaborators of the preview API.
type Dependencies struct {
	Projects project.Source
	Renderer preview.Renderer
	// Placement is optional; without it asset uploads are rejected.
	Placement *placement.Adapter
	Parse     designdata.Options
	Preview   preview.Options
	Snap      snap.Config
	Gesture   gesture.Options
	// UploadsDir is served under /static/uploads/ when set.
	UploadsDir string
}

type Handler struct {
	sessionStore *storage.SessionStore
	deps         Dependencies
	newID        func() string
	now          func() time.Time
}

func New(deps Dependencies) *Handler {
	return &Handler{
		sessionStore: storage.New(),
		deps:         deps,
		newID:        func() string { return uuid.New().String() },
		now:          time.Now,
	}
}

// Sessions exposes the session store so the serve command can tear it down.
func (h *Handler) Sessions() *storage.SessionStore {
	return h.sessionStore
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc("/static/uploads/", h.HandleStatic)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "status", code)
	}
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*storage.Session, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (h *Handler) newPreview(sessionID string, res *designdata.Result) *preview.Orchestrator {
	opts := h.deps.Preview
	opts.PageURL = func(index int, _ string, thumbnail bool) string {
		u := fmt.Sprintf("/api/sessions/%s/pages/%d", sessionID, index)
		if thumbnail {
			u += "/thumbnail"
		}
		return u
	}
	return preview.New(h.deps.Renderer, res.Designs, res.VariantConfig, opts)
}

// sessionView is the JSON form of a session.
type sessionView struct {
	ID           string               `json:"id"`
	ProjectID    string               `json:"project_id"`
	Title        string               `json:"title"`
	CategorySlug string               `json:"category_slug"`
	Kind         designdata.Kind      `json:"kind"`
	Variant      models.VariantConfig `json:"variant"`
	Pages        []models.PreviewPage `json:"pages"`
	View         viewState            `json:"view"`
	CreatedAt    time.Time            `json:"created_at"`
}

type viewState struct {
	Scale float64 `json:"scale"`
	PanX  float64 `json:"pan_x"`
	PanY  float64 `json:"pan_y"`
}

func viewOf(c *gesture.Controller) viewState {
	pan := c.Pan()
	return viewState{Scale: c.Scale(), PanX: pan.X, PanY: pan.Y}
}

func newSessionView(s *storage.Session) sessionView {
	return sessionView{
		ID:           s.ID,
		ProjectID:    s.ProjectID,
		Title:        s.Result.ProjectTitle,
		CategorySlug: s.Result.CategorySlug,
		Kind:         s.Result.Kind,
		Variant:      s.Preview.Variant(),
		Pages:        s.Preview.Pages(),
		View:         viewOf(s.View),
		CreatedAt:    s.CreatedAt,
	}
}
