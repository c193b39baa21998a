package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/gesture"
	"github.com/mediprint/compositor/internal/project"
	"github.com/mediprint/compositor/internal/storage"
)

// nothingToExport is shown for projects without designs, whether the
// payload was empty or could not be parsed.
const nothingToExport = "Nothing to export: project has no design data"

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions := h.sessionStore.GetAll()
		sessionList := make([]sessionView, 0, len(sessions))
		for _, session := range sessions {
			sessionList = append(sessionList, newSessionView(session))
		}
		h.writeJSON(w, sessionList)
	case http.MethodPost:
		h.createSession(w, r)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.ProjectID == "" {
		h.writeError(w, "project_id is required", http.StatusBadRequest)
		return
	}

	rec, err := h.deps.Projects.Fetch(r.Context(), request.ProjectID)
	if errors.Is(err, project.ErrNotFound) {
		h.writeError(w, "Project not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to fetch project: "+err.Error(), http.StatusBadGateway)
		return
	}

	res := designdata.Safe(rec, h.deps.Parse)
	if res == nil {
		h.writeError(w, nothingToExport, http.StatusUnprocessableEntity)
		return
	}

	sessionID := h.newID()
	session := &storage.Session{
		ID:        sessionID,
		ProjectID: request.ProjectID,
		Result:    res,
		Preview:   h.newPreview(sessionID, res),
		View:      gesture.New(h.deps.Gesture),
		CreatedAt: h.now(),
	}
	h.sessionStore.Set(sessionID, session)

	slog.Info("Session created", "session_id", sessionID, "project_id", request.ProjectID, "pages", len(res.Designs), "kind", res.Kind)
	h.writeJSONStatus(w, http.StatusCreated, newSessionView(session))
}

// HandleSessionDetail routes /api/sessions/{id}[/...].
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/"), "/")
	sessionID := parts[0]

	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	switch {
	case len(parts) == 1:
		h.handleSession(w, r, session)
	case len(parts) == 2 && parts[1] == "render":
		h.handleRender(w, r, session)
	case len(parts) == 2 && parts[1] == "snap":
		h.handleSnap(w, r, session)
	case len(parts) == 2 && parts[1] == "view":
		h.handleView(w, r, session)
	case len(parts) == 2 && parts[1] == "project":
		h.handleProject(w, r, session)
	case len(parts) >= 3 && parts[1] == "pages":
		index, err := strconv.Atoi(parts[2])
		if err != nil || index < 0 || index >= session.Preview.Len() {
			h.writeError(w, "Page not found", http.StatusNotFound)
			return
		}
		switch {
		case len(parts) == 3:
			h.handlePage(w, r, session, index, false)
		case len(parts) == 4 && parts[3] == "thumbnail":
			h.handlePage(w, r, session, index, true)
		case len(parts) == 4 && parts[3] == "assets":
			h.handleUpload(w, r, session, index)
		case len(parts) == 5 && parts[3] == "objects":
			h.handleDeleteObject(w, r, session, index, parts[4])
		default:
			h.writeError(w, "Not found", http.StatusNotFound)
		}
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request, session *storage.Session) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, newSessionView(session))
	case http.MethodDelete:
		h.sessionStore.Delete(r.Context(), session.ID)
		slog.Info("Session deleted", "session_id", session.ID)
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleProject returns the project with every edit made in the session.
func (h *Handler) handleProject(w http.ResponseWriter, r *http.Request, session *storage.Session) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	session.Lock()
	defer session.Unlock()
	h.writeJSON(w, session.Project())
}
