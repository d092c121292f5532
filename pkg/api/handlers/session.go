package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ggnet/ggnetd/pkg/models"
	"github.com/ggnet/ggnetd/pkg/orchestrator"
)

// SessionHandler implements the §6 programmatic interface's session
// lifecycle endpoints, calling straight into the orchestrator.
type SessionHandler struct {
	orch      *orchestrator.Orchestrator
	jwtSecret []byte
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(orch *orchestrator.Orchestrator, jwtSecret []byte) *SessionHandler {
	return &SessionHandler{orch: orch, jwtSecret: jwtSecret}
}

// startRequest is the JSON body for POST /api/v1/sessions.
type startRequest struct {
	MachineID   string `json:"machine_id"`
	ImageID     string `json:"image_id"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// startResponse mirrors §6's `{session, target_info, boot_script,
// ipxe_script_url, iscsi_details}` shape.
type startResponse struct {
	Session       *models.Session `json:"session"`
	TargetInfo    interface{}     `json:"target_info"`
	BootScript    string          `json:"boot_script"`
	IPXEScriptURL string          `json:"ipxe_script_url"`
	ISCSIDetails  *models.Target  `json:"iscsi_details"`
}

// Start handles POST /api/v1/sessions: provisions a complete diskless boot
// session for a machine.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.MachineID == "" || req.ImageID == "" {
		BadRequest(w, "machine_id and image_id are required")
		return
	}
	sessionType := models.SessionType(req.Type)
	if sessionType == "" {
		sessionType = models.SessionTypeDisklessBoot
	}

	result, err := h.orch.Start(r.Context(), orchestrator.StartRequest{
		MachineID:   req.MachineID,
		ImageID:     req.ImageID,
		Type:        sessionType,
		Description: req.Description,
		Actor:       actorFromRequest(r, h.jwtSecret),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	WriteJSONCreated(w, startResponse{
		Session:       result.Session,
		TargetInfo:    result.TargetInfo,
		BootScript:    result.BootScript,
		IPXEScriptURL: "/api/v1/machines/" + result.Session.MachineID + "/boot-script",
		ISCSIDetails:  result.Target,
	})
}

// stopRequest is the JSON body for POST /api/v1/sessions/{id}/stop.
type stopRequest struct {
	SessionID string `json:"session_id"`
}

type stopResponse struct {
	SessionID string `json:"session_id"`
	MachineID string `json:"machine_id"`
}

// Stop handles POST /api/v1/sessions/{id}/stop: tears a session down.
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		var req stopRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sessionID = req.SessionID
	}
	if sessionID == "" {
		BadRequest(w, "session_id is required")
		return
	}

	session, err := h.orch.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.orch.Stop(r.Context(), sessionID, actorFromRequest(r, h.jwtSecret)); err != nil {
		writeError(w, err)
		return
	}

	WriteJSONOK(w, stopResponse{SessionID: sessionID, MachineID: session.MachineID})
}

// Get handles GET /api/v1/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	session, err := h.orch.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, session)
}

// List handles GET /api/v1/sessions, optionally filtered by ?status=.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	sessions, err := h.orch.List(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, sessions)
}

// Stats handles GET /api/v1/sessions/stats.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orch.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, stats)
}
