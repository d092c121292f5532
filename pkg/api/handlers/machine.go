package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ggnet/ggnetd/pkg/ggnetrr"
	"github.com/ggnet/ggnetd/pkg/models"
	"github.com/ggnet/ggnetd/pkg/orchestrator"
	"github.com/ggnet/ggnetd/pkg/store"
)

// MachineHandler exposes machine registration CRUD plus the §6 boot-script
// and active-session read endpoints that front the orchestrator.
type MachineHandler struct {
	db   store.MachineStore
	orch *orchestrator.Orchestrator
}

// NewMachineHandler creates a MachineHandler.
func NewMachineHandler(db store.MachineStore, orch *orchestrator.Orchestrator) *MachineHandler {
	return &MachineHandler{db: db, orch: orch}
}

// BootScript handles GET /api/v1/machines/{id}/boot-script: regenerates the
// iPXE script text for a machine's active session without mutating state,
// so repeated firmware fetches see identical bytes.
func (h *MachineHandler) BootScript(w http.ResponseWriter, r *http.Request) {
	machineID := chi.URLParam(r, "id")
	script, err := h.orch.ServeBootScript(r.Context(), machineID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(script))
}

// ActiveSession handles GET /api/v1/machines/{id}/active-session.
func (h *MachineHandler) ActiveSession(w http.ResponseWriter, r *http.Request) {
	machineID := chi.URLParam(r, "id")
	if _, err := h.db.GetMachine(r.Context(), machineID); err != nil {
		writeError(w, ggnetrr.New(ggnetrr.NotFound, "handlers.machine.active_session", err))
		return
	}

	sessions, err := h.orch.List(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}
	for _, s := range sessions {
		if s.MachineID == machineID && models.SessionStatus(s.Status).IsLive() {
			WriteJSONOK(w, s)
			return
		}
	}
	NotFound(w, "machine has no active session")
}

// Get handles GET /api/v1/machines/{id}.
func (h *MachineHandler) Get(w http.ResponseWriter, r *http.Request) {
	machine, err := h.db.GetMachine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, ggnetrr.New(ggnetrr.NotFound, "handlers.machine.get", err))
		return
	}
	WriteJSONOK(w, machine)
}

// List handles GET /api/v1/machines, optionally filtered by ?status=.
func (h *MachineHandler) List(w http.ResponseWriter, r *http.Request) {
	machines, err := h.db.ListMachines(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, ggnetrr.New(ggnetrr.Internal, "handlers.machine.list", err))
		return
	}
	WriteJSONOK(w, machines)
}

// createMachineRequest is the JSON body for POST /api/v1/machines.
type createMachineRequest struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	MAC         string `json:"mac"`
	Hostname    string `json:"hostname"`
	BootMode    string `json:"boot_mode"`
	SecureBoot  bool   `json:"secure_boot"`
	Location    string `json:"location"`
}

// Create handles POST /api/v1/machines.
func (h *MachineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMachineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.DisplayName == "" || req.MAC == "" {
		BadRequest(w, "display_name and mac are required")
		return
	}
	mac, ok := models.CanonicalizeMAC(req.MAC)
	if !ok {
		BadRequest(w, "mac must contain 12 hexadecimal digits")
		return
	}

	bootMode := models.BootMode(req.BootMode)
	if bootMode == "" {
		bootMode = models.BootModeUEFI
	}

	machine := &models.Machine{
		DisplayName: req.DisplayName,
		Description: req.Description,
		MAC:         mac,
		Hostname:    req.Hostname,
		BootMode:    string(bootMode),
		SecureBoot:  req.SecureBoot,
		Location:    req.Location,
		Status:      string(models.MachineStatusActive),
	}
	id, err := h.db.CreateMachine(r.Context(), machine)
	if err != nil {
		if err == models.ErrDuplicateMachine {
			writeError(w, ggnetrr.New(ggnetrr.Conflict, "handlers.machine.create", err))
			return
		}
		writeError(w, ggnetrr.New(ggnetrr.Internal, "handlers.machine.create", err))
		return
	}
	machine.ID = id
	WriteJSONCreated(w, machine)
}

// updateMachineRequest is the JSON body for PUT /api/v1/machines/{id}.
type updateMachineRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
	Hostname    *string `json:"hostname"`
	Status      *string `json:"status"`
	Location    *string `json:"location"`
}

// Update handles PUT /api/v1/machines/{id}.
func (h *MachineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	machine, err := h.db.GetMachine(r.Context(), id)
	if err != nil {
		writeError(w, ggnetrr.New(ggnetrr.NotFound, "handlers.machine.update", err))
		return
	}

	var req updateMachineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.DisplayName != nil {
		machine.DisplayName = *req.DisplayName
	}
	if req.Description != nil {
		machine.Description = *req.Description
	}
	if req.Hostname != nil {
		machine.Hostname = *req.Hostname
	}
	if req.Status != nil {
		machine.Status = *req.Status
	}
	if req.Location != nil {
		machine.Location = *req.Location
	}

	if err := h.db.UpdateMachine(r.Context(), machine); err != nil {
		writeError(w, ggnetrr.New(ggnetrr.Internal, "handlers.machine.update", err))
		return
	}
	WriteJSONOK(w, machine)
}

// Delete handles DELETE /api/v1/machines/{id}.
func (h *MachineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.DeleteMachine(r.Context(), id); err != nil {
		writeError(w, ggnetrr.New(ggnetrr.NotFound, "handlers.machine.delete", err))
		return
	}
	WriteNoContent(w)
}
