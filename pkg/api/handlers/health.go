package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ggnet/ggnetd/pkg/store"
)

// HealthCheckTimeout bounds how long a store health check may take before
// the readiness/stores probes report unhealthy rather than hang.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler serves the unauthenticated liveness/readiness probes.
//
// Unlike the protected session/machine/image routes, these endpoints carry
// no actor attribution: they exist for load balancers and orchestrators,
// not operators.
type HealthHandler struct {
	db store.HealthStore
}

// NewHealthHandler creates a health handler. db may be nil, in which case
// readiness and store health report unhealthy.
func NewHealthHandler(db store.HealthStore) *HealthHandler {
	return &HealthHandler{db: db}
}

// Liveness handles GET /health: always 200 while the process is up.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "ggnetd",
	}))
}

// Readiness handles GET /health/ready: 200 iff the database responds.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("database not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	if err := h.db.Healthcheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(nil))
}

// StoreHealth reports the health of a single persistence backend.
type StoreHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Stores handles GET /health/stores: detailed database health with timing.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("database not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.Healthcheck(ctx)
	latency := time.Since(start)

	health := StoreHealth{Name: "database", Latency: latency.String()}
	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(health))
		return
	}
	health.Status = "healthy"
	writeJSON(w, http.StatusOK, healthyResponse(health))
}
