package selection

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dispatch-service/internal/geo"
	"dispatch-service/internal/vehicles"
	"dispatch-service/pkg/jwt"
	"dispatch-service/pkg/validation"
)

// PoolSource supplies the candidate pool: AVAILABLE vehicles with a known
// position. Implemented by the vehicle service.
type PoolSource interface {
	ListAvailable(ctx context.Context) ([]vehicles.Vehicle, error)
}

// Handler exposes the optimal-vehicle endpoint.
type Handler struct {
	pool    PoolSource
	weights Weights
}

// NewHandler wires a handler to the vehicle pool with the given weights.
func NewHandler(pool PoolSource, weights Weights) *Handler {
	return &Handler{pool: pool, weights: weights}
}

// Routes returns a chi.Router for the /selection mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jwt.RequireAuth)
	r.Post("/optimal-vehicle", h.OptimalVehicle)
	return r
}

// OptimalRequest is the body for POST /selection/optimal-vehicle.
type OptimalRequest struct {
	Pickup   geo.LatLng `json:"pickup"`
	Criteria Criteria   `json:"criteria"`
}

func (h *Handler) OptimalVehicle(w http.ResponseWriter, r *http.Request) {
	var req OptimalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if !validation.ValidateCoordinates(req.Pickup.Lat, req.Pickup.Lng) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of range"})
		return
	}

	pool, err := h.pool.ListAvailable(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	best := FindOptimal(req.Pickup, pool, req.Criteria, h.weights)
	if best == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no suitable vehicle"})
		return
	}
	writeJSON(w, http.StatusOK, best)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
