package vehicles

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dispatch-service/pkg/jwt"
	"dispatch-service/pkg/validation"
)

// PositionReporter runs the full ingest pipeline for one report.
// Implemented by the tracking service.
type PositionReporter interface {
	ReportPosition(ctx context.Context, vehicleID string, req ReportRequest) error
}

// Handler exposes vehicle HTTP endpoints.
type Handler struct {
	svc      *Service
	reporter PositionReporter
}

// NewHandler wires a handler to the vehicle service and the ingest pipeline.
func NewHandler(svc *Service, reporter PositionReporter) *Handler {
	return &Handler{svc: svc, reporter: reporter}
}

// Routes returns a chi.Router with all vehicle routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/nearby", h.Nearby)
	r.Get("/{id}", h.GetByID)
	r.Get("/{id}/history", h.History)

	r.Group(func(r chi.Router) {
		r.Use(jwt.RequireAuth)
		r.Post("/", h.Create)
		r.Post("/{id}/location", h.ReportLocation)
		r.Patch("/{id}/status", h.UpdateStatus)
	})

	return r
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if req.FacilityID == "" || req.Callsign == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "facility_id and callsign are required"})
		return
	}
	if req.FuelLevel != nil && !validation.ValidateFuelLevel(*req.FuelLevel) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fuel_level must be 0-100"})
		return
	}

	v, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// UpdateStatus applies an operator status change (e.g. pulling a vehicle
// into maintenance). Vehicles on an active dispatch return 409.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if !OperatorSettable(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be AVAILABLE, MAINTENANCE or OUT_OF_SERVICE"})
		return
	}

	v, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrOnActiveDispatch):
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ReportLocation accepts one raw position report and feeds the ingest pipeline.
func (h *Handler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if !validation.ValidateCoordinates(req.Lat, req.Lng) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of range"})
		return
	}

	if err := h.reporter.ReportPosition(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	var from, to *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from"})
			return
		}
		from = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to"})
			return
		}
		to = &t
	}

	records, err := h.svc.History(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil || !validation.ValidateCoordinates(lat, lng) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lng are required"})
		return
	}
	radiusKm := 10.0
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			radiusKm = v
		}
	}

	ids, err := h.svc.GetNearby(r.Context(), lat, lng, radiusKm)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicle_ids": ids})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
