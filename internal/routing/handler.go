package routing

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dispatch-service/internal/geo"
	"dispatch-service/pkg/validation"
)

// Handler exposes route ranking and progress endpoints.
type Handler struct {
	ranker    *Ranker
	estimator *Estimator
}

// NewHandler wires a handler to the ranker and estimator.
func NewHandler(ranker *Ranker, estimator *Estimator) *Handler {
	return &Handler{ranker: ranker, estimator: estimator}
}

// Routes returns a chi.Router for the /routes mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/options", h.Options)
	r.Get("/progress/{dispatchID}", h.Progress)
	return r
}

// Options ranks alternative routes between two points.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	from, ok1 := parsePoint(r, "from_lat", "from_lng")
	to, ok2 := parsePoint(r, "to_lat", "to_lng")
	if !ok1 || !ok2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from_lat, from_lng, to_lat, to_lng are required"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"routes": h.ranker.RankRoutes(r.Context(), from, to),
	})
}

// Progress serves the cached route-progress snapshot for a dispatch.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	p, ok, err := h.estimator.Progress(r.Context(), chi.URLParam(r, "dispatchID"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no progress snapshot"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func parsePoint(r *http.Request, latKey, lngKey string) (geo.LatLng, bool) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get(latKey), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get(lngKey), 64)
	if err1 != nil || err2 != nil || !validation.ValidateCoordinates(lat, lng) {
		return geo.LatLng{}, false
	}
	return geo.LatLng{Lat: lat, Lng: lng}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
