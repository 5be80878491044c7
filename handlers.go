package fleettracker

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/theoremus-urban-solutions/fleet-tracker/ingest"
	"github.com/theoremus-urban-solutions/fleet-tracker/query"
)

// routes builds the HTTP surface. The server intentionally has no
// WriteTimeout: /api/subscribe connections are long-lived.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/reports", a.handleSubmitReport)
	mux.HandleFunc("GET /api/routes/{id}/vehicles", a.handleRouteVehicles)
	mux.HandleFunc("GET /api/stops/nearby", a.handleNearbyStops)
	mux.HandleFunc("GET /api/stops/{id}/eta", a.handleStopETA)
	mux.HandleFunc("GET /api/subscribe", a.handleSubscribe)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/reference/reload", a.handleReload)
	return mux
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var report ingest.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "malformed JSON: " + err.Error()})
		return
	}
	if err := a.gateway.Submit(r.Context(), report); err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, apiError{Error: verr.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	// Stale reports land here too: reordered delivery is not an error the
	// reporting source can act on.
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *App) handleRouteVehicles(w http.ResponseWriter, r *http.Request) {
	routeID := r.PathValue("id")
	vehicles, err := a.svc.LiveVehicles(routeID)
	if err != nil {
		if errors.Is(err, query.ErrUnknownRoute) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "unknown route " + routeID})
			return
		}
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"routeId": routeID, "vehicles": vehicles})
}

func (a *App) handleNearbyStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	radius, err3 := strconv.ParseFloat(q.Get("radiusMeters"), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "lat, lng and radiusMeters are required numbers"})
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			limit = v
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stops": a.svc.NearbyStops(lat, lng, radius, limit)})
}

func (a *App) handleStopETA(w http.ResponseWriter, r *http.Request) {
	stopID := r.PathValue("id")
	board, err := a.svc.ETABoard(stopID)
	if err != nil {
		if errors.Is(err, query.ErrUnknownStop) {
			writeJSON(w, http.StatusNotFound, apiError{Error: "unknown stop " + stopID})
			return
		}
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stopId": stopID, "arrivals": board})
}

func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := a.ReloadReference(); err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	snap := a.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
		"stops":  snap.NumStops(),
		"routes": snap.NumRoutes(),
	})
}
