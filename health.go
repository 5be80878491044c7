package fleettracker

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status      string    `json:"status"`
	Vehicles    int       `json:"vehicles"`
	Subscribers int       `json:"subscribers"`
	Stops       int       `json:"stops"`
	Routes      int       `json:"routes"`
	RefLoadedAt time.Time `json:"refLoadedAt"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := a.Snapshot()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Vehicles:    a.store.Len(),
		Subscribers: a.bcast.Len(),
		Stops:       snap.NumStops(),
		Routes:      snap.NumRoutes(),
		RefLoadedAt: snap.LoadedAt,
	})
}
