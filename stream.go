package fleettracker

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/fleet-tracker/broadcast"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The subscribe surface is same-origin-agnostic: it serves map clients
	// from any host, like the query endpoints do.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSubscribe upgrades to a websocket and streams matching
// vehicle_update and gap events. The filter comes from query parameters:
// routeIds=R1,R2 or viewport=minLat,minLng,maxLat,maxLng; neither means
// unfiltered. The subscription dies with the connection.
func (a *App) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err})
		return
	}

	conn, upgradeErr := upgrader.Upgrade(w, r, nil)
	if upgradeErr != nil {
		return
	}

	sub := a.bcast.Subscribe(filter)
	defer a.bcast.Unsubscribe(sub)
	defer conn.Close()

	// Reader goroutine: we never expect client frames after the handshake,
	// but reading is what surfaces the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// filterFromQuery parses the subscription filter. Returns a reason string on
// malformed input.
func filterFromQuery(r *http.Request) (broadcast.Filter, string) {
	q := r.URL.Query()
	var f broadcast.Filter

	if s := q.Get("routeIds"); s != "" {
		ids := strings.Split(s, ",")
		f.RouteIDs = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				f.RouteIDs[id] = struct{}{}
			}
		}
	}

	if s := q.Get("viewport"); s != "" {
		parts := strings.Split(s, ",")
		if len(parts) != 4 {
			return f, "viewport must be minLat,minLng,maxLat,maxLng"
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return f, "viewport must be four numbers"
			}
			vals[i] = v
		}
		f.Viewport = &broadcast.Viewport{MinLat: vals[0], MinLng: vals[1], MaxLat: vals[2], MaxLng: vals[3]}
	}
	return f, ""
}
