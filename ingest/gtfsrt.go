package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// RTSource polls a GTFS-Realtime VehiclePositions feed and feeds its
// entities through the gateway, so an agency feed can drive the tracker the
// same way direct agent reports do.
type RTSource struct {
	url      string
	interval time.Duration
	gw       *Gateway
	client   *http.Client
	log      *slog.Logger
}

// NewRTSource returns a poller for the given VehiclePositions URL.
func NewRTSource(url string, interval time.Duration, gw *Gateway) *RTSource {
	return &RTSource{
		url:      url,
		interval: interval,
		gw:       gw,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      slog.With("component", "gtfsrt", "url", url),
	}
}

// Run polls until the context is cancelled. Fetch and decode failures are
// logged and retried on the next tick; a realtime feed being briefly down is
// not fatal.
func (s *RTSource) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.pollOnce(ctx); err != nil {
			s.log.Warn("poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *RTSource) pollOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, s.url)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err != nil {
		return fmt.Errorf("decode feed: %w", err)
	}

	for _, e := range fm.Entity {
		r, ok := reportFromEntity(e)
		if !ok {
			continue
		}
		if err := s.gw.Submit(ctx, r); err != nil {
			s.log.Debug("entity rejected", "vehicle", r.VehicleID, "err", err)
		}
	}
	return nil
}

// reportFromEntity maps one feed entity to a position report. Entities
// without a vehicle id or position are skipped.
func reportFromEntity(e *gtfsrtpb.FeedEntity) (Report, bool) {
	v := e.GetVehicle()
	if v == nil || v.GetPosition() == nil {
		return Report{}, false
	}
	vehicleID := v.GetVehicle().GetId()
	if vehicleID == "" {
		return Report{}, false
	}

	pos := v.GetPosition()
	r := Report{
		VehicleID:  vehicleID,
		Lat:        float64(pos.GetLatitude()),
		Lng:        float64(pos.GetLongitude()),
		HeadingDeg: float64(pos.GetBearing()),
		SpeedKmh:   float64(pos.GetSpeed()) * 3.6, // feed speed is m/s
		Timestamp:  time.Unix(int64(v.GetTimestamp()), 0),
	}
	if trip := v.GetTrip(); trip != nil {
		r.RouteID = trip.GetRouteId()
	}
	if v.Timestamp == nil {
		r.Timestamp = time.Now()
	}
	return r, true
}
