// fleet-sim is a demo feeder: it moves synthetic vehicles on a random walk
// and posts their position reports to the tracker's ingest endpoint. It is a
// data source for the core, deliberately outside it: the tracker stores what
// it is told, it never synthesizes movement itself.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

type report struct {
	VehicleID  string    `json:"vehicleId"`
	RouteID    string    `json:"routeId,omitempty"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	HeadingDeg float64   `json:"headingDeg"`
	SpeedKmh   float64   `json:"speedKmh"`
	Occupancy  float64   `json:"occupancy"`
	Timestamp  time.Time `json:"timestamp"`
}

type vehicle struct {
	id      string
	routeID string
	lat     float64
	lng     float64
	heading float64 // radians
	speed   float64 // km/h
	occ     float64
}

const (
	turnProbability = 0.1
	turnMaxAngle    = 0.3 // radians
	minSpeedKmh     = 10
	maxSpeedKmh     = 60
)

func main() {
	target := flag.String("target", "http://127.0.0.1:16080", "tracker base URL")
	vehicles := flag.Int("vehicles", 20, "number of simulated vehicles")
	interval := flag.Duration("interval", 2*time.Second, "report interval")
	routes := flag.String("routes", "R1,R2", "comma-separated route ids to assign")
	centerLat := flag.Float64("lat", 9.0157, "simulation center latitude")
	centerLng := flag.Float64("lng", 38.7469, "simulation center longitude")
	spread := flag.Float64("spread", 0.05, "initial spread in degrees")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	routeIDs := strings.Split(*routes, ",")
	fleet := make([]*vehicle, *vehicles)
	for i := range fleet {
		fleet[i] = &vehicle{
			id:      fmt.Sprintf("SIM-%03d", i+1),
			routeID: strings.TrimSpace(routeIDs[i%len(routeIDs)]),
			lat:     *centerLat + (rand.Float64()-0.5)**spread,
			lng:     *centerLng + (rand.Float64()-0.5)**spread,
			heading: rand.Float64() * 2 * math.Pi,
			speed:   minSpeedKmh + rand.Float64()*(maxSpeedKmh-minSpeedKmh),
			occ:     rand.Float64(),
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	url := strings.TrimRight(*target, "/") + "/api/reports"
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	slog.Info("simulator started", "vehicles", len(fleet), "target", url)
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulator stopped")
			return
		case <-ticker.C:
		}
		now := time.Now()
		for _, v := range fleet {
			v.step(interval.Seconds())
			if err := post(ctx, client, url, v.report(now)); err != nil {
				slog.Warn("post failed", "vehicle", v.id, "err", err)
			}
		}
	}
}

// step advances the vehicle along its heading with occasional wobble.
func (v *vehicle) step(seconds float64) {
	if rand.Float64() < turnProbability {
		v.heading += (rand.Float64() - 0.5) * 2 * turnMaxAngle
	}
	distKM := v.speed * seconds / 3600
	degPerKM := 1.0 / 111.2
	v.lat += distKM * degPerKM * math.Cos(v.heading)
	v.lng += distKM * degPerKM * math.Sin(v.heading) / math.Cos(v.lat*math.Pi/180)
	v.occ = math.Min(1, math.Max(0, v.occ+(rand.Float64()-0.5)*0.1))
}

func (v *vehicle) report(now time.Time) report {
	headingDeg := math.Mod(v.heading*180/math.Pi, 360)
	if headingDeg < 0 {
		headingDeg += 360
	}
	return report{
		VehicleID:  v.id,
		RouteID:    v.routeID,
		Lat:        v.lat,
		Lng:        v.lng,
		HeadingDeg: headingDeg,
		SpeedKmh:   v.speed,
		Occupancy:  v.occ,
		Timestamp:  now,
	}
}

func post(ctx context.Context, client *http.Client, url string, r report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
