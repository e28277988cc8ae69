// Command simulate runs a measurement timeline through the real engine with
// in-memory stores and a fixed clock, printing each insight as JSON. It is
// the quickest way to see how scoring, risk, and alert fatigue behave for a
// scenario without standing up Redis, Postgres, or Kafka.
//
// Usage:
//
//	go run ./cmd/simulate \
//	  -fixture data/scenarios/smog_episode.json \
//	  -user user-1 -sensitivities respiratory \
//	  -step 1h -steps 6
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/envsense/insight-engine/internal/adapter/memory"
	"github.com/envsense/insight-engine/internal/domain"
	"github.com/envsense/insight-engine/internal/engine"
	"github.com/envsense/insight-engine/internal/observability"
)

var simStart = time.Date(2026, time.August, 29, 8, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	fixture := flag.String("fixture", "", "JSON file of raw measurements (default: built-in smog scenario)")
	userID := flag.String("user", "user-1", "user ID to evaluate for")
	sensitivities := flag.String("sensitivities", "", "comma-separated profile sensitivities")
	step := flag.Duration("step", time.Hour, "clock advance between evaluations")
	steps := flag.Int("steps", 6, "number of evaluations")
	flag.Parse()

	measurements, err := loadMeasurements(*fixture)
	if err != nil {
		return err
	}

	profiles := memory.NewProfileStore()
	profiles.Put(buildProfile(*userID, *sensitivities))
	states := memory.NewAlertStateStore()
	publisher := memory.NewPublisher()

	clock := clockwork.NewFakeClockAt(simStart)
	eng := engine.New(nil, profiles, states, publisher, domain.DefaultTables(),
		engine.Config{}, slog.Default(), observability.NewMetricsForTesting())
	eng.SetClock(clock)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	ctx := context.Background()
	for i := 0; i < *steps; i++ {
		now := clock.Now()
		insight, err := eng.BuildInsight(ctx, engine.Request{
			UserID:       *userID,
			Location:     domain.Location{Lat: 59.3293, Lon: 18.0686, Label: "Stockholm"},
			Measurements: refreshed(measurements, now),
		})
		if err != nil {
			return fmt.Errorf("evaluation %d: %w", i+1, err)
		}

		fmt.Printf("--- evaluation %d at %s ---\n", i+1, now.Format(time.RFC3339))
		if err := enc.Encode(insight); err != nil {
			return err
		}
		clock.Advance(*step)
	}

	fmt.Printf("\n=== alert summary ===\n")
	fired := publisher.Published(*userID)
	fmt.Printf("Alerts fired: %d\n", len(fired))
	for _, alert := range fired {
		fmt.Printf("  %s %s at %s\n", alert.Category, alert.Severity, alert.FiredAt.Format(time.RFC3339))
	}
	return nil
}

func loadMeasurements(path string) ([]domain.RawMeasurement, error) {
	if path == "" {
		return smogScenario(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var measurements []domain.RawMeasurement
	if err := json.Unmarshal(data, &measurements); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return measurements, nil
}

func buildProfile(userID, sensitivities string) domain.HealthProfile {
	profile := domain.HealthProfile{UserID: userID}
	for _, s := range strings.Split(sensitivities, ",") {
		if s = strings.TrimSpace(s); s != "" {
			profile.Sensitivities = append(profile.Sensitivities, domain.Sensitivity(s))
		}
	}
	return profile
}

// refreshed restamps the fixture measurements at the current clock so they
// stay inside the freshness window as the simulation advances.
func refreshed(measurements []domain.RawMeasurement, now time.Time) []domain.RawMeasurement {
	out := make([]domain.RawMeasurement, len(measurements))
	for i, m := range measurements {
		m.Timestamp = now
		out[i] = m
	}
	return out
}

// smogScenario is a high-pollution summer morning: PM2.5 well into the
// unhealthy range, strong UV, long daylight.
func smogScenario() []domain.RawMeasurement {
	return []domain.RawMeasurement{
		{Source: "sim", Metric: domain.MetricPM25, Value: 160, Unit: "ug/m3"},
		{Source: "sim", Metric: domain.MetricPM10, Value: 210, Unit: "ug/m3"},
		{Source: "sim", Metric: domain.MetricO3, Value: 0.085, Unit: "ppm"},
		{Source: "sim", Metric: domain.MetricUVIndex, Value: 7, Unit: "index"},
		{Source: "sim", Metric: domain.MetricSunrise, Value: float64(simStart.Add(-3 * time.Hour).Unix()), Unit: "unix"},
		{Source: "sim", Metric: domain.MetricSunset, Value: float64(simStart.Add(12 * time.Hour).Unix()), Unit: "unix"},
		{Source: "sim", Metric: domain.MetricTemperature, Value: 36.5, Unit: "C"},
	}
}
