package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envsense/insight-engine/internal/domain"
	"github.com/envsense/insight-engine/internal/observability"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

type stubProvider struct {
	measurements []domain.RawMeasurement
	err          error
	calls        int
}

func (p *stubProvider) Measurements(_ context.Context, _ domain.Location) ([]domain.RawMeasurement, error) {
	p.calls++
	return p.measurements, p.err
}

type stubProfiles struct {
	profile domain.HealthProfile
	err     error
}

func (p *stubProfiles) GetProfile(_ context.Context, userID string) (domain.HealthProfile, error) {
	if p.err != nil {
		return domain.HealthProfile{}, p.err
	}
	profile := p.profile
	profile.UserID = userID
	return profile, nil
}

// memStates is an in-memory AlertStateStore with injectable failures.
type memStates struct {
	states  map[string]domain.AlertState
	getErr  error
	setErr  error
	setCall int
}

func newMemStates() *memStates {
	return &memStates{states: make(map[string]domain.AlertState)}
}

func stateKey(userID string, category domain.Category) string {
	return userID + ":" + string(category)
}

func (s *memStates) Get(_ context.Context, userID string, category domain.Category) (domain.AlertState, error) {
	if s.getErr != nil {
		return domain.AlertState{}, s.getErr
	}
	return s.states[stateKey(userID, category)], nil
}

func (s *memStates) CompareAndSet(_ context.Context, userID string, category domain.Category, prev, next domain.AlertState) error {
	s.setCall++
	if s.setErr != nil {
		return s.setErr
	}
	key := stateKey(userID, category)
	if s.states[key].Version != prev.Version {
		return domain.ErrStateConflict
	}
	next.Version = prev.Version + 1
	s.states[key] = next
	return nil
}

type collectPublisher struct {
	userID string
	alerts []domain.Alert
	err    error
}

func (p *collectPublisher) PublishAlerts(_ context.Context, userID string, alerts []domain.Alert) error {
	if p.err != nil {
		return p.err
	}
	p.userID = userID
	p.alerts = append(p.alerts, alerts...)
	return nil
}

func measurementsAt(ts time.Time, pm25 float64, uv float64) []domain.RawMeasurement {
	return []domain.RawMeasurement{
		{Source: "test", Metric: domain.MetricPM25, Value: pm25, Unit: "ug/m3", Timestamp: ts},
		{Source: "test", Metric: domain.MetricUVIndex, Value: uv, Unit: "index", Timestamp: ts},
	}
}

type fixture struct {
	engine    *Engine
	provider  *stubProvider
	profiles  *stubProfiles
	states    *memStates
	publisher *collectPublisher
	clock     *clockwork.FakeClock
	metrics   *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider:  &stubProvider{},
		profiles:  &stubProfiles{},
		states:    newMemStates(),
		publisher: &collectPublisher{},
		clock:     clockwork.NewFakeClockAt(testNow),
		metrics:   observability.NewMetricsForTesting(),
	}
	f.engine = New(f.provider, f.profiles, f.states, f.publisher,
		domain.DefaultTables(), Config{}, slog.Default(), f.metrics)
	f.engine.SetClock(f.clock)
	f.engine.newID = func() string { return "alert-1" }
	return f
}

func TestBuildInsight(t *testing.T) {
	t.Run("fires and publishes an alert for severe personalized risk", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = measurementsAt(testNow, 200, 2)
		f.profiles.profile = domain.HealthProfile{
			Sensitivities: []domain.Sensitivity{domain.SensitivityRespiratory},
		}

		insight, err := f.engine.BuildInsight(context.Background(), Request{
			UserID:   "user-1",
			Location: domain.Location{Lat: 59.33, Lon: 18.07},
		})
		require.NoError(t, err)

		require.Len(t, insight.Alerts, 1)
		alert := insight.Alerts[0]
		assert.Equal(t, "alert-1", alert.ID)
		assert.Equal(t, domain.CategoryAirQuality, alert.Category)
		assert.Equal(t, domain.RiskSevere, alert.Severity)
		assert.Equal(t, testNow, alert.FiredAt)
		assert.False(t, insight.AlertsDeferred)

		assert.Equal(t, "user-1", f.publisher.userID)
		assert.Equal(t, insight.Alerts, f.publisher.alerts)

		stored := f.states.states[stateKey("user-1", domain.CategoryAirQuality)]
		assert.Equal(t, domain.PhaseActive, stored.Phase)
		assert.Equal(t, domain.RiskSevere, stored.LastSeverity)
		assert.Equal(t, int64(1), stored.Version)
	})

	t.Run("suppresses a repeat within the cooldown window", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = measurementsAt(testNow, 200, 2)
		f.profiles.profile = domain.HealthProfile{
			Sensitivities: []domain.Sensitivity{domain.SensitivityRespiratory},
		}
		req := Request{UserID: "user-1", Location: domain.Location{Lat: 1, Lon: 2}}

		first, err := f.engine.BuildInsight(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, first.Alerts, 1)

		f.clock.Advance(30 * time.Minute)
		f.provider.measurements = measurementsAt(f.clock.Now(), 200, 2)

		second, err := f.engine.BuildInsight(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, second.Alerts)
		assert.False(t, second.AlertsDeferred)

		stored := f.states.states[stateKey("user-1", domain.CategoryAirQuality)]
		assert.Equal(t, domain.PhaseSuppressed, stored.Phase)
	})

	t.Run("refires after the cooldown elapses", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = measurementsAt(testNow, 200, 2)
		f.profiles.profile = domain.HealthProfile{
			Sensitivities: []domain.Sensitivity{domain.SensitivityRespiratory},
		}
		req := Request{UserID: "user-1", Location: domain.Location{Lat: 1, Lon: 2}}

		_, err := f.engine.BuildInsight(context.Background(), req)
		require.NoError(t, err)

		f.clock.Advance(domain.DefaultAlertCooldown)
		f.provider.measurements = measurementsAt(f.clock.Now(), 200, 2)

		again, err := f.engine.BuildInsight(context.Background(), req)
		require.NoError(t, err)
		assert.Len(t, again.Alerts, 1)
	})

	t.Run("returns incomplete data error when a family is missing", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = []domain.RawMeasurement{
			{Source: "test", Metric: domain.MetricUVIndex, Value: 3, Unit: "index", Timestamp: testNow},
		}

		_, err := f.engine.BuildInsight(context.Background(), Request{UserID: "user-1"})
		var incomplete *domain.IncompleteDataError
		require.ErrorAs(t, err, &incomplete)
		assert.Equal(t, "air_quality", incomplete.Family)
	})

	t.Run("falls back to an empty profile when the store fails", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = measurementsAt(testNow, 200, 2)
		f.profiles.err = errors.New("connection refused")

		insight, err := f.engine.BuildInsight(context.Background(), Request{UserID: "user-1"})
		require.NoError(t, err)

		// Without the respiratory boost AQI 250 stays HIGH, not SEVERE.
		air := findRisk(t, insight.Risks, domain.CategoryAirQuality)
		assert.Equal(t, domain.RiskHigh, air.Level)
	})

	t.Run("uses inline measurements when the provider fails", func(t *testing.T) {
		f := newFixture(t)
		f.provider.err = errors.New("upstream timeout")

		insight, err := f.engine.BuildInsight(context.Background(), Request{
			UserID:       "user-1",
			Measurements: measurementsAt(testNow, 10, 3),
		})
		require.NoError(t, err)
		assert.True(t, insight.AQI.Known)
		assert.Equal(t, 1, f.provider.calls)
	})

	t.Run("defers alerts when the state store is unreachable", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = measurementsAt(testNow, 200, 2)
		f.states.getErr = errors.New("redis down")

		insight, err := f.engine.BuildInsight(context.Background(), Request{UserID: "user-1"})
		require.NoError(t, err)
		assert.True(t, insight.AlertsDeferred)
		assert.Empty(t, insight.Alerts)
		assert.NotEmpty(t, insight.Risks)
	})

	t.Run("drops the alert on a version conflict without deferring", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = measurementsAt(testNow, 200, 2)
		f.states.setErr = domain.ErrStateConflict

		insight, err := f.engine.BuildInsight(context.Background(), Request{UserID: "user-1"})
		require.NoError(t, err)
		assert.Empty(t, insight.Alerts)
		assert.False(t, insight.AlertsDeferred)
	})

	t.Run("keeps fired alerts in the response when publishing fails", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = measurementsAt(testNow, 200, 2)
		f.profiles.profile = domain.HealthProfile{
			Sensitivities: []domain.Sensitivity{domain.SensitivityRespiratory},
		}
		f.publisher.err = errors.New("broker unavailable")

		insight, err := f.engine.BuildInsight(context.Background(), Request{UserID: "user-1"})
		require.NoError(t, err)
		assert.Len(t, insight.Alerts, 1)
	})

	t.Run("skips the state store for anonymous requests", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = measurementsAt(testNow, 200, 2)

		insight, err := f.engine.BuildInsight(context.Background(), Request{})
		require.NoError(t, err)
		assert.Empty(t, insight.Alerts)
		assert.False(t, insight.AlertsDeferred)
		assert.Zero(t, f.states.setCall)
	})

	t.Run("defers alerts when no state store is configured", func(t *testing.T) {
		f := newFixture(t)
		f.provider.measurements = measurementsAt(testNow, 200, 2)
		f.engine.states = nil

		insight, err := f.engine.BuildInsight(context.Background(), Request{UserID: "user-1"})
		require.NoError(t, err)
		assert.True(t, insight.AlertsDeferred)
	})
}

func TestCheckReadiness(t *testing.T) {
	f := newFixture(t)
	require.Error(t, f.engine.CheckReadiness(context.Background()))

	f.provider.measurements = measurementsAt(testNow, 10, 2)
	_, err := f.engine.BuildInsight(context.Background(), Request{UserID: "user-1"})
	require.NoError(t, err)
	assert.NoError(t, f.engine.CheckReadiness(context.Background()))
}

func findRisk(t *testing.T, risks []domain.RiskAssessment, category domain.Category) domain.RiskAssessment {
	t.Helper()
	for _, risk := range risks {
		if risk.Category == category {
			return risk
		}
	}
	t.Fatalf("no risk assessment for category %s", category)
	return domain.RiskAssessment{}
}
