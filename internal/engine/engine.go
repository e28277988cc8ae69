// Package engine orchestrates one insight evaluation: fetch measurements,
// normalize, score, evaluate personal risk, advance alert state, and assemble
// the response. All domain computation lives in internal/domain; the engine
// owns sequencing, fallbacks, and side effects.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/envsense/insight-engine/internal/domain"
	"github.com/envsense/insight-engine/internal/observability"
)

// ProfileStore reads health profiles. A missing user is not an error: stores
// return an empty profile for unknown users.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (domain.HealthProfile, error)
}

// AlertStateStore persists per-(user, category) alert state with optimistic
// concurrency. CompareAndSet must return domain.ErrStateConflict when the
// stored version no longer matches prev.Version.
type AlertStateStore interface {
	Get(ctx context.Context, userID string, category domain.Category) (domain.AlertState, error)
	CompareAndSet(ctx context.Context, userID string, category domain.Category, prev, next domain.AlertState) error
}

// AlertPublisher delivers fired alerts to the notification channel.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, userID string, alerts []domain.Alert) error
}

// MeasurementProvider fetches current raw measurements for a location.
type MeasurementProvider interface {
	Measurements(ctx context.Context, loc domain.Location) ([]domain.RawMeasurement, error)
}

// alertCategories are the risk categories that drive alert streams. Sunlight
// and overall risks inform but never page.
var alertCategories = []domain.Category{domain.CategoryAirQuality, domain.CategoryUV}

// Config tunes the engine's evaluation windows.
type Config struct {
	FreshnessWindow time.Duration
	AlertCooldown   time.Duration
}

// Request is one insight evaluation. Measurements may be supplied inline by
// the caller; any gaps are filled from the configured provider.
type Request struct {
	UserID       string
	Location     domain.Location
	Measurements []domain.RawMeasurement
}

// Engine evaluates insight requests. Safe for concurrent use.
type Engine struct {
	provider  MeasurementProvider
	profiles  ProfileStore
	states    AlertStateStore
	publisher AlertPublisher
	tables    *domain.Tables
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	newID     func() string
	ready     atomic.Bool
}

// New creates an Engine. provider, states, and publisher may be nil, in which
// case the corresponding feature is disabled: no provider means requests must
// carry their own measurements, no state store means alert evaluation is
// deferred, no publisher means fired alerts are only reported in the response.
func New(provider MeasurementProvider, profiles ProfileStore, states AlertStateStore,
	publisher AlertPublisher, tables *domain.Tables, cfg Config,
	logger *slog.Logger, metrics *observability.Metrics) *Engine {

	return &Engine{
		provider:  provider,
		profiles:  profiles,
		states:    states,
		publisher: publisher,
		tables:    tables,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		newID:     func() string { return uuid.NewString() },
	}
}

// SetClock replaces the engine's clock. Test hook.
func (e *Engine) SetClock(clock clockwork.Clock) {
	e.clock = clock
}

// CheckReadiness returns nil once the engine has served at least one insight.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("engine has not evaluated any insights yet")
	}
	return nil
}

// BuildInsight runs the full evaluation cycle for one request.
//
// Fallbacks, in order of degradation:
//   - provider failure: evaluate with the inline measurements only.
//   - profile store failure: evaluate with an empty profile.
//   - alert-state store failure: skip alerts, set AlertsDeferred.
//   - publish failure: alerts still appear in the response; delivery is
//     logged and retried out of band.
//
// Only incomplete input data (*domain.IncompleteDataError) or a hole in the
// advice matrix aborts the request.
func (e *Engine) BuildInsight(ctx context.Context, req Request) (domain.Insight, error) {
	start := e.clock.Now()
	e.metrics.RequestsTotal.Inc()

	measurements := e.gatherMeasurements(ctx, req)

	readings, err := domain.Normalize(measurements, start, domain.NormalizerConfig{
		FreshnessWindow: e.cfg.FreshnessWindow,
	})
	if err != nil {
		var incomplete *domain.IncompleteDataError
		if errors.As(err, &incomplete) {
			e.metrics.IncompleteData.Inc()
		}
		return domain.Insight{}, err
	}

	score := domain.Score(readings, e.tables)
	profile := e.fetchProfile(ctx, req.UserID)
	risks := domain.EvaluateRisk(score, profile, e.tables)
	advisories := domain.Advisories(score, e.tables)

	alerts, deferred := e.evaluateAlerts(ctx, req.UserID, risks, start)

	insight, err := domain.AssembleInsight(req.Location, start, score, risks, alerts, advisories, e.tables)
	if err != nil {
		return domain.Insight{}, err
	}
	insight.AlertsDeferred = deferred

	if len(alerts) > 0 {
		e.publishAlerts(ctx, req.UserID, alerts)
	}

	e.metrics.RequestDuration.Observe(e.clock.Since(start).Seconds())
	e.ready.Store(true)
	e.metrics.EngineReady.Set(1)
	return insight, nil
}

// gatherMeasurements merges inline request measurements with the provider's.
// A provider failure degrades to inline-only: Normalize reports the gap if the
// result is incomplete.
func (e *Engine) gatherMeasurements(ctx context.Context, req Request) []domain.RawMeasurement {
	measurements := req.Measurements
	if e.provider == nil {
		return measurements
	}

	fetched, err := e.provider.Measurements(ctx, req.Location)
	if err != nil {
		e.logger.Warn("measurement provider failed, using inline measurements only",
			"error", err, "lat", req.Location.Lat, "lon", req.Location.Lon)
		return measurements
	}
	return append(fetched, measurements...)
}

// fetchProfile loads the user's health profile, degrading to an empty profile
// on store failure so the request still produces baseline risk.
func (e *Engine) fetchProfile(ctx context.Context, userID string) domain.HealthProfile {
	if e.profiles == nil || userID == "" {
		return domain.HealthProfile{UserID: userID}
	}

	profile, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		e.logger.Warn("profile fetch failed, evaluating with empty profile",
			"error", err, "user_id", userID)
		e.metrics.ProfileFallbacks.Inc()
		return domain.HealthProfile{UserID: userID}
	}
	return profile
}

// evaluateAlerts advances the alert state machine for every alertable
// category and returns the alerts that fired. A state store error on any
// category fails closed: no alerts fire and the deferred flag is set so the
// caller knows to retry. A compare-and-set conflict means a concurrent
// evaluation already handled this instant; its outcome stands and ours is
// dropped without deferring.
func (e *Engine) evaluateAlerts(ctx context.Context, userID string, risks []domain.RiskAssessment, now time.Time) ([]domain.Alert, bool) {
	if e.states == nil || userID == "" {
		return nil, e.states == nil
	}

	levels := make(map[domain.Category]domain.RiskLevel, len(risks))
	for _, risk := range risks {
		levels[risk.Category] = risk.Level
	}

	var alerts []domain.Alert
	for _, category := range alertCategories {
		level, ok := levels[category]
		if !ok {
			continue
		}

		alert, err := e.evaluateAlert(ctx, userID, category, level, now)
		if err != nil {
			if errors.Is(err, domain.ErrStateConflict) {
				e.metrics.StateConflicts.Inc()
				e.logger.Info("alert state conflict, concurrent evaluation wins",
					"user_id", userID, "category", category)
				continue
			}
			e.metrics.StateErrors.Inc()
			e.logger.Error("alert state unavailable, deferring alerts",
				"error", err, "user_id", userID, "category", category)
			return nil, true
		}
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts, false
}

// evaluateAlert runs one category through the state machine and persists the
// transition. Returns the fired alert, nil if nothing fired, or an error when
// the store failed (*domain.StateUnavailableError) or the write conflicted.
func (e *Engine) evaluateAlert(ctx context.Context, userID string, category domain.Category,
	level domain.RiskLevel, now time.Time) (*domain.Alert, error) {

	prev, err := e.states.Get(ctx, userID, category)
	if err != nil {
		return nil, &domain.StateUnavailableError{UserID: userID, Category: category, Err: err}
	}

	transition := domain.NextAlertState(prev, level, now, e.cfg.AlertCooldown)

	if transition.State != prev {
		if err := e.states.CompareAndSet(ctx, userID, category, prev, transition.State); err != nil {
			if errors.Is(err, domain.ErrStateConflict) {
				return nil, err
			}
			return nil, &domain.StateUnavailableError{UserID: userID, Category: category, Err: err}
		}
	}

	if transition.State.Phase == domain.PhaseSuppressed {
		e.metrics.AlertsSuppressed.WithLabelValues(string(category)).Inc()
	}
	if !transition.Fired {
		return nil, nil
	}

	e.metrics.AlertsFired.WithLabelValues(string(category)).Inc()
	return &domain.Alert{
		ID:       e.newID(),
		Category: category,
		Severity: level,
		FiredAt:  now,
	}, nil
}

// publishAlerts hands fired alerts to the notification channel. Failures are
// logged, not surfaced: the alert already committed to the state store and
// appears in the response.
func (e *Engine) publishAlerts(ctx context.Context, userID string, alerts []domain.Alert) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishAlerts(ctx, userID, alerts); err != nil {
		e.metrics.PublishErrors.Inc()
		e.logger.Error("alert publish failed", "error", err,
			"user_id", userID, "count", len(alerts))
	}
}
