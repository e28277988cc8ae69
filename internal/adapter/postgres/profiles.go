// Package postgres reads health profiles from PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/envsense/insight-engine/internal/domain"
)

// ProfileStore implements engine.ProfileStore on a SQL connection pool.
type ProfileStore struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*ProfileStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &ProfileStore{db: db}, nil
}

// NewProfileStore wraps an existing pool. Used by tests.
func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// GetProfile returns the stored profile for userID. Unknown users get an
// empty profile, not an error: baseline risk applies.
func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (domain.HealthProfile, error) {
	const query = `
		SELECT sensitivities, sleep_target_hours, step_target, calorie_target
		FROM health_profiles
		WHERE user_id = $1`

	var (
		sensitivities []string
		sleepTarget   sql.NullFloat64
		stepTarget    sql.NullInt64
		calorieTarget sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, userID).
		Scan(pq.Array(&sensitivities), &sleepTarget, &stepTarget, &calorieTarget)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HealthProfile{UserID: userID}, nil
	}
	if err != nil {
		return domain.HealthProfile{}, fmt.Errorf("query health profile: %w", err)
	}

	profile := domain.HealthProfile{
		UserID: userID,
		Goals: domain.Goals{
			SleepTargetHours: sleepTarget.Float64,
			StepTarget:       int(stepTarget.Int64),
			CalorieTarget:    int(calorieTarget.Int64),
		},
	}
	for _, s := range sensitivities {
		profile.Sensitivities = append(profile.Sensitivities, domain.Sensitivity(s))
	}
	return profile, nil
}

// Ping verifies connectivity. Used by readiness checks.
func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}
