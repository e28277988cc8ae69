// Package redisstate persists alert state in Redis with optimistic locking.
package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/envsense/insight-engine/internal/domain"
)

// DefaultTTL bounds how long an idle alert stream survives. Long enough to
// outlive any sane cooldown; expired streams simply restart from QUIET.
const DefaultTTL = 48 * time.Hour

// Store implements engine.AlertStateStore on a Redis client.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Store. ttl <= 0 selects DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func key(userID string, category domain.Category) string {
	return fmt.Sprintf("alert_state:%s:%s", userID, category)
}

// Get returns the stored state for (userID, category), or the zero state if
// none exists.
func (s *Store) Get(ctx context.Context, userID string, category domain.Category) (domain.AlertState, error) {
	raw, err := s.client.Get(ctx, key(userID, category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AlertState{}, nil
	}
	if err != nil {
		return domain.AlertState{}, fmt.Errorf("get alert state: %w", err)
	}

	var state domain.AlertState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.AlertState{}, fmt.Errorf("decode alert state: %w", err)
	}
	return state, nil
}

// CompareAndSet writes next only if the stored version still matches
// prev.Version, bumping the version on success. Returns
// domain.ErrStateConflict when a concurrent writer got there first.
func (s *Store) CompareAndSet(ctx context.Context, userID string, category domain.Category, prev, next domain.AlertState) error {
	k := key(userID, category)

	txn := func(tx *redis.Tx) error {
		current := domain.AlertState{}
		raw, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// No state yet: only a zero-version prev may create it.
		case err != nil:
			return fmt.Errorf("get alert state: %w", err)
		default:
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("decode alert state: %w", err)
			}
		}

		if current.Version != prev.Version {
			return domain.ErrStateConflict
		}

		next.Version = prev.Version + 1
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode alert state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, encoded, s.ttl)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, k)
	if errors.Is(err, redis.TxFailedErr) {
		// The watched key changed between read and write.
		return domain.ErrStateConflict
	}
	return err
}

// Ping verifies connectivity. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
