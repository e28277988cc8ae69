// Package memory provides in-process implementations of the engine's stores
// and publisher, used by the simulator and as a fallback when no external
// backend is configured.
package memory

import (
	"context"
	"sync"

	"github.com/envsense/insight-engine/internal/domain"
)

// ProfileStore is a map-backed engine.ProfileStore.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.HealthProfile
}

// NewProfileStore creates an empty profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.HealthProfile)}
}

// Put stores a profile, keyed by its UserID.
func (s *ProfileStore) Put(profile domain.HealthProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
}

// GetProfile returns the stored profile, or an empty profile for unknown
// users.
func (s *ProfileStore) GetProfile(_ context.Context, userID string) (domain.HealthProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return domain.HealthProfile{UserID: userID}, nil
	}
	return profile, nil
}

// AlertStateStore is a map-backed engine.AlertStateStore with the same
// optimistic-concurrency contract as the Redis store.
type AlertStateStore struct {
	mu     sync.Mutex
	states map[string]domain.AlertState
}

// NewAlertStateStore creates an empty alert state store.
func NewAlertStateStore() *AlertStateStore {
	return &AlertStateStore{states: make(map[string]domain.AlertState)}
}

func stateKey(userID string, category domain.Category) string {
	return userID + ":" + string(category)
}

// Get returns the stored state, or the zero state if none exists.
func (s *AlertStateStore) Get(_ context.Context, userID string, category domain.Category) (domain.AlertState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[stateKey(userID, category)], nil
}

// CompareAndSet writes next only if the stored version still matches
// prev.Version.
func (s *AlertStateStore) CompareAndSet(_ context.Context, userID string, category domain.Category, prev, next domain.AlertState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey(userID, category)
	if s.states[key].Version != prev.Version {
		return domain.ErrStateConflict
	}
	next.Version = prev.Version + 1
	s.states[key] = next
	return nil
}

// Publisher collects published alerts in memory.
type Publisher struct {
	mu     sync.Mutex
	alerts map[string][]domain.Alert
}

// NewPublisher creates an empty collecting publisher.
func NewPublisher() *Publisher {
	return &Publisher{alerts: make(map[string][]domain.Alert)}
}

// PublishAlerts records the alerts under the user's ID.
func (p *Publisher) PublishAlerts(_ context.Context, userID string, alerts []domain.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts[userID] = append(p.alerts[userID], alerts...)
	return nil
}

// Published returns the alerts recorded for a user.
func (p *Publisher) Published(userID string) []domain.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alerts[userID]
}
