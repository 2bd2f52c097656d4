package bus

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store used across the package tests. It mirrors
// the contract of the mongo store: atomic claims, bounded actionable scans,
// update by ID.
type memStore struct {
	mu        sync.Mutex
	seq       int
	envelopes []*memEnvelope

	insertErr error
	updateErr error
	claimErr  error

	// onChange mimics a change feed: called after every successful insert
	// and update.
	onChange func()
}

type memEnvelope struct {
	env Envelope
	seq int
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) Insert(_ context.Context, env Envelope) error {
	s.mu.Lock()
	if s.insertErr != nil {
		s.mu.Unlock()
		return s.insertErr
	}
	s.seq++
	s.envelopes = append(s.envelopes, &memEnvelope{env: env, seq: s.seq})
	change := s.onChange
	s.mu.Unlock()

	if change != nil {
		change()
	}
	return nil
}

func (s *memStore) ActiveQueues(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.actionableLocked(now)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	seen := make(map[string]struct{})
	var queues []string
	for _, stored := range candidates {
		if _, ok := seen[stored.env.Queue]; ok {
			continue
		}
		seen[stored.env.Queue] = struct{}{}
		queues = append(queues, stored.env.Queue)
	}
	return queues, nil
}

func (s *memStore) ClaimNext(_ context.Context, queue string, now time.Time) (Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return Envelope{}, s.claimErr
	}

	for _, stored := range s.actionableLocked(now) {
		if stored.env.Queue != queue {
			continue
		}
		stored.env.Status = StatusProcessing
		return stored.env, nil
	}
	return Envelope{}, ErrNoEnvelopes
}

func (s *memStore) Update(_ context.Context, env Envelope) error {
	s.mu.Lock()
	if s.updateErr != nil {
		s.mu.Unlock()
		return s.updateErr
	}
	for _, stored := range s.envelopes {
		if stored.env.ID == env.ID {
			stored.env = env
			change := s.onChange
			s.mu.Unlock()
			if change != nil {
				change()
			}
			return nil
		}
	}
	s.mu.Unlock()
	return ErrNoEnvelopes
}

// actionableLocked returns actionable envelopes oldest first, with the
// insertion sequence breaking CreatedAt ties.
func (s *memStore) actionableLocked(now time.Time) []*memEnvelope {
	var out []*memEnvelope
	for _, stored := range s.envelopes {
		if stored.env.Actionable(now) {
			out = append(out, stored)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].env.CreatedAt.Equal(out[j].env.CreatedAt) {
			return out[i].seq < out[j].seq
		}
		return out[i].env.CreatedAt.Before(out[j].env.CreatedAt)
	})
	return out
}

func (s *memStore) get(id ID) (Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.envelopes {
		if stored.env.ID == id {
			return stored.env, true
		}
	}
	return Envelope{}, false
}

func (s *memStore) countByStatus(status Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, stored := range s.envelopes {
		if stored.env.Status == status {
			count++
		}
	}
	return count
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// manualClock only moves when the test advances it.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mapScope is a shared key/value scope used to observe scope sharing and
// isolation.
type mapScope struct {
	mu     sync.Mutex
	values map[string]any
	closed bool
}

func (s *mapScope) set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

func (s *mapScope) get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *mapScope) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// mapScopeFactory counts constructed scopes and keeps them for inspection.
type mapScopeFactory struct {
	mu     sync.Mutex
	scopes []*mapScope
}

func (f *mapScopeFactory) NewScope(context.Context) (Scope, error) {
	scope := &mapScope{values: make(map[string]any)}
	f.mu.Lock()
	f.scopes = append(f.scopes, scope)
	f.mu.Unlock()
	return scope, nil
}

func (f *mapScopeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scopes)
}

// Test message types.

type orderPlaced struct {
	OrderID string `json:"order_id"`
}

func (orderPlaced) QueueName() string { return "orders" }

type stockAdjusted struct {
	SKU   string `json:"sku"`
	Delta int    `json:"delta"`
}

type auditEvent struct {
	Action string `json:"action"`
}

func (auditEvent) MessageType() string { return "audit.event" }

// newTestRegistry registers the test message types on a fresh registry.
func newTestRegistry(t interface{ Fatalf(string, ...any) }) *Registry {
	registry := NewRegistry()
	if err := Register[orderPlaced](registry); err != nil {
		t.Fatalf("register orderPlaced: %v", err)
	}
	if err := Register[stockAdjusted](registry); err != nil {
		t.Fatalf("register stockAdjusted: %v", err)
	}
	if err := Register[auditEvent](registry); err != nil {
		t.Fatalf("register auditEvent: %v", err)
	}
	return registry
}
