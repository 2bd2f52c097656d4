package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	bus "github.com/MintPlayer/spark-bus"
)

const (
	defaultCleanupLimit = 10000
	defaultCleanupEvery = time.Hour
)

// DefaultRetention is the recommended retention window for terminal
// envelopes, used by the cleanup CLI when none is given.
const DefaultRetention = 7 * 24 * time.Hour

// CleanupOptions defines how terminal envelopes are deleted. Deployments
// using the TTL index from EnsureIndexes do not need explicit cleanup.
type CleanupOptions struct {
	// Before removes envelopes that became terminal before this timestamp
	// (required).
	Before time.Time
	// Limit caps the number of envelopes deleted per call (0 uses the
	// default).
	Limit int
	// IncludeDeadLettered removes dead-lettered envelopes as well.
	IncludeDeadLettered bool
}

// CleanupResult reports how many envelopes were removed.
type CleanupResult struct {
	Completed    int64
	DeadLettered int64
}

// Cleanup removes completed envelopes (and optionally dead-lettered ones)
// older than opts.Before.
func (s *Store) Cleanup(ctx context.Context, opts CleanupOptions) (CleanupResult, error) {
	if opts.Before.IsZero() {
		return CleanupResult{}, ErrCleanupBeforeRequired
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultCleanupLimit
	}
	if limit < 0 {
		return CleanupResult{}, ErrCleanupLimitInvalid
	}

	remaining := limit
	completed, err := s.cleanupByStatus(ctx, bus.StatusCompleted, "completed_at", opts.Before, remaining)
	if err != nil {
		return CleanupResult{}, err
	}
	remaining -= int(completed)

	var dead int64
	if opts.IncludeDeadLettered && remaining > 0 {
		dead, err = s.cleanupByStatus(ctx, bus.StatusDeadLettered, "updated_at", opts.Before, remaining)
		if err != nil {
			return CleanupResult{}, err
		}
	}

	return CleanupResult{Completed: completed, DeadLettered: dead}, nil
}

// cleanupByStatus deletes in two steps because DeleteMany has no limit:
// collect at most limit IDs, then delete that ID set. Racing sweeps only
// waste work; deletes are idempotent.
func (s *Store) cleanupByStatus(ctx context.Context, status bus.Status, tsField string, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}

	filter := bson.M{
		"status": string(status),
		tsField:  bson.M{"$ne": nil, "$lte": before},
	}
	findOpts := options.Find().
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1})

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return 0, fmt.Errorf("bus mongo: cleanup scan failed: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return 0, fmt.Errorf("bus mongo: cleanup decode failed: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return 0, fmt.Errorf("bus mongo: cleanup cursor failed: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("bus mongo: cleanup delete failed: %w", err)
	}

	return result.DeletedCount, nil
}

// CleanupMaintainerConfig controls periodic cleanup.
type CleanupMaintainerConfig struct {
	// Retention removes envelopes terminal for longer than this (required).
	Retention time.Duration
	// CheckEvery is the interval between cleanup runs.
	CheckEvery time.Duration
	// Limit caps the number of envelopes deleted per run (0 uses the
	// default).
	Limit int
	// IncludeDeadLettered removes dead-lettered envelopes as well.
	IncludeDeadLettered bool
	// Clock overrides the time source (useful for tests).
	Clock bus.Clock
	// Logger receives warnings about cleanup failures.
	Logger bus.Logger
}

// CleanupMaintainer runs periodic retention cleanup.
type CleanupMaintainer struct {
	store *Store
	cfg   CleanupMaintainerConfig
}

// NewCleanupMaintainer creates a cleanup maintainer with defaults applied.
func NewCleanupMaintainer(store *Store, cfg CleanupMaintainerConfig) (*CleanupMaintainer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.Retention <= 0 {
		return nil, ErrCleanupRetentionInvalid
	}
	if cfg.Clock == nil {
		cfg.Clock = bus.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = bus.NopLogger{}
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = defaultCleanupEvery
	}
	if cfg.Limit == 0 {
		cfg.Limit = defaultCleanupLimit
	}
	if cfg.Limit < 0 {
		return nil, ErrCleanupLimitInvalid
	}

	return &CleanupMaintainer{store: store, cfg: cfg}, nil
}

// Run periodically deletes old terminal envelopes until the context is
// canceled.
func (m *CleanupMaintainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CheckEvery)
	defer ticker.Stop()

	if _, err := m.Ensure(ctx); err != nil {
		m.cfg.Logger.Warn("bus cleanup failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Ensure(ctx); err != nil {
				m.cfg.Logger.Warn("bus cleanup failed", "err", err)
			}
		}
	}
}

// Ensure executes a single cleanup pass.
func (m *CleanupMaintainer) Ensure(ctx context.Context) (CleanupResult, error) {
	before := m.cfg.Clock.Now().Add(-m.cfg.Retention)

	return m.store.Cleanup(ctx, CleanupOptions{
		Before:              before,
		Limit:               m.cfg.Limit,
		IncludeDeadLettered: m.cfg.IncludeDeadLettered,
	})
}
