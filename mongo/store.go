package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bus "github.com/MintPlayer/spark-bus"
)

// Store implements bus.Store on a MongoDB collection.
type Store struct {
	collection *mongo.Collection
	cfg        Config
}

var _ bus.Store = (*Store)(nil)
var _ bus.Watcher = (*Store)(nil)

// envelopeDoc is the persisted shape of a bus.Envelope.
type envelopeDoc struct {
	ID            string     `bson:"_id"`
	Queue         string     `bson:"queue"`
	MessageType   string     `bson:"message_type"`
	Payload       []byte     `bson:"payload"`
	CreatedAt     time.Time  `bson:"created_at"`
	NextAttemptAt *time.Time `bson:"next_attempt_at,omitempty"`
	AttemptCount  int        `bson:"attempt_count"`
	MaxAttempts   int        `bson:"max_attempts"`
	Status        string     `bson:"status"`
	LastError     string     `bson:"last_error,omitempty"`
	CompletedAt   *time.Time `bson:"completed_at,omitempty"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

// NewStore constructs a MongoDB store with validated configuration.
func NewStore(db *mongo.Database, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Store{
		collection: db.Collection(cfg.Collection),
		cfg:        cfg,
	}, nil
}

// MustNewStore constructs a MongoDB store or panics on error.
func MustNewStore(db *mongo.Database, opts ...Option) *Store {
	store, err := NewStore(db, opts...)
	if err != nil {
		panic(err)
	}

	return store
}

// Insert implements bus.Writer.
func (s *Store) Insert(ctx context.Context, env bus.Envelope) error {
	doc := toDoc(env)
	doc.UpdatedAt = env.CreatedAt

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("bus mongo: insert failed: %w", err)
	}

	return nil
}

// ActiveQueues implements bus.Store. It scans at most limit actionable
// candidates in creation order and returns their distinct queue names,
// oldest queue first.
func (s *Store) ActiveQueues(ctx context.Context, now time.Time, limit int) ([]string, error) {
	findOpts := options.Find().
		SetSort(claimSort()).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"queue": 1})

	cursor, err := s.collection.Find(ctx, actionableFilter("", now), findOpts)
	if err != nil {
		return nil, fmt.Errorf("bus mongo: queue scan failed: %w", err)
	}
	defer cursor.Close(ctx)

	seen := make(map[string]struct{})
	var queues []string
	for cursor.Next(ctx) {
		var doc struct {
			Queue string `bson:"queue"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("bus mongo: queue scan decode failed: %w", err)
		}
		if _, ok := seen[doc.Queue]; ok {
			continue
		}
		seen[doc.Queue] = struct{}{}
		queues = append(queues, doc.Queue)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("bus mongo: queue scan cursor failed: %w", err)
	}

	return queues, nil
}

// ClaimNext implements bus.Store. FindOneAndUpdate makes the claim atomic:
// overlapping scans cannot claim the same envelope twice.
func (s *Store) ClaimNext(ctx context.Context, queue string, now time.Time) (bus.Envelope, error) {
	update := bson.M{"$set": bson.M{
		"status":     string(bus.StatusProcessing),
		"updated_at": s.cfg.Clock.Now(),
	}}
	claimOpts := options.FindOneAndUpdate().
		SetSort(claimSort()).
		SetReturnDocument(options.After)

	var doc envelopeDoc
	err := s.collection.FindOneAndUpdate(ctx, actionableFilter(queue, now), update, claimOpts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return bus.Envelope{}, bus.ErrNoEnvelopes
	}
	if err != nil {
		return bus.Envelope{}, fmt.Errorf("bus mongo: claim failed: %w", err)
	}

	return fromDoc(doc)
}

// Update implements bus.Store by replacing the envelope document.
func (s *Store) Update(ctx context.Context, env bus.Envelope) error {
	doc := toDoc(env)
	doc.UpdatedAt = s.cfg.Clock.Now()

	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("bus mongo: update failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("bus mongo: update matched no envelope %s", env.ID)
	}

	return nil
}

// actionableFilter selects envelopes eligible for processing at now: pending
// or failed, with no next attempt time or one that has passed. An empty
// queue matches all queues.
func actionableFilter(queue string, now time.Time) bson.M {
	filter := bson.M{
		"status": bson.M{"$in": []string{
			string(bus.StatusPending),
			string(bus.StatusFailed),
		}},
		"$or": []bson.M{
			{"next_attempt_at": nil},
			{"next_attempt_at": bson.M{"$lte": now}},
		},
	}
	if queue != "" {
		filter["queue"] = queue
	}

	return filter
}

// claimSort orders by creation time; the time-ordered UUID breaks ties for
// envelopes created within the same millisecond.
func claimSort() bson.D {
	return bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
}

func toDoc(env bus.Envelope) envelopeDoc {
	return envelopeDoc{
		ID:            env.ID.String(),
		Queue:         env.Queue,
		MessageType:   env.MessageType,
		Payload:       env.Payload,
		CreatedAt:     env.CreatedAt.UTC(),
		NextAttemptAt: utcPtr(env.NextAttemptAt),
		AttemptCount:  env.AttemptCount,
		MaxAttempts:   env.MaxAttempts,
		Status:        string(env.Status),
		LastError:     env.LastError,
		CompletedAt:   utcPtr(env.CompletedAt),
	}
}

func fromDoc(doc envelopeDoc) (bus.Envelope, error) {
	id, err := bus.ParseID(doc.ID)
	if err != nil {
		return bus.Envelope{}, fmt.Errorf("bus mongo: parse envelope id %q: %w", doc.ID, err)
	}

	return bus.Envelope{
		ID:            id,
		Queue:         doc.Queue,
		MessageType:   doc.MessageType,
		Payload:       doc.Payload,
		CreatedAt:     doc.CreatedAt,
		NextAttemptAt: doc.NextAttemptAt,
		AttemptCount:  doc.AttemptCount,
		MaxAttempts:   doc.MaxAttempts,
		Status:        bus.Status(doc.Status),
		LastError:     doc.LastError,
		CompletedAt:   doc.CompletedAt,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()

	return &utc
}
