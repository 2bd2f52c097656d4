package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bus "github.com/MintPlayer/spark-bus"
)

// EnsureIndexes creates the indexes the store relies on: the actionable-scan
// index used by queue discovery and claiming, and, when retention is
// positive, a partial TTL index that removes terminal envelopes after the
// retention period. Safe to call on every startup.
func (s *Store) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "queue", Value: 1},
				{Key: "status", Value: 1},
				{Key: "next_attempt_at", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("actionable_scan"),
		},
	}

	if retention > 0 {
		models = append(models, mongo.IndexModel{
			Keys: bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().
				SetName("terminal_retention").
				SetExpireAfterSeconds(int32(retention / time.Second)).
				SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": []string{
						string(bus.StatusCompleted),
						string(bus.StatusDeadLettered),
					}},
				}),
		})
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("bus mongo: create indexes: %w", err)
	}

	return nil
}
