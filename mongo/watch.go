package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Watch implements bus.Watcher over the collection's change stream. Every
// insert, update, or replace signals wake without blocking. Watch returns
// when the stream breaks or ctx is canceled; re-subscription is the
// processor's call.
//
// Change streams require a replica set or sharded cluster. Against a
// standalone server Watch fails immediately and the processor degrades to
// fallback polling.
func (s *Store) Watch(ctx context.Context, wake chan<- struct{}) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"operationType": bson.M{"$in": []string{"insert", "update", "replace"}},
		}}},
	}

	stream, err := s.collection.Watch(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("bus mongo: open change stream: %w", err)
	}
	defer stream.Close(context.WithoutCancel(ctx))

	for stream.Next(ctx) {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("bus mongo: change stream failed: %w", err)
	}

	return nil
}
