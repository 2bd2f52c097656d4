// Command bus-cleanup removes old terminal envelopes from a MongoDB bus
// collection.
//
// It wraps mongo.CleanupMaintainer for use in cron/CronJobs when the
// application itself should not delete envelopes. Deployments relying on the
// TTL index created by EnsureIndexes do not need it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	bus "github.com/MintPlayer/spark-bus"
	"github.com/MintPlayer/spark-bus/mongo"
)

const exitUsage = 2

type stdLogger struct {
	logger  *log.Logger
	verbose bool
}

func (l stdLogger) Debug(msg string, args ...any) {
	if !l.verbose {
		return
	}
	l.logger.Printf("DEBUG %s %s", msg, formatArgs(args))
}

func (l stdLogger) Info(msg string, args ...any) {
	l.logger.Printf("INFO %s %s", msg, formatArgs(args))
}

func (l stdLogger) Warn(msg string, args ...any) {
	l.logger.Printf("WARN %s %s", msg, formatArgs(args))
}

func (l stdLogger) Error(msg string, args ...any) {
	l.logger.Printf("ERROR %s %s", msg, formatArgs(args))
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		key := args[i]
		val := any("<missing>")
		if i+1 < len(args) {
			val = args[i+1]
		}
		pairs = append(pairs, fmt.Sprintf("%v=%v", key, val))
	}

	return strings.Join(pairs, " ")
}

func main() {
	var (
		uri         string
		database    string
		collection  string
		retention   time.Duration
		checkEvery  time.Duration
		limit       int
		includeDead bool
		once        bool
		verbose     bool
	)

	flag.StringVar(&uri, "uri", "", "MongoDB connection string, e.g. mongodb://host:27017")
	flag.StringVar(&database, "db", "", "Database name")
	flag.StringVar(&collection, "collection", "", "Envelope collection name (empty uses the default)")
	flag.DurationVar(&retention, "retention", mongo.DefaultRetention, "Delete envelopes terminal for longer than this duration")
	flag.DurationVar(&checkEvery, "check-every", time.Hour, "How often to run cleanup")
	flag.IntVar(&limit, "limit", 0, "Max envelopes deleted per run (0 uses default)")
	flag.BoolVar(&includeDead, "include-dead", false, "Delete dead-lettered envelopes as well")
	flag.BoolVar(&once, "once", false, "Run once and exit")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	if uri == "" || database == "" {
		fmt.Fprintln(os.Stderr, "uri and db are required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	if err := run(uri, database, collection, retention, checkEvery, limit, includeDead, once, verbose); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

func run(
	uri, database, collection string,
	retention, checkEvery time.Duration,
	limit int,
	includeDead, once, verbose bool,
) error {
	ctx := context.Background()

	client, err := mongodriver.Connect(ctx, mongooptions.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	var storeOpts []mongo.Option
	if collection != "" {
		storeOpts = append(storeOpts, mongo.WithCollection(collection))
	}
	store, err := mongo.NewStore(client.Database(database), storeOpts...)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	logger := stdLogger{logger: log.New(os.Stdout, "", log.LstdFlags), verbose: verbose}
	maintainer, err := mongo.NewCleanupMaintainer(store, mongo.CleanupMaintainerConfig{
		Retention:           retention,
		CheckEvery:          checkEvery,
		Limit:               limit,
		IncludeDeadLettered: includeDead,
		Clock:               bus.SystemClock{},
		Logger:              logger,
	})
	if err != nil {
		return fmt.Errorf("init maintainer: %w", err)
	}

	if once {
		result, err := maintainer.Ensure(ctx)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		if result.Completed > 0 || result.DeadLettered > 0 {
			logger.Info("cleanup done", "completed", result.Completed, "dead_lettered", result.DeadLettered)
		}

		return nil
	}

	if err := maintainer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run maintainer: %w", err)
	}

	return nil
}
