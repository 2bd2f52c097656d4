// Command bus-bench measures MongoDB-backed publish and dispatch throughput.
//
// It seeds a number of messages through the Bus, then runs a Processor with a
// no-op subscriber until every envelope completes, and prints a JSON result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	bus "github.com/MintPlayer/spark-bus"
	"github.com/MintPlayer/spark-bus/mongo"
	"github.com/MintPlayer/spark-bus/zaplog"
)

const exitUsage = 2

var errDrainTimeout = errors.New("bus-bench: drain timed out")

type benchMessage struct {
	Seq     int    `json:"seq"`
	Padding string `json:"padding"`
}

func (benchMessage) QueueName() string { return "bench" }

type result struct {
	Messages          int           `json:"messages"`
	PayloadBytes      int           `json:"payload_bytes"`
	SeedDuration      time.Duration `json:"seed_duration"`
	DrainDuration     time.Duration `json:"drain_duration"`
	SeedPerSecond     float64       `json:"seed_msg_per_sec"`
	DispatchPerSecond float64       `json:"dispatch_msg_per_sec"`
}

func main() {
	var (
		uri          string
		database     string
		collection   string
		messages     int
		payloadBytes int
		drainTimeout time.Duration
		verbose      bool
	)

	flag.StringVar(&uri, "uri", "", "MongoDB connection string, e.g. mongodb://host:27017")
	flag.StringVar(&database, "db", "", "Database name")
	flag.StringVar(&collection, "collection", "", "Envelope collection name (empty uses the default)")
	flag.IntVar(&messages, "messages", 10000, "Number of messages to publish")
	flag.IntVar(&payloadBytes, "payload-bytes", 512, "Approximate payload size")
	flag.DurationVar(&drainTimeout, "drain-timeout", 2*time.Minute, "Abort if the backlog is not drained in time")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	if uri == "" || database == "" {
		fmt.Fprintln(os.Stderr, "uri and db are required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	if err := run(uri, database, collection, messages, payloadBytes, drainTimeout, verbose); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

func run(uri, database, collection string, messages, payloadBytes int, drainTimeout time.Duration, verbose bool) error {
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
	if err := store.EnsureIndexes(ctx, 0); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := zaplog.New(zapLogger.Sugar())

	registry := bus.NewRegistry()
	bus.MustRegister[benchMessage](registry)

	done := make(chan struct{})
	dispatched := 0
	bus.MustSubscribe[benchMessage](registry, bus.FactoryOf(bus.HandlerFunc(func(context.Context, any) error {
		dispatched++
		if dispatched == messages {
			close(done)
		}
		return nil
	})))

	publisher := bus.NewBus(store, registry)
	padding := strings.Repeat("x", payloadBytes)

	seedStart := time.Now()
	for i := 0; i < messages; i++ {
		if _, err := publisher.Broadcast(ctx, benchMessage{Seq: i, Padding: padding}); err != nil {
			return fmt.Errorf("broadcast: %w", err)
		}
	}
	seedDuration := time.Since(seedStart)

	// Single queue, so dispatch runs on one drain loop; the handler counter
	// needs no locking.
	processor := bus.NewProcessor(store, registry,
		bus.WithWatcher(store),
		bus.WithLogger(logger),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runDone := make(chan error, 1)
	drainStart := time.Now()
	go func() {
		runDone <- processor.Run(runCtx)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		cancel()
		<-runDone

		return errDrainTimeout
	}
	drainDuration := time.Since(drainStart)

	cancel()
	if err := <-runDone; err != nil {
		return fmt.Errorf("run processor: %w", err)
	}

	res := result{
		Messages:          messages,
		PayloadBytes:      payloadBytes,
		SeedDuration:      seedDuration,
		DrainDuration:     drainDuration,
		SeedPerSecond:     float64(messages) / seedDuration.Seconds(),
		DispatchPerSecond: float64(messages) / drainDuration.Seconds(),
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))

	return nil
}
