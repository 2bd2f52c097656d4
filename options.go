package bus

import "time"

const (
	defaultMaxAttempts  = 5
	defaultFallbackPoll = 30 * time.Second
	defaultScanLimit    = 128
)

// BusConfig defines publish-side behavior.
type BusConfig struct {
	MaxAttempts int
	Clock       Clock
	Generator   IDGenerator
}

func (c BusConfig) withDefaults() BusConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Generator == nil {
		c.Generator = UUIDv7Generator{}
	}

	return c
}

// BusOption configures Bus behavior.
type BusOption func(*BusConfig)

// WithMaxAttempts sets the attempt ceiling stamped on published envelopes.
func WithMaxAttempts(attempts int) BusOption {
	return func(c *BusConfig) {
		c.MaxAttempts = attempts
	}
}

// WithBusClock sets the publish-side time source.
func WithBusClock(clock Clock) BusOption {
	return func(c *BusConfig) {
		c.Clock = clock
	}
}

// WithGenerator sets the envelope ID generator.
func WithGenerator(gen IDGenerator) BusOption {
	return func(c *BusConfig) {
		c.Generator = gen
	}
}

// ProcessorConfig defines how the Processor discovers and dispatches
// envelopes.
type ProcessorConfig struct {
	// Backoff is the retry delay schedule indexed by attempt count.
	Backoff BackoffSchedule
	// FallbackPoll is the safety-net wake period when no change notification
	// arrives.
	FallbackPoll time.Duration
	// ScanLimit caps how many candidate envelopes one queue discovery scan
	// may consider.
	ScanLimit int
	// HandlerTimeout bounds a single handler invocation. Zero means no
	// per-handler timeout.
	HandlerTimeout time.Duration
	// Jitter spreads retry delays to de-synchronize retry storms. A retry is
	// never scheduled earlier than its schedule entry.
	Jitter bool

	Clock      Clock
	Logger     Logger
	Metrics    Metrics
	Classifier FailureClassifier
	Scopes     ScopeFactory
	Watcher    Watcher
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.Backoff == nil {
		c.Backoff = DefaultBackoffSchedule
	}
	if c.FallbackPoll <= 0 {
		c.FallbackPoll = defaultFallbackPoll
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = defaultScanLimit
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	if c.Classifier == nil {
		c.Classifier = defaultFailureClassifier
	}
	if c.Scopes == nil {
		c.Scopes = NopScopeFactory{}
	}

	return c
}

// ProcessorOption configures Processor behavior.
type ProcessorOption func(*ProcessorConfig)

// WithBackoff sets the retry delay schedule.
func WithBackoff(schedule BackoffSchedule) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.Backoff = schedule
	}
}

// WithFallbackPoll sets the fallback wake period.
func WithFallbackPoll(interval time.Duration) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.FallbackPoll = interval
	}
}

// WithScanLimit caps the candidate envelopes per queue discovery scan.
func WithScanLimit(limit int) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.ScanLimit = limit
	}
}

// WithHandlerTimeout sets a per-handler invocation timeout.
func WithHandlerTimeout(timeout time.Duration) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.HandlerTimeout = timeout
	}
}

// WithRetryJitter enables full jitter on retry delays.
func WithRetryJitter() ProcessorOption {
	return func(c *ProcessorConfig) {
		c.Jitter = true
	}
}

// WithClock sets the processor time source.
func WithClock(clock Clock) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.Clock = clock
	}
}

// WithLogger sets the processor logger.
func WithLogger(logger Logger) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.Logger = logger
	}
}

// WithMetrics sets the processor metrics recorder.
func WithMetrics(metrics Metrics) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.Metrics = metrics
	}
}

// WithFailureClassifier sets the retry/dead-letter decision for failed
// attempts.
func WithFailureClassifier(classifier FailureClassifier) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.Classifier = classifier
	}
}

// WithScopeFactory sets the host's execution-scope factory.
func WithScopeFactory(factory ScopeFactory) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.Scopes = factory
	}
}

// WithWatcher attaches a change-notification feed. Without one the processor
// relies on the fallback poll alone.
func WithWatcher(watcher Watcher) ProcessorOption {
	return func(c *ProcessorConfig) {
		c.Watcher = watcher
	}
}
