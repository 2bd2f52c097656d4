package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
)

const (
	maxErrorLen        = 1024
	watchRetryBase     = 500 * time.Millisecond
	watchRetryMaxShift = 6
)

// Processor is the read/execute side of the message bus: a long-running
// worker that discovers actionable envelopes per queue, dispatches them to
// registered handlers inside an isolated scope, and records the outcome.
//
// One drain goroutine runs per discovered queue, so a failing queue never
// blocks the others. Within a queue, envelopes are dispatched strictly in
// CreatedAt order and a burst is drained in one wake cycle.
type Processor struct {
	store    Store
	registry *Registry
	cfg      ProcessorConfig

	wake chan struct{}

	mu       sync.Mutex
	running  bool
	draining map[string]struct{}
}

// NewProcessor constructs a Processor with defaults and optional settings.
func NewProcessor(store Store, registry *Registry, opts ...ProcessorOption) *Processor {
	if store == nil {
		panic("bus: nil Store")
	}
	if registry == nil {
		panic("bus: nil Registry")
	}

	var cfg ProcessorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Processor{
		store:    store,
		registry: registry,
		cfg:      cfg,
		wake:     make(chan struct{}, 1),
		draining: make(map[string]struct{}),
	}
}

// Notify wakes the discovery loop. It never blocks; wakes coalesce.
func (p *Processor) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run drives the discovery loop until ctx is canceled. The loop wakes on a
// change notification, on Notify, or on the fallback poll timer, whichever
// comes first. On shutdown, in-flight dispatches finish and their outcomes
// are persisted before Run returns.
func (p *Processor) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()

		return ErrProcessorRunning
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	var wg sync.WaitGroup

	if p.cfg.Watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.watch(ctx)
		}()
	}

	ticker := time.NewTicker(p.cfg.FallbackPoll)
	defer ticker.Stop()

	// Pick up any backlog that existed before the processor started.
	p.Notify()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()

			return nil
		case <-p.wake:
		case <-ticker.C:
		}

		p.sweep(ctx, &wg)
	}
}

// ProcessOnce performs a single discovery sweep, draining every discovered
// queue to completion, and returns the number of envelopes dispatched.
// Intended for tests and cron-style hosts.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	queues, err := p.store.ActiveQueues(ctx, p.cfg.Clock.Now(), p.cfg.ScanLimit)
	if err != nil {
		return 0, fmt.Errorf("bus: scan queues: %w", err)
	}
	p.cfg.Metrics.SetActiveQueues(len(queues))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for _, queue := range queues {
		if !p.beginDrain(queue) {
			continue
		}
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			defer p.endDrain(queue)

			count := p.drainQueue(ctx, queue)
			mu.Lock()
			total += count
			mu.Unlock()
		}(queue)
	}
	wg.Wait()

	return total, nil
}

// sweep launches one drain goroutine per queue with actionable envelopes.
// Queues already draining are skipped; their loop re-fetches until empty.
func (p *Processor) sweep(ctx context.Context, wg *sync.WaitGroup) {
	queues, err := p.store.ActiveQueues(ctx, p.cfg.Clock.Now(), p.cfg.ScanLimit)
	if err != nil {
		if ctx.Err() == nil {
			p.cfg.Logger.Warn("bus queue scan failed", "err", err)
		}

		return
	}
	p.cfg.Metrics.SetActiveQueues(len(queues))

	for _, queue := range queues {
		if !p.beginDrain(queue) {
			continue
		}
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			defer p.endDrain(queue)

			p.drainQueue(ctx, queue)
		}(queue)
	}
}

func (p *Processor) beginDrain(queue string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, busy := p.draining[queue]; busy {
		return false
	}
	p.draining[queue] = struct{}{}

	return true
}

func (p *Processor) endDrain(queue string) {
	p.mu.Lock()
	delete(p.draining, queue)
	p.mu.Unlock()
}

// drainQueue claims and dispatches the oldest actionable envelope of the
// queue until nothing actionable remains or shutdown begins. A failed
// envelope does not stop the loop: once its retry is scheduled in the
// future, the next claim returns the envelope behind it.
func (p *Processor) drainQueue(ctx context.Context, queue string) int {
	dispatched := 0
	for {
		if ctx.Err() != nil {
			return dispatched
		}

		env, err := p.store.ClaimNext(ctx, queue, p.cfg.Clock.Now())
		if errors.Is(err, ErrNoEnvelopes) {
			return dispatched
		}
		if err != nil {
			if ctx.Err() == nil {
				p.cfg.Logger.Warn("bus claim failed", "queue", queue, "err", err)
			}

			return dispatched
		}

		p.dispatch(ctx, env)
		dispatched++
	}
}

// dispatch runs one attempt for a claimed envelope and persists the outcome.
// Failure information is recorded on the envelope, never propagated: one
// message's failure must not halt the worker or other queues.
func (p *Processor) dispatch(ctx context.Context, env Envelope) {
	start := time.Now()
	defer func() {
		p.cfg.Metrics.ObserveDispatchDuration(env.Queue, time.Since(start))
	}()

	env.AttemptCount++
	attemptErr := p.attempt(ctx, env)

	// The outcome of a finished attempt is persisted even when shutdown has
	// begun, otherwise the attempt would be invisible after restart.
	persistCtx := context.WithoutCancel(ctx)
	now := p.cfg.Clock.Now()

	if attemptErr == nil {
		env.Status = StatusCompleted
		env.CompletedAt = &now
		env.NextAttemptAt = nil
		env.LastError = ""
		if err := p.store.Update(persistCtx, env); err != nil {
			p.cfg.Logger.Error("bus completion update failed", "id", env.ID, "err", err)

			return
		}
		p.cfg.Metrics.AddCompleted(1)

		return
	}

	env.LastError = truncateError(attemptErr)

	maxAttempts := env.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	action := p.cfg.Classifier(ctx, env, attemptErr)
	if action == FailureDead || env.AttemptCount >= maxAttempts {
		env.Status = StatusDeadLettered
		env.NextAttemptAt = nil
		if err := p.store.Update(persistCtx, env); err != nil {
			p.cfg.Logger.Error("bus dead-letter update failed", "id", env.ID, "err", err)

			return
		}
		p.cfg.Metrics.AddDeadLettered(1)
		p.cfg.Logger.Warn("bus envelope dead-lettered",
			"id", env.ID, "queue", env.Queue, "type", env.MessageType,
			"attempts", env.AttemptCount, "err", attemptErr)

		return
	}

	delay := p.cfg.Backoff.DelayFor(env.AttemptCount)
	if p.cfg.Jitter {
		// Spread retries without ever scheduling earlier than the table entry.
		delay += backoff.FullJitter(delay / 2)
	}
	at := now.Add(delay)
	env.Status = StatusFailed
	env.NextAttemptAt = &at
	if err := p.store.Update(persistCtx, env); err != nil {
		p.cfg.Logger.Error("bus retry update failed", "id", env.ID, "err", err)

		return
	}
	p.cfg.Metrics.AddRetried(1)
	p.cfg.Logger.Debug("bus attempt failed, retry scheduled",
		"id", env.ID, "queue", env.Queue, "attempt", env.AttemptCount,
		"next_attempt_at", at, "err", attemptErr)
}

// attempt decodes the payload, builds one scope, and invokes every resolved
// handler inside it. The first handler error ends the attempt; decode and
// scope construction errors fail the attempt like a handler error so they
// follow the same retry protocol.
func (p *Processor) attempt(ctx context.Context, env Envelope) error {
	msg, err := p.registry.Decode(env.MessageType, env.Payload)
	if err != nil {
		return err
	}

	factories := p.registry.Resolve(env.MessageType)
	if len(factories) == 0 {
		// No recipients is a valid no-op; the envelope still completes.
		return nil
	}

	scope, err := p.cfg.Scopes.NewScope(ctx)
	if err != nil {
		return fmt.Errorf("bus: new dispatch scope: %w", err)
	}
	defer func() {
		if closeErr := scope.Close(); closeErr != nil {
			p.cfg.Logger.Warn("bus scope close failed", "id", env.ID, "err", closeErr)
		}
	}()

	for _, factory := range factories {
		handler, err := factory(scope)
		if err != nil {
			return fmt.Errorf("bus: construct handler: %w", err)
		}
		if err := p.invoke(ctx, handler, msg); err != nil {
			return err
		}
	}

	return nil
}

// invoke runs a single handler with panic recovery and the optional
// per-handler timeout.
func (p *Processor) invoke(ctx context.Context, handler Handler, msg any) (err error) {
	if p.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.HandlerTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
	}()

	return handler.Handle(ctx, msg)
}

// watch drives the change-notification bridge: it keeps the store's change
// feed subscribed and converts every event into a wake signal. A broken feed
// degrades to fallback polling, so it wakes once more, logs, and
// re-subscribes with exponential backoff.
func (p *Processor) watch(ctx context.Context) {
	attempt := 0
	for {
		err := p.cfg.Watcher.Watch(ctx, p.wake)
		if ctx.Err() != nil {
			return
		}

		p.cfg.Logger.Warn("bus change feed interrupted", "err", err)
		// Fail toward checking, not toward silence.
		p.Notify()

		if err == nil {
			attempt = 0
		} else if attempt < watchRetryMaxShift {
			attempt++
		}

		delay := backoff.Exponential(watchRetryBase, attempt)
		if sleepErr := backoff.WaitContext(ctx, delay); sleepErr != nil {
			return
		}
	}
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	if utf8.RuneCountInString(msg) <= maxErrorLen {
		return msg
	}

	runes := []rune(msg)

	return string(runes[:maxErrorLen])
}
