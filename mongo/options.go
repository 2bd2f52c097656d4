package mongo

import (
	bus "github.com/MintPlayer/spark-bus"
)

const defaultCollection = "bus_envelopes"

// Config defines MongoDB store behavior.
type Config struct {
	// Collection is the envelope collection name.
	Collection string
	// Clock overrides the time source (useful for tests).
	Clock bus.Clock
}

func (c Config) withDefaults() Config {
	if c.Collection == "" {
		c.Collection = defaultCollection
	}
	if c.Clock == nil {
		c.Clock = bus.SystemClock{}
	}

	return c
}

// Option configures the MongoDB store.
type Option func(*Config)

// WithCollection sets the envelope collection name.
func WithCollection(name string) Option {
	return func(c *Config) {
		c.Collection = name
	}
}

// WithClock sets the time source used by the store.
func WithClock(clock bus.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}
