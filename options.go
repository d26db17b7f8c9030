package axe

import (
	"axe/sched"
)

// Config holds the configuration for the axe engine.
type Config struct {
	// DefaultUnlockPolicy is the process-wide unlock scheduling policy,
	// overridable per Unlock call. Default immediate.
	DefaultUnlockPolicy sched.Policy

	// LatchShards is the shard count of the boundary latch. Must be a power
	// of two. Default 32.
	LatchShards int

	// EventHistorySize bounds the in-memory event history attached when an
	// event bus is configured. Zero disables the history. Default 1000.
	EventHistorySize int
}

// DefaultConfig returns the default configuration for the axe engine.
func DefaultConfig() Config {
	return Config{
		DefaultUnlockPolicy: sched.Immediate(),
		LatchShards:         32,
		EventHistorySize:    1000,
	}
}

// Option is a function that modifies the Config.
type Option func(*Config)

// WithDefaultUnlockPolicy sets the process-wide unlock scheduling policy.
func WithDefaultUnlockPolicy(policy sched.Policy) Option {
	return func(c *Config) {
		c.DefaultUnlockPolicy = policy
	}
}

// WithLatchShards sets the boundary latch shard count.
func WithLatchShards(shards int) Option {
	return func(c *Config) {
		c.LatchShards = shards
	}
}

// WithEventHistorySize sets the event history bound.
func WithEventHistorySize(size int) Option {
	return func(c *Config) {
		c.EventHistorySize = size
	}
}

// WithConfig applies a complete Config, overriding all values.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// ApplyOptions applies the given options to a default config and returns the result.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.LatchShards <= 0 {
		return ErrInvalidConfig
	}
	if c.LatchShards&(c.LatchShards-1) != 0 {
		return ErrInvalidConfig
	}
	if c.EventHistorySize < 0 {
		return ErrInvalidConfig
	}
	return nil
}
