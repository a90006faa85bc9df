package engine

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultMaxConcurrency bounds parallel loop iterations when a ForEach node
// does not set max_concurrency.
const DefaultMaxConcurrency = 5

// Config controls engine behavior. The zero value is usable after Validate.
type Config struct {
	// MaxConcurrency is the default iteration parallelism for loops running
	// in parallel mode. Individual ForEach nodes may override it.
	MaxConcurrency int

	// Logger receives structured run and node events. Nil means no logging.
	Logger *zap.Logger

	// Tracer opens run and node spans. Nil disables engine tracing.
	Tracer trace.Tracer
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrency: DefaultMaxConcurrency}
}

// Validate applies defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", c.MaxConcurrency)
	}
	return nil
}

// WithMaxConcurrency sets the default loop parallelism.
func (c Config) WithMaxConcurrency(n int) Config {
	c.MaxConcurrency = n
	return c
}

// WithLogger sets the logger.
func (c Config) WithLogger(logger *zap.Logger) Config {
	c.Logger = logger
	return c
}

// WithTracer sets the tracer.
func (c Config) WithTracer(tracer trace.Tracer) Config {
	c.Tracer = tracer
	return c
}
