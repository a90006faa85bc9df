package code

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPoolSize is the number of pre-warmed VMs kept ready.
	DefaultPoolSize = 4

	// DefaultTimeout bounds script execution when a node sets no timeout_ms.
	DefaultTimeout = 10 * time.Second

	// MaxTimeout caps per-node timeout_ms.
	MaxTimeout = 60 * time.Second
)

// Config controls the JavaScript executor.
type Config struct {
	// PoolSize is the number of sandboxed VMs kept warm. Each execution takes
	// a VM from the pool and a fresh one replaces it afterwards.
	PoolSize int

	// DefaultTimeout applies when a node config has no timeout_ms.
	DefaultTimeout time.Duration

	// Logger is optional.
	Logger *zap.Logger
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = DefaultTimeout
	}
}

// Validate rejects unusable settings.
func (c *Config) Validate() error {
	if c.PoolSize < 0 {
		return fmt.Errorf("pool size must be positive, got %d", c.PoolSize)
	}
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("default timeout must be positive, got %s", c.DefaultTimeout)
	}
	return nil
}
