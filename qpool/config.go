package qpool

import (
	"fmt"
	"sync"
	"time"

	"github.com/rohankumardubey/stormpot"
)

// Config holds the parameters a Pool is built from, mirroring
// stormpot.Config's shape for the queue variant's own Allocator type.
type Config[T Poolable] struct {
	mu sync.Mutex

	size      int
	ttl       time.Duration
	allocator Allocator[T]
}

// NewConfig returns a Config with the given size, ttl and allocator.
func NewConfig[T Poolable](size int, ttl time.Duration, allocator Allocator[T]) *Config[T] {
	return &Config[T]{size: size, ttl: ttl, allocator: allocator}
}

// SetSize sets the maximum number of simultaneously live objects.
func (c *Config[T]) SetSize(size int) {
	c.mu.Lock()
	c.size = size
	c.mu.Unlock()
}

// Size returns the configured size.
func (c *Config[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

// SetTTL sets the maximum age of an allocated object.
func (c *Config[T]) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// TTL returns the configured time-to-live.
func (c *Config[T]) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ttl
}

// SetAllocator sets the Allocator used to build and destroy objects.
func (c *Config[T]) SetAllocator(allocator Allocator[T]) {
	c.mu.Lock()
	c.allocator = allocator
	c.mu.Unlock()
}

// Allocator returns the configured Allocator.
func (c *Config[T]) Allocator() Allocator[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.allocator
}

// CopyInto copies c's fields into other.
func (c *Config[T]) CopyInto(other *Config[T]) {
	c.mu.Lock()
	size, ttl, allocator := c.size, c.ttl, c.allocator
	c.mu.Unlock()

	other.mu.Lock()
	other.size = size
	other.ttl = ttl
	other.allocator = allocator
	other.mu.Unlock()
}

// Validate reports stormpot.ErrInvalidConfiguration if size < 1, ttl < 1,
// or the allocator is nil.
func (c *Config[T]) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size < 1 {
		return fmt.Errorf("%w: size must be >= 1, got %d", stormpot.ErrInvalidConfiguration, c.size)
	}
	if c.ttl < 1 {
		return fmt.Errorf("%w: ttl must be >= 1ns, got %s", stormpot.ErrInvalidConfiguration, c.ttl)
	}
	if c.allocator == nil {
		return fmt.Errorf("%w: allocator must not be nil", stormpot.ErrInvalidConfiguration)
	}

	return nil
}
