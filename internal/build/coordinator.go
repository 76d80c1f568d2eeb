package build

import (
	"sync"
	"sync/atomic"
)

// Coordinator hands out build generations. Exactly one generation, the most
// recently issued, is current at any time.
type Coordinator struct {
	gen    atomic.Uint64
	output sync.Mutex
}

// NewCoordinator returns a Coordinator with no builds issued.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Begin issues the next generation and makes it current.
func (c *Coordinator) Begin() uint64 {
	return c.gen.Add(1)
}

// Current returns the most recently issued generation.
func (c *Coordinator) Current() uint64 {
	return c.gen.Load()
}

// IsCurrent reports whether gen is still the current generation.
func (c *Coordinator) IsCurrent(gen uint64) bool {
	return c.gen.Load() == gen
}

// Check returns a superseded error when gen is no longer current.
func (c *Coordinator) Check(gen uint64, step string) error {
	if cur := c.gen.Load(); cur != gen {
		return supersededError(gen, cur, step)
	}
	return nil
}

// OutputLock serializes the destination writes of the builds it coordinates.
func (c *Coordinator) OutputLock() sync.Locker {
	return &c.output
}
