// Package latest provides a single-slot mailbox holding only the most
// recent value. Writers overwrite unconditionally and never block; readers
// get a snapshot of the latest value and may miss intermediate ones. This is
// the delivery semantics wanted for live video frames, where a stale frame
// has no value once a newer one exists.
package latest

import (
	"sync"
	"sync/atomic"
)

// Cell is a single-slot latest-value mailbox.
//
// The zero value is empty and ready to use. Values are shared by reference;
// callers must not modify a value after Put.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool

	// overwrites counts every Put that replaced an existing value.
	overwrites atomic.Uint64
}

// Put stores v, overwriting any previous value. It never blocks on readers
// beyond the instant of the swap.
func (c *Cell[T]) Put(v T) {
	c.mu.Lock()
	if c.set {
		c.overwrites.Add(1)
	}
	c.value = v
	c.set = true
	c.mu.Unlock()
}

// Get returns the most recent value, or false if nothing was ever stored.
func (c *Cell[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}

// Clear empties the cell.
func (c *Cell[T]) Clear() {
	var zero T
	c.mu.Lock()
	c.value = zero
	c.set = false
	c.mu.Unlock()
}

// Overwrites reports how many stored values were replaced before the cell
// was cleared. Useful as a drop counter for producer/consumer rate skew.
func (c *Cell[T]) Overwrites() uint64 {
	return c.overwrites.Load()
}
