// Package stormpottest holds test fixtures shared by the stormpot and
// stormpot/qpool test suites: a counting Allocator and a minimal Poolable,
// the same role original_source's CountingAllocator/GenericPoolable play
// for the Java suite this module was distilled from.
package stormpottest

import (
	"sync"
	"sync/atomic"

	"github.com/rohankumardubey/stormpot"
	"github.com/rohankumardubey/stormpot/qpool"
)

// GenericPoolable is the simplest possible Poolable: it does nothing but
// route Release to its slot.
type GenericPoolable struct {
	slot *stormpot.Slot[*GenericPoolable]
}

// Release returns the object to its owning pool.
func (g *GenericPoolable) Release() {
	g.slot.Release(g)
}

// CountingAllocator counts allocations and deallocations and records every
// object it has handed out or taken back, for use as the Allocator in
// claim/release/shutdown tests.
type CountingAllocator struct {
	allocations   atomic.Int64
	deallocations atomic.Int64

	mu           sync.Mutex
	allocated    []*GenericPoolable
	deallocated  []*GenericPoolable
	allocateErr  error
	failNextOnly bool
}

// NewCountingAllocator returns a ready-to-use CountingAllocator.
func NewCountingAllocator() *CountingAllocator {
	return &CountingAllocator{}
}

// Allocate implements stormpot.Allocator.
func (a *CountingAllocator) Allocate(slot *stormpot.Slot[*GenericPoolable]) (*GenericPoolable, error) {
	obj, err := a.allocate()
	if err != nil {
		return nil, err
	}

	obj.slot = slot

	return obj, nil
}

// AllocateRaw builds a GenericPoolable with no slot bound, sharing the same
// allocation counters and failure injection as Allocate. NaivePool uses
// this: it is an independent oracle implementation and never constructs a
// real stormpot.Slot.
func (a *CountingAllocator) AllocateRaw() (*GenericPoolable, error) {
	return a.allocate()
}

func (a *CountingAllocator) allocate() (*GenericPoolable, error) {
	a.mu.Lock()
	err := a.allocateErr
	if a.failNextOnly {
		a.allocateErr = nil
		a.failNextOnly = false
	}
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}

	a.allocations.Add(1)

	obj := &GenericPoolable{}

	a.mu.Lock()
	a.allocated = append(a.allocated, obj)
	a.mu.Unlock()

	return obj, nil
}

// Deallocate implements stormpot.Allocator.
func (a *CountingAllocator) Deallocate(obj *GenericPoolable) error {
	a.deallocations.Add(1)

	a.mu.Lock()
	a.deallocated = append(a.deallocated, obj)
	a.mu.Unlock()

	return nil
}

// Allocations reports how many successful allocations have occurred.
func (a *CountingAllocator) Allocations() int {
	return int(a.allocations.Load())
}

// Deallocations reports how many deallocations have occurred.
func (a *CountingAllocator) Deallocations() int {
	return int(a.deallocations.Load())
}

// Deallocated returns every object passed to Deallocate so far.
func (a *CountingAllocator) Deallocated() []*GenericPoolable {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*GenericPoolable, len(a.deallocated))
	copy(out, a.deallocated)

	return out
}

// FailNextAllocation makes the next call to Allocate return err instead of
// building an object. Subsequent calls allocate normally.
func (a *CountingAllocator) FailNextAllocation(err error) {
	a.mu.Lock()
	a.allocateErr = err
	a.failNextOnly = true
	a.mu.Unlock()
}

// QGenericPoolable is GenericPoolable's counterpart for the qpool variant:
// the simplest possible qpool.Poolable.
type QGenericPoolable struct {
	slot *qpool.Slot[*QGenericPoolable]
}

// Release returns the object to its owning qpool.Pool.
func (g *QGenericPoolable) Release() {
	g.slot.Release(g)
}

// QCountingAllocator is CountingAllocator's counterpart for the qpool
// variant. It shares no state with CountingAllocator; each test constructs
// the one matching the pool variant under test.
type QCountingAllocator struct {
	allocations   atomic.Int64
	deallocations atomic.Int64

	mu           sync.Mutex
	allocated    []*QGenericPoolable
	deallocated  []*QGenericPoolable
	allocateErr  error
	failNextOnly bool
}

// NewQCountingAllocator returns a ready-to-use QCountingAllocator.
func NewQCountingAllocator() *QCountingAllocator {
	return &QCountingAllocator{}
}

// Allocate implements qpool.Allocator.
func (a *QCountingAllocator) Allocate(slot *qpool.Slot[*QGenericPoolable]) (*QGenericPoolable, error) {
	a.mu.Lock()
	err := a.allocateErr
	if a.failNextOnly {
		a.allocateErr = nil
		a.failNextOnly = false
	}
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}

	a.allocations.Add(1)

	obj := &QGenericPoolable{slot: slot}

	a.mu.Lock()
	a.allocated = append(a.allocated, obj)
	a.mu.Unlock()

	return obj, nil
}

// Deallocate implements qpool.Allocator.
func (a *QCountingAllocator) Deallocate(obj *QGenericPoolable) error {
	a.deallocations.Add(1)

	a.mu.Lock()
	a.deallocated = append(a.deallocated, obj)
	a.mu.Unlock()

	return nil
}

// Allocations reports how many successful allocations have occurred.
func (a *QCountingAllocator) Allocations() int {
	return int(a.allocations.Load())
}

// Deallocations reports how many deallocations have occurred.
func (a *QCountingAllocator) Deallocations() int {
	return int(a.deallocations.Load())
}

// Deallocated returns every object passed to Deallocate so far.
func (a *QCountingAllocator) Deallocated() []*QGenericPoolable {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*QGenericPoolable, len(a.deallocated))
	copy(out, a.deallocated)

	return out
}

// FailNextAllocation makes the next call to Allocate return err instead of
// building an object. Subsequent calls allocate normally.
func (a *QCountingAllocator) FailNextAllocation(err error) {
	a.mu.Lock()
	a.allocateErr = err
	a.failNextOnly = true
	a.mu.Unlock()
}
