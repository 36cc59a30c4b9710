package stormpot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rohankumardubey/stormpot/internal/clock"
	"github.com/rohankumardubey/stormpot/internal/isnil"
)

// Pool is a concurrent, bounded, self-healing container of reusable
// objects. Claim acquires exclusive use of one; the claimer releases it
// back by calling the object's Release method.
type Pool[T Poolable] interface {
	// Claim blocks until an object becomes available, the context is
	// canceled (ErrInterrupted), or the pool is shut down (ErrShutDown).
	// An allocator failure is reported as *AllocationFailedError or
	// ErrAllocatorReturnedNil.
	Claim(ctx context.Context) (T, error)

	// ClaimTimeout is like Claim but gives up after timeout, reporting
	// ErrClaimTimeout. A timeout <= 0 means "don't wait at all": on
	// contention it reports ErrClaimTimeout immediately.
	ClaimTimeout(ctx context.Context, timeout time.Duration) (T, error)

	// Shutdown marks the pool as shut down and starts an asynchronous
	// drain of every unclaimed slot, returning a Completion to observe
	// its progress. Shutdown is idempotent: a second call returns the
	// same Completion as the first. After Shutdown, every pending and
	// subsequent Claim fails promptly with ErrShutDown instead of
	// blocking forever.
	Shutdown() *Completion
}

// NewPool validates cfg and returns a Pool built on a mutex, a broadcast
// signal channel standing in for a condition variable, and a fixed-size
// slot array (the "reference" variant). Slots are created lazily on first
// use. See the sibling qpool package for a queue-based variant of the same
// contract.
func NewPool[T Poolable](cfg *Config[T]) (Pool[T], error) {
	snapshot := &Config[T]{}
	cfg.CopyInto(snapshot)
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	return newPool[T](snapshot.size, snapshot.ttl, snapshot.allocator, clock.Real()), nil
}

func newPool[T Poolable](size int, ttl time.Duration, allocator Allocator[T], clk clock.Clock) *pool[T] {
	return &pool[T]{
		size:      size,
		ttl:       ttl,
		allocator: allocator,
		expires:   ttlExpiration,
		clk:       clk,
		slots:     make([]*Slot[T], size),
		signal:    make(chan struct{}),
	}
}

// errWaitTimeout is internal: it distinguishes "the bounded wait's timer
// fired" from ctx cancellation inside waitLocked, and never escapes claim.
var errWaitTimeout = errors.New("stormpot: internal wait timeout")

// pool is the reference Pool implementation: one mutex guards a fixed slot
// array plus a broadcast channel that stands in for a sync.Cond. A plain
// sync.Cond can't be selected on alongside a timer or ctx.Done(), so
// release/shutdown instead close and replace a "signal" channel to wake
// every waiter, which then re-checks its own condition.
type pool[T Poolable] struct {
	mu sync.Mutex

	size      int
	ttl       time.Duration
	allocator Allocator[T]
	expires   expiration
	clk       clock.Clock

	slots      []*Slot[T]
	signal     chan struct{}
	shutdown   bool
	completion *Completion
}

func (p *pool[T]) broadcastLocked() {
	close(p.signal)
	p.signal = make(chan struct{})
}

// waitLocked releases p.mu, waits for a broadcast, the deadline (if
// bounded), or ctx cancellation, then reacquires p.mu before returning.
func (p *pool[T]) waitLocked(ctx context.Context, bounded bool, remaining time.Duration) error {
	ch := p.signal
	p.mu.Unlock()
	defer p.mu.Lock()

	if !bounded {
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ErrInterrupted
		}
	}

	if remaining <= 0 {
		return errWaitTimeout
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		return errWaitTimeout
	case <-ctx.Done():
		return ErrInterrupted
	}
}

// acquireFreeSlotLocked reserves and returns the first slot that is not
// currently claimed, creating it lazily if this is the first time its
// index has been needed. It returns nil if every slot is claimed.
// Selection order is index order, an arbitrary but consistent tie-break.
func (p *pool[T]) acquireFreeSlotLocked() *Slot[T] {
	for i, s := range p.slots {
		if s == nil {
			s = &Slot[T]{pool: p, index: i}
			p.slots[i] = s
		}
		if !s.claimed {
			s.claimed = true
			return s
		}
	}

	return nil
}

func (p *pool[T]) unreserveLocked(s *Slot[T]) {
	s.claimed = false
	p.broadcastLocked()
}

// Claim implements Pool.
func (p *pool[T]) Claim(ctx context.Context) (T, error) {
	return p.claim(ctx, false, 0)
}

// ClaimTimeout implements Pool.
func (p *pool[T]) ClaimTimeout(ctx context.Context, timeout time.Duration) (T, error) {
	return p.claim(ctx, true, timeout)
}

func (p *pool[T]) claim(ctx context.Context, bounded bool, timeout time.Duration) (T, error) {
	var zero T

	var deadline time.Time
	if bounded {
		deadline = p.clk.Now().Add(timeout)
	}

	p.mu.Lock()
	for {
		if p.shutdown {
			p.mu.Unlock()
			return zero, ErrShutDown
		}
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			return zero, ErrInterrupted
		}

		slot := p.acquireFreeSlotLocked()
		if slot == nil {
			var remaining time.Duration
			if bounded {
				remaining = deadline.Sub(p.clk.Now())
				if remaining <= 0 {
					p.mu.Unlock()
					return zero, ErrClaimTimeout
				}
			}

			if err := p.waitLocked(ctx, bounded, remaining); err != nil {
				p.mu.Unlock()
				if errors.Is(err, errWaitTimeout) {
					return zero, ErrClaimTimeout
				}
				return zero, err
			}
			continue
		}

		// A slot carries leftover poison only when a prior claimer timed
		// out waiting on this slot's bounded allocation and abandoned it
		// before the allocator ever reported back (see
		// allocateWithTimeout); this claimer is the first to learn of
		// that failure, so it is reported here instead of attempting a
		// fresh allocation on top of it.
		if slot.poison != nil {
			err := slot.poison
			slot.poison = nil
			p.unreserveLocked(slot)
			p.mu.Unlock()
			return zero, err
		}

		needsAlloc := !slot.live || p.expires(slot.expiresAt, p.clk.Now())
		if !needsAlloc {
			p.mu.Unlock()
			return slot.obj, nil
		}

		if slot.live {
			stale := slot.obj
			slot.live = false
			slot.obj = zero
			p.mu.Unlock()
			safeDeallocate[T](p.allocator, stale)
			p.mu.Lock()

			if p.shutdown {
				p.unreserveLocked(slot)
				p.mu.Unlock()
				return zero, ErrShutDown
			}
		}

		if bounded {
			remaining := deadline.Sub(p.clk.Now())
			if remaining <= 0 {
				p.unreserveLocked(slot)
				p.mu.Unlock()
				return zero, ErrClaimTimeout
			}

			p.mu.Unlock()
			obj, err := p.allocateWithTimeout(slot, remaining)

			if errors.Is(err, ErrClaimTimeout) {
				// allocateWithTimeout's helper goroutine now owns this
				// slot: it will resolve and unreserve it once the
				// allocator actually returns, whatever the outcome.
				return zero, err
			}

			if err != nil {
				p.mu.Lock()
				p.unreserveLocked(slot)
				p.mu.Unlock()
				return zero, err
			}

			return obj, nil
		}

		p.mu.Unlock()
		obj, err := p.allocator.Allocate(slot)
		p.mu.Lock()

		if err != nil {
			p.unreserveLocked(slot)
			p.mu.Unlock()
			return zero, &AllocationFailedError{Cause: err}
		}
		if isnil.Value(obj) {
			p.unreserveLocked(slot)
			p.mu.Unlock()
			return zero, ErrAllocatorReturnedNil
		}

		slot.obj = obj
		slot.live = true
		slot.expiresAt = p.clk.Now().Add(p.ttl)
		p.mu.Unlock()
		return obj, nil
	}
}

// allocateWithTimeout runs allocator.Allocate on a helper goroutine and
// joins it with a bounded timeout, since a Go allocator call cannot be
// forcibly preempted. The helper goroutine itself writes the outcome onto
// slot under p.mu when it finishes, whether or not anyone is still
// waiting for it; if the timer fires first, this call returns
// ErrClaimTimeout and leaves a second goroutine behind to unreserve the
// slot once the helper resolves it, so a later claimer sees the recorded
// outcome via slot.poison (failure) or slot.live (success) instead of the
// result being silently dropped.
func (p *pool[T]) allocateWithTimeout(slot *Slot[T], timeout time.Duration) (T, error) {
	done := make(chan struct{})

	go func() {
		obj, err := p.allocator.Allocate(slot)

		p.mu.Lock()
		switch {
		case err != nil:
			slot.poison = &AllocationFailedError{Cause: err}
		case isnil.Value(obj):
			slot.poison = ErrAllocatorReturnedNil
		default:
			slot.poison = nil
			slot.obj = obj
			slot.live = true
			slot.expiresAt = p.clk.Now().Add(p.ttl)
		}
		p.mu.Unlock()

		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T

	select {
	case <-done:
		p.mu.Lock()
		defer p.mu.Unlock()

		if slot.poison != nil {
			err := slot.poison
			slot.poison = nil
			return zero, err
		}
		return slot.obj, nil
	case <-timer.C:
		go func() {
			<-done
			p.mu.Lock()
			p.unreserveLocked(slot)
			p.mu.Unlock()
		}()

		return zero, ErrClaimTimeout
	}
}

func (p *pool[T]) release(s *Slot[T], obj T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !s.claimed {
		return
	}

	s.claimed = false
	p.broadcastLocked()
}

// Shutdown implements Pool.
func (p *pool[T]) Shutdown() *Completion {
	p.mu.Lock()
	if p.completion != nil {
		c := p.completion
		p.mu.Unlock()
		return c
	}

	p.shutdown = true
	p.completion = newCompletion()
	completion := p.completion
	p.broadcastLocked()
	p.mu.Unlock()

	go p.drain(completion)

	return completion
}

// drain deallocates every slot, waiting (uninterruptibly) for any
// currently-claimed slot to be released first. The wait is deliberately
// not cancellable: shutdown makes forward progress only once users release
// their objects.
func (p *pool[T]) drain(completion *Completion) {
	var zero T

	for i := range p.slots {
		p.mu.Lock()
		for p.slots[i] != nil && p.slots[i].claimed {
			ch := p.signal
			p.mu.Unlock()
			<-ch
			p.mu.Lock()
		}

		slot := p.slots[i]
		if slot == nil || !slot.live {
			p.mu.Unlock()
			continue
		}

		obj := slot.obj
		slot.live = false
		slot.obj = zero
		p.mu.Unlock()

		safeDeallocate[T](p.allocator, obj)
	}

	completion.markDone()
}

func safeDeallocate[T Poolable](allocator Allocator[T], obj T) {
	defer func() { _ = recover() }()
	_ = allocator.Deallocate(obj)
}
