package qpool

import (
	"context"
	"sync"
	"time"

	"github.com/rohankumardubey/stormpot"
	"github.com/rohankumardubey/stormpot/internal/clock"
	"github.com/rohankumardubey/stormpot/internal/isnil"
)

// Pool is a concurrent, bounded, self-healing container of reusable
// objects, built on a background allocator goroutine and a bounded channel
// of ready slots rather than a central mutex. See stormpot.Pool for the
// identical public contract.
type Pool[T Poolable] interface {
	// Claim blocks until an object becomes available, the context is
	// canceled (stormpot.ErrInterrupted), or the pool is shut down
	// (stormpot.ErrShutDown).
	Claim(ctx context.Context) (T, error)

	// ClaimTimeout is like Claim but gives up after timeout, reporting
	// stormpot.ErrClaimTimeout.
	ClaimTimeout(ctx context.Context, timeout time.Duration) (T, error)

	// Shutdown marks the pool shut down and starts an asynchronous drain,
	// returning a Completion to observe its progress. Idempotent.
	Shutdown() *Completion
}

// NewPool validates cfg, starts the background allocator actor, and
// returns a ready-to-use Pool.
func NewPool[T Poolable](cfg *Config[T]) (Pool[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return newPool[T](cfg.Size(), cfg.TTL(), cfg.Allocator(), clock.Real()), nil
}

func newPool[T Poolable](size int, ttl time.Duration, allocator Allocator[T], clk clock.Clock) *pool[T] {
	p := &pool[T]{
		size:      size,
		ttl:       ttl,
		allocator: allocator,
		expires:   ttlExpiration,
		clk:       clk,
		slots:     make([]*Slot[T], size),
		ready:     make(chan *Slot[T], size),
		pending:   make(chan *Slot[T], size),
		relSignal: make(chan struct{}),
		done:      make(chan struct{}),
	}

	for i := range p.slots {
		slot := &Slot[T]{pool: p}
		p.slots[i] = slot
		p.pending <- slot
	}

	p.actorsWG.Add(1)
	go p.runActor()

	return p
}

func ttlExpiration(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}

type expiration func(expiresAt, now time.Time) bool

// pool is the queue-based Pool implementation.
type pool[T Poolable] struct {
	size      int
	ttl       time.Duration
	allocator Allocator[T]
	expires   expiration
	clk       clock.Clock

	slots []*Slot[T]

	ready   chan *Slot[T] // slots ready to be claimed
	pending chan *Slot[T] // slots awaiting (re)allocation by the actor

	mu        sync.Mutex
	relSignal chan struct{} // closed and replaced on every release, for drain to wait on

	shutdownOnce sync.Once
	done         chan struct{}
	completion   *Completion

	actorsWG sync.WaitGroup
}

// runActor is the single background allocator goroutine: it pulls slots
// needing (re)allocation off pending, builds their object, and offers the
// result on ready. A failed allocation is reported to exactly one claimer
// as a poisoned slot, then retried.
func (p *pool[T]) runActor() {
	defer p.actorsWG.Done()

	for {
		var slot *Slot[T]
		select {
		case slot = <-p.pending:
		case <-p.done:
			return
		}

		obj, err := p.allocator.Allocate(slot)
		switch {
		case err != nil:
			slot.poison = &stormpot.AllocationFailedError{Cause: err}
		case isnil.Value(obj):
			slot.poison = stormpot.ErrAllocatorReturnedNil
		default:
			slot.poison = nil
			slot.obj = obj
			slot.live = true
			slot.expiresAt = p.clk.Now().Add(p.ttl)
		}

		select {
		case p.ready <- slot:
		case <-p.done:
			if slot.live {
				obj := slot.obj
				slot.live = false
				var zero T
				slot.obj = zero
				safeDeallocate[T](p.allocator, obj)
			}
			return
		}
	}
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

	for {
		var timerC <-chan time.Time
		poll := false
		if bounded {
			remaining := deadline.Sub(p.clk.Now())
			if remaining <= 0 {
				poll = true
			} else {
				timer := time.NewTimer(remaining)
				defer timer.Stop()
				timerC = timer.C
			}
		}

		var slot *Slot[T]
		if poll {
			// No budget left: take a ready slot if there is one, never wait.
			select {
			case slot = <-p.ready:
			case <-p.done:
				return zero, stormpot.ErrShutDown
			default:
				return zero, stormpot.ErrClaimTimeout
			}
		} else {
			select {
			case s, ok := <-p.ready:
				if !ok {
					return zero, stormpot.ErrShutDown
				}
				slot = s
			case <-p.done:
				return zero, stormpot.ErrShutDown
			case <-ctx.Done():
				return zero, stormpot.ErrInterrupted
			case <-timerC:
				return zero, stormpot.ErrClaimTimeout
			}
		}

		// select picks at random when a slot is ready and done is closed;
		// a slot left on ready after shutdown belongs to drain.
		select {
		case <-p.done:
			return zero, stormpot.ErrShutDown
		default:
		}

		if slot.poison != nil {
			err := slot.poison
			slot.poison = nil
			p.pending <- slot
			return zero, err
		}

		if p.expires(slot.expiresAt, p.clk.Now()) {
			stale := slot.obj
			slot.live = false
			slot.obj = zero
			safeDeallocate[T](p.allocator, stale)
			p.pending <- slot
			continue
		}

		p.mu.Lock()
		select {
		case <-p.done:
			p.mu.Unlock()
			return zero, stormpot.ErrShutDown
		default:
		}
		slot.claimed = true
		p.mu.Unlock()

		return slot.obj, nil
	}
}

func (p *pool[T]) release(s *Slot[T]) {
	p.mu.Lock()
	if !s.claimed {
		p.mu.Unlock()
		return
	}
	s.claimed = false
	close(p.relSignal)
	p.relSignal = make(chan struct{})
	p.mu.Unlock()

	select {
	case p.ready <- s:
	case <-p.done:
		// s.claimed is already false, so drain (which deallocates
		// live/obj exclusively under p.mu once it observes that) will
		// reach this slot itself; touching live/obj here too would race
		// with drain's own unsynchronized-from-here-on mutation of the
		// same fields.
	}
}

// Shutdown implements Pool.
func (p *pool[T]) Shutdown() *Completion {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.completion = newCompletion()
		p.mu.Unlock()

		close(p.done)

		go p.drain()
	})

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.completion
}

// drain waits for the allocator actor to exit first — since done is
// already closed, it will not touch any slot's live/obj again after that —
// then deallocates every slot, waiting uninterruptibly for any
// currently-claimed slot to be released first. Waiting for the actor up
// front (rather than after the per-slot loop) is what makes the live/obj
// reads below race-free: without it, drain could read a slot the actor is
// still concurrently writing to outside of p.mu.
func (p *pool[T]) drain() {
	p.actorsWG.Wait()

	var zero T

	for _, slot := range p.slots {
		p.mu.Lock()
		for slot.claimed {
			ch := p.relSignal
			p.mu.Unlock()
			<-ch
			p.mu.Lock()
		}

		live := slot.live
		obj := slot.obj
		if live {
			slot.live = false
			slot.obj = zero
		}
		p.mu.Unlock()

		if live {
			safeDeallocate[T](p.allocator, obj)
		}
	}

	p.completion.markDone()
}

func safeDeallocate[T Poolable](allocator Allocator[T], obj T) {
	defer func() { _ = recover() }()
	_ = allocator.Deallocate(obj)
}
