package stormpottest

import (
	"errors"
	"sync"
	"time"
)

// ErrNaivePoolShutDown is returned by NaivePool.Claim once the pool has
// been shut down.
var ErrNaivePoolShutDown = errors.New("stormpottest: naive pool is shut down")

// NaivePool is a deliberately naive, unoptimized object pool used only as a
// test oracle: claim/release/shutdown tests run the same scenario against
// both stormpot.Pool and NaivePool and assert the two agree. It is the
// counterpart to original_source's BasicPool.java, built with a literal
// sync.Cond rather than the broadcast-channel trick the production pool
// uses, on purpose: a second, independent rendering of the same claim
// algorithm is a better cross-check than reusing the production code path.
type NaivePool struct {
	mu   sync.Mutex
	cond *sync.Cond

	allocator *CountingAllocator
	ttl       time.Duration

	objects []*GenericPoolable
	slots   []*naiveSlot
	claimed int
	shutok  bool
	drained chan struct{}
}

type naiveSlot struct {
	expiresAt time.Time
	claimed   bool
}

// NewNaivePool returns a NaivePool of the given size and ttl, backed by
// allocator.
func NewNaivePool(size int, ttl time.Duration, allocator *CountingAllocator) *NaivePool {
	p := &NaivePool{
		allocator: allocator,
		ttl:       ttl,
		objects:   make([]*GenericPoolable, size),
		slots:     make([]*naiveSlot, size),
		drained:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	return p
}

// Claim blocks until an object is available, returning its index so the
// caller can later Release it. Expired or missing objects are (re)allocated
// synchronously.
func (p *NaivePool) Claim() (obj *GenericPoolable, index int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.shutok {
			return nil, 0, ErrNaivePoolShutDown
		}

		if p.claimed < len(p.objects) {
			break
		}

		p.cond.Wait()
	}

	if p.shutok {
		return nil, 0, ErrNaivePoolShutDown
	}

	for index = range p.slots {
		if p.slots[index] == nil || !p.slots[index].claimed {
			break
		}
	}
	slot := p.slots[index]

	if slot == nil || p.objects[index] == nil || time.Now().After(slot.expiresAt) {
		if p.objects[index] != nil {
			_ = p.allocator.Deallocate(p.objects[index])
			p.objects[index] = nil
		}

		newObj, allocErr := p.allocator.AllocateRaw()
		if allocErr != nil {
			return nil, 0, allocErr
		}

		p.objects[index] = newObj
		slot = &naiveSlot{expiresAt: time.Now().Add(p.ttl)}
		p.slots[index] = slot
	}

	slot.claimed = true
	p.claimed++

	return p.objects[index], index, nil
}

// Release returns the object at index to the pool.
func (p *NaivePool) Release(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.slots) || p.slots[index] == nil || !p.slots[index].claimed {
		return
	}

	p.slots[index].claimed = false
	p.claimed--
	p.cond.Broadcast()
}

// Shutdown marks the pool shut down and deallocates every unclaimed slot,
// closing the returned channel when the drain completes.
func (p *NaivePool) Shutdown() <-chan struct{} {
	p.mu.Lock()
	p.shutok = true
	p.cond.Broadcast()
	p.mu.Unlock()

	go func() {
		p.mu.Lock()
		for i := range p.slots {
			for p.slots[i] != nil && p.slots[i].claimed {
				p.cond.Wait()
			}
			if p.objects[i] != nil {
				obj := p.objects[i]
				p.objects[i] = nil
				p.mu.Unlock()
				_ = p.allocator.Deallocate(obj)
				p.mu.Lock()
			}
		}
		p.mu.Unlock()
		close(p.drained)
	}()

	return p.drained
}
