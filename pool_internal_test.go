package stormpot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankumardubey/stormpot/internal/clock"
)

type fakePoolable struct {
	slot *Slot[*fakePoolable]
}

func (f *fakePoolable) Release() { f.slot.Release(f) }

type fakeAllocator struct {
	mu            sync.Mutex
	allocations   int
	deallocations int
}

func (a *fakeAllocator) Allocate(slot *Slot[*fakePoolable]) (*fakePoolable, error) {
	a.mu.Lock()
	a.allocations++
	a.mu.Unlock()

	return &fakePoolable{slot: slot}, nil
}

func (a *fakeAllocator) Deallocate(*fakePoolable) error {
	a.mu.Lock()
	a.deallocations++
	a.mu.Unlock()

	return nil
}

func (a *fakeAllocator) counts() (allocations, deallocations int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocations, a.deallocations
}

func TestPoolUsesClockForExpiryDeterministically(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(time.Unix(0, 0))
	allocator := &fakeAllocator{}
	p := newPool[*fakePoolable](1, time.Minute, allocator, fake)

	obj1, err := p.Claim(context.Background())
	require.NoError(t, err)
	obj1.Release()

	fake.Advance(30 * time.Second)

	obj2, err := p.Claim(context.Background())
	require.NoError(t, err)
	assert.Same(t, obj1, obj2)

	obj2.Release()

	fake.Advance(2 * time.Minute)

	obj3, err := p.Claim(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, obj1, obj3)

	allocations, deallocations := allocator.counts()
	assert.Equal(t, 2, allocations)
	assert.Equal(t, 1, deallocations)

	obj3.Release()
}

func TestClaimWrapsAllocatorErrorCause(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := newPool[*fakePoolable](1, time.Minute, failingAllocator{err: boom}, clock.Real())

	_, err := p.Claim(context.Background())

	var allocErr *AllocationFailedError
	require.ErrorAs(t, err, &allocErr)
	assert.Same(t, boom, allocErr.Cause)
	assert.ErrorIs(t, err, boom)
}

type failingAllocator struct{ err error }

func (a failingAllocator) Allocate(*Slot[*fakePoolable]) (*fakePoolable, error) {
	return nil, a.err
}

func (failingAllocator) Deallocate(*fakePoolable) error { return nil }

type gatedAllocator struct {
	release chan struct{}
	err     error
}

func (a *gatedAllocator) Allocate(slot *Slot[*fakePoolable]) (*fakePoolable, error) {
	<-a.release
	if a.err != nil {
		return nil, a.err
	}
	return &fakePoolable{slot: slot}, nil
}

func (*gatedAllocator) Deallocate(*fakePoolable) error { return nil }

// When a bounded claim times out before the allocator it kicked off
// actually returns, the abandoned allocation's own goroutine resolves and
// frees the slot once it finishes; a later claimer must see that outcome
// through slot.poison rather than it being silently dropped.
func TestAbandonedTimedOutAllocationPoisonsSlotForLaterClaim(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	allocator := &gatedAllocator{release: make(chan struct{}), err: boom}
	p := newPool[*fakePoolable](1, time.Minute, allocator, clock.Real())

	_, err := p.ClaimTimeout(context.Background(), 20*time.Millisecond)
	require.ErrorIs(t, err, ErrClaimTimeout)

	close(allocator.release)

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()

		return p.slots[0] != nil && !p.slots[0].claimed && p.slots[0].poison != nil
	}, time.Second, time.Millisecond)

	_, err = p.Claim(context.Background())
	var allocErr *AllocationFailedError
	require.ErrorAs(t, err, &allocErr)
	require.ErrorIs(t, err, boom)

	allocator.err = nil
	obj, err := p.Claim(context.Background())
	require.NoError(t, err)
	require.NotNil(t, obj)
}
