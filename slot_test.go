package stormpot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankumardubey/stormpot"
)

type indexedPoolable struct {
	slot *stormpot.Slot[*indexedPoolable]
}

func (p *indexedPoolable) Release() {
	p.slot.Release(p)
}

type indexedAllocator struct{}

func (indexedAllocator) Allocate(slot *stormpot.Slot[*indexedPoolable]) (*indexedPoolable, error) {
	return &indexedPoolable{slot: slot}, nil
}

func (indexedAllocator) Deallocate(*indexedPoolable) error { return nil }

func TestSlotIndexIsWithinBounds(t *testing.T) {
	t.Parallel()

	cfg := stormpot.NewConfig[*indexedPoolable](3, time.Minute, indexedAllocator{})
	pool, err := stormpot.NewPool(cfg)
	require.NoError(t, err)

	obj, err := pool.Claim(context.Background())
	require.NoError(t, err)
	defer obj.Release()

	assert.GreaterOrEqual(t, obj.slot.Index(), 0)
	assert.Less(t, obj.slot.Index(), 3)
}

func TestSlotDoubleReleaseIsNoOp(t *testing.T) {
	t.Parallel()

	cfg := stormpot.NewConfig[*indexedPoolable](1, time.Minute, indexedAllocator{})
	pool, err := stormpot.NewPool(cfg)
	require.NoError(t, err)

	obj, err := pool.Claim(context.Background())
	require.NoError(t, err)

	obj.Release()
	assert.NotPanics(t, func() {
		obj.Release() // second release: silent no-op per contract
	})

	obj2, err := pool.Claim(context.Background())
	require.NoError(t, err)
	assert.Same(t, obj, obj2)
	obj2.Release()
}
