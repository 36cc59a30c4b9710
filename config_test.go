package stormpot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankumardubey/stormpot"
	"github.com/rohankumardubey/stormpot/stormpottest"
)

func TestConfigValidateRejectsBadSize(t *testing.T) {
	t.Parallel()

	cfg := stormpot.NewConfig[*stormpottest.GenericPoolable](0, time.Minute, stormpottest.NewCountingAllocator())

	err := cfg.Validate()
	require.ErrorIs(t, err, stormpot.ErrInvalidConfiguration)
}

func TestConfigValidateRejectsBadTTL(t *testing.T) {
	t.Parallel()

	cfg := stormpot.NewConfig[*stormpottest.GenericPoolable](1, 0, stormpottest.NewCountingAllocator())

	err := cfg.Validate()
	require.ErrorIs(t, err, stormpot.ErrInvalidConfiguration)
}

func TestConfigValidateRejectsNilAllocator(t *testing.T) {
	t.Parallel()

	cfg := stormpot.NewConfig[*stormpottest.GenericPoolable](1, time.Minute, nil)

	err := cfg.Validate()
	require.ErrorIs(t, err, stormpot.ErrInvalidConfiguration)
}

func TestConfigValidateAcceptsGoodConfig(t *testing.T) {
	t.Parallel()

	cfg := stormpot.NewConfig[*stormpottest.GenericPoolable](1, time.Minute, stormpottest.NewCountingAllocator())

	require.NoError(t, cfg.Validate())
}

func TestConfigCopyIntoIsIndependent(t *testing.T) {
	t.Parallel()

	original := stormpot.NewConfig[*stormpottest.GenericPoolable](1, time.Minute, stormpottest.NewCountingAllocator())
	copied := stormpot.NewConfig[*stormpottest.GenericPoolable](0, 0, nil)

	original.CopyInto(copied)
	assert.Equal(t, original.Size(), copied.Size())
	assert.Equal(t, original.TTL(), copied.TTL())

	copied.SetSize(99)
	copied.SetTTL(time.Hour)

	assert.Equal(t, 1, original.Size(), "mutating the copy must not affect the original")
	assert.Equal(t, time.Minute, original.TTL())
	assert.Equal(t, 99, copied.Size())
	assert.Equal(t, time.Hour, copied.TTL())
}

func TestConfigSettersAreConcurrencySafe(t *testing.T) {
	t.Parallel()

	cfg := stormpot.NewConfig[*stormpottest.GenericPoolable](1, time.Minute, stormpottest.NewCountingAllocator())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			cfg.SetSize(i + 1)
		}
	}()

	for i := 0; i < 1000; i++ {
		_ = cfg.Size()
	}

	<-done
}
