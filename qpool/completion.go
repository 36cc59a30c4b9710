package qpool

import (
	"context"
	"sync"
	"time"

	"github.com/rohankumardubey/stormpot"
)

// Completion is a handle to observe the progress of the pool's shutdown
// drain. Its shape mirrors stormpot.Completion exactly; it is kept as its
// own type (rather than imported) because only this package's drain
// goroutine is allowed to mark it done.
type Completion struct {
	done chan struct{}
	once sync.Once
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func (c *Completion) markDone() {
	c.once.Do(func() { close(c.done) })
}

// Await blocks until the drain completes. It returns stormpot.ErrInterrupted
// if ctx is canceled first.
func (c *Completion) Await(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return stormpot.ErrInterrupted
	}
}

// AwaitTimeout blocks until the drain completes or timeout elapses,
// reporting true if it completed in time.
func (c *Completion) AwaitTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		select {
		case <-c.done:
			return true, nil
		default:
			return false, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, stormpot.ErrInterrupted
	}
}
