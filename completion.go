package stormpot

import (
	"context"
	"sync"
	"time"
)

// Completion is a handle to observe the progress of an asynchronous,
// result-less task, such as a pool's shutdown drain. Once Await has
// observed completion, every subsequent call returns immediately.
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

// Await blocks until the task completes. It returns ErrInterrupted if ctx
// is canceled first.
func (c *Completion) Await(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ErrInterrupted
	}
}

// AwaitTimeout blocks until the task completes or timeout elapses,
// reporting true if the task completed in time. It returns ErrInterrupted
// if ctx is canceled first.
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
		return false, ErrInterrupted
	}
}
