package qpool

import "time"

// Slot is the queue variant's internal handle on one position in the
// pool's fixed-size population. Unlike the reference variant's array
// index, a queue-variant Slot's identity is the pointer itself: slots
// circulate through channels rather than sitting at a fixed array offset.
type Slot[T Poolable] struct {
	pool *pool[T]

	claimed   bool
	live      bool
	expiresAt time.Time
	poison    error
	obj       T
}

// Release returns obj to the slot's owning pool. Poolable implementations
// call this from their own Release method. A release on a slot that is not
// currently claimed is a silent no-op.
func (s *Slot[T]) Release(obj T) {
	s.pool.release(s)
}
