// Package qpool is the queue-based variant of a stormpot.Pool: a
// background allocator goroutine eagerly fills a bounded channel of slots,
// claims receive from that channel with the requested timeout, releases
// re-offer the slot to the channel, and a closed "done" channel propagates
// shutdown to every blocked consumer instead of a central mutex.
//
// It satisfies the same observable contract as the sibling
// github.com/rohankumardubey/stormpot package's lock-and-condition
// reference implementation; pick whichever concurrency discipline fits a
// given contention profile.
package qpool
