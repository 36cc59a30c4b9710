// Package stormpot implements a generic, concurrent object pool for
// expensive-to-construct resources: database connections, parsers,
// decompressors, buffers.
//
// Clients claim an object for exclusive use and release it back when done:
//
//	cfg := stormpot.NewConfig[*MyPoolable](10, time.Minute, myAllocator)
//	pool, err := stormpot.NewPool(cfg)
//	if err != nil {
//		// invalid configuration
//	}
//
//	obj, err := pool.Claim(context.Background())
//	if err != nil {
//		// pool is shut down, allocation failed, or the context was canceled
//	}
//	defer obj.Release()
//
// The pool enforces a fixed ceiling on live objects, a time-to-live policy
// on each allocated object, and coordinates a graceful shutdown that drains
// every in-flight claim before deallocating. See [NewPool] for the
// lock-and-condition reference implementation, and the sibling
// github.com/rohankumardubey/stormpot/qpool package for a queue-based
// variant satisfying the same contract.
package stormpot
