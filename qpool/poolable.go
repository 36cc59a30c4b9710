package qpool

import "github.com/rohankumardubey/stormpot"

// Poolable is implemented by objects managed by a Pool. It is identical to
// stormpot.Poolable: Release takes no arguments and is pool-discipline
// agnostic, so both variants share the one interface.
type Poolable = stormpot.Poolable
