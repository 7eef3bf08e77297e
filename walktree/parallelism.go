package walktree

import (
	"time"

	"github.com/arborfs/walktree/internal/core"
)

// Pool is the minimal work-submission surface a caller-supplied pool
// must provide for ExistingPool.
type Pool = core.Pool

// Parallelism selects how a walk dispatches directory reads. Build one
// with SerialWalk, DefaultPool, ExistingPool, or NewPool.
type Parallelism struct {
	c core.Parallelism
}

// SerialWalk disables the worker pool entirely: directory reads happen
// synchronously on the calling goroutine, in depth-first order.
func SerialWalk() Parallelism {
	return Parallelism{c: core.Parallelism{Kind: core.ParallelSerial}}
}

// DefaultPool dispatches reads onto a pool sized to GOMAXPROCS, created
// and owned by the walk. busyTimeout, if non-zero, bounds how long the
// walk waits during startup to confirm the pool is accepting work before
// returning KindPoolBusy.
func DefaultPool(busyTimeout time.Duration) Parallelism {
	return Parallelism{c: core.Parallelism{Kind: core.ParallelDefaultPool, BusyTimeout: busyTimeout}}
}

// ExistingPool dispatches reads onto a caller-owned Pool, running
// workers submission loops against it. The walk never closes pool.
func ExistingPool(pool Pool, workers int, busyTimeout time.Duration) Parallelism {
	return Parallelism{c: core.Parallelism{
		Kind:        core.ParallelExistingPool,
		Pool:        pool,
		Workers:     workers,
		BusyTimeout: busyTimeout,
	}}
}

// NewPool creates and owns a pool of n goroutines for this walk alone
// (n <= 0 means GOMAXPROCS). A freshly created pool cannot already be
// busy, so no startup probe runs.
func NewPool(n int) Parallelism {
	return Parallelism{c: core.Parallelism{Kind: core.ParallelNewPool, Workers: n}}
}
