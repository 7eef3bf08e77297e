package core

import (
	"runtime"
	"sync"
	"time"
)

// Pool is the minimal work-submission surface the engine needs from a
// caller-provided worker pool: fire-and-forget task submission. A Pool
// implementation must eventually run every submitted function, but may
// queue it arbitrarily long — the startup probe below exists precisely
// to detect when that queueing would deadlock the walk.
type Pool interface {
	Go(fn func())
}

// goPool is a small fixed-size pool of long-lived goroutines draining a
// shared task channel, backing both DefaultPool and NewPool{N}.
type goPool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

func newGoPool(workers int) *goPool {
	if workers < 1 {
		workers = 1
	}
	p := &goPool{tasks: make(chan func())}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for fn := range p.tasks {
				fn()
			}
		}()
	}
	return p
}

func (p *goPool) Go(fn func()) { p.tasks <- fn }

func (p *goPool) close() {
	close(p.tasks)
	p.wg.Wait()
}

// ParallelismKind selects among spec.md 4.6's closed union of execution
// modes.
type ParallelismKind int

const (
	ParallelSerial ParallelismKind = iota
	ParallelDefaultPool
	ParallelExistingPool
	ParallelNewPool
)

// Parallelism configures how the engine dispatches directory reads.
// Workers is meaningful for ParallelNewPool (pool size) and
// ParallelExistingPool (how many submission loops to run against Pool).
// BusyTimeout, when non-zero, enables the startup liveness probe of
// spec.md 4.4 for DefaultPool and ExistingPool.
type Parallelism struct {
	Kind        ParallelismKind
	Pool        Pool
	Workers     int
	BusyTimeout time.Duration
}

func defaultWorkerCount() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// resolve returns the Pool to submit work to and the number of
// concurrent submission loops the engine should run against it.
func (p Parallelism) resolve() (Pool, int) {
	switch p.Kind {
	case ParallelNewPool:
		n := p.Workers
		if n < 1 {
			n = defaultWorkerCount()
		}
		return newGoPool(n), n
	case ParallelExistingPool:
		n := p.Workers
		if n < 1 {
			n = 1
		}
		return p.Pool, n
	default: // ParallelDefaultPool
		n := defaultWorkerCount()
		return newGoPool(n), n
	}
}

// probeStartup implements spec.md 4.4's startup liveness probe: it
// submits a single rendezvous task to pool and waits up to timeout for
// it to run. A zero timeout skips the probe (the caller trusts the pool
// to make progress eventually). Used only for DefaultPool/ExistingPool,
// where the pool might fail to run a new task promptly (for
// ExistingPool, because it is saturated with unrelated work).
func probeStartup(pool Pool, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	ready := make(chan struct{})
	go pool.Go(func() { close(ready) })
	select {
	case <-ready:
		return nil
	case <-time.After(timeout):
		return NewPoolBusyError()
	}
}
