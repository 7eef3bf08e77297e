package core

import (
	"errors"
	"testing"
	"time"
)

// pinnedPool simulates a caller-supplied Pool whose single worker is
// already busy running other work: every submission is accepted (Go
// never blocks the caller) but does not actually execute until release
// is closed, so a probeStartup rendezvous task submitted against it
// cannot complete within any timeout shorter than the pin.
type pinnedPool struct {
	release chan struct{}
}

func (p *pinnedPool) Go(fn func()) {
	go func() {
		<-p.release
		fn()
	}()
}

func TestNewEngineExistingPoolBusyTimeout(t *testing.T) {
	root := buildTestTree(t)
	pool := &pinnedPool{release: make(chan struct{})}
	defer close(pool.release)

	opts := &Options[struct{}, struct{}]{MaxDepth: -1}
	par := Parallelism{
		Kind:        ParallelExistingPool,
		Pool:        pool,
		Workers:     1,
		BusyTimeout: 20 * time.Millisecond,
	}
	_, err := NewEngine[struct{}, struct{}](root, opts, par, struct{}{})
	if err == nil {
		t.Fatalf("NewEngine with a pinned ExistingPool: want KindPoolBusy error, got nil")
	}
	var coreErr *Error
	if !errors.As(err, &coreErr) || coreErr.Kind != KindPoolBusy {
		t.Fatalf("NewEngine error = %v, want a *Error with Kind == KindPoolBusy", err)
	}
}

func TestNewEngineExistingPoolNotBusyOnceFreed(t *testing.T) {
	root := buildTestTree(t)
	pool := &pinnedPool{release: make(chan struct{})}
	close(pool.release)

	opts := &Options[struct{}, struct{}]{MaxDepth: -1, Sort: true}
	par := Parallelism{
		Kind:        ParallelExistingPool,
		Pool:        pool,
		Workers:     1,
		BusyTimeout: 200 * time.Millisecond,
	}
	eng, err := NewEngine[struct{}, struct{}](root, opts, par, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine with an already-free ExistingPool: %v", err)
	}
	got := collectPaths(t, root, eng, opts.MinDepth)
	assertEqual(t, got, []string{".", "a.txt", "b.txt", "c.txt", "g1", "g1/d.txt", "g2", "g2/e.txt"})
}
