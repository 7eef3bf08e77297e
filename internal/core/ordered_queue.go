package core

import (
	"container/heap"
	"errors"
	"sync"
)

// ErrQueueStopped is returned by Push once the queue's stop flag has been
// set; producers treat it as cancellation, per spec.md 4.2 "Failure".
var ErrQueueStopped = errors.New("core: ordered queue stopped")

// OrderedQueue is the multi-producer queue backing both the relaxed
// (scheduling) and strict (delivery) drains described in spec.md 4.2. It
// is a priority heap keyed by IndexPath guarded by a mutex/condition
// variable pair, the same shape eargollo/ditto2's internal/scan.dirQueue
// uses for its pending-counter termination protocol, generalized here
// with a heap instead of a FIFO slice so the strict drain can enforce
// delivery order.
type OrderedQueue[T any] struct {
	mu          sync.Mutex
	cond        *sync.Cond
	items       orderedHeap[T]
	outstanding int64
	stopped     bool
}

// NewOrderedQueue creates an empty queue with an optional size hint,
// mirroring the channel pre-sizing heuristics in scan.NewScanner.
func NewOrderedQueue[T any](sizeHint int) *OrderedQueue[T] {
	q := &OrderedQueue[T]{items: make(orderedHeap[T], 0, sizeHint)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add records that n units of work have been scheduled but not yet
// resolved. A producer calls this before dispatching work it intends to
// eventually Push a result for (or, for leaf work, before calling
// Complete once it finds there is nothing to push).
func (q *OrderedQueue[T]) Add(n int) {
	if n == 0 {
		return
	}
	q.mu.Lock()
	q.outstanding += int64(n)
	q.mu.Unlock()
}

// Complete signals that one previously-Added unit has now been resolved,
// whether or not it produced a Push. When outstanding reaches zero every
// blocked consumer is woken so it can observe end-of-stream.
func (q *OrderedQueue[T]) Complete() {
	q.mu.Lock()
	q.outstanding--
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Push enqueues an envelope. It returns ErrQueueStopped if Stop has
// already been called; the caller unwinds without scheduling further
// children, per spec.md 5 "Cancellation".
func (q *OrderedQueue[T]) Push(o Ordered[T]) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	heap.Push(&q.items, o)
	q.mu.Unlock()
	q.cond.Broadcast()
	return nil
}

// Stop sets the shared stop flag and wakes every blocked waiter. Pushes
// after Stop fail with ErrQueueStopped; pending iterators observe stop as
// end-of-stream.
func (q *OrderedQueue[T]) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Stopped reports whether Stop has been called.
func (q *OrderedQueue[T]) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// popRelaxed returns the current heap minimum, blocking only while the
// heap is empty and outstanding work remains. It returns ok=false once
// the heap is empty and outstanding is zero, or the queue is stopped.
// Ordering beyond "current minimum" is not guaranteed, per spec.md 4.2.
func (q *OrderedQueue[T]) popRelaxed() (Ordered[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && q.outstanding > 0 && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped || len(q.items) == 0 {
		var zero Ordered[T]
		return zero, false
	}
	item := heap.Pop(&q.items).(Ordered[T])
	return item, true
}

// peekStrictReady reports whether the heap's minimum path equals want,
// and if so pops and returns it. It blocks (via the condition variable)
// while the heap either lacks that minimum or is empty, as long as
// outstanding work remains that could still produce it.
func (q *OrderedQueue[T]) peekStrictReady(want IndexPath) (Ordered[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.stopped {
			var zero Ordered[T]
			return zero, false
		}
		if len(q.items) > 0 && q.items[0].Path.Equal(want) {
			item := heap.Pop(&q.items).(Ordered[T])
			return item, true
		}
		if q.outstanding == 0 {
			var zero Ordered[T]
			return zero, false
		}
		q.cond.Wait()
	}
}

// RelaxedIter drains the queue in relaxed mode: "whatever is currently
// the heap minimum", used to schedule directory reads across the pool.
type RelaxedIter[T any] struct{ q *OrderedQueue[T] }

// Relaxed returns a relaxed-mode drain over q.
func (q *OrderedQueue[T]) Relaxed() *RelaxedIter[T] { return &RelaxedIter[T]{q: q} }

// Next returns the next relaxed-order item, or ok=false at end of stream.
func (it *RelaxedIter[T]) Next() (Ordered[T], bool) { return it.q.popRelaxed() }

// StrictIter drains the queue in strict mode, delivering envelopes in
// exactly the pre-order implied by the expectation machine of spec.md 4.2.
type StrictIter[T any] struct {
	q           *OrderedQueue[T]
	expectation IndexPath
	siblings    []int // stack of remaining-sibling counts, top = last element
	done        bool
}

// Strict returns a strict-mode drain over q. The initial expectation is
// the root path [0] with sibling stack [1] (one root), per spec.md 4.2.
func (q *OrderedQueue[T]) Strict() *StrictIter[T] {
	return &StrictIter[T]{
		q:           q,
		expectation: RootPath(),
		siblings:    []int{1},
	}
}

// Next blocks until the heap top equals the current expectation, then
// advances the expectation per the rule in spec.md 4.2 and returns the
// delivered envelope. ok is false once the expectation stack has emptied
// (the walk is fully drained) or the queue stopped early.
func (it *StrictIter[T]) Next() (Ordered[T], bool) {
	if it.done {
		var zero Ordered[T]
		return zero, false
	}
	item, ok := it.q.peekStrictReady(it.expectation)
	if !ok {
		it.done = true
		var zero Ordered[T]
		return zero, false
	}
	it.advance(item)
	return item, true
}

func (it *StrictIter[T]) advance(item Ordered[T]) {
	n := len(it.siblings)
	it.siblings[n-1]--

	if item.ChildCount > 0 {
		it.siblings = append(it.siblings, item.ChildCount)
		it.expectation = item.Path.Child(0)
		return
	}

	it.expectation = item.Path.NextSibling()
	for len(it.siblings) > 0 && it.siblings[len(it.siblings)-1] == 0 {
		it.siblings = it.siblings[:len(it.siblings)-1]
		parent, ok := it.expectation.Parent()
		if !ok {
			it.done = true
			return
		}
		it.expectation = parent
		if len(it.siblings) > 0 {
			it.expectation = it.expectation.NextSibling()
		}
	}
	if len(it.siblings) == 0 {
		it.done = true
	}
}
