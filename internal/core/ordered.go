package core

// Ordered pairs a payload with the index path that places it in the
// walk's pre-order sequence and the number of direct children that will
// later flow through the same stream under that path. ChildCount is
// authoritative: the strict consumer uses it, not the payload, to know
// when a subtree has fully drained.
type Ordered[T any] struct {
	Path       IndexPath
	ChildCount int
	Value      T
}

// orderedHeap is a container/heap.Interface over Ordered[T], ordered by
// IndexPath ascending (smallest path first).
type orderedHeap[T any] []Ordered[T]

func (h orderedHeap[T]) Len() int            { return len(h) }
func (h orderedHeap[T]) Less(i, j int) bool  { return h[i].Path.Less(h[j].Path) }
func (h orderedHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *orderedHeap[T]) Push(x interface{}) { *h = append(*h, x.(Ordered[T])) }
func (h *orderedHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
