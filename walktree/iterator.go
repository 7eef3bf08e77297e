package walktree

import "github.com/arborfs/walktree/internal/core"

// Iterator is a pull-based handle over a running walk's results. Next
// must be called to completion (until ok is false) or Close must be
// called explicitly to release the walk's worker pool and queues.
type Iterator[D any] struct {
	next  func() (*core.DirEntry[D], error, bool)
	close func()
}

// Next returns the walk's next position. ok is false only at true
// end-of-stream, at which point entry and err are both nil. err non-nil
// means this position is a standalone failure (an unreadable directory's
// open error surfaces on the owning entry's ReadChildrenError instead;
// this err is for per-entry Lstat/cycle failures and builder-time
// errors raised through Iter) rather than a usable entry.
func (it *Iterator[D]) Next() (entry *DirEntry[D], err error, ok bool) {
	e, err, ok := it.next()
	if !ok {
		return nil, nil, false
	}
	if err != nil {
		return nil, err, true
	}
	return wrap(e), nil, true
}

// Close releases the walk's worker pool (if it owns one) and wakes any
// workers waiting on an empty queue so they exit. Safe to call more than once and
// after the iterator is exhausted.
func (it *Iterator[D]) Close() {
	if it.close != nil {
		it.close()
	}
}

// All adapts the iterator to the standard range-over-func shape. The
// loop body receives (entry, err) for every position in the stream,
// including standalone errors; ranging to completion closes the walk.
func (it *Iterator[D]) All() func(yield func(*DirEntry[D], error) bool) {
	return func(yield func(*DirEntry[D], error) bool) {
		defer it.Close()
		for {
			entry, err, ok := it.Next()
			if !ok {
				return
			}
			if !yield(entry, err) {
				return
			}
		}
	}
}
