package core

// batchFrame is one level of the entry iterator's stack: a directory's
// batch of children plus how far through it the iterator has walked.
type batchFrame[D, R any] struct {
	items []ChildResult[D, R]
	pos   int
}

// EntryIter surfaces DirEntry values in depth-first pre-order, per
// spec.md 4.5. It owns a stack of per-directory batches; the bottom
// frame is the singleton root batch. Descending into a directory pulls
// exactly the next batch the engine produces, which the strict queue (or
// the serial stack) guarantees is that directory's own batch.
type EntryIter[D, R any] struct {
	minDepth int
	engine   *Engine[D, R]
	stack    []*batchFrame[D, R]
}

// NewEntryIter seeds the iterator with the engine's root entry as the
// sole item of the bottom batch, mirroring jwalk's DirEntryIter::new.
func NewEntryIter[D, R any](engine *Engine[D, R], minDepth int) *EntryIter[D, R] {
	return &EntryIter[D, R]{
		minDepth: minDepth,
		engine:   engine,
		stack: []*batchFrame[D, R]{
			{items: []ChildResult[D, R]{{Entry: engine.Root}}},
		},
	}
}

// Next returns the next entry in pre-order. err is non-nil when this
// position in the stream is a per-entry failure (spec.md 7 #2/#3) rather
// than a usable entry; ok is false only at true end-of-stream.
func (it *EntryIter[D, R]) Next() (*DirEntry[D], error, bool) {
	for {
		if len(it.stack) == 0 {
			return nil, nil, false
		}
		top := it.stack[len(it.stack)-1]
		if top.pos >= len(top.items) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		res := top.items[top.pos]
		top.pos++

		if res.Err != nil {
			return nil, res.Err, true
		}

		entry := res.Entry
		if entry.ReadChildrenPath != nil {
			outcome, ok := it.engine.Next()
			switch {
			case !ok:
				entry.ReadChildrenErr = NewIOError(*entry.ReadChildrenPath, entry.Depth+1, ErrQueueStopped)
			case outcome.OpenErr != nil:
				entry.ReadChildrenErr = outcome.OpenErr
			default:
				it.stack = append(it.stack, &batchFrame[D, R]{items: outcome.Result.Results})
			}
		}

		if entry.Depth >= it.minDepth {
			return entry, nil, true
		}
	}
}
