package core

import (
	"os"
	"path/filepath"
)

// Engine drives one walk: it resolves the root entry, then supplies
// ReadDirOutcomes to the entry iterator in exactly the depth-first
// pre-order it will encounter directory entries, either by reading
// synchronously off an internal stack (Serial) or by draining a strict
// ordered queue fed by a pool of workers (Parallel), per spec.md 4.4.
type Engine[D, R any] struct {
	opts *Options[D, R]
	Root *DirEntry[D]

	serial *serialSource[D, R]

	relaxed    *OrderedQueue[ReadDirSpec[R]]
	strict     *OrderedQueue[ReadDirOutcome[D, R]]
	strictIter *StrictIter[ReadDirOutcome[D, R]]

	pool     Pool
	ownsPool bool
}

// NewEngine resolves the root path and, if it names a directory within
// MaxDepth, starts the configured execution mode.
func NewEngine[D, R any](rootPath string, opts *Options[D, R], par Parallelism, rootState R) (*Engine[D, R], error) {
	root, err := resolveRoot[D](rootPath, opts.FollowLinks, opts.withinMaxDepth(0))
	if err != nil {
		return nil, err
	}

	e := &Engine[D, R]{opts: opts, Root: root}
	if root.ReadChildrenPath == nil {
		return e, nil
	}

	seed := ReadDirSpec[R]{
		Depth:               0,
		Path:                *root.ReadChildrenPath,
		IndexPath:           RootPath(),
		ClientReadState:     rootState,
		FollowLinkAncestors: root.FollowLinkAncestors,
	}

	if par.Kind == ParallelSerial {
		e.serial = &serialSource[D, R]{opts: opts, stack: []ReadDirSpec[R]{seed}}
		return e, nil
	}

	pool, workers := par.resolve()
	// NewPool is freshly constructed here and cannot already be busy;
	// the probe exists for DefaultPool and a caller-supplied
	// ExistingPool, per spec.md 6's Parallelism variants.
	if par.Kind == ParallelDefaultPool || par.Kind == ParallelExistingPool {
		if err := probeStartup(pool, par.BusyTimeout); err != nil {
			return nil, err
		}
	}
	e.pool = pool
	e.ownsPool = par.Kind == ParallelNewPool || par.Kind == ParallelDefaultPool

	e.relaxed = NewOrderedQueue[ReadDirSpec[R]](workers * 4)
	e.strict = NewOrderedQueue[ReadDirOutcome[D, R]](workers * 4)

	// One relaxed pop and, eventually, exactly one strict push is owed
	// for the seed spec; every subsequent Add pair below preserves this
	// 1:1 relationship as child specs are discovered.
	e.relaxed.Add(1)
	e.strict.Add(1)
	if err := e.relaxed.Push(Ordered[ReadDirSpec[R]]{Path: seed.IndexPath, Value: seed}); err != nil {
		return nil, err
	}

	for i := 0; i < workers; i++ {
		pool.Go(e.workerLoop)
	}
	e.strictIter = e.strict.Strict()

	return e, nil
}

// workerLoop is one pool submission loop draining the relaxed queue
// until it reports end-of-stream, per spec.md 4.4 "pool workers drain
// specs, perform the read, push the resulting envelope into the strict
// ordered queue, then push each child spec back into the relaxed queue".
func (e *Engine[D, R]) workerLoop() {
	relaxedIter := e.relaxed.Relaxed()
	for {
		item, ok := relaxedIter.Next()
		if !ok {
			return
		}
		outcome, childSpecs := readDirectory(item.Value, e.opts)

		// The children's strict obligations are Added before this item's
		// own is discharged, so the strict count never reaches zero while
		// children are still to come.
		if len(childSpecs) > 0 {
			e.strict.Add(len(childSpecs))
		}

		// This item's strict obligation (Added by whoever scheduled it)
		// is discharged here, regardless of how many children it found.
		if err := e.strict.Push(Ordered[ReadDirOutcome[D, R]]{
			Path:       item.Path,
			ChildCount: len(childSpecs),
			Value:      outcome,
		}); err != nil {
			e.Stop()
			return
		}
		e.strict.Complete()

		if len(childSpecs) > 0 {
			// Each child owes one future relaxed pop (its strict push was
			// Added above), mirroring the seed's accounting.
			e.relaxed.Add(len(childSpecs))
			for _, cs := range childSpecs {
				if err := e.relaxed.Push(Ordered[ReadDirSpec[R]]{Path: cs.IndexPath, Value: cs}); err != nil {
					e.Stop()
					return
				}
			}
		}

		e.relaxed.Complete()
	}
}

// Next returns the next batch in strict pre-order, for the entry
// iterator to push onto its stack. ok is false once the walk is
// exhausted.
func (e *Engine[D, R]) Next() (ReadDirOutcome[D, R], bool) {
	if e.serial != nil {
		return e.serial.next()
	}
	if e.strictIter == nil {
		var zero ReadDirOutcome[D, R]
		return zero, false
	}
	item, ok := e.strictIter.Next()
	if !ok {
		var zero ReadDirOutcome[D, R]
		return zero, false
	}
	return item.Value, true
}

// Stop sets the shared cancellation flag: workers observe it on their
// next queue push and unwind without scheduling further children, per
// spec.md 5 "Cancellation". Safe to call more than once.
func (e *Engine[D, R]) Stop() {
	if e.relaxed != nil {
		e.relaxed.Stop()
	}
	if e.strict != nil {
		e.strict.Stop()
	}
}

// Close releases resources owned by the engine: a pool it created itself
// (DefaultPool, NewPool) is shut down; a caller-supplied ExistingPool is
// left running.
func (e *Engine[D, R]) Close() {
	e.Stop()
	if e.ownsPool {
		if gp, ok := e.pool.(*goPool); ok {
			gp.close()
		}
	}
}

// serialSource is the Serial execution mode: a LIFO stack of pending
// reads. Popping the deepest (most recently pushed) unread spec and
// pushing its children back in reverse keeps the stack order equal to
// pre-order traversal, mirroring jwalk's ReadDirIter::Walk.
type serialSource[D, R any] struct {
	opts  *Options[D, R]
	stack []ReadDirSpec[R]
}

func (s *serialSource[D, R]) next() (ReadDirOutcome[D, R], bool) {
	if len(s.stack) == 0 {
		var zero ReadDirOutcome[D, R]
		return zero, false
	}
	n := len(s.stack) - 1
	spec := s.stack[n]
	s.stack = s.stack[:n]

	outcome, childSpecs := readDirectory(spec, s.opts)
	for i := len(childSpecs) - 1; i >= 0; i-- {
		s.stack = append(s.stack, childSpecs[i])
	}
	return outcome, true
}

// resolveRoot builds the seed DirEntry for the walk root, per spec.md
// 4.4 "resolve the root path (following or not following the initial
// symlink per option)" and design note "Root-as-symlink": follow_links
// applies to the root exactly as it would to any other entry, matching
// jwalk's DirEntry::from_path. mayReadRoot is false when MaxDepth=0,
// resolving spec.md 9's open question (a) the way the reference does:
// the root directory itself is never opened and its callback never
// invoked.
//
// The root seeds the ancestor chain with its own identity (canonical
// target if it is itself a followed symlink, its literal path
// otherwise) so that a later symlink anywhere beneath it pointing back
// at the root is caught, matching spec.md 8's worked symlink-cycle
// example.
func resolveRoot[D any](rootPath string, followLinks, mayReadRoot bool) (*DirEntry[D], error) {
	info, err := os.Lstat(rootPath)
	if err != nil {
		return nil, NewIOError(rootPath, 0, err)
	}

	entry := &DirEntry[D]{
		Depth:      0,
		FileName:   filepath.Base(rootPath),
		FileType:   fileTypeOf(info.Mode()),
		ParentPath: filepath.Dir(rootPath),
	}
	resolvedType := entry.FileType
	ancestor := rootPath

	if followLinks && entry.FileType == FileTypeSymlink {
		targetInfo, statErr := os.Stat(rootPath)
		if statErr != nil {
			return nil, NewIOError(rootPath, 0, statErr)
		}
		resolvedType = fileTypeOf(targetInfo.Mode())
		if resolvedType == FileTypeDir {
			canonical, evalErr := filepath.EvalSymlinks(rootPath)
			if evalErr != nil {
				return nil, NewIOError(rootPath, 0, evalErr)
			}
			entry.FollowLink = true
			ancestor = canonical
		}
	}

	if resolvedType == FileTypeDir && mayReadRoot {
		p := rootPath
		entry.ReadChildrenPath = &p
		entry.FollowLinkAncestors = AncestorChain{ancestor}
	}

	return entry, nil
}
