package walktree

import "github.com/arborfs/walktree/internal/core"

// ProcessReadDirFunc is invoked once per directory read, after the
// directory's children have been listed, type-resolved, and (if
// requested) sorted, but before they are yielded. It may mutate entries
// in place (set ClientState, prune a subtree by clearing its
// read-children path through the entry's exported setters), or reorder
// or truncate the batch entirely by assigning *children a new slice.
// children is a pointer so that reassignment is visible to the caller;
// a plain slice parameter would only let the callback rebind its own
// local copy. readState is the per-directory state inherited from the
// parent's own invocation; mutations to *readState propagate to every
// subdirectory read spawned from this one.
type ProcessReadDirFunc[D, R any] func(depth int, dirPath string, readState *R, children *[]*DirEntry[D])

// CompareFunc orders two sibling entries for SortFunc. Return value
// follows the cmp.Compare convention: negative if a sorts before b.
type CompareFunc[D any] func(a, b *DirEntry[D]) int

// HiddenFunc reports whether a name should be treated as hidden when
// SkipHidden is enabled. The default predicate treats a leading dot as
// hidden.
type HiddenFunc = core.HiddenFunc

// WalkDirBuilder configures a walk before it starts. D is the
// per-entry client state type; R is the per-directory client state
// type threaded through ProcessReadDirFunc. Both must be given
// explicitly; callers that need neither pass struct{}.
type WalkDirBuilder[D, R any] struct {
	root      string
	opts      core.Options[D, R]
	par       core.Parallelism
	rootState R
}

// WalkDir begins configuring a walk rooted at root. The walk does not
// start until Iter or TryIter is called.
func WalkDir[D, R any](root string) *WalkDirBuilder[D, R] {
	return &WalkDirBuilder[D, R]{
		root: root,
		opts: core.Options[D, R]{MaxDepth: -1},
		par:  core.Parallelism{Kind: core.ParallelDefaultPool},
	}
}

// MinDepth sets the minimum depth (root is depth 0) at which entries
// begin being yielded. Directories below this depth are still read, so
// their children at or above MinDepth are still reached.
func (b *WalkDirBuilder[D, R]) MinDepth(depth int) *WalkDirBuilder[D, R] {
	b.opts.MinDepth = depth
	return b
}

// MaxDepth sets the maximum depth read. A negative value (the default)
// means unbounded.
func (b *WalkDirBuilder[D, R]) MaxDepth(depth int) *WalkDirBuilder[D, R] {
	b.opts.MaxDepth = depth
	return b
}

// SkipHidden enables or disables filtering of hidden entries during
// read, using HiddenFn if set, or the leading-dot default otherwise.
func (b *WalkDirBuilder[D, R]) SkipHidden(skip bool) *WalkDirBuilder[D, R] {
	b.opts.SkipHidden = skip
	return b
}

// HiddenFunc overrides the leading-dot default used when SkipHidden is
// enabled.
func (b *WalkDirBuilder[D, R]) HiddenFunc(fn HiddenFunc) *WalkDirBuilder[D, R] {
	b.opts.HiddenFn = fn
	return b
}

// FollowLinks enables following symlinks that resolve to directories,
// with cycle detection against the chain of directories (plain
// directories by path, followed symlinks by canonicalized target)
// already traversed to reach the current position.
func (b *WalkDirBuilder[D, R]) FollowLinks(follow bool) *WalkDirBuilder[D, R] {
	b.opts.FollowLinks = follow
	return b
}

// Sort enables sorting each directory's children by file name before
// they are yielded. Use SortFunc to override the comparator.
func (b *WalkDirBuilder[D, R]) Sort(sort bool) *WalkDirBuilder[D, R] {
	b.opts.Sort = sort
	return b
}

// SortFunc enables sorting with a custom comparator in place of the
// default file-name ordering.
func (b *WalkDirBuilder[D, R]) SortFunc(cmp CompareFunc[D]) *WalkDirBuilder[D, R] {
	b.opts.Sort = true
	b.opts.SortFunc = func(a, b *core.DirEntry[D]) int {
		return cmp(wrap(a), wrap(b))
	}
	return b
}

// Parallelism selects the walk's execution mode. The default, if never
// called, is DefaultPool(0).
func (b *WalkDirBuilder[D, R]) Parallelism(p Parallelism) *WalkDirBuilder[D, R] {
	b.par = p.c
	return b
}

// ProcessReadDir installs the per-directory callback.
func (b *WalkDirBuilder[D, R]) ProcessReadDir(fn ProcessReadDirFunc[D, R]) *WalkDirBuilder[D, R] {
	b.opts.Callback = func(depth int, dirPath string, readState *R, children *[]*core.DirEntry[D]) {
		wrapped := make([]*DirEntry[D], len(*children))
		for i, c := range *children {
			wrapped[i] = wrap(c)
		}
		fn(depth, dirPath, readState, &wrapped)
		out := make([]*core.DirEntry[D], len(wrapped))
		for i, w := range wrapped {
			out[i] = w.inner
		}
		*children = out
	}
	return b
}

// RootReadDirState sets the initial per-directory state inherited by
// the root's own read, and from there by every subdirectory.
func (b *WalkDirBuilder[D, R]) RootReadDirState(state R) *WalkDirBuilder[D, R] {
	b.rootState = state
	return b
}

// TryIter starts the walk and returns an Iterator, or an error if the
// root could not be resolved or (for DefaultPool/ExistingPool) the
// worker pool did not accept the startup probe within its busy_timeout.
// Unlike Iter, the error is surfaced immediately rather than as the
// first stream position.
func (b *WalkDirBuilder[D, R]) TryIter() (*Iterator[D], error) {
	eng, err := core.NewEngine[D, R](b.root, &b.opts, b.par, b.rootState)
	if err != nil {
		return nil, err
	}
	entryIter := core.NewEntryIter[D, R](eng, b.opts.MinDepth)
	return &Iterator[D]{
		next:  entryIter.Next,
		close: eng.Close,
	}, nil
}

// Iter starts the walk and returns an Iterator. A startup failure (bad
// root, pool busy) is not returned directly; instead it is delivered as
// the sole, first position of the returned iterator's stream, matching
// the lazy style of a range-over-func sequence that cannot itself
// return an error.
func (b *WalkDirBuilder[D, R]) Iter() *Iterator[D] {
	it, err := b.TryIter()
	if err == nil {
		return it
	}
	delivered := false
	return &Iterator[D]{
		next: func() (*core.DirEntry[D], error, bool) {
			if delivered {
				return nil, nil, false
			}
			delivered = true
			return nil, err, true
		},
	}
}
