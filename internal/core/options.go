package core

// ProcessReadDirFunc is the per-directory callback of spec.md 4.3 step 4
// and 4.7: given the depth and path of the directory just read, a
// mutable reference to its (inherited) per-directory state, and a
// mutable reference to the freshly-read batch of children, it may
// reorder, truncate (by assigning *children a shorter or reordered
// slice), prune a subtree (by nilling an entry's ReadChildrenPath), or
// annotate entries with ClientState. children is a pointer-to-slice,
// not a plain slice, specifically so truncation and reordering are
// visible to the caller: a plain slice parameter is passed by value, so
// reassigning it inside the callback would only rebind the callback's
// own local copy of the slice header.
type ProcessReadDirFunc[D, R any] func(depth int, dirPath string, readState *R, children *[]*DirEntry[D])

// CompareFunc orders two sibling entries for the per-directory sort step.
// A nil CompareFunc with Sort enabled falls back to FileName ordering.
type CompareFunc[D any] func(a, b *DirEntry[D]) int

// HiddenFunc reports whether a name should be filtered during read when
// SkipHidden is enabled. The default implementation treats a leading dot
// as hidden, matching spec.md 4.3 step 2.
type HiddenFunc func(name string) bool

// Options configures one walk's per-directory read and traversal
// behavior; it is spec.md 4.6's Builder state, minus Parallelism which
// the engine owns directly.
type Options[D, R any] struct {
	MinDepth    int
	MaxDepth    int // -1 means unbounded
	SkipHidden  bool
	HiddenFn    HiddenFunc
	FollowLinks bool
	Sort        bool
	SortFunc    CompareFunc[D]
	Callback    ProcessReadDirFunc[D, R]
}

func defaultHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

// hiddenFn returns the effective hidden-name predicate: the caller's
// override if set, else the leading-dot default.
func (o *Options[D, R]) hiddenFn() HiddenFunc {
	if o.HiddenFn != nil {
		return o.HiddenFn
	}
	return defaultHidden
}

// withinMaxDepth reports whether a node at childDepth should have its
// ReadChildrenPath populated, per spec.md 4.3 step 3.
func (o *Options[D, R]) withinMaxDepth(childDepth int) bool {
	return o.MaxDepth < 0 || childDepth < o.MaxDepth
}
