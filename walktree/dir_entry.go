package walktree

import "github.com/arborfs/walktree/internal/core"

// DirEntry is one filesystem entry yielded by a walk. D is the
// client-supplied per-entry state type set by a ProcessReadDirFunc.
type DirEntry[D any] struct {
	inner *core.DirEntry[D]
}

func wrap[D any](e *core.DirEntry[D]) *DirEntry[D] {
	if e == nil {
		return nil
	}
	return &DirEntry[D]{inner: e}
}

// Path returns the entry's full path.
func (e *DirEntry[D]) Path() string { return e.inner.Path() }

// Depth is the entry's distance from the walk root; the root itself is
// depth 0.
func (e *DirEntry[D]) Depth() int { return e.inner.Depth }

// FileName returns the entry's base name.
func (e *DirEntry[D]) FileName() string { return e.inner.FileName }

// IsDir reports whether the entry names a directory (after following a
// symlink, if FollowLinks resolved it to one).
func (e *DirEntry[D]) IsDir() bool {
	return e.inner.FileType == core.FileTypeDir || e.inner.FollowLink
}

// IsSymlink reports whether the entry is a symlink, regardless of
// whether it was followed.
func (e *DirEntry[D]) IsSymlink() bool { return e.inner.FileType == core.FileTypeSymlink }

// FollowedLink reports whether this entry is a symlink that was resolved
// to a directory and will be (or was) read as one.
func (e *DirEntry[D]) FollowedLink() bool { return e.inner.FollowLink }

// ClientState returns the per-entry state set by a ProcessReadDirFunc
// for this entry's parent read, or D's zero value if none was set.
func (e *DirEntry[D]) ClientState() D { return e.inner.ClientState }

// SetClientState overwrites this entry's per-entry state. Typically
// called from inside a ProcessReadDirFunc.
func (e *DirEntry[D]) SetClientState(state D) { e.inner.ClientState = state }

// ReadChildrenError reports the error, if any, that occurred opening
// this directory for reading. Non-nil only for entries where IsDir is
// true and the read subsequently failed.
func (e *DirEntry[D]) ReadChildrenError() error { return e.inner.ReadChildrenErr }

// Err is always nil for entries a walk yields: a failure resolving an
// entry's own type (its Lstat), or a symlink-cycle error, is returned as
// a standalone error by Iterator.Next in place of the entry.
func (e *DirEntry[D]) Err() error { return e.inner.Err }

// Prune removes this directory from the walk: its children are never
// read and ProcessReadDir is never invoked for it. Calling Prune on an
// entry that is not a directory, or outside a ProcessReadDirFunc, has no
// effect. Intended for cross-device or exclude-pattern filtering from
// within the callback.
func (e *DirEntry[D]) Prune() { e.inner.ReadChildrenPath = nil }
