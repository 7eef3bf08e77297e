package core

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FileType mirrors the kinds of node the walk distinguishes without
// following symlinks (file, directory, symlink, and anything else), per
// spec.md 3 "DirEntry".
type FileType uint8

const (
	FileTypeFile FileType = iota
	FileTypeDir
	FileTypeSymlink
	FileTypeOther
)

func fileTypeOf(mode fs.FileMode) FileType {
	switch {
	case mode&os.ModeSymlink != 0:
		return FileTypeSymlink
	case mode.IsDir():
		return FileTypeDir
	case mode.IsRegular():
		return FileTypeFile
	default:
		return FileTypeOther
	}
}

// AncestorChain is the shared-immutable list of directory identities
// (a followed symlink's canonical target, or a plain directory's own
// path) entered to reach the current position, used for cycle detection
// when FollowLinks is enabled: a symlink whose canonical target matches
// any entry here would re-enter a directory already on the current
// descent path. Extending it never mutates the parent's slice: Extend
// copies the prefix into a fresh backing array, so each descendant holds
// its own copy of the prefix, per spec.md 3 "Ownership".
type AncestorChain []string

// Extend returns a new chain with target appended, sharing no backing
// array with the receiver beyond the copied prefix.
func (c AncestorChain) Extend(target string) AncestorChain {
	next := make(AncestorChain, len(c)+1)
	copy(next, c)
	next[len(c)] = target
	return next
}

// Contains reports whether target already appears in the chain, which is
// exactly the cycle condition of spec.md 4.3 step 2.
func (c AncestorChain) Contains(target string) (string, bool) {
	for _, a := range c {
		if a == target {
			return a, true
		}
	}
	return "", false
}

// DirEntry is one filesystem entry as produced by a directory read. D is
// the client-supplied per-entry state type (spec.md 4.7).
type DirEntry[D any] struct {
	Depth      int
	FileName   string
	FileType   FileType
	ParentPath string // shared, immutable across siblings

	// ReadChildrenPath is set to the path to descend into when this entry
	// is a directory within max_depth, and nil otherwise (including for
	// pruned subtrees).
	ReadChildrenPath *string
	ReadChildrenErr  error

	ClientState D

	FollowLink          bool
	FollowLinkAncestors AncestorChain

	// Err is never set by the walk itself: a failure resolving a single
	// entry's type, or a followed symlink forming a cycle, is reported as
	// a standalone error in place of the entry.
	Err error
}

// Path returns the entry's full path, joining ParentPath and FileName.
func (e *DirEntry[D]) Path() string {
	if e.ParentPath == "" {
		return e.FileName
	}
	return filepath.Join(e.ParentPath, e.FileName)
}
