package core

import (
	"os"
	"path/filepath"
	"sort"
)

// ReadDirOutcome is the payload carried through the ordered queues: either
// a successful ReadDirResult, or an open-directory failure that the
// caller (the engine, then the entry iterator) attaches to the owning
// DirEntry's ReadChildrenErr instead of surfacing as a standalone error,
// per spec.md 4.3 step 1 and 7 taxonomy item 1.
type ReadDirOutcome[D, R any] struct {
	Result  *ReadDirResult[D, R]
	OpenErr error
}

// readDirectory performs the core read operation of spec.md 4.3 on one
// directory spec. It returns the outcome plus the ReadDirSpecs for every
// child that itself needs reading (a directory within MaxDepth, not
// pruned by the callback), each carrying an IndexPath assigned by
// enumerating only over those scheduled reads — the same numbering
// jwalk's read_children_specs uses, since the ordered queue's expectation
// machine only ever needs to track positions that will actually produce
// a future envelope.
func readDirectory[D, R any](spec ReadDirSpec[R], opts *Options[D, R]) (ReadDirOutcome[D, R], []ReadDirSpec[R]) {
	f, err := os.Open(spec.Path)
	if err != nil {
		return ReadDirOutcome[D, R]{OpenErr: NewIOError(spec.Path, spec.Depth, err)}, nil
	}
	// os.ReadDir sorts by name; read the raw stream instead so that
	// "natural filesystem order" (spec.md 4.3 step 2) is preserved when
	// the caller has not asked for Sort.
	entries, err := f.ReadDir(-1)
	f.Close()
	if err != nil {
		return ReadDirOutcome[D, R]{OpenErr: NewIOError(spec.Path, spec.Depth, err)}, nil
	}

	hidden := opts.hiddenFn()
	results := make([]ChildResult[D, R], 0, len(entries))

	for _, de := range entries {
		if opts.SkipHidden && hidden(de.Name()) {
			continue
		}
		results = append(results, buildChildResult(spec, de, opts))
	}

	children := make([]*DirEntry[D], 0, len(results))
	for i := range results {
		if results[i].Entry != nil {
			children = append(children, results[i].Entry)
		}
	}

	if opts.Sort {
		sortChildren(children, opts.SortFunc)
		// Re-flatten: successes (now sorted) first, errors after, in
		// original relative order, per spec.md 4.3 step 4 "successes
		// before errors; ties broken by iteration order".
		results = remergeSorted(results, children)
	}

	state := spec.ClientReadState
	if opts.Callback != nil {
		opts.Callback(spec.Depth, spec.Path, &state, &children)
		// The callback may have rearranged or truncated children through
		// the pointer above (spec.md 4.3 step 4). remerge again so that
		// takes effect in results, which is what EntryIter actually yields
		// from; without this, a truncated or reordered children slice
		// would never be reflected outside this function.
		results = remergeSorted(results, children)
	}

	var childSpecs []ReadDirSpec[R]
	for _, c := range children {
		if c.ReadChildrenPath == nil {
			continue
		}
		childSpecs = append(childSpecs, ReadDirSpec[R]{
			Depth:               c.Depth,
			Path:                *c.ReadChildrenPath,
			IndexPath:           spec.IndexPath.Child(len(childSpecs)),
			ClientReadState:     state,
			FollowLinkAncestors: c.FollowLinkAncestors,
		})
	}

	return ReadDirOutcome[D, R]{Result: &ReadDirResult[D, R]{State: state, Results: results}}, childSpecs
}

func buildChildResult[D, R any](spec ReadDirSpec[R], de os.DirEntry, opts *Options[D, R]) ChildResult[D, R] {
	childPath := filepath.Join(spec.Path, de.Name())
	childDepth := spec.Depth + 1

	info, err := de.Info()
	if err != nil {
		// Lstat-equivalent failure: per-entry type-resolve failure,
		// yielded as an error in lieu of this one child (spec.md 7 #2).
		return ChildResult[D, R]{Err: NewIOError(childPath, childDepth, err)}
	}

	entry := &DirEntry[D]{
		Depth:      childDepth,
		FileName:   de.Name(),
		FileType:   fileTypeOf(info.Mode()),
		ParentPath: spec.Path,
	}

	resolvedType := entry.FileType
	ancestor := childPath

	if opts.FollowLinks && entry.FileType == FileTypeSymlink {
		targetInfo, statErr := os.Stat(childPath)
		switch {
		case statErr != nil:
			return ChildResult[D, R]{Err: NewIOError(childPath, childDepth, statErr)}
		case targetInfo.IsDir():
			canonical, evalErr := filepath.EvalSymlinks(childPath)
			if evalErr != nil {
				return ChildResult[D, R]{Err: NewIOError(childPath, childDepth, evalErr)}
			}
			if ancestorPath, matched := spec.FollowLinkAncestors.Contains(canonical); matched {
				return ChildResult[D, R]{Err: NewCycleError(childPath, ancestorPath, childDepth)}
			}
			entry.FollowLink = true
			ancestor = canonical
			resolvedType = FileTypeDir
		default:
			resolvedType = fileTypeOf(targetInfo.Mode())
		}
	}

	if resolvedType == FileTypeDir && opts.withinMaxDepth(childDepth) {
		p := childPath
		entry.ReadChildrenPath = &p
		// Seed this directory's own ancestor chain with its identity, so
		// a symlink anywhere beneath it pointing back here is caught,
		// not just one pointing at a previously *followed* symlink.
		entry.FollowLinkAncestors = spec.FollowLinkAncestors.Extend(ancestor)
	}

	return ChildResult[D, R]{Entry: entry}
}

func sortChildren[D any](children []*DirEntry[D], cmp CompareFunc[D]) {
	if cmp == nil {
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].FileName < children[j].FileName
		})
		return
	}
	sort.SliceStable(children, func(i, j int) bool {
		return cmp(children[i], children[j]) < 0
	})
}

// remergeSorted rebuilds the results slice so that the (now sorted)
// successes appear first in their new order, followed by the errors in
// their original relative order.
func remergeSorted[D, R any](original []ChildResult[D, R], sortedSuccesses []*DirEntry[D]) []ChildResult[D, R] {
	out := make([]ChildResult[D, R], 0, len(original))
	for _, e := range sortedSuccesses {
		out = append(out, ChildResult[D, R]{Entry: e})
	}
	for _, r := range original {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
