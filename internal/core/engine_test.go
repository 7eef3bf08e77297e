package core

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// buildTestTree lays out the fixture from spec.md's worked example:
// root/{a.txt,b.txt,c.txt,g1/{d.txt},g2/{e.txt}}.
func buildTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write := func(rel string) {
		if err := os.WriteFile(filepath.Join(root, rel), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	mkdir := func(rel string) {
		if err := os.MkdirAll(filepath.Join(root, rel), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
	}
	write("a.txt")
	write("b.txt")
	write("c.txt")
	mkdir("g1")
	write("g1/d.txt")
	mkdir("g2")
	write("g2/e.txt")
	return root
}

func collectPaths(t *testing.T, root string, eng *Engine[struct{}, struct{}], minDepth int) []string {
	t.Helper()
	it := NewEntryIter[struct{}, struct{}](eng, minDepth)
	var got []string
	for {
		entry, err, ok := it.Next()
		if !ok {
			break
		}
		if err != nil {
			t.Fatalf("unexpected per-entry error: %v", err)
		}
		rel, relErr := filepath.Rel(root, entry.Path())
		if relErr != nil {
			t.Fatalf("rel: %v", relErr)
		}
		got = append(got, filepath.ToSlash(rel))
	}
	return got
}

func assertEqual(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v (%d), want %v (%d)", got, len(got), want, len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q (full got=%v)", i, got[i], want[i], got)
		}
	}
}

func TestEngineSortedPreOrder_Serial(t *testing.T) {
	root := buildTestTree(t)
	opts := &Options[struct{}, struct{}]{MaxDepth: -1, Sort: true}
	eng, err := NewEngine[struct{}, struct{}](root, opts, Parallelism{Kind: ParallelSerial}, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got := collectPaths(t, root, eng, opts.MinDepth)
	assertEqual(t, got, []string{".", "a.txt", "b.txt", "c.txt", "g1", "g1/d.txt", "g2", "g2/e.txt"})
}

func TestEngineSortedPreOrder_Parallel(t *testing.T) {
	root := buildTestTree(t)
	opts := &Options[struct{}, struct{}]{MaxDepth: -1, Sort: true}
	eng, err := NewEngine[struct{}, struct{}](root, opts, Parallelism{Kind: ParallelNewPool, Workers: 4}, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()
	got := collectPaths(t, root, eng, opts.MinDepth)
	assertEqual(t, got, []string{".", "a.txt", "b.txt", "c.txt", "g1", "g1/d.txt", "g2", "g2/e.txt"})
}

func TestEngineMaxDepthOne(t *testing.T) {
	root := buildTestTree(t)
	opts := &Options[struct{}, struct{}]{MaxDepth: 1, Sort: true}
	eng, err := NewEngine[struct{}, struct{}](root, opts, Parallelism{Kind: ParallelSerial}, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got := collectPaths(t, root, eng, opts.MinDepth)
	assertEqual(t, got, []string{".", "a.txt", "b.txt", "c.txt", "g1", "g2"})
}

func TestEngineMaxDepthZeroNeverReadsRoot(t *testing.T) {
	root := buildTestTree(t)
	opts := &Options[struct{}, struct{}]{MaxDepth: 0}
	called := false
	opts.Callback = func(depth int, dirPath string, state *struct{}, children *[]*DirEntry[struct{}]) {
		called = true
	}
	eng, err := NewEngine[struct{}, struct{}](root, opts, Parallelism{Kind: ParallelSerial}, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got := collectPaths(t, root, eng, opts.MinDepth)
	assertEqual(t, got, []string{"."})
	if called {
		t.Fatalf("ProcessReadDir callback invoked with MaxDepth=0, want never invoked")
	}
}

func TestEngineSkipHidden(t *testing.T) {
	root := buildTestTree(t)
	if err := os.WriteFile(filepath.Join(root, ".secret"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write .secret: %v", err)
	}
	opts := &Options[struct{}, struct{}]{MaxDepth: -1, Sort: true, SkipHidden: true}
	eng, err := NewEngine[struct{}, struct{}](root, opts, Parallelism{Kind: ParallelSerial}, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got := collectPaths(t, root, eng, opts.MinDepth)
	for _, p := range got {
		if p == ".secret" {
			t.Fatalf("SkipHidden did not filter .secret, got %v", got)
		}
	}
}

func TestEngineSymlinkCycle(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a", "a/b", "a/b/c"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	loop := filepath.Join(root, "a", "b", "c", "loop")
	if err := os.Symlink(filepath.Join(root, "a"), loop); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	opts := &Options[struct{}, struct{}]{MaxDepth: -1, Sort: true, FollowLinks: true}
	eng, err := NewEngine[struct{}, struct{}](root, opts, Parallelism{Kind: ParallelSerial}, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	it := NewEntryIter[struct{}, struct{}](eng, 0)
	var cycleErr *Error
	for {
		_, err, ok := it.Next()
		if !ok {
			break
		}
		if err != nil {
			var coreErr *Error
			if errors.As(err, &coreErr) && coreErr.Kind == KindCycle {
				cycleErr = coreErr
			}
		}
	}
	if cycleErr == nil {
		t.Fatalf("expected a KindCycle error, got none")
	}
	wantAncestor := filepath.Join(root, "a")
	if cycleErr.AncestorPath != wantAncestor {
		t.Fatalf("cycle AncestorPath = %q, want %q", cycleErr.AncestorPath, wantAncestor)
	}
}

func TestEngineDirectoryRemovedMidWalk(t *testing.T) {
	root := t.TempDir()
	victim := filepath.Join(root, "gone")
	if err := os.MkdirAll(victim, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(victim, "child.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	opts := &Options[struct{}, struct{}]{MaxDepth: -1}
	eng, err := NewEngine[struct{}, struct{}](root, opts, Parallelism{Kind: ParallelSerial}, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	it := NewEntryIter[struct{}, struct{}](eng, 0)
	removed := false
	var foundGone *DirEntry[struct{}]
	for {
		entry, _, ok := it.Next()
		if !ok {
			break
		}
		if !removed {
			// The root's batch (which lists "gone") has been read by now;
			// "gone" itself has not.
			if err := os.RemoveAll(victim); err != nil {
				t.Fatalf("remove: %v", err)
			}
			removed = true
		}
		if entry != nil && entry.FileName == "gone" {
			foundGone = entry
		}
	}
	if foundGone == nil {
		t.Fatalf("expected the removed directory's own entry to still be yielded")
	}
	if foundGone.ReadChildrenErr == nil {
		t.Fatalf("expected ReadChildrenErr to be populated after the directory vanished")
	}
}

func TestEngineProcessReadDirTruncatesBatch(t *testing.T) {
	root := buildTestTree(t)
	opts := &Options[struct{}, struct{}]{MaxDepth: -1, Sort: true}
	opts.Callback = func(depth int, dirPath string, state *struct{}, children *[]*DirEntry[struct{}]) {
		filtered := (*children)[:0]
		for _, c := range *children {
			if c.FileType == FileTypeDir {
				continue
			}
			filtered = append(filtered, c)
		}
		*children = filtered
	}
	eng, err := NewEngine[struct{}, struct{}](root, opts, Parallelism{Kind: ParallelSerial}, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got := collectPaths(t, root, eng, opts.MinDepth)
	assertEqual(t, got, []string{".", "a.txt", "b.txt", "c.txt"})
}

func TestEngineProcessReadDirReordersBatch(t *testing.T) {
	root := buildTestTree(t)
	opts := &Options[struct{}, struct{}]{MaxDepth: 1, Sort: true}
	opts.Callback = func(depth int, dirPath string, state *struct{}, children *[]*DirEntry[struct{}]) {
		if depth != 0 {
			return
		}
		reversed := make([]*DirEntry[struct{}], len(*children))
		for i, c := range *children {
			reversed[len(*children)-1-i] = c
		}
		*children = reversed
	}
	eng, err := NewEngine[struct{}, struct{}](root, opts, Parallelism{Kind: ParallelSerial}, struct{}{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got := collectPaths(t, root, eng, opts.MinDepth)
	assertEqual(t, got, []string{".", "g2", "g1", "c.txt", "b.txt", "a.txt"})
}

func TestOptionsDefaultHiddenAndMaxDepth(t *testing.T) {
	names := []string{"a.txt", ".dot", "b.txt"}
	sort.Strings(names)
	if !defaultHidden(".dot") || defaultHidden("a.txt") {
		t.Fatalf("defaultHidden misclassified one of %v", names)
	}
	var o Options[struct{}, struct{}]
	o.MaxDepth = -1
	if !o.withinMaxDepth(1000) {
		t.Fatalf("negative MaxDepth should mean unbounded")
	}
	o.MaxDepth = 2
	if o.withinMaxDepth(2) || !o.withinMaxDepth(1) {
		t.Fatalf("withinMaxDepth boundary wrong for MaxDepth=2")
	}
}
