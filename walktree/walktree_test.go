package walktree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// buildTestTree lays out root/{a.txt,b.txt,c.txt,g1/{d.txt},g2/{e.txt}}.
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

func collectPaths(t *testing.T, root string, it *Iterator[struct{}]) []string {
	t.Helper()
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

func TestWalkDirSortedPreOrder(t *testing.T) {
	root := buildTestTree(t)
	it, err := WalkDir[struct{}, struct{}](root).Sort(true).Parallelism(SerialWalk()).TryIter()
	if err != nil {
		t.Fatalf("TryIter: %v", err)
	}
	defer it.Close()
	got := collectPaths(t, root, it)
	assertEqual(t, got, []string{".", "a.txt", "b.txt", "c.txt", "g1", "g1/d.txt", "g2", "g2/e.txt"})
}

// TestWalkDirProcessReadDirTruncatesAndReordersBatch drives
// ProcessReadDir-based truncation and reordering entirely through the
// public API, exercising the pointer-to-slice batch-mutation contract
// that the underlying engine relies on to make a callback's changes
// visible in the yielded stream.
func TestWalkDirProcessReadDirTruncatesAndReordersBatch(t *testing.T) {
	root := buildTestTree(t)
	it, err := WalkDir[struct{}, struct{}](root).
		Sort(true).
		Parallelism(SerialWalk()).
		ProcessReadDir(func(depth int, dirPath string, readState *struct{}, children *[]*DirEntry[struct{}]) {
			if depth != 0 {
				return
			}
			// Drop every plain file from the root's batch, and reverse
			// the surviving (directory) entries.
			var dirsOnly []*DirEntry[struct{}]
			for _, c := range *children {
				if c.IsDir() {
					dirsOnly = append(dirsOnly, c)
				}
			}
			reversed := make([]*DirEntry[struct{}], len(dirsOnly))
			for i, c := range dirsOnly {
				reversed[len(dirsOnly)-1-i] = c
			}
			*children = reversed
		}).
		TryIter()
	if err != nil {
		t.Fatalf("TryIter: %v", err)
	}
	defer it.Close()
	got := collectPaths(t, root, it)
	// a.txt, b.txt, c.txt never appear: truncated out of the root's
	// batch. g2 precedes g1: the surviving batch was reversed.
	assertEqual(t, got, []string{".", "g2", "g2/e.txt", "g1", "g1/d.txt"})
}

// TestWalkDirProcessReadDirPrune confirms Prune removes a subtree from
// within a callback that leaves the batch slice itself untouched, since
// pruning mutates the pointed-to DirEntry rather than the slice.
func TestWalkDirProcessReadDirPrune(t *testing.T) {
	root := buildTestTree(t)
	it, err := WalkDir[struct{}, struct{}](root).
		Sort(true).
		Parallelism(SerialWalk()).
		ProcessReadDir(func(depth int, dirPath string, readState *struct{}, children *[]*DirEntry[struct{}]) {
			for _, c := range *children {
				if c.FileName() == "g1" {
					c.Prune()
				}
			}
		}).
		TryIter()
	if err != nil {
		t.Fatalf("TryIter: %v", err)
	}
	defer it.Close()
	got := collectPaths(t, root, it)
	assertEqual(t, got, []string{".", "a.txt", "b.txt", "c.txt", "g1", "g2", "g2/e.txt"})
}

// pinnedPool simulates a caller-supplied Pool whose single worker is
// already pinned running other work: submissions are accepted but never
// actually run until release is closed.
type pinnedPool struct {
	release chan struct{}
}

func (p *pinnedPool) Go(fn func()) {
	go func() {
		<-p.release
		fn()
	}()
}

func TestWalkDirTryIterPoolBusy(t *testing.T) {
	root := buildTestTree(t)
	pool := &pinnedPool{release: make(chan struct{})}
	defer close(pool.release)

	_, err := WalkDir[struct{}, struct{}](root).
		Parallelism(ExistingPool(pool, 1, 20*time.Millisecond)).
		TryIter()
	if err == nil {
		t.Fatalf("TryIter against a pinned ExistingPool: want a busy error, got nil")
	}
	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != KindPoolBusy {
		t.Fatalf("TryIter error = %v, want *Error with Kind == KindPoolBusy", err)
	}
}

// TestWalkDirIterPoolBusyYieldsOneErrorThenEnds covers Iter's fallback
// contract: a startup failure becomes the sole first stream position
// instead of being returned directly, and the stream ends cleanly after
// that one error.
func TestWalkDirIterPoolBusyYieldsOneErrorThenEnds(t *testing.T) {
	root := buildTestTree(t)
	pool := &pinnedPool{release: make(chan struct{})}
	defer close(pool.release)

	it := WalkDir[struct{}, struct{}](root).
		Parallelism(ExistingPool(pool, 1, 20*time.Millisecond)).
		Iter()
	defer it.Close()

	entry, err, ok := it.Next()
	if !ok {
		t.Fatalf("first Next(): ok = false, want true with a busy error")
	}
	if entry != nil {
		t.Fatalf("first Next(): entry = %v, want nil", entry)
	}
	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != KindPoolBusy {
		t.Fatalf("first Next() error = %v, want *Error with Kind == KindPoolBusy", err)
	}

	entry, err, ok = it.Next()
	if ok || entry != nil || err != nil {
		t.Fatalf("second Next() = (%v, %v, %v), want (nil, nil, false)", entry, err, ok)
	}
}
