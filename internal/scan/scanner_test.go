package scan

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/arborfs/walktree/internal/db"

	_ "modernc.org/sqlite"
)

func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write a.txt: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world!"), 0o644); err != nil {
		t.Fatalf("write b.txt: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub", "nested"), 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}
	return root
}

func TestScannerRunPopulatesDatabase(t *testing.T) {
	root := buildTree(t)

	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	opts := DefaultOptions().WithWorkers(2)
	scanner := NewScanner(opts)
	if err := scanner.Run(context.Background(), root, database); err != nil {
		t.Fatalf("run scan: %v", err)
	}

	var dirCount, fileCount int
	if err := database.QueryRow(`SELECT COUNT(*) FROM dirs`).Scan(&dirCount); err != nil {
		t.Fatalf("count dirs: %v", err)
	}
	if dirCount != 3 {
		t.Fatalf("expected 3 dirs (root, sub, nested), got %d", dirCount)
	}

	if err := database.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&fileCount); err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if fileCount != 2 {
		t.Fatalf("expected 2 file entries, got %d", fileCount)
	}

	rootRollup, err := db.GetRollup(database, root)
	if err != nil {
		t.Fatalf("get root rollup: %v", err)
	}
	if rootRollup == nil {
		t.Fatalf("expected root rollup, got nil")
	}
	if rootRollup.TotalFiles != 2 {
		t.Fatalf("expected 2 total files in root rollup, got %d", rootRollup.TotalFiles)
	}
	if rootRollup.TotalDirs != 2 {
		t.Fatalf("expected 2 total dirs in root rollup, got %d", rootRollup.TotalDirs)
	}

	meta, err := db.GetScanMeta(database)
	if err != nil {
		t.Fatalf("get scan meta: %v", err)
	}
	if meta.FileCount != 2 || meta.DirCount != 3 {
		t.Fatalf("unexpected scan meta: %+v", meta)
	}
}

func TestScannerExcludePattern(t *testing.T) {
	root := buildTree(t)

	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	opts := DefaultOptions().WithWorkers(1)
	if err := opts.AddExcludePattern(`/sub$`); err != nil {
		t.Fatalf("add exclude pattern: %v", err)
	}

	scanner := NewScanner(opts)
	if err := scanner.Run(context.Background(), root, database); err != nil {
		t.Fatalf("run scan: %v", err)
	}

	var dirCount int
	if err := database.QueryRow(`SELECT COUNT(*) FROM dirs`).Scan(&dirCount); err != nil {
		t.Fatalf("count dirs: %v", err)
	}
	if dirCount != 1 {
		t.Fatalf("expected only root dir after excluding sub, got %d", dirCount)
	}
}
