package rollup

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/arborfs/walktree/internal/db"
	"github.com/arborfs/walktree/internal/entry"

	_ "modernc.org/sqlite"
)

func TestBuilderRollup(t *testing.T) {
	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	insertDir := func(id int64, path string, parentID int64, depth int) {
		name := filepath.Base(path)
		_, err := database.Exec(
			`INSERT INTO dirs (id, path, name, parent_id, depth) VALUES (?, ?, ?, ?, ?)`,
			id, path, name, parentID, depth,
		)
		if err != nil {
			t.Fatalf("insert dir %s: %v", path, err)
		}
	}
	insertEntry := func(parentID int64, name string, kind entry.Kind, size, blocks int64) {
		_, err := database.Exec(
			`INSERT INTO entries (parent_id, name, kind, size, blocks, mtime, dev_id, inode)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			parentID, name, kind, size, blocks, 0, 0, 0,
		)
		if err != nil {
			t.Fatalf("insert entry %s: %v", name, err)
		}
	}

	insertDir(1, "/root", 0, 0)
	insertDir(2, "/root/a", 1, 1)
	insertDir(3, "/root/b", 1, 1)
	insertEntry(2, "file1", entry.KindFile, 10, 512)
	insertEntry(2, "file2", entry.KindFile, 5, 512)
	insertEntry(3, "file3", entry.KindFile, 20, 1024)

	builder := NewBuilder(database)
	if err := builder.Build(context.Background()); err != nil {
		t.Fatalf("build rollups: %v", err)
	}

	rootA, err := db.GetRollup(database, "/root/a")
	if err != nil || rootA == nil {
		t.Fatalf("rollup /root/a: %v", err)
	}
	if rootA.TotalSize != 15 || rootA.TotalBlocks != 1024 || rootA.TotalFiles != 2 || rootA.TotalDirs != 0 {
		t.Fatalf("unexpected /root/a rollup: %+v", rootA)
	}

	root, err := db.GetRollup(database, "/root")
	if err != nil || root == nil {
		t.Fatalf("rollup /root: %v", err)
	}
	if root.TotalSize != 35 || root.TotalBlocks != 2048 || root.TotalFiles != 3 || root.TotalDirs != 2 {
		t.Fatalf("unexpected /root rollup: %+v", root)
	}
}
