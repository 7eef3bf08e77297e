package rollup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arborfs/walktree/internal/entry"
)

// Builder computes directory rollups bottom-up.
type Builder struct {
	db       *sql.DB
	cache    map[string]*entry.Rollup
	progress ProgressFunc
}

// ProgressFunc reports rollup progress.
type ProgressFunc func(done, total int64, depth, maxDepth int)

// NewBuilder creates a new rollup builder.
func NewBuilder(db *sql.DB) *Builder {
	return &Builder{
		db:    db,
		cache: make(map[string]*entry.Rollup),
	}
}

// SetProgressFunc sets a callback for rollup progress updates.
func (b *Builder) SetProgressFunc(f ProgressFunc) {
	b.progress = f
}

// Build computes rollups for every directory in the dirs table,
// processing from deepest to shallowest so that a directory's children
// are always already cached when it is reached. Used to rebuild the
// rollups table from a completed dirs/entries scan, independent of the
// streaming Aggregator used during a live scan.
func (b *Builder) Build(ctx context.Context) error {
	var maxDepth int
	row := b.db.QueryRow(`SELECT COALESCE(MAX(depth), 0) FROM dirs`)
	if err := row.Scan(&maxDepth); err != nil {
		return fmt.Errorf("failed to get max depth: %w", err)
	}

	var totalDirs int64
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM dirs`).Scan(&totalDirs); err != nil {
		return fmt.Errorf("failed to count directories: %w", err)
	}

	// Start transaction for all rollup writes
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Prepare statements
	childFilesStmt, err := tx.Prepare(`
		SELECT COALESCE(SUM(e.size), 0), COALESCE(SUM(e.blocks), 0), COUNT(*)
		FROM entries e
		WHERE e.parent_id = ? AND e.kind = 0
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare child files query: %w", err)
	}
	defer childFilesStmt.Close()

	childDirsStmt, err := tx.Prepare(`
		SELECT path FROM dirs WHERE parent_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare child dirs query: %w", err)
	}
	defer childDirsStmt.Close()

	insertStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO rollups (path, total_size, total_blocks, total_files, total_dirs)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insertStmt.Close()

	// Process directories from deepest to shallowest
	var processedDirs int64
	lastUpdate := time.Now()
	for depth := maxDepth; depth >= 0; depth-- {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Get all directories at this depth
		rows, err := tx.Query(`SELECT id, path FROM dirs WHERE depth = ?`, depth)
		if err != nil {
			return fmt.Errorf("failed to query directories at depth %d: %w", depth, err)
		}

		var dirIDs []int64
		var dirs []string
		for rows.Next() {
			var id int64
			var path string
			if err := rows.Scan(&id, &path); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan directory path: %w", err)
			}
			dirIDs = append(dirIDs, id)
			dirs = append(dirs, path)
		}
		rows.Close()

		// Process each directory at this depth
		for i, dirPath := range dirs {
			rollup, err := b.computeRollup(dirIDs[i], dirPath, childFilesStmt, childDirsStmt)
			if err != nil {
				return fmt.Errorf("failed to compute rollup for %s: %w", dirPath, err)
			}

			b.cache[dirPath] = rollup

			if _, err := insertStmt.Exec(rollup.Path, rollup.TotalSize, rollup.TotalBlocks, rollup.TotalFiles, rollup.TotalDirs); err != nil {
				return fmt.Errorf("failed to insert rollup for %s: %w", dirPath, err)
			}

			processedDirs++
			if b.progress != nil {
				if processedDirs == totalDirs || processedDirs%2048 == 0 {
					now := time.Now()
					if processedDirs == totalDirs || now.Sub(lastUpdate) > 200*time.Millisecond {
						b.progress(processedDirs, totalDirs, depth, maxDepth)
						lastUpdate = now
					}
				}
			}
		}
	}

	if b.progress != nil && totalDirs == 0 {
		b.progress(0, 0, 0, maxDepth)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollups: %w", err)
	}

	return nil
}

func (b *Builder) computeRollup(dirID int64, dirPath string, childFilesStmt, childDirsStmt *sql.Stmt) (*entry.Rollup, error) {
	rollup := &entry.Rollup{Path: dirPath}

	// Get direct child files
	var fileSize, fileBlocks, fileCount int64
	if err := childFilesStmt.QueryRow(dirID).Scan(&fileSize, &fileBlocks, &fileCount); err != nil {
		return nil, err
	}

	rollup.TotalSize = fileSize
	rollup.TotalBlocks = fileBlocks
	rollup.TotalFiles = fileCount

	// Get child directories and add their rollups
	rows, err := childDirsStmt.Query(dirID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var childDirCount int64
	for rows.Next() {
		var childPath string
		if err := rows.Scan(&childPath); err != nil {
			return nil, err
		}

		childDirCount++

		// Get cached rollup for child directory (should exist since we process bottom-up)
		if childRollup, ok := b.cache[childPath]; ok {
			rollup.TotalSize += childRollup.TotalSize
			rollup.TotalBlocks += childRollup.TotalBlocks
			rollup.TotalFiles += childRollup.TotalFiles
			rollup.TotalDirs += childRollup.TotalDirs + 1 // +1 for the child dir itself
		} else {
			rollup.TotalDirs++ // child dir with no rollup (empty or error)
		}
	}

	return rollup, nil
}
