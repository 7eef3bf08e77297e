package scan

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/arborfs/walktree/internal/db"
	"github.com/arborfs/walktree/internal/entry"
	"github.com/arborfs/walktree/internal/rollup"
	"github.com/arborfs/walktree/walktree"
)

// Scanner coordinates the filesystem scan, driving a walktree walk and
// feeding its results into the database ingester and the rollup
// aggregator.
type Scanner struct {
	opts     *ScanOptions
	root     string
	rootDev  uint64
	database *sql.DB
	runID    uuid.UUID

	entryCh  chan entry.Entry
	dirCh    chan entry.Dir
	resultCh chan rollup.DirResult
	rollupCh chan entry.Rollup
	errorCh  chan entry.ScanError

	cancel context.CancelFunc
	ctx    context.Context

	dirIDMu  sync.Mutex
	dirIDs   map[string]int64
	dirIDSeq int64

	ingester *db.Ingester
}

// NewScanner creates a new scanner.
func NewScanner(opts *ScanOptions) *Scanner {
	if opts == nil {
		opts = DefaultOptions()
	}
	entryChSize := opts.BatchSize * 10
	if entryChSize < 100000 {
		entryChSize = 100000
	}
	dirChSize := opts.Workers * 2048
	if dirChSize < 8192 {
		dirChSize = 8192
	}
	rollupChSize := opts.BatchSize * 2
	if rollupChSize < 10000 {
		rollupChSize = 10000
	}
	return &Scanner{
		opts:     opts,
		entryCh:  make(chan entry.Entry, entryChSize),
		dirCh:    make(chan entry.Dir, dirChSize),
		resultCh: make(chan rollup.DirResult, dirChSize),
		rollupCh: make(chan entry.Rollup, rollupChSize),
		errorCh:  make(chan entry.ScanError, 1000),
		dirIDs:   make(map[string]int64),
	}
}

// Run executes the scan starting from root and writes to the database.
func (s *Scanner) Run(ctx context.Context, root string, database *sql.DB) error {
	s.root = filepath.Clean(root)
	s.database = database

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ctx = ctx
	defer cancel()

	rootInfo, err := os.Lstat(s.root)
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	if stat, ok := rootInfo.Sys().(*syscall.Stat_t); ok {
		s.rootDev = uint64(stat.Dev)
	}

	s.runID = uuid.New()
	startTime := time.Now()
	if err := s.initScanMeta(startTime); err != nil {
		return err
	}

	// Seed the root's own directory record: walktree never invokes
	// ProcessReadDir for the root itself, only for reading its children.
	s.assignDirID(s.root) // root always gets ID 1
	rootDir := entry.Dir{
		ID:       s.dirIDFor(s.root),
		Path:     s.root,
		Name:     rootInfo.Name(),
		ParentID: 0,
		Depth:    0,
	}
	s.sendDir(rootDir)

	s.ingester = db.NewIngester(s.database, s.entryCh, s.dirCh, s.rollupCh, s.errorCh,
		s.opts.BatchSize, s.opts.FlushIntervalMs, s.opts.MaxErrors, s.opts.Verbose, cancel)
	ingesterDone := make(chan error, 1)
	go func() {
		ingesterDone <- s.ingester.Run(ctx)
	}()

	agg := rollup.NewAggregator([]string{s.root})
	aggDone := make(chan error, 1)
	go func() {
		aggDone <- agg.Run(ctx, s.resultCh, s.rollupCh)
	}()

	walkErr := s.walk(ctx)

	close(s.entryCh)
	close(s.dirCh)
	close(s.resultCh)
	close(s.errorCh)

	if err := <-aggDone; err != nil && walkErr == nil {
		walkErr = fmt.Errorf("rollup aggregation failed: %w", err)
	}
	if err := <-ingesterDone; err != nil && walkErr == nil {
		walkErr = fmt.Errorf("ingester error: %w", err)
	}
	if walkErr != nil {
		return walkErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return s.finalizeScanMeta(s.ingester.ErrorCount())
}

// walk drives the walktree engine over the tree rooted at s.root,
// feeding every discovered entry and directory-read failure into the
// scanner's channels. Per-child metadata (size, blocks, device, inode)
// isn't carried by walktree.DirEntry, so processReadDir performs its own
// Lstat of each child; this doubles the stat calls walktree's engine
// already issues internally but keeps the directory-entry ABI generic
// across callers that don't need raw stat data.
func (s *Scanner) walk(ctx context.Context) error {
	it, err := walktree.WalkDir[struct{}, struct{}](s.root).
		FollowLinks(false).
		Sort(false).
		Parallelism(walktree.NewPool(s.opts.Workers)).
		ProcessReadDir(s.processReadDir).
		TryIter()
	if err != nil {
		return fmt.Errorf("failed to start walk: %w", err)
	}
	defer it.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		e, err, ok := it.Next()
		if !ok {
			return nil
		}
		if err != nil {
			s.recordWalkError(err)
			continue
		}
		if e.IsDir() && e.ReadChildrenError() != nil {
			s.recordError(e.Path(), e.ReadChildrenError())
			// The parent already counted this directory in its
			// ChildCount; without a result the aggregator would wait
			// on it forever.
			s.emitDirResult(e.Path(), 0, 0, 0, 0)
		}
	}
}

// processReadDir is invoked once per successfully read directory. It
// stats, classifies, and (if excluded) prunes each child, assigns IDs to
// newly discovered subdirectories, and emits entry/dir records plus one
// rollup.DirResult summarizing this directory's direct children.
func (s *Scanner) processReadDir(depth int, dirPath string, _ *struct{}, children *[]*walktree.DirEntry[struct{}]) {
	parentID := s.dirIDFor(dirPath)

	var fileSize, fileBlocks, fileCount int64
	var childDirCount int

	for _, child := range *children {
		// Children that failed their own type resolution (Lstat) never
		// reach this callback: the walk surfaces them as standalone
		// errors from Iterator.Next instead, handled in walk.
		if s.opts.ShouldExclude(child.Path()) {
			if child.IsDir() {
				child.Prune()
			}
			continue
		}

		info, err := os.Lstat(child.Path())
		if err != nil {
			s.recordError(child.Path(), err)
			if child.IsDir() {
				child.Prune()
			}
			continue
		}

		var devID, inode uint64
		var blocks int64
		if stat, ok := info.Sys().(*syscall.Stat_t); ok {
			devID = uint64(stat.Dev)
			inode = stat.Ino
			blocks = stat.Blocks * 512
		}

		if s.opts.Xdev && devID != 0 && devID != s.rootDev {
			if child.IsDir() {
				child.Prune()
			}
			continue
		}

		kind := entry.KindFromMode(info.Mode())

		switch kind {
		case entry.KindDir:
			childID := s.assignDirID(child.Path())
			s.sendDir(entry.Dir{
				ID:       childID,
				Path:     child.Path(),
				Name:     child.FileName(),
				ParentID: parentID,
				Depth:    depth + 1,
			})
			childDirCount++
		case entry.KindFile:
			fileSize += info.Size()
			fileBlocks += blocks
			fileCount++
			s.sendEntry(entry.Entry{
				ParentID: parentID,
				Name:     child.FileName(),
				Kind:     kind,
				Size:     info.Size(),
				Blocks:   blocks,
				ModTime:  info.ModTime(),
				DevID:    devID,
				Inode:    inode,
			})
		default:
			s.sendEntry(entry.Entry{
				ParentID: parentID,
				Name:     child.FileName(),
				Kind:     kind,
				Size:     info.Size(),
				Blocks:   blocks,
				ModTime:  info.ModTime(),
				DevID:    devID,
				Inode:    inode,
			})
		}
	}

	s.emitDirResult(dirPath, fileSize, fileBlocks, fileCount, childDirCount)
}

func (s *Scanner) sendEntry(e entry.Entry) {
	select {
	case s.entryCh <- e:
	case <-s.ctx.Done():
	}
}

func (s *Scanner) sendDir(d entry.Dir) {
	select {
	case s.dirCh <- d:
	case <-s.ctx.Done():
	}
}

func (s *Scanner) emitDirResult(dirPath string, fileSize, fileBlocks, fileCount int64, childCount int) {
	parent := ""
	if dirPath != s.root {
		parent = filepath.Dir(dirPath)
	}
	select {
	case s.resultCh <- rollup.DirResult{
		Path:       dirPath,
		Parent:     parent,
		FileSize:   fileSize,
		FileBlocks: fileBlocks,
		FileCount:  fileCount,
		ChildCount: childCount,
	}:
	case <-s.ctx.Done():
	}
}

func (s *Scanner) recordError(path string, err error) {
	select {
	case s.errorCh <- entry.ScanError{Path: path, Message: err.Error()}:
	default:
	}
}

func (s *Scanner) recordWalkError(err error) {
	path := ""
	if werr, ok := err.(*walktree.Error); ok {
		path = werr.Path
	}
	s.recordError(path, err)
}

func (s *Scanner) assignDirID(path string) int64 {
	s.dirIDMu.Lock()
	defer s.dirIDMu.Unlock()
	s.dirIDSeq++
	id := s.dirIDSeq
	s.dirIDs[path] = id
	return id
}

func (s *Scanner) dirIDFor(path string) int64 {
	s.dirIDMu.Lock()
	defer s.dirIDMu.Unlock()
	return s.dirIDs[path]
}

func (s *Scanner) initScanMeta(startTime time.Time) error {
	_, err := s.database.Exec(
		`INSERT INTO scan_meta (id, run_id, root_path, start_time) VALUES (1, ?, ?, ?)`,
		s.runID.String(), s.root, startTime.Unix(),
	)
	return err
}

// RunID returns the UUID identifying this scan run. Valid only after Run
// has started.
func (s *Scanner) RunID() uuid.UUID {
	return s.runID
}

// Progress returns current scan progress (safe for concurrent access).
// Returns nil if scan hasn't started.
func (s *Scanner) Progress() *db.Progress {
	if s.ingester == nil {
		return nil
	}
	p := s.ingester.Progress()
	return &p
}

func (s *Scanner) finalizeScanMeta(errorCount int64) error {
	var fileCount, dirCount, totalSize, totalBlocks int64
	row := s.database.QueryRow(`SELECT COUNT(*) FROM entries WHERE kind = 0`)
	row.Scan(&fileCount)

	row = s.database.QueryRow(`SELECT COUNT(*) FROM dirs`)
	row.Scan(&dirCount)

	row = s.database.QueryRow(`SELECT COALESCE(SUM(size), 0) FROM entries WHERE kind = 0`)
	row.Scan(&totalSize)

	row = s.database.QueryRow(`SELECT COALESCE(SUM(blocks), 0) FROM entries WHERE kind = 0`)
	row.Scan(&totalBlocks)

	_, err := s.database.Exec(
		`UPDATE scan_meta SET end_time = ?, total_size = ?, total_blocks = ?, file_count = ?, dir_count = ?, error_count = ? WHERE id = 1`,
		time.Now().Unix(), totalSize, totalBlocks, fileCount, dirCount, errorCount,
	)
	return err
}
