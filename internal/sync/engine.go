package sync

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	gosync "sync"
	"time"

	"github.com/trackview/trackview/internal/activity"
	"github.com/trackview/trackview/internal/db"
)

const maxWorkers = 8

// SyncStats summarizes a sync run over the spool directories.
type SyncStats struct {
	FilesSeen int      `json:"files_seen"`
	Synced    int      `json:"synced"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Documents int      `json:"documents"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Engine ingests collector export files from spool directories
// into the snapshot store. Files are re-read only when their
// mtime changes.
type Engine struct {
	db        *db.DB
	spoolDirs []string

	syncMu gosync.Mutex // serializes full sync runs

	mu            gosync.RWMutex
	lastSync      time.Time
	lastSyncStats SyncStats

	// seen tracks the mtime at which each spool file was
	// last ingested (or failed to parse), so unchanged
	// files are not re-read on subsequent syncs.
	seenMu gosync.RWMutex
	seen   map[string]int64
}

// NewEngine creates a sync engine over the given spool
// directories.
func NewEngine(database *db.DB, spoolDirs []string) *Engine {
	return &Engine{
		db:        database,
		spoolDirs: spoolDirs,
		seen:      make(map[string]int64),
	}
}

// LastSync returns the time of the last completed sync.
func (e *Engine) LastSync() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSync
}

// LastSyncStats returns statistics from the last sync.
func (e *Engine) LastSyncStats() SyncStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSyncStats
}

// isExportFile reports whether a path looks like a collector
// export. Collectors write one JSON document per line, either
// as .jsonl or plain .json.
func isExportFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := filepath.Ext(base)
	return ext == ".jsonl" || ext == ".json"
}

// discover walks the spool directories and returns all export
// file paths. Inaccessible subtrees are skipped.
func (e *Engine) discover() []string {
	var paths []string
	for _, dir := range e.spoolDirs {
		if dir == "" {
			continue
		}
		_ = filepath.WalkDir(dir,
			func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if !d.IsDir() && isExportFile(path) {
					paths = append(paths, path)
				}
				return nil
			})
	}
	return paths
}

// SyncAll discovers and ingests every export file in the spool
// directories.
func (e *Engine) SyncAll() SyncStats {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	t0 := time.Now()
	paths := e.discover()
	stats := e.ingest(paths)
	log.Printf(
		"sync: %d file(s) seen, %d synced, %d skipped in %s",
		stats.FilesSeen, stats.Synced, stats.Skipped,
		time.Since(t0).Round(time.Millisecond),
	)

	e.mu.Lock()
	e.lastSync = time.Now()
	e.lastSyncStats = stats
	e.mu.Unlock()
	return stats
}

// SyncPaths ingests only the given changed paths. Paths outside
// the spool directories or without an export extension are
// ignored.
func (e *Engine) SyncPaths(paths []string) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	var files []string
	for _, p := range paths {
		if isExportFile(p) && e.inSpool(p) {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return
	}

	stats := e.ingest(files)
	if stats.Synced > 0 {
		log.Printf("sync: %d file(s) updated", stats.Synced)
	}

	e.mu.Lock()
	e.lastSync = time.Now()
	e.lastSyncStats = stats
	e.mu.Unlock()
}

// inSpool reports whether path lies inside one of the spool
// directories.
func (e *Engine) inSpool(path string) bool {
	path = filepath.Clean(path)
	sep := string(filepath.Separator)
	for _, dir := range e.spoolDirs {
		if dir == "" {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(dir), path)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+sep) {
			return true
		}
	}
	return false
}

type fileResult struct {
	path  string
	docs  []activity.RawUserDocument
	mtime int64
	skip  bool
	err   error
}

// ingest fans file parsing out across a worker pool and writes
// the parsed documents to the store from the collecting
// goroutine.
func (e *Engine) ingest(paths []string) SyncStats {
	var stats SyncStats
	stats.FilesSeen = len(paths)
	if len(paths) == 0 {
		return stats
	}

	workers := min(max(runtime.NumCPU(), 2), maxWorkers)
	jobs := make(chan string, len(paths))
	results := make(chan fileResult, len(paths))

	for range workers {
		go func() {
			for path := range jobs {
				results <- e.readFile(path)
			}
		}()
	}
	for _, p := range paths {
		jobs <- p
	}
	close(jobs)

	for range paths {
		r := <-results
		if r.err != nil {
			stats.Failed++
			stats.Warnings = append(stats.Warnings,
				r.err.Error())
			log.Printf("sync error: %v", r.err)
			if r.mtime != 0 {
				e.markSeen(r.path, r.mtime)
			}
			continue
		}
		if r.skip {
			stats.Skipped++
			continue
		}

		ok := true
		for _, doc := range r.docs {
			if err := e.db.UpsertDocument(
				doc, r.path,
			); err != nil {
				stats.Failed++
				stats.Warnings = append(stats.Warnings,
					err.Error())
				log.Printf("sync write: %v", err)
				ok = false
				break
			}
			stats.Documents++
		}
		if ok {
			stats.Synced++
			e.markSeen(r.path, r.mtime)
		}
	}
	return stats
}

// readFile stats and parses one export file, honoring the
// mtime cache.
func (e *Engine) readFile(path string) fileResult {
	info, err := os.Stat(path)
	if err != nil {
		return fileResult{
			path: path,
			err:  fmt.Errorf("stat %s: %w", path, err),
		}
	}
	mtime := info.ModTime().UnixNano()

	e.seenMu.RLock()
	cached, ok := e.seen[path]
	e.seenMu.RUnlock()
	if ok && cached == mtime {
		return fileResult{path: path, mtime: mtime, skip: true}
	}

	docs, badLines, err := activity.ParseDocumentFile(path)
	if err != nil {
		return fileResult{
			path:  path,
			mtime: mtime,
			err:   fmt.Errorf("parse %s: %w", path, err),
		}
	}
	if badLines > 0 {
		log.Printf(
			"sync: %s: %d unparseable line(s) ignored",
			path, badLines,
		)
	}
	return fileResult{path: path, docs: docs, mtime: mtime}
}

func (e *Engine) markSeen(path string, mtime int64) {
	e.seenMu.Lock()
	e.seen[path] = mtime
	e.seenMu.Unlock()
}
