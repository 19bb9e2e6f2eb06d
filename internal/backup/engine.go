package backup

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/huddleworks/huddle/internal/db"
	"gorm.io/gorm"
)

// DefaultRetain is how many full snapshots cleanup keeps.
const DefaultRetain = 30

// DefaultIncrementalWindow is the lookback for incremental snapshots.
const DefaultIncrementalWindow = 24 * time.Hour

// snapshotBatchSize bounds how many rows are read per query so large tables
// are streamed into the manifest instead of materialized in one Find.
const snapshotBatchSize = 500

// removeFile is swapped out in tests to simulate deletion failures.
var removeFile = os.Remove

// Result reports a completed (or skipped) snapshot.
type Result struct {
	File    string
	Counts  map[string]int
	Skipped bool // incremental with no changed rows writes no file
}

// CleanupResult reports a retention pass.
type CleanupResult struct {
	Retained int
	Removed  int
	Failed   int // deletions that errored; logged and swallowed
}

// Full snapshots every tracked table into one manifest file under dir, then
// rewrites the latest pointer. The table scan runs inside one transaction
// so the manifest is a consistent point-in-time copy.
func Full(gdb *gorm.DB, dir string) (Result, error) {
	now := time.Now()
	manifest := Manifest{
		Timestamp: now,
		Version:   ManifestVersion,
		Counts:    make(map[string]int),
		Data:      make(map[string][]map[string]interface{}),
	}

	err := gdb.Transaction(func(tx *gorm.DB) error {
		for _, table := range db.TableNames() {
			rows, err := snapshotTable(tx, table, time.Time{})
			if err != nil {
				return err
			}
			manifest.Data[table] = rows
			manifest.Counts[table] = len(rows)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("backup: full snapshot: %w", err)
	}

	name := manifestFileName(fullPrefix, now)
	if err := writeManifest(dir, name, manifest); err != nil {
		return Result{}, err
	}

	pointer := LatestPointer{
		Latest:    name,
		Timestamp: now,
		Counts:    manifest.Counts,
		Path:      filepath.Join(dir, name),
	}
	if err := writeJSONAtomic(dir, latestFileName, pointer); err != nil {
		return Result{}, fmt.Errorf("backup: update latest pointer: %w", err)
	}

	return Result{File: name, Counts: manifest.Counts}, nil
}

// Incremental snapshots only rows mutated since now-window. When no table
// has changed rows the operation is a deliberate no-op: no file is written
// and Result.Skipped is set.
func Incremental(gdb *gorm.DB, dir string, window time.Duration) (Result, error) {
	if window <= 0 {
		window = DefaultIncrementalWindow
	}
	now := time.Now()
	watermark := now.Add(-window)

	manifest := Manifest{
		Timestamp: now,
		Version:   ManifestVersion,
		Counts:    make(map[string]int),
		Data:      make(map[string][]map[string]interface{}),
	}

	total := 0
	err := gdb.Transaction(func(tx *gorm.DB) error {
		for _, table := range db.TableNames() {
			rows, err := snapshotTable(tx, table, watermark)
			if err != nil {
				return err
			}
			manifest.Data[table] = rows
			manifest.Counts[table] = len(rows)
			total += len(rows)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("backup: incremental snapshot: %w", err)
	}

	if total == 0 {
		return Result{Skipped: true, Counts: manifest.Counts}, nil
	}

	name := manifestFileName(incrementalPrefix, now)
	if err := writeManifest(dir, name, manifest); err != nil {
		return Result{}, err
	}
	return Result{File: name, Counts: manifest.Counts}, nil
}

// Cleanup keeps the newest `keep` full snapshots (by embedded timestamp)
// and deletes the rest. Individual deletion failures are logged and
// swallowed: a completed backup is never retroactively failed by cleanup.
func Cleanup(dir string, keep int) (CleanupResult, error) {
	if keep <= 0 {
		keep = DefaultRetain
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("backup: read %s: %w", dir, err)
	}

	type snapshot struct {
		name string
		ts   time.Time
	}
	var snaps []snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ts, ok := parseManifestTime(fullPrefix, e.Name()); ok {
			snaps = append(snaps, snapshot{name: e.Name(), ts: ts})
		}
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ts.After(snaps[j].ts) })

	var res CleanupResult
	if len(snaps) <= keep {
		res.Retained = len(snaps)
		return res, nil
	}
	res.Retained = keep

	for _, s := range snaps[keep:] {
		if err := removeFile(filepath.Join(dir, s.name)); err != nil {
			log.Printf("backup: cleanup: remove %s: %v", s.name, err)
			res.Failed++
			continue
		}
		res.Removed++
	}
	return res, nil
}

// snapshotTable reads a table's rows in bounded batches. A zero watermark
// means all rows; otherwise only rows mutated after the watermark are
// selected, using updated_at where the schema has one and created_at for
// append-only tables.
func snapshotTable(tx *gorm.DB, table string, watermark time.Time) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0)
	offset := 0
	for {
		q := tx.Table(table).Limit(snapshotBatchSize).Offset(offset)
		if !watermark.IsZero() {
			q = q.Where(fmt.Sprintf("%s > ?", mutationColumn(table)), watermark)
		}
		var batch []map[string]interface{}
		if err := q.Find(&batch).Error; err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", table, err)
		}
		rows = append(rows, batch...)
		if len(batch) < snapshotBatchSize {
			return rows, nil
		}
		offset += snapshotBatchSize
	}
}

// mutationColumn returns the timestamp column that reflects a row's last
// mutation. Messages and conversation backups are append-only.
func mutationColumn(table string) string {
	switch table {
	case "messages", "conversation_backups":
		return "created_at"
	default:
		return "updated_at"
	}
}

// writeManifest writes a manifest file atomically under dir.
func writeManifest(dir, name string, m Manifest) error {
	if err := writeJSONAtomic(dir, name, m); err != nil {
		return fmt.Errorf("backup: write %s: %w", name, err)
	}
	return nil
}

// writeJSONAtomic marshals v and writes it via temp-file-then-rename, so a
// crash mid-write never leaves a half-written file under the final name.
// Partial temp files are removed before returning on any failure.
func writeJSONAtomic(dir, name string, v interface{}) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
