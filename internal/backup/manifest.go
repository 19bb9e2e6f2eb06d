// Package backup produces point-in-time snapshots of durable state to
// files, with incremental variants and retention cleanup.
package backup

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ManifestVersion is the current snapshot file format version.
const ManifestVersion = 1

// Manifest is one immutable snapshot file. Files are never edited after
// being written; cleanup may delete whole files only.
type Manifest struct {
	Timestamp time.Time                           `json:"timestamp"`
	Version   int                                 `json:"version"`
	Counts    map[string]int                      `json:"counts"`
	Data      map[string][]map[string]interface{} `json:"data"`
}

// LatestPointer is the single mutable record referencing the most recent
// full manifest.
type LatestPointer struct {
	Latest    string         `json:"latest"`
	Timestamp time.Time      `json:"timestamp"`
	Counts    map[string]int `json:"counts"`
	Path      string         `json:"path"`
}

// latestFileName is the pointer file living next to the manifests.
const latestFileName = "latest.json"

// Filename prefixes for the two snapshot kinds.
const (
	fullPrefix        = "backup-"
	incrementalPrefix = "incremental-"
)

// backupTimeLayout is the embedded-timestamp layout. Nanosecond precision
// alone is not collision-proof under rapid invocation, so filenames carry a
// random suffix as well.
const backupTimeLayout = "20060102T150405.000000000"

// manifestFileName builds a unique filename for a snapshot taken at ts.
func manifestFileName(prefix string, ts time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s%s-%s.json", prefix, ts.UTC().Format(backupTimeLayout), suffix)
}

// parseManifestTime extracts the embedded timestamp from a snapshot
// filename. ok is false for names that are not snapshot files.
func parseManifestTime(prefix, name string) (time.Time, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
		return time.Time{}, false
	}
	core := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
	// Trailing "-<suffix>" after the timestamp.
	idx := strings.LastIndex(core, "-")
	if idx < 0 {
		return time.Time{}, false
	}
	ts, err := time.Parse(backupTimeLayout, core[:idx])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
