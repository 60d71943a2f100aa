// Package exportcache incrementally ingests per-job export files.
//
// The jobs root can hold thousands of directories on a network share, and
// re-reading every export per cycle is the dominant cost of a run. The cache
// fingerprints each export by its exact path and modification time; an
// unchanged fingerprint reuses the prior cycle's parse verbatim without
// touching the file contents.
package exportcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/epfab/asmtrack/pkg/exportfile"
	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/statefile"
)

// Entry is one cached export parse.
type Entry struct {
	Fields      exportfile.Fields `json:"fields"`
	SourcePath  string            `json:"source_path"`
	SourceMTime int64             `json:"source_mtime_ns"`
}

// Cache is the persisted collection of export parses, one per job directory
// that carried a recognized export file. Entries disappear only by absence
// from the source listing.
type Cache struct {
	Entries []Entry `json:"entries"`
}

// Stats summarizes one cache build.
type Stats struct {
	Directories int `json:"directories"`
	Parsed      int `json:"parsed"`
	Reused      int `json:"reused"`
	Skipped     int `json:"skipped"`
	NoExport    int `json:"no_export"`
}

// Builder scans a jobs root and produces an updated Cache.
type Builder struct {
	// ExportName is the export file name expected in each job directory.
	ExportName string

	Log *zap.Logger
}

// Build lists the top-level subdirectories of root (non-recursive) and
// returns the refreshed cache.
//
// A single corrupt or unreadable export is logged and skipped; it never
// aborts the build. An unreadable root is a stage failure.
func (b *Builder) Build(root string, prior *Cache) (*Cache, Stats, error) {
	var stats Stats

	name := b.ExportName
	if strings.TrimSpace(name) == "" {
		name = "jobExport.txt"
	}
	log := b.Log
	if log == nil {
		log = zap.NewNop()
	}

	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, stats, fmt.Errorf("list jobs root %s: %w", root, err)
	}

	priorByPath := make(map[string]Entry)
	if prior != nil {
		for _, e := range prior.Entries {
			priorByPath[e.SourcePath] = e
		}
	}

	cache := &Cache{}
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		stats.Directories++

		exportPath := filepath.Join(root, de.Name(), name)
		st, err := os.Stat(exportPath)
		if err != nil || st.IsDir() {
			stats.NoExport++
			continue
		}
		mtime := st.ModTime().UnixNano()

		if old, ok := priorByPath[exportPath]; ok && old.SourceMTime == mtime {
			cache.Entries = append(cache.Entries, old)
			stats.Reused++
			continue
		}

		fields, err := exportfile.ParseFile(exportPath)
		if err != nil {
			log.Warn("Skipping unreadable job export",
				zap.String("path", exportPath),
				zap.Error(err))
			stats.Skipped++
			continue
		}
		cache.Entries = append(cache.Entries, Entry{
			Fields:      fields,
			SourcePath:  exportPath,
			SourceMTime: mtime,
		})
		stats.Parsed++
	}

	// Deterministic cache order regardless of directory listing order.
	sort.Slice(cache.Entries, func(i, j int) bool {
		return cache.Entries[i].SourcePath < cache.Entries[j].SourcePath
	})

	return cache, stats, nil
}

// Load reads a cache document from path. Missing or corrupt caches yield an
// empty cache, which forces a cold rebuild.
func Load(path string) (*Cache, error) {
	var c Cache
	if _, err := statefile.Load(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save persists the cache document to path.
func Save(path string, c *Cache) error {
	return statefile.Save(path, c)
}

// JobRecord converts the cached fields into the typed work-order record.
// Numeric conversion here is best-effort; the sanitizer has already corrected
// declared numeric fields, so a residual failure just reads as zero.
func (e Entry) JobRecord() model.JobRecord {
	f := e.Fields
	turn, _ := strconv.ParseFloat(strings.TrimSpace(f.Get(exportfile.KeyTurnTime)), 64)

	known := map[string]bool{
		exportfile.KeyWorkOrder:  true,
		exportfile.KeyQuote:      true,
		exportfile.KeyCustomer:   true,
		exportfile.KeyStatus:     true,
		exportfile.KeyCreditHold: true,
		exportfile.KeyOrderDate:  true,
		exportfile.KeyShipDate:   true,
		exportfile.KeyTurnTime:   true,
	}
	var extra map[string]string
	for k, v := range f {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[k] = v
	}

	return model.JobRecord{
		WorkOrder:   f.Get(exportfile.KeyWorkOrder),
		Quote:       f.Get(exportfile.KeyQuote),
		Customer:    f.Get(exportfile.KeyCustomer),
		Status:      f.Get(exportfile.KeyStatus),
		CreditHold:  f.OnHold(),
		OrderDate:   f.Get(exportfile.KeyOrderDate),
		ShipDate:    f.Get(exportfile.KeyShipDate),
		TurnTime:    turn,
		SourcePath:  e.SourcePath,
		SourceMTime: e.SourceMTime,
		Extra:       extra,
	}
}
