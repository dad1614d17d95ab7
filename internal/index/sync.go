package index

import (
	"log/slog"
	"time"

	"github.com/starford/keyline/internal/checksum"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/parser"
	"github.com/starford/keyline/internal/storage"
)

// SyncStats summarises one Sync pass.
type SyncStats struct {
	Indexed   int
	Unchanged int
	Removed   int
	// Failed lists documents that could not be read or parsed. They stay
	// out of the index until they load again.
	Failed []string
}

// Sync reconciles the index with the library: changed documents are
// reparsed, unchanged ones are skipped by checksum, and entries whose file
// is gone are dropped. Per-document failures are collected in the stats;
// only a failure to list the library or read the index is returned.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	metas, err := store.List("")
	if err != nil {
		return stats, err
	}
	known, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	seen := make(map[string]bool, len(metas))
	for _, m := range metas {
		seen[m.Path] = true
		if known[m.Path] == m.Checksum {
			stats.Unchanged++
			continue
		}
		if err := syncOne(db, store, m); err != nil {
			logger.Warn("sync: document skipped", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Failed = append(stats.Failed, m.Path)
			continue
		}
		stats.Indexed++
	}

	for p := range known {
		if seen[p] {
			continue
		}
		if err := db.DeleteDocument(p); err != nil {
			logger.Warn("sync: stale entry kept", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
	}

	logger.Info("index synced",
		slog.Int("indexed", stats.Indexed),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("removed", stats.Removed),
		slog.Int("failed", len(stats.Failed)),
	)
	return stats, nil
}

func syncOne(db *DB, store storage.Provider, m models.FileMetadata) error {
	data, err := store.Read(m.Path)
	if err != nil {
		return err
	}
	return indexAt(db, m.Path, data, m.UpdatedAt)
}

// IndexFile parses data and upserts it into the DB, stamped with the
// current time.
func IndexFile(db DocumentIndex, path string, data []byte) error {
	return indexAt(db, path, data, time.Time{})
}

func indexAt(db DocumentIndex, path string, data []byte, updated time.Time) error {
	res, err := parser.Parse(path, data)
	if err != nil {
		return err
	}
	row := DocumentRow{
		Path:       path,
		Name:       res.Name,
		Checksum:   checksum.Sum(data),
		Length:     res.Length,
		TrackCount: res.TrackCount,
		Triggers:   res.Triggers,
		Eases:      res.Eases,
		UpdatedAt:  updated,
	}
	return db.UpsertDocument(row, res.Body, res.Selectors)
}
