package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/storage"
)

const docJSON = `{"timebar":{"currTime":0,"timescale":0.12,"length":1000},"sequences":[` +
	`{"type":"css_sequ_type","data":{"name":"box","selectors":[".box"],"parameters":[]}}]}`

// watcherTestEnv sets up a library dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	libDir := t.TempDir()
	store, err := storage.NewFS(libDir, models.DocumentExt)
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "keyline-watcher-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return libDir, store, db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind, path string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+path)
	r.mu.Unlock()
}

func (r *recorder) has(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == want {
			return true
		}
	}
	return false
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, store, libDir, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(libDir, "new.am.json"), []byte(docJSON), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new.am.json")
		return cs != ""
	}, "new document not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:new.am.json")
	}, "expected created:new.am.json callback")

	paths, _ := db.Targeting(".box")
	if len(paths) != 1 {
		t.Errorf("targets = %v", paths)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, store, libDir, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(libDir, "notes.txt"), []byte("hello"), 0o644)
	_ = os.WriteFile(filepath.Join(libDir, "out.am.js"), []byte("void 0"), 0o644)
	time.Sleep(500 * time.Millisecond)

	if rec.count() != 0 {
		t.Errorf("unexpected events: %d", rec.count())
	}
}

func TestWatcher_SameContentSkipped(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	if err := store.Write("same.am.json", []byte(docJSON)); err != nil {
		t.Fatal(err)
	}
	if _, err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, store, libDir, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = store.Write("same.am.json", []byte(docJSON))
	time.Sleep(500 * time.Millisecond)

	if rec.count() != 0 {
		t.Errorf("rewrite with identical content produced %d events", rec.count())
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, libDir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(libDir, "scenes")
	_ = os.Mkdir(subDir, 0o755)
	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.am.json"), []byte(docJSON), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("scenes/deep.am.json")
		return cs != ""
	}, "document in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(libDir, "del.am.json"), []byte(docJSON), 0o644)
	_, _ = Sync(db, store, quietLogger())

	cs, _ := db.GetChecksum("del.am.json")
	if cs == "" {
		t.Fatal("precondition: document should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, store, libDir, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(libDir, "del.am.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.am.json")
		return cs == "" && rec.has("deleted:del.am.json")
	}, "deleted document still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(libDir, "old.am.json"), []byte(docJSON), 0o644)
	_, _ = Sync(db, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, libDir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(libDir, "old.am.json"), filepath.Join(libDir, "renamed.am.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.am.json")
		newCS, _ := db.GetChecksum("renamed.am.json")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

func TestSync_SkipsMalformed(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(libDir, "ok.am.json"), []byte(docJSON), 0o644)
	_ = os.WriteFile(filepath.Join(libDir, "bad.am.json"), []byte(`{"sequences":`), 0o644)

	stats, err := Sync(db, store, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Indexed != 1 || len(stats.Failed) != 1 || stats.Failed[0] != "bad.am.json" {
		t.Errorf("stats = %+v, want 1 indexed and bad.am.json failed", stats)
	}
	paths, _ := db.AllPaths()
	if _, ok := paths["ok.am.json"]; !ok {
		t.Error("ok.am.json not indexed")
	}
	if _, ok := paths["bad.am.json"]; ok {
		t.Error("malformed document should not be indexed")
	}
}

func TestSync_Stats(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(libDir, "a.am.json"), []byte(docJSON), 0o644)
	_ = os.WriteFile(filepath.Join(libDir, "b.am.json"), []byte(docJSON), 0o644)
	if _, err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	_ = os.Remove(filepath.Join(libDir, "b.am.json"))
	stats, err := Sync(db, store, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	want := SyncStats{Unchanged: 1, Removed: 1}
	if stats.Indexed != want.Indexed || stats.Unchanged != want.Unchanged || stats.Removed != want.Removed || len(stats.Failed) != 0 {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	row, err := db.GetDocument("a.am.json")
	if err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(filepath.Join(libDir, "a.am.json"))
	if d := row.UpdatedAt.Sub(info.ModTime()); d > time.Second || d < -time.Second {
		t.Errorf("updated_at = %v, want file mtime %v", row.UpdatedAt, info.ModTime())
	}
}
