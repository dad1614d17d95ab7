// Package testutil provides shared test helpers for setting up document libraries and databases.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/starford/keyline/internal/index"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "keyline-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLibrary creates a temporary document library with a storage.Provider.
func TestLibrary(t *testing.T) (string, storage.Provider) {
	t.Helper()
	return testDir(t, models.DocumentExt)
}

// TestExports creates a temporary directory for compiled modules.
func TestExports(t *testing.T) (string, storage.Provider) {
	t.Helper()
	return testDir(t, models.ScriptExt)
}

func testDir(t *testing.T, ext string) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir, ext)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Document returns a saved document with one CSS track per selector. Each
// track moves along x from 0 to 100 between 0 and 1000 ms.
func Document(selectors ...string) []byte {
	tracks := make([]string, len(selectors))
	for i, sel := range selectors {
		tracks[i] = fmt.Sprintf(`{"type":"css_sequ_type","data":{"name":%q,"selectors":[%q],"parameters":[`+
			`{"name":"transform","keys":[{"value":{"tx":0},"time":0,"ease":"linear"},{"value":{"tx":100},"time":1000,"ease":"linear"}]},`+
			`{"name":"transform-origin","keys":[]}]}}`, sel, sel)
	}
	return []byte(`{"timebar":{"currTime":0,"timescale":0.12,"length":1000},"sequences":[` + strings.Join(tracks, ",") + `]}`)
}
