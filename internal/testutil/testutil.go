// Package testutil provides shared test helpers for building workspaces and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/sm/internal/index"
	"github.com/starford/sm/internal/storage"
)

// Paths inside the workspace built by TestWorkspace.
const (
	FlatPackage = "node_modules/org.pinf.lib"
	DepsPackage = ".deps/github.com~pinf~org.pinf.lib~0/source/installed/master"
	// CallerFile sits four levels below .deps, the way a test file of an
	// installed package does.
	CallerFile = ".deps/github.com~pinf~sm.resolve~0/source/installed/master/test.js"
)

// Workspace is an on-disk install layout rooted at a temp directory.
type Workspace struct {
	Root string
}

// Path joins slash-separated rel onto the workspace root.
func (w Workspace) Path(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// Caller returns the absolute path of the calling test file.
func (w Workspace) Caller() string {
	return w.Path(CallerFile)
}

// WriteFile creates rel (and its parents) with content.
func (w Workspace) WriteFile(t *testing.T, rel, content string) {
	t.Helper()
	p := w.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Mkdir creates the directory rel and its parents.
func (w Workspace) Mkdir(t *testing.T, rel string) {
	t.Helper()
	if err := os.MkdirAll(w.Path(rel), 0o755); err != nil {
		t.Fatal(err)
	}
}

// TestWorkspace builds the canonical layout:
//
//	node_modules/org.pinf.lib/                                 version 0.1.4
//	.deps/github.com~pinf~org.pinf.lib~0/source/installed/master/  version 0.1.4
//	.deps/github.com~pinf~sm.resolve~0/source/installed/master/test.js
func TestWorkspace(t *testing.T) Workspace {
	t.Helper()
	w := Workspace{Root: t.TempDir()}
	w.WriteFile(t, FlatPackage+"/package.json", `{"name": "org.pinf.lib", "version": "0.1.4"}`)
	w.WriteFile(t, FlatPackage+"/lib/component.js", "module.exports = {};\n")
	w.WriteFile(t, DepsPackage+"/package.json", `{"name": "org.pinf.lib", "version": "0.1.4"}`)
	w.WriteFile(t, CallerFile, "// caller\n")
	return w
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sm-test-*.db")
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

// TestStore returns a storage.Provider over w.
func TestStore(t *testing.T, w Workspace) storage.Provider {
	t.Helper()
	store, err := storage.NewFS(w.Root)
	if err != nil {
		t.Fatal(err)
	}
	return store
}
