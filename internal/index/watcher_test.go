package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

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

func indexed(db *DB, path string) bool {
	_, err := db.GetPackage(path)
	return err == nil
}

func TestWatcher_NewInstallIndexed(t *testing.T) {
	root, store, db := workspaceEnv(t)
	writeFile(t, root, "node_modules/.keep", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	writeFile(t, root, "node_modules/org.pinf.lib/package.json", `{"name": "org.pinf.lib", "version": "0.1.4"}`)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexed(db, "node_modules/org.pinf.lib")
	}, "new install not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "installed:node_modules/org.pinf.lib" {
				return true
			}
		}
		return false
	}, "expected installed:node_modules/org.pinf.lib callback")
}

func TestWatcher_AreaCreatedLater(t *testing.T) {
	root, store, db := workspaceEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	writeFile(t, root, ".deps/github.com~pinf~org.pinf.lib~0/source/installed/master/package.json", `{"version": "0.1.4"}`)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexed(db, ".deps/github.com~pinf~org.pinf.lib~0/source/installed/master")
	}, "install in a newly created .deps not indexed by watcher")
}

func TestWatcher_DescriptorChangeUpdates(t *testing.T) {
	root, store, db := workspaceEnv(t)
	writeFile(t, root, "node_modules/a/package.json", `{"name": "a", "version": "1.0.0"}`)
	_ = Sync(db, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	writeFile(t, root, "node_modules/a/package.json", `{"name": "a", "version": "1.1.0"}`)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		p, err := db.GetPackage("node_modules/a")
		return err == nil && p.Version == "1.1.0"
	}, "descriptor change not picked up by watcher")
}

func TestWatcher_RemovalDeletesFromIndex(t *testing.T) {
	root, store, db := workspaceEnv(t)
	writeFile(t, root, "node_modules/del/package.json", `{"name": "del"}`)
	_ = Sync(db, store, quietLogger())
	if !indexed(db, "node_modules/del") {
		t.Fatal("precondition: install should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.RemoveAll(filepath.Join(root, "node_modules", "del"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, "node_modules/del")
	}, "removed install still in index")
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	_, store, db := workspaceEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, db, store, quietLogger(), nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not stop after cancel")
	}
}
