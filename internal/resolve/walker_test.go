package resolve

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/sm/internal/models"
)

func TestSearchRoots_Order(t *testing.T) {
	start := filepath.Join(string(filepath.Separator), "a", "b")
	got := slices.Collect(SearchRoots(start))

	root := string(filepath.Separator)
	want := []SearchRoot{
		{filepath.Join(root, "a", "b", FlatDir), models.AreaFlat},
		{filepath.Join(root, "a", "b", DepsDir), models.AreaDeps},
		{filepath.Join(root, "a", FlatDir), models.AreaFlat},
		{filepath.Join(root, "a", DepsDir), models.AreaDeps},
		{filepath.Join(root, FlatDir), models.AreaFlat},
		{filepath.Join(root, DepsDir), models.AreaDeps},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("search roots (-want +got):\n%s", diff)
	}
}

func TestSearchRoots_EarlyStop(t *testing.T) {
	n := 0
	for range SearchRoots(t.TempDir()) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("iterated %d roots, want 3", n)
	}
}

func TestSearchRoots_NoRevisit(t *testing.T) {
	seen := make(map[string]bool)
	for r := range SearchRoots(t.TempDir()) {
		if seen[r.Dir] {
			t.Fatalf("root %s yielded twice", r.Dir)
		}
		seen[r.Dir] = true
	}
}
