package resolve

import (
	"iter"
	"path/filepath"

	"github.com/starford/sm/internal/models"
)

// Install-area directory names probed in every ancestor.
const (
	FlatDir = models.FlatDirName
	DepsDir = models.DepsDirName
)

// SearchRoot is one candidate install area.
type SearchRoot struct {
	Dir  string
	Area models.Area
}

// SearchRoots yields the install areas of dir and each of its ancestors,
// nearest first, the flat area before the deps area of the same ancestor.
// The walk is lexical: nothing on disk is touched, and it stops after the
// filesystem root.
func SearchRoots(dir string) iter.Seq[SearchRoot] {
	return func(yield func(SearchRoot) bool) {
		d := filepath.Clean(dir)
		for {
			if !yield(SearchRoot{Dir: filepath.Join(d, FlatDir), Area: models.AreaFlat}) {
				return
			}
			if !yield(SearchRoot{Dir: filepath.Join(d, DepsDir), Area: models.AreaDeps}) {
				return
			}
			parent := filepath.Dir(d)
			if parent == d {
				return
			}
			d = parent
		}
	}
}
