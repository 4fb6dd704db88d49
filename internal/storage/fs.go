package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/sm/internal/apperr"
	"github.com/starford/sm/internal/checksum"
	"github.com/starford/sm/internal/descriptor"
	"github.com/starford/sm/internal/models"
)

var installDirRe = regexp.MustCompile(`^[^~]+~[^~]+~[^~]+~[0-9]+$`)

// FS implements Provider backed by the local file system. It never writes.
type FS struct {
	root string // absolute path to the workspace root
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute workspace root.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the workspace root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute path %s: %w", rel, apperr.ErrOutsideWorkspace)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path %s escapes workspace root: %w", rel, apperr.ErrOutsideWorkspace)
	}
	return abs, nil
}

// List enumerates installed packages. Flat installs are the directories of
// node_modules (dot-directories such as .bin are skipped); deps installs are
// the channel directories of .deps/*~*~*~<major>/source/installed.
func (f *FS) List(area models.Area) ([]models.PackageMetadata, error) {
	var out []models.PackageMetadata
	if area == "" || area == models.AreaFlat {
		flat, err := f.listFlat()
		if err != nil {
			return nil, err
		}
		out = append(out, flat...)
	}
	if area == "" || area == models.AreaDeps {
		deps, err := f.listDeps()
		if err != nil {
			return nil, err
		}
		out = append(out, deps...)
	}
	return out, nil
}

func (f *FS) listFlat() ([]models.PackageMetadata, error) {
	entries, err := readDirIfExists(filepath.Join(f.root, models.FlatDirName))
	if err != nil {
		return nil, fmt.Errorf("storage: list flat: %w", err)
	}
	var out []models.PackageMetadata
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		rel := path.Join(models.FlatDirName, e.Name())
		meta, ok, err := f.metadata(rel, e.Name(), models.AreaFlat)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, meta)
		}
	}
	return out, nil
}

func (f *FS) listDeps() ([]models.PackageMetadata, error) {
	depsDir := filepath.Join(f.root, models.DepsDirName)
	entries, err := readDirIfExists(depsDir)
	if err != nil {
		return nil, fmt.Errorf("storage: list deps: %w", err)
	}
	var out []models.PackageMetadata
	for _, e := range entries {
		if !installDirRe.MatchString(e.Name()) {
			continue
		}
		channels, err := readDirIfExists(filepath.Join(depsDir, e.Name(), filepath.FromSlash(models.InstalledPath)))
		if err != nil {
			return nil, fmt.Errorf("storage: list deps: %w", err)
		}
		for _, c := range channels {
			key := path.Join(e.Name(), models.InstalledPath, c.Name())
			meta, ok, err := f.metadata(path.Join(models.DepsDirName, key), key, models.AreaDeps)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, meta)
			}
		}
	}
	return out, nil
}

// metadata stats the package directory at rel; ok is false when it is not a directory.
func (f *FS) metadata(rel, key string, area models.Area) (models.PackageMetadata, bool, error) {
	dir := filepath.Join(f.root, filepath.FromSlash(rel))
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.PackageMetadata{}, false, nil
		}
		return models.PackageMetadata{}, false, fmt.Errorf("storage: stat %s: %w", rel, err)
	}
	if !info.IsDir() {
		return models.PackageMetadata{}, false, nil
	}

	meta := models.PackageMetadata{Path: rel, Key: key, Area: area, UpdatedAt: info.ModTime()}
	for _, name := range descriptor.FileNames {
		p := filepath.Join(dir, name)
		di, err := os.Stat(p)
		if err != nil {
			continue
		}
		cs, err := checksum.File(p)
		if err != nil {
			return models.PackageMetadata{}, false, fmt.Errorf("storage: %w", err)
		}
		meta.Checksum = cs
		if di.ModTime().After(meta.UpdatedAt) {
			meta.UpdatedAt = di.ModTime()
		}
		break
	}
	return meta, true, nil
}

// Read returns the raw bytes of a workspace file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Descriptor loads the descriptor of the package directory at path.
func (f *FS) Descriptor(path string) (*descriptor.Descriptor, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	d, err := descriptor.Load(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: descriptor %s: %w", path, err)
	}
	return d, nil
}

func readDirIfExists(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}
