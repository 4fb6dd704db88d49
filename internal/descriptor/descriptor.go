// Package descriptor reads the package.json (or package.yaml) found at an installed package root.
package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	semver "github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// File names probed at a package root, in order.
var FileNames = []string{"package.json", "package.yaml"}

// ErrMissing is returned by Load when a package root has no descriptor.
var ErrMissing = errors.New("descriptor: missing")

// Descriptor holds the fields of a package descriptor that sm cares about.
type Descriptor struct {
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version" yaml:"version"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Main        string   `json:"main,omitempty" yaml:"main"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords"`
}

// Parse decodes raw descriptor bytes. The format is chosen by the file name's extension.
func Parse(name string, data []byte) (*Descriptor, error) {
	var d Descriptor
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("descriptor: parse %s: %w", name, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("descriptor: parse %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("descriptor: unsupported file %s", name)
	}
	d.Name = strings.TrimSpace(d.Name)
	d.Version = strings.TrimSpace(d.Version)
	return &d, nil
}

// Load reads the first descriptor found in dir.
func Load(dir string) (*Descriptor, error) {
	for _, name := range FileNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("descriptor: read %s: %w", name, err)
		}
		return Parse(name, data)
	}
	return nil, ErrMissing
}

// IsDescriptor reports whether base is one of the recognised descriptor file names.
func IsDescriptor(base string) bool {
	for _, name := range FileNames {
		if base == name {
			return true
		}
	}
	return false
}

// SemVer parses the declared version. Descriptors without a version return an error.
func (d *Descriptor) SemVer() (*semver.Version, error) {
	if d.Version == "" {
		return nil, fmt.Errorf("descriptor: %q declares no version", d.Name)
	}
	v, err := semver.NewVersion(d.Version)
	if err != nil {
		return nil, fmt.Errorf("descriptor: version %q: %w", d.Version, err)
	}
	return v, nil
}

// Satisfies reports whether the declared version meets c.
// An unparseable or absent version never satisfies a constraint.
func (d *Descriptor) Satisfies(c *semver.Constraints) bool {
	v, err := d.SemVer()
	if err != nil {
		return false
	}
	return c.Check(v)
}
