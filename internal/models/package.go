// Package models defines the domain types shared by storage, index and resolver.
package models

import "time"

// On-disk layout shared by the resolver and the inventory.
const (
	FlatDirName = "node_modules"
	DepsDirName = ".deps"
	// InstalledPath sits between host~org~name~major and the channel directory.
	InstalledPath = "source/installed"
)

// Area identifies which install-area convention a directory follows.
type Area string

const (
	// AreaFlat is a node_modules-style directory holding packages named by their canonical key.
	AreaFlat Area = "flat"
	// AreaDeps is a .deps-style directory holding host~org~name~major/source/installed/channel trees.
	AreaDeps Area = "deps"
)

// Valid reports whether a is a known area.
func (a Area) Valid() bool {
	return a == AreaFlat || a == AreaDeps
}

// PackageMetadata is a lightweight record for one installed package, as found on disk.
type PackageMetadata struct {
	Path      string    `json:"path"` // relative to the workspace root, slash separated
	Key       string    `json:"key"`
	Area      Area      `json:"area"`
	Checksum  string    `json:"checksum"` // of the descriptor, empty when there is none
	UpdatedAt time.Time `json:"updated_at"`
}
