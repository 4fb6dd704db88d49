// Package apperr holds the sentinel errors shared by the resolver and its transports.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidIdentifier = errors.New("invalid package identifier")
	ErrPackageNotFound   = errors.New("package not found")
	ErrInvalidModuleSpec = errors.New("invalid module spec")
	// ErrOutsideWorkspace rejects caller locations that escape the served workspace.
	ErrOutsideWorkspace = errors.New("location outside workspace")
)
