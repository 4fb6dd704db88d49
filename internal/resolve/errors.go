package resolve

import (
	"fmt"

	"github.com/starford/sm/internal/apperr"
)

// IdentifierError is returned when a specifier matches none of the supported notations.
type IdentifierError struct {
	Identifier string
	Reason     string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("invalid package identifier %q: %s", e.Identifier, e.Reason)
}

// Unwrap returns apperr.ErrInvalidIdentifier so callers can use errors.Is.
func (e *IdentifierError) Unwrap() error { return apperr.ErrInvalidIdentifier }

// NotFoundError is returned when no search root holds the package.
// Probed lists every install area that was checked, nearest first.
type NotFoundError struct {
	Identifier string
	Probed     []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("package %q not found in %d install areas", e.Identifier, len(e.Probed))
}

// Unwrap returns apperr.ErrPackageNotFound so callers can use errors.Is.
func (e *NotFoundError) Unwrap() error { return apperr.ErrPackageNotFound }

// ModuleSpecError is returned for module specs that are absolute or escape the package root.
type ModuleSpecError struct {
	Spec   string
	Reason string
}

func (e *ModuleSpecError) Error() string {
	return fmt.Sprintf("invalid module spec %q: %s", e.Spec, e.Reason)
}

// Unwrap returns apperr.ErrInvalidModuleSpec so callers can use errors.Is.
func (e *ModuleSpecError) Unwrap() error { return apperr.ErrInvalidModuleSpec }

func invalidIdentifier(s, reason string) error {
	return &IdentifierError{Identifier: s, Reason: reason}
}
