package resolve

import (
	"path"
	"slices"
	"strings"
)

// ModuleOptions controls module path normalisation.
type ModuleOptions struct {
	// Dir is prefixed to specs that name no directory.
	Dir string
	// Ext is appended to specs without a recognised extension.
	Ext string
	// Extensions are the recognised source-file extensions.
	Extensions []string
}

// DefaultModuleOptions returns the lib/ + .js convention.
func DefaultModuleOptions() ModuleOptions {
	return ModuleOptions{
		Dir:        "lib",
		Ext:        ".js",
		Extensions: []string{".js", ".json", ".mjs", ".cjs"},
	}
}

// NormalizeModule rewrites an in-package module spec to a package-relative
// file path: "component", "component.js", "lib/component" and
// "lib/component.js" all become "lib/component.js". It never touches disk.
func NormalizeModule(spec string, opts ModuleOptions) (string, error) {
	switch {
	case spec == "":
		return "", &ModuleSpecError{Spec: spec, Reason: "empty"}
	case strings.Contains(spec, `\`):
		return "", &ModuleSpecError{Spec: spec, Reason: "backslashes are not allowed"}
	case path.IsAbs(spec):
		return "", &ModuleSpecError{Spec: spec, Reason: "absolute paths are not allowed"}
	case strings.HasSuffix(spec, "/"):
		return "", &ModuleSpecError{Spec: spec, Reason: "names a directory"}
	}

	p := path.Clean(spec)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", &ModuleSpecError{Spec: spec, Reason: "escapes the package root"}
	}

	// The directory rule looks at the cleaned path, so "./component" and
	// "x/../component" land in opts.Dir like "component" does.
	if !strings.Contains(p, "/") && opts.Dir != "" {
		p = path.Join(opts.Dir, p)
	}
	if !slices.Contains(opts.Extensions, path.Ext(p)) {
		p += opts.Ext
	}
	return p, nil
}
