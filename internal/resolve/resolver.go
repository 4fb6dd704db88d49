// Package resolve maps package identifiers onto installed package directories.
//
// A lookup starts at the directory of the calling file and walks towards the
// filesystem root. Every ancestor contributes two install areas: a flat
// node_modules directory, where packages are named by their canonical key,
// and a .deps directory holding host~org~name~major/source/installed/channel
// trees. The nearest match wins.
//
// Supported identifier notations:
//
//	org.pinf.lib                                          bare reverse-domain name
//	org.pinf.lib@0.1.4                                    ... with a version hint
//	github.com/pinf/org.pinf.lib[/0.1.4]                  host-qualified
//	github.com~pinf~org.pinf.lib[/0.1.4]                  flattened
//	github.com~pinf~org.pinf.lib~0/source/installed/master  fully qualified install
//	.deps/<path>                                          literal path under .deps
//
// Resolution is read-only and holds no state between calls.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Found locates the package, and optionally a module inside it.
type Found struct {
	// Package is the package root relative to the caller's directory, slash separated.
	Package string `json:"package"`
	// Module is the normalised module path relative to Package; empty when none was requested.
	Module string `json:"module,omitempty"`
}

// Result is the outcome of one resolution.
type Result struct {
	From   string `json:"from"`
	Origin string `json:"origin"`
	Found  Found  `json:"found"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger routes probe traces to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithModuleOptions overrides the lib/ + .js module conventions.
func WithModuleOptions(opts ModuleOptions) Option {
	return func(r *Resolver) {
		r.module = opts
	}
}

// Resolver is bound to one calling file. It is immutable and safe for concurrent use.
type Resolver struct {
	from   string
	origin string
	module ModuleOptions
	logger *slog.Logger
	prober *Prober
}

// For binds a resolver to the file at from. Relative paths are made absolute
// against the working directory; the file itself need not exist.
func For(from string, opts ...Option) (*Resolver, error) {
	if from == "" {
		return nil, errors.New("resolve: caller location is required")
	}
	abs, err := filepath.Abs(from)
	if err != nil {
		return nil, fmt.Errorf("resolve: caller location: %w", err)
	}
	r := &Resolver{
		from:   abs,
		origin: filepath.Dir(abs),
		module: DefaultModuleOptions(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.prober = NewProber(r.logger)
	return r, nil
}

// Resolve resolves id (and module, when non-empty) from the file at from.
func Resolve(ctx context.Context, from, id, module string, opts ...Option) (*Result, error) {
	r, err := For(from, opts...)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, id, module)
}

// From returns the absolute path of the bound caller file.
func (r *Resolver) From() string { return r.from }

// Origin returns the directory of the bound caller file.
func (r *Resolver) Origin() string { return r.origin }

// Resolve locates the package named by id. A non-empty module is normalised
// and reported in Found.Module.
func (r *Resolver) Resolve(ctx context.Context, id, module string) (*Result, error) {
	ident, err := ParseIdentifier(id)
	if err != nil {
		return nil, err
	}

	var mod string
	if module != "" {
		if mod, err = NormalizeModule(module, r.module); err != nil {
			return nil, err
		}
	}

	var probed []string
	for root := range SearchRoots(r.origin) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !Applies(root.Area, ident) {
			continue
		}
		probed = append(probed, root.Dir)

		dir, ok, err := r.prober.Probe(root, ident)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		rel, err := filepath.Rel(r.origin, dir)
		if err != nil {
			return nil, fmt.Errorf("resolve: relative path to %s: %w", dir, err)
		}
		r.logger.Debug("resolve: found",
			slog.String("identifier", id),
			slog.String("area", string(root.Area)),
			slog.String("dir", dir))

		return &Result{
			From:   r.from,
			Origin: r.origin,
			Found: Found{
				Package: filepath.ToSlash(rel),
				Module:  mod,
			},
		}, nil
	}

	return nil, &NotFoundError{Identifier: id, Probed: probed}
}
