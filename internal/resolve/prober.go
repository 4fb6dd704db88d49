package resolve

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	semver "github.com/Masterminds/semver/v3"

	"github.com/starford/sm/internal/descriptor"
	"github.com/starford/sm/internal/models"
)

// Prober checks a single install area for a package. It only stats, lists
// directories and reads descriptors.
type Prober struct {
	logger *slog.Logger
}

// NewProber creates a Prober. A nil logger discards probe traces.
func NewProber(logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Prober{logger: logger}
}

// Applies reports whether id is ever looked up in the given area.
// Bare names live only in the flat area; fully-qualified and explicit
// identifiers only in the deps area.
func Applies(area models.Area, id Identifier) bool {
	switch id.(type) {
	case BareName:
		return area == models.AreaFlat
	case FullyQualifiedInstalled, ExplicitPath:
		return area == models.AreaDeps
	default:
		return true
	}
}

// Probe returns the package directory for id under root, or ok=false.
func (p *Prober) Probe(root SearchRoot, id Identifier) (dir string, ok bool, err error) {
	if !Applies(root.Area, id) {
		return "", false, nil
	}
	switch v := id.(type) {
	case BareName:
		return p.probeFlat(root.Dir, v.Key(), v.Version)
	case HostQualified:
		if root.Area == models.AreaFlat {
			return p.probeFlat(root.Dir, v.Key(), v.Version)
		}
		return p.probeInstalled(root.Dir, v.Key(), v.Version)
	case FlattenedQualified:
		if root.Area == models.AreaFlat {
			return p.probeFlat(root.Dir, v.Key(), v.Version)
		}
		return p.probeInstalled(root.Dir, v.Key(), v.Version)
	case FullyQualifiedInstalled, ExplicitPath:
		return p.probeLiteral(root.Dir, v.Key())
	}
	return "", false, fmt.Errorf("resolve: unsupported identifier %T", id)
}

// probeFlat matches <root>/<key>. The hint does not change the directory
// but a version constraint must be met by the installed descriptor.
func (p *Prober) probeFlat(root, key string, hint Hint) (string, bool, error) {
	dir := filepath.Join(root, key)
	ok, err := isDir(dir)
	if err != nil || !ok {
		return "", false, err
	}
	if hint.Constraint == nil {
		return dir, true, nil
	}
	d, err := descriptor.Load(dir)
	if err != nil {
		p.logger.Debug("probe: no usable descriptor for version hint",
			slog.String("dir", dir), slog.String("hint", hint.Raw), slog.String("error", err.Error()))
		return "", false, nil
	}
	if !d.Satisfies(hint.Constraint) {
		p.logger.Debug("probe: installed version does not satisfy hint",
			slog.String("dir", dir), slog.String("hint", hint.Raw), slog.String("version", d.Version))
		return "", false, nil
	}
	return dir, true, nil
}

func (p *Prober) probeLiteral(root, literal string) (string, bool, error) {
	dir := filepath.Join(root, filepath.FromSlash(literal))
	ok, err := isDir(dir)
	if err != nil || !ok {
		return "", false, err
	}
	return dir, true, nil
}

type installCandidate struct {
	dir     string
	major   int
	channel string
	version *semver.Version
}

// probeInstalled enumerates <root>/<key>~<major>/source/installed/<channel>
// and picks one: highest major, then highest descriptor version (unversioned
// last), then channel name.
func (p *Prober) probeInstalled(root, key string, hint Hint) (string, bool, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve: list %s: %w", root, err)
	}

	var cands []installCandidate
	prefix := key + flatSep
	for _, e := range entries {
		majorStr, found := strings.CutPrefix(e.Name(), prefix)
		if !found || !digitsRe.MatchString(majorStr) {
			continue
		}
		if hint.Major != "" && majorStr != hint.Major {
			continue
		}
		major, _ := strconv.Atoi(majorStr)

		channelsDir := filepath.Join(root, e.Name(), filepath.FromSlash(installedSegment))
		channels, err := os.ReadDir(channelsDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
				continue
			}
			return "", false, fmt.Errorf("resolve: list %s: %w", channelsDir, err)
		}
		for _, c := range channels {
			if hint.IsChannel() && c.Name() != hint.Raw {
				continue
			}
			dir := filepath.Join(channelsDir, c.Name())
			ok, err := isDir(dir)
			if err != nil {
				return "", false, err
			}
			if !ok {
				continue
			}
			cand := installCandidate{dir: dir, major: major, channel: c.Name()}
			if d, err := descriptor.Load(dir); err == nil {
				cand.version, _ = d.SemVer()
			}
			if hint.Constraint != nil && (cand.version == nil || !hint.Constraint.Check(cand.version)) {
				p.logger.Debug("probe: install does not satisfy hint",
					slog.String("dir", dir), slog.String("hint", hint.Raw))
				continue
			}
			cands = append(cands, cand)
		}
	}
	if len(cands) == 0 {
		return "", false, nil
	}

	slices.SortFunc(cands, compareCandidates)
	if len(cands) > 1 {
		p.logger.Debug("probe: several installs match, picking first",
			slog.String("root", root), slog.String("key", key),
			slog.Int("candidates", len(cands)), slog.String("picked", cands[0].dir))
	}
	return cands[0].dir, true, nil
}

func compareCandidates(a, b installCandidate) int {
	if c := cmp.Compare(b.major, a.major); c != 0 {
		return c
	}
	switch {
	case a.version != nil && b.version == nil:
		return -1
	case a.version == nil && b.version != nil:
		return 1
	case a.version != nil && b.version != nil:
		if c := b.version.Compare(a.version); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.channel, b.channel)
}

// isDir follows symlinks, so linked installs count.
func isDir(p string) (bool, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
			return false, nil
		}
		return false, fmt.Errorf("resolve: stat %s: %w", p, err)
	}
	return info.IsDir(), nil
}

// isNotDir matches ENOTDIR, returned when a path component is a regular file.
func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
