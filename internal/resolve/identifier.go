package resolve

import (
	"regexp"
	"strconv"
	"strings"

	semver "github.com/Masterminds/semver/v3"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sm/internal/models"
)

const (
	// ExplicitMarker prefixes identifiers that address the deps area literally.
	ExplicitMarker = DepsDir + "/"

	flatSep          = "~"
	installedSegment = models.InstalledPath
)

var (
	segmentRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	hintRe    = regexp.MustCompile(`^[A-Za-z0-9.^~<>=*+,|_-]+$`)
	digitsRe  = regexp.MustCompile(`^[0-9]+$`)
)

// Identifier is a parsed package specifier. The concrete type records which
// notation was used: BareName, HostQualified, FlattenedQualified,
// FullyQualifiedInstalled or ExplicitPath.
type Identifier interface {
	// Key is the canonical directory name (or literal sub-path) the prober matches.
	Key() string
	String() string

	identifier()
}

// Hint is the optional version or channel qualifier of an identifier.
// Constraint is nil for channel hints such as "master".
type Hint struct {
	Raw        string
	Constraint *semver.Constraints
	// Major is set when Raw is a plain version, e.g. "0" for "0.1.4".
	Major string
}

// IsZero reports whether no hint was given.
func (h Hint) IsZero() bool { return h.Raw == "" }

// IsChannel reports whether the hint names a channel rather than a version.
func (h Hint) IsChannel() bool { return h.Raw != "" && h.Constraint == nil }

// BareName is a reverse-domain name with an optional @version, e.g. org.pinf.lib@0.1.4.
type BareName struct {
	Name    string
	Version Hint
}

func (b BareName) Key() string { return b.Name }

func (b BareName) String() string {
	if b.Version.IsZero() {
		return b.Name
	}
	return b.Name + "@" + b.Version.Raw
}

func (BareName) identifier() {}

// qualifiedName is the host/org/name triple shared by the host notations.
type qualifiedName struct {
	Host string
	Org  string
	Name string
}

func (q qualifiedName) key() string {
	return q.Host + flatSep + q.Org + flatSep + q.Name
}

// HostQualified is the slash notation host/org/name[/version].
type HostQualified struct {
	qualifiedName
	Version Hint
}

func (h HostQualified) Key() string { return h.key() }

func (h HostQualified) String() string {
	s := h.Host + "/" + h.Org + "/" + h.Name
	if !h.Version.IsZero() {
		s += "/" + h.Version.Raw
	}
	return s
}

func (HostQualified) identifier() {}

// FlattenedQualified is the tilde notation host~org~name[/version].
type FlattenedQualified struct {
	qualifiedName
	Version Hint
}

func (f FlattenedQualified) Key() string { return f.key() }

func (f FlattenedQualified) String() string {
	s := f.key()
	if !f.Version.IsZero() {
		s += "/" + f.Version.Raw
	}
	return s
}

func (FlattenedQualified) identifier() {}

// FullyQualifiedInstalled is host~org~name~major/source/installed/channel.
// It is matched verbatim; no version inference takes place.
type FullyQualifiedInstalled struct {
	qualifiedName
	Major   string
	Channel string
}

func (f FullyQualifiedInstalled) Key() string {
	return f.key() + flatSep + f.Major + "/" + installedSegment + "/" + f.Channel
}

func (f FullyQualifiedInstalled) String() string { return f.Key() }

func (FullyQualifiedInstalled) identifier() {}

// ExplicitPath is a literal sub-path under the deps area, written with the .deps/ marker.
type ExplicitPath struct {
	Path string
}

func (e ExplicitPath) Key() string { return e.Path }

func (e ExplicitPath) String() string { return ExplicitMarker + e.Path }

func (ExplicitPath) identifier() {}

// ParseIdentifier classifies s into one of the supported notations.
func ParseIdentifier(s string) (Identifier, error) {
	if s == "" {
		return nil, invalidIdentifier(s, "empty identifier")
	}
	if strings.ContainsAny(s, " \t\r\n\\") {
		return nil, invalidIdentifier(s, "contains whitespace or backslash")
	}
	if rest, ok := strings.CutPrefix(s, ExplicitMarker); ok {
		return parseExplicit(s, rest)
	}
	switch {
	case strings.Contains(notationHead(s), flatSep):
		return parseFlattened(s)
	case strings.Contains(s, "/"):
		return parseHostPath(s)
	default:
		return parseBare(s)
	}
}

// notationHead strips the version hint from s: everything from the first "/"
// on, or from the last "@" for slash-free forms. Hints may contain "~"
// (tilde ranges), so only the head decides whether s is flattened.
func notationHead(s string) string {
	if head, _, ok := strings.Cut(s, "/"); ok {
		return head
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		return s[:i]
	}
	return s
}

func parseBare(s string) (Identifier, error) {
	name, version := s, ""
	if i := strings.LastIndex(s, "@"); i >= 0 {
		name, version = s[:i], s[i+1:]
		if version == "" {
			return nil, invalidIdentifier(s, "empty version after @")
		}
	}
	if err := checkSegment(name, "name"); err != nil {
		return nil, invalidIdentifier(s, err.Error())
	}
	hint, err := parseHint(version)
	if err != nil {
		return nil, invalidIdentifier(s, err.Error())
	}
	return BareName{Name: name, Version: hint}, nil
}

func parseHostPath(s string) (Identifier, error) {
	segs := strings.Split(s, "/")
	if len(segs) != 3 && len(segs) != 4 {
		return nil, invalidIdentifier(s, "expected host/org/name[/version]")
	}
	q, err := checkQualified(segs[0], segs[1], segs[2])
	if err != nil {
		return nil, invalidIdentifier(s, err.Error())
	}
	var hint Hint
	if len(segs) == 4 {
		if hint, err = parseHint(segs[3]); err != nil {
			return nil, invalidIdentifier(s, err.Error())
		}
	}
	return HostQualified{qualifiedName: q, Version: hint}, nil
}

func parseFlattened(s string) (Identifier, error) {
	head, tail, hasTail := strings.Cut(s, "/")
	parts := strings.Split(head, flatSep)

	switch len(parts) {
	case 3:
		q, err := checkQualified(parts[0], parts[1], parts[2])
		if err != nil {
			return nil, invalidIdentifier(s, err.Error())
		}
		var hint Hint
		if hasTail {
			if strings.Contains(tail, "/") {
				return nil, invalidIdentifier(s, "expected host~org~name[/version]")
			}
			if hint, err = parseHint(tail); err != nil {
				return nil, invalidIdentifier(s, err.Error())
			}
		}
		return FlattenedQualified{qualifiedName: q, Version: hint}, nil

	case 4:
		q, err := checkQualified(parts[0], parts[1], parts[2])
		if err != nil {
			return nil, invalidIdentifier(s, err.Error())
		}
		if !digitsRe.MatchString(parts[3]) {
			return nil, invalidIdentifier(s, "major version must be numeric")
		}
		channel, ok := strings.CutPrefix(tail, installedSegment+"/")
		if !hasTail || !ok {
			return nil, invalidIdentifier(s, "expected host~org~name~major/"+installedSegment+"/channel")
		}
		if err := checkSegment(channel, "channel"); err != nil {
			return nil, invalidIdentifier(s, err.Error())
		}
		return FullyQualifiedInstalled{qualifiedName: q, Major: parts[3], Channel: channel}, nil
	}
	return nil, invalidIdentifier(s, "expected 3 or 4 "+flatSep+"-separated segments")
}

func parseExplicit(s, rest string) (Identifier, error) {
	if rest == "" {
		return nil, invalidIdentifier(s, "empty path after "+ExplicitMarker)
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return nil, invalidIdentifier(s, "path must not contain empty, . or .. segments")
		}
	}
	return ExplicitPath{Path: rest}, nil
}

func checkQualified(host, org, name string) (qualifiedName, error) {
	if err := checkSegment(host, "host"); err != nil {
		return qualifiedName{}, err
	}
	if !strings.Contains(host, ".") {
		return qualifiedName{}, validation.NewError("validation_host", "first segment is not a host name")
	}
	if err := checkSegment(org, "org"); err != nil {
		return qualifiedName{}, err
	}
	if err := checkSegment(name, "name"); err != nil {
		return qualifiedName{}, err
	}
	return qualifiedName{Host: host, Org: org, Name: name}, nil
}

func checkSegment(v, what string) error {
	return validation.Validate(v,
		validation.Required.Error(what+" is empty"),
		validation.Match(segmentRe).Error(what+" has invalid characters"),
	)
}

// parseHint turns a raw qualifier into a version constraint when it parses as
// one, and into a channel name otherwise.
func parseHint(raw string) (Hint, error) {
	if raw == "" {
		return Hint{}, nil
	}
	if err := validation.Validate(raw, validation.Match(hintRe).Error("version has invalid characters")); err != nil {
		return Hint{}, err
	}
	h := Hint{Raw: raw}
	if c, err := semver.NewConstraint(raw); err == nil {
		h.Constraint = c
		if v, err := semver.NewVersion(raw); err == nil {
			h.Major = strconv.FormatUint(v.Major(), 10)
		}
	}
	return h, nil
}
