// Package pyversion provides interval arithmetic over python interpreter
// versions, used to pick the right alternative of a multi-variant git
// dependency.
//
// Intervals are thin wrappers around github.com/Masterminds/semver/v3
// constraints, so poetry shorthands ("^3.10", "~3.8") and explicit ranges
// (">=3.10,<3.13") both parse directly.
package pyversion

import (
	"strings"

	mm "github.com/Masterminds/semver/v3"

	"github.com/uvlift/uvlift/pkg/errors"
	"github.com/uvlift/uvlift/pkg/manifest"
)

// Interval is a python interpreter version range.
//
// The zero value (and the raw constraints "" and "*") is the unbounded
// interval containing every version.
type Interval struct {
	raw   string
	c     *mm.Constraints
	lower *mm.Version
}

// New parses a raw python-version constraint into an Interval.
func New(raw string) (Interval, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return Interval{raw: raw}, nil
	}

	c, err := mm.NewConstraint(raw)
	if err != nil {
		return Interval{}, errors.Wrap(errors.ErrCodeInvalidPythonRange, err, "invalid python version range: %q", raw)
	}

	lower, err := lowerBound(raw)
	if err != nil {
		return Interval{}, err
	}

	return Interval{raw: raw, c: c, lower: lower}, nil
}

// Contains reports whether v lies inside the interval.
func (i Interval) Contains(v *mm.Version) bool {
	if i.c == nil {
		return true
	}
	return i.c.Check(v)
}

// Lower returns the inclusive lower bound of the interval. The unbounded
// interval has lower bound 0.0.0.
func (i Interval) Lower() *mm.Version {
	if i.lower == nil {
		return mm.New(0, 0, 0, "", "")
	}
	return i.lower
}

// String returns the raw constraint the interval was parsed from.
func (i Interval) String() string { return i.raw }

// lowerBound extracts the inclusive lower bound from a raw constraint by
// scanning its comma-separated parts for an anchoring operator. Upper-bound
// and exclusion parts contribute nothing.
func lowerBound(raw string) (*mm.Version, error) {
	var best *mm.Version
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "*" {
			continue
		}
		if strings.HasPrefix(part, "<") || strings.HasPrefix(part, "!=") {
			continue
		}
		for _, op := range []string{">=", "==", "^", "~", ">", "="} {
			part = strings.TrimPrefix(part, op)
		}
		v, err := mm.NewVersion(part)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPythonRange, err, "invalid python version range: %q", raw)
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if best == nil {
		return nil, errors.New(errors.ErrCodeInvalidPythonRange, "python version range %q has no lower bound", raw)
	}
	return best, nil
}

// SelectAlternative picks the single git alternative compatible with the
// project's python support interval.
//
// An alternative is compatible when its marker range contains the project's
// lower python bound. When several markers qualify, the one anchored at the
// highest interpreter version wins: it targets the versions the project
// supports going forward. No compatible alternative is a fatal condition:
// the project declares support for interpreters no alternative covers.
func SelectAlternative(name string, alts []manifest.GitAlternative, project Interval) (manifest.GitAlternative, error) {
	if len(alts) == 0 {
		return manifest.GitAlternative{}, errors.New(errors.ErrCodeInternal, "git dependency %s has no alternatives", name)
	}
	if len(alts) == 1 && alts[0].Python == "" {
		return alts[0], nil
	}

	var (
		selected manifest.GitAlternative
		selLower *mm.Version
		found    bool
	)
	for _, alt := range alts {
		marker, err := New(alt.Python)
		if err != nil {
			return manifest.GitAlternative{}, errors.Wrap(errors.GetCode(err), err, "git dependency %s", name)
		}
		if !marker.Contains(project.Lower()) {
			continue
		}
		if !found || marker.Lower().GreaterThan(selLower) {
			selected = alt
			selLower = marker.Lower()
			found = true
		}
	}

	if !found {
		return manifest.GitAlternative{}, errors.New(errors.ErrCodeMarkerCoverage,
			"git dependency %s: no alternative covers python %s", name, project)
	}
	return selected, nil
}
