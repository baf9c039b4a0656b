// Package constraint translates poetry version constraints into PEP 508
// specifier sets.
//
// The translation is purely syntactic: caret and tilde shorthands are
// expanded into explicit ranges, wildcards become glob equality, and
// constraints that already use PEP 508 operators pass through unchanged.
// Nothing here contacts a package index or checks satisfiability.
package constraint

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/uvlift/uvlift/pkg/errors"
)

// versionRegex matches a dotted numeric version with an optional
// pre-release/build tail. The tail may be separated ("1.0.0-alpha",
// "1.2.3.post1") or attached directly in PEP 440 style ("2.0b3", "2.0.0rc1").
var versionRegex = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)*)((?:[-+.][0-9A-Za-z.+-]+)|(?:[A-Za-z][0-9A-Za-z.+-]*))?$`)

// globRegex matches a glob version: fixed numeric components followed by a
// trailing ".*" placeholder (e.g. "1.10.*").
var globRegex = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)*\.\*$`)

// passThroughOps are PEP 508 comparison operators, longest first so that
// prefix matching picks "<=" over "<".
var passThroughOps = []string{"===", "==", "!=", "<=", ">=", "~=", "<", ">"}

// Translate converts a poetry constraint expression into a PEP 508 specifier
// set. An empty string or a bare "*" denotes "any version" and translates to
// the empty specifier. Comma-separated parts are translated independently.
//
// Translation is idempotent: a constraint already in PEP 508 form comes back
// unchanged apart from whitespace stripping.
func Translate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return "", nil
	}

	var specs []string
	for _, part := range strings.Split(raw, ",") {
		spec, err := translatePart(strings.ReplaceAll(part, " ", ""))
		if err != nil {
			return "", err
		}
		if spec != "" {
			specs = append(specs, spec)
		}
	}
	return strings.Join(specs, ","), nil
}

// translatePart converts one comma-free constraint token.
func translatePart(part string) (string, error) {
	switch {
	case part == "" || part == "*":
		return "", nil

	case strings.HasPrefix(part, "^"):
		return translateCaret(part[1:])

	case strings.HasPrefix(part, "~") && !strings.HasPrefix(part, "~="):
		return translateTilde(part[1:])
	}

	for _, op := range passThroughOps {
		if rest, ok := strings.CutPrefix(part, op); ok {
			if versionRegex.MatchString(rest) || globRegex.MatchString(rest) {
				return op + rest, nil
			}
			return "", invalid(part)
		}
	}

	// Bare "=" is poetry shorthand for exact equality.
	if rest, ok := strings.CutPrefix(part, "="); ok {
		if !versionRegex.MatchString(rest) {
			return "", invalid(part)
		}
		return "==" + rest, nil
	}

	if hasWildcard(part) {
		return translateWildcard(part)
	}

	if !versionRegex.MatchString(part) {
		return "", invalid(part)
	}
	return "==" + part, nil
}

// translateCaret expands "^X.Y.Z" into ">=X.Y.Z,<U" where U increments the
// leftmost non-zero component. The upper bound always renders with three
// components.
func translateCaret(rest string) (string, error) {
	nums, err := components(rest)
	if err != nil {
		return "", invalid("^" + rest)
	}

	bump := 0
	for i, n := range nums {
		if n != 0 {
			bump = i
			break
		}
	}
	upper := [3]int{}
	copy(upper[:], nums[:bump])
	upper[bump] = nums[bump] + 1

	return ">=" + rest + ",<" + render(upper), nil
}

// translateTilde expands "~X.Y.Z" (or "~X.Y") into ">=X.Y.Z,<X.(Y+1).0".
// A major-only "~X" allows the whole major series.
func translateTilde(rest string) (string, error) {
	m := versionRegex.FindStringSubmatch(rest)
	if m == nil {
		return "", invalid("~" + rest)
	}

	nums, err := components(rest)
	if err != nil {
		return "", invalid("~" + rest)
	}

	var upper [3]int
	if strings.Contains(m[1], ".") {
		upper = [3]int{nums[0], nums[1] + 1, 0}
	} else {
		upper = [3]int{nums[0] + 1, 0, 0}
	}

	return ">=" + rest + ",<" + render(upper), nil
}

// translateWildcard converts trailing-wildcard constraints ("1.10.*", "1.x")
// into glob equality. Multiple trailing wildcards collapse into a single
// placeholder, so "1.x.x" becomes "==1.*". A leading wildcard means any
// version.
func translateWildcard(part string) (string, error) {
	tokens := strings.Split(part, ".")

	fixed := len(tokens)
	for i, tok := range tokens {
		if isWildcardToken(tok) {
			fixed = i
			break
		}
	}

	// Everything after the first wildcard must be a wildcard too;
	// "1.*.2" has no range interpretation.
	for _, tok := range tokens[fixed:] {
		if !isWildcardToken(tok) {
			return "", invalid(part)
		}
	}
	for _, tok := range tokens[:fixed] {
		if _, err := strconv.Atoi(tok); err != nil {
			return "", invalid(part)
		}
	}

	if fixed == 0 {
		return "", nil
	}
	return "==" + strings.Join(tokens[:fixed], ".") + ".*", nil
}

func hasWildcard(part string) bool {
	for _, tok := range strings.Split(part, ".") {
		if isWildcardToken(tok) {
			return true
		}
	}
	return false
}

func isWildcardToken(tok string) bool {
	return tok == "*" || tok == "x" || tok == "X"
}

// components parses the numeric part of a version into [major, minor, patch],
// treating missing components as 0. A pre-release tail is allowed and
// ignored for bound computation.
func components(version string) ([3]int, error) {
	m := versionRegex.FindStringSubmatch(version)
	if m == nil {
		return [3]int{}, invalid(version)
	}

	var nums [3]int
	parts := strings.Split(m[1], ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return [3]int{}, invalid(version)
		}
		nums[i] = n
	}
	return nums, nil
}

func render(nums [3]int) string {
	return strconv.Itoa(nums[0]) + "." + strconv.Itoa(nums[1]) + "." + strconv.Itoa(nums[2])
}

func invalid(part string) error {
	return errors.New(errors.ErrCodeInvalidConstraint, "invalid version constraint: %q", part)
}
