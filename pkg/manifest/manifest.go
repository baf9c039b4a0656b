// Package manifest defines the intermediate model shared by the Poetry
// parser and the uv emitters.
//
// The model is built once by [github.com/uvlift/uvlift/pkg/poetry.Parse],
// is immutable afterwards, and is read twice: once per emitted manifest
// variant. Keeping both emitters on the same model guarantees that the
// pinned and range outputs reference the identical set of dependencies,
// groups and features.
package manifest

import "strings"

// MainGroup is the name of the implicit main dependency group.
const MainGroup = "main"

// Kind classifies where a dependency comes from.
type Kind int

const (
	// Registry dependencies are fetched from a package index and carry a
	// version constraint.
	Registry Kind = iota
	// Path dependencies point at a local directory. They never carry a
	// version.
	Path
	// Git dependencies reference one or more git URLs, each pinned to a
	// revision. They never carry a version.
	Git
)

// String returns the kind identifier used in logs and summaries.
func (k Kind) String() string {
	switch k {
	case Path:
		return "path"
	case Git:
		return "git"
	default:
		return "registry"
	}
}

// GitAlternative is one (url, rev) pair of a git dependency, optionally
// restricted to a python interpreter range.
type GitAlternative struct {
	URL    string // repository URL
	Rev    string // revision, tag or branch
	Python string // raw python-version marker ("" when the single form omits it)
}

// Dependency is one declared dependency entry.
type Dependency struct {
	Name       string           // normalized package name, unique within its group
	Constraint string           // raw source constraint ("" means any version)
	Extras     []string         // requested extras, in declaration order
	Kind       Kind             // registry, path or git
	Path       string           // directory, for Path kind
	Develop    bool             // editable install, for Path kind
	Git        []GitAlternative // alternatives, for Git kind (one in the common case)
	Optional   bool             // declared optional; activated via a Feature
}

// Group is a named set of dependencies. The main group has name [MainGroup].
type Group struct {
	Name         string
	Dependencies []Dependency
}

// Dependency returns the entry with the given normalized name, if present.
func (g *Group) Dependency(name string) (*Dependency, bool) {
	for i := range g.Dependencies {
		if g.Dependencies[i].Name == name {
			return &g.Dependencies[i], true
		}
	}
	return nil, false
}

// Feature is an optional feature (a poetry "extra"): a name activating a set
// of dependencies declared in the main group.
type Feature struct {
	Name         string
	Dependencies []string // names of main-group dependencies
}

// Author is a project author in name/email form.
type Author struct {
	Name  string
	Email string
}

// Project is the immutable intermediate model of one source manifest.
type Project struct {
	Name        string
	Version     string
	Description string
	Authors     []Author
	Python      string // raw python-version support constraint, e.g. ">=3.10,<3.13"
	Groups      []Group
	Features    []Feature
}

// Main returns the main dependency group. A project parsed from a valid
// manifest always has one; the fallback covers hand-built models.
func (p *Project) Main() *Group {
	for i := range p.Groups {
		if p.Groups[i].Name == MainGroup {
			return &p.Groups[i]
		}
	}
	return &Group{Name: MainGroup}
}

// NamedGroups returns all groups except the main one, in declaration order.
func (p *Project) NamedGroups() []Group {
	var groups []Group
	for _, g := range p.Groups {
		if g.Name != MainGroup {
			groups = append(groups, g)
		}
	}
	return groups
}

// NormalizeName canonicalizes a package name for lookups: lowercase with
// underscores and dots folded to dashes, per the PyPA normalization rule.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "-")
	return strings.ReplaceAll(name, ".", "-")
}
