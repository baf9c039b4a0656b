// Package uv emits PEP 621 / uv manifests from the intermediate model.
//
// Two projection functions share one immutable model: EmitRange keeps the
// translated human-authored constraints, EmitPinned forces every registry
// entry to the exact version of a prior resolution. Both produce documents
// with identical structure; only the version expression of registry entries
// differs. Fatal model errors (unparseable constraints, uncovered git
// markers, dangling feature references) abort before any document exists.
package uv

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/uvlift/uvlift/pkg/constraint"
	"github.com/uvlift/uvlift/pkg/errors"
	"github.com/uvlift/uvlift/pkg/manifest"
	"github.com/uvlift/uvlift/pkg/pyversion"
	"github.com/uvlift/uvlift/pkg/requirements"
)

// Document is one complete output manifest.
type Document struct {
	Project          Project             `toml:"project"`
	DependencyGroups map[string][]string `toml:"dependency-groups,omitempty"`
	Tool             Tool                `toml:"tool"`
	BuildSystem      map[string]any      `toml:"build-system,omitempty"`
}

// Project is the [project] table in PEP 621 form.
type Project struct {
	Name                 string              `toml:"name"`
	Version              string              `toml:"version,omitempty"`
	Description          string              `toml:"description,omitempty"`
	RequiresPython       string              `toml:"requires-python,omitempty"`
	Authors              []Author            `toml:"authors,omitempty"`
	Dependencies         []string            `toml:"dependencies"`
	OptionalDependencies map[string][]string `toml:"optional-dependencies,omitempty"`
}

// Author is a PEP 621 author table.
type Author struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

// Tool is the [tool] table of the output document. Extra holds the
// [tool.*] tables of the source document other than poetry (black, mypy and
// friends), carried through verbatim.
type Tool struct {
	UV     UV             `toml:"uv"`
	Poetry map[string]any `toml:"poetry,omitempty"`
	Extra  map[string]any `toml:"-"`
}

// UV is the [tool.uv] table.
type UV struct {
	Sources map[string]Source `toml:"sources,omitempty"`
}

// Source is one [tool.uv.sources] entry: a local path or the single git
// (url, rev) pair selected for the project's python interval.
type Source struct {
	Git      string `toml:"git,omitempty"`
	Rev      string `toml:"rev,omitempty"`
	Path     string `toml:"path,omitempty"`
	Editable bool   `toml:"editable,omitempty"`
}

// Options configures emission.
type Options struct {
	// Logger receives non-fatal diagnostics, notably registry entries the
	// resolved index has no version for. Optional.
	Logger func(format string, args ...any)
}

func (o Options) logf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger(format, args...)
	}
}

// EmitRange produces the range variant: registry entries keep their
// human-authored constraint, translated into PEP 508 form.
func EmitRange(p *manifest.Project, opts Options) (*Document, error) {
	return emit(p, nil, opts)
}

// EmitPinned produces the pinned variant: every registry entry is forced to
// the exact version found in idx. Entries without a resolved version fall
// back to the translated constraint and are reported through opts.Logger.
// Path and git entries are never pinned; their identity is the path or rev.
func EmitPinned(p *manifest.Project, idx requirements.Index, opts Options) (*Document, error) {
	return emit(p, idx, opts)
}

// emit is the single projection both variants share. idx == nil selects the
// range variant.
func emit(p *manifest.Project, idx requirements.Index, opts Options) (*Document, error) {
	interval, err := pyversion.New(p.Python)
	if err != nil {
		return nil, err
	}
	requiresPython, err := constraint.Translate(p.Python)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "requires-python")
	}

	if err := checkFeatures(p); err != nil {
		return nil, err
	}

	doc := &Document{
		Project: Project{
			Name:           p.Name,
			Version:        p.Version,
			Description:    p.Description,
			RequiresPython: requiresPython,
			Dependencies:   []string{},
		},
	}
	for _, a := range p.Authors {
		doc.Project.Authors = append(doc.Project.Authors, Author{Name: a.Name, Email: a.Email})
	}

	sources := make(map[string]Source)

	for _, dep := range p.Main().Dependencies {
		entry, err := render(dep, interval, idx, sources, opts)
		if err != nil {
			return nil, err
		}
		if entry != "" {
			doc.Project.Dependencies = append(doc.Project.Dependencies, entry)
		}
	}

	for _, group := range p.NamedGroups() {
		list := []string{}
		for _, dep := range group.Dependencies {
			entry, err := render(dep, interval, idx, sources, opts)
			if err != nil {
				return nil, err
			}
			if entry != "" {
				list = append(list, entry)
			}
		}
		if doc.DependencyGroups == nil {
			doc.DependencyGroups = make(map[string][]string)
		}
		doc.DependencyGroups[group.Name] = list
	}

	for _, f := range p.Features {
		if doc.Project.OptionalDependencies == nil {
			doc.Project.OptionalDependencies = make(map[string][]string)
		}
		doc.Project.OptionalDependencies[f.Name] = append([]string{}, f.Dependencies...)
	}

	if len(sources) > 0 {
		doc.Tool.UV.Sources = sources
	}

	return doc, nil
}

// render produces one dependency-list entry and records path/git sources.
// Optional registry entries return "" — they are activated through the
// optional-dependencies table, not the main list.
func render(dep manifest.Dependency, interval pyversion.Interval, idx requirements.Index, sources map[string]Source, opts Options) (string, error) {
	switch dep.Kind {
	case manifest.Path:
		sources[dep.Name] = Source{Path: dep.Path, Editable: dep.Develop}
		return dep.Name, nil

	case manifest.Git:
		alt, err := pyversion.SelectAlternative(dep.Name, dep.Git, interval)
		if err != nil {
			return "", err
		}
		sources[dep.Name] = Source{Git: alt.URL, Rev: alt.Rev}
		return dep.Name, nil

	default:
		spec, err := registrySpec(dep, idx, opts)
		if err != nil {
			return "", err
		}
		if dep.Optional {
			return "", nil
		}
		return dep.Name + extrasSuffix(dep.Extras) + spec, nil
	}
}

// registrySpec picks the version expression for a registry entry: the exact
// pin when an index is supplied and has the name, the translated constraint
// otherwise. Translation always runs so that an unparseable constraint is
// fatal in both variants.
func registrySpec(dep manifest.Dependency, idx requirements.Index, opts Options) (string, error) {
	translated, err := constraint.Translate(dep.Constraint)
	if err != nil {
		return "", errors.Wrap(errors.GetCode(err), err, "dependency %s", dep.Name)
	}
	if idx == nil {
		return translated, nil
	}
	if exact, ok := idx.Version(dep.Name); ok {
		return "==" + exact, nil
	}
	opts.logf("no resolved version for %s, keeping constraint %q", dep.Name, translated)
	return translated, nil
}

// checkFeatures verifies that every optional feature references only names
// declared in the main group. Dangling references are a model defect the
// rewriter surfaces rather than repairs.
func checkFeatures(p *manifest.Project) error {
	main := p.Main()
	for _, f := range p.Features {
		for _, name := range f.Dependencies {
			if _, ok := main.Dependency(name); !ok {
				return errors.New(errors.ErrCodeUnknownFeatureDep,
					"feature %s references unknown dependency %s", f.Name, name)
			}
		}
	}
	return nil
}

func extrasSuffix(extras []string) string {
	if len(extras) == 0 {
		return ""
	}
	return "[" + strings.Join(extras, ",") + "]"
}

// Encode writes the document as TOML. The [tool] table is flattened into a
// map so that carried-through source tables encode as siblings of tool.uv;
// map keys sort alphabetically, keeping the output deterministic.
func (d *Document) Encode(w io.Writer) error {
	tool := make(map[string]any, len(d.Tool.Extra)+2)
	for name, table := range d.Tool.Extra {
		tool[name] = table
	}
	tool["uv"] = d.Tool.UV
	if d.Tool.Poetry != nil {
		tool["poetry"] = d.Tool.Poetry
	}

	out := struct {
		Project          Project             `toml:"project"`
		DependencyGroups map[string][]string `toml:"dependency-groups,omitempty"`
		Tool             map[string]any      `toml:"tool"`
		BuildSystem      map[string]any      `toml:"build-system,omitempty"`
	}{d.Project, d.DependencyGroups, tool, d.BuildSystem}

	if err := toml.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteFile writes the document to a TOML file at path.
func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return d.Encode(f)
}
