// Package poetry parses poetry-style pyproject.toml manifests into the
// intermediate model.
//
// Dependency declarations are polymorphic: a plain constraint string, an
// inline table (path, git or registry-with-extras form), or a list of git
// tables gated on disjoint python ranges. The parser classifies each
// declaration into a [manifest.Kind] and leaves constraint translation and
// variant selection to the downstream packages.
package poetry

import (
	"os"
	"regexp"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/uvlift/uvlift/pkg/errors"
	"github.com/uvlift/uvlift/pkg/manifest"
	"github.com/uvlift/uvlift/pkg/pyversion"
)

// authorRE splits "Jane Doe <jane@example.com>" into name and email.
var authorRE = regexp.MustCompile(`^(.*?)\s+<([^>]+)>$`)

type pyprojectFile struct {
	Tool struct {
		Poetry poetryTable `toml:"poetry"`
	} `toml:"tool"`
}

type poetryTable struct {
	Name            string                `toml:"name"`
	Version         string                `toml:"version"`
	Description     string                `toml:"description"`
	Authors         []string              `toml:"authors"`
	Dependencies    map[string]any        `toml:"dependencies"`
	DevDependencies map[string]any        `toml:"dev-dependencies"`
	Group           map[string]groupTable `toml:"group"`
	Extras          map[string][]string   `toml:"extras"`
}

type groupTable struct {
	Dependencies map[string]any `toml:"dependencies"`
}

// Parse reads a pyproject.toml at path and builds the intermediate model.
// The returned project is complete and self-contained; the file is not
// consulted again.
func Parse(path string) (*manifest.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "manifest %s", path)
		}
		return nil, err
	}
	return ParseBytes(data)
}

// ParseBytes builds the intermediate model from raw manifest text.
func ParseBytes(data []byte) (*manifest.Project, error) {
	var file pyprojectFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse pyproject.toml")
	}

	pt := file.Tool.Poetry
	if pt.Name == "" && pt.Dependencies == nil {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "no [tool.poetry] section found")
	}

	python, ok := pt.Dependencies["python"].(string)
	if !ok || python == "" {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "missing python version in [tool.poetry.dependencies]")
	}
	if _, err := pyversion.New(python); err != nil {
		return nil, err
	}

	project := &manifest.Project{
		Name:        pt.Name,
		Version:     pt.Version,
		Description: pt.Description,
		Authors:     parseAuthors(pt.Authors),
		Python:      python,
	}

	main, err := parseGroup(manifest.MainGroup, pt.Dependencies)
	if err != nil {
		return nil, err
	}
	project.Groups = append(project.Groups, main)

	// Legacy dev-dependencies table becomes the "dev" group, unless a
	// [tool.poetry.group.dev] table already claims the name.
	if len(pt.DevDependencies) > 0 {
		if _, taken := pt.Group["dev"]; taken {
			return nil, errors.New(errors.ErrCodeDuplicateDep, "both dev-dependencies and group.dev declared")
		}
		dev, err := parseGroup("dev", pt.DevDependencies)
		if err != nil {
			return nil, err
		}
		project.Groups = append(project.Groups, dev)
	}

	for _, name := range sortedKeys(pt.Group) {
		g, err := parseGroup(name, pt.Group[name].Dependencies)
		if err != nil {
			return nil, err
		}
		project.Groups = append(project.Groups, g)
	}

	for _, name := range sortedKeys(pt.Extras) {
		feature := manifest.Feature{Name: name}
		for _, dep := range pt.Extras[name] {
			feature.Dependencies = append(feature.Dependencies, manifest.NormalizeName(dep))
		}
		project.Features = append(project.Features, feature)
	}

	return project, nil
}

// Preserved holds the source-document sections that survive into the output
// untouched: the [tool.poetry] table, every other [tool.*] table (formatter
// and linter configuration lives there), and the [build-system] table.
type Preserved struct {
	Poetry      map[string]any
	Tools       map[string]any
	BuildSystem map[string]any
}

// Sections returns the preserved sections of the source document as decoded
// TOML, for callers that carry them through into the output document.
func Sections(data []byte) (*Preserved, error) {
	var file struct {
		Tool        map[string]any `toml:"tool"`
		BuildSystem map[string]any `toml:"build-system"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse pyproject.toml")
	}

	p := &Preserved{BuildSystem: file.BuildSystem}
	for name, value := range file.Tool {
		if name == "poetry" {
			if table, ok := value.(map[string]any); ok {
				p.Poetry = table
			}
			continue
		}
		if p.Tools == nil {
			p.Tools = make(map[string]any)
		}
		p.Tools[name] = value
	}
	return p, nil
}

// parseGroup classifies every entry of one dependency table. The "python"
// entry is project metadata, not a dependency, and is skipped here.
func parseGroup(name string, deps map[string]any) (manifest.Group, error) {
	group := manifest.Group{Name: name}
	seen := make(map[string]bool, len(deps))

	for _, depName := range sortedKeys(deps) {
		if name == manifest.MainGroup && depName == "python" {
			continue
		}
		dep, err := classify(depName, deps[depName])
		if err != nil {
			return manifest.Group{}, err
		}
		if seen[dep.Name] {
			return manifest.Group{}, errors.New(errors.ErrCodeDuplicateDep,
				"dependency %s declared twice in group %s", dep.Name, name)
		}
		seen[dep.Name] = true
		group.Dependencies = append(group.Dependencies, dep)
	}

	return group, nil
}

// classify turns one raw declaration value into a Dependency.
func classify(name string, value any) (manifest.Dependency, error) {
	if err := errors.ValidatePythonPackageName(name); err != nil {
		return manifest.Dependency{}, err
	}
	dep := manifest.Dependency{Name: manifest.NormalizeName(name)}

	switch v := value.(type) {
	case string:
		dep.Kind = manifest.Registry
		dep.Constraint = v
		return dep, nil

	case map[string]any:
		return classifyTable(dep, name, v)

	case []map[string]any:
		return classifyAlternatives(dep, name, v)

	case []any:
		tables := make([]map[string]any, 0, len(v))
		for _, el := range v {
			table, ok := el.(map[string]any)
			if !ok {
				return manifest.Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
					"dependency %s: list form must contain tables", name)
			}
			tables = append(tables, table)
		}
		return classifyAlternatives(dep, name, tables)

	default:
		return manifest.Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
			"dependency %s: unsupported declaration type %T", name, value)
	}
}

// classifyTable handles the single-table forms: path, git, or registry with
// extras and/or an explicit version field.
func classifyTable(dep manifest.Dependency, name string, table map[string]any) (manifest.Dependency, error) {
	rest := make(map[string]any, len(table))
	for k, v := range table {
		rest[k] = v
	}

	if path, ok := stringKey(rest, "path"); ok {
		if err := errors.ValidatePath(path); err != nil {
			return manifest.Dependency{}, errors.Wrap(errors.GetCode(err), err, "dependency %s", name)
		}
		dep.Kind = manifest.Path
		dep.Path = path
		if develop, ok := rest["develop"].(bool); ok {
			dep.Develop = develop
		}
		delete(rest, "path")
		delete(rest, "develop")
		delete(rest, "markers")
		return dep, leftover(name, rest)
	}

	if _, ok := stringKey(rest, "git"); ok {
		alt, err := gitAlternative(name, rest)
		if err != nil {
			return manifest.Dependency{}, err
		}
		dep.Kind = manifest.Git
		dep.Git = []manifest.GitAlternative{alt}
		return dep, nil
	}

	dep.Kind = manifest.Registry
	if version, ok := stringKey(rest, "version"); ok {
		dep.Constraint = version
		delete(rest, "version")
	}
	if extras, ok := rest["extras"]; ok {
		list, err := stringList(name, extras)
		if err != nil {
			return manifest.Dependency{}, err
		}
		dep.Extras = list
		delete(rest, "extras")
	}
	if optional, ok := rest["optional"].(bool); ok {
		dep.Optional = optional
		delete(rest, "optional")
	}
	// Interpreter and environment gates on registry entries do not change
	// classification; the target manifest keeps only the version logic.
	delete(rest, "python")
	delete(rest, "markers")
	return dep, leftover(name, rest)
}

// classifyAlternatives handles the list-of-git-tables form. Every element
// must carry a python marker; without one the alternatives cannot be told
// apart.
func classifyAlternatives(dep manifest.Dependency, name string, tables []map[string]any) (manifest.Dependency, error) {
	if len(tables) == 0 {
		return manifest.Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
			"dependency %s: empty alternative list", name)
	}

	dep.Kind = manifest.Git
	for _, table := range tables {
		rest := make(map[string]any, len(table))
		for k, v := range table {
			rest[k] = v
		}
		alt, err := gitAlternative(name, rest)
		if err != nil {
			return manifest.Dependency{}, err
		}
		if alt.Python == "" {
			return manifest.Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
				"dependency %s: alternative %s missing a python marker", name, alt.Rev)
		}
		dep.Git = append(dep.Git, alt)
	}
	return dep, nil
}

// gitAlternative extracts one (url, rev, python) triple. The revision comes
// from rev, tag or branch, whichever is present.
func gitAlternative(name string, table map[string]any) (manifest.GitAlternative, error) {
	url, ok := stringKey(table, "git")
	if !ok {
		return manifest.GitAlternative{}, errors.New(errors.ErrCodeInvalidManifest,
			"dependency %s: alternative table missing git key", name)
	}
	if err := errors.ValidateGitURL(url); err != nil {
		return manifest.GitAlternative{}, errors.Wrap(errors.GetCode(err), err, "dependency %s", name)
	}

	alt := manifest.GitAlternative{URL: url}
	delete(table, "git")

	for _, key := range []string{"rev", "tag", "branch"} {
		if rev, ok := stringKey(table, key); ok && alt.Rev == "" {
			alt.Rev = rev
		}
		delete(table, key)
	}

	if python, ok := stringKey(table, "python"); ok {
		if _, err := pyversion.New(python); err != nil {
			return manifest.GitAlternative{}, errors.Wrap(errors.GetCode(err), err, "dependency %s", name)
		}
		alt.Python = python
		delete(table, "python")
	}
	delete(table, "markers")

	return alt, leftover(name, table)
}

// leftover rejects declaration keys the converter does not understand,
// instead of silently dropping them.
func leftover(name string, rest map[string]any) error {
	if len(rest) == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeUnsupported,
		"dependency %s: unsupported declaration keys %v", name, sortedKeys(rest))
}

func parseAuthors(raw []string) []manifest.Author {
	var authors []manifest.Author
	for _, full := range raw {
		if m := authorRE.FindStringSubmatch(full); m != nil {
			authors = append(authors, manifest.Author{Name: m[1], Email: m[2]})
		} else {
			authors = append(authors, manifest.Author{Name: full})
		}
	}
	return authors
}

func stringKey(table map[string]any, key string) (string, bool) {
	s, ok := table[key].(string)
	return s, ok && s != ""
}

func stringList(name string, value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		if list, ok := value.([]string); ok {
			return list, nil
		}
		return nil, errors.New(errors.ErrCodeInvalidManifest, "dependency %s: extras must be a list", name)
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "dependency %s: extras must be strings", name)
		}
		list = append(list, s)
	}
	return list, nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
