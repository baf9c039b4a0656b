package uv

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/uvlift/uvlift/pkg/errors"
	"github.com/uvlift/uvlift/pkg/manifest"
	"github.com/uvlift/uvlift/pkg/requirements"
)

// testProject builds the model equivalent of the conversion fixture:
// registry entries with every constraint flavor, a path dependency, a
// two-alternative git dependency and one optional feature.
func testProject() *manifest.Project {
	return &manifest.Project{
		Name:        "warehouse",
		Version:     "1.4.0",
		Description: "Internal data warehouse jobs",
		Authors:     []manifest.Author{{Name: "Jane Doe", Email: "jane@example.com"}},
		Python:      ">=3.10,<3.13",
		Groups: []manifest.Group{
			{
				Name: manifest.MainGroup,
				Dependencies: []manifest.Dependency{
					{Name: "sklearn", Kind: manifest.Registry, Constraint: "~0.24.2"},
					{Name: "pyarrow", Kind: manifest.Registry, Constraint: "^0.0.1"},
					{Name: "flytekitplugins", Kind: manifest.Registry, Constraint: "1.x"},
					{Name: "pandas", Kind: manifest.Registry, Constraint: "^1.5", Extras: []string{"parquet"}},
					{Name: "orjson", Kind: manifest.Registry, Constraint: "^3.8", Optional: true},
					{Name: "config", Kind: manifest.Path, Path: "../config", Develop: true},
					{Name: "repo2", Kind: manifest.Git, Git: []manifest.GitAlternative{
						{URL: "https://github.com/org/repo2.git", Rev: "v3.3.0", Python: ">=3.10"},
						{URL: "https://github.com/org/repo2.git", Rev: "v3.4.1", Python: "~3.8"},
					}},
				},
			},
			{
				Name: "spark",
				Dependencies: []manifest.Dependency{
					{Name: "pyspark", Kind: manifest.Registry, Constraint: "3.5.0"},
				},
			},
		},
		Features: []manifest.Feature{
			{Name: "fast", Dependencies: []string{"orjson"}},
		},
	}
}

func TestEmitRange(t *testing.T) {
	doc, err := EmitRange(testProject(), Options{})
	if err != nil {
		t.Fatalf("EmitRange error = %v", err)
	}

	if doc.Project.RequiresPython != ">=3.10,<3.13" {
		t.Errorf("requires-python = %q, want >=3.10,<3.13", doc.Project.RequiresPython)
	}

	want := []string{
		"sklearn>=0.24.2,<0.25.0",
		"pyarrow>=0.0.1,<0.0.2",
		"flytekitplugins==1.*",
		"pandas[parquet]>=1.5,<2.0.0",
		"config",
		"repo2",
	}
	if !reflect.DeepEqual(doc.Project.Dependencies, want) {
		t.Errorf("dependencies = %v, want %v", doc.Project.Dependencies, want)
	}

	t.Run("group mapping", func(t *testing.T) {
		spark, ok := doc.DependencyGroups["spark"]
		if !ok {
			t.Fatal("spark group missing from dependency-groups")
		}
		if !reflect.DeepEqual(spark, []string{"pyspark==3.5.0"}) {
			t.Errorf("spark group = %v, want [pyspark==3.5.0]", spark)
		}
	})

	t.Run("sources", func(t *testing.T) {
		wantSources := map[string]Source{
			"config": {Path: "../config", Editable: true},
			"repo2":  {Git: "https://github.com/org/repo2.git", Rev: "v3.3.0"},
		}
		if !reflect.DeepEqual(doc.Tool.UV.Sources, wantSources) {
			t.Errorf("sources = %v, want %v", doc.Tool.UV.Sources, wantSources)
		}
	})

	t.Run("optional feature", func(t *testing.T) {
		fast, ok := doc.Project.OptionalDependencies["fast"]
		if !ok {
			t.Fatal("fast feature missing from optional-dependencies")
		}
		if !reflect.DeepEqual(fast, []string{"orjson"}) {
			t.Errorf("fast = %v, want [orjson]", fast)
		}
		// Optional entries live only in the feature table.
		for _, entry := range doc.Project.Dependencies {
			if strings.HasPrefix(entry, "orjson") {
				t.Errorf("optional dependency leaked into main list: %s", entry)
			}
		}
	})
}

func TestEmitPinned(t *testing.T) {
	idx, err := requirements.Parse(strings.NewReader(`sklearn==0.24.2
pyarrow==0.0.1
pandas==1.5.3
pyspark==3.5.0
`))
	if err != nil {
		t.Fatal(err)
	}

	var warnings []string
	opts := Options{Logger: func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}}

	doc, err := EmitPinned(testProject(), idx, opts)
	if err != nil {
		t.Fatalf("EmitPinned error = %v", err)
	}

	want := []string{
		"sklearn==0.24.2",
		"pyarrow==0.0.1",
		"flytekitplugins==1.*", // not in the index: constraint retained
		"pandas[parquet]==1.5.3",
		"config",
		"repo2",
	}
	if !reflect.DeepEqual(doc.Project.Dependencies, want) {
		t.Errorf("dependencies = %v, want %v", doc.Project.Dependencies, want)
	}

	if !reflect.DeepEqual(doc.DependencyGroups["spark"], []string{"pyspark==3.5.0"}) {
		t.Errorf("spark group = %v", doc.DependencyGroups["spark"])
	}

	t.Run("missing resolution is warned, not fatal", func(t *testing.T) {
		if len(warnings) != 1 || !strings.Contains(warnings[0], "flytekitplugins") {
			t.Errorf("warnings = %v, want one mentioning flytekitplugins", warnings)
		}
	})
}

func TestVariantsShareStructure(t *testing.T) {
	project := testProject()
	idx := requirements.Index{"sklearn": "0.24.2"}

	ranged, err := EmitRange(project, Options{})
	if err != nil {
		t.Fatal(err)
	}
	pinned, err := EmitPinned(project, idx, Options{})
	if err != nil {
		t.Fatal(err)
	}

	names := func(doc *Document) []string {
		var out []string
		for _, entry := range doc.Project.Dependencies {
			out = append(out, strings.FieldsFunc(entry, func(r rune) bool {
				return r == '=' || r == '<' || r == '>' || r == '[' || r == '!' || r == '~'
			})[0])
		}
		slices.Sort(out)
		return out
	}

	if !reflect.DeepEqual(names(ranged), names(pinned)) {
		t.Errorf("dependency names differ: %v vs %v", names(ranged), names(pinned))
	}
	if !reflect.DeepEqual(ranged.Tool.UV.Sources, pinned.Tool.UV.Sources) {
		t.Errorf("sources differ: %v vs %v", ranged.Tool.UV.Sources, pinned.Tool.UV.Sources)
	}
	if !reflect.DeepEqual(ranged.Project.OptionalDependencies, pinned.Project.OptionalDependencies) {
		t.Errorf("optional-dependencies differ")
	}

	// Path and git entries never receive a pin in either variant.
	for _, doc := range []*Document{ranged, pinned} {
		for _, entry := range doc.Project.Dependencies {
			if entry == "config" || entry == "repo2" {
				continue
			}
			if strings.HasPrefix(entry, "config") || strings.HasPrefix(entry, "repo2") {
				t.Errorf("source-backed entry carries a version: %s", entry)
			}
		}
	}
}

func TestEmitErrors(t *testing.T) {
	t.Run("dangling feature reference", func(t *testing.T) {
		project := testProject()
		project.Features = append(project.Features, manifest.Feature{
			Name:         "ghost",
			Dependencies: []string{"not-a-dep"},
		})
		_, err := EmitRange(project, Options{})
		if !errors.Is(err, errors.ErrCodeUnknownFeatureDep) {
			t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeUnknownFeatureDep)
		}
	})

	t.Run("uncovered git markers", func(t *testing.T) {
		// No repo2 alternative covers python 3.7.
		project := testProject()
		project.Python = "~3.7"
		_, err := EmitRange(project, Options{})
		if !errors.Is(err, errors.ErrCodeMarkerCoverage) {
			t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeMarkerCoverage)
		}
	})

	t.Run("unparseable constraint", func(t *testing.T) {
		project := testProject()
		project.Groups[0].Dependencies[0].Constraint = "~a.b.c"
		_, err := EmitRange(project, Options{})
		if !errors.Is(err, errors.ErrCodeInvalidConstraint) {
			t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConstraint)
		}
		if !strings.Contains(err.Error(), "sklearn") {
			t.Errorf("error %q does not identify the dependency", err)
		}
	})

	t.Run("unparseable constraint is fatal in the pinned variant too", func(t *testing.T) {
		project := testProject()
		project.Groups[0].Dependencies[0].Constraint = "~a.b.c"
		idx := requirements.Index{"sklearn": "0.24.2"}
		_, err := EmitPinned(project, idx, Options{})
		if !errors.Is(err, errors.ErrCodeInvalidConstraint) {
			t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConstraint)
		}
	})
}

func TestDocumentEncode(t *testing.T) {
	doc, err := EmitRange(testProject(), Options{})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		t.Fatalf("Encode error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`name = "warehouse"`,
		`requires-python = ">=3.10,<3.13"`,
		`"sklearn>=0.24.2,<0.25.0"`,
		"[dependency-groups]",
		"[tool.uv.sources",
		`rev = "v3.3.0"`,
		`path = "../config"`,
		"editable = true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("encoded document missing %q:\n%s", want, out)
		}
	}
}

func TestDocumentEncodePreservedSections(t *testing.T) {
	doc, err := EmitRange(testProject(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	doc.Tool.Extra = map[string]any{
		"black": map[string]any{"line-length": int64(100)},
		"mypy":  map[string]any{"strict": true},
	}
	doc.Tool.Poetry = map[string]any{"name": "warehouse"}
	doc.BuildSystem = map[string]any{
		"requires":      []any{"poetry-core"},
		"build-backend": "poetry.core.masonry.api",
	}

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		t.Fatalf("Encode error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"[tool.black]",
		"line-length = 100",
		"[tool.mypy]",
		"strict = true",
		"[tool.poetry]",
		"[tool.uv.sources",
		"[build-system]",
		`build-backend = "poetry.core.masonry.api"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("encoded document missing %q:\n%s", want, out)
		}
	}
}
