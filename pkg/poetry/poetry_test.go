package poetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/uvlift/uvlift/pkg/errors"
	"github.com/uvlift/uvlift/pkg/manifest"
)

const fixture = `[tool.poetry]
name = "warehouse"
version = "1.4.0"
description = "Internal data warehouse jobs"
authors = ["Jane Doe <jane@example.com>", "Ops Team"]

[tool.poetry.dependencies]
python = ">=3.10,<3.13"
requests = "^2.28"
sklearn = "~0.24.2"
flytekitplugins = "1.x"
pandas = { version = "^1.5", extras = ["parquet"] }
orjson = { version = "^3.8", optional = true }
config = { path = "../config", develop = true }
solo = { git = "https://github.com/org/solo.git", rev = "v1.0.0" }
repo2 = [
    { git = "https://github.com/org/repo2.git", rev = "v3.3.0", python = ">=3.10" },
    { git = "https://github.com/org/repo2.git", rev = "v3.4.1", python = "~3.8" },
]

[tool.poetry.dev-dependencies]
pytest = "^7.0"

[tool.poetry.group.spark.dependencies]
pyspark = "3.5.0"

[tool.poetry.extras]
fast = ["orjson"]
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	project, err := Parse(writeFixture(t, fixture))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if project.Name != "warehouse" {
		t.Errorf("Name = %q, want warehouse", project.Name)
	}
	if project.Version != "1.4.0" {
		t.Errorf("Version = %q, want 1.4.0", project.Version)
	}
	if project.Python != ">=3.10,<3.13" {
		t.Errorf("Python = %q, want >=3.10,<3.13", project.Python)
	}

	wantAuthors := []manifest.Author{
		{Name: "Jane Doe", Email: "jane@example.com"},
		{Name: "Ops Team"},
	}
	if len(project.Authors) != len(wantAuthors) {
		t.Fatalf("Authors = %v, want %v", project.Authors, wantAuthors)
	}
	for i, want := range wantAuthors {
		if project.Authors[i] != want {
			t.Errorf("Authors[%d] = %+v, want %+v", i, project.Authors[i], want)
		}
	}

	main := project.Main()
	if len(main.Dependencies) != 8 {
		t.Fatalf("main group has %d dependencies, want 8", len(main.Dependencies))
	}
	if _, ok := main.Dependency("python"); ok {
		t.Error("python must not appear as a dependency")
	}

	tests := []struct {
		name string
		want manifest.Dependency
	}{
		{"requests", manifest.Dependency{Name: "requests", Kind: manifest.Registry, Constraint: "^2.28"}},
		{"sklearn", manifest.Dependency{Name: "sklearn", Kind: manifest.Registry, Constraint: "~0.24.2"}},
		{"flytekitplugins", manifest.Dependency{Name: "flytekitplugins", Kind: manifest.Registry, Constraint: "1.x"}},
		{"config", manifest.Dependency{Name: "config", Kind: manifest.Path, Path: "../config", Develop: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep, ok := main.Dependency(tt.name)
			if !ok {
				t.Fatalf("dependency %s not found", tt.name)
			}
			if dep.Kind != tt.want.Kind || dep.Constraint != tt.want.Constraint ||
				dep.Path != tt.want.Path || dep.Develop != tt.want.Develop {
				t.Errorf("dependency = %+v, want %+v", dep, tt.want)
			}
		})
	}

	t.Run("extras table form", func(t *testing.T) {
		pandas, ok := main.Dependency("pandas")
		if !ok {
			t.Fatal("pandas not found")
		}
		if pandas.Kind != manifest.Registry || pandas.Constraint != "^1.5" {
			t.Errorf("pandas = %+v", pandas)
		}
		if len(pandas.Extras) != 1 || pandas.Extras[0] != "parquet" {
			t.Errorf("pandas extras = %v, want [parquet]", pandas.Extras)
		}
	})

	t.Run("optional entry", func(t *testing.T) {
		orjson, ok := main.Dependency("orjson")
		if !ok {
			t.Fatal("orjson not found")
		}
		if !orjson.Optional {
			t.Error("orjson should be optional")
		}
	})

	t.Run("single git entry", func(t *testing.T) {
		solo, ok := main.Dependency("solo")
		if !ok {
			t.Fatal("solo not found")
		}
		if solo.Kind != manifest.Git || len(solo.Git) != 1 {
			t.Fatalf("solo = %+v", solo)
		}
		alt := solo.Git[0]
		if alt.URL != "https://github.com/org/solo.git" || alt.Rev != "v1.0.0" || alt.Python != "" {
			t.Errorf("solo alternative = %+v", alt)
		}
	})

	t.Run("git alternatives", func(t *testing.T) {
		repo2, ok := main.Dependency("repo2")
		if !ok {
			t.Fatal("repo2 not found")
		}
		if repo2.Kind != manifest.Git || len(repo2.Git) != 2 {
			t.Fatalf("repo2 = %+v", repo2)
		}
		if repo2.Git[0].Rev != "v3.3.0" || repo2.Git[0].Python != ">=3.10" {
			t.Errorf("first alternative = %+v", repo2.Git[0])
		}
		if repo2.Git[1].Rev != "v3.4.1" || repo2.Git[1].Python != "~3.8" {
			t.Errorf("second alternative = %+v", repo2.Git[1])
		}
	})

	t.Run("groups", func(t *testing.T) {
		named := project.NamedGroups()
		if len(named) != 2 {
			t.Fatalf("named groups = %d, want 2 (dev, spark)", len(named))
		}
		if named[0].Name != "dev" {
			t.Errorf("first named group = %s, want dev", named[0].Name)
		}
		if _, ok := named[0].Dependency("pytest"); !ok {
			t.Error("pytest missing from dev group")
		}
		if named[1].Name != "spark" {
			t.Errorf("second named group = %s, want spark", named[1].Name)
		}
		pyspark, ok := named[1].Dependency("pyspark")
		if !ok || pyspark.Constraint != "3.5.0" {
			t.Errorf("pyspark = %+v", pyspark)
		}
	})

	t.Run("features", func(t *testing.T) {
		if len(project.Features) != 1 {
			t.Fatalf("features = %d, want 1", len(project.Features))
		}
		f := project.Features[0]
		if f.Name != "fast" || len(f.Dependencies) != 1 || f.Dependencies[0] != "orjson" {
			t.Errorf("feature = %+v", f)
		}
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.Code
	}{
		{
			name:    "not a poetry manifest",
			content: "[project]\nname = \"x\"\n",
			code:    errors.ErrCodeInvalidManifest,
		},
		{
			name: "missing python",
			content: `[tool.poetry]
name = "x"
[tool.poetry.dependencies]
requests = "^2.28"
`,
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "alternative without marker",
			content: `[tool.poetry]
name = "x"
[tool.poetry.dependencies]
python = "^3.10"
repo = [
    { git = "https://github.com/org/repo.git", rev = "v1" },
    { git = "https://github.com/org/repo.git", rev = "v2", python = ">=3.10" },
]
`,
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "unsupported declaration keys",
			content: `[tool.poetry]
name = "x"
[tool.poetry.dependencies]
python = "^3.10"
weird = { version = "^1.0", source = "private" }
`,
			code: errors.ErrCodeUnsupported,
		},
		{
			name: "absolute path dependency",
			content: `[tool.poetry]
name = "x"
[tool.poetry.dependencies]
python = "^3.10"
lib = { path = "/opt/lib" }
`,
			code: errors.ErrCodeInvalidPath,
		},
		{
			name: "bad git scheme",
			content: `[tool.poetry]
name = "x"
[tool.poetry.dependencies]
python = "^3.10"
lib = { git = "ftp://example.com/lib.git" }
`,
			code: errors.ErrCodeInvalidInput,
		},
		{
			name: "dev group declared twice",
			content: `[tool.poetry]
name = "x"
[tool.poetry.dependencies]
python = "^3.10"
[tool.poetry.dev-dependencies]
pytest = "^7.0"
[tool.poetry.group.dev.dependencies]
pytest = "^8.0"
`,
			code: errors.ErrCodeDuplicateDep,
		},
		{
			name: "invalid python range",
			content: `[tool.poetry]
name = "x"
[tool.poetry.dependencies]
python = "three point ten"
`,
			code: errors.ErrCodeInvalidPythonRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(writeFixture(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error code = %v, want %v (err: %v)", errors.GetCode(err), tt.code, err)
			}
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "pyproject.toml"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeFileNotFound)
	}
}

func TestSections(t *testing.T) {
	data := []byte(`[tool.poetry]
name = "warehouse"

[tool.black]
line-length = 100

[tool.mypy]
strict = true

[build-system]
requires = ["poetry-core"]
build-backend = "poetry.core.masonry.api"
`)

	p, err := Sections(data)
	if err != nil {
		t.Fatalf("Sections error = %v", err)
	}

	if p.Poetry == nil || p.Poetry["name"] != "warehouse" {
		t.Errorf("Poetry = %v", p.Poetry)
	}
	if _, ok := p.Tools["poetry"]; ok {
		t.Error("Tools should not contain the poetry table")
	}
	if len(p.Tools) != 2 {
		t.Errorf("Tools = %v, want black and mypy", p.Tools)
	}
	black, ok := p.Tools["black"].(map[string]any)
	if !ok || black["line-length"] != int64(100) {
		t.Errorf("Tools[black] = %v", p.Tools["black"])
	}
	if p.BuildSystem["build-backend"] != "poetry.core.masonry.api" {
		t.Errorf("BuildSystem = %v", p.BuildSystem)
	}
}

func TestSectionsMinimal(t *testing.T) {
	p, err := Sections([]byte("[tool.poetry]\nname = \"bare\"\n"))
	if err != nil {
		t.Fatalf("Sections error = %v", err)
	}
	if p.Tools != nil {
		t.Errorf("Tools = %v, want nil", p.Tools)
	}
	if p.BuildSystem != nil {
		t.Errorf("BuildSystem = %v, want nil", p.BuildSystem)
	}
}
