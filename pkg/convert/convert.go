// Package convert runs the complete poetry → uv conversion: parse the
// source manifest, project it into the pinned and range variants, and write
// the output documents.
//
// By centralizing this sequence, the CLI and any embedding caller share one
// behavior. The run is atomic from the caller's perspective: every fatal
// condition surfaces before the first output file is created.
package convert

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/uvlift/uvlift/pkg/errors"
	"github.com/uvlift/uvlift/pkg/manifest"
	"github.com/uvlift/uvlift/pkg/poetry"
	"github.com/uvlift/uvlift/pkg/requirements"
	"github.com/uvlift/uvlift/pkg/uv"
)

// Default output filenames, relative to the project directory.
const (
	DefaultRangeOutput  = "pyproject_uv.toml"
	DefaultPinnedOutput = "pyproject_pinned.toml"
)

// Options configures one conversion run.
type Options struct {
	// ProjectDir is the directory holding the source manifest. Relative
	// input and output paths resolve against it. Defaults to ".".
	ProjectDir string

	// Manifest is the source manifest filename. Defaults to "pyproject.toml".
	Manifest string

	// Requirements is the exported resolved-requirements listing. When set,
	// the pinned variant is produced in addition to the range variant.
	Requirements string

	// RangeOutput and PinnedOutput are the output document paths.
	RangeOutput  string
	PinnedOutput string

	// KeepPoetry carries the original [tool.poetry] table into the outputs,
	// allowing the converted project to stay cross-compatible.
	KeepPoetry bool
}

func (o *Options) setDefaults() {
	if o.ProjectDir == "" {
		o.ProjectDir = "."
	}
	if o.Manifest == "" {
		o.Manifest = "pyproject.toml"
	}
	if o.RangeOutput == "" {
		o.RangeOutput = DefaultRangeOutput
	}
	if o.PinnedOutput == "" {
		o.PinnedOutput = DefaultPinnedOutput
	}
}

// resolve anchors a path at the project directory unless it is absolute.
func (o *Options) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(o.ProjectDir, path)
}

// Result holds the outcome of one conversion run.
type Result struct {
	Project    *manifest.Project
	Range      *uv.Document
	Pinned     *uv.Document // nil when no requirements listing was supplied
	RangePath  string
	PinnedPath string // "" when no pinned variant was written
	Warnings   int    // count of missing-resolution warnings
}

// Dependencies returns the total number of declared dependencies across all
// groups.
func (r *Result) Dependencies() int {
	n := 0
	for _, g := range r.Project.Groups {
		n += len(g.Dependencies)
	}
	return n
}

// Sources returns the number of path/git source table entries.
func (r *Result) Sources() int {
	return len(r.Range.Tool.UV.Sources)
}

// Runner executes conversions. It is stateless apart from its logger;
// multiple runs may share one Runner.
type Runner struct {
	Logger *log.Logger
}

// NewRunner creates a runner. A nil logger falls back to log.Default().
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Logger: logger}
}

// Run performs one conversion. Both documents are built in memory before
// either output file is written, so a fatal translation or selection error
// leaves the project directory untouched.
func (r *Runner) Run(opts Options) (*Result, error) {
	opts.setDefaults()

	manifestPath := opts.resolve(opts.Manifest)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "manifest %s", manifestPath)
		}
		return nil, err
	}

	project, err := poetry.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("parsed manifest",
		"project", project.Name,
		"groups", len(project.Groups),
		"python", project.Python)

	result := &Result{Project: project}
	emitOpts := uv.Options{Logger: func(format string, args ...any) {
		result.Warnings++
		r.Logger.Warnf(format, args...)
	}}

	result.Range, err = uv.EmitRange(project, emitOpts)
	if err != nil {
		return nil, err
	}

	if opts.Requirements != "" {
		idx, err := requirements.Load(opts.resolve(opts.Requirements))
		if err != nil {
			return nil, err
		}
		r.Logger.Debug("loaded resolved versions", "count", idx.Len())

		result.Pinned, err = uv.EmitPinned(project, idx, emitOpts)
		if err != nil {
			return nil, err
		}
	}

	// Non-poetry [tool.*] tables always survive; [tool.poetry] and
	// [build-system] only when the caller wants cross-compatibility.
	preserved, err := poetry.Sections(data)
	if err != nil {
		return nil, err
	}
	result.Range.Tool.Extra = preserved.Tools
	if opts.KeepPoetry {
		result.Range.Tool.Poetry = preserved.Poetry
		result.Range.BuildSystem = preserved.BuildSystem
	}
	if result.Pinned != nil {
		result.Pinned.Tool.Extra = result.Range.Tool.Extra
		result.Pinned.Tool.Poetry = result.Range.Tool.Poetry
		result.Pinned.BuildSystem = result.Range.BuildSystem
	}

	result.RangePath = opts.resolve(opts.RangeOutput)
	if err := result.Range.WriteFile(result.RangePath); err != nil {
		return nil, err
	}
	if result.Pinned != nil {
		result.PinnedPath = opts.resolve(opts.PinnedOutput)
		if err := result.Pinned.WriteFile(result.PinnedPath); err != nil {
			return nil, err
		}
	}

	return result, nil
}
