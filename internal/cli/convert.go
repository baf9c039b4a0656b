package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uvlift/uvlift/pkg/convert"
)

// convertCommand creates the convert command, the main entry point of the tool.
func (c *CLI) convertCommand() *cobra.Command {
	opts := convert.Options{}

	cmd := &cobra.Command{
		Use:   "convert [project-dir]",
		Short: "Convert a Poetry pyproject.toml to uv manifests",
		Long: `Convert a Poetry pyproject.toml to uv/PEP 621 manifests.

The command always writes a range variant whose dependency constraints are
translated from Poetry's caret, tilde, and wildcard syntax. When a resolved
requirements listing is supplied via --requirements, a pinned variant with
exact versions is written alongside it.

Examples:
  uvlift convert                                      # Convert ./pyproject.toml
  uvlift convert path/to/project                      # Convert another project
  uvlift convert -r requirements.txt                  # Also write pinned variant
  uvlift convert --keep-poetry                        # Retain [tool.poetry]`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.ProjectDir = args[0]
			}
			return c.runConvert(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Manifest, "manifest", "m", "pyproject.toml", "source manifest filename")
	cmd.Flags().StringVarP(&opts.Requirements, "requirements", "r", "", "resolved requirements listing (enables the pinned variant)")
	cmd.Flags().StringVarP(&opts.RangeOutput, "output", "o", convert.DefaultRangeOutput, "range variant output path")
	cmd.Flags().StringVar(&opts.PinnedOutput, "pinned-output", convert.DefaultPinnedOutput, "pinned variant output path")
	cmd.Flags().BoolVar(&opts.KeepPoetry, "keep-poetry", false, "carry the [tool.poetry] table into the outputs")

	return cmd
}

// runConvert executes the conversion and reports the written files.
func (c *CLI) runConvert(opts convert.Options) error {
	prog := newProgress(c.Logger)

	result, err := c.newRunner().Run(opts)
	if err != nil {
		printError("Conversion failed")
		return err
	}

	variants := 1
	if result.Pinned != nil {
		variants = 2
	}
	prog.done(fmt.Sprintf("Converted %s into %d manifest(s)", result.Project.Name, variants))

	printSuccess("Converted %s", StyleHighlight.Render(result.Project.Name))
	printStats(result.Dependencies(), result.Sources(), result.Warnings)
	if result.Warnings > 0 {
		printWarning("%d dependencies had no resolved version and keep their translated range", result.Warnings)
	}
	printFile(result.RangePath)
	if result.PinnedPath != "" {
		printFile(result.PinnedPath)
	} else {
		printNextStep("For exact pins, export a lock first", "poetry export -o requirements.txt && uvlift convert -r requirements.txt")
	}
	return nil
}
