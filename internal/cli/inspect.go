package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uvlift/uvlift/pkg/manifest"
	"github.com/uvlift/uvlift/pkg/poetry"
)

// inspectCommand creates the inspect command for examining a manifest without
// converting it.
func (c *CLI) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [pyproject.toml]",
		Short: "Show the parsed dependency model of a Poetry manifest",
		Long: `Show the parsed dependency model of a Poetry manifest.

Inspect parses the manifest the same way convert does and prints the project
metadata, dependency groups, and source-backed dependencies it found, without
writing any output files. Useful for checking what a conversion would see.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "pyproject.toml"
			if len(args) == 1 {
				path = args[0]
			}
			return c.runInspect(path)
		},
	}
}

// runInspect parses the manifest and prints a summary of the model.
func (c *CLI) runInspect(path string) error {
	project, err := poetry.Parse(path)
	if err != nil {
		return err
	}

	fmt.Println(StyleTitle.Render(project.Name))
	printKeyValue("version", project.Version)
	if project.Description != "" {
		printKeyValue("description", project.Description)
	}
	printKeyValue("python", project.Python)
	for _, a := range project.Authors {
		printKeyValue("author", fmt.Sprintf("%s <%s>", a.Name, a.Email))
	}

	for _, group := range project.Groups {
		fmt.Println()
		printInfo("group %s (%d dependencies)", StyleHighlight.Render(group.Name), len(group.Dependencies))
		for _, dep := range group.Dependencies {
			printDetail("%s", describeDependency(dep))
		}
	}

	if len(project.Features) > 0 {
		fmt.Println()
		for _, f := range project.Features {
			printInfo("extra %s: %s", StyleHighlight.Render(f.Name), strings.Join(f.Dependencies, ", "))
		}
	}

	return nil
}

// describeDependency renders a single dependency for display.
func describeDependency(dep manifest.Dependency) string {
	var b strings.Builder
	b.WriteString(dep.Name)
	if len(dep.Extras) > 0 {
		fmt.Fprintf(&b, "[%s]", strings.Join(dep.Extras, ","))
	}

	switch dep.Kind {
	case manifest.Path:
		fmt.Fprintf(&b, " (path: %s", dep.Path)
		if dep.Develop {
			b.WriteString(", editable")
		}
		b.WriteString(")")
	case manifest.Git:
		if len(dep.Git) == 1 {
			fmt.Fprintf(&b, " (git: %s @ %s)", dep.Git[0].URL, dep.Git[0].Rev)
		} else {
			fmt.Fprintf(&b, " (git: %s, %d alternatives)", dep.Git[0].URL, len(dep.Git))
		}
	default:
		if dep.Constraint != "" {
			fmt.Fprintf(&b, " %s", dep.Constraint)
		}
	}

	if dep.Optional {
		b.WriteString(" (optional)")
	}
	return b.String()
}
