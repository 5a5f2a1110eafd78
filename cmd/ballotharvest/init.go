package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/ballotharvest/internal/config"
)

//go:embed templates/ballotharvest.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a profile file",
		Long: `Init writes a commented .ballotharvest profile file to the current directory.

The generated file contains:
- Defaults applied to every profile
- One example profile per engine (tree, postback, features)
- Documentation of every profile field

Examples:
  # Create .ballotharvest in the current directory
  ballotharvest init

  # Create the file at a specific path
  ballotharvest init -o profiles.yaml

  # Overwrite an existing file
  ballotharvest init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the profile file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("profile file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/ballotharvest.yaml")
	if err != nil {
		return fmt.Errorf("failed to read profile template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created profile file: %s\n", outputPath)
	_, _ = fmt.Fprintln(out, "\nEdit this file to describe the sites you harvest:")
	_, _ = fmt.Fprintln(out, "  - Root URLs and link denylists")
	_, _ = fmt.Fprintln(out, "  - Contest titles of feature-service layers")
	_, _ = fmt.Fprintln(out, "  - Output filename prefixes")
	_, _ = fmt.Fprintln(out, "\nSelect a profile with --profile <name>.")
	return nil
}
