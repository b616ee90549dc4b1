package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/mapharvest/internal/config"
)

//go:embed templates/mapharvest.yaml
var configTemplate embed.FS

const templatePath = "templates/mapharvest.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a mapharvest configuration file",
		Long: `Init writes a commented .mapharvest configuration file.

The generated file contains the default timings, browser settings and
export options, plus commented examples of search tasks and selector
overrides.

Examples:
  # Create .mapharvest in current directory
  mapharvest init

  # Create config file at a specific path
  mapharvest init -o myconfig.yaml

  # Create the per-user config file
  mapharvest init -o ~/.config/mapharvest/config.yaml

  # Force overwrite existing file
  mapharvest init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

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
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to set:")
	fmt.Fprintln(out, "  - Searches to run (tasks)")
	fmt.Fprintln(out, "  - Browser, timing and export settings")
	fmt.Fprintln(out, "  - Selector overrides")
	return nil
}
