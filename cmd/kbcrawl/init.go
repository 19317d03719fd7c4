package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/kbcrawl/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/kbcrawl.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new kbcrawl configuration file",
		Long: `Initialize creates an annotated .kbcrawl configuration file.

The generated file documents the default crawl settings and shows how to
override depth, algorithm, timeout, link patterns, headers, and cookies
per site.

Examples:
  # Create .kbcrawl in current directory
  kbcrawl init

  # Create config file at a specific path
  kbcrawl init -o myconfig.yaml

  # Create the per-user file ($XDG_CONFIG_HOME/kbcrawl/config.yaml)
  kbcrawl init --xdg

  # Force overwrite existing file
  kbcrawl init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")
	cmd.Flags().Bool("xdg", false,
		"Write the per-user configuration file in the XDG config directory")
	cmd.MarkFlagsMutuallyExclusive("output", "xdg")

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
	useXDG, err := cmd.Flags().GetBool("xdg")
	if err != nil {
		return err
	}
	if useXDG {
		outputPath = filepath.Join(config.XDGConfigDir(), config.XDGConfigFile)
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/kbcrawl.yaml")
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
	fmt.Fprintln(out, "\nEdit this file to configure per-site settings such as:")
	fmt.Fprintln(out, "  - Crawl depth and algorithm")
	fmt.Fprintln(out, "  - Endpoint patterns to ignore or follow")
	fmt.Fprintln(out, "  - Authentication cookies and headers")

	return nil
}
