package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for kbcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kbcrawl",
		Short: "Crawl a website into a local knowledge base",
		Long: `kbcrawl explores a website from a seed URL and saves every page it visits.

Links are followed only within the seed's origin, breadth-first (level by
level) or depth-first, optionally bounded by path depth. For each page a
PNG screenshot and a text document (metadata JSON followed by the visible
headings and paragraphs) are written under ~/knowledgeBase/<site>/.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with status 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
