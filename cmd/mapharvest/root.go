package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for mapharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapharvest",
		Short: "Collect business listings from map search results",
		Long: `mapharvest runs map searches in a browser, loads the results panel until
enough listings are visible, and extracts name, address, phone, website,
rating, reviews, category and opening hours from each listing.

Results are written as CSV and JSON (optionally Markdown) and every run is
kept in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
