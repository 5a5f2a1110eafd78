package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for ballotharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ballotharvest",
		Short: "Harvest election results from public election websites",
		Long: `ballotharvest crawls public election websites and writes the collected
rows to a dated xlsx workbook.

Three engines are available:
  tree      recursive crawler over results and navigation pages
  postback  pagination walker over a postback candidate listing
  features  per-precinct queries against a JSON feature service

Completed runs are kept in a local history database; use 'history' to list
them and to compare two runs.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewTreeCmd())
	cmd.AddCommand(NewPostbackCmd())
	cmd.AddCommand(NewFeaturesCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
