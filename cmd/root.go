// =============================================================================
// Ticket Ledger Export - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command
// holds the global flags and sets up the environment and logging before any
// subcommand runs.
//
// COBRA CLI STRUCTURE:
//   rootCmd (itk-export)
//   ├── exportCmd (itk-export export)
//   └── versionCmd (itk-export version)
//
// STARTUP:
//   1. Load a .env file from the working directory, if present
//   2. Create the logger from --verbose / --debug
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// rootOptions holds the global flags and shared runtime state.
type rootOptions struct {
	// cfgFile is the path to the YAML configuration file.
	cfgFile string

	// verbose enables info level logging of every step.
	verbose bool

	// debug enables debug logging and dumps the effective settings.
	debug bool

	// logger is created in PersistentPreRunE.
	logger *log.Logger

	// now returns the current time. Replaced in tests.
	now func() time.Time
}

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	return newRootCmdWithClock(time.Now)
}

func newRootCmdWithClock(now func() time.Time) *cobra.Command {
	opts := &rootOptions{now: now}

	rootCmd := &cobra.Command{
		Use:   "itk-export",
		Short: "Export ticket sales to the ledger as double-entry CSV",
		Long: `itk-export turns the card payments, refunds and cash payments of a pretix
instance into double-entry rows for the ledger import. Rows are grouped by
account, PSP element, card type and order, and written as ';' separated CSV
with the fixed 25-column header.

Example Usage:
  itk-export export --period previous-week --fixture sales.csv
  itk-export export --config export.yaml --period previous-month --recipient finance@example.com
  itk-export version`,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env file: %w", err)
			}

			opts.logger = newLogger(cmd.ErrOrStderr(), opts.verbose, opts.debug)
			return nil
		},

		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(
		&opts.cfgFile,
		"config",
		"",
		"Path to the YAML configuration file",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&opts.verbose,
		"verbose",
		"v",
		false,
		"Log every step of the export",
	)
	rootCmd.PersistentFlags().BoolVar(
		&opts.debug,
		"debug",
		false,
		"Enable debug logging and print the effective settings",
	)

	rootCmd.AddCommand(newExportCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newLogger creates the process logger. The configured log level applies
// unless --verbose or --debug raise it.
func newLogger(w io.Writer, verbose, debug bool) *log.Logger {
	level := log.WarnLevel
	switch {
	case debug:
		level = log.DebugLevel
	case verbose:
		level = log.InfoLevel
	}

	return log.NewWithOptions(w, log.Options{
		Prefix:          "itk-export",
		ReportTimestamp: true,
		Level:           level,
	})
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
