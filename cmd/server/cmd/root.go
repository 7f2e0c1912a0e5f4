package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel  string
	logFormat string
)

// newRootCommand builds the command tree. Tests construct a fresh tree
// per case, so nothing here may depend on prior executions.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "Gatherline server - event management backend",
		Long: `Gatherline server is the backend for the Gatherline event platform.

The server provides:
- User registration and JWT login
- Event creation, search, and visibility-scoped listings
- RSVP tracking with per-event attendance summaries
- Prometheus metrics and health probes`,
		// Running the bare binary starts the server, matching how the
		// container entrypoint invokes it.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	return root
}

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
