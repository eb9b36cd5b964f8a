// procstatus serves process status configuration and record status
// transitions for CRM modules.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/procstatus/internal/infra/config"
	"github.com/matiasleandrokruk/procstatus/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	root := newRootCmd(config.Load())
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(errOut, "Error:", err) //nolint:errcheck
		return 1
	}
	return 0
}

// globalFlags override values loaded from the environment.
type globalFlags struct {
	cfg config.Config
}

func newRootCmd(cfg config.Config) *cobra.Command {
	g := &globalFlags{cfg: cfg}

	root := &cobra.Command{
		Use:           "procstatus",
		Short:         "Process status service for CRM modules",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `procstatus classifies the values of a module's status picklist into record
states (no concern, open, closed), keeps SLA time-counting categories and lock
statuses per value, and records every status transition.`,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&g.cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	root.PersistentFlags().StringVar(&g.cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(g))
	root.AddCommand(migrateCmd(g))
	root.AddCommand(seedCmd(g))
	root.AddCommand(activateCmd(g))
	root.AddCommand(statesCmd(g))
	root.AddCommand(tokenCmd())
	root.AddCommand(versionCmd())
	return root
}
