package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/fleetmap/cmd/fleetmap/cmd/completion"
	"github.com/agentstation/fleetmap/cmd/fleetmap/cmd/dashboard"
	"github.com/agentstation/fleetmap/cmd/fleetmap/cmd/explain"
	"github.com/agentstation/fleetmap/cmd/fleetmap/cmd/reconcile"
	"github.com/agentstation/fleetmap/cmd/fleetmap/cmd/serve"
	"github.com/agentstation/fleetmap/internal/cmd/emoji"
	"github.com/agentstation/fleetmap/internal/cmd/output"
	"github.com/agentstation/fleetmap/pkg/logging"
)

// Execute runs the fleetmap CLI application with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "fleetmap",
		Short:   "Fleet vehicle reconciliation CLI",
		Version: a.build.Version,
		Long: `Fleetmap reconciles vehicle data extracted from registrations,
insurance cards, inspections and driver documents into one record per VIN.

Conflicting values are surfaced rather than silently overwritten, every
field keeps its provenance, and each vehicle is scored for compliance
against its document expiry dates.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "server", Title: "Server Commands:"})

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.fleetmap.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("format", "o", "", "output format: table, json, yaml, wide")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "wide", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return logLevels, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.SetVersionTemplate("fleetmap {{.Version}}\n")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if file := mustGetString(cmd, "config"); file != "" {
		config, err := LoadConfigFile(file)
		if err != nil {
			return err
		}
		a.config = config
	}

	format := mustGetString(cmd, "format")
	if _, err := output.ParseFormat(format); err != nil {
		return err
	}

	a.config.UpdateFromFlags(
		mustGetBool(cmd, "verbose"),
		mustGetBool(cmd, "quiet"),
		mustGetBool(cmd, "no-color"),
		format,
		mustGetString(cmd, "log-level"),
	)

	logger := NewLogger(a.config)
	a.logger = &logger
	logging.SetDefault(logger)
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))
	return nil
}

func (a *App) registerCommands(rootCmd *cobra.Command) {
	reconcileCmd := reconcile.NewCommand(a)
	reconcileCmd.GroupID = "core"
	dashboardCmd := dashboard.NewCommand(a)
	dashboardCmd.GroupID = "core"
	explainCmd := explain.NewCommand(a)
	explainCmd.GroupID = "core"
	serveCmd := serve.NewCommand(a)
	serveCmd.GroupID = "server"

	rootCmd.AddCommand(reconcileCmd, dashboardCmd, explainCmd, serveCmd, completion.NewCommand(), a.newVersionCommand())
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format := output.Format(a.config.Format)
			if output.IsTable(format) {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), a.build.String())
				return err
			}
			return output.Print(cmd.OutOrStdout(), format, a.build)
		},
	}
}

// PrintError reports a command failure on stderr.
func PrintError(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s Error: %v\n", emoji.Error, err)
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
