// Package dashboard implements the dashboard command.
package dashboard

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/fleetmap/internal/cmd/application"
	"github.com/agentstation/fleetmap/internal/cmd/extractions"
	"github.com/agentstation/fleetmap/internal/cmd/output"
	"github.com/agentstation/fleetmap/internal/cmd/table"
	fleetdash "github.com/agentstation/fleetmap/pkg/dashboard"
	"github.com/agentstation/fleetmap/pkg/errors"
)

// NewCommand creates the dashboard command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard <file|dir>...",
		Short: "Show fleet compliance for extraction files",
		Long: `Dashboard reconciles the given extraction files and prints the fleet
overview: compliance levels, risk distribution, expiration alerts and the
most common issues.

Use --expiring to list the vehicles with a document expiring within N
days instead, or --breakdown for per-category status counts.`,
		Example: `  fleetmap dashboard extractions/
  fleetmap dashboard extractions/ --expiring 30
  fleetmap dashboard extractions/ --breakdown -o yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, app)
		},
	}

	cmd.Flags().Int("expiring", -1, "List vehicles expiring within N days")
	cmd.Flags().Bool("breakdown", false, "Show per-category compliance counts")
	cmd.MarkFlagsMutuallyExclusive("expiring", "breakdown")

	return cmd
}

func run(cmd *cobra.Command, args []string, app application.Application) error {
	rec, err := app.NewReconciler()
	if err != nil {
		return err
	}
	if _, err := extractions.ReconcileFiles(cmd.Context(), rec, args...); err != nil {
		return err
	}

	format := output.DetectFormat(app.OutputFormat())
	w := cmd.OutOrStdout()

	if cmd.Flags().Changed("expiring") {
		days, _ := cmd.Flags().GetInt("expiring")
		if days < 0 {
			return errors.NewValidationError("expiring", days, "must not be negative")
		}
		list := rec.GetExpiringVehicles(days)
		return output.Render(w, format, list, func(bool) table.Data { return table.ExpiringToTableData(list) })
	}

	if breakdown, _ := cmd.Flags().GetBool("breakdown"); breakdown {
		b := rec.GetComplianceBreakdown()
		return output.Render(w, format, b, func(bool) table.Data { return table.BreakdownToTableData(b) })
	}

	d := fleetdash.Compute(rec)
	return output.Render(w, format, d, func(bool) table.Data { return table.DashboardToTableData(d) })
}
