// Package explain implements the explain command, which prints where each
// field of a reconciled vehicle came from.
package explain

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/fleetmap/internal/cmd/application"
	"github.com/agentstation/fleetmap/internal/cmd/extractions"
	"github.com/agentstation/fleetmap/internal/cmd/output"
	"github.com/agentstation/fleetmap/internal/cmd/table"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// NewCommand creates the explain command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <vin> <file|dir>...",
		Short: "Explain the provenance of a vehicle's fields",
		Long: `Explain reconciles the given extraction files and prints, for every
field of one vehicle, each reported value with its document, source and
confidence. The selected value is marked with an arrow.`,
		Example: `  fleetmap explain 1HGCM82633A004352 extractions/
  fleetmap explain 1HGCM82633A004352 extractions/ --text
  fleetmap explain 1HGCM82633A004352 extractions/ --save provenance.yaml`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, app)
		},
	}

	cmd.Flags().Bool("text", false, "Print the plain text report")
	cmd.Flags().String("save", "", "Also write the report to this file")

	return cmd
}

func run(cmd *cobra.Command, args []string, app application.Application) error {
	vin, err := vehicles.ParseVIN(args[0])
	if err != nil {
		return err
	}

	rec, err := app.NewReconciler()
	if err != nil {
		return err
	}
	if _, err := extractions.ReconcileFiles(cmd.Context(), rec, args[1:]...); err != nil {
		return err
	}

	report, err := rec.Explain(vin)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := report.Save(path); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if text, _ := cmd.Flags().GetBool("text"); text {
		_, err := fmt.Fprint(w, report.String())
		return err
	}

	format := output.DetectFormat(app.OutputFormat())
	return output.Render(w, format, report, func(bool) table.Data { return table.ProvenanceToTableData(report) })
}
