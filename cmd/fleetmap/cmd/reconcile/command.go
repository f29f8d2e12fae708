// Package reconcile implements the offline reconcile command.
package reconcile

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/fleetmap/internal/cmd/application"
	"github.com/agentstation/fleetmap/internal/cmd/extractions"
	"github.com/agentstation/fleetmap/internal/cmd/output"
	"github.com/agentstation/fleetmap/internal/cmd/table"
	"github.com/agentstation/fleetmap/internal/server/filter"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/provenance"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// NewCommand creates the reconcile command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <file|dir>...",
		Short: "Reconcile extraction files into vehicle records",
		Long: `Reconcile reads document extraction files (YAML or JSON), merges
them per VIN and prints the resulting vehicle records.

A file holds one extraction, a list of extractions, or a mapping with a
"documents" list. Directories are expanded to their .yaml, .yml and .json
files. Invalid documents are reported and skipped.`,
		Example: `  fleetmap reconcile extractions/
  fleetmap reconcile reg.yaml insurance.json --conflicts
  fleetmap reconcile extractions/ --risk high -o wide
  fleetmap reconcile extractions/ --vin 1HGCM82633A004352
  fleetmap reconcile extractions/ --summary -o json
  fleetmap reconcile extractions/ --provenance report.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, app)
		},
	}

	cmd.Flags().String("vin", "", "Show the reconciled fields of one vehicle")
	cmd.Flags().Bool("summary", false, "Print the ingest summary instead of vehicles")
	cmd.Flags().String("provenance", "", "Write the provenance report to this file")

	// Search flags map onto the query parameters of GET /vehicles.
	cmd.Flags().String("make", "", "Filter by make")
	cmd.Flags().String("model", "", "Filter by model")
	cmd.Flags().String("plate", "", "Filter by license plate")
	cmd.Flags().String("status", "", "Filter by compliance level or category status")
	cmd.Flags().String("risk", "", "Filter by risk level: low, medium, high, critical")
	cmd.Flags().String("lifecycle", "", "Filter by lifecycle state")
	cmd.Flags().String("document-type", "", "Only vehicles with this document type")
	cmd.Flags().Bool("conflicts", false, "Only vehicles with active conflicts")
	cmd.Flags().Bool("needs-review", false, "Only vehicles needing review")
	cmd.Flags().Int("expiring", 0, "Only vehicles with a category expiring within N days")
	cmd.Flags().String("sort", "vin", "Sort by: vin, score, risk, make")
	cmd.Flags().String("order", "asc", "Sort order: asc, desc")
	cmd.Flags().Int("limit", filter.MaxLimit, "Maximum vehicles to print")

	return cmd
}

func run(cmd *cobra.Command, args []string, app application.Application) error {
	ctx := cmd.Context()

	rec, err := app.NewReconciler()
	if err != nil {
		return err
	}
	sum, err := extractions.ReconcileFiles(ctx, rec, args...)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("provenance"); path != "" {
		report := provenance.FromStates(rec.Now(), rec.GetAllVehicles()...)
		if err := report.Save(path); err != nil {
			return err
		}
		app.Logger().Info().Str("path", path).Int("vehicles", len(report.Vehicles)).Msg("Provenance report written")
	}

	format := output.DetectFormat(app.OutputFormat())
	w := cmd.OutOrStdout()

	if showSummary, _ := cmd.Flags().GetBool("summary"); showSummary {
		return output.Render(w, format, sum, func(bool) table.Data { return summaryTable(sum) })
	}

	if raw, _ := cmd.Flags().GetString("vin"); raw != "" {
		vin, err := vehicles.ParseVIN(raw)
		if err != nil {
			return err
		}
		state, ok := rec.GetVehicleSummary(vin)
		if !ok {
			return errors.NewNotFoundError("vehicle", string(vin))
		}
		return output.Render(w, format, state, func(bool) table.Data { return table.VehicleDetailToTableData(state) })
	}

	query, err := parseQuery(cmd)
	if err != nil {
		return err
	}
	states, total := query.Apply(rec)
	if total > len(states) {
		app.Logger().Info().Int("shown", len(states)).Int("total", total).Msg("Output truncated")
	}
	return output.Render(w, format, states, func(wide bool) table.Data {
		return table.VehiclesToTableData(states, wide)
	})
}

// flagParams maps command flags onto search query parameters.
var flagParams = map[string]string{
	"make":          "make",
	"model":         "model",
	"plate":         "plate",
	"status":        "status",
	"risk":          "risk",
	"lifecycle":     "lifecycle",
	"document-type": "document_type",
	"conflicts":     "has_conflicts",
	"needs-review":  "needs_review",
	"expiring":      "expires_within",
	"sort":          "sort",
	"order":         "order",
	"limit":         "limit",
}

// Unset tri-state flags must not reach the query: false and 0 are filters.
var triState = map[string]bool{"conflicts": true, "needs-review": true, "expiring": true}

func parseQuery(cmd *cobra.Command) (filter.VehicleQuery, error) {
	q := url.Values{}
	for name, param := range flagParams {
		f := cmd.Flags().Lookup(name)
		if f == nil || (triState[name] && !f.Changed) {
			continue
		}
		q.Set(param, f.Value.String())
	}
	return filter.ParseValues(q)
}

func summaryTable(sum *extractions.Summary) table.Data {
	rows := [][]string{
		{"Processed", strconv.Itoa(sum.Processed)},
		{"Stored", strconv.Itoa(sum.Stored)},
		{"Duplicates", strconv.Itoa(sum.Duplicates)},
		{"Rejected", strconv.Itoa(len(sum.Rejected))},
		{"Vehicles", strconv.Itoa(sum.Vehicles)},
		{"Conflicts", strconv.Itoa(sum.Conflicts)},
	}
	for _, r := range sum.Rejected {
		rows = append(rows, []string{"Rejected " + r.DocumentID, r.Error})
	}
	return table.Data{
		Headers:         []string{"Metric", "Value"},
		Rows:            rows,
		ColumnAlignment: []table.Align{table.AlignLeft, table.AlignRight},
	}
}
