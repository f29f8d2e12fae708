package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/fleetmap/internal/cmd/application"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/provenance"
	"github.com/agentstation/fleetmap/pkg/reconciler"
)

const (
	hondaVIN = "1HGCM82633A004352"
	fordVIN  = "1FTFW1ET5DFC10312"
)

const fleetYAML = `
- documentId: reg-honda
  vin: 1HGCM82633A004352
  documentType: registration
  extractionConfidence: 0.9
  receivedAt: "2025-06-01T08:00:00Z"
  fields:
    make: Honda
    model: Accord
    year: 2003
    licensePlate: 7ABC123
    registrationExpirationDate: "2025-06-15"
- documentId: ins-honda
  vin: 1HGCM82633A004352
  documentType: insurance
  extractionConfidence: 0.8
  receivedAt: "2025-06-05T08:00:00Z"
  fields:
    make: Toyota
    insuranceExpirationDate: "2026-01-01"
- documentId: reg-ford
  vin: 1FTFW1ET5DFC10312
  documentType: registration
  extractionConfidence: 0.95
  receivedAt: "2025-06-02T08:00:00Z"
  fields:
    make: Ford
    model: F-150
    year: 2013
    registrationExpirationDate: "2026-03-01"
`

func fixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fleetYAML), 0o600))
	return path
}

func mockApp(format string) *application.Mock {
	now := time.Date(2025, time.June, 10, 9, 30, 0, 0, time.UTC)
	return &application.Mock{
		ReconcilerFunc: func() (reconciler.Reconciler, error) {
			return reconciler.New(reconciler.WithClock(func() time.Time { return now }))
		},
		OutputFormatFunc: func() string { return format },
	}
}

func execute(t *testing.T, app application.Application, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReconcileJSON(t *testing.T) {
	out, err := execute(t, mockApp("json"), fixture(t))
	require.NoError(t, err)

	var states []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &states))
	require.Len(t, states, 2)
	assert.Equal(t, fordVIN, states[0]["vin"])
	assert.Equal(t, hondaVIN, states[1]["vin"])
}

func TestReconcileFilters(t *testing.T) {
	path := fixture(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"make", []string{"--make", "ford"}, []string{fordVIN}, []string{hondaVIN}},
		{"conflicts", []string{"--conflicts"}, []string{hondaVIN}, []string{fordVIN}},
		{"no conflicts", []string{"--conflicts=false"}, []string{fordVIN}, []string{hondaVIN}},
		{"expiring", []string{"--expiring", "7"}, []string{hondaVIN}, []string{fordVIN}},
		{"limit", []string{"--sort", "vin", "--order", "desc", "--limit", "1"}, []string{hondaVIN}, []string{fordVIN}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, mockApp("table"), append([]string{path}, tt.args...)...)
			require.NoError(t, err)
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestReconcileRejectsBadFilter(t *testing.T) {
	_, err := execute(t, mockApp("table"), fixture(t), "--risk", "extreme")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestReconcileSummary(t *testing.T) {
	path := fixture(t)
	out, err := execute(t, mockApp("json"), path, path, "--summary")
	require.NoError(t, err)

	var sum map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.EqualValues(t, 6, sum["processed"])
	assert.EqualValues(t, 3, sum["stored"])
	assert.EqualValues(t, 3, sum["duplicates"])
	assert.EqualValues(t, 2, sum["vehicles"])
}

func TestReconcileVehicleDetail(t *testing.T) {
	out, err := execute(t, mockApp("table"), fixture(t), "--vin", "1hgcm82633a004352")
	require.NoError(t, err)
	assert.Contains(t, out, "registrationExpirationDate")
	assert.Contains(t, out, "conflict")

	_, err = execute(t, mockApp("table"), fixture(t), "--vin", "3AKJHHDR7JSJU4578")
	assert.True(t, errors.IsNotFound(err))
}

func TestReconcileWritesProvenance(t *testing.T) {
	report := filepath.Join(t.TempDir(), "provenance.yaml")
	_, err := execute(t, mockApp("json"), fixture(t), "--provenance", report)
	require.NoError(t, err)

	loaded, err := provenance.Load(report)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Vehicles, 2)
}

func TestReconcileMissingFile(t *testing.T) {
	_, err := execute(t, mockApp("table"), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = execute(t, mockApp("table"))
	assert.Error(t, err)
}
