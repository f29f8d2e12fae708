package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentstation/fleetmap/pkg/vehicles"
)

const (
	testVIN  = vehicles.VIN("1HGCM82633A004352")
	otherVIN = vehicles.VIN("1FTFW1ET5DFC10312")
	thirdVIN = vehicles.VIN("3AKJHHDR7JSJU4578")
)

// testNow is the fixed instant all compliance assertions are made against.
var testNow = time.Date(2025, time.June, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// day returns the date n days from testNow in the standard layout.
func day(n int) string {
	return testNow.AddDate(0, 0, n).Format("2006-01-02")
}

// at returns testNow shifted by n minutes.
func at(n int) time.Time {
	return testNow.Add(time.Duration(n) * time.Minute)
}

func newTestReconciler(t *testing.T, opts ...Option) Reconciler {
	t.Helper()
	r, err := New(append([]Option{WithClock(fixedClock)}, opts...)...)
	require.NoError(t, err)
	return r
}

func doc(id string, vin vehicles.VIN, set vehicles.FieldSet, confidence float64, received time.Time) vehicles.DocumentExtraction {
	return vehicles.NewExtraction(id, vin, set, vehicles.SourceDocumentProcessing, confidence, received)
}

func mustAdd(t *testing.T, r Reconciler, ext vehicles.DocumentExtraction) *AddResult {
	t.Helper()
	res, err := r.AddDocument(context.Background(), ext)
	require.NoError(t, err)
	require.True(t, res.Success)
	return res
}
