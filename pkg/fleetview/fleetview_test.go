package fleetview_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/fleetmap/pkg/dashboard"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/fleetview"
	"github.com/agentstation/fleetmap/pkg/logging"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/repository/memory"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

const (
	hondaVIN    = "1HGCM82633A004352"
	fordVIN     = "1FTFW1ET5DFC10312"
	kenworthVIN = "3AKJHHDR7JSJU4578"
)

var start = time.Date(2025, time.June, 10, 9, 30, 0, 0, time.UTC)

func day(n int) string {
	return start.AddDate(0, 0, n).Format("2006-01-02")
}

// clock is a settable test clock.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// faultyRepo injects failures into a memory repository by record ID.
type faultyRepo struct {
	*memory.Repository
	panicOn  string
	failOn   string
	blockOn  string
	clearErr error
	listErr  error
}

func (f *faultyRepo) List(ctx context.Context) ([]repository.VehicleRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.List(ctx)
}

func (f *faultyRepo) Save(ctx context.Context, rec repository.VehicleRecord) (repository.VehicleRecord, error) {
	switch rec.ID {
	case f.panicOn:
		panic("disk controller reset")
	case f.failOn:
		return repository.VehicleRecord{}, errors.WrapPersistence("save", rec.ID, errors.New("unique constraint violated"))
	case f.blockOn:
		<-ctx.Done()
		return repository.VehicleRecord{}, ctx.Err()
	}
	return f.Repository.Save(ctx, rec)
}

func (f *faultyRepo) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.Repository.Clear(ctx)
}

type recorder struct {
	mu    sync.Mutex
	types []events.EventType
}

func (r *recorder) Publish(t events.EventType, _ any) {
	r.mu.Lock()
	r.types = append(r.types, t)
	r.mu.Unlock()
}

func (r *recorder) Types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventType(nil), r.types...)
}

type countingCache struct {
	mu     sync.Mutex
	clears int
}

func (c *countingCache) ClearCache() {
	c.mu.Lock()
	c.clears++
	c.mu.Unlock()
}

func (c *countingCache) Invalidate() {
	c.ClearCache()
}

func (c *countingCache) Clears() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

type fixture struct {
	svc   *fleetview.Service
	repo  *faultyRepo
	rec   reconciler.Reconciler
	clock *clock
	pub   *recorder
	cache *countingCache
}

func newFixture(t *testing.T, opts ...fleetview.Option) *fixture {
	t.Helper()
	clk := &clock{now: start}
	repo := &faultyRepo{Repository: memory.New().WithClock(clk.Now)}
	rec, err := reconciler.New(reconciler.WithClock(clk.Now))
	require.NoError(t, err)

	f := &fixture{repo: repo, rec: rec, clock: clk, pub: &recorder{}, cache: &countingCache{}}
	f.svc, err = fleetview.New(append([]fleetview.Option{
		fleetview.WithRepository(repo),
		fleetview.WithReconciler(rec),
		fleetview.WithPublisher(f.pub),
		fleetview.WithCaches(f.cache),
		fleetview.WithClock(clk.Now),
	}, opts...)...)
	require.NoError(t, err)
	return f
}

func hondaInput() fleetview.VehicleInput {
	return fleetview.VehicleInput{
		Record: repository.VehicleRecord{ID: "truck-7", VIN: hondaVIN, Make: "Honda", Model: "Accord", Year: 2003, TruckNumber: "7"},
		Documents: []vehicles.DocumentExtraction{
			vehicles.NewExtraction("reg-7", "", vehicles.RegistrationFields{
				Make: "Honda", Model: "Accord", Year: "2003", ExpirationDate: day(200),
			}, vehicles.SourceDocumentProcessing, 0.9, start),
		},
	}
}

func legacyInput(id string) fleetview.VehicleInput {
	return fleetview.VehicleInput{
		Record: repository.VehicleRecord{
			ID:          id,
			Make:        "mack",
			TruckNumber: id,
			Dates: map[vehicles.FieldName]string{
				vehicles.FieldRegistrationExpirationDate: day(-3),
			},
		},
	}
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := fleetview.New(fleetview.WithConcurrency(0))
	assert.True(t, errors.IsValidationError(err))

	_, err = fleetview.New(fleetview.WithTTL(-time.Second))
	assert.True(t, errors.IsValidationError(err))

	svc, err := fleetview.New()
	require.NoError(t, err)
	assert.NotNil(t, svc.Reconciler())
	assert.NotNil(t, svc.Repository())
	assert.Zero(t, svc.Len())
}

func TestInitializeDataRespectsTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var changes []fleetview.Change
	f.svc.Subscribe(func(c fleetview.Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	loaded, err := f.svc.InitializeData(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)

	mu.Lock()
	require.Len(t, changes, 3)
	assert.Equal(t, fleetview.LoadingChanged, changes[0].Type)
	assert.True(t, changes[0].Loading)
	assert.Equal(t, fleetview.DataChanged, changes[1].Type)
	assert.Equal(t, fleetview.LoadingChanged, changes[2].Type)
	assert.False(t, changes[2].Loading)
	mu.Unlock()

	loaded, err = f.svc.InitializeData(ctx)
	require.NoError(t, err)
	assert.False(t, loaded, "within TTL")

	f.svc.Invalidate()
	loaded, err = f.svc.InitializeData(ctx)
	require.NoError(t, err)
	assert.True(t, loaded, "invalidated")

	f.clock.Advance(fleetview.DefaultTTL + time.Second)
	loaded, err = f.svc.InitializeData(ctx)
	require.NoError(t, err)
	assert.True(t, loaded, "expired")
	assert.False(t, f.svc.Loading())
}

func TestInitializeDataReportsListingFailure(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got []fleetview.ChangeType
	f.svc.Subscribe(func(c fleetview.Change) { got = append(got, c.Type) })

	loaded, err := f.svc.InitializeData(ctx)
	require.Error(t, err)
	assert.False(t, loaded)
	assert.Contains(t, got, fleetview.ErrorOccurred)
}

func TestViewMergesSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A row persisted before any document was seen.
	_, err := f.repo.Repository.Save(ctx, repository.VehicleRecord{ID: "truck-9", VIN: kenworthVIN, Make: "Kenworth"})
	require.NoError(t, err)

	result, err := f.svc.AddVehicles(ctx, []fleetview.VehicleInput{hondaInput(), legacyInput("yard-1")})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Processed)

	_, err = f.svc.ProcessDocument(ctx, vehicles.NewExtraction("ins-ford", fordVIN, vehicles.InsuranceFields{
		Make: "Ford", Model: "F-150", ExpirationDate: day(5),
	}, vehicles.SourceDocumentProcessing, 0.9, start))
	require.NoError(t, err)

	view := f.svc.View()
	require.Len(t, view, 4)

	honda := view[hondaVIN]
	assert.Equal(t, fleetview.SourceMerged, honda.DataSource)
	assert.Equal(t, "truck-7", honda.ID)
	assert.Equal(t, "Honda", honda.Make)
	assert.Equal(t, 2003, honda.Year)
	assert.Equal(t, 2, honda.DocumentCount)
	assert.Equal(t, vehicles.StatusCurrent, honda.Categories[vehicles.CategoryRegistration].Status)

	legacy := view["legacy:yard-1"]
	assert.Equal(t, fleetview.SourceLegacy, legacy.DataSource)
	assert.Equal(t, "Mack", legacy.Make)
	assert.Equal(t, vehicles.StatusExpired, legacy.Categories[vehicles.CategoryRegistration].Status)

	kenworth := view[kenworthVIN]
	assert.Equal(t, fleetview.SourcePersistent, kenworth.DataSource)
	assert.Zero(t, kenworth.DocumentCount)

	ford := view[fordVIN]
	assert.Equal(t, fleetview.SourceReconciled, ford.DataSource)
	assert.Equal(t, vehicles.StatusExpiringSoon, ford.Categories[vehicles.CategoryInsurance].Status)

	got, ok := f.svc.Get("1hgcm82633a004352")
	require.True(t, ok)
	assert.Equal(t, honda, got)

	list := f.svc.List()
	require.Len(t, list, 4)
	assert.Equal(t, fordVIN, list[0].Key)
}

func TestAddVehiclesRollsBackOnPanic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddVehicles(ctx, []fleetview.VehicleInput{legacyInput("yard-0")})
	require.NoError(t, err)

	beforeView := f.svc.View()
	beforeRows, err := f.repo.List(ctx)
	require.NoError(t, err)
	beforeVehicles := f.rec.GetAllVehicles()

	f.repo.panicOn = "item-3"
	batch := []fleetview.VehicleInput{
		hondaInput(),
		legacyInput("item-2"),
		legacyInput("item-3"),
		legacyInput("item-4"),
		legacyInput("item-5"),
	}
	result, err := f.svc.AddVehicles(ctx, batch)

	require.Error(t, err)
	assert.True(t, errors.IsCatastrophic(err))
	var perr *errors.PanicError
	assert.True(t, errors.As(err, &perr))

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.True(t, result.RollbackAvailable)
	assert.True(t, result.RolledBack)
	assert.NotEmpty(t, result.Errors)

	assert.Equal(t, beforeView, f.svc.View())
	afterRows, err := f.repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, beforeRows, afterRows)
	assert.Equal(t, beforeVehicles, f.rec.GetAllVehicles())
}

func TestAddVehiclesRollsBackOnDeadline(t *testing.T) {
	f := newFixture(t)
	f.repo.blockOn = "item-2"

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := f.svc.AddVehicles(ctx, []fleetview.VehicleInput{hondaInput(), legacyInput("item-2")})
	require.Error(t, err)
	assert.True(t, errors.IsCatastrophic(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, result.RolledBack)
	assert.False(t, result.RollbackAvailable, "no earlier batch to roll back to")

	assert.Zero(t, f.svc.Len())
	assert.Zero(t, f.repo.Len())
	assert.Empty(t, f.rec.GetAllVehicles())
}

func TestAddVehiclesWithoutBackupReportsNoRollback(t *testing.T) {
	f := newFixture(t)
	f.repo.listErr = errors.WrapPersistence("list", "", errors.New("connection refused"))

	result, err := f.svc.AddVehicles(context.Background(), []fleetview.VehicleInput{hondaInput()})
	require.Error(t, err)
	assert.True(t, errors.IsCatastrophic(err))

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.False(t, result.RolledBack)
	assert.False(t, result.RollbackAvailable)
	assert.False(t, f.svc.RollbackAvailable())
	assert.Zero(t, f.repo.Repository.Len())
}

func TestAddVehiclesCountsRejectedDocuments(t *testing.T) {
	f := newFixture(t)
	input := hondaInput()
	input.Documents = append(input.Documents, vehicles.NewExtraction("bad-conf", "", vehicles.InsuranceFields{
		ExpirationDate: day(30),
	}, vehicles.SourceDocumentProcessing, 1.7, start))

	result, err := f.svc.AddVehicles(context.Background(), []fleetview.VehicleInput{input})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad-conf")

	v, ok := f.svc.Get(hondaVIN)
	require.True(t, ok)
	assert.Equal(t, 2, v.DocumentCount)
}

func TestAddVehiclesCountsItemFailures(t *testing.T) {
	f := newFixture(t)
	f.repo.failOn = "item-2"

	result, err := f.svc.AddVehicles(context.Background(), []fleetview.VehicleInput{
		hondaInput(), legacyInput("item-2"), legacyInput("item-3"),
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Total())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "item 2")
	assert.Contains(t, result.Items[1].Error, "unique constraint violated")
	assert.Len(t, f.svc.View(), 2)
	assert.True(t, f.svc.RollbackAvailable())
}

func TestRollbackRestoresPreviousBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Rollback(ctx)
	assert.ErrorIs(t, err, errors.ErrNoRollback)

	_, err = f.svc.AddVehicles(ctx, []fleetview.VehicleInput{legacyInput("yard-1")})
	require.NoError(t, err)
	afterFirst := f.svc.View()

	f.clock.Advance(time.Minute)
	_, err = f.svc.AddVehicles(ctx, []fleetview.VehicleInput{hondaInput()})
	require.NoError(t, err)
	require.Len(t, f.svc.View(), 2)

	result, err := f.svc.Rollback(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.RolledBack)
	assert.Equal(t, afterFirst, f.svc.View())
	assert.Equal(t, 1, f.repo.Len())
	assert.Empty(t, f.rec.GetAllVehicles())
	assert.False(t, f.svc.RollbackAvailable())

	_, err = f.svc.Rollback(ctx)
	assert.ErrorIs(t, err, errors.ErrNoRollback)
}

func TestClearAllFleetData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddVehicles(ctx, []fleetview.VehicleInput{hondaInput(), legacyInput("yard-1")})
	require.NoError(t, err)
	before := f.svc.View()
	clears := f.cache.Clears()

	result, err := f.svc.ClearAllFleetData(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Processed)
	assert.Zero(t, result.Failed)

	assert.Zero(t, f.svc.Len())
	assert.Zero(t, f.repo.Len())
	assert.Empty(t, f.rec.GetAllVehicles())
	assert.Zero(t, f.rec.Documents().Len())
	assert.Greater(t, f.cache.Clears(), clears)
	assert.Contains(t, f.pub.Types(), events.FleetCleared)

	_, err = f.svc.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, f.svc.View())
	assert.Equal(t, 2, f.repo.Len())
	assert.Len(t, f.rec.GetAllVehicles(), 1)
}

func TestDeleteVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddVehicles(ctx, []fleetview.VehicleInput{hondaInput(), legacyInput("yard-1")})
	require.NoError(t, err)
	before := f.svc.View()

	result, err := f.svc.DeleteVehicle(ctx, "yard-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, fleetview.OperationDelete, result.Operation)
	assert.True(t, result.RollbackAvailable)
	assert.Equal(t, 1, f.repo.Len())
	_, ok := f.svc.Get("legacy:yard-1")
	assert.False(t, ok)
	assert.Equal(t, events.VehicleDeleted, f.pub.Types()[len(f.pub.Types())-1])

	// Reconciled documents outlive the row.
	result, err = f.svc.DeleteVehicle(ctx, "truck-7")
	require.NoError(t, err)
	assert.Equal(t, hondaVIN, result.Items[0].VIN)
	honda, ok := f.svc.Get(hondaVIN)
	require.True(t, ok)
	assert.Equal(t, fleetview.SourceReconciled, honda.DataSource)
	assert.Zero(t, f.repo.Len())

	_, err = f.svc.DeleteVehicle(ctx, "truck-404")
	assert.True(t, errors.IsNotFound(err))

	_, err = f.svc.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.Len())
	assert.Len(t, f.svc.View(), len(before)-1)
}

func TestClearAllFleetDataAnnouncesCacheClear(t *testing.T) {
	f := newFixture(t)
	pub := &recorder{}
	dash := dashboard.New(f.rec, dashboard.WithPublisher(pub))
	svc, err := fleetview.New(
		fleetview.WithRepository(f.repo),
		fleetview.WithReconciler(f.rec),
		fleetview.WithPublisher(pub),
		fleetview.WithCaches(dash),
		fleetview.WithClock(f.clock.Now),
	)
	require.NoError(t, err)

	_, err = svc.ClearAllFleetData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{events.CacheCleared, events.FleetCleared}, pub.Types())
}

func TestClearAllFleetDataContinuesAfterFailedStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddVehicles(ctx, []fleetview.VehicleInput{hondaInput()})
	require.NoError(t, err)

	f.repo.clearErr = errors.WrapPersistence("clear", "", errors.New("database is locked"))
	result, err := f.svc.ClearAllFleetData(ctx)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "persistence")

	assert.Empty(t, f.rec.GetAllVehicles(), "documents step still ran")
	assert.Zero(t, f.svc.Len(), "view step still ran")
	assert.Equal(t, 1, f.repo.Len())
}

func TestProcessDocumentPublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ProcessDocument(ctx, vehicles.NewExtraction("reg-1", hondaVIN, vehicles.RegistrationFields{
		Make: "Honda", Model: "Accord", ExpirationDate: day(90),
	}, vehicles.SourceDocumentProcessing, 0.9, start))
	require.NoError(t, err)
	assert.True(t, res.Created)

	_, err = f.svc.ProcessDocument(ctx, vehicles.NewExtraction("ins-1", hondaVIN, vehicles.InsuranceFields{
		ExpirationDate: day(90),
	}, vehicles.SourceDocumentProcessing, 0.9, start))
	require.NoError(t, err)

	// duplicates change nothing
	_, err = f.svc.ProcessDocument(ctx, vehicles.NewExtraction("ins-1", hondaVIN, vehicles.InsuranceFields{
		ExpirationDate: day(90),
	}, vehicles.SourceDocumentProcessing, 0.9, start))
	require.NoError(t, err)

	assert.Equal(t, []events.EventType{
		events.DocumentProcessed, events.VehicleAdded,
		events.DocumentProcessed, events.VehicleUpdated,
	}, f.pub.Types())

	v, ok := f.svc.Get(hondaVIN)
	require.True(t, ok)
	assert.Equal(t, 2, v.DocumentCount)
	assert.Equal(t, fleetview.SourceReconciled, v.DataSource)

	_, err = f.svc.ProcessDocument(ctx, vehicles.DocumentExtraction{DocumentID: "bad"})
	assert.True(t, errors.IsValidationError(err))
}

func TestListenerPanicIsIsolated(t *testing.T) {
	f := newFixture(t)

	var calls int
	f.svc.Subscribe(func(fleetview.Change) { panic("listener bug") })
	unsubscribe := f.svc.Subscribe(func(c fleetview.Change) {
		if c.Type == fleetview.DataChanged {
			calls++
		}
	})

	_, err := f.svc.InitializeData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	unsubscribe()
	unsubscribe()
	f.svc.Invalidate()
	_, err = f.svc.InitializeData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestClearOnChange(t *testing.T) {
	f := newFixture(t)
	cache := &countingCache{}
	f.svc.Subscribe(fleetview.ClearOnChange(cache))

	_, err := f.svc.AddVehicles(context.Background(), []fleetview.VehicleInput{legacyInput("yard-1")})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Clears())
}

func TestLogsCarryOperationContext(t *testing.T) {
	tl := logging.NewTestLogger(t)
	f := newFixture(t, fleetview.WithLogger(tl.Logger))
	ctx := context.Background()

	_, err := f.svc.ProcessDocument(ctx, vehicles.NewExtraction("reg-1", hondaVIN, vehicles.RegistrationFields{
		Make: "Honda", Model: "Accord", ExpirationDate: day(90),
	}, vehicles.SourceDocumentProcessing, 0.9, start))
	require.NoError(t, err)

	reconciled := tl.Find("Reconciled vehicle")
	require.Len(t, reconciled, 1)
	assert.Equal(t, "reg-1", reconciled[0]["document_id"])
	assert.Equal(t, "registration", reconciled[0]["document_type"])

	_, err = f.svc.AddVehicles(ctx, []fleetview.VehicleInput{legacyInput("truck-1")})
	require.NoError(t, err)

	applied := tl.Find("Vehicle batch applied")
	require.Len(t, applied, 1)
	assert.Equal(t, fleetview.OperationAddVehicles, applied[0]["operation"])
	assert.NotEmpty(t, applied[0]["batch_id"])
	assert.Equal(t, float64(1), applied[0]["batch_size"])
}
