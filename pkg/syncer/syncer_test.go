package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/snapshot"
	"github.com/Ramsey-B/sage/pkg/sources"
)

type fakeClient struct {
	mu        sync.Mutex
	results   map[models.EntityType]sources.FetchResult
	errs      map[models.EntityType]error
	since     map[models.EntityType]time.Time
	block     chan struct{}
	started   chan struct{}
	startOnce sync.Once
}

func (f *fakeClient) Source() string {
	return "fake"
}

func (f *fakeClient) FetchSince(ctx context.Context, entityType models.EntityType, since time.Time) (sources.FetchResult, error) {
	if f.started != nil {
		f.startOnce.Do(func() { close(f.started) })
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.since == nil {
		f.since = map[models.EntityType]time.Time{}
	}
	f.since[entityType] = since
	return f.results[entityType], f.errs[entityType]
}

type fakeCursorStore struct {
	mu        sync.Mutex
	cursors   map[models.EntityType]*models.SyncCursor
	latestErr map[models.EntityType]error
	recorded  []models.RunOutcome
}

func (f *fakeCursorStore) Latest(ctx context.Context, entityType models.EntityType) (*models.SyncCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.latestErr[entityType]; err != nil {
		return nil, err
	}
	if cursor, ok := f.cursors[entityType]; ok {
		return cursor, nil
	}
	return &models.SyncCursor{EntityType: entityType, Status: models.SyncStatusPending}, nil
}

func (f *fakeCursorStore) Record(ctx context.Context, outcome models.RunOutcome) (*models.SyncCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, outcome)
	return &models.SyncCursor{EntityType: outcome.EntityType, Status: outcome.Status}, nil
}

func (f *fakeCursorStore) outcomeFor(entityType models.EntityType) (models.RunOutcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, outcome := range f.recorded {
		if outcome.EntityType == entityType {
			return outcome, true
		}
	}
	return models.RunOutcome{}, false
}

type fakeRawStore struct {
	mu       sync.Mutex
	appends  map[models.EntityType]int
	appendTo int
	err      error
}

func (f *fakeRawStore) Append(ctx context.Context, entityType models.EntityType, records []sources.Record, ingestedAt time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.appends == nil {
		f.appends = map[models.EntityType]int{}
	}
	n := len(records)
	if f.appendTo > 0 && f.appendTo < n {
		n = f.appendTo
	}
	f.appends[entityType] += n
	return n, nil
}

type fakeProcessedStore struct {
	mu       sync.Mutex
	rebuilds map[models.EntityType]int
	subs     []models.StripeSubscription
	counts   map[string]models.SubscriptionCounts
}

func (f *fakeProcessedStore) Rebuild(ctx context.Context, entityType models.EntityType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rebuilds == nil {
		f.rebuilds = map[models.EntityType]int{}
	}
	f.rebuilds[entityType]++
	return 0, nil
}

func (f *fakeProcessedStore) ListStripeSubscriptions(ctx context.Context) ([]models.StripeSubscription, error) {
	return f.subs, nil
}

func (f *fakeProcessedStore) StripeSubscriptionCounts(ctx context.Context) (map[string]models.SubscriptionCounts, error) {
	return f.counts, nil
}

type fakeUnifiedStore struct {
	replaced []models.UnifiedCustomer
	err      error
}

func (f *fakeUnifiedStore) Replace(ctx context.Context, customers []models.UnifiedCustomer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.replaced = customers
	return len(customers), nil
}

type fakeSnapshotStore struct {
	replaced []models.CustomerSnapshot
}

func (f *fakeSnapshotStore) Replace(ctx context.Context, snapshots []models.CustomerSnapshot) (int, error) {
	f.replaced = snapshots
	return len(snapshots), nil
}

type fakeUnifier struct {
	customers []models.UnifiedCustomer
	err       error
}

func (f *fakeUnifier) Build(ctx context.Context) ([]models.UnifiedCustomer, error) {
	return f.customers, f.err
}

type fakeNotifier struct {
	enabled bool
	err     error
	entries []models.NewCustomerEntry
}

func (f *fakeNotifier) Enabled() bool {
	return f.enabled
}

func (f *fakeNotifier) Notify(ctx context.Context, entries []models.NewCustomerEntry) (int, error) {
	f.entries = entries
	if f.err != nil {
		return 0, f.err
	}
	return len(entries), nil
}

type deps struct {
	client    *fakeClient
	cursors   *fakeCursorStore
	raw       *fakeRawStore
	processed *fakeProcessedStore
	unified   *fakeUnifiedStore
	snapshots *fakeSnapshotStore
	unifier   *fakeUnifier
	notifier  *fakeNotifier
}

func newTestSyncer(d *deps) *Syncer {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return New(
		d.client,
		d.client,
		d.cursors,
		d.raw,
		d.processed,
		d.unified,
		d.snapshots,
		d.unifier,
		snapshot.NewBuilder(logger),
		d.notifier,
		events.NewEmitter(nil, logger),
		logger,
	)
}

func newDeps() *deps {
	return &deps{
		client:    &fakeClient{results: map[models.EntityType]sources.FetchResult{}, errs: map[models.EntityType]error{}},
		cursors:   &fakeCursorStore{cursors: map[models.EntityType]*models.SyncCursor{}, latestErr: map[models.EntityType]error{}},
		raw:       &fakeRawStore{},
		processed: &fakeProcessedStore{},
		unified:   &fakeUnifiedStore{},
		snapshots: &fakeSnapshotStore{},
		unifier:   &fakeUnifier{},
		notifier:  &fakeNotifier{},
	}
}

func customerRecord(id, email string, createdAt time.Time) sources.Record {
	payload, _ := json.Marshal(map[string]any{
		"id":      id,
		"email":   email,
		"created": createdAt.Unix(),
	})
	return sources.Record{ID: id, Payload: payload, CreatedAt: createdAt}
}

func TestTryRun_SuccessAdvancesCursor(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d := newDeps()
	d.client.results[models.EntityTypeStripeCustomers] = sources.FetchResult{
		Records: []sources.Record{
			customerRecord("cus_1", "a@example.com", base),
			customerRecord("cus_2", "b@example.com", base.Add(time.Hour)),
		},
		Pages: 1,
	}

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_customers"},
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.Entities, 1)
	assert.Equal(t, models.SyncStatusSuccess, result.Entities[0].Status)
	assert.Equal(t, 2, result.Entities[0].RecordsSynced)

	assert.Equal(t, 2, d.raw.appends[models.EntityTypeStripeCustomers])
	assert.Equal(t, 1, d.processed.rebuilds[models.EntityTypeStripeCustomers])

	outcome, ok := d.cursors.outcomeFor(models.EntityTypeStripeCustomers)
	assert.True(t, ok)
	assert.Equal(t, models.SyncStatusSuccess, outcome.Status)
	assert.Equal(t, base.Add(time.Hour), outcome.LastSyncTimestamp)
	assert.Equal(t, "cus_2", outcome.LastSyncedID)
	assert.Equal(t, result.RunID, outcome.RunID)

	assert.True(t, result.Unify.Ran)
	assert.True(t, result.Snapshot.Ran)
}

func TestTryRun_FetchResumesFromLatestCursor(t *testing.T) {
	lastSync := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	d := newDeps()
	d.cursors.cursors[models.EntityTypeStripeCustomers] = &models.SyncCursor{
		EntityType:        models.EntityTypeStripeCustomers,
		LastSyncTimestamp: lastSync,
		Status:            models.SyncStatusSuccess,
	}

	_, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_customers"},
	})

	assert.NoError(t, err)
	assert.Equal(t, lastSync, d.client.since[models.EntityTypeStripeCustomers])
}

func TestTryRun_EmptyFetchCarriesCursorForward(t *testing.T) {
	lastSync := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	d := newDeps()
	d.cursors.cursors[models.EntityTypeStripeSubscriptions] = &models.SyncCursor{
		EntityType:        models.EntityTypeStripeSubscriptions,
		LastSyncTimestamp: lastSync,
		Status:            models.SyncStatusSuccess,
	}

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_subscriptions"},
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, d.raw.appends[models.EntityTypeStripeSubscriptions])
	assert.Zero(t, d.processed.rebuilds[models.EntityTypeStripeSubscriptions])

	outcome, ok := d.cursors.outcomeFor(models.EntityTypeStripeSubscriptions)
	assert.True(t, ok)
	assert.Equal(t, lastSync, outcome.LastSyncTimestamp)
	assert.Equal(t, "", outcome.LastSyncedID)
	assert.Zero(t, outcome.RecordsSynced)
}

func TestTryRun_PartialFetchPersistsRecordsAndRecordsFailedRun(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d := newDeps()
	d.client.results[models.EntityTypeStripeCustomers] = sources.FetchResult{
		Records: []sources.Record{customerRecord("cus_1", "a@example.com", base)},
		Pages:   1,
	}
	d.client.errs[models.EntityTypeStripeCustomers] = fmt.Errorf("page 2 unavailable")

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_customers"},
	})

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.SyncStatusFailed, result.Entities[0].Status)
	assert.Equal(t, 1, result.Entities[0].RecordsSynced)
	assert.Equal(t, 1, d.raw.appends[models.EntityTypeStripeCustomers])

	outcome, _ := d.cursors.outcomeFor(models.EntityTypeStripeCustomers)
	assert.Equal(t, models.SyncStatusFailed, outcome.Status)
	assert.Equal(t, base, outcome.LastSyncTimestamp)
	assert.Contains(t, outcome.ErrorMessage, "page 2 unavailable")
}

func TestTryRun_OneEntityFailureDoesNotBlockOthers(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d := newDeps()
	d.client.errs[models.EntityTypeStripeCustomers] = fmt.Errorf("billing source down")
	d.client.results[models.EntityTypeStripeSubscriptions] = sources.FetchResult{
		Records: []sources.Record{{ID: "sub_1", Payload: json.RawMessage(`{"id": "sub_1"}`), CreatedAt: base}},
		Pages:   1,
	}

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_customers", "stripe_subscriptions"},
	})

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.Entities, 2)
	assert.Equal(t, models.SyncStatusFailed, result.Entities[0].Status)
	assert.Equal(t, models.SyncStatusSuccess, result.Entities[1].Status)
	assert.Equal(t, 1, d.raw.appends[models.EntityTypeStripeSubscriptions])
}

func TestTryRun_CursorReadFailureAbortsEntityWithoutFetching(t *testing.T) {
	d := newDeps()
	d.cursors.latestErr[models.EntityTypeStripeCustomers] = fmt.Errorf("history unavailable")

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_customers"},
	})

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.SyncStatusFailed, result.Entities[0].Status)
	assert.Nil(t, d.client.since)

	_, recorded := d.cursors.outcomeFor(models.EntityTypeStripeCustomers)
	assert.False(t, recorded)
}

func TestTryRun_RejectsConcurrentRuns(t *testing.T) {
	d := newDeps()
	d.client.block = make(chan struct{})
	d.client.started = make(chan struct{})
	s := newTestSyncer(d)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.TryRun(context.Background(), models.RunRequest{Entities: []string{"stripe_customers"}})
		assert.NoError(t, err)
	}()

	// Wait until the first run holds the lock inside the blocked fetch.
	<-d.client.started

	_, err := s.TryRun(context.Background(), models.RunRequest{Entities: []string{"stripe_customers"}})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(d.client.block)
	wg.Wait()

	_, err = s.TryRun(context.Background(), models.RunRequest{Entities: []string{"stripe_customers"}})
	assert.NoError(t, err)
}

func TestTryRun_UnifyFailureSkipsSnapshot(t *testing.T) {
	d := newDeps()
	d.unifier.err = fmt.Errorf("projection read failed")

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_customers"},
	})

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Unify.Ran)
	assert.Equal(t, "projection read failed", result.Unify.Error)
	assert.False(t, result.Snapshot.Ran)
	assert.Nil(t, d.snapshots.replaced)
}

func TestTryRun_SnapshotBuiltFromUnifiedCustomers(t *testing.T) {
	d := newDeps()
	d.unifier.customers = []models.UnifiedCustomer{
		{CustomerID: "cus_1", StripeSubscriptions: []models.StripeSubscription{{ID: "sub_1", Status: "active"}}},
	}
	d.processed.counts = map[string]models.SubscriptionCounts{"cus_1": {Total: 1, Active: 1}}

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_subscriptions"},
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Unify.Rows)
	assert.Equal(t, 1, result.Snapshot.Rows)
	assert.Len(t, d.snapshots.replaced, 1)
	assert.Equal(t, models.CustomerStatusActive, d.snapshots.replaced[0].CustomerStatus)
}

func TestTryRun_NotificationFailureDoesNotFailRun(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d := newDeps()
	d.client.results[models.EntityTypeStripeCustomers] = sources.FetchResult{
		Records: []sources.Record{customerRecord("cus_1", "a@example.com", base)},
		Pages:   1,
	}
	d.notifier.enabled = true
	d.notifier.err = fmt.Errorf("receiver unreachable")

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_customers"},
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Notification.Ran)
	assert.Equal(t, "receiver unreachable", result.Notification.Error)
	assert.Len(t, d.notifier.entries, 1)
	assert.Equal(t, "cus_1", d.notifier.entries[0].CustomerID)
}

func TestTryRun_UnconfiguredNotifierSurfacesErrorForNewCustomers(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d := newDeps()
	d.client.results[models.EntityTypeStripeCustomers] = sources.FetchResult{
		Records: []sources.Record{customerRecord("cus_1", "a@example.com", base)},
		Pages:   1,
	}
	d.notifier.enabled = false

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_customers"},
	})

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Notification.Ran)
	assert.Equal(t, "receiver webhook not configured", result.Notification.Error)
	assert.Nil(t, d.notifier.entries)
}

func TestTryRun_NoNewCustomersSkipsNotification(t *testing.T) {
	d := newDeps()
	d.notifier.enabled = true

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"stripe_customers"},
	})

	assert.NoError(t, err)
	assert.False(t, result.Notification.Ran)
	assert.Nil(t, d.notifier.entries)
}

func TestTryRun_UnknownEntityFails(t *testing.T) {
	d := newDeps()

	result, err := newTestSyncer(d).TryRun(context.Background(), models.RunRequest{
		Entities: []string{"bogus_entities"},
	})

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestResolveEntities_DefaultsToAllEntityTypes(t *testing.T) {
	entities, err := resolveEntities(models.RunRequest{})

	assert.NoError(t, err)
	assert.Equal(t, models.AllEntityTypes(), entities)
}

func TestResolveEntities_ExcludingAutoCareLimitsToBillingTypes(t *testing.T) {
	exclude := false
	entities, err := resolveEntities(models.RunRequest{IncludeAutoCare: &exclude})

	assert.NoError(t, err)
	assert.Equal(t, models.StripeEntityTypes(), entities)
}

func TestResolveEntities_ExplicitListFiltersAutoCare(t *testing.T) {
	exclude := false
	entities, err := resolveEntities(models.RunRequest{
		Entities:        []string{"stripe_customers", "autocare_customers"},
		IncludeAutoCare: &exclude,
	})

	assert.NoError(t, err)
	assert.Equal(t, []models.EntityType{models.EntityTypeStripeCustomers}, entities)
}
