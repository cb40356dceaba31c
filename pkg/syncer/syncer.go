// Package syncer orchestrates a sync run: per-entity incremental fetch into
// the raw audit tables, processed rebuilds, cursor bookkeeping, then the
// unify, snapshot, and notification stages.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	sagecontext "github.com/Ramsey-B/sage/pkg/context"
	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/flatten"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/notify"
	"github.com/Ramsey-B/sage/pkg/snapshot"
	"github.com/Ramsey-B/sage/pkg/sources"
	"github.com/Ramsey-B/sage/pkg/tracing"
	"github.com/Ramsey-B/sage/pkg/unify"
)

// ErrRunInProgress is returned when a run is triggered while another run is
// still executing. Runs rebuild shared tables, so they never overlap.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// CursorStore reads and appends sync history.
type CursorStore interface {
	Latest(ctx context.Context, entityType models.EntityType) (*models.SyncCursor, error)
	Record(ctx context.Context, outcome models.RunOutcome) (*models.SyncCursor, error)
}

// RawStore appends fetched payloads to the audit tables.
type RawStore interface {
	Append(ctx context.Context, entityType models.EntityType, records []sources.Record, ingestedAt time.Time) (int, error)
}

// ProcessedStore rebuilds projections and serves the reads the notification
// stage needs.
type ProcessedStore interface {
	Rebuild(ctx context.Context, entityType models.EntityType) (int, error)
	ListStripeSubscriptions(ctx context.Context) ([]models.StripeSubscription, error)
	StripeSubscriptionCounts(ctx context.Context) (map[string]models.SubscriptionCounts, error)
}

// UnifiedStore persists the merged customer view.
type UnifiedStore interface {
	Replace(ctx context.Context, customers []models.UnifiedCustomer) (int, error)
}

// SnapshotStore persists the BI rows.
type SnapshotStore interface {
	Replace(ctx context.Context, snapshots []models.CustomerSnapshot) (int, error)
}

// Unifier builds the merged customer view.
type Unifier interface {
	Build(ctx context.Context) ([]models.UnifiedCustomer, error)
}

// Notifier delivers new-customer webhooks.
type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, entries []models.NewCustomerEntry) (int, error)
}

// Syncer runs the sync pipeline.
type Syncer struct {
	clients   map[string]sources.Client
	cursors   CursorStore
	raw       RawStore
	processed ProcessedStore
	unified   UnifiedStore
	snapshots SnapshotStore
	unifier   Unifier
	builder   *snapshot.Builder
	notifier  Notifier
	emitter   *events.Emitter
	logger    ectologger.Logger

	mu sync.Mutex
}

func New(
	stripeClient sources.Client,
	autocareClient sources.Client,
	cursors CursorStore,
	raw RawStore,
	processed ProcessedStore,
	unified UnifiedStore,
	snapshots SnapshotStore,
	unifier Unifier,
	builder *snapshot.Builder,
	notifier Notifier,
	emitter *events.Emitter,
	logger ectologger.Logger,
) *Syncer {
	return &Syncer{
		clients: map[string]sources.Client{
			models.SourceStripe:   stripeClient,
			models.SourceAutoCare: autocareClient,
		},
		cursors:   cursors,
		raw:       raw,
		processed: processed,
		unified:   unified,
		snapshots: snapshots,
		unifier:   unifier,
		builder:   builder,
		notifier:  notifier,
		emitter:   emitter,
		logger:    logger,
	}
}

// TryRun executes a run unless one is already in progress.
func (s *Syncer) TryRun(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()
	return s.run(ctx, req)
}

// resolveEntities maps the request to the entity types to sync, in the
// canonical sync order.
func resolveEntities(req models.RunRequest) ([]models.EntityType, error) {
	includeAutoCare := true
	if req.IncludeAutoCare != nil {
		includeAutoCare = *req.IncludeAutoCare
	}

	if len(req.Entities) == 0 {
		if includeAutoCare {
			return models.AllEntityTypes(), nil
		}
		return models.StripeEntityTypes(), nil
	}

	entities := make([]models.EntityType, 0, len(req.Entities))
	for _, raw := range req.Entities {
		entityType := models.EntityType(raw)
		if !entityType.Valid() {
			return nil, fmt.Errorf("unknown entity type: %s", raw)
		}
		if !includeAutoCare && entityType.Source() == models.SourceAutoCare {
			continue
		}
		entities = append(entities, entityType)
	}
	return entities, nil
}

type entityOutcome struct {
	result  models.EntityResult
	records []sources.Record
}

func (s *Syncer) run(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	ctx, span := tracing.StartSpan(ctx, "syncer.Syncer.Run")
	defer span.End()

	entities, err := resolveEntities(req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = sagecontext.SetSyncRunID(ctx, runID)
	startedAt := time.Now().UTC()

	result := &models.RunResult{
		RunID:     runID,
		StartedAt: startedAt,
		Success:   true,
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":   runID,
		"entities": entities,
	}).Info("Starting sync run")
	s.emitter.EmitRunStarted(ctx, runID, entities)

	// Entity syncs run concurrently; a failure in one entity never blocks
	// the others, it only marks the run failed.
	outcomes := make([]entityOutcome, len(entities))
	var wg sync.WaitGroup
	for i, entityType := range entities {
		wg.Add(1)
		go func(i int, entityType models.EntityType) {
			defer wg.Done()
			outcomes[i] = s.syncEntity(ctx, runID, entityType)
		}(i, entityType)
	}
	wg.Wait()

	var newStripeCustomers []sources.Record
	for i, entityType := range entities {
		outcome := outcomes[i]
		result.Entities = append(result.Entities, outcome.result)
		if outcome.result.Status != models.SyncStatusSuccess {
			result.Success = false
		}
		if entityType == models.EntityTypeStripeCustomers {
			newStripeCustomers = outcome.records
		}
		s.emitter.EmitEntitySynced(ctx, runID, outcome.result)
	}

	// Unify and snapshot run strictly after every entity sync has settled,
	// even a partially failed run: the processed tables reflect whatever
	// landed, and the derived views should too.
	unifiedCustomers := s.runUnify(ctx, result)
	s.runSnapshot(ctx, result, unifiedCustomers)
	s.runNotification(ctx, runID, result, newStripeCustomers)

	result.CompletedAt = time.Now().UTC()

	status := "success"
	if !result.Success {
		status = "failed"
	}
	metrics.RecordSyncRun("all", status, result.CompletedAt.Sub(startedAt).Seconds())

	s.emitter.EmitRunCompleted(ctx, result)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":   runID,
		"success":  result.Success,
		"duration": result.CompletedAt.Sub(startedAt).String(),
	}).Info("Sync run finished")

	return result, nil
}

// syncEntity fetches one entity stream from its cursor position, appends the
// payloads to the audit table, rebuilds the projection, and records the
// outcome. Partial fetches are persisted and recorded as a failed run at the
// last complete position, so the next run resumes without losing data.
func (s *Syncer) syncEntity(ctx context.Context, runID string, entityType models.EntityType) entityOutcome {
	ctx, span := tracing.StartSpan(ctx, "syncer.Syncer.syncEntity")
	defer span.End()

	entityStartedAt := time.Now().UTC()
	outcome := entityOutcome{
		result: models.EntityResult{
			EntityType: entityType,
			Status:     models.SyncStatusSuccess,
		},
	}

	cursor, err := s.cursors.Latest(ctx, entityType)
	if err != nil {
		// A history read failure aborts this entity before any fetch. The
		// alternative, restarting from epoch, would silently re-sync the
		// world.
		outcome.result.Status = models.SyncStatusFailed
		outcome.result.Error = err.Error()
		return outcome
	}

	fetched, fetchErr := s.clients[entityType.Source()].FetchSince(ctx, entityType, cursor.LastSyncTimestamp)
	outcome.records = fetched.Records
	outcome.result.Pages = fetched.Pages

	ingestedAt := time.Now().UTC()
	appended := 0
	if len(fetched.Records) > 0 {
		appended, err = s.raw.Append(ctx, entityType, fetched.Records, ingestedAt)
		if err != nil {
			fetchErr = combineErrors(fetchErr, err)
		} else if _, err := s.processed.Rebuild(ctx, entityType); err != nil {
			fetchErr = combineErrors(fetchErr, err)
		}
	}
	outcome.result.RecordsSynced = appended

	// The cursor advances to the newest persisted record. With no new
	// records (or none persisted) the previous position carries forward.
	nextTimestamp := cursor.LastSyncTimestamp
	lastSyncedID := ""
	if appended > 0 {
		persisted := fetched.Records[:appended]
		if max := sources.MaxCreatedAt(persisted); max.After(nextTimestamp) {
			nextTimestamp = max
		}
		lastSyncedID = persisted[len(persisted)-1].ID
	}

	runOutcome := models.RunOutcome{
		EntityType:        entityType,
		LastSyncTimestamp: nextTimestamp,
		LastSyncedID:      lastSyncedID,
		RecordsSynced:     appended,
		RunID:             runID,
		RunStartedAt:      entityStartedAt,
		RunCompletedAt:    time.Now().UTC(),
		Status:            models.SyncStatusSuccess,
	}
	if fetchErr != nil {
		runOutcome.Status = models.SyncStatusFailed
		runOutcome.ErrorMessage = fetchErr.Error()
		outcome.result.Status = models.SyncStatusFailed
		outcome.result.Error = fetchErr.Error()
	}

	if _, err := s.cursors.Record(ctx, runOutcome); err != nil {
		outcome.result.Status = models.SyncStatusFailed
		outcome.result.Error = combineErrors(fetchErr, err).Error()
	}

	metrics.RecordSyncRun(string(entityType), string(outcome.result.Status), time.Since(entityStartedAt).Seconds())
	return outcome
}

func (s *Syncer) runUnify(ctx context.Context, result *models.RunResult) []models.UnifiedCustomer {
	ctx, span := tracing.StartSpan(ctx, "syncer.Syncer.runUnify")
	defer span.End()

	result.Unify.Ran = true
	customers, err := s.unifier.Build(ctx)
	if err != nil {
		result.Unify.Error = err.Error()
		result.Success = false
		return nil
	}

	rows, err := s.unified.Replace(ctx, customers)
	if err != nil {
		result.Unify.Error = err.Error()
		result.Success = false
		return nil
	}

	result.Unify.Rows = rows
	return customers
}

func (s *Syncer) runSnapshot(ctx context.Context, result *models.RunResult, customers []models.UnifiedCustomer) {
	ctx, span := tracing.StartSpan(ctx, "syncer.Syncer.runSnapshot")
	defer span.End()

	if result.Unify.Error != "" {
		// The snapshot derives from the unified view; skip rather than
		// rebuild from stale data.
		return
	}
	result.Snapshot.Ran = true

	counts, err := s.processed.StripeSubscriptionCounts(ctx)
	if err != nil {
		result.Snapshot.Error = err.Error()
		result.Success = false
		return
	}

	rows, err := s.snapshots.Replace(ctx, s.builder.Build(ctx, customers, counts))
	if err != nil {
		result.Snapshot.Error = err.Error()
		result.Success = false
		return
	}
	result.Snapshot.Rows = rows
}

// runNotification delivers the new-customer webhook for billing customers
// first seen this run. Delivery failure is recorded in the result but does
// not fail the run; the sync already landed and re-sending next run is safe.
func (s *Syncer) runNotification(ctx context.Context, runID string, result *models.RunResult, newCustomers []sources.Record) {
	ctx, span := tracing.StartSpan(ctx, "syncer.Syncer.runNotification")
	defer span.End()

	if len(newCustomers) == 0 {
		return
	}
	if !s.notifier.Enabled() {
		result.Notification.Error = "receiver webhook not configured"
		s.logger.WithContext(ctx).Warn("New customers synced but the receiver webhook is not configured")
		return
	}
	result.Notification.Ran = true

	ingestedAt := time.Now().UTC()
	customers := make([]models.StripeCustomer, 0, len(newCustomers))
	for _, record := range newCustomers {
		customer, err := flatten.StripeCustomer(record.Payload, ingestedAt)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Skipping unflattenable customer in notification")
			continue
		}
		customers = append(customers, customer)
	}

	subs, err := s.processed.ListStripeSubscriptions(ctx)
	if err != nil {
		result.Notification.Error = err.Error()
		return
	}
	subsByCustomer := make(map[string][]models.StripeSubscription)
	for _, sub := range subs {
		subsByCustomer[sub.CustomerID] = append(subsByCustomer[sub.CustomerID], sub)
	}

	entries := notify.BuildEntries(customers, subsByCustomer)
	if len(entries) == 0 {
		return
	}

	sent, err := s.notifier.Notify(ctx, entries)
	result.Notification.Rows = sent
	if err != nil {
		result.Notification.Error = err.Error()
		s.logger.WithContext(ctx).WithError(err).Error("New-customer notification delivery failed")
		return
	}

	s.emitter.EmitCustomersCreated(ctx, runID, entries)
}

func combineErrors(a, b error) error {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return fmt.Errorf("%v; %v", a, b)
}

var _ Unifier = (*unify.Engine)(nil)
