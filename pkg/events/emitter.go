// Package events handles event emission for sync run and customer lifecycle
// changes. Emission is best effort: the sync pipeline never fails because a
// broker was unreachable.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/kafka"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Emitter publishes sync lifecycle events
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter. producer may be nil, which
// disables emission.
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitRunStarted emits a sync.run.started event
func (e *Emitter) EmitRunStarted(ctx context.Context, runID string, entities []models.EntityType) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunStarted")
	defer span.End()

	if e.producer == nil {
		return
	}

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"entities":       entities,
	})

	event := &kafka.SyncEvent{
		EventType: string(EventTypeSyncRunStarted),
		RunID:     runID,
		Data:      data,
	}
	if err := e.producer.PublishSyncEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit sync.run.started event")
	}
}

// EmitRunCompleted emits a sync.run.completed or sync.run.failed event with
// the full run result as payload
func (e *Emitter) EmitRunCompleted(ctx context.Context, result *models.RunResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	if e.producer == nil {
		return
	}

	eventType := EventTypeSyncRunCompleted
	if !result.Success {
		eventType = EventTypeSyncRunFailed
	}

	data, err := json.Marshal(result)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to encode run result event")
		return
	}

	event := &kafka.SyncEvent{
		EventType: string(eventType),
		RunID:     result.RunID,
		Data:      data,
	}
	if err := e.producer.PublishSyncEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit run completion event")
	}
}

// EmitEntitySynced emits a sync.entity.synced event for one entity outcome
func (e *Emitter) EmitEntitySynced(ctx context.Context, runID string, result models.EntityResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntitySynced")
	defer span.End()

	if e.producer == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to encode entity sync event")
		return
	}

	event := &kafka.SyncEvent{
		EventType:  string(EventTypeEntitySynced),
		RunID:      runID,
		EntityType: string(result.EntityType),
		Data:       data,
	}
	if err := e.producer.PublishSyncEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit sync.entity.synced event")
	}
}

// EmitCustomersCreated emits one customer.created event per new customer
// entry, batched into a single publish
func (e *Emitter) EmitCustomersCreated(ctx context.Context, runID string, entries []models.NewCustomerEntry) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCustomersCreated")
	defer span.End()

	if e.producer == nil || len(entries) == 0 {
		return
	}

	events := make([]*kafka.SyncEvent, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		events = append(events, &kafka.SyncEvent{
			EventType:  string(EventTypeCustomerCreated),
			RunID:      runID,
			CustomerID: entry.CustomerID,
			Data:       data,
		})
	}

	if err := e.producer.PublishSyncEvents(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit customer.created events")
	}
}
