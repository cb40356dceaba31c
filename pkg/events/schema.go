package events

// EventType defines the type of event
type EventType string

const (
	// Run lifecycle events
	EventTypeSyncRunStarted   EventType = "sync.run.started"
	EventTypeSyncRunCompleted EventType = "sync.run.completed"
	EventTypeSyncRunFailed    EventType = "sync.run.failed"

	// Entity-level events
	EventTypeEntitySynced EventType = "sync.entity.synced"

	// Customer events
	EventTypeCustomerCreated EventType = "customer.created"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"
