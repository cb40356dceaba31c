// Package sources defines the contract shared by the source-system clients.
package sources

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/Ramsey-B/sage/pkg/models"
)

// Record is one fetched source object: the opaque payload for the audit
// store plus the fields the sync engine needs for cursor advancement.
type Record struct {
	ID        string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// FetchResult is the outcome of one incremental fetch. Records are ordered
// ascending by source creation time so the last record's timestamp becomes
// the next cursor position.
type FetchResult struct {
	Records []Record
	Pages   int
}

// Client fetches records from one source system. On a mid-pagination
// failure implementations return the records fetched so far together with
// the error; the caller persists the partial set and records a failed run
// at the last complete position. Fetch is at-least-once across retries,
// never exactly-once.
type Client interface {
	Source() string
	FetchSince(ctx context.Context, entityType models.EntityType, since time.Time) (FetchResult, error)
}

// SortAscending orders records by creation time, id as tie-break.
func SortAscending(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// MaxCreatedAt returns the latest creation time in the set, or the zero time
// when the set is empty.
func MaxCreatedAt(records []Record) time.Time {
	var max time.Time
	for _, r := range records {
		if r.CreatedAt.After(max) {
			max = r.CreatedAt
		}
	}
	return max
}
