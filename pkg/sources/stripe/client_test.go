package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/sage/pkg/httpclient"
	"github.com/Ramsey-B/sage/pkg/models"
)

func newTestClient(cfg Config) *Client {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return New(cfg, httpclient.NewClient(httpclient.DefaultConfig(), logger), logger)
}

func TestFetchSince_FollowsPaginationCursors(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/customers", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		switch r.URL.Query().Get("starting_after") {
		case "":
			fmt.Fprint(w, `{"object": "list", "has_more": true, "data": [
				{"id": "cus_1", "created": 1700000100},
				{"id": "cus_2", "created": 1700000200}
			]}`)
		case "cus_2":
			fmt.Fprint(w, `{"object": "list", "has_more": false, "data": [
				{"id": "cus_3", "created": 1700000300}
			]}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("starting_after"))
		}
	}))
	defer server.Close()

	client := newTestClient(Config{BaseURL: server.URL, APIKey: "sk_test", PageSize: 2})

	result, err := client.FetchSince(context.Background(), models.EntityTypeStripeCustomers, time.Time{})

	assert.NoError(t, err)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, 2, result.Pages)
	assert.Len(t, result.Records, 3)
	assert.Equal(t, "cus_1", result.Records[0].ID)
	assert.Equal(t, "cus_3", result.Records[2].ID)
	assert.Equal(t, time.Unix(1700000300, 0).UTC(), result.Records[2].CreatedAt)
}

func TestFetchSince_SetsIncrementalAndStatusParams(t *testing.T) {
	since := time.Unix(1700000000, 0).UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		assert.Equal(t, "/subscriptions", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("status"))
		assert.Equal(t, "1700000000", r.URL.Query().Get("created[gt]"))
		fmt.Fprint(w, `{"object": "list", "has_more": false, "data": []}`)
	}))
	defer server.Close()

	client := newTestClient(Config{BaseURL: server.URL, APIKey: "sk_test"})

	result, err := client.FetchSince(context.Background(), models.EntityTypeStripeSubscriptions, since)

	assert.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, 1, result.Pages)
}

func TestFetchSince_ZeroSinceOmitsCreatedFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		assert.False(t, r.URL.Query().Has("created[gt]"))
		fmt.Fprint(w, `{"object": "list", "has_more": false, "data": []}`)
	}))
	defer server.Close()

	client := newTestClient(Config{BaseURL: server.URL, APIKey: "sk_test"})

	_, err := client.FetchSince(context.Background(), models.EntityTypeStripeCustomers, time.Time{})

	assert.NoError(t, err)
}

func TestFetchSince_RetriesTransientStatusOnce(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"object": "list", "has_more": false, "data": [{"id": "cus_1", "created": 1700000100}]}`)
	}))
	defer server.Close()

	client := newTestClient(Config{BaseURL: server.URL, APIKey: "sk_test"})

	result, err := client.FetchSince(context.Background(), models.EntityTypeStripeCustomers, time.Time{})

	assert.NoError(t, err)
	assert.Equal(t, 2, requests)
	assert.Len(t, result.Records, 1)
}

func TestFetchSince_MidPaginationFailureReturnsPartialRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("starting_after") == "" {
			fmt.Fprint(w, `{"object": "list", "has_more": true, "data": [
				{"id": "cus_2", "created": 1700000200},
				{"id": "cus_1", "created": 1700000100}
			]}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(Config{BaseURL: server.URL, APIKey: "sk_test", PageSize: 2})

	result, err := client.FetchSince(context.Background(), models.EntityTypeStripeCustomers, time.Time{})

	assert.Error(t, err)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, "cus_1", result.Records[0].ID)
	assert.Equal(t, "cus_2", result.Records[1].ID)
}

func TestFetchSince_RespectsPageCap(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		requests++
		fmt.Fprintf(w, `{"object": "list", "has_more": true, "data": [{"id": "cus_%d", "created": %d}]}`,
			requests, 1700000000+requests)
	}))
	defer server.Close()

	client := newTestClient(Config{BaseURL: server.URL, APIKey: "sk_test", MaxPages: 3})

	result, err := client.FetchSince(context.Background(), models.EntityTypeStripeCustomers, time.Time{})

	assert.NoError(t, err)
	assert.Equal(t, 3, result.Pages)
	assert.Len(t, result.Records, 3)
}

func TestFetchSince_UnknownEntityTypeFails(t *testing.T) {
	client := newTestClient(Config{BaseURL: "http://localhost:1", APIKey: "sk_test"})

	_, err := client.FetchSince(context.Background(), models.EntityTypeAutoCareCustomers, time.Time{})

	assert.Error(t, err)
}
