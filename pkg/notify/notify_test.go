package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/sage/pkg/httpclient"
	"github.com/Ramsey-B/sage/pkg/models"
)

func newTestNotifier(cfg Config) *Notifier {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return New(cfg, httpclient.NewClient(httpclient.DefaultConfig(), logger), logger)
}

func strPtr(s string) *string {
	return &s
}

func TestNotify_SendsSecretHeaders(t *testing.T) {
	var gotSecret, gotAuth string
	var gotBody payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("x-webhook-secret")
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(Config{WebhookURL: server.URL, Secret: "s3cret"})
	entries := []models.NewCustomerEntry{
		{CustomerID: "cus_1", Email: strPtr("a@example.com")},
	}

	sent, err := n.Notify(context.Background(), entries)

	assert.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, "s3cret", gotSecret)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Len(t, gotBody.Customers, 1)
	assert.NotNil(t, gotBody.Tags)
}

func TestNotify_ChunksLargePayloads(t *testing.T) {
	var requests int
	var chunkSizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var body payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		chunkSizes = append(chunkSizes, len(body.Customers))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(Config{WebhookURL: server.URL, Secret: "s", ChunkSize: 2})
	entries := []models.NewCustomerEntry{
		{CustomerID: "cus_1", Email: strPtr("a@example.com")},
		{CustomerID: "cus_2", Email: strPtr("b@example.com")},
		{CustomerID: "cus_3", Email: strPtr("c@example.com")},
	}

	sent, err := n.Notify(context.Background(), entries)

	assert.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, 2, requests)
	assert.Equal(t, []int{2, 1}, chunkSizes)
}

func TestNotify_RejectedSecretAbortsDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	n := newTestNotifier(Config{WebhookURL: server.URL, Secret: "wrong"})

	sent, err := n.Notify(context.Background(), []models.NewCustomerEntry{
		{CustomerID: "cus_1", Email: strPtr("a@example.com")},
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "secret")
	assert.Zero(t, sent)
}

func TestNotify_FailedChunkReturnsSentCount(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests > 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(Config{WebhookURL: server.URL, Secret: "s", ChunkSize: 1})

	sent, err := n.Notify(context.Background(), []models.NewCustomerEntry{
		{CustomerID: "cus_1", Email: strPtr("a@example.com")},
		{CustomerID: "cus_2", Email: strPtr("b@example.com")},
	})

	assert.Error(t, err)
	assert.Equal(t, 1, sent)
}

func TestNotify_NotConfiguredSkips(t *testing.T) {
	n := newTestNotifier(Config{})

	sent, err := n.Notify(context.Background(), []models.NewCustomerEntry{
		{CustomerID: "cus_1", Email: strPtr("a@example.com")},
	})

	assert.NoError(t, err)
	assert.Zero(t, sent)
	assert.False(t, n.Enabled())
}

func TestNotify_NoEntriesIsNoop(t *testing.T) {
	n := newTestNotifier(Config{WebhookURL: "http://localhost:1", Secret: "s"})

	sent, err := n.Notify(context.Background(), nil)

	assert.NoError(t, err)
	assert.Zero(t, sent)
}

func TestBuildEntries_OneEntryPerDistinctProduct(t *testing.T) {
	customers := []models.StripeCustomer{
		{ID: "cus_1", Email: strPtr("a@example.com")},
	}
	subs := map[string][]models.StripeSubscription{
		"cus_1": {
			{ID: "sub_1", CustomerID: "cus_1", ProductID: strPtr("prod_a"), PlanName: strPtr("Plan A")},
			{ID: "sub_2", CustomerID: "cus_1", ProductID: strPtr("prod_a"), PlanName: strPtr("Plan A")},
			{ID: "sub_3", CustomerID: "cus_1", ProductID: strPtr("prod_b"), PlanName: strPtr("Plan B")},
		},
	}

	entries := BuildEntries(customers, subs)

	assert.Len(t, entries, 2)
	assert.Equal(t, "prod_a", *entries[0].ProductID)
	assert.Equal(t, "prod_b", *entries[1].ProductID)
}

func TestBuildEntries_NoSubscriptionsStillProducesEntry(t *testing.T) {
	customers := []models.StripeCustomer{
		{ID: "cus_1", Name: strPtr("Alice")},
	}

	entries := BuildEntries(customers, nil)

	assert.Len(t, entries, 1)
	assert.Equal(t, "cus_1", entries[0].CustomerID)
	assert.Nil(t, entries[0].ProductID)
}

func TestBuildEntries_DropsEntriesWithoutContact(t *testing.T) {
	customers := []models.StripeCustomer{
		{ID: "cus_nocontact"},
		{ID: "cus_contact", Phone: strPtr("5551234567")},
	}

	entries := BuildEntries(customers, nil)

	assert.Len(t, entries, 1)
	assert.Equal(t, "cus_contact", entries[0].CustomerID)
}
