// Package notify delivers new-customer webhook notifications to the
// downstream receiver service.
package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/httpclient"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const defaultChunkSize = 10000

// Config holds receiver webhook settings.
type Config struct {
	WebhookURL string
	Secret     string
	ChunkSize  int
}

// Notifier posts new-customer entries to the receiver webhook.
type Notifier struct {
	cfg    Config
	http   *httpclient.Client
	logger ectologger.Logger
}

func New(cfg Config, http *httpclient.Client, logger ectologger.Logger) *Notifier {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	return &Notifier{
		cfg:    cfg,
		http:   http,
		logger: logger,
	}
}

// Enabled reports whether the notifier has a destination configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.WebhookURL != ""
}

type payload struct {
	Customers []models.NewCustomerEntry `json:"customers"`
	Tags      []string                  `json:"tags"`
}

// Notify posts the entries in chunks. The receiver authenticates with both
// the x-webhook-secret header and a bearer token carrying the same secret.
// A failed chunk aborts delivery; the receiver deduplicates by customer id,
// so re-sending earlier chunks on the next run is harmless.
func (n *Notifier) Notify(ctx context.Context, entries []models.NewCustomerEntry) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "notify.Notifier.Notify")
	defer span.End()

	if len(entries) == 0 {
		return 0, nil
	}
	if !n.Enabled() {
		n.logger.WithContext(ctx).Info("Receiver webhook not configured, skipping notification")
		return 0, nil
	}

	headers := map[string]string{
		"x-webhook-secret": n.cfg.Secret,
		"Authorization":    "Bearer " + n.cfg.Secret,
	}

	sent := 0
	for start := 0; start < len(entries); start += n.cfg.ChunkSize {
		end := start + n.cfg.ChunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		resp, err := n.http.PostJSON(ctx, n.cfg.WebhookURL, payload{Customers: chunk, Tags: []string{}}, headers)
		if err != nil {
			metrics.RecordWebhookNotification("error")
			return sent, fmt.Errorf("failed to post new-customer webhook: %w", err)
		}
		metrics.RecordWebhookNotification(fmt.Sprintf("%d", resp.StatusCode))

		if !resp.IsSuccess() {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return sent, fmt.Errorf("receiver rejected webhook secret with status %d", resp.StatusCode)
			}
			return sent, fmt.Errorf("receiver webhook returned status %d", resp.StatusCode)
		}

		sent += len(chunk)
		n.logger.WithContext(ctx).WithFields(map[string]any{
			"chunk_size": len(chunk),
			"sent":       sent,
			"total":      len(entries),
		}).Info("Delivered new-customer webhook chunk")
	}

	return sent, nil
}

// BuildEntries produces one webhook entry per (customer, product) pair from
// the customer's billing subscriptions, dropping entries with no contact
// information. Customers with no subscriptions still produce a single entry
// when they have contact details.
func BuildEntries(customers []models.StripeCustomer, subsByCustomer map[string][]models.StripeSubscription) []models.NewCustomerEntry {
	var entries []models.NewCustomerEntry
	for _, c := range customers {
		subs := subsByCustomer[c.ID]
		if len(subs) == 0 {
			entry := models.NewCustomerEntry{
				CustomerID: c.ID,
				Email:      c.Email,
				Name:       c.Name,
				Phone:      c.Phone,
			}
			if entry.HasContact() {
				entries = append(entries, entry)
			}
			continue
		}

		seenProducts := make(map[string]bool, len(subs))
		for _, sub := range subs {
			productKey := ""
			if sub.ProductID != nil {
				productKey = *sub.ProductID
			}
			if seenProducts[productKey] {
				continue
			}
			seenProducts[productKey] = true

			entry := models.NewCustomerEntry{
				CustomerID: c.ID,
				Email:      c.Email,
				Name:       c.Name,
				Phone:      c.Phone,
				ProductID:  sub.ProductID,
				PlanName:   sub.PlanName,
			}
			if entry.HasContact() {
				entries = append(entries, entry)
			}
		}
	}
	return entries
}
