// Package stripe fetches customers and subscriptions from the Stripe API
// with cursor pagination and incremental created-after filtering.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/httpclient"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/sources"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const defaultPageSize = 100

// Config holds Stripe API settings.
type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
	MaxPages int
}

// Client is the Stripe source client.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger ectologger.Logger
}

func New(cfg Config, http *httpclient.Client, logger ectologger.Logger) *Client {
	if cfg.PageSize <= 0 || cfg.PageSize > defaultPageSize {
		cfg.PageSize = defaultPageSize
	}
	return &Client{
		cfg:    cfg,
		http:   http,
		logger: logger,
	}
}

func (c *Client) Source() string {
	return models.SourceStripe
}

type listResponse struct {
	Object  string            `json:"object"`
	Data    []json.RawMessage `json:"data"`
	HasMore bool              `json:"has_more"`
}

type listItem struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
}

// FetchSince pulls every page of records created strictly after since,
// following starting_after cursors until has_more is false or the page cap
// is reached. On failure the records fetched so far are returned with the
// error so the caller can persist the partial set.
func (c *Client) FetchSince(ctx context.Context, entityType models.EntityType, since time.Time) (sources.FetchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "stripe.Client.FetchSince")
	defer span.End()

	var result sources.FetchResult

	path, err := c.endpoint(entityType)
	if err != nil {
		return result, err
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.cfg.PageSize))
	if entityType == models.EntityTypeStripeSubscriptions {
		params.Set("status", "all")
	}
	if !since.IsZero() && since.Unix() > 0 {
		params.Set("created[gt]", strconv.FormatInt(since.Unix(), 10))
	}

	startingAfter := ""
	for {
		if c.cfg.MaxPages > 0 && result.Pages >= c.cfg.MaxPages {
			c.logger.WithContext(ctx).Warnf("Reached page cap %d fetching %s", c.cfg.MaxPages, entityType)
			break
		}

		if startingAfter != "" {
			params.Set("starting_after", startingAfter)
		}

		page, err := c.fetchPage(ctx, path, params)
		if err != nil {
			sources.SortAscending(result.Records)
			return result, fmt.Errorf("failed to fetch %s page %d: %w", entityType, result.Pages+1, err)
		}
		result.Pages++

		for _, raw := range page.Data {
			var item listItem
			if err := json.Unmarshal(raw, &item); err != nil {
				sources.SortAscending(result.Records)
				return result, fmt.Errorf("failed to decode %s record: %w", entityType, err)
			}
			result.Records = append(result.Records, sources.Record{
				ID:        item.ID,
				Payload:   raw,
				CreatedAt: time.Unix(item.Created, 0).UTC(),
			})
		}

		metrics.SyncRecordsFetched.WithLabelValues(models.SourceStripe, string(entityType)).Add(float64(len(page.Data)))

		if !page.HasMore || len(page.Data) == 0 {
			break
		}

		var last listItem
		if err := json.Unmarshal(page.Data[len(page.Data)-1], &last); err != nil {
			sources.SortAscending(result.Records)
			return result, fmt.Errorf("failed to decode pagination cursor: %w", err)
		}
		startingAfter = last.ID
	}

	sources.SortAscending(result.Records)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_type": entityType,
		"records":     len(result.Records),
		"pages":       result.Pages,
	}).Info("Fetched incremental records from Stripe")

	return result, nil
}

// fetchPage performs one list request with a single retry on transient
// statuses (408, 429, 5xx).
func (c *Client) fetchPage(ctx context.Context, path string, params url.Values) (*listResponse, error) {
	fullURL := c.cfg.BaseURL + path + "?" + params.Encode()
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}

	var resp *httpclient.Response
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		start := time.Now()
		resp, err = c.http.Get(ctx, fullURL, headers)
		if err != nil {
			metrics.RecordSourceRequest(models.SourceStripe, "error", time.Since(start).Seconds())
			continue
		}
		metrics.RecordSourceRequest(models.SourceStripe, strconv.Itoa(resp.StatusCode), resp.Duration.Seconds())
		if !isTransient(resp.StatusCode) {
			break
		}
		err = fmt.Errorf("transient status %d", resp.StatusCode)
	}
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("stripe returned status %d: %s", resp.StatusCode, truncate(resp.Body, 500))
	}

	var page listResponse
	if err := httpclient.ParseJSON(resp, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) endpoint(entityType models.EntityType) (string, error) {
	switch entityType {
	case models.EntityTypeStripeCustomers:
		return "/customers", nil
	case models.EntityTypeStripeSubscriptions:
		return "/subscriptions", nil
	default:
		return "", fmt.Errorf("unknown stripe entity type: %s", entityType)
	}
}

func isTransient(status int) bool {
	return status == 408 || status == 429 || status >= 500
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
