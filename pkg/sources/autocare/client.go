// Package autocare fetches membership data from the AutoCare marketing API.
// The API exposes a login endpoint that issues a JWT and two bearer-token
// endpoints: a tier lookup and a bulk data endpoint returning mixed record
// kinds. The data endpoint is not incremental server-side, so the client
// filters and orders records locally.
package autocare

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/httpclient"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/sources"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const tokenCacheKey = "sage:autocare:token"

// TokenCache stores the login JWT between runs. Satisfied by pkg/redis.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Config holds AutoCare API settings.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	TokenTTL time.Duration
}

// Client is the AutoCare source client.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	cache  TokenCache
	logger ectologger.Logger
}

// New creates an AutoCare client. cache may be nil, in which case the login
// token is fetched on every run.
func New(cfg Config, http *httpclient.Client, cache TokenCache, logger ectologger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   http,
		cache:  cache,
		logger: logger,
	}
}

func (c *Client) Source() string {
	return models.SourceAutoCare
}

// FetchSince returns records of the requested kind created or updated after
// since, ordered ascending by creation time. Tiers are a small lookup set
// and are always fetched wholesale.
func (c *Client) FetchSince(ctx context.Context, entityType models.EntityType, since time.Time) (sources.FetchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "autocare.Client.FetchSince")
	defer span.End()

	var result sources.FetchResult

	kind, err := recordKind(entityType)
	if err != nil {
		return result, err
	}

	if entityType == models.EntityTypeAutoCareTiers {
		return c.fetchTiers(ctx)
	}

	items, err := c.getList(ctx, "/v1/marketing/data")
	if err != nil {
		return result, fmt.Errorf("failed to fetch marketing data: %w", err)
	}
	result.Pages = 1

	for _, raw := range items {
		var envelope struct {
			Type      string    `json:"type"`
			ID        string    `json:"id"`
			CreatedAt time.Time `json:"created_at"`
			UpdatedAt time.Time `json:"updated_at"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Skipping undecodable marketing record")
			continue
		}
		if envelope.Type != kind || envelope.ID == "" {
			continue
		}

		changedAt := envelope.UpdatedAt
		if changedAt.IsZero() {
			changedAt = envelope.CreatedAt
		}
		if !changedAt.After(since) {
			continue
		}

		result.Records = append(result.Records, sources.Record{
			ID:        envelope.ID,
			Payload:   raw,
			CreatedAt: changedAt,
		})
	}

	sources.SortAscending(result.Records)
	metrics.SyncRecordsFetched.WithLabelValues(models.SourceAutoCare, string(entityType)).Add(float64(len(result.Records)))

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_type": entityType,
		"records":     len(result.Records),
	}).Info("Fetched incremental records from AutoCare")

	return result, nil
}

func (c *Client) fetchTiers(ctx context.Context) (sources.FetchResult, error) {
	var result sources.FetchResult

	items, err := c.getList(ctx, "/v1/marketing/tiers")
	if err != nil {
		return result, fmt.Errorf("failed to fetch tiers: %w", err)
	}
	result.Pages = 1

	now := time.Now().UTC()
	for _, raw := range items {
		var envelope struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.ID == "" {
			continue
		}
		result.Records = append(result.Records, sources.Record{
			ID:        envelope.ID,
			Payload:   raw,
			CreatedAt: now,
		})
	}

	return result, nil
}

// getList performs an authenticated GET and unwraps the {"data": [...]}
// envelope or a bare array. A 401 invalidates the cached token and the
// request is retried once with a fresh login.
func (c *Client) getList(ctx context.Context, path string) ([]json.RawMessage, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := c.http.Get(ctx, c.cfg.BaseURL+path, map[string]string{
			"Authorization": "Bearer " + token,
		})
		if err != nil {
			metrics.RecordSourceRequest(models.SourceAutoCare, "error", time.Since(start).Seconds())
			return nil, err
		}
		metrics.RecordSourceRequest(models.SourceAutoCare, fmt.Sprintf("%d", resp.StatusCode), resp.Duration.Seconds())

		if resp.StatusCode == 401 && attempt == 0 {
			c.invalidateToken(ctx)
			continue
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("autocare returned status %d", resp.StatusCode)
		}

		return unwrapList(resp)
	}
	return nil, fmt.Errorf("autocare auth retry exhausted")
}

func unwrapList(resp *httpclient.Response) ([]json.RawMessage, error) {
	var wrapped struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := httpclient.ParseJSON(resp, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}

	var bare []json.RawMessage
	if err := httpclient.ParseJSON(resp, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

// token returns the cached JWT or logs in for a fresh one.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, tokenCacheKey)
		if err == nil && cached != "" {
			return cached, nil
		}
	}

	if c.cfg.Email == "" || c.cfg.Password == "" {
		return "", fmt.Errorf("autocare credentials (email, password) required")
	}

	resp, err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/login", map[string]string{
		"email":    c.cfg.Email,
		"password": c.cfg.Password,
	}, nil)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(models.SourceAutoCare, "error").Inc()
		return "", fmt.Errorf("autocare login failed: %w", err)
	}
	if resp.StatusCode != 200 && resp.StatusCode != 201 {
		metrics.TokenRefreshes.WithLabelValues(models.SourceAutoCare, "error").Inc()
		return "", fmt.Errorf("autocare login failed with status %d", resp.StatusCode)
	}

	var body struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		JWT         string `json:"jwt"`
	}
	if err := httpclient.ParseJSON(resp, &body); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}

	token := body.Token
	if token == "" {
		token = body.AccessToken
	}
	if token == "" {
		token = body.JWT
	}
	if token == "" {
		return "", fmt.Errorf("autocare login response had no token")
	}

	metrics.TokenRefreshes.WithLabelValues(models.SourceAutoCare, "success").Inc()
	c.logger.WithContext(ctx).Info("AutoCare login successful")

	if c.cache != nil {
		if err := c.cache.Set(ctx, tokenCacheKey, token, c.cfg.TokenTTL); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Failed to cache AutoCare token")
		}
	}

	return token, nil
}

func (c *Client) invalidateToken(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Del(ctx, tokenCacheKey); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate AutoCare token")
	}
}

func recordKind(entityType models.EntityType) (string, error) {
	switch entityType {
	case models.EntityTypeAutoCareCustomers:
		return "customer", nil
	case models.EntityTypeAutoCareSubscriptions:
		return "subscription", nil
	case models.EntityTypeAutoCareSessions:
		return "session", nil
	case models.EntityTypeAutoCareVehicles:
		return "vehicle", nil
	case models.EntityTypeAutoCareTiers:
		return "tier", nil
	default:
		return "", fmt.Errorf("unknown autocare entity type: %s", entityType)
	}
}
