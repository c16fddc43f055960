// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/resilience"
)

const (
	breakerName     = "authority-api"
	defaultPageSize = 1000
	maxResponseSize = 256 << 20
)

// errUnauthorized marks a 401 on a data call.
var errUnauthorized = errors.New("authority rejected bearer token")

type windowRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type pageRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Page      int    `json:"Page"`
	Pagesize  int    `json:"Pagesize"`
}

type metaResponse struct {
	TotalNoOfRecords int64 `json:"total_no_of_records"`
}

type pageResponse struct {
	Records []map[string]interface{} `json:"records"`
}

// FetchResult is one table's records for a date window.
type FetchResult struct {
	Table        string
	External     string
	TotalRecords int64
	Pages        int
	Records      []map[string]interface{}
}

// TokenSource supplies bearer tokens for data calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client fetches source tables from the external authority.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	auth          TokenSource
	pageSize      int
	aliases       map[string]string
	limiter       *rate.Limiter
	retryAttempts int
	retryDelay    time.Duration
	cb            *gobreaker.CircuitBreaker[[]byte]
	logger        zerolog.Logger
}

// NewClient builds a client from cfg.
func NewClient(cfg *config.SyncConfig, httpClient *http.Client, auth TokenSource, logger zerolog.Logger) (*Client, error) {
	aliases, err := ParseAliases(cfg.TableAliases)
	if err != nil {
		return nil, err
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := max(cfg.RateBurst, 1)

	return &Client{
		httpClient:    httpClient,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		auth:          auth,
		pageSize:      pageSize,
		aliases:       aliases,
		limiter:       rate.NewLimiter(limit, burst),
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		cb:            resilience.NewBreaker[[]byte](breakerName, resilience.BreakerSettings{}),
		logger:        logger,
	}, nil
}

// ParseAliases parses "local=external" entries.
func ParseAliases(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		local, external, ok := strings.Cut(e, "=")
		local, external = strings.TrimSpace(local), strings.TrimSpace(external)
		if !ok || local == "" || external == "" {
			return nil, fmt.Errorf("invalid table alias %q, want local=external", e)
		}
		out[local] = external
	}
	return out, nil
}

// ExternalName maps a local table to the authority's endpoint name:
// overrides first, then services to service_master, then the ml_ prefix is
// stripped.
func ExternalName(table string, overrides map[string]string) string {
	if ext, ok := overrides[table]; ok {
		return ext
	}
	if table == "services" {
		return "service_master"
	}
	return strings.TrimPrefix(table, "ml_")
}

// Authenticate makes sure a valid token is cached.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.auth.Token(ctx)
	return err
}

// FetchTable retrieves every record of table between from and to
// (inclusive, YYYY-MM-DD). A meta call reports the total; pages are then
// requested until the total is reached or a page comes back short.
func (c *Client) FetchTable(ctx context.Context, table, from, to string) (*FetchResult, error) {
	ext := ExternalName(table, c.aliases)
	res := &FetchResult{Table: table, External: ext}

	var meta metaResponse
	if err := c.call(ctx, ext, windowRequest{StartDate: from, EndDate: to}, &meta); err != nil {
		return nil, fmt.Errorf("fetch %s meta: %w", table, err)
	}
	res.TotalRecords = meta.TotalNoOfRecords
	c.logger.Info().Str("table", table).Str("from", from).Str("to", to).
		Int64("total_records", meta.TotalNoOfRecords).Msg("Sync meta check")
	if meta.TotalNoOfRecords <= 0 {
		return res, nil
	}

	res.Records = make([]map[string]interface{}, 0, min(meta.TotalNoOfRecords, int64(c.pageSize)*4))
	for page := 1; int64(len(res.Records)) < meta.TotalNoOfRecords; page++ {
		var pr pageResponse
		req := pageRequest{StartDate: from, EndDate: to, Page: page, Pagesize: c.pageSize}
		if err := c.call(ctx, ext, req, &pr); err != nil {
			return nil, fmt.Errorf("fetch %s page %d: %w", table, page, err)
		}
		res.Pages = page
		res.Records = append(res.Records, pr.Records...)
		c.logger.Debug().Str("table", table).Int("page", page).Int("records", len(pr.Records)).Msg("Sync page fetched")
		if len(pr.Records) < c.pageSize {
			break
		}
	}
	return res, nil
}

// call POSTs payload to the table endpoint and decodes the response into
// out. Transient failures are retried; a 401 refreshes the token once.
func (c *Client) call(ctx context.Context, ext string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	url := c.baseURL + "/" + ext

	var data []byte
	err = resilience.Retry(ctx, c.logger, "sync "+ext, c.retryAttempts, c.retryDelay, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return resilience.Permanent(err)
		}
		d, err := c.cb.Execute(func() ([]byte, error) {
			return c.authorizedPost(ctx, url, body)
		})
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorizedPost(ctx context.Context, url string, body []byte) ([]byte, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	data, err := c.post(ctx, url, token, body)
	if !errors.Is(err, errUnauthorized) {
		return data, err
	}

	c.logger.Warn().Str("url", url).Msg("Token rejected, refreshing")
	c.auth.Invalidate()
	if token, err = c.auth.Token(ctx); err != nil {
		return nil, resilience.Permanent(err)
	}
	data, err = c.post(ctx, url, token, body)
	if errors.Is(err, errUnauthorized) {
		return nil, resilience.Permanent(err)
	}
	return data, err
}

func (c *Client) post(ctx context.Context, url, token string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("authority returned status %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.Permanent(fmt.Errorf("authority returned status %d: %s",
			resp.StatusCode, readBodyForError(resp.Body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}
