// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package embedding is a client for OpenAI-compatible embedding providers.
//
// Texts are sent in batches to POST {url}/embeddings. Calls go through a
// circuit breaker and are retried with exponential backoff; vectors are
// cached in an LRU keyed by a hash of model and text, so rebuilding the
// similarity matrix only pays for services whose text changed.
//
// The same client can rewrite service descriptions through POST
// {url}/chat/completions before they are embedded (see Enhance).
package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/sahayak/internal/cache"
	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/metrics"
	"github.com/tomtom215/sahayak/internal/resilience"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("embedding provider not configured")

const (
	breakerName     = "embedding-api"
	chatBreakerName = "embedding-chat-api"
	vectorCacheName = "vectors"
	maxResponseSize = 64 << 20
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client embeds texts through the provider.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	model         string
	batchSize     int
	retryAttempts int
	retryDelay    time.Duration

	chatModel string
	maxTokens int

	cb       *gobreaker.CircuitBreaker[[][]float64]
	chatCB   *gobreaker.CircuitBreaker[string]
	cache    *cache.LRUCache[[]float64]
	enhanced *cache.LRUCache[string]
	logger   zerolog.Logger
}

// NewClient builds a client from cfg.
func NewClient(cfg *config.EmbeddingConfig, logger zerolog.Logger) *Client {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.EnhanceMaxTokens
	if maxTokens <= 0 {
		maxTokens = 200
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		batchSize:     batch,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		chatModel:     cfg.ChatModel,
		maxTokens:     maxTokens,
		cb:            resilience.NewBreaker[[][]float64](breakerName, resilience.BreakerSettings{}),
		chatCB:        resilience.NewBreaker[string](chatBreakerName, resilience.BreakerSettings{}),
		cache:         cache.NewLRUCache[[]float64](cfg.CacheSize, 0),
		enhanced:      cache.NewLRUCache[string](cfg.CacheSize, cfg.EnhanceCacheTTL),
		logger:        logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns one vector per text, in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	out := make([][]float64, len(texts))
	var missing []int
	for i, t := range texts {
		if v, ok := c.cache.Get(c.cacheKey(t)); ok {
			out[i] = v
			metrics.EmbeddingCacheHits.Inc()
			continue
		}
		metrics.EmbeddingCacheMisses.Inc()
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += c.batchSize {
		end := min(start+c.batchSize, len(missing))
		idx := missing[start:end]
		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}

		vectors, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for j, i := range idx {
			out[i] = vectors[j]
			c.cache.Add(c.cacheKey(texts[i]), vectors[j])
		}
	}

	c.recordCache(vectorCacheName, c.cache)
	c.logger.Debug().Int("texts", len(texts)).Int("fetched", len(missing)).Msg("Embeddings resolved")
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float64, error) {
	var vectors [][]float64
	err := resilience.Retry(ctx, c.logger, "embed", c.retryAttempts, c.retryDelay, func(ctx context.Context) error {
		v, err := c.cb.Execute(func() ([][]float64, error) {
			return c.post(ctx, batch)
		})
		metrics.RecordEmbeddingRequest(err)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	return vectors, nil
}

func (c *Client) post(ctx context.Context, batch []string) ([][]float64, error) {
	data, err := c.call(ctx, "/embeddings", embeddingRequest{Model: c.model, Input: batch})
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) != len(batch) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(parsed.Data), len(batch))
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	out := make([][]float64, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// call POSTs payload to path and returns the body of a 200 response. Client
// errors other than 429 are permanent.
func (c *Client) call(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("provider returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}
	return data, nil
}

func (c *Client) recordCache(name string, lru interface{ Stats() (int64, int64, int) }) {
	hits, misses, size := lru.Stats()
	metrics.RecordEmbeddingCache(name, size)
	c.logger.Debug().Str("cache", name).Int64("hits", hits).Int64("misses", misses).
		Int("size", size).Msg("Embedding cache stats")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
