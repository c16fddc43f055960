// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sahayak/internal/metrics"
	"github.com/tomtom215/sahayak/internal/resilience"
)

const enhancedCacheName = "descriptions"

// enhanceSystemPrompt frames the rewrite. The output is embedded, not shown
// to citizens, so plain text that names the service's domain works best.
const enhanceSystemPrompt = "You rewrite short descriptions of government services offered at " +
	"citizen service centres in West Bengal. Reply with plain text only, no lists or markup. " +
	"Keep every fact from the original, add nothing that is not implied by it, and finish " +
	"with the service's primary domain (for example Certificates, Education, Social Welfare, " +
	"Health, Agriculture or Finance)."

// ErrEmptyCompletion is returned when the provider answers without text.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) enhanceKey(name, description string) string {
	sum := sha256.Sum256([]byte(c.chatModel + "\x00" + name + "\x00" + description))
	return hex.EncodeToString(sum[:])
}

// Enhance rewrites a service description into a fuller, domain-tagged text
// for embedding. Results are cached per model, name and description until
// the cache TTL expires.
func (c *Client) Enhance(ctx context.Context, name, description string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	key := c.enhanceKey(name, description)
	if text, ok := c.enhanced.Get(key); ok {
		metrics.RecordEnhancement("cached")
		return text, nil
	}

	req := chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: enhanceSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Service: %s\nDescription: %s", name, description)},
		},
		Temperature: 0.2,
		MaxTokens:   c.maxTokens,
	}

	var text string
	err := resilience.Retry(ctx, c.logger, "enhance", c.retryAttempts, c.retryDelay, func(ctx context.Context) error {
		t, err := c.chatCB.Execute(func() (string, error) {
			return c.complete(ctx, &req)
		})
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		metrics.RecordEnhancement("error")
		return "", fmt.Errorf("enhance %q: %w", name, err)
	}

	metrics.RecordEnhancement("success")
	c.enhanced.Add(key, text)
	return text, nil
}

// PruneEnhanced drops expired rewrites and publishes the cache size.
func (c *Client) PruneEnhanced() int {
	removed := c.enhanced.CleanupExpired()
	c.recordCache(enhancedCacheName, c.enhanced)
	return removed
}

func (c *Client) complete(ctx context.Context, req *chatRequest) (string, error) {
	data, err := c.call(ctx, "/chat/completions", req)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
