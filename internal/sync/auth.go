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
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/metrics"
	"github.com/tomtom215/sahayak/internal/resilience"
)

// maxErrorBodySize limits how much of an error response is read.
const maxErrorBodySize = 64 * 1024

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	JWT         string `json:"jwt"`
}

func (r *loginResponse) bearer() string {
	switch {
	case r.Token != "":
		return r.Token
	case r.AccessToken != "":
		return r.AccessToken
	default:
		return r.JWT
	}
}

// Authenticator obtains and caches the authority's bearer token.
//
// The token is never introspected for expiry. It is treated as valid until
// issuance plus the configured lifetime, less a refresh skew; issuance is
// the token's iat claim when present and the local clock otherwise.
type Authenticator struct {
	httpClient *http.Client
	loginURL   string
	username   string
	password   string
	lifetime   time.Duration
	skew       time.Duration
	attempts   int
	delay      time.Duration
	logger     zerolog.Logger
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewAuthenticator builds an authenticator from cfg.
func NewAuthenticator(cfg *config.SyncConfig, httpClient *http.Client, logger zerolog.Logger) *Authenticator {
	lifetime := cfg.TokenLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return &Authenticator{
		httpClient: httpClient,
		loginURL:   cfg.LoginURL,
		username:   cfg.Username,
		password:   cfg.Password,
		lifetime:   lifetime,
		skew:       cfg.TokenRefreshSkew,
		attempts:   cfg.AuthRetryAttempts,
		delay:      cfg.AuthRetryDelay,
		logger:     logger,
		now:        time.Now,
	}
}

// Token returns a cached token or logs in.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Before(a.expiresAt) {
		return a.token, nil
	}

	var token string
	err := resilience.Retry(ctx, a.logger, "authenticate", a.attempts, a.delay, func(ctx context.Context) error {
		t, err := a.login(ctx)
		metrics.RecordAuthAttempt(err)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Login to external authority failed")
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}

	issued, ok := issuedAt(token)
	if !ok {
		issued = a.now()
	}
	a.token = token
	a.expiresAt = issued.Add(a.lifetime - a.skew)
	a.logger.Info().Time("expires_at", a.expiresAt).Bool("iat_claim", ok).Msg("Authenticated with external authority")
	return token, nil
}

// Invalidate drops the cached token, forcing the next Token call to log in.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	a.token = ""
	a.expiresAt = time.Time{}
	a.mu.Unlock()
}

func (a *Authenticator) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{Username: a.username, Password: a.password})
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("marshal login: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.loginURL, bytes.NewReader(body))
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("create login request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned status %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	token := parsed.bearer()
	if token == "" {
		return "", resilience.Permanent(errors.New("login response carries no token"))
	}
	return token, nil
}

// issuedAt reads the iat claim without verifying the signature; the token
// is only ever presented back to its issuer.
func issuedAt(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return time.Time{}, false
	}
	return iat.Time, true
}

func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(body)
}
