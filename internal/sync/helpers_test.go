// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/events"
	"github.com/tomtom215/sahayak/internal/models"
)

// fakeAuthority serves a login endpoint and paginated table endpoints.
type fakeAuthority struct {
	mu sync.Mutex

	tables   map[string][]map[string]interface{}
	failing  map[string]int // status code returned for a table
	logins   int
	loginErr int // status returned by login while > 0
	calls    map[string]int
	pages    map[string][]int
	windows  map[string][2]string
	tokens   []string
	validTok string
	reject   int // next data calls answered with 401
	iat      time.Time
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{
		tables:  map[string][]map[string]interface{}{},
		failing: map[string]int{},
		calls:   map[string]int{},
		pages:   map[string][]int{},
		windows: map[string][2]string{},
	}
}

func (f *fakeAuthority) issue() string {
	f.logins++
	claims := jwt.MapClaims{"sub": "sync"}
	if !f.iat.IsZero() {
		claims["iat"] = f.iat.Unix()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(fmt.Sprintf("secret-%d", f.logins)))
	if err != nil {
		panic(err)
	}
	f.validTok = tok
	return tok
}

func (f *fakeAuthority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/login" {
		if f.loginErr > 0 {
			w.WriteHeader(f.loginErr)
			return
		}
		var body loginRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username != "bsk" || body.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": f.issue()})
		return
	}

	ext := strings.TrimPrefix(r.URL.Path, "/api/")
	f.calls[ext]++
	f.tokens = append(f.tokens, r.Header.Get("Authorization"))
	if f.reject > 0 {
		f.reject--
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+f.validTok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if code := f.failing[ext]; code != 0 {
		w.WriteHeader(code)
		_, _ = w.Write([]byte("boom"))
		return
	}
	rows, ok := f.tables[ext]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.windows[ext] = [2]string{req.StartDate, req.EndDate}
	if req.Page == 0 {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"total_no_of_records": len(rows)})
		return
	}
	f.pages[ext] = append(f.pages[ext], req.Page)
	start := (req.Page - 1) * req.Pagesize
	end := min(start+req.Pagesize, len(rows))
	if start > len(rows) {
		start = end
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"records": rows[start:end]})
}

func (f *fakeAuthority) callCount(ext string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ext]
}

func testSyncConfig(baseURL string) *config.SyncConfig {
	return &config.SyncConfig{
		Enabled:           true,
		BaseURL:           baseURL + "/api",
		LoginURL:          baseURL + "/login",
		Username:          "bsk",
		Password:          "pw",
		TokenLifetime:     time.Hour,
		TokenRefreshSkew:  time.Minute,
		AuthRetryAttempts: 2,
		AuthRetryDelay:    time.Millisecond,
		Tables:            []string{models.TableCitizens, models.TableProvisions},
		PageSize:          2,
		RequestTimeout:    5 * time.Second,
		TableTimeout:      5 * time.Second,
		RetryAttempts:     2,
		RetryDelay:        time.Millisecond,
		DefaultFromDate:   "2024-01-01",
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, cfg *config.SyncConfig) (*Client, *Authenticator) {
	t.Helper()
	auth := NewAuthenticator(cfg, srv.Client(), zerolog.Nop())
	c, err := NewClient(cfg, srv.Client(), auth, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c, auth
}

// memSink is an in-memory Sink.
type memSink struct {
	mu         sync.Mutex
	rows       map[string][]map[string]interface{}
	meta       map[string]models.SyncMetadata
	persistErr map[string]error
}

func newMemSink() *memSink {
	return &memSink{
		rows:       map[string][]map[string]interface{}{},
		meta:       map[string]models.SyncMetadata{},
		persistErr: map[string]error{},
	}
}

func (s *memSink) PersistTable(_ context.Context, table string, records []map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persistErr[table]; err != nil {
		return 0, err
	}
	s.rows[table] = append(s.rows[table], records...)
	return int64(len(records)), nil
}

func (s *memSink) GetSyncMetadata(_ context.Context, table string) (*models.SyncMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.meta[table]
	if !ok {
		return nil, nil
	}
	return &md, nil
}

func (s *memSink) SaveSyncMetadata(_ context.Context, md *models.SyncMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[md.TableName] = *md
	return nil
}

func (s *memSink) ListSyncMetadata(_ context.Context) ([]models.SyncMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SyncMetadata, 0, len(s.meta))
	for _, md := range s.meta {
		out = append(out, md)
	}
	return out, nil
}

func (s *memSink) metadata(table string) models.SyncMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[table]
}

// memPublisher records published events.
type memPublisher struct {
	mu     sync.Mutex
	events []*events.SyncCompleted
}

func (p *memPublisher) PublishSyncCompleted(_ context.Context, e *events.SyncCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *memPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func records(n int, key string) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := range out {
		out[i] = map[string]interface{}{key: fmt.Sprintf("R%d", i+1)}
	}
	return out
}
