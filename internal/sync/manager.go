// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

/*
manager.go - Sync Cycle Orchestration

Manager runs one sync cycle over the configured source tables and is the
single entry point shared by the weekly scheduler and the manual trigger.

Phases:
  - idle: no cycle running
  - authenticating: obtaining a bearer token
  - fetching: downloading one table's window
  - persisting: writing that table through the sink
  - awaiting_regeneration: cycle finished, static rebuild pending its delay
  - regenerating: static artifacts being rebuilt after a cycle

The last two are reported by the regeneration listener through
SetRegenerationPhase; a running cycle's own phase takes precedence.

Thread Safety:
  - runMu: TryLock guard, one cycle at a time
  - mu: protects the phases and the next-run source
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/events"
	"github.com/tomtom215/sahayak/internal/metrics"
	"github.com/tomtom215/sahayak/internal/models"
)

// Phase is the manager's current step.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAuthenticating Phase = "authenticating"
	PhaseFetching       Phase = "fetching"
	PhasePersisting     Phase = "persisting"
	PhaseAwaitingRegen  Phase = "awaiting_regeneration"
	PhaseRegenerating   Phase = "regenerating"
)

// DefaultFromDate starts the window of a table that was never synced.
const DefaultFromDate = "2024-01-01"

// Fetcher downloads source tables.
type Fetcher interface {
	Authenticate(ctx context.Context) error
	FetchTable(ctx context.Context, table, from, to string) (*FetchResult, error)
}

// Sink persists fetched tables and their sync metadata.
type Sink interface {
	PersistTable(ctx context.Context, table string, records []map[string]interface{}) (int64, error)
	GetSyncMetadata(ctx context.Context, table string) (*models.SyncMetadata, error)
	SaveSyncMetadata(ctx context.Context, m *models.SyncMetadata) error
	ListSyncMetadata(ctx context.Context) ([]models.SyncMetadata, error)
}

// Publisher announces completed cycles.
type Publisher interface {
	PublishSyncCompleted(ctx context.Context, e *events.SyncCompleted) error
}

// Table sync status values.
const (
	TableSuccess = models.StatusSuccess
	TableFailure = models.StatusFailure
)

// TableResult is one table's outcome within a cycle.
type TableResult struct {
	Table        string `json:"table"`
	Status       string `json:"status"`
	FromDate     string `json:"from_date"`
	ToDate       string `json:"to_date"`
	TotalRecords int64  `json:"total_records"`
	RowsSynced   int64  `json:"rows_synced"`
	Error        string `json:"error,omitempty"`
}

// CycleResult reports a cycle.
type CycleResult struct {
	CycleID     string             `json:"cycle_id"`
	TriggeredBy models.TriggeredBy `json:"triggered_by"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Tables      []TableResult      `json:"tables"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
}

// Status describes the pipeline for the admin API.
type Status struct {
	PipelineRunning  bool                           `json:"pipeline_running"`
	Phase            Phase                          `json:"phase"`
	NextScheduledRun *time.Time                     `json:"next_scheduled_run,omitempty"`
	LastRunPerTable  map[string]models.SyncMetadata `json:"last_run_per_table"`
}

// ManagerConfig tunes a Manager.
type ManagerConfig struct {
	Tables          []string
	TableTimeout    time.Duration
	DefaultFromDate string
	Location        *time.Location
}

// NewManagerConfig derives a ManagerConfig from the sync and schedule
// settings.
func NewManagerConfig(cfg *config.SyncConfig, loc *time.Location) ManagerConfig {
	return ManagerConfig{
		Tables:          append([]string(nil), cfg.Tables...),
		TableTimeout:    cfg.TableTimeout,
		DefaultFromDate: cfg.DefaultFromDate,
		Location:        loc,
	}
}

// Manager orchestrates sync cycles.
type Manager struct {
	fetcher   Fetcher
	sink      Sink
	publisher Publisher
	cfg       ManagerConfig
	known     map[string]bool
	logger    zerolog.Logger
	now       func() time.Time

	runMu sync.Mutex

	mu         sync.RWMutex
	phase      Phase
	regenPhase Phase
	nextRun    func() time.Time
}

// NewManager returns an idle manager. publisher may be nil.
func NewManager(fetcher Fetcher, sink Sink, publisher Publisher, cfg ManagerConfig, logger zerolog.Logger) *Manager {
	if cfg.DefaultFromDate == "" {
		cfg.DefaultFromDate = DefaultFromDate
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	known := make(map[string]bool, len(cfg.Tables))
	for _, t := range cfg.Tables {
		known[t] = true
	}

	logger.Info().
		Strs("tables", cfg.Tables).
		Dur("table_timeout", cfg.TableTimeout).
		Str("default_from_date", cfg.DefaultFromDate).
		Msg("Sync manager config loaded")

	return &Manager{
		fetcher:    fetcher,
		sink:       sink,
		publisher:  publisher,
		cfg:        cfg,
		known:      known,
		logger:     logger,
		now:        time.Now,
		phase:      PhaseIdle,
		regenPhase: PhaseIdle,
	}
}

// SetNextRunSource registers the scheduler's next-run lookup for Status.
func (m *Manager) SetNextRunSource(next func() time.Time) {
	m.mu.Lock()
	m.nextRun = next
	m.mu.Unlock()
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

// SetRegenerationPhase records the post-sync rebuild step. Only idle,
// awaiting_regeneration and regenerating are accepted.
func (m *Manager) SetRegenerationPhase(p Phase) {
	switch p {
	case PhaseIdle, PhaseAwaitingRegen, PhaseRegenerating:
	default:
		m.logger.Warn().Str("phase", string(p)).Msg("Ignoring unknown regeneration phase")
		return
	}
	m.mu.Lock()
	m.regenPhase = p
	m.mu.Unlock()
}

// Phase returns the current phase: the cycle's step while one runs, else
// the post-sync rebuild step.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentPhase()
}

// currentPhase requires mu.
func (m *Manager) currentPhase() Phase {
	if m.phase != PhaseIdle {
		return m.phase
	}
	return m.regenPhase
}

// Running reports whether a cycle or its follow-up rebuild is in progress.
func (m *Manager) Running() bool {
	return m.Phase() != PhaseIdle
}

// RunCycle syncs every configured table from its own window start.
func (m *Manager) RunCycle(ctx context.Context, trigger models.TriggeredBy) (*CycleResult, error) {
	return m.SyncTables(ctx, nil, "", trigger)
}

// SyncTables syncs tables (all configured tables when empty). A non-empty
// fromDate overrides every table's window start.
func (m *Manager) SyncTables(ctx context.Context, tables []string, fromDate string, trigger models.TriggeredBy) (*CycleResult, error) {
	if len(tables) == 0 {
		tables = m.cfg.Tables
	}
	for _, t := range tables {
		if !m.known[t] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTable, t)
		}
	}
	if fromDate != "" {
		if _, err := time.Parse(time.DateOnly, fromDate); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFromDate, fromDate)
		}
	}

	if !m.runMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer m.runMu.Unlock()
	defer m.setPhase(PhaseIdle)

	start := m.now()
	result := &CycleResult{
		CycleID:     uuid.New().String(),
		TriggeredBy: trigger,
		StartedAt:   start.UTC(),
		Tables:      make([]TableResult, 0, len(tables)),
	}
	log := m.logger.With().Str("cycle_id", result.CycleID).Str("triggered_by", string(trigger)).Logger()
	log.Info().Strs("tables", tables).Msg("Sync cycle started")

	m.setPhase(PhaseAuthenticating)
	authErr := m.fetcher.Authenticate(ctx)
	if authErr != nil {
		log.Error().Err(authErr).Msg("Sync cycle cannot authenticate")
	}

	to := m.now().In(m.cfg.Location).Format(time.DateOnly)
	var rows int64
	var synced, failed []string
	for _, table := range tables {
		var tr TableResult
		if authErr != nil {
			tr = m.recordFailure(ctx, table, "", to, authErr)
		} else {
			tr = m.syncTable(ctx, log, table, fromDate, to)
		}
		result.Tables = append(result.Tables, tr)
		if tr.Status == TableSuccess {
			synced = append(synced, table)
			rows += tr.RowsSynced
		} else {
			failed = append(failed, table)
		}
	}

	result.FinishedAt = m.now().UTC()
	result.Succeeded = len(synced)
	result.Failed = len(failed)
	metrics.RecordSyncCycle(result.FinishedAt.Sub(result.StartedAt), result.Succeeded)
	log.Info().Int("succeeded", result.Succeeded).Int("failed", result.Failed).Int64("rows", rows).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).Msg("Sync cycle finished")

	if len(synced) > 0 && m.publisher != nil {
		ev := &events.SyncCompleted{
			CycleID:      result.CycleID,
			TriggeredBy:  trigger,
			Tables:       synced,
			FailedTables: failed,
			RowsSynced:   rows,
			CompletedAt:  result.FinishedAt,
		}
		if err := m.publisher.PublishSyncCompleted(context.WithoutCancel(ctx), ev); err != nil {
			log.Warn().Err(err).Msg("Failed to publish sync completion")
		}
	}

	switch {
	case authErr != nil:
		return result, authErr
	case len(failed) > 0:
		return result, fmt.Errorf("%w: %d of %d tables", ErrPartialSyncFailure, len(failed), len(tables))
	}
	return result, nil
}

// window returns the start date for table: the override, else the end of
// the last successful window, else the default.
func (m *Manager) window(ctx context.Context, table, override string) (string, *models.SyncMetadata) {
	prev, err := m.sink.GetSyncMetadata(ctx, table)
	if err != nil {
		m.logger.Warn().Err(err).Str("table", table).Msg("Sync metadata unavailable, using default window")
		prev = nil
	}
	switch {
	case override != "":
		return override, prev
	case prev != nil && prev.LastSyncFromDate != "":
		return prev.LastSyncFromDate, prev
	default:
		return m.cfg.DefaultFromDate, prev
	}
}

func (m *Manager) syncTable(ctx context.Context, log zerolog.Logger, table, override, to string) TableResult {
	tctx := ctx
	if m.cfg.TableTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, m.cfg.TableTimeout)
		defer cancel()
	}

	from, prev := m.window(tctx, table, override)

	m.setPhase(PhaseFetching)
	fetched, err := m.fetcher.FetchTable(tctx, table, from, to)
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("Table fetch failed, keeping previous rows")
		return m.recordFailureWith(ctx, table, from, to, prev, err)
	}

	m.setPhase(PhasePersisting)
	written, err := m.sink.PersistTable(tctx, table, fetched.Records)
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("Table persist failed, keeping previous rows")
		return m.recordFailureWith(ctx, table, from, to, prev, err)
	}

	md := &models.SyncMetadata{
		TableName:         table,
		LastSyncTimestamp: m.now().UTC(),
		LastSyncFromDate:  to,
		LastSyncStatus:    TableSuccess,
		TotalRecords:      fetched.TotalRecords,
		RowsSynced:        written,
	}
	if err := m.sink.SaveSyncMetadata(context.WithoutCancel(ctx), md); err != nil {
		log.Warn().Err(err).Str("table", table).Msg("Failed to save sync metadata")
	}
	metrics.RecordSyncTable(table, written, nil)
	log.Info().Str("table", table).Str("from", from).Str("to", to).
		Int64("total_records", fetched.TotalRecords).Int64("rows_synced", written).Msg("Table synced")

	return TableResult{
		Table:        table,
		Status:       TableSuccess,
		FromDate:     from,
		ToDate:       to,
		TotalRecords: fetched.TotalRecords,
		RowsSynced:   written,
	}
}

func (m *Manager) recordFailure(ctx context.Context, table, from, to string, cause error) TableResult {
	prev, err := m.sink.GetSyncMetadata(ctx, table)
	if err != nil {
		prev = nil
	}
	return m.recordFailureWith(ctx, table, from, to, prev, cause)
}

// recordFailureWith marks table failed while keeping its previous window
// start, so the next cycle retries the same range.
func (m *Manager) recordFailureWith(ctx context.Context, table, from, to string, prev *models.SyncMetadata, cause error) TableResult {
	md := &models.SyncMetadata{
		TableName:         table,
		LastSyncTimestamp: m.now().UTC(),
		LastSyncStatus:    TableFailure,
		ErrorMessage:      cause.Error(),
	}
	if prev != nil {
		md.LastSyncFromDate = prev.LastSyncFromDate
		md.TotalRecords = prev.TotalRecords
	}
	if err := m.sink.SaveSyncMetadata(context.WithoutCancel(ctx), md); err != nil {
		m.logger.Warn().Err(err).Str("table", table).Msg("Failed to save sync metadata")
	}
	metrics.RecordSyncTable(table, 0, cause)

	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = "table sync timed out: " + msg
	}
	return TableResult{Table: table, Status: TableFailure, FromDate: from, ToDate: to, Error: msg}
}

// Status reports the pipeline state and the last outcome of every table.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	list, err := m.sink.ListSyncMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sync metadata: %w", err)
	}

	m.mu.RLock()
	phase, next := m.currentPhase(), m.nextRun
	m.mu.RUnlock()

	st := &Status{
		PipelineRunning: phase != PhaseIdle,
		Phase:           phase,
		LastRunPerTable: make(map[string]models.SyncMetadata, len(list)),
	}
	for _, md := range list {
		st.LastRunPerTable[md.TableName] = md
	}
	if next != nil {
		if t := next(); !t.IsZero() {
			st.NextScheduledRun = &t
		}
	}
	return st, nil
}
