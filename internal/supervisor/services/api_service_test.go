// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// fakeListener blocks in ListenAndServe until Shutdown unless listenErr is
// set.
type fakeListener struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stop        chan struct{}
	shutdowns   atomic.Int32
}

func newFakeListener() *fakeListener {
	return &fakeListener{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeListener) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeListener) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	close(f.stop)
	return f.shutdownErr
}

var _ suture.Service = (*APIService)(nil)

func TestNewAPIService_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		cfg       APIServiceConfig
		wantTO    time.Duration
		wantDrain time.Duration
	}{
		{"zero", APIServiceConfig{}, 10 * time.Second, 0},
		{"negative", APIServiceConfig{ShutdownTimeout: -time.Second, DrainDelay: -time.Second}, 10 * time.Second, 0},
		{"explicit", APIServiceConfig{ShutdownTimeout: time.Second, DrainDelay: 2 * time.Second}, time.Second, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAPIService(newFakeListener(), tt.cfg, zerolog.Nop())
			if svc.cfg.ShutdownTimeout != tt.wantTO || svc.cfg.DrainDelay != tt.wantDrain {
				t.Errorf("cfg = %+v", svc.cfg)
			}
		})
	}
	if got := NewAPIService(newFakeListener(), APIServiceConfig{}, zerolog.Nop()).String(); got != "recommendation-api" {
		t.Errorf("String() = %q", got)
	}
}

func TestAPIService_Serve(t *testing.T) {
	bindErr := errors.New("bind: address already in use")
	drainErr := errors.New("drain timeout")
	tests := []struct {
		name        string
		listenErr   error
		shutdownErr error
		cancel      bool
		want        error
	}{
		{name: "graceful shutdown", cancel: true, want: context.Canceled},
		{name: "bind failure", listenErr: bindErr, want: bindErr},
		{name: "shutdown failure", cancel: true, shutdownErr: drainErr, want: drainErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeListener()
			srv.listenErr = tt.listenErr
			srv.shutdownErr = tt.shutdownErr
			svc := NewAPIService(srv, APIServiceConfig{ShutdownTimeout: time.Second}, zerolog.Nop())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			<-srv.started
			if tt.cancel {
				cancel()
			}

			select {
			case err := <-errCh:
				if !errors.Is(err, tt.want) {
					t.Errorf("Serve() error = %v, want %v", err, tt.want)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return")
			}
			if tt.cancel && srv.shutdowns.Load() != 1 {
				t.Errorf("Shutdown calls = %d, want 1", srv.shutdowns.Load())
			}
		})
	}
}

func TestAPIService_ReadinessFailsWhileDraining(t *testing.T) {
	srv := newFakeListener()
	svc := NewAPIService(srv, APIServiceConfig{ShutdownTimeout: time.Second, DrainDelay: 100 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	<-srv.started

	if err := svc.Ready(context.Background()); err != nil {
		t.Fatalf("Ready() while serving = %v", err)
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for svc.Ready(context.Background()) == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := svc.Ready(context.Background()); !errors.Is(err, ErrDraining) {
		t.Fatalf("Ready() after cancel = %v, want ErrDraining", err)
	}
	if srv.shutdowns.Load() != 0 {
		t.Error("Shutdown called before the drain delay elapsed")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("Shutdown calls = %d, want 1", srv.shutdowns.Load())
	}
}

func TestAPIService_RealServer(t *testing.T) {
	server := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	svc := NewAPIService(server, APIServiceConfig{Addr: server.Addr, ShutdownTimeout: time.Second}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
