// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
)

// ErrBusClosed is returned after Close.
var ErrBusClosed = errors.New("event bus is closed")

// Bus is the process-local event bus.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewBus returns an open bus. buffer sizes each subscriber's channel.
func NewBus(buffer int, logger zerolog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(buffer),
		}, NewWatermillLogger(logger)),
		logger: logger,
	}
}

// PublishSyncCompleted publishes e on TopicSyncCompleted.
func (b *Bus) PublishSyncCompleted(ctx context.Context, e *SyncCompleted) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	data, err := e.Encode()
	if err != nil {
		return err
	}
	id := e.CycleID
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, data)
	msg.SetContext(ctx)
	msg.Metadata.Set("triggered_by", string(e.TriggeredBy))

	if err := b.pubsub.Publish(TopicSyncCompleted, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicSyncCompleted, err)
	}
	b.logger.Debug().Str("cycle_id", id).Strs("tables", e.Tables).Msg("Sync completed event published")
	return nil
}

// SubscribeSyncCompleted returns a channel of SyncCompleted messages that
// closes when ctx is done or the bus closes. Every message must be acked
// or nacked before the next one is delivered.
func (b *Bus) SubscribeSyncCompleted(ctx context.Context) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	ch, err := b.pubsub.Subscribe(ctx, TopicSyncCompleted)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicSyncCompleted, err)
	}
	return ch, nil
}

// Close closes every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
