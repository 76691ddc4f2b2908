// Package bus provides the notification sink: a small pub/sub abstraction
// the reconciliation and categorization engines publish events to. Publish
// failures are logging-grade, never transactional; callers log and move on.
package bus

import (
	"context"
	"fmt"
)

// Publisher is the notification sink consumed by the engines.
type Publisher interface {
	// Publish sends an event payload to a topic. Best effort: a failed
	// publish must never fail the operation that triggered it.
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

// Handler processes events delivered by a subscription.
type Handler func(ctx context.Context, topic string, payload []byte)

// Config selects and configures a bus implementation.
type Config struct {
	// Type is "channel" (in-process, default) or "nats".
	Type string

	// Channel settings.
	ChannelBufferSize int

	// NATS settings.
	NATSUrl   string
	NATSToken string
}

// New creates an event bus from configuration. An empty type means the
// in-process channel bus.
func New(cfg Config) (Publisher, error) {
	switch cfg.Type {
	case "", "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
