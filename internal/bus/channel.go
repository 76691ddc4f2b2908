package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ChannelBus is the in-process event bus, the default when no broker is
// configured. Delivery to a slow subscriber is dropped rather than blocking
// the publisher.
type ChannelBus struct {
	subscriptions map[string][]*channelSubscription
	bufferSize    int
	mu            sync.RWMutex
	closed        bool
}

type channelSubscription struct {
	cancel  context.CancelFunc
	msgCh   chan channelMessage
	handler Handler
	topic   string
}

type channelMessage struct {
	topic   string
	payload []byte
}

// NewChannelBus creates a channel-based event bus.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &ChannelBus{
		bufferSize:    bufferSize,
		subscriptions: make(map[string][]*channelSubscription),
	}
}

// Publish delivers the payload to every subscriber of the topic.
func (b *ChannelBus) Publish(_ context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	subs := b.subscriptions[topic]
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.msgCh <- channelMessage{topic: topic, payload: data}:
		default:
			// Subscriber buffer full; drop rather than block.
		}
	}

	return nil
}

// Subscribe registers a handler for a topic. The handler runs on its own
// goroutine until the bus closes.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSubscription{
		topic:   topic,
		handler: handler,
		msgCh:   make(chan channelMessage, b.bufferSize),
		cancel:  cancel,
	}

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg := <-sub.msgCh:
				handler(subCtx, msg.topic, msg.payload)
			}
		}
	}()

	b.subscriptions[topic] = append(b.subscriptions[topic], sub)
	return nil
}

// Close stops all subscriptions.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	b.subscriptions = make(map[string][]*channelSubscription)

	return nil
}
