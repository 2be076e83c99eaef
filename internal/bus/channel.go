package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/docket/internal/service"
)

// Channel is an in-process publisher backed by Go channels. Each
// subscriber gets a buffered channel and a dispatch goroutine; a slow
// subscriber drops events rather than stalling the pipeline.
type Channel struct {
	subscriptions map[string][]*Subscription
	bufferSize    int
	closed        bool
	mu            sync.RWMutex
}

// Subscription is one active topic subscription on a Channel.
type Subscription struct {
	id      string
	topic   string
	handler Handler
	eventCh chan *Event
	ctx     context.Context
	cancel  context.CancelFunc
}

var _ service.Publisher = (*Channel)(nil)

// NewChannel creates an in-process publisher. bufferSize is the number
// of undelivered events each subscriber may queue.
func NewChannel(bufferSize int) *Channel {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Channel{
		bufferSize:    bufferSize,
		subscriptions: make(map[string][]*Subscription),
	}
}

// Publish delivers an event to every subscriber of the topic.
func (c *Channel) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	subs := c.subscriptions[topic]
	c.mu.RUnlock()

	event := &Event{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UnixNano(),
	}

	for _, sub := range subs {
		select {
		case sub.eventCh <- event:
		default:
			// Subscriber buffer full; drop for this subscriber.
		}
	}

	return nil
}

// Subscribe registers a handler for a topic. The handler runs on a
// dedicated goroutine until Unsubscribe or Close.
func (c *Channel) Subscribe(ctx context.Context, topic string, handler Handler) (*Subscription, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("publisher is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)

	sub := &Subscription{
		id:      uuid.New().String(),
		topic:   topic,
		handler: handler,
		eventCh: make(chan *Event, c.bufferSize),
		ctx:     subCtx,
		cancel:  cancel,
	}

	go dispatch(sub)

	c.subscriptions[topic] = append(c.subscriptions[topic], sub)

	return sub, nil
}

// dispatch delivers queued events to a subscription's handler.
func dispatch(sub *Subscription) {
	for {
		select {
		case <-sub.ctx.Done():
			return
		case event := <-sub.eventCh:
			if event != nil {
				_ = sub.handler(sub.ctx, event)
			}
		}
	}
}

// Close stops all subscriptions. Subsequent publishes fail.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for _, subs := range c.subscriptions {
		for _, sub := range subs {
			sub.cancel()
			close(sub.eventCh)
		}
	}
	c.subscriptions = make(map[string][]*Subscription)

	return nil
}

// Unsubscribe stops delivery to this subscription.
func (s *Subscription) Unsubscribe() error {
	s.cancel()
	return nil
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}
