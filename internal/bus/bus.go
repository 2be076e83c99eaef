// Package bus publishes completed decisions to downstream consumers.
//
// Two real implementations are provided: Channel delivers events to
// in-process subscribers and suits single-binary deployments and tests,
// while NATS publishes to a broker for external consumers. Publishing
// happens after a decision is committed and is best-effort; delivery
// failures are logged by callers, never rolled back into the pipeline.
package bus

import (
	"context"
	"fmt"

	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/service"
)

// Topic prefixes. Every completed decision lands on the decisions topic
// for its document type; REJECT and ESCALATE outcomes are additionally
// mirrored to the alerts topic.
const (
	decisionPrefix = "docket.decisions."
	alertPrefix    = "docket.alerts."
)

// DecisionTopic returns the event topic carrying all decisions for a
// document type.
func DecisionTopic(docType model.DocumentType) string {
	return decisionPrefix + string(docType)
}

// AlertTopic returns the event topic carrying only REJECT and ESCALATE
// outcomes for a document type.
func AlertTopic(docType model.DocumentType) string {
	return alertPrefix + string(docType)
}

// Event is the envelope delivered to subscribers. Payload is the
// JSON-encoded analysis result.
type Event struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, event *Event) error

// Config selects and tunes a publisher implementation.
type Config struct {
	Type       string // "noop", "channel", or "nats"
	URL        string // nats: server URL
	Token      string // nats: auth token
	BufferSize int    // channel: per-subscriber buffer
}

// New creates a publisher from configuration. An empty type means no
// consumers are wired up and events are discarded.
func New(cfg Config) (service.Publisher, error) {
	switch cfg.Type {
	case "", "noop":
		return NewNoop(), nil

	case "channel":
		return NewChannel(cfg.BufferSize), nil

	case "nats":
		return NewNATS(cfg)

	default:
		return nil, fmt.Errorf("unsupported publisher type: %s", cfg.Type)
	}
}
