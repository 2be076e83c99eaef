package bus

import (
	"context"

	"github.com/Veraticus/docket/internal/service"
)

// Noop discards every event. It is the default publisher when no
// consumers are configured.
type Noop struct{}

var _ service.Publisher = (*Noop)(nil)

// NewNoop creates a publisher that drops everything.
func NewNoop() *Noop {
	return &Noop{}
}

// Publish discards the event.
func (*Noop) Publish(context.Context, string, []byte) error {
	return nil
}

// Close is a no-op.
func (*Noop) Close() error {
	return nil
}
