package ports

import (
	"context"

	"github.com/aretw0/switchboard/pkg/domain"
)

// EventSink receives structured audit events. Emission is best-effort: sinks
// must not block the turn and the engine ignores sink errors.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event domain.Event)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(ctx context.Context, event domain.Event) {
	f(ctx, event)
}
