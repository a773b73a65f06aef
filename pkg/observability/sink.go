// Package observability provides audit event sinks: a structured-log sink, a
// fan-out combinator and an in-process aggregator for operational
// introspection.
package observability

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// LogSink emits every audit event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink over the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements ports.EventSink.
func (s *LogSink) Emit(ctx context.Context, event domain.Event) {
	attrs := []any{
		"event", string(event.Type),
		"call_id", event.CallID,
		"tenant_id", event.TenantID,
		"turn", event.Turn,
	}
	for k, v := range event.Fields {
		attrs = append(attrs, k, v)
	}
	s.logger.Info("audit", attrs...)
}

// Fanout delivers each event to every sink in order.
type Fanout struct {
	sinks []ports.EventSink
}

// NewFanout combines multiple sinks into one.
func NewFanout(sinks ...ports.EventSink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Emit implements ports.EventSink.
func (f *Fanout) Emit(ctx context.Context, event domain.Event) {
	for _, s := range f.sinks {
		s.Emit(ctx, event)
	}
}

// Aggregator keeps running per-type event counts, a cheap live view for
// health endpoints and tests that do not scrape Prometheus.
type Aggregator struct {
	mu     sync.RWMutex
	counts map[domain.EventType]int64
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{counts: make(map[domain.EventType]int64)}
}

// Emit implements ports.EventSink.
func (a *Aggregator) Emit(ctx context.Context, event domain.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[event.Type]++
}

// Count returns how many events of the given type were observed.
func (a *Aggregator) Count(typ domain.EventType) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.counts[typ]
}

// Snapshot returns a copy of all counts.
func (a *Aggregator) Snapshot() map[domain.EventType]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[domain.EventType]int64, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}
