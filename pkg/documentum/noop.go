package documentum

import (
	"context"
	"errors"
	"log/slog"
)

// NoopEventSink discards every event.
type NoopEventSink struct{}

func (NoopEventSink) Record(context.Context, *AuditEntry) error { return nil }

// LoggingEventSink writes audit events to a slog logger.
type LoggingEventSink struct {
	Logger *slog.Logger
}

func (s LoggingEventSink) Record(ctx context.Context, e *AuditEntry) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		"actor", e.Actor,
		"action", e.Action,
		"resource_type", e.ResourceType,
		"resource_id", e.ResourceID,
		"details", e.Details,
	)
	return nil
}

// MultiEventSink fans an event out to several sinks and joins their errors.
type MultiEventSink []EventSink

func (m MultiEventSink) Record(ctx context.Context, e *AuditEntry) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
