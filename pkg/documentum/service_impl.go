package documentum

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository       Repository
	blobStores       map[string]BlobStore
	defaultBlobStore string
	eventSink        EventSink
	observer         Observer
	logger           *slog.Logger
	now              func() time.Time
	editLockTTL      time.Duration
	enforceEditLocks bool
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the Content Store
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore registers a blob storage backend. The first registered
// backend becomes the default unless WithDefaultBlobStore says otherwise.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.blobStores[name] = store
		if s.defaultBlobStore == "" {
			s.defaultBlobStore = name
		}
	}
}

// WithDefaultBlobStore selects the backend used for new media and exports
func WithDefaultBlobStore(name string) Option {
	return func(s *service) {
		s.defaultBlobStore = name
	}
}

// WithEventSink sets the sink receiving committed audit entries
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithObserver sets the per-operation observer
func WithObserver(o Observer) Option {
	return func(s *service) {
		s.observer = o
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithEditLockTTL sets how long an advisory edit lock stays fresh. Zero
// means locks never go stale.
func WithEditLockTTL(d time.Duration) Option {
	return func(s *service) {
		s.editLockTTL = d
	}
}

// WithEditLockEnforcement makes UpdateRubrique reject edits while another
// actor holds a fresh edit lock.
func WithEditLockEnforcement(enforce bool) Option {
	return func(s *service) {
		s.enforceEditLocks = enforce
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
		eventSink:  NoopEventSink{},
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.defaultBlobStore != "" {
		if _, ok := s.blobStores[s.defaultBlobStore]; !ok {
			return nil, fmt.Errorf("default blob store %q is not registered", s.defaultBlobStore)
		}
	}

	return s, nil
}

// timestamp returns the current time at the precision the stores keep.
func (s *service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *service) observe(op string, start time.Time, err *error) {
	if s.observer != nil {
		s.observer.ObserveOperation(op, *err, time.Since(start))
	}
}

// read runs fn in a transaction that records nothing.
func (s *service) read(ctx context.Context, fn func(tx Tx) error) error {
	return s.repository.RunInTx(ctx, fn)
}

// write runs fn in a transaction and emits its audit entries once the
// transaction has committed.
func (s *service) write(ctx context.Context, fn func(tx Tx, trail *auditTrail) error) error {
	trail := &auditTrail{actor: ActorFromContext(ctx), now: s.timestamp}
	err := s.repository.RunInTx(ctx, func(tx Tx) error {
		trail.entries = trail.entries[:0]
		return fn(tx, trail)
	})
	if err != nil {
		return err
	}
	for _, e := range trail.entries {
		if err := s.eventSink.Record(ctx, e); err != nil {
			s.logger.Warn("failed to record audit event", "action", e.Action, "resource_type", e.ResourceType, "resource_id", e.ResourceID, "err", err)
		}
	}
	return nil
}

// auditTrail collects the audit entries written by one transaction.
type auditTrail struct {
	actor   string
	now     func() time.Time
	entries []*AuditEntry
}

func (a *auditTrail) record(ctx context.Context, tx Tx, action, resourceType string, resourceID uuid.UUID, projetID *uuid.UUID, details map[string]any) error {
	e := &AuditEntry{
		ID:           uuid.New(),
		Actor:        a.actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ProjetID:     projetID,
		Details:      details,
		CreatedAt:    a.now(),
	}
	if err := tx.AppendAudit(ctx, e); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	a.entries = append(a.entries, e)
	return nil
}

func (s *service) ListAudit(ctx context.Context, filter AuditFilter) (entries []*AuditEntry, err error) {
	defer s.observe("list_audit", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		entries, err = tx.ListAudit(ctx, filter)
		return err
	})
	return entries, err
}

func ptr[T any](v T) *T {
	return &v
}
