// Package natsevents publishes audit entries to NATS.
package natsevents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tendant/documentum/pkg/documentum"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "documentum.audit"

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Sink is a documentum.EventSink publishing each audit entry as JSON on
// <prefix>.<resource_type>.<action>.
type Sink struct {
	pub    Publisher
	prefix string
	conn   *nats.Conn
}

// New wraps an existing publisher. An empty prefix selects DefaultSubjectPrefix.
func New(pub Publisher, prefix string) *Sink {
	prefix = strings.Trim(prefix, ". ")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Sink{pub: pub, prefix: prefix}
}

// Connect dials the NATS server at url and returns a sink owning the
// connection.
func Connect(url, prefix string) (*Sink, error) {
	conn, err := nats.Connect(url,
		nats.Name("documentum"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	s := New(conn, prefix)
	s.conn = conn
	return s, nil
}

// Subject returns the subject an entry is published on.
func (s *Sink) Subject(e *documentum.AuditEntry) string {
	return s.prefix + "." + token(e.ResourceType) + "." + token(e.Action)
}

func (s *Sink) Record(ctx context.Context, e *documentum.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	subject := s.Subject(e)
	if err := s.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection when the sink owns it.
func (s *Sink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

// token keeps subject tokens free of separators and wildcards.
func token(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
