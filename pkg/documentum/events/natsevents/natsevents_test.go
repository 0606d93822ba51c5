package natsevents_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/documentum/pkg/documentum"
	"github.com/tendant/documentum/pkg/documentum/events/natsevents"
)

type message struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	messages []message
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message{subject: subject, data: data})
	return nil
}

func TestSink_Record(t *testing.T) {
	pub := &fakePublisher{}
	sink := natsevents.New(pub, "docs.audit.")

	entry := &documentum.AuditEntry{
		ID:           uuid.New(),
		Actor:        "alice",
		Action:       "activate",
		ResourceType: documentum.ResourceVersion,
		ResourceID:   uuid.New(),
		Details:      map[string]any{"deactivated": 1},
	}
	require.NoError(t, sink.Record(context.Background(), entry))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "docs.audit.version.activate", pub.messages[0].subject)

	var got documentum.AuditEntry
	require.NoError(t, json.Unmarshal(pub.messages[0].data, &got))
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "alice", got.Actor)
}

func TestSink_Subject(t *testing.T) {
	sink := natsevents.New(&fakePublisher{}, "")

	tests := []struct {
		name  string
		entry documentum.AuditEntry
		want  string
	}{
		{"default prefix", documentum.AuditEntry{ResourceType: "rubrique", Action: "update"}, "documentum.audit.rubrique.update"},
		{"wildcards escaped", documentum.AuditEntry{ResourceType: "a.b", Action: "*"}, "documentum.audit.a_b._"},
		{"empty tokens", documentum.AuditEntry{}, "documentum.audit.unknown.unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sink.Subject(&tt.entry))
		})
	}
}

func TestSink_PublishError(t *testing.T) {
	boom := errors.New("nats down")
	sink := natsevents.New(&fakePublisher{err: boom}, "x")

	err := sink.Record(context.Background(), &documentum.AuditEntry{ResourceType: "map", Action: "create"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "x.map.create")
}
