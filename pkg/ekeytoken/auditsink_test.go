// File: auditsink_test.go

package ekeytoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopAuditSinkDiscardsEvents(t *testing.T) {
	t.Parallel()

	var sink NoopAuditSink
	assert.NotPanics(t, func() {
		sink.Record(AuditEvent{Outcome: OutcomeAllowed})
	})
}

func TestChannelAuditSinkDeliversEvents(t *testing.T) {
	t.Parallel()

	sink := NewChannelAuditSink(2)
	event := AuditEvent{Timestamp: time.Unix(100, 0), Sub: "user-1", Trace: "t-1", Outcome: OutcomeAllowed}
	sink.Record(event)

	select {
	case got := <-sink.Events():
		assert.Equal(t, event, got)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestChannelAuditSinkDropsWhenFullRatherThanBlocking(t *testing.T) {
	t.Parallel()

	sink := NewChannelAuditSink(1)
	sink.Record(AuditEvent{Trace: "first"})

	done := make(chan struct{})
	go func() {
		sink.Record(AuditEvent{Trace: "second"}) // must not block even though the buffer is full
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full channel")
	}

	got := <-sink.Events()
	assert.Equal(t, "first", got.Trace)
}

func TestNewChannelAuditSinkDefaultsNonPositiveCapacity(t *testing.T) {
	t.Parallel()

	sink := NewChannelAuditSink(0)
	sink.Record(AuditEvent{Trace: "only"})
	got := <-sink.Events()
	assert.Equal(t, "only", got.Trace)
}

func TestLogAuditSinkDoesNotPanic(t *testing.T) {
	t.Parallel()

	var sink LogAuditSink
	assert.NotPanics(t, func() {
		sink.Record(AuditEvent{Sub: "user-1", Trace: "t-1", Outcome: OutcomeCapMismatch, Reason: "mismatch"})
	})
}
