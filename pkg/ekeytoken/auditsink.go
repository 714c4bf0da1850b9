// File: auditsink.go

package ekeytoken

import (
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// Audit outcomes, per spec.md §4.6.
const (
	OutcomeAllowed       = "allowed"
	OutcomeReplayBlocked = "replay_blocked"
	OutcomeExpired       = "expired"
	OutcomeCapMismatch   = "cap_mismatch"
	OutcomeInvalidProof  = "invalid_proof"
)

// AuditEvent is the structured outcome record a Verifier emits at every
// terminal step, per spec.md §4.6 / SPEC_FULL.md §3.1.
type AuditEvent struct {
	Timestamp time.Time
	Sub       string
	Trace     string
	Outcome   string
	Reason    string
	Action    string
}

// AuditSink receives AuditEvents. Implementations MUST NOT return an error
// into the Verifier's return path; failures are swallowed or logged
// internally, per spec.md §4.6.
type AuditSink interface {
	Record(event AuditEvent)
}

// NoopAuditSink discards every event. Default for tests and minimal
// deployments that don't need an audit trail.
type NoopAuditSink struct{}

// Record implements AuditSink.
func (NoopAuditSink) Record(AuditEvent) {}

// LogAuditSink formats AuditEvents as structured key-value log lines via
// go-zero's logx, the logger already used throughout the teacher's
// microservices (e.g. growthapi.go, shared/middleware/auth.go).
type LogAuditSink struct{}

// Record implements AuditSink.
func (LogAuditSink) Record(event AuditEvent) {
	fields := []logx.LogField{
		logx.Field("sub", event.Sub),
		logx.Field("trace", event.Trace),
		logx.Field("outcome", event.Outcome),
		logx.Field("action", event.Action),
		logx.Field("timestamp", event.Timestamp.Format(time.RFC3339)),
	}
	if event.Reason != "" {
		fields = append(fields, logx.Field("reason", event.Reason))
	}
	if event.Outcome == OutcomeAllowed {
		logx.Infow("ekey verify", fields...)
		return
	}
	logx.Infow("ekey verify denied", fields...)
}

// ChannelAuditSink fans events out to a buffered channel for an external
// subscriber (e.g. a metrics exporter). Drops events rather than blocking
// the Verifier when the channel is full, honoring §4.6's "MUST NOT throw
// into the verifier's return path."
type ChannelAuditSink struct {
	events chan AuditEvent
}

// NewChannelAuditSink constructs a ChannelAuditSink with the given buffer
// capacity.
func NewChannelAuditSink(capacity int) *ChannelAuditSink {
	if capacity <= 0 {
		capacity = 1
	}
	return &ChannelAuditSink{events: make(chan AuditEvent, capacity)}
}

// Record implements AuditSink.
func (s *ChannelAuditSink) Record(event AuditEvent) {
	select {
	case s.events <- event:
	default:
	}
}

// Events returns the read side of the channel for a subscriber to drain.
func (s *ChannelAuditSink) Events() <-chan AuditEvent {
	return s.events
}
