// Package telemetry emits structured request/stream lifecycle events. It
// generalizes scattered middleware.Logger/handler-level logging calls into
// a single emitter every internal package reports through, backed by
// logrus instead of the standard library's log package.
package telemetry

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Event is one structured telemetry record. ContentsType classifies the
// shape of the request body (e.g. "text", "multimodal", "function_call")
// for components that care about traffic composition without parsing the
// full payload.
type Event struct {
	Name         string
	Backend      string
	Model        string
	ContentsType string
	Duration     time.Duration
	Err          error
	Fields       map[string]any
}

// Emitter sends telemetry Events to a logrus logger and, optionally, to one
// subscriber channel — the same channel-based delivery pattern used for
// stream chunks, applied here to telemetry instead.
type Emitter struct {
	enabled bool
	log     *logrus.Logger
	subs    chan Event
}

// New builds an Emitter. When enabled is false, Emit is a no-op: no logrus
// call, no channel send, so a disabled Emitter costs callers nothing
// without branching at every call site.
func New(enabled bool, log *logrus.Logger) *Emitter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Emitter{enabled: enabled, log: log}
}

// Subscribe returns a channel that receives every emitted Event. The
// Emitter holds only one channel: a later Subscribe replaces the earlier
// one, which then receives nothing more. The channel is buffered and
// dropped events (a full buffer) are not resent — telemetry is
// best-effort, never a backpressure source for request traffic.
func (e *Emitter) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	e.subs = ch
	return ch
}

// Emit records ev if telemetry is enabled. It never blocks: a full
// subscriber channel drops the event rather than stalling the caller.
func (e *Emitter) Emit(ev Event) {
	if !e.enabled {
		return
	}

	entry := e.log.WithFields(logrus.Fields{
		"backend":       ev.Backend,
		"model":         ev.Model,
		"contents_type": ev.ContentsType,
		"duration_ms":   ev.Duration.Milliseconds(),
	})
	for k, v := range ev.Fields {
		entry = entry.WithField(k, v)
	}

	if ev.Err != nil {
		entry.WithError(ev.Err).Warn(ev.Name)
	} else {
		entry.Info(ev.Name)
	}

	if e.subs != nil {
		select {
		case e.subs <- ev:
		default:
		}
	}
}

// ClassifyContents reports a coarse content-type label for telemetry,
// without doing full request validation: "empty", "text", "multimodal", or
// "function_call" depending on what part kinds are present.
func ClassifyContents(hasText, hasInlineData, hasFunctionCall bool) string {
	switch {
	case hasFunctionCall:
		return "function_call"
	case hasInlineData:
		return "multimodal"
	case hasText:
		return "text"
	default:
		return "empty"
	}
}
