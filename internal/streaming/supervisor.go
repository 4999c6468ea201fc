package streaming

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/howard-nolan/gemini-client/internal/errs"
	"github.com/howard-nolan/gemini-client/internal/sse"
	"github.com/howard-nolan/gemini-client/internal/telemetry"
)

// Status is a stream's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// Info is the read-only snapshot of one stream's state, what GetStreamInfo,
// ListStreams, and the status server's accessors expose.
type Info struct {
	ID              string
	Model           string
	ContentsType    string
	Status          Status
	StartedAt       time.Time
	SubscriberCount int
	Err             error
}

// Stats summarizes the whole registry.
type Stats struct {
	Active    int
	Completed int
	Errored   int
	Stopped   int
	Total     int
}

type stream struct {
	mu          sync.Mutex
	info        Info
	subscribers map[string]chan sse.Event
	cancel      context.CancelFunc
}

// Supervisor owns the registry of in-flight streams. Mutations go through a
// single mutex — the idiomatic Go equivalent of a single-writer process
// mailbox — while event delivery to subscribers stays channel-based,
// following the same goroutine+channel pipeline used for actual data
// movement elsewhere in this package. One struct, one map, guarded access,
// generalized from a static startup-populated map into a registry that
// grows and shrinks at runtime.
type Supervisor struct {
	mu         sync.Mutex
	streams    map[string]*stream
	maxStreams int
	transport  *Transport
	telemetry  *telemetry.Emitter
}

// NewSupervisor builds a Supervisor bounded to maxStreams concurrent
// streams. maxStreams <= 0 means unbounded.
func NewSupervisor(transport *Transport, maxStreams int, telem *telemetry.Emitter) *Supervisor {
	return &Supervisor{
		streams:    make(map[string]*stream),
		maxStreams: maxStreams,
		transport:  transport,
		telemetry:  telem,
	}
}

// StartStream opens a new stream against logicalPath/body and registers it,
// returning its id. The underlying connection, retries, and parsing happen
// inside Transport.Open; StartStream's job is capacity enforcement, id
// assignment, and wiring the raw event channel into the registry's
// per-subscriber fan-out.
func (s *Supervisor) StartStream(ctx context.Context, model, logicalPath string, body any, contentsType string) (string, error) {
	if s.maxStreams > 0 && s.activeCount() >= s.maxStreams {
		return "", errs.NewCapacityExceeded(s.maxStreams)
	}

	// The stream outlives the starter's ctx: its lifetime ends with
	// StopStream or with its last subscriber leaving, not with the caller.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	events, err := s.transport.Open(streamCtx, logicalPath, body)
	if err != nil {
		cancel()
		return "", err
	}

	id := newStreamID()
	st := &stream{
		info: Info{
			ID:           id,
			Model:        model,
			ContentsType: contentsType,
			Status:       StatusActive,
			StartedAt:    streamTime(),
		},
		subscribers: make(map[string]chan sse.Event),
		cancel:      cancel,
	}

	s.mu.Lock()
	s.streams[id] = st
	s.mu.Unlock()

	if s.telemetry != nil {
		s.telemetry.Emit(telemetry.Event{
			Name:         "stream.start",
			Model:        model,
			ContentsType: contentsType,
			Fields:       map[string]any{"stream_id": id},
		})
	}

	go s.drive(id, st, events)

	return id, nil
}

// drive reads from the transport's raw event channel and fans each event
// out to every current subscriber, then marks the stream terminal: exactly
// one of StatusCompleted, StatusError, or StatusStopped, inferred from the
// event that ended the loop.
func (s *Supervisor) drive(id string, st *stream, events <-chan sse.Event) {
	var finalErr error

	for ev := range events {
		st.mu.Lock()
		for _, ch := range st.subscribers {
			select {
			case ch <- ev:
			default:
				// a slow subscriber drops an event rather than stalling the
				// whole stream.
			}
		}
		contentsType := st.info.ContentsType
		model := st.info.Model
		st.mu.Unlock()

		if ev.Err == nil && !ev.Done() && s.telemetry != nil {
			s.telemetry.Emit(telemetry.Event{
				Name:         "stream.chunk",
				Model:        model,
				ContentsType: contentsType,
				Fields:       map[string]any{"stream_id": id},
			})
		}

		if ev.Err != nil {
			finalErr = ev.Err
			break
		}
		if ev.Done() {
			break
		}
	}

	st.mu.Lock()
	switch {
	case finalErr != nil && errors.Is(finalErr, context.Canceled):
		// the stream's context was canceled out from under the transport —
		// either StopStream was called directly, or its last subscriber
		// left; either way this is a deliberate stop, not a failure.
		st.info.Status = StatusStopped
	case finalErr != nil:
		st.info.Status = StatusError
		st.info.Err = finalErr
	default:
		st.info.Status = StatusCompleted
	}
	status := st.info.Status
	model := st.info.Model
	contentsType := st.info.ContentsType
	for _, ch := range st.subscribers {
		close(ch)
	}
	st.subscribers = map[string]chan sse.Event{}
	st.mu.Unlock()

	if s.telemetry == nil {
		return
	}
	s.telemetry.Emit(telemetry.Event{
		Name:         "stream.stop",
		Model:        model,
		ContentsType: contentsType,
		Err:          finalErr,
		Fields:       map[string]any{"stream_id": id, "status": string(status)},
	})
}

// Subscribe registers a new subscriber on streamID and returns its event
// channel. Subscriber death is watched via ctx: when ctx is canceled, the
// subscription is removed and its channel closed, mirroring Unsubscribe
// without requiring the caller to call it explicitly.
func (s *Supervisor) Subscribe(ctx context.Context, streamID string) (<-chan sse.Event, error) {
	st, err := s.lookup(streamID)
	if err != nil {
		return nil, err
	}

	subID := newStreamID()
	ch := make(chan sse.Event, 16)

	st.mu.Lock()
	if st.info.Status != StatusActive {
		st.mu.Unlock()
		close(ch)
		return ch, nil
	}
	st.subscribers[subID] = ch
	st.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Unsubscribe(streamID, subID)
	}()

	return ch, nil
}

// Unsubscribe removes one subscriber from a stream. It is idempotent: an
// unknown stream or subscriber id is not an error. If removing subID
// leaves the stream with no subscribers left, the worker is stopped and
// the stream's record is removed from the registry entirely — a stream
// nobody is listening to has no reason to keep running or to linger in
// GetStreamInfo/ListStreams.
func (s *Supervisor) Unsubscribe(streamID, subID string) {
	st, err := s.lookup(streamID)
	if err != nil {
		return
	}

	st.mu.Lock()
	ch, ok := st.subscribers[subID]
	if !ok {
		st.mu.Unlock()
		return
	}
	delete(st.subscribers, subID)
	close(ch)
	empty := len(st.subscribers) == 0
	st.mu.Unlock()

	if empty {
		st.cancel()
		s.removeStream(streamID)
	}
}

func (s *Supervisor) removeStream(streamID string) {
	s.mu.Lock()
	delete(s.streams, streamID)
	s.mu.Unlock()
}

// StopStream cancels a stream's underlying connection and marks it
// terminal. Subscribers observe this as their channel closing once drive's
// final cleanup runs.
func (s *Supervisor) StopStream(streamID string) error {
	st, err := s.lookup(streamID)
	if err != nil {
		return err
	}
	st.cancel()
	return nil
}

// GetStreamInfo returns a snapshot of one stream's state.
func (s *Supervisor) GetStreamInfo(streamID string) (Info, error) {
	st, err := s.lookup(streamID)
	if err != nil {
		return Info{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	info := st.info
	info.SubscriberCount = len(st.subscribers)
	return info, nil
}

// ListStreams returns a snapshot of every registered stream's state.
func (s *Supervisor) ListStreams() []Info {
	s.mu.Lock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		if info, err := s.GetStreamInfo(id); err == nil {
			out = append(out, info)
		}
	}
	return out
}

// GetStats summarizes the registry by status.
func (s *Supervisor) GetStats() Stats {
	infos := s.ListStreams()
	stats := Stats{Total: len(infos)}
	for _, info := range infos {
		switch info.Status {
		case StatusActive:
			stats.Active++
		case StatusCompleted:
			stats.Completed++
		case StatusError:
			stats.Errored++
		case StatusStopped:
			stats.Stopped++
		}
	}
	return stats
}

// activeCount reports how many registered streams are still active,
// excluding completed/errored ones from the capacity check — the registry
// keeps a history entry for every stream ever started, but max_streams
// bounds concurrency, not lifetime total.
func (s *Supervisor) activeCount() int {
	s.mu.Lock()
	streams := make([]*stream, 0, len(s.streams))
	for _, st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.Unlock()

	n := 0
	for _, st := range streams {
		st.mu.Lock()
		if st.info.Status == StatusActive {
			n++
		}
		st.mu.Unlock()
	}
	return n
}

func (s *Supervisor) lookup(streamID string) (*stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[streamID]
	if !ok {
		return nil, errs.NewStreamNotFound(streamID)
	}
	return st, nil
}

// newStreamID produces a short, URL-safe stream identifier, grounded on the
// corpus's widespread use of google/uuid for request/stream ids (e.g.
// CLIProxyAPI's executor layer) rather than a hand-rolled crypto/rand
// scheme.
func newStreamID() string {
	id := uuid.New()
	hex := id.String()
	out := make([]byte, 0, len(hex))
	for _, r := range hex {
		if r != '-' {
			out = append(out, byte(r))
		}
	}
	if len(out) > 16 {
		out = out[:16]
	}
	return string(out)
}

// streamTime is a seam so tests can construct Info values without a call to
// time.Now() implying this core's scheduling depends on wall-clock time.
var streamTime = time.Now
