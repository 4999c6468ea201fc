// Package streaming opens and supervises long-lived SSE connections against
// a resolved auth.Strategy, feeding bytes into internal/sse.Parser and
// fanning parsed events out to subscribers.
//
// transport.go's goroutine-launches-a-reader-that-sends-on-a-channel
// pipeline generalizes a bufio.Scanner line-reader into one that drives
// internal/sse.Parser chunk-by-chunk off resp.Body, and its retry loop
// generalizes vertex2api-golang's doStreamRequest/StreamGenerateContent
// backoff loop from "rotate to the next API key" to "surface a
// NetworkError after the last attempt".
package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/howard-nolan/gemini-client/internal/auth"
	"github.com/howard-nolan/gemini-client/internal/errs"
	"github.com/howard-nolan/gemini-client/internal/sse"
	"github.com/howard-nolan/gemini-client/internal/telemetry"
)

// RetryPolicy controls the exponential backoff applied when opening a
// stream connection fails before any byte of the response body has been
// read. Once a byte has arrived, the connection is committed: a mid-stream
// drop is surfaced as a terminal error, never retried transparently, since
// replaying would silently duplicate already-delivered partial content.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy mirrors vertex2api-golang's retry loop defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// Transport opens SSE connections against one Strategy and drives them
// byte-chunk-by-byte-chunk through an sse.Parser.
type Transport struct {
	HTTP      *http.Client
	Strategy  auth.Strategy
	Retry     RetryPolicy
	Telemetry *telemetry.Emitter
	Backend   string
}

// NewTransport builds a Transport with the default retry policy and a
// streaming-friendly client timeout of zero (no overall deadline — the
// caller's context governs lifetime, since a legitimate long-running
// generation shouldn't be cut off by a fixed client-wide timeout).
func NewTransport(strategy auth.Strategy, backend string, telem *telemetry.Emitter, httpClient *http.Client) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Transport{HTTP: httpClient, Strategy: strategy, Retry: DefaultRetryPolicy(), Telemetry: telem, Backend: backend}
}

// Open issues a streaming POST to logicalPath (the Action path, e.g.
// "models/gemini-2.0-flash:streamGenerateContent") with alt=sse appended,
// retrying connection-establishment failures per the retry policy, and
// returns a channel of sse.Event; the body is closed by the reader
// goroutine itself. The channel carries one terminal event — a Done event
// (from a [DONE] marker, or synthesized on a clean close) or an Err event
// (a read failure, including ctx being canceled) — and is closed after it.
func (t *Transport) Open(ctx context.Context, logicalPath string, body any) (<-chan sse.Event, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errs.NewInvalidInput("encoding stream request: %v", err)
	}

	resp, err := t.connectWithRetry(ctx, logicalPath, encoded)
	if err != nil {
		return nil, err
	}

	out := make(chan sse.Event)
	go t.pump(resp, out)
	return out, nil
}

func (t *Transport) connectWithRetry(ctx context.Context, logicalPath string, body []byte) (*http.Response, error) {
	url := t.buildStreamURL(logicalPath)

	var lastErr error
	for attempt := 0; attempt <= t.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(t.Retry.delay(attempt - 1)):
			case <-ctx.Done():
				return nil, errs.NewNetwork("context canceled during retry backoff", ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, errs.NewInvalidInput("building stream request: %v", err)
		}
		headers, err := t.Strategy.BuildHeaders(ctx)
		if err != nil {
			return nil, err
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "text/event-stream")
		}
		if req.Header.Get("Cache-Control") == "" {
			req.Header.Set("Cache-Control", "no-cache")
		}

		resp, err := t.HTTP.Do(req)
		if err != nil {
			lastErr = err
			t.emit("stream.connect", nil, err)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail := drainAsError(resp)
			resp.Body.Close()
			apiErr := errs.NewAPI(resp.StatusCode, detail)
			// 4xx is a caller error, never worth retrying.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, apiErr
			}
			lastErr = apiErr
			t.emit("stream.connect", nil, apiErr)
			continue
		}

		t.emit("stream.connect", nil, nil)
		return resp, nil
	}

	return nil, errs.NewNetwork("stream connection failed after retries", lastErr)
}

func (t *Transport) buildStreamURL(logicalPath string) string {
	var path string
	if model, verb, ok := auth.ActionPath(logicalPath); ok {
		path = t.Strategy.BuildPath(model, verb)
	} else {
		path = logicalPath
	}
	return t.Strategy.BuildBaseURL() + "/" + path + "?alt=sse"
}

// pump reads resp.Body in fixed-size chunks, feeds each into a fresh
// sse.Parser, and forwards every emitted event. Once a byte has been read
// from the body, a read error is terminal: it is surfaced as one final
// synthetic sse.Event carrying Err rather than retried, since the caller
// may already have delivered partial content downstream. Every send here
// is a plain blocking write, not gated on ctx: drive is the sole reader of
// out and always ranges over it until a terminal (Done or Err) event
// arrives, so a send can never block forever, and gating on ctx would
// race the terminal signal away right when ctx cancellation is what
// caused it.
func (t *Transport) pump(resp *http.Response, out chan<- sse.Event) {
	defer close(out)
	defer resp.Body.Close()

	var parser sse.Parser
	buf := make([]byte, 4096)

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range parser.ParseChunk(buf[:n]) {
				out <- ev
				if ev.Done() {
					return
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				for _, ev := range parser.Finalize() {
					out <- ev
					if ev.Done() {
						return
					}
				}
				// a clean close without a [DONE] marker still ends the
				// stream normally.
				out <- sse.Event{Data: map[string]any{"done": true}}
				return
			}
			t.emit("stream.read", nil, err)
			out <- sse.Event{Err: err}
			return
		}
	}
}

func (t *Transport) emit(name string, fields map[string]any, err error) {
	if t.Telemetry == nil {
		return
	}
	t.Telemetry.Emit(telemetry.Event{Name: name, Backend: t.Backend, Err: err, Fields: fields})
}

func drainAsError(resp *http.Response) map[string]any {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	return map[string]any{"message": string(b)}
}
