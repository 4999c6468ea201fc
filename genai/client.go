package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/howard-nolan/gemini-client/internal/auth"
	"github.com/howard-nolan/gemini-client/internal/canonical"
	"github.com/howard-nolan/gemini-client/internal/config"
	"github.com/howard-nolan/gemini-client/internal/errs"
	"github.com/howard-nolan/gemini-client/internal/httpclient"
	"github.com/howard-nolan/gemini-client/internal/sse"
	"github.com/howard-nolan/gemini-client/internal/streaming"
	"github.com/howard-nolan/gemini-client/internal/telemetry"
)

// Client is the coordinator: it owns a resolved auth strategy, a unary HTTP
// client, and a streaming supervisor, and exposes the five operations a
// caller drives a Gemini or Vertex backend with.
type Client struct {
	backend    auth.Type
	http       *httpclient.Client
	supervisor *streaming.Supervisor
	telemetry  *telemetry.Emitter
}

// NewClient resolves cfg's credentials into a strategy and wires every
// internal component behind it. It supplies no http.Client of its own, so
// the unary client uses its 60-second-timeout default and the streaming
// transport a client with no overall timeout.
func NewClient(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	authCfg, err := cfg.ResolveAuth()
	if err != nil {
		return nil, err
	}

	strategy, err := auth.NewStrategy(authCfg)
	if err != nil {
		return nil, err
	}

	telem := telemetry.New(cfg.TelemetryEnabled, logrus.StandardLogger())

	httpC := httpclient.New(strategy, string(authCfg.Type), telem, nil)
	transport := streaming.NewTransport(strategy, string(authCfg.Type), telem, nil)
	supervisor := streaming.NewSupervisor(transport, cfg.MaxStreams, telem)

	return &Client{
		backend:    authCfg.Type,
		http:       httpC,
		supervisor: supervisor,
		telemetry:  telem,
	}, nil
}

// GenerateContent issues one unary generateContent call.
func (c *Client) GenerateContent(ctx context.Context, model string, req GenerateContentRequest) (*GenerateContentResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	logicalPath := normalizeModel(model) + ":generateContent"

	var resp GenerateContentResponse
	if err := c.http.Do(ctx, http.MethodPost, logicalPath, canonicalizeRequest(req), &resp, contentsTypeOf(req.Contents)); err != nil {
		return nil, err
	}
	canonicalizeResponse(&resp)
	return &resp, nil
}

// StreamGenerateContent starts a streaming generateContent call and
// returns its stream id plus a channel of StreamEvent. Subscriber death is
// the caller canceling ctx; the stream itself keeps running for any other
// subscriber until the backend sends its terminal event or StopStream is
// called directly against the id.
func (c *Client) StreamGenerateContent(ctx context.Context, model string, req GenerateContentRequest) (string, <-chan StreamEvent, error) {
	if err := validateRequest(req); err != nil {
		return "", nil, err
	}

	logicalPath := normalizeModel(model) + ":streamGenerateContent"

	id, err := c.supervisor.StartStream(ctx, model, logicalPath, canonicalizeRequest(req), contentsTypeOf(req.Contents))
	if err != nil {
		return "", nil, err
	}

	raw, err := c.supervisor.Subscribe(ctx, id)
	if err != nil {
		return "", nil, err
	}

	return id, translate(raw), nil
}

// Subscribe attaches a new subscriber to an already-running stream (e.g. a
// second consumer of a stream another goroutine started).
func (c *Client) Subscribe(ctx context.Context, streamID string) (<-chan StreamEvent, error) {
	raw, err := c.supervisor.Subscribe(ctx, streamID)
	if err != nil {
		return nil, err
	}
	return translate(raw), nil
}

// StopStream cancels a running stream.
func (c *Client) StopStream(streamID string) error {
	return c.supervisor.StopStream(streamID)
}

// GetStreamInfo reports a stream's lifecycle state.
func (c *Client) GetStreamInfo(streamID string) (streaming.Info, error) {
	return c.supervisor.GetStreamInfo(streamID)
}

// ListStreams reports every registered stream's lifecycle state.
func (c *Client) ListStreams() []streaming.Info {
	return c.supervisor.ListStreams()
}

// GetStats summarizes the stream registry by status.
func (c *Client) GetStats() streaming.Stats {
	return c.supervisor.GetStats()
}

// CountTokens reports the token count a GenerateContent call with the same
// contents would consume.
func (c *Client) CountTokens(ctx context.Context, model string, contents []Content) (*CountTokensResponse, error) {
	if len(contents) == 0 {
		return nil, errs.NewInvalidInput("contents must not be empty")
	}

	logicalPath := normalizeModel(model) + ":countTokens"

	var resp CountTokensResponse
	if err := c.http.Do(ctx, http.MethodPost, logicalPath, CountTokensRequest{Contents: contents}, &resp, contentsTypeOf(contents)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListModels lists available models, paginating with pageSize/pageToken.
// pageSize <= 0 defaults to 50; pageSize > 1000 is rejected outright rather
// than silently clamped, since the backend's documented bound is a hard
// ceiling the caller should be told about.
func (c *Client) ListModels(ctx context.Context, pageSize int, pageToken string) (*ListModelsResponse, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 1000 {
		return nil, errs.NewInvalidInput("page_size must be <= 1000, got %d", pageSize)
	}

	path := "models?pageSize=" + strconv.Itoa(pageSize)
	if pageToken != "" {
		path += "&pageToken=" + pageToken
	}

	var resp ListModelsResponse
	if err := c.http.Do(ctx, http.MethodGet, path, nil, &resp, ""); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetModel fetches metadata for a single model by name.
func (c *Client) GetModel(ctx context.Context, name string) (*Model, error) {
	var m Model
	if err := c.http.Do(ctx, http.MethodGet, normalizeModel(name), nil, &m, ""); err != nil {
		return nil, err
	}
	return &m, nil
}

// normalizeModel prefixes a bare model id with "models/" unless it already
// names a models/ or tunedModels/ resource, grounded on textualgemini's
// normalizeModel.
func normalizeModel(name string) string {
	if strings.HasPrefix(name, "models/") || strings.HasPrefix(name, "tunedModels/") {
		return name
	}
	return "models/" + name
}

// contentsTypeOf classifies a request's contents for telemetry by scanning
// every part for the presence of text, inline data, or a function call,
// deferring the actual label decision to telemetry.ClassifyContents.
func contentsTypeOf(contents []Content) string {
	var hasText, hasInlineData, hasFunctionCall bool
	for _, content := range contents {
		for _, part := range content.Parts {
			if part.Text != "" {
				hasText = true
			}
			if part.InlineData != nil {
				hasInlineData = true
			}
			if part.FunctionCall != nil {
				hasFunctionCall = true
			}
		}
	}
	return telemetry.ClassifyContents(hasText, hasInlineData, hasFunctionCall)
}

func validateRequest(req GenerateContentRequest) error {
	if len(req.Contents) == 0 {
		return errs.NewInvalidInput("contents must not be empty")
	}
	return nil
}

// translate adapts the supervisor's raw sse.Event channel into typed
// StreamEvent values, canonicalizing keys and decoding into
// GenerateContentResponse. A malformed event's JSON was already dropped by
// the parser; translate's own decode failures are surfaced as an error
// event rather than silently skipped, since by this point the payload
// parsed as JSON but didn't match the expected shape.
func translate(raw <-chan sse.Event) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		for ev := range raw {
			if ev.Err != nil {
				out <- StreamEvent{Err: errs.NewNetwork("stream terminated", ev.Err)}
				continue
			}
			if ev.Done() {
				out <- StreamEvent{Done: true}
				continue
			}

			encoded, err := json.Marshal(ev.Data)
			if err != nil {
				out <- StreamEvent{Err: errs.NewInvalidResponse(err)}
				continue
			}

			var resp GenerateContentResponse
			if err := json.Unmarshal(encoded, &resp); err != nil {
				out <- StreamEvent{Err: errs.NewInvalidResponse(err)}
				continue
			}

			canonicalizeResponse(&resp)
			out <- StreamEvent{Response: &resp}
		}
	}()
	return out
}

// canonicalizeRequest converts the application-facing snake_case keys in a
// request's dynamic maps (function-call args, function-response payloads)
// to the camelCase the wire protocol expects. Named struct fields never
// need this — their json tags already speak camelCase — only the
// map[string]any escape hatches do.
//
// It never mutates the caller's req: Contents/Parts and any touched
// FunctionCall/FunctionResponse are copied before their Args/Response map
// is replaced, since those are shared pointers the caller may reuse across
// calls.
func canonicalizeRequest(req GenerateContentRequest) GenerateContentRequest {
	out := req
	out.Contents = make([]Content, len(req.Contents))
	for i, content := range req.Contents {
		content.Parts = make([]Part, len(content.Parts))
		for j, part := range req.Contents[i].Parts {
			if part.FunctionCall != nil && part.FunctionCall.Args != nil {
				fc := *part.FunctionCall
				fc.Args = canonical.ToCamelCase(fc.Args).(map[string]any)
				part.FunctionCall = &fc
			}
			if part.FunctionResponse != nil && part.FunctionResponse.Response != nil {
				fr := *part.FunctionResponse
				fr.Response = canonical.ToCamelCase(fr.Response).(map[string]any)
				part.FunctionResponse = &fr
			}
			content.Parts[j] = part
		}
		out.Contents[i] = content
	}
	return out
}

// canonicalizeResponse converts the camelCase keys the wire protocol uses
// in its dynamic maps back to this core's snake_case application
// convention, the inverse of canonicalizeRequest.
func canonicalizeResponse(resp *GenerateContentResponse) {
	for i := range resp.Candidates {
		for j := range resp.Candidates[i].Content.Parts {
			p := &resp.Candidates[i].Content.Parts[j]
			if p.FunctionCall != nil && p.FunctionCall.Args != nil {
				p.FunctionCall.Args = canonical.ToSnakeCase(p.FunctionCall.Args).(map[string]any)
			}
			if p.FunctionResponse != nil && p.FunctionResponse.Response != nil {
				p.FunctionResponse.Response = canonical.ToSnakeCase(p.FunctionResponse.Response).(map[string]any)
			}
		}
	}
}
