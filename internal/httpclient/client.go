// Package httpclient issues unary JSON requests against a resolved
// auth.Strategy: it builds the URL, encodes the request body, decodes the
// response, and classifies failures into internal/errs kinds. It does not
// retry — retries are a streaming-only concern per internal/streaming,
// and even there they cover only connection establishment: a stream that
// fails after partial progress is surfaced as an error, never resumed.
//
// Generalizes GoogleProvider.ChatCompletion's marshal/POST/decode shape
// from one hardcoded endpoint to strategy-driven path construction, with
// non-2xx error-body extraction via gjson instead of a second
// json.Unmarshal, following CLIProxyAPI's gjson.GetBytes usage.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/howard-nolan/gemini-client/internal/auth"
	"github.com/howard-nolan/gemini-client/internal/errs"
	"github.com/howard-nolan/gemini-client/internal/telemetry"
)

// Client issues unary requests against one resolved Strategy.
type Client struct {
	HTTP      *http.Client
	Strategy  auth.Strategy
	Telemetry *telemetry.Emitter
	Backend   string
}

// New builds a Client. A nil httpClient gets a sane default timeout, since
// the zero-value http.Client has none and would hang forever on a stalled
// connection.
func New(strategy auth.Strategy, backend string, telem *telemetry.Emitter, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{HTTP: httpClient, Strategy: strategy, Telemetry: telem, Backend: backend}
}

// BuildURL resolves a logical path (e.g. "models/gemini-2.0-flash:generateContent")
// against the strategy: an Action path is rebuilt through
// Strategy.BuildPath so Vertex gets its project/location-scoped resource
// name, while a plain path is appended to the base URL as-is.
func (c *Client) BuildURL(logicalPath string) string {
	if model, verb, ok := auth.ActionPath(logicalPath); ok {
		return c.Strategy.BuildBaseURL() + "/" + c.Strategy.BuildPath(model, verb)
	}
	return c.Strategy.BuildBaseURL() + "/" + logicalPath
}

// Do issues method against logicalPath with body JSON-encoded (nil for no
// body) and decodes a 2xx response into out (nil to discard the body).
// contentsType is a caller-supplied telemetry classification (e.g. from
// telemetry.ClassifyContents); pass "" when the call has no meaningful one
// (model listing/lookup). Do emits request.start before issuing the HTTP
// call, then exactly one of request.stop (2xx) or request.exception
// (transport failure or non-2xx).
func (c *Client) Do(ctx context.Context, method, logicalPath string, body, out any, contentsType string) error {
	start := time.Now()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errs.NewInvalidInput("encoding request body: %v", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BuildURL(logicalPath), reqBody)
	if err != nil {
		return errs.NewInvalidInput("building request: %v", err)
	}

	headers, err := c.Strategy.BuildHeaders(ctx)
	if err != nil {
		return err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.emit("request.start", logicalPath, contentsType, 0, nil)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		networkErr := errs.NewNetwork("request failed", err)
		c.emit("request.exception", logicalPath, contentsType, time.Since(start), networkErr)
		return networkErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		networkErr := errs.NewNetwork("reading response body", err)
		c.emit("request.exception", logicalPath, contentsType, time.Since(start), networkErr)
		return networkErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := errs.NewAPI(resp.StatusCode, extractErrorDetail(respBody))
		c.emit("request.exception", logicalPath, contentsType, time.Since(start), apiErr)
		return apiErr
	}

	c.emit("request.stop", logicalPath, contentsType, time.Since(start), nil)

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.NewInvalidResponse(err)
	}
	return nil
}

func (c *Client) emit(name, logicalPath, contentsType string, duration time.Duration, err error) {
	if c.Telemetry == nil {
		return
	}
	model, _, _ := auth.ActionPath(logicalPath)
	c.Telemetry.Emit(telemetry.Event{
		Name:         name,
		Backend:      c.Backend,
		Model:        model,
		ContentsType: contentsType,
		Duration:     duration,
		Err:          err,
		Fields:       map[string]any{"path": logicalPath},
	})
}

// extractErrorDetail pulls a structured "error" object out of a non-2xx
// body via gjson, falling back to the raw body text if the shape doesn't
// match what Gemini/Vertex return.
func extractErrorDetail(body []byte) map[string]any {
	result := gjson.GetBytes(body, "error")
	if result.Exists() && result.IsObject() {
		var detail map[string]any
		if err := json.Unmarshal([]byte(result.Raw), &detail); err == nil {
			return detail
		}
	}
	return map[string]any{"message": string(body)}
}
