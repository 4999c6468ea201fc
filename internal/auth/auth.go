// Package auth resolves credentials into the URL, path, and header shape
// each back-end expects. It generalizes a familiar small-interface,
// one-implementation-per-backend pattern (selected once at startup) into a
// strategy that is resolved per request, since a single process may hold
// both a Gemini and a Vertex AuthConfig and route between them per call.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/howard-nolan/gemini-client/internal/errs"
)

// Type names the two supported back-ends.
type Type string

const (
	// TypeGemini selects the public, API-key-authenticated Gemini API.
	TypeGemini Type = "gemini"
	// TypeVertex selects Vertex AI, authenticated with an OAuth bearer token.
	TypeVertex Type = "vertex"
)

// Credentials is the tagged-variant credential payload. APIKeyCredentials
// and VertexCredentials are its two arms.
type Credentials interface {
	isCredentials()
}

// APIKeyCredentials holds a Gemini API key, sent as the x-goog-api-key header.
type APIKeyCredentials struct {
	Key string
}

func (APIKeyCredentials) isCredentials() {}

// VertexCredentials holds the access token plus the project/location pair
// Vertex needs to build a resource path. AccessToken may be produced ahead
// of time by the caller, or lazily by TokenSource on first use (see
// vertex.go); acquiring it from a service-account key is a separate
// producer out of this core's scope per spec.
type VertexCredentials struct {
	AccessToken string
	ProjectID   string
	Location    string

	// TokenSource, when set, is invoked to (re)produce AccessToken lazily.
	// Strategy.BuildHeaders calls it only when AccessToken is still empty.
	TokenSource func(ctx context.Context) (string, error)
}

func (VertexCredentials) isCredentials() {}

// Config is one-to-one with a chosen Strategy: a Type plus the Credentials
// that back it. Resolved per request by the coordinator from Config Resolver
// output, so the strategy reflects whichever backend the caller configured.
type Config struct {
	Type        Type
	Credentials Credentials
}

// Strategy builds the absolute URL, resource path, and headers for a
// logical model/endpoint pair against one back-end.
type Strategy interface {
	// BuildPath renders "models/<model>:<endpoint>" (Gemini) or the
	// "projects/.../publishers/google/models/<model>:<endpoint>" resource
	// path (Vertex).
	BuildPath(model, endpoint string) string

	// BuildBaseURL returns the scheme+host+API-version prefix the path is
	// joined onto.
	BuildBaseURL() string

	// BuildHeaders returns the headers (auth + content-type) for a request.
	BuildHeaders(ctx context.Context) (http.Header, error)
}

// NewStrategy resolves cfg.Type to a concrete Strategy, failing with a
// ConfigError for an unknown type or a missing required credential field.
func NewStrategy(cfg Config) (Strategy, error) {
	switch cfg.Type {
	case TypeGemini:
		creds, ok := cfg.Credentials.(APIKeyCredentials)
		if !ok {
			return nil, errs.NewConfig("missing credential: key")
		}
		if strings.TrimSpace(creds.Key) == "" {
			return nil, errs.NewConfig("missing credential: key")
		}
		return &geminiStrategy{apiKey: creds.Key}, nil

	case TypeVertex:
		creds, ok := cfg.Credentials.(VertexCredentials)
		if !ok {
			return nil, errs.NewConfig("missing credential: access_token")
		}
		if strings.TrimSpace(creds.ProjectID) == "" {
			return nil, errs.NewConfig("missing credential: project_id")
		}
		if strings.TrimSpace(creds.Location) == "" {
			return nil, errs.NewConfig("missing credential: location")
		}
		if strings.TrimSpace(creds.AccessToken) == "" && creds.TokenSource == nil {
			return nil, errs.NewConfig("missing credential: access_token")
		}
		return &vertexStrategy{creds: creds}, nil

	default:
		return nil, errs.NewConfig("unknown auth type: %q", cfg.Type)
	}
}

// ActionPath reports whether a LogicalPath is an Action (contains ":"),
// and if so splits it into model and verb, per spec §4.B: the coordinator
// inspects the logical path and routes Actions through Strategy.BuildPath;
// everything else is appended to the base URL verbatim.
func ActionPath(logicalPath string) (model, verb string, isAction bool) {
	idx := strings.LastIndex(logicalPath, ":")
	if idx < 0 {
		return "", "", false
	}
	verb = logicalPath[idx+1:]
	modelPart := logicalPath[:idx]
	modelPart = strings.TrimPrefix(modelPart, "models/")
	return modelPart, verb, true
}
