package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/howard-nolan/gemini-client/internal/errs"
)

// vertexStrategy authenticates with an OAuth bearer token and addresses
// models through a project/location-scoped resource path, grounded on
// CLIProxyAPI's gemini_vertex_executor.go vertexAccessToken/vertexBaseURL
// pair: there, a service-account JSON is exchanged via
// google.CredentialsFromJSON for a token source scoped to
// "https://www.googleapis.com/auth/cloud-platform", and the base URL is
// "https://{location}-aiplatform.googleapis.com". We keep that shape but
// let the token arrive either pre-fetched or via a caller-supplied
// TokenSource, since acquiring it from raw service-account JSON is plumbing
// owned by NewVertexCredentialsFromServiceAccount, not by the strategy.
type vertexStrategy struct {
	mu    sync.Mutex
	creds VertexCredentials
}

func (v *vertexStrategy) BuildBaseURL() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", v.creds.Location)
}

func (v *vertexStrategy) BuildPath(model, endpoint string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s:%s",
		v.creds.ProjectID, v.creds.Location, model, endpoint)
}

func (v *vertexStrategy) BuildHeaders(ctx context.Context) (http.Header, error) {
	v.mu.Lock()
	token := v.creds.AccessToken
	source := v.creds.TokenSource
	v.mu.Unlock()

	if token == "" {
		if source == nil {
			return nil, errs.NewConfig("missing credential: access_token")
		}
		fresh, err := source(ctx)
		if err != nil {
			return nil, errs.NewConfig("vertex token source failed: %v", err)
		}
		v.mu.Lock()
		v.creds.AccessToken = fresh
		v.mu.Unlock()
		token = fresh
	}

	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	h.Set("Content-Type", "application/json")
	return h, nil
}
