package auth

import (
	"context"
	"net/http"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiStrategy authenticates with a single API key sent as a header, per
// the public Gemini API surface (vertex2api-golang's Client sends the key
// via header rather than the legacy ?key= query param; we follow the header
// form since it keeps the key out of server access logs).
type geminiStrategy struct {
	apiKey string
}

func (g *geminiStrategy) BuildBaseURL() string {
	return geminiBaseURL
}

func (g *geminiStrategy) BuildPath(model, endpoint string) string {
	return "models/" + model + ":" + endpoint
}

func (g *geminiStrategy) BuildHeaders(_ context.Context) (http.Header, error) {
	h := make(http.Header)
	h.Set("x-goog-api-key", g.apiKey)
	h.Set("Content-Type", "application/json")
	return h, nil
}
