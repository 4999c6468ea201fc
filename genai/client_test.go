package genai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/gemini-client/internal/auth"
	"github.com/howard-nolan/gemini-client/internal/config"
	"github.com/howard-nolan/gemini-client/internal/errs"
)

func TestNewClient_ValidatesConfig(t *testing.T) {
	_, err := NewClient(&config.Config{})
	require.Error(t, err)
}

func TestNewClient_Gemini(t *testing.T) {
	c, err := NewClient(&config.Config{APIKey: "k", MaxStreams: 10})
	require.NoError(t, err)
	assert.Equal(t, auth.TypeGemini, c.backend)
}

func TestNewClient_Vertex(t *testing.T) {
	c, err := NewClient(&config.Config{
		Vertex: config.Vertex{ProjectID: "p", Location: "l", AccessToken: "t"},
	})
	require.NoError(t, err)
	assert.Equal(t, auth.TypeVertex, c.backend)
}

func TestNormalizeModel(t *testing.T) {
	assert.Equal(t, "models/gemini-2.0-flash", normalizeModel("gemini-2.0-flash"))
	assert.Equal(t, "models/gemini-2.0-flash", normalizeModel("models/gemini-2.0-flash"))
	assert.Equal(t, "tunedModels/my-tuned-model", normalizeModel("tunedModels/my-tuned-model"))
}

func TestListModels_PageSizeTooLarge(t *testing.T) {
	c, err := NewClient(&config.Config{APIKey: "k", MaxStreams: 10})
	require.NoError(t, err)

	_, err = c.ListModels(context.Background(), 1001, "")
	require.Error(t, err)
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.InvalidInput, apiErr.Kind)
}

func TestContentsTypeOf(t *testing.T) {
	assert.Equal(t, "text", contentsTypeOf([]Content{{Parts: []Part{{Text: "hi"}}}}))
	assert.Equal(t, "multimodal", contentsTypeOf([]Content{{Parts: []Part{{InlineData: &Blob{MimeType: "image/png", Data: "x"}}}}}))
	assert.Equal(t, "function_call", contentsTypeOf([]Content{{Parts: []Part{{FunctionCall: &FunctionCall{Name: "f"}}}}}))
	assert.Equal(t, "empty", contentsTypeOf(nil))
}

func TestValidateRequest_EmptyContents(t *testing.T) {
	err := validateRequest(GenerateContentRequest{})
	require.Error(t, err)
}

func TestCanonicalizeRequest_FunctionCallArgs(t *testing.T) {
	req := GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{
			FunctionCall: &FunctionCall{Name: "lookup", Args: map[string]any{"user_id": "1"}},
		}}}},
	}
	out := canonicalizeRequest(req)
	assert.Equal(t, map[string]any{"userId": "1"}, out.Contents[0].Parts[0].FunctionCall.Args)
}

func TestCanonicalizeRequest_DoesNotMutateCaller(t *testing.T) {
	original := &FunctionCall{Name: "lookup", Args: map[string]any{"user_id": "1"}}
	req := GenerateContentRequest{Contents: []Content{{Parts: []Part{{FunctionCall: original}}}}}

	_ = canonicalizeRequest(req)

	assert.Equal(t, map[string]any{"user_id": "1"}, original.Args, "caller's FunctionCall must be untouched")
}

func TestCanonicalizeResponse_FunctionCallArgs(t *testing.T) {
	resp := &GenerateContentResponse{
		Candidates: []Candidate{{Content: Content{Parts: []Part{{
			FunctionCall: &FunctionCall{Name: "lookup", Args: map[string]any{"userId": "1"}},
		}}}}},
	}
	canonicalizeResponse(resp)
	assert.Equal(t, map[string]any{"user_id": "1"}, resp.Candidates[0].Content.Parts[0].FunctionCall.Args)
}

func TestGenerationConfig_MarshalJSON_ExtraMergesWithoutOverriding(t *testing.T) {
	temp := 0.7
	cfg := GenerationConfig{
		Temperature: &temp,
		Extra:       map[string]any{"temperature": 0.1, "response_mime_type": "application/json"},
	}

	body, err := cfg.MarshalJSON()
	require.NoError(t, err)

	assert.Contains(t, string(body), `"temperature":0.7`)
	assert.Contains(t, string(body), `"responseMimeType":"application/json"`)
}
