// Package genai is the root client package: it exposes the coordinator
// (Client) and the request/response types every operation exchanges. Its
// wire shapes are grounded on vertex2api-golang's internal/vertex/client.go
// GeminiRequest/GeminiResponse struct family, enriched with the
// Extra-map-merge technique from textualai's GenerationConfig.MarshalJSON
// so options this core doesn't name explicitly still round-trip.
package genai

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/howard-nolan/gemini-client/internal/canonical"
)

// Content is one turn's worth of parts, attributed to a Role.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a single content fragment: exactly one of its fields is set.
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Blob is inline binary data (e.g. an image) with its MIME type.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall is a model-issued request to invoke a named function.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries the caller's result for a prior FunctionCall.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// GenerationConfig tunes sampling. Extra carries fields this core doesn't
// name explicitly (e.g. a newer backend-specific knob); MarshalJSON merges
// it in without ever letting it override a named field, following
// textualai's cloneGenerationConfig/MarshalJSON merge discipline.
type GenerationConfig struct {
	Temperature     *float64       `json:"temperature,omitempty"`
	TopP            *float64       `json:"topP,omitempty"`
	TopK            *float64       `json:"topK,omitempty"`
	MaxOutputTokens *int           `json:"maxOutputTokens,omitempty"`
	StopSequences   []string       `json:"stopSequences,omitempty"`
	CandidateCount  *int           `json:"candidateCount,omitempty"`
	Extra           map[string]any `json:"-"`
}

// MarshalJSON encodes the named fields first, then layers Extra's entries
// in via sjson.SetBytes — camelCased, since Extra is the wire escape
// hatch, not the application-facing convention canonical.go governs — and
// only for keys a named field didn't already set. This mirrors
// textualai's GenerationConfig.MarshalJSON, which merges an Extra map into
// the typed output without ever letting it override an explicit field.
func (g GenerationConfig) MarshalJSON() ([]byte, error) {
	type alias GenerationConfig
	body, err := json.Marshal(alias(g))
	if err != nil {
		return nil, err
	}

	for k, v := range g.Extra {
		key := canonical.SnakeToCamel(k)
		if gjson.GetBytes(body, key).Exists() {
			continue
		}
		body, err = sjson.SetBytes(body, key, v)
		if err != nil {
			return nil, fmt.Errorf("merging generation config extra field %q: %w", k, err)
		}
	}
	return body, nil
}

// SafetySetting adjusts the threshold for one harm category.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GenerateContentRequest is the unified request body for GenerateContent
// and StreamGenerateContent.
type GenerateContentRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []SafetySetting   `json:"safetySettings,omitempty"`
}

// GenerateContentResponse is the unified response body.
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

// UsageMetadata reports token accounting for a request.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// PromptFeedback carries safety verdicts about the prompt itself.
type PromptFeedback struct {
	BlockReason   string         `json:"blockReason,omitempty"`
	SafetyRatings []SafetyRating `json:"safetyRatings,omitempty"`
}

// SafetyRating is one category's safety verdict.
type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
}

// CountTokensRequest mirrors GenerateContentRequest's contents for a
// token-count-only call.
type CountTokensRequest struct {
	Contents []Content `json:"contents"`
}

// CountTokensResponse reports the token count for a would-be request.
type CountTokensResponse struct {
	TotalTokens int `json:"totalTokens"`
}

// Model describes one available model.
type Model struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName,omitempty"`
	Description                string   `json:"description,omitempty"`
	InputTokenLimit            int      `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit           int      `json:"outputTokenLimit,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods,omitempty"`
}

// ListModelsResponse is one page of models.
type ListModelsResponse struct {
	Models        []Model `json:"models"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// StreamEvent is one item delivered to a stream subscriber: either a
// partial GenerateContentResponse, or Done=true marking stream end.
type StreamEvent struct {
	Response *GenerateContentResponse
	Done     bool
	Err      error
}
