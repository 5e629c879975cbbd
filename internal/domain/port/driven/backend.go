package driven

import (
	"context"
	"encoding/json"
	"fmt"
)

// ProviderCredentials selects the provider the backend should use. A nil
// value means the backend default; no provider headers are sent.
type ProviderCredentials struct {
	Provider string
	Key      string
}

// ImageRequest is the body of POST /api/generate/image.
type ImageRequest struct {
	Prompt         string `json:"prompt"`
	AspectRatio    string `json:"aspect_ratio"`
	ResponseFormat string `json:"response_format"`
}

// TextRequest is the body of POST /api/generate/text.
type TextRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens"`
}

// VideoRequest is the body of POST /api/generate/video.
type VideoRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

// StoryboardRequest is the body of POST /api/generate/storyboard.
type StoryboardRequest struct {
	Prompts     []string `json:"prompts"`
	AspectRatio string   `json:"aspect_ratio"`
	N           int      `json:"n"`
}

// GenerationResponse is the decoded backend reply common to all generate
// endpoints. Raw holds the undecoded body for display.
type GenerationResponse struct {
	Provider  string          `json:"provider,omitempty"`
	Model     string          `json:"model,omitempty"`
	Status    string          `json:"status,omitempty"`
	ID        string          `json:"id,omitempty"`
	Text      string          `json:"text,omitempty"`
	MediaURLs []string        `json:"media_urls,omitempty"`
	RequestID string          `json:"-"`
	Raw       json.RawMessage `json:"-"`
}

// StoryboardScene is one scene of a storyboard reply.
type StoryboardScene struct {
	Prompt    string
	MediaURLs []string
}

// StoryboardResponse is the decoded storyboard reply.
type StoryboardResponse struct {
	Scenes []StoryboardScene
	Raw    json.RawMessage
}

// BackendHealth is the decoded GET /api/health reply.
type BackendHealth struct {
	Provider string `json:"provider,omitempty"`
}

// RequestError is a non-success backend response.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// GenerationBackend is the external HTTP generation service.
type GenerationBackend interface {
	Health(ctx context.Context) (BackendHealth, error)
	GenerateImage(ctx context.Context, creds *ProviderCredentials, req ImageRequest) (GenerationResponse, error)
	GenerateText(ctx context.Context, creds *ProviderCredentials, req TextRequest) (GenerationResponse, error)
	GenerateVideo(ctx context.Context, creds *ProviderCredentials, req VideoRequest) (GenerationResponse, error)
	// VideoStatus fetches the state of an asynchronous video job.
	VideoStatus(ctx context.Context, jobID string) (GenerationResponse, error)
	GenerateStoryboard(ctx context.Context, creds *ProviderCredentials, req StoryboardRequest) (StoryboardResponse, error)
	// BaseURL returns the backend root, used in failure hints.
	BaseURL() string
}

// MediaFetcher downloads generated media for export.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
