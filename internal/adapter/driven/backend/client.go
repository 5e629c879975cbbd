// Package backend implements the GenerationBackend and MediaFetcher ports
// against the generation service's JSON API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.GenerationBackend = (*Client)(nil)
	_ driven.MediaFetcher      = (*Client)(nil)
)

const (
	headerProviderName = "X-Provider-Name"
	headerProviderKey  = "X-Provider-Key"
	headerRequestID    = "X-Request-ID"

	maxResponseBytes = 10 << 20
	maxMediaBytes    = 200 << 20
	defaultTimeout   = 3 * time.Minute
)

// Client talks to the generation backend rooted at baseURL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client. baseURL must be an absolute http(s) URL; a trailing
// slash is ignored.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("backend URL %q must be an absolute http(s) URL", baseURL)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Health calls GET /api/health. Any 2xx reply counts as healthy; the
// provider field is optional.
func (c *Client) Health(ctx context.Context) (driven.BackendHealth, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/health", nil, nil)
	if err != nil {
		return driven.BackendHealth{}, err
	}

	var h driven.BackendHealth
	if err := json.Unmarshal(body, &h); err != nil {
		slog.Debug("health reply is not JSON", "error", err)
	}
	return h, nil
}

// GenerateImage calls POST /api/generate/image.
func (c *Client) GenerateImage(ctx context.Context, creds *driven.ProviderCredentials, req driven.ImageRequest) (driven.GenerationResponse, error) {
	return c.generate(ctx, "/api/generate/image", creds, req)
}

// GenerateText calls POST /api/generate/text.
func (c *Client) GenerateText(ctx context.Context, creds *driven.ProviderCredentials, req driven.TextRequest) (driven.GenerationResponse, error) {
	return c.generate(ctx, "/api/generate/text", creds, req)
}

// GenerateVideo calls POST /api/generate/video.
func (c *Client) GenerateVideo(ctx context.Context, creds *driven.ProviderCredentials, req driven.VideoRequest) (driven.GenerationResponse, error) {
	return c.generate(ctx, "/api/generate/video", creds, req)
}

// VideoStatus calls GET /api/generate/video/{id}.
func (c *Client) VideoStatus(ctx context.Context, jobID string) (driven.GenerationResponse, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/generate/video/"+url.PathEscape(jobID), nil, nil)
	if err != nil {
		return driven.GenerationResponse{}, err
	}
	return decodeGeneration(body)
}

// GenerateStoryboard calls POST /api/generate/storyboard.
func (c *Client) GenerateStoryboard(ctx context.Context, creds *driven.ProviderCredentials, req driven.StoryboardRequest) (driven.StoryboardResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/generate/storyboard", creds, req)
	if err != nil {
		return driven.StoryboardResponse{}, err
	}

	var wire struct {
		Scenes []struct {
			Prompt    string      `json:"prompt"`
			MediaURLs []string    `json:"media_urls"`
			Images    []wireImage `json:"images"`
		} `json:"scenes"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return driven.StoryboardResponse{}, fmt.Errorf("decoding storyboard response: %w", err)
	}

	resp := driven.StoryboardResponse{Raw: body}
	for _, s := range wire.Scenes {
		resp.Scenes = append(resp.Scenes, driven.StoryboardScene{
			Prompt:    s.Prompt,
			MediaURLs: mediaURLs(s.MediaURLs, s.Images),
		})
	}
	return resp, nil
}

// Fetch downloads generated media. Relative URLs resolve against the
// backend root.
func (c *Client) Fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	target, err := c.resolve(mediaURL)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating media request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &driven.RequestError{StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, fmt.Errorf("reading media: %w", err)
	}
	return data, nil
}

func (c *Client) generate(ctx context.Context, path string, creds *driven.ProviderCredentials, payload any) (driven.GenerationResponse, error) {
	body, err := c.do(ctx, http.MethodPost, path, creds, payload)
	if err != nil {
		return driven.GenerationResponse{}, err
	}
	return decodeGeneration(body)
}

// do performs one request and returns the body of a 2xx reply. Other
// statuses become *driven.RequestError carrying the reply's "error" field.
func (c *Client) do(ctx context.Context, method, path string, creds *driven.ProviderCredentials, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, uuid.NewString())
	if creds != nil {
		httpReq.Header.Set(headerProviderName, creds.Provider)
		httpReq.Header.Set(headerProviderKey, creds.Key)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}

	slog.Debug("backend call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", httpReq.Header.Get(headerRequestID),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &driven.RequestError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func (c *Client) resolve(mediaURL string) (string, error) {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return "", fmt.Errorf("parsing media URL: %w", err)
	}
	if u.IsAbs() {
		return mediaURL, nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parsing backend URL: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}

type wireImage struct {
	URL string `json:"url"`
}

// decodeGeneration decodes a generate or status reply. Legacy "images"
// arrays are folded into MediaURLs and raw.request_id is surfaced as
// RequestID.
func decodeGeneration(body []byte) (driven.GenerationResponse, error) {
	var wire struct {
		driven.GenerationResponse
		Images []wireImage     `json:"images"`
		Raw    json.RawMessage `json:"raw"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return driven.GenerationResponse{}, fmt.Errorf("decoding response: %w", err)
	}

	resp := wire.GenerationResponse
	resp.MediaURLs = mediaURLs(resp.MediaURLs, wire.Images)
	resp.Raw = body

	if len(wire.Raw) > 0 {
		var inner struct {
			RequestID string `json:"request_id"`
		}
		if err := json.Unmarshal(wire.Raw, &inner); err == nil {
			resp.RequestID = inner.RequestID
		}
	}
	return resp, nil
}

func mediaURLs(urls []string, images []wireImage) []string {
	if len(urls) > 0 {
		return urls
	}
	var out []string
	for _, img := range images {
		if img.URL != "" {
			out = append(out, img.URL)
		}
	}
	return out
}

// errorMessage extracts the "error" field of a failure reply, falling back
// to nothing so RequestError reports the status code.
func errorMessage(body []byte) string {
	var e struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil || len(e.Error) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(e.Error, &s); err == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Error, &nested); err == nil {
		return nested.Message
	}
	return ""
}

// IsUnreachable reports whether err is a transport failure rather than an
// HTTP reply.
func IsUnreachable(err error) bool {
	var reqErr *driven.RequestError
	if errors.As(err, &reqErr) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
