// Package github implements the RepoExporter port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoExporter = (*Client)(nil)

// Client implements the driven.RepoExporter port. The token is supplied per
// call because it lives in the secret store, not in configuration.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL // nil means api.github.com
}

// NewClient creates a GitHub client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth, per request)
//
// A non-empty apiURL points the client at GitHub Enterprise or a test server.
func NewClient(apiURL string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	rateLimitClient.Timeout = 30 * time.Second

	return NewClientWithHTTPClient(rateLimitClient, apiURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	c := &Client{httpClient: httpClient}
	if baseURL == "" {
		return c, nil
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	c.baseURL = u
	return c, nil
}

// clientFor builds a go-github client authenticated with token.
func (c *Client) clientFor(token string) *gh.Client {
	client := gh.NewClient(c.httpClient).WithAuthToken(token)
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}
	return client
}

// ValidateToken verifies that the given GitHub personal access token is valid
// and returns the authenticated username on success.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	user, resp, err := c.clientFor(token).Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	logRateLimit(resp, "users/me")
	return user.GetLogin(), nil
}

// PutFile creates file in the repository through the contents API. GitHub
// rejects the call with 422 when the path already exists.
func (c *Client) PutFile(ctx context.Context, token string, file driven.RepoFile) error {
	owner, repo, err := splitRepo(file.Repo)
	if err != nil {
		return err
	}

	_, resp, err := c.clientFor(token).Repositories.CreateFile(ctx, owner, repo, file.Path, &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(file.Message),
		Content: file.Content,
	})
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil {
			msg := ghErr.Message
			if msg == "" {
				msg = fmt.Sprintf("HTTP %d", ghErr.Response.StatusCode)
			}
			return &driven.RequestError{StatusCode: ghErr.Response.StatusCode, Message: msg}
		}
		return fmt.Errorf("creating %s in %s: %w", file.Path, file.Repo, err)
	}

	logRateLimit(resp, "contents")
	slog.Debug("github file created", "repo", file.Repo, "path", file.Path, "bytes", len(file.Content))
	return nil
}

// logRateLimit records the remaining GitHub quota after a call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
