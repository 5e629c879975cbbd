package github_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/artsengine/internal/adapter/driven/github"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL)
	require.NoError(t, err)

	return client
}

type contentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
}

func TestPutFile_CreatesContent(t *testing.T) {
	var got contentsRequest
	var auth string

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/modelearth/requests/contents/generated/2026-03-01/scene-1.jpg", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"content":{"name":"scene-1.jpg"}}`))
	})
	client := newTestClient(t, mux)

	err := client.PutFile(context.Background(), "ghp_token", driven.RepoFile{
		Repo:    "modelearth/requests",
		Path:    "generated/2026-03-01/scene-1.jpg",
		Message: "Arts Engine: add generated image",
		Content: []byte("jpeg bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer ghp_token", auth)
	assert.Equal(t, "Arts Engine: add generated image", got.Message)
	decoded, err := base64.StdEncoding.DecodeString(got.Content)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(decoded))
}

func TestPutFile_ExistingPathReturnsRequestError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/o/r/contents/f/a.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Invalid request.\n\n\"sha\" wasn't supplied."}`))
	})
	client := newTestClient(t, mux)

	err := client.PutFile(context.Background(), "t", driven.RepoFile{Repo: "o/r", Path: "f/a.jpg", Message: "m", Content: []byte("x")})

	var reqErr *driven.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnprocessableEntity, reqErr.StatusCode)
	assert.Contains(t, reqErr.Message, "wasn't supplied")
}

func TestPutFile_InvalidRepo(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())

	err := client.PutFile(context.Background(), "t", driven.RepoFile{Repo: "norepo", Path: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected owner/repo")
}

func TestValidateToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"login":"octocat"}`))
	})
	client := newTestClient(t, mux)

	login, err := client.ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "octocat", login)

	_, err = client.ValidateToken(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token validation failed")
}

func TestNewClient_DefaultsToPublicAPI(t *testing.T) {
	client, err := ghAdapter.NewClient("")
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = ghAdapter.NewClientWithHTTPClient(http.DefaultClient, "://bad")
	assert.Error(t, err)
}
