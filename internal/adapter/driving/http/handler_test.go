package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	httphandler "github.com/ericfisherdev/artsengine/internal/adapter/driving/http"
	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/domain/model"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// --- Mock implementations ---

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// stubBackend answers every generate call with one media URL. When block is
// set, GenerateImage waits on it.
type stubBackend struct {
	base      string
	healthErr error
	imageErr  error
	block     chan struct{}

	mu    sync.Mutex
	calls int
}

func (s *stubBackend) Health(_ context.Context) (driven.BackendHealth, error) {
	if s.healthErr != nil {
		return driven.BackendHealth{}, s.healthErr
	}
	return driven.BackendHealth{Provider: "xai"}, nil
}

func (s *stubBackend) GenerateImage(ctx context.Context, _ *driven.ProviderCredentials, req driven.ImageRequest) (driven.GenerationResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return driven.GenerationResponse{}, ctx.Err()
		}
	}
	if s.imageErr != nil {
		return driven.GenerationResponse{}, s.imageErr
	}
	return driven.GenerationResponse{
		MediaURLs: []string{"https://media.test/" + strings.ReplaceAll(req.Prompt, " ", "-") + ".jpg"},
		Raw:       json.RawMessage(`{"status":"completed"}`),
	}, nil
}

func (s *stubBackend) GenerateText(_ context.Context, _ *driven.ProviderCredentials, req driven.TextRequest) (driven.GenerationResponse, error) {
	return driven.GenerationResponse{Text: "text for " + req.Prompt}, nil
}

func (s *stubBackend) GenerateVideo(_ context.Context, _ *driven.ProviderCredentials, _ driven.VideoRequest) (driven.GenerationResponse, error) {
	return driven.GenerationResponse{MediaURLs: []string{"https://media.test/v.mp4"}}, nil
}

func (s *stubBackend) VideoStatus(_ context.Context, _ string) (driven.GenerationResponse, error) {
	return driven.GenerationResponse{Status: "processing"}, nil
}

func (s *stubBackend) GenerateStoryboard(_ context.Context, _ *driven.ProviderCredentials, req driven.StoryboardRequest) (driven.StoryboardResponse, error) {
	resp := driven.StoryboardResponse{}
	for _, p := range req.Prompts {
		resp.Scenes = append(resp.Scenes, driven.StoryboardScene{Prompt: p, MediaURLs: []string{"https://media.test/sb.jpg"}})
	}
	return resp, nil
}

func (s *stubBackend) BaseURL() string { return s.base }

func (s *stubBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type mockExporter struct {
	mu    sync.Mutex
	files []driven.RepoFile
}

func (m *mockExporter) PutFile(_ context.Context, _ string, file driven.RepoFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, file)
	return nil
}

func (m *mockExporter) ValidateToken(_ context.Context, token string) (string, error) {
	if token != "ghp_good" {
		return "", errors.New("401 Bad credentials")
	}
	return "octocat", nil
}

type mockFetcher struct{}

func (mockFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	return []byte("jpeg"), nil
}

// --- Test helpers ---

type fixture struct {
	backend  *stubBackend
	exporter *mockExporter
	svc      httphandler.Services
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := &memStore{data: map[string]string{}}
	backend := &stubBackend{base: "http://backend.test"}
	exporter := &mockExporter{}

	vault := application.NewVault(store)
	prefs := application.NewPreferenceService(store, vault)
	backends := application.NewBackendProvider(backend, func(baseURL string) (driven.GenerationBackend, error) {
		return &stubBackend{base: baseURL}, nil
	})
	bus := application.NewStatusBus()

	svc := httphandler.Services{
		Vault:    vault,
		Prefs:    prefs,
		Orch:     application.NewOrchestrator(backends, prefs, application.NewVideoPoller(time.Millisecond, 3), bus),
		Probe:    application.NewHealthProbe(backends),
		Backends: backends,
		Export: application.NewExportService(store, exporter, mockFetcher{}, bus,
			application.WithExportLimiter(rate.NewLimiter(rate.Inf, 1))),
		Bus: bus,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := httphandler.NewHandler(runCtx, svc, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, h)

	return &fixture{
		backend:  backend,
		exporter: exporter,
		svc:      svc,
		handler:  httphandler.ApplyMiddleware(mux, slog.Default(), svc.Probe),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// --- Tests ---

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode[httphandler.HealthResponse](t, rec).Status)
}

func TestVault_AddListClearUndo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/vault/keys", httphandler.AddKeyRequest{Label: "OPENAI_API_KEY", Secret: "sk-first-1234"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "OPENAI_API_KEY", decode[httphandler.AddKeyResponse](t, rec).Label)

	rec = f.do(t, http.MethodPost, "/api/v1/vault/keys", httphandler.AddKeyRequest{Label: "OPENAI_API_KEY (7)", Secret: "sk-second-5678"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "OPENAI_API_KEY (2)", decode[httphandler.AddKeyResponse](t, rec).Label)

	rec = f.do(t, http.MethodGet, "/api/v1/vault", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	vault := decode[httphandler.VaultResponse](t, rec)
	require.Len(t, vault.Entries, 2)
	assert.Equal(t, "OPENAI_API_KEY", vault.Entries[0].Label)
	assert.Equal(t, "••••••••1234", vault.Entries[0].Masked)
	assert.Empty(t, vault.View, "view carries secrets and is opt-in")
	assert.True(t, vault.UndoAvailable)

	rec = f.do(t, http.MethodGet, "/api/v1/vault?reveal=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[httphandler.VaultResponse](t, rec).View, "sk-second-5678")

	rec = f.do(t, http.MethodDelete, "/api/v1/vault", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/vault", nil)
	assert.Empty(t, decode[httphandler.VaultResponse](t, rec).Entries)

	rec = f.do(t, http.MethodPost, "/api/v1/vault/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[httphandler.UndoResponse](t, rec).Restored)

	rec = f.do(t, http.MethodGet, "/api/v1/vault", nil)
	assert.Len(t, decode[httphandler.VaultResponse](t, rec).Entries, 2)
}

func TestVault_AddBlankIsNoOp(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/vault/keys", httphandler.AddKeyRequest{Label: "  ", Secret: "x"})

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestVault_ReplaceRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/vault/keys", httphandler.AddKeyRequest{Label: "GEMINI_API_KEY", Secret: "g-1"})

	rec := f.do(t, http.MethodPut, "/api/v1/vault", httphandler.ReplaceVaultRequest{Text: "openai: a\nopenai: b\n"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "openai")

	rec = f.do(t, http.MethodGet, "/api/v1/vault", nil)
	entries := decode[httphandler.VaultResponse](t, rec).Entries
	require.Len(t, entries, 1)
	assert.Equal(t, "GEMINI_API_KEY", entries[0].Label)
}

func TestVault_Replace(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/vault", httphandler.ReplaceVaultRequest{Text: "XAI_API_KEY: xai-1\nGROQ_API_KEY: groq-1\n"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/vault", nil)
	assert.Len(t, decode[httphandler.VaultResponse](t, rec).Entries, 2)
}

func TestVault_InvalidBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vault/keys", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[map[string]string](t, rec)["error"])
}

func TestAPI_RejectsCrossSiteWrites(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		origin      string
		body        string
		wantStatus  int
	}{
		{"foreign origin adds key", http.MethodPost, "/api/v1/vault/keys", "text/plain", "https://evil.example", `{"label":"GEMINI_API_KEY","secret":"attacker-key"}`, http.StatusForbidden},
		{"foreign origin generates", http.MethodPost, "/api/v1/generate", "text/plain", "https://evil.example", `{"prompt":"spend the keys"}`, http.StatusForbidden},
		{"foreign origin undoes", http.MethodPost, "/api/v1/vault/undo", "", "https://evil.example", "", http.StatusForbidden},
		{"foreign origin uploads", http.MethodPost, "/api/v1/scenes/upload", "text/csv", "https://evil.example", "prompt\nx\n", http.StatusForbidden},
		{"text body adds key", http.MethodPost, "/api/v1/vault/keys", "text/plain", "", `{"label":"GEMINI_API_KEY","secret":"attacker-key"}`, http.StatusUnsupportedMediaType},
		{"text body generates", http.MethodPost, "/api/v1/generate", "text/plain", "", `{"prompt":"spend the keys"}`, http.StatusUnsupportedMediaType},
		{"form body exports", http.MethodPost, "/api/v1/export", "application/x-www-form-urlencoded", "", "repo=evil/loot", http.StatusUnsupportedMediaType},
		{"form body stores token", http.MethodPut, "/api/v1/export/token", "application/x-www-form-urlencoded", "", "token=ghp_good", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Orch.AddScene("queued prompt")
			require.NoError(t, err)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			creds, err := f.svc.Vault.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, creds, "vault untouched")
			assert.False(t, f.svc.Orch.Generating())
			assert.Equal(t, 0, f.backend.callCount(), "no backend call")
			assert.Len(t, f.svc.Orch.Scenes(), 1, "scene list untouched")
		})
	}
}

func TestAPI_SameOriginWriteAccepted(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "http://localhost:8090/api/v1/vault/keys",
		strings.NewReader(`{"label":"GEMINI_API_KEY","secret":"g-1234"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Origin", "http://localhost:8090")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "GEMINI_API_KEY", decode[httphandler.AddKeyResponse](t, rec).Label)
}

func TestScenes_CRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/scenes", httphandler.AddSceneRequest{Prompt: "  a red barn "})
	require.Equal(t, http.StatusCreated, rec.Code)
	scene := decode[httphandler.SceneResponse](t, rec)
	assert.Equal(t, "a red barn", scene.Prompt)
	assert.Equal(t, "1", scene.Label)
	assert.NotEmpty(t, scene.ID)

	rec = f.do(t, http.MethodPost, "/api/v1/scenes", httphandler.AddSceneRequest{Prompt: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/scenes", nil)
	assert.Len(t, decode[[]httphandler.SceneResponse](t, rec), 1)

	rec = f.do(t, http.MethodDelete, "/api/v1/scenes/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/scenes/"+scene.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/scenes", nil)
	assert.Empty(t, decode[[]httphandler.SceneResponse](t, rec))
}

func TestScenes_UploadRawBody(t *testing.T) {
	f := newFixture(t)

	csv := "prompt,industry\n\"Sunset over hills\",\"nature\"\n\"A city skyline,with comma\",\"urban\"\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenes/upload?name=scenes.csv", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[httphandler.UploadResponse](t, rec).Count)

	scenes := f.svc.Orch.Scenes()
	require.Len(t, scenes, 2)
	assert.Equal(t, "A city skyline,with comma", scenes[1].Prompt)
	assert.Equal(t, "Loaded 2 prompts from scenes.csv", f.svc.Bus.Last().Message)
}

func TestScenes_UploadMultipart(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "sheet.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("prompt,aspect_ratio\nmountains,16:9\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenes/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[httphandler.UploadResponse](t, rec).Count)
	assert.Equal(t, "Loaded 1 prompt from sheet.csv", f.svc.Bus.Last().Message)
}

func TestScenes_SelectAppliesRatio(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Orch.UploadScenes("s.csv", strings.NewReader("prompt,aspect_ratio\ntall tower,9:16\n"))
	require.NoError(t, err)
	id := f.svc.Orch.Scenes()[0].ID

	rec := f.do(t, http.MethodPost, "/api/v1/scenes/"+string(id)+"/select", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/preferences", nil)
	assert.Equal(t, "portrait-tall", decode[httphandler.PreferencesResponse](t, rec).AspectRatio)
}

func TestPreferences_GetAndUpdate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/preferences", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prefs := decode[httphandler.PreferencesResponse](t, rec)
	assert.Equal(t, "square", prefs.AspectRatio)
	assert.Equal(t, "image", prefs.OutputType)
	assert.Equal(t, model.EnvProvider, prefs.Provider, "no stored keys leaves only the backend default")
	assert.Equal(t, 1, prefs.Variations)
	require.Len(t, prefs.Providers, 1)
	assert.NotEmpty(t, prefs.Models)

	kind, variations := "text", 9
	rec = f.do(t, http.MethodPut, "/api/v1/preferences", httphandler.PreferencesRequest{OutputType: &kind, Variations: &variations})
	require.Equal(t, http.StatusOK, rec.Code)
	prefs = decode[httphandler.PreferencesResponse](t, rec)
	assert.Equal(t, "text", prefs.OutputType)
	assert.Equal(t, 4, prefs.Variations, "variations are clamped")

	bad := "panorama"
	rec = f.do(t, http.MethodPut, "/api/v1/preferences", httphandler.PreferencesRequest{AspectRatio: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_NothingToGenerate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/generate", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.backend.callCount())
}

func TestGenerate_RunsInBackground(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/generate", httphandler.GenerateRequest{Prompt: "a lighthouse"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool { return !f.svc.Orch.Generating() }, 2*time.Second, 5*time.Millisecond)

	rec = f.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[httphandler.SessionResponse](t, rec)
	require.Len(t, session.Results, 1)
	assert.Equal(t, "https://media.test/a-lighthouse.jpg", session.Results[0].URL)
	assert.Equal(t, "image", session.Results[0].Kind)
	require.NotNil(t, session.Status)
	assert.Equal(t, "Generation complete!", session.Status.Message)
	assert.JSONEq(t, `{"status":"completed"}`, string(session.LastRaw))

	rec = f.do(t, http.MethodDelete, "/api/v1/results", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.svc.Orch.Results())
}

func TestGenerate_RejectsWhileInFlight(t *testing.T) {
	f := newFixture(t)
	f.backend.block = make(chan struct{})

	rec := f.do(t, http.MethodPost, "/api/v1/generate", httphandler.GenerateRequest{Prompt: "first"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return f.backend.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	rec = f.do(t, http.MethodPost, "/api/v1/generate", httphandler.GenerateRequest{Prompt: "second"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(f.backend.block)
	require.Eventually(t, func() bool { return !f.svc.Orch.Generating() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.backend.callCount(), "the rejected request reached no backend")
}

func TestGenerate_BackendFailureIsReportedOnStatus(t *testing.T) {
	f := newFixture(t)
	f.backend.imageErr = &driven.RequestError{StatusCode: http.StatusServiceUnavailable}

	rec := f.do(t, http.MethodPost, "/api/v1/generate", httphandler.GenerateRequest{Prompt: "p"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return !f.svc.Orch.Generating() }, 2*time.Second, 5*time.Millisecond)

	last := f.svc.Bus.Last()
	assert.Equal(t, model.StatusError, last.Level)
	assert.Equal(t, "X.ai API temporarily unavailable", last.Message)
}

func TestBackend_StatusAndRebase(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/backend", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[httphandler.BackendResponse](t, rec)
	assert.Equal(t, "http://backend.test", status.BaseURL)
	assert.Equal(t, "starting", status.State)

	rec = f.do(t, http.MethodPut, "/api/v1/backend", httphandler.RebaseRequest{BaseURL: "http://other.test/"})
	require.Equal(t, http.StatusOK, rec.Code)
	status = decode[httphandler.BackendResponse](t, rec)
	assert.Equal(t, "http://other.test", status.BaseURL)
	assert.True(t, status.Online)
	assert.Equal(t, "xai", status.Provider)

	rec = f.do(t, http.MethodPut, "/api/v1/backend", httphandler.RebaseRequest{BaseURL: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/export", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, application.ErrNoExportToken.Error(), decode[map[string]string](t, rec)["error"])

	rec = f.do(t, http.MethodPut, "/api/v1/export/token", httphandler.TokenRequest{Token: "ghp_bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/export/token", httphandler.TokenRequest{Token: "ghp_good"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "octocat", decode[httphandler.TokenResponse](t, rec).Login)

	rec = f.do(t, http.MethodPost, "/api/v1/export", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "nothing generated yet")

	require.NoError(t, f.svc.Orch.Generate(context.Background(), "a boat"))

	rec = f.do(t, http.MethodPost, "/api/v1/export", httphandler.ExportRequest{Repo: "acme/art", Folder: "/drops/"})
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[httphandler.ExportResponse](t, rec)
	assert.Equal(t, 1, report.Saved)
	assert.Equal(t, "acme/art", report.Repo)
	assert.Equal(t, "drops", report.Folder)
	assert.Empty(t, report.Errors)
	require.Len(t, f.exporter.files, 1)
	assert.True(t, strings.HasPrefix(f.exporter.files[0].Path, "drops/scene-"))

	rec = f.do(t, http.MethodDelete, "/api/v1/export/token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStatusStream(t *testing.T) {
	f := newFixture(t)
	f.svc.Bus.Publish(model.StatusInfo, "ready", "")

	server := httptest.NewServer(f.handler)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first httphandler.StatusResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "ready", first.Message)

	f.svc.Bus.Publish(model.StatusSuccess, "Generation complete!", "")

	var second httphandler.StatusResponse
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "success", second.Level)
	assert.Equal(t, "Generation complete!", second.Message)
}

func TestStatusStream_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(f.handler)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/status/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"https://evil.example"}})

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
