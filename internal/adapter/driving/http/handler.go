package httphandler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/domain/model"
)

const maxUploadBytes = 10 << 20

// Services groups the application services the API drives.
type Services struct {
	Vault    *application.Vault
	Prefs    *application.PreferenceService
	Orch     *application.Orchestrator
	Probe    *application.HealthProbe
	Backends *application.BackendProvider
	Export   *application.ExportService
	Bus      *application.StatusBus
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	svc      Services
	runCtx   context.Context
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a Handler. runCtx outlives individual requests and
// bounds background generation runs and status streams.
func NewHandler(runCtx context.Context, svc Services, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		runCtx: runCtx,
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
		logger: logger,
	}
}

// RegisterAPIRoutes registers all JSON API routes on mux. Routes that change
// state only accept same-origin requests, and those with a JSON body require
// an application/json content type so browsers must preflight them.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/vault", h.GetVault)
	mux.HandleFunc("PUT /api/v1/vault", jsonOnly(h.ReplaceVault))
	mux.HandleFunc("DELETE /api/v1/vault", sameOriginOnly(h.ClearVault))
	mux.HandleFunc("POST /api/v1/vault/keys", jsonOnly(h.AddKey))
	mux.HandleFunc("POST /api/v1/vault/undo", sameOriginOnly(h.UndoVault))

	mux.HandleFunc("GET /api/v1/scenes", h.ListScenes)
	mux.HandleFunc("POST /api/v1/scenes", jsonOnly(h.AddScene))
	mux.HandleFunc("DELETE /api/v1/scenes", sameOriginOnly(h.ClearScenes))
	mux.HandleFunc("POST /api/v1/scenes/upload", sameOriginOnly(h.UploadScenes))
	mux.HandleFunc("DELETE /api/v1/scenes/{id}", sameOriginOnly(h.RemoveScene))
	mux.HandleFunc("POST /api/v1/scenes/{id}/select", sameOriginOnly(h.SelectScene))

	mux.HandleFunc("GET /api/v1/preferences", h.GetPreferences)
	mux.HandleFunc("PUT /api/v1/preferences", jsonOnly(h.UpdatePreferences))

	mux.HandleFunc("POST /api/v1/generate", jsonOnly(h.Generate))
	mux.HandleFunc("GET /api/v1/session", h.Session)
	mux.HandleFunc("DELETE /api/v1/results", sameOriginOnly(h.ClearResults))

	mux.HandleFunc("GET /api/v1/backend", h.Backend)
	mux.HandleFunc("PUT /api/v1/backend", jsonOnly(h.RebaseBackend))

	mux.HandleFunc("POST /api/v1/export", jsonOnly(h.Export))
	mux.HandleFunc("PUT /api/v1/export/token", jsonOnly(h.SetExportToken))
	mux.HandleFunc("DELETE /api/v1/export/token", sameOriginOnly(h.ClearExportToken))

	mux.HandleFunc("GET /api/v1/status/ws", h.StatusStream)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetVault returns the stored labels with masked secrets. ?reveal=true adds
// the serialized view, which contains the secrets in clear.
func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	creds, err := h.svc.Vault.Load(ctx)
	if err != nil {
		writeAppError(w, h.logger, "load vault", err)
		return
	}
	options, err := h.svc.Vault.ProviderOptions(ctx)
	if err != nil {
		writeAppError(w, h.logger, "provider options", err)
		return
	}
	last, err := h.svc.Vault.LastProvider(ctx)
	if err != nil {
		writeAppError(w, h.logger, "last provider", err)
		return
	}

	resp := VaultResponse{
		Entries:       make([]CredentialResponse, 0, len(creds)),
		UndoAvailable: h.svc.Vault.UndoAvailable(ctx),
		LastProvider:  last,
		Providers:     make([]ProviderOptionResponse, 0, len(options)),
	}
	for _, label := range creds.Labels() {
		resp.Entries = append(resp.Entries, CredentialResponse{Label: label, Masked: model.MaskSecret(creds[label])})
	}
	for _, o := range options {
		resp.Providers = append(resp.Providers, ProviderOptionResponse{Value: o.Value, Label: o.Label, HasKey: o.HasKey})
	}

	if reveal, _ := strconv.ParseBool(r.URL.Query().Get("reveal")); reveal {
		view, err := h.svc.Vault.View(ctx)
		if err != nil {
			writeAppError(w, h.logger, "vault view", err)
			return
		}
		resp.View = view
	}

	writeJSON(w, http.StatusOK, resp)
}

// ReplaceVault replaces the whole vault from its edited serialized form.
func (h *Handler) ReplaceVault(w http.ResponseWriter, r *http.Request) {
	var req ReplaceVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Vault.BulkReplace(r.Context(), req.Text); err != nil {
		writeAppError(w, h.logger, "replace vault", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearVault removes every stored key. The previous contents stay
// restorable through undo.
func (h *Handler) ClearVault(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Vault.ClearAll(r.Context()); err != nil {
		writeAppError(w, h.logger, "clear vault", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddKey stores one secret. Blank input is ignored and answered with 204.
func (h *Handler) AddKey(w http.ResponseWriter, r *http.Request) {
	var req AddKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	label, err := h.svc.Vault.Add(r.Context(), req.Label, req.Secret)
	if err != nil {
		writeAppError(w, h.logger, "add key", err)
		return
	}
	if label == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, AddKeyResponse{Label: label})
}

// UndoVault restores the snapshot taken before the last destructive change.
func (h *Handler) UndoVault(w http.ResponseWriter, r *http.Request) {
	restored, err := h.svc.Vault.Undo(r.Context())
	if err != nil {
		writeAppError(w, h.logger, "undo vault", err)
		return
	}
	writeJSON(w, http.StatusOK, UndoResponse{Restored: restored})
}

// ListScenes returns the current scene list.
func (h *Handler) ListScenes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSceneResponses(h.svc.Orch.Scenes()))
}

// AddScene appends a scene built from a prompt.
func (h *Handler) AddScene(w http.ResponseWriter, r *http.Request) {
	var req AddSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scene, err := h.svc.Orch.AddScene(req.Prompt)
	if err != nil {
		writeAppError(w, h.logger, "add scene", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSceneResponse(scene))
}

// ClearScenes empties the scene list.
func (h *Handler) ClearScenes(w http.ResponseWriter, _ *http.Request) {
	h.svc.Orch.ClearScenes()
	w.WriteHeader(http.StatusNoContent)
}

// UploadScenes replaces the scene list from a CSV sheet sent either as the
// "file" field of a multipart form or as the raw request body.
func (h *Handler) UploadScenes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var (
		name = r.URL.Query().Get("name")
		body io.Reader
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()
		body = file
		if name == "" {
			name = header.Filename
		}
	} else {
		body = r.Body
	}
	if name == "" {
		name = "upload.csv"
	}

	count, err := h.svc.Orch.UploadScenes(name, body)
	if err != nil {
		writeAppError(w, h.logger, "upload scenes", err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{Count: count})
}

// RemoveScene deletes one scene by id.
func (h *Handler) RemoveScene(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Orch.RemoveScene(model.SceneID(r.PathValue("id"))); err != nil {
		writeAppError(w, h.logger, "remove scene", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectScene returns a scene and applies its aspect ratio to preferences.
func (h *Handler) SelectScene(w http.ResponseWriter, r *http.Request) {
	scene, err := h.svc.Orch.SelectScene(r.Context(), model.SceneID(r.PathValue("id")))
	if err != nil {
		writeAppError(w, h.logger, "select scene", err)
		return
	}
	writeJSON(w, http.StatusOK, toSceneResponse(scene))
}

// GetPreferences returns the saved preferences and their valid options.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	h.writePreferences(w, r, nil)
}

// UpdatePreferences applies a partial update.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prefs, err := h.svc.Prefs.Update(r.Context(), application.PreferencesPatch{
		AspectRatio: req.AspectRatio,
		OutputKind:  req.OutputType,
		Provider:    req.Provider,
		Model:       req.Model,
		Variations:  req.Variations,
	})
	if err != nil {
		writeAppError(w, h.logger, "update preferences", err)
		return
	}
	h.writePreferences(w, r, &prefs)
}

func (h *Handler) writePreferences(w http.ResponseWriter, r *http.Request, prefs *model.Preferences) {
	ctx := r.Context()
	if prefs == nil {
		loaded, err := h.svc.Prefs.Load(ctx)
		if err != nil {
			writeAppError(w, h.logger, "load preferences", err)
			return
		}
		prefs = &loaded
	}

	choices, err := h.svc.Prefs.ProviderChoices(ctx, h.svc.Probe.Status().Provider)
	if err != nil {
		writeAppError(w, h.logger, "provider choices", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesResponse(*prefs, choices))
}

// Generate starts a generation run in the background and answers 202.
// Progress is reported on the status stream.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	// The run must outlive this request.
	if err := h.svc.Orch.StartGenerate(h.runCtx, req.Prompt); err != nil {
		writeAppError(w, h.logger, "generate", err)
		return
	}
	writeJSON(w, http.StatusAccepted, toSessionResponse(h.svc.Orch.Snapshot()))
}

// Session returns scenes, results, status and the last raw response.
func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.svc.Orch.Snapshot()))
}

// ClearResults empties the gallery.
func (h *Handler) ClearResults(w http.ResponseWriter, _ *http.Request) {
	h.svc.Orch.ClearResults()
	w.WriteHeader(http.StatusNoContent)
}

// Backend returns the latest health probe observation.
func (h *Handler) Backend(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toBackendResponse(h.svc.Probe.Status(), h.svc.Backends.BaseURL()))
}

// RebaseBackend points the app at another backend and probes it at once.
func (h *Handler) RebaseBackend(w http.ResponseWriter, r *http.Request) {
	var req RebaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Backends.Rebase(req.BaseURL); err != nil {
		writeAppError(w, h.logger, "rebase backend", err)
		return
	}
	status := h.svc.Probe.Check(r.Context())
	writeJSON(w, http.StatusOK, toBackendResponse(status, h.svc.Backends.BaseURL()))
}

// Export commits the gallery's media to GitHub.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	report, err := h.svc.Export.Export(r.Context(), h.svc.Orch.Results(), req.Repo, req.Folder)
	if err != nil {
		writeAppError(w, h.logger, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, toExportResponse(report))
}

// SetExportToken validates and stores a GitHub token.
func (h *Handler) SetExportToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	login, err := h.svc.Export.SetToken(r.Context(), req.Token)
	if err != nil {
		writeAppError(w, h.logger, "set export token", err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Login: login})
}

// ClearExportToken forgets the stored GitHub token.
func (h *Handler) ClearExportToken(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Export.ClearToken(r.Context()); err != nil {
		writeAppError(w, h.logger, "clear export token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sameOrigin accepts requests from non-browser clients and from pages
// served by this host.
func sameOrigin(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, host, ok := strings.Cut(origin, "://")
	return ok && strings.EqualFold(host, r.Host)
}

// sameOriginOnly rejects cross-origin browser requests with 403.
func sameOriginOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sameOrigin(r) {
			writeError(w, http.StatusForbidden, "cross-origin request rejected")
			return
		}
		next(w, r)
	}
}

// jsonOnly is sameOriginOnly plus a JSON content type whenever the request
// carries a body. text/plain and form bodies skip the CORS preflight, so
// they are refused with 415.
func jsonOnly(next http.HandlerFunc) http.HandlerFunc {
	return sameOriginOnly(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 {
			mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if mediaType != "application/json" {
				writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
				return
			}
		}
		next(w, r)
	})
}
