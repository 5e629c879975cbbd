package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/domain/model"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeAppError maps an application error to a status code. Only unexpected
// errors are logged; their text is not echoed to the client.
func writeAppError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var reqErr *driven.RequestError
	switch {
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, application.ErrNothingToGenerate),
		errors.Is(err, application.ErrNothingToExport),
		errors.Is(err, application.ErrNoExportToken):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrSceneNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrGenerationInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadGateway, reqErr.Error())
	case errors.Is(err, application.ErrDependencyUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// CredentialResponse is one vault entry with its secret masked.
type CredentialResponse struct {
	Label  string `json:"label"`
	Masked string `json:"masked"`
}

// ProviderOptionResponse is one entry of the vault provider dropdown.
type ProviderOptionResponse struct {
	Value  string `json:"value"`
	Label  string `json:"label"`
	HasKey bool   `json:"has_key"`
}

// VaultResponse describes the vault. View carries secrets and is only
// filled when the caller asks for it.
type VaultResponse struct {
	Entries       []CredentialResponse     `json:"entries"`
	View          string                   `json:"view,omitempty"`
	UndoAvailable bool                     `json:"undo_available"`
	LastProvider  string                   `json:"last_provider"`
	Providers     []ProviderOptionResponse `json:"providers"`
}

// ReplaceVaultRequest is the JSON body for PUT /api/v1/vault.
type ReplaceVaultRequest struct {
	Text string `json:"text"`
}

// AddKeyRequest is the JSON body for POST /api/v1/vault/keys.
type AddKeyRequest struct {
	Label  string `json:"label"`
	Secret string `json:"secret"`
}

// AddKeyResponse reports the label the secret was stored under.
type AddKeyResponse struct {
	Label string `json:"label"`
}

// UndoResponse reports whether a snapshot was restored.
type UndoResponse struct {
	Restored bool `json:"restored"`
}

// SceneResponse is the JSON representation of a scene.
type SceneResponse struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Prompt      string `json:"prompt"`
	Industry    string `json:"industry,omitempty"`
	Count       string `json:"count,omitempty"`
	NAICS       string `json:"naics,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Style       string `json:"style,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Text        string `json:"text,omitempty"`
}

// AddSceneRequest is the JSON body for POST /api/v1/scenes.
type AddSceneRequest struct {
	Prompt string `json:"prompt"`
}

// UploadResponse reports how many scenes a CSV produced.
type UploadResponse struct {
	Count int `json:"count"`
}

// ResultResponse is the JSON representation of a gallery item.
type ResultResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	URL         string `json:"url,omitempty"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Text        string `json:"text,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// StatusResponse is the JSON representation of a status message. It is
// also the frame format of the status websocket.
type StatusResponse struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	At      string `json:"at"`
}

// SessionResponse is the JSON representation of the orchestrator session.
type SessionResponse struct {
	Scenes     []SceneResponse  `json:"scenes"`
	Results    []ResultResponse `json:"results"`
	Generating bool             `json:"generating"`
	Status     *StatusResponse  `json:"status,omitempty"`
	LastRaw    json.RawMessage  `json:"last_raw,omitempty"`
}

// ChoiceResponse is one selectable option.
type ChoiceResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// PreferencesResponse is the JSON representation of the saved preferences
// together with the options valid for them.
type PreferencesResponse struct {
	AspectRatio string           `json:"aspect_ratio"`
	OutputType  string           `json:"output_type"`
	Provider    string           `json:"provider"`
	Model       string           `json:"model"`
	Variations  int              `json:"variations"`
	Providers   []ChoiceResponse `json:"providers"`
	Models      []ChoiceResponse `json:"models"`
}

// PreferencesRequest is the JSON body for PUT /api/v1/preferences. Absent
// fields are left unchanged.
type PreferencesRequest struct {
	AspectRatio *string `json:"aspect_ratio"`
	OutputType  *string `json:"output_type"`
	Provider    *string `json:"provider"`
	Model       *string `json:"model"`
	Variations  *int    `json:"variations"`
}

// GenerateRequest is the JSON body for POST /api/v1/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// BackendResponse is the latest health probe observation.
type BackendResponse struct {
	BaseURL   string `json:"base_url"`
	State     string `json:"state"`
	Online    bool   `json:"online"`
	Provider  string `json:"provider,omitempty"`
	CheckedAt string `json:"checked_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RebaseRequest is the JSON body for PUT /api/v1/backend.
type RebaseRequest struct {
	BaseURL string `json:"base_url"`
}

// ExportRequest is the JSON body for POST /api/v1/export. Empty fields use
// the service defaults.
type ExportRequest struct {
	Repo   string `json:"repo"`
	Folder string `json:"folder"`
}

// ExportResponse summarizes an export run.
type ExportResponse struct {
	Repo    string   `json:"repo"`
	Folder  string   `json:"folder"`
	Saved   int      `json:"saved"`
	Files   []string `json:"files"`
	Errors  []string `json:"errors"`
	Summary string   `json:"summary"`
}

// TokenRequest is the JSON body for PUT /api/v1/export/token.
type TokenRequest struct {
	Token string `json:"token"`
}

// TokenResponse reports the GitHub login the token belongs to.
type TokenResponse struct {
	Login string `json:"login"`
}

func toSceneResponse(s model.Scene) SceneResponse {
	return SceneResponse{
		ID:          string(s.ID),
		Label:       s.Label,
		Prompt:      s.Prompt,
		Industry:    s.Industry,
		Count:       s.Count,
		NAICS:       s.NAICS,
		AspectRatio: s.AspectRatio,
		Style:       s.Style,
		ImageURL:    s.ImageURL,
		Text:        s.Text,
	}
}

func toSceneResponses(scenes []model.Scene) []SceneResponse {
	resp := make([]SceneResponse, 0, len(scenes))
	for _, s := range scenes {
		resp = append(resp, toSceneResponse(s))
	}
	return resp
}

func toResultResponse(r model.Result) ResultResponse {
	return ResultResponse{
		ID:          r.ID,
		Kind:        string(r.Kind),
		URL:         r.URL,
		Prompt:      r.Prompt,
		AspectRatio: string(r.AspectRatio),
		Text:        r.Text,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toStatusResponse returns nil for the zero status.
func toStatusResponse(st model.Status) *StatusResponse {
	if st.Message == "" {
		return nil
	}
	return &StatusResponse{
		Level:   string(st.Level),
		Message: st.Message,
		Hint:    st.Hint,
		At:      st.At.UTC().Format(time.RFC3339),
	}
}

func toSessionResponse(s application.Session) SessionResponse {
	results := make([]ResultResponse, 0, len(s.Results))
	for _, r := range s.Results {
		results = append(results, toResultResponse(r))
	}
	return SessionResponse{
		Scenes:     toSceneResponses(s.Scenes),
		Results:    results,
		Generating: s.Generating,
		Status:     toStatusResponse(s.Status),
		LastRaw:    s.LastRaw,
	}
}

func toPreferencesResponse(p model.Preferences, providers []application.ProviderChoice) PreferencesResponse {
	choices := make([]ChoiceResponse, 0, len(providers))
	for _, c := range providers {
		choices = append(choices, ChoiceResponse{Value: c.ID, Label: c.Label})
	}
	models := model.ModelsFor(p.Provider)
	modelChoices := make([]ChoiceResponse, 0, len(models))
	for _, m := range models {
		modelChoices = append(modelChoices, ChoiceResponse{Value: m.Value, Label: m.Label})
	}

	return PreferencesResponse{
		AspectRatio: string(p.AspectRatio),
		OutputType:  string(p.OutputKind),
		Provider:    p.Provider,
		Model:       p.Model,
		Variations:  p.Variations,
		Providers:   choices,
		Models:      modelChoices,
	}
}

func toBackendResponse(s application.BackendStatus, baseURL string) BackendResponse {
	resp := BackendResponse{
		BaseURL:  baseURL,
		State:    s.State.String(),
		Online:   s.Online,
		Provider: s.Provider,
		Error:    s.Error,
	}
	if !s.CheckedAt.IsZero() {
		resp.CheckedAt = s.CheckedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toExportResponse(r application.ExportReport) ExportResponse {
	files := r.Files
	if files == nil {
		files = []string{}
	}
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return ExportResponse{
		Repo:    r.Repo,
		Folder:  r.Folder,
		Saved:   r.Saved,
		Files:   files,
		Errors:  errs,
		Summary: r.Summary(),
	}
}
