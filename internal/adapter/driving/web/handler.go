// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ericfisherdev/artsengine/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/artsengine/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/artsengine/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/domain/model"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

const (
	pageTitle      = "Arts Engine"
	maxFormBytes   = 10 << 20
	genericFailure = "Something went wrong, see the server log"
)

// Services groups the application services the GUI drives.
type Services struct {
	Vault    *application.Vault
	Prefs    *application.PreferenceService
	Orch     *application.Orchestrator
	Probe    *application.HealthProbe
	Backends *application.BackendProvider
	Export   *application.ExportService
	Bus      *application.StatusBus
}

// Handler is the web GUI driving adapter that serves HTML via templ components.
// Every form posts back and is answered with a redirect to the dashboard;
// outcomes are reported on the status bus.
type Handler struct {
	svc    Services
	runCtx context.Context
	logger *slog.Logger
}

// NewHandler creates a Handler. runCtx bounds background generation runs
// started from the GUI.
func NewHandler(runCtx context.Context, svc Services, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, runCtx: runCtx, logger: logger}
}

// Dashboard renders the main page with the full HTML layout.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	token := csrfToken(w, r)

	page, err := h.buildPage(r.Context(), token)
	if err != nil {
		h.logger.Error("failed to build dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	component := pages.Dashboard(page)
	layout := templates.Layout(page.Title, page.Generating, component)
	if err := layout.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
	}
}

func (h *Handler) buildPage(ctx context.Context, token string) (vm.PageViewModel, error) {
	creds, err := h.svc.Vault.Load(ctx)
	if err != nil {
		return vm.PageViewModel{}, err
	}
	options, err := h.svc.Vault.ProviderOptions(ctx)
	if err != nil {
		return vm.PageViewModel{}, err
	}
	last, err := h.svc.Vault.LastProvider(ctx)
	if err != nil {
		return vm.PageViewModel{}, err
	}
	view, err := h.svc.Vault.View(ctx)
	if err != nil && !errors.Is(err, application.ErrDependencyUnavailable) {
		return vm.PageViewModel{}, err
	}

	prefs, err := h.svc.Prefs.Load(ctx)
	if err != nil {
		return vm.PageViewModel{}, err
	}
	probe := h.svc.Probe.Status()
	choices, err := h.svc.Prefs.ProviderChoices(ctx, probe.Provider)
	if err != nil {
		return vm.PageViewModel{}, err
	}
	hasToken, err := h.svc.Export.HasToken(ctx)
	if err != nil {
		return vm.PageViewModel{}, err
	}

	session := h.svc.Orch.Snapshot()

	page := vm.PageViewModel{
		Title:      pageTitle,
		CSRFToken:  token,
		Generating: session.Generating,
		Backend:    toBackendViewModel(probe, h.svc.Backends.BaseURL()),
		Status:     toStatusViewModel(session.Status),
		Vault:      toVaultViewModel(creds, options, last, view, h.svc.Vault.UndoAvailable(ctx)),
		Prefs:      toPrefsViewModel(prefs, choices),
		Scenes:     make([]vm.SceneViewModel, 0, len(session.Scenes)),
		Results:    make([]vm.ResultViewModel, 0, len(session.Results)),
		Export: vm.ExportViewModel{
			HasToken: hasToken,
			Repo:     h.svc.Export.DefaultRepo(),
			Folder:   h.svc.Export.DefaultFolder(),
			CanSave:  hasMedia(session.Results),
		},
		RawJSON: indentRaw(session.LastRaw),
	}
	for _, s := range session.Scenes {
		page.Scenes = append(page.Scenes, toSceneViewModel(s, prefs.AspectRatio))
	}
	for _, res := range session.Results {
		page.Results = append(page.Results, toResultViewModel(res))
	}
	return page, nil
}

func hasMedia(results []model.Result) bool {
	for _, r := range results {
		if r.URL != "" {
			return true
		}
	}
	return false
}

// action is a form handler. A returned error is reported on the status bus.
type action func(r *http.Request) error

// post wraps a form handler with the body limit, CSRF check and the
// redirect back to the dashboard.
func (h *Handler) post(name string, fn action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

		if !validateCSRF(r) {
			h.logger.Warn("rejected form without valid csrf token", "action", name, "path", r.URL.Path)
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}

		if err := fn(r); err != nil {
			h.report(name, err)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// userErrors are reported with their own text; wrapping context is for logs.
var userErrors = []error{
	application.ErrNothingToGenerate,
	application.ErrNothingToExport,
	application.ErrNoExportToken,
	application.ErrSceneNotFound,
	application.ErrGenerationInFlight,
	application.ErrDependencyUnavailable,
}

// report publishes err as a user-facing status and logs unexpected errors.
func (h *Handler) report(name string, err error) {
	h.svc.Bus.Publish(model.StatusError, h.userMessage(name, err), "")
}

func (h *Handler) userMessage(name string, err error) string {
	var (
		valErr *application.ValidationError
		reqErr *driven.RequestError
	)
	if errors.As(err, &valErr) {
		h.logger.Debug("form action rejected", "action", name, "error", err)
		return capitalize(valErr.Error())
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			h.logger.Debug("form action rejected", "action", name, "error", err)
			return capitalize(target.Error())
		}
	}
	if errors.As(err, &reqErr) {
		h.logger.Warn("form action failed upstream", "action", name, "error", err)
		return "Request failed: " + reqErr.Error()
	}
	h.logger.Error("form action failed", "action", name, "error", err)
	return genericFailure
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// vaultCommand is one of the actions the vault panel can submit.
type vaultCommand string

const (
	vaultAdd     vaultCommand = "add"
	vaultChoose  vaultCommand = "choose"
	vaultReplace vaultCommand = "replace"
	vaultClear   vaultCommand = "clear"
	vaultUndo    vaultCommand = "undo"
)

func (h *Handler) vaultCommands() map[vaultCommand]action {
	return map[vaultCommand]action{
		vaultAdd:     h.addKey,
		vaultChoose:  h.chooseProvider,
		vaultReplace: h.replaceVault,
		vaultClear:   h.clearVault,
		vaultUndo:    h.undoVault,
	}
}

// Vault dispatches the vault panel's command field.
func (h *Handler) Vault(r *http.Request) error {
	cmd := vaultCommand(r.FormValue("command"))
	fn, ok := h.vaultCommands()[cmd]
	if !ok {
		return &application.ValidationError{Message: "unknown vault command " + strconv.Quote(string(cmd))}
	}
	return fn(r)
}

func formRow(r *http.Request) model.FormRow {
	return model.FormRow{
		Provider:   r.FormValue("provider"),
		OtherLabel: r.FormValue("other_label"),
		Secret:     r.FormValue("secret"),
	}
}

func (h *Handler) addKey(r *http.Request) error {
	ctx := r.Context()
	row := formRow(r)

	if err := h.svc.Vault.SetLastProvider(ctx, row.Provider); err != nil {
		return err
	}
	// Incomplete rows are ignored without a status, like a blank Vault.Add.
	if row.State() != model.FormRowSaveable {
		return nil
	}

	label, err := h.svc.Vault.Add(ctx, row.Label(), row.Secret)
	if err != nil {
		return err
	}
	h.svc.Bus.Publish(model.StatusSuccess, "Saved "+label, "")
	return nil
}

func (h *Handler) chooseProvider(r *http.Request) error {
	return h.svc.Vault.SetLastProvider(r.Context(), r.FormValue("provider"))
}

func (h *Handler) replaceVault(r *http.Request) error {
	if err := h.svc.Vault.BulkReplace(r.Context(), r.FormValue("text")); err != nil {
		return err
	}
	h.svc.Bus.Publish(model.StatusSuccess, "Keys saved", "")
	return nil
}

func (h *Handler) clearVault(r *http.Request) error {
	if err := h.svc.Vault.ClearAll(r.Context()); err != nil {
		return err
	}
	h.svc.Bus.Publish(model.StatusInfo, "All keys removed", "Undo is available for five minutes")
	return nil
}

func (h *Handler) undoVault(r *http.Request) error {
	restored, err := h.svc.Vault.Undo(r.Context())
	if err != nil {
		return err
	}
	if !restored {
		return &application.ValidationError{Message: "Nothing to undo"}
	}
	h.svc.Bus.Publish(model.StatusSuccess, "Keys restored", "")
	return nil
}

// AddScene appends the prompt box's text to the storyboard.
func (h *Handler) AddScene(r *http.Request) error {
	_, err := h.svc.Orch.AddScene(r.FormValue("prompt"))
	return err
}

// UploadScenes replaces the storyboard from an uploaded CSV sheet.
func (h *Handler) UploadScenes(r *http.Request) error {
	file, header, err := r.FormFile("file")
	if err != nil {
		return &application.ValidationError{Message: "Choose a CSV file to load"}
	}
	defer file.Close()

	_, err = h.svc.Orch.UploadScenes(header.Filename, file)
	return err
}

// ClearScenes empties the storyboard.
func (h *Handler) ClearScenes(_ *http.Request) error {
	h.svc.Orch.ClearScenes()
	return nil
}

// RemoveScene deletes one storyboard entry.
func (h *Handler) RemoveScene(r *http.Request) error {
	return h.svc.Orch.RemoveScene(model.SceneID(r.PathValue("id")))
}

// SelectScene applies a scene's aspect ratio to the preferences.
func (h *Handler) SelectScene(r *http.Request) error {
	_, err := h.svc.Orch.SelectScene(r.Context(), model.SceneID(r.PathValue("id")))
	return err
}

// Preferences applies the fields present in the submitted form.
func (h *Handler) Preferences(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return &application.ValidationError{Message: "invalid form"}
	}

	var patch application.PreferencesPatch
	field := func(name string) *string {
		if _, ok := r.PostForm[name]; !ok {
			return nil
		}
		v := r.PostForm.Get(name)
		return &v
	}
	patch.AspectRatio = field("aspect_ratio")
	patch.OutputKind = field("output_type")
	patch.Provider = field("provider")
	patch.Model = field("model")
	if raw := field("variations"); raw != nil {
		n, err := strconv.Atoi(*raw)
		if err != nil {
			return &application.ValidationError{Message: "variations must be a number"}
		}
		patch.Variations = &n
	}

	// A provider switch resubmits the old provider's model; drop it so the
	// new provider keeps its own remembered model.
	if patch.Provider != nil && patch.Model != nil {
		current, err := h.svc.Prefs.Load(r.Context())
		if err != nil {
			return err
		}
		if *patch.Provider != current.Provider {
			patch.Model = nil
		}
	}

	_, err := h.svc.Prefs.Update(r.Context(), patch)
	return err
}

// Generate starts a run in the background; the page follows it over the
// status stream.
func (h *Handler) Generate(r *http.Request) error {
	return h.svc.Orch.StartGenerate(h.runCtx, r.FormValue("prompt"))
}

// ClearResults empties the gallery.
func (h *Handler) ClearResults(_ *http.Request) error {
	h.svc.Orch.ClearResults()
	return nil
}

// Backend points the app at another generation backend and probes it.
func (h *Handler) Backend(r *http.Request) error {
	if err := h.svc.Backends.Rebase(r.FormValue("base_url")); err != nil {
		return err
	}
	status := h.svc.Probe.Check(r.Context())
	if status.Online {
		h.svc.Bus.Publish(model.StatusSuccess, "Connected to "+h.svc.Backends.BaseURL(), "")
		return nil
	}
	h.svc.Bus.Publish(model.StatusError, "Backend not reachable at "+h.svc.Backends.BaseURL(), status.Error)
	return nil
}

// Export commits the gallery's media to GitHub.
func (h *Handler) Export(r *http.Request) error {
	_, err := h.svc.Export.Export(r.Context(), h.svc.Orch.Results(), r.FormValue("repo"), r.FormValue("folder"))
	return err
}

// SetExportToken validates and stores a GitHub token.
func (h *Handler) SetExportToken(r *http.Request) error {
	login, err := h.svc.Export.SetToken(r.Context(), r.FormValue("token"))
	if err != nil {
		return err
	}
	h.svc.Bus.Publish(model.StatusSuccess, "GitHub token saved for "+login, "")
	return nil
}

// ClearExportToken forgets the stored GitHub token.
func (h *Handler) ClearExportToken(r *http.Request) error {
	return h.svc.Export.ClearToken(r.Context())
}

// DismissStatus clears the status bar.
func (h *Handler) DismissStatus(_ *http.Request) error {
	h.svc.Bus.Dismiss()
	return nil
}
