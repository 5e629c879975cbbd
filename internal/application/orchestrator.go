// Package application contains use-case orchestration services.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/artsengine/internal/domain/model"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

const (
	textMaxTokens       = 1024
	imageResponseFormat = "url"
	videoPromptPreview  = 60
	upstreamStatusURL   = "https://status.x.ai/"
)

// Session is a point-in-time view of the orchestrator state.
type Session struct {
	Scenes     []model.Scene
	Results    []model.Result
	LastRaw    json.RawMessage
	Generating bool
	Status     model.Status
}

// Orchestrator owns the scene list and gallery and runs generation batches
// against the current backend. Only one batch runs at a time.
type Orchestrator struct {
	backends *BackendProvider
	prefs    *PreferenceService
	poller   *VideoPoller
	bus      *StatusBus
	now      func() time.Time

	generating atomic.Bool

	mu      sync.RWMutex
	scenes  []model.Scene
	results []model.Result
	lastRaw json.RawMessage
}

// NewOrchestrator creates an Orchestrator with an empty scene list.
func NewOrchestrator(backends *BackendProvider, prefs *PreferenceService, poller *VideoPoller, bus *StatusBus) *Orchestrator {
	return &Orchestrator{
		backends: backends,
		prefs:    prefs,
		poller:   poller,
		bus:      bus,
		now:      time.Now,
		scenes:   []model.Scene{},
		results:  []model.Result{},
	}
}

// UploadScenes replaces the scene list with the scenes parsed from a CSV
// sheet and returns how many were loaded.
func (o *Orchestrator) UploadScenes(name string, r io.Reader) (int, error) {
	o.bus.Publish(model.StatusInfo, fmt.Sprintf("Loading %s…", name), "")

	scenes, err := ParseScenes(r)
	if err != nil {
		o.bus.Publish(model.StatusError, "Failed to parse CSV: "+err.Error(), "")
		return 0, &ValidationError{Message: err.Error()}
	}

	o.mu.Lock()
	o.scenes = scenes
	o.mu.Unlock()

	plural := "s"
	if len(scenes) == 1 {
		plural = ""
	}
	o.bus.Publish(model.StatusSuccess, fmt.Sprintf("Loaded %d prompt%s from %s", len(scenes), plural, name), "")
	slog.Info("scenes loaded", "file", name, "count", len(scenes))
	return len(scenes), nil
}

// AddScene appends a scene built from prompt.
func (o *Orchestrator) AddScene(prompt string) (model.Scene, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		o.bus.Publish(model.StatusError, "Enter a prompt first, then click Add Scene", "")
		return model.Scene{}, &ValidationError{Message: "enter a prompt first"}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	s := model.Scene{
		ID:     model.NewSceneID(),
		Label:  strconv.Itoa(len(o.scenes) + 1),
		Prompt: prompt,
	}
	o.scenes = append(o.scenes, s)
	return s, nil
}

// RemoveScene deletes the scene with id.
func (o *Orchestrator) RemoveScene(id model.SceneID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.scenes {
		if s.ID == id {
			o.scenes = append(o.scenes[:i], o.scenes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove scene %s: %w", id, ErrSceneNotFound)
}

// ClearScenes empties the scene list and dismisses the status message.
func (o *Orchestrator) ClearScenes() {
	o.mu.Lock()
	o.scenes = []model.Scene{}
	o.mu.Unlock()
	o.bus.Dismiss()
}

// SelectScene returns the scene with id. When the scene carries a
// recognised aspect ratio it becomes the saved ratio preference.
func (o *Orchestrator) SelectScene(ctx context.Context, id model.SceneID) (model.Scene, error) {
	o.mu.RLock()
	var (
		scene model.Scene
		found bool
	)
	for _, s := range o.scenes {
		if s.ID == id {
			scene, found = s, true
			break
		}
	}
	o.mu.RUnlock()

	if !found {
		return model.Scene{}, fmt.Errorf("select scene %s: %w", id, ErrSceneNotFound)
	}
	if r, ok := model.ParseAspectRatio(scene.AspectRatio); ok {
		ratio := string(r)
		if _, err := o.prefs.Update(ctx, PreferencesPatch{AspectRatio: &ratio}); err != nil {
			return scene, fmt.Errorf("apply scene ratio: %w", err)
		}
	}
	return scene, nil
}

// Scenes returns a copy of the scene list.
func (o *Orchestrator) Scenes() []model.Scene {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]model.Scene(nil), o.scenes...)
}

// Results returns a copy of the gallery.
func (o *Orchestrator) Results() []model.Result {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]model.Result(nil), o.results...)
}

// ClearResults empties the gallery.
func (o *Orchestrator) ClearResults() {
	o.mu.Lock()
	o.results = []model.Result{}
	o.mu.Unlock()
}

// LastRaw returns the most recent backend response body.
func (o *Orchestrator) LastRaw() json.RawMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastRaw
}

// Generating reports whether a batch is running.
func (o *Orchestrator) Generating() bool {
	return o.generating.Load()
}

// Snapshot returns the current session state.
func (o *Orchestrator) Snapshot() Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Session{
		Scenes:     append([]model.Scene(nil), o.scenes...),
		Results:    append([]model.Result(nil), o.results...),
		LastRaw:    o.lastRaw,
		Generating: o.generating.Load(),
		Status:     o.bus.Last(),
	}
}

// Generate runs one batch and blocks until it finishes. singlePrompt is used
// only when the scene list is empty.
func (o *Orchestrator) Generate(ctx context.Context, singlePrompt string) error {
	runs, err := o.begin(singlePrompt)
	if err != nil {
		return err
	}
	defer o.generating.Store(false)
	return o.run(ctx, runs)
}

// StartGenerate validates and claims the batch synchronously, then runs it in
// the background. Progress and failures are reported on the status bus.
func (o *Orchestrator) StartGenerate(ctx context.Context, singlePrompt string) error {
	runs, err := o.begin(singlePrompt)
	if err != nil {
		return err
	}
	go func() {
		defer o.generating.Store(false)
		_ = o.run(ctx, runs)
	}()
	return nil
}

// begin claims the in-flight flag and snapshots the work list.
func (o *Orchestrator) begin(singlePrompt string) ([]model.Scene, error) {
	if !o.generating.CompareAndSwap(false, true) {
		return nil, ErrGenerationInFlight
	}

	runs := o.Scenes()
	if len(runs) == 0 {
		if p := strings.TrimSpace(singlePrompt); p != "" {
			runs = []model.Scene{{Label: "1", Prompt: p}}
		}
	}
	if len(runs) == 0 {
		o.generating.Store(false)
		o.bus.Publish(model.StatusError, "Enter a prompt or load a CSV file first", "")
		return nil, ErrNothingToGenerate
	}
	return runs, nil
}

func (o *Orchestrator) run(ctx context.Context, runs []model.Scene) error {
	backend := o.backends.Get()
	start := o.now()

	err := o.runBatch(ctx, backend, runs)
	if err != nil {
		msg, hint := DescribeFailure(err, backend.BaseURL())
		o.bus.Publish(model.StatusError, msg, hint)
		slog.Error("generation failed", "scenes", len(runs), "error", err)
		return err
	}

	o.bus.Publish(model.StatusSuccess, "Generation complete!", "")
	slog.Info("generation complete", "scenes", len(runs), "duration", o.now().Sub(start).Round(time.Millisecond))
	return nil
}

func (o *Orchestrator) runBatch(ctx context.Context, backend driven.GenerationBackend, runs []model.Scene) error {
	prefs, err := o.prefs.Load(ctx)
	if err != nil {
		return err
	}
	creds, err := o.prefs.ActiveCredentials(ctx, prefs)
	if err != nil {
		return err
	}

	if len(runs) > 1 && prefs.OutputKind == model.OutputImage {
		return o.requestStoryboard(ctx, backend, creds, prefs, runs)
	}

	for i, scene := range runs {
		o.bus.Publish(model.StatusInfo, fmt.Sprintf("Generating %d of %d…", i+1, len(runs)), "")

		switch prefs.OutputKind {
		case model.OutputImage:
			for v := 0; v < prefs.Variations; v++ {
				if prefs.Variations > 1 {
					o.bus.Publish(model.StatusInfo, fmt.Sprintf("Scene %d, variation %d of %d…", i+1, v+1, prefs.Variations), "")
				}
				if err := o.requestImage(ctx, backend, creds, prefs, scene); err != nil {
					return err
				}
			}
		case model.OutputVideo:
			for v := 0; v < prefs.Variations; v++ {
				if prefs.Variations > 1 {
					o.bus.Publish(model.StatusInfo, fmt.Sprintf("Submitting video variation %d of %d…", v+1, prefs.Variations), "")
				}
				if err := o.requestVideo(ctx, backend, creds, prefs, scene); err != nil {
					return err
				}
			}
		default:
			if err := o.requestText(ctx, backend, creds, prefs, scene); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) requestImage(
	ctx context.Context,
	backend driven.GenerationBackend,
	creds *driven.ProviderCredentials,
	prefs model.Preferences,
	scene model.Scene,
) error {
	ratio := scene.Ratio(prefs.AspectRatio)
	resp, err := backend.GenerateImage(ctx, creds, driven.ImageRequest{
		Prompt:         scene.Prompt,
		AspectRatio:    ratio.APIString(),
		ResponseFormat: imageResponseFormat,
	})
	if err != nil {
		return fmt.Errorf("generate image: %w", err)
	}
	o.setRaw(resp.Raw)
	o.addMedia(scene.ID, model.OutputImage, scene.Prompt, ratio, resp.MediaURLs)
	return nil
}

func (o *Orchestrator) requestText(
	ctx context.Context,
	backend driven.GenerationBackend,
	creds *driven.ProviderCredentials,
	prefs model.Preferences,
	scene model.Scene,
) error {
	resp, err := backend.GenerateText(ctx, creds, driven.TextRequest{
		Prompt:    scene.Prompt,
		Model:     prefs.Model,
		MaxTokens: textMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("generate text: %w", err)
	}
	o.setRaw(resp.Raw)

	o.mu.Lock()
	defer o.mu.Unlock()
	if i := o.sceneIndex(scene.ID); i >= 0 {
		o.scenes[i].Text = resp.Text
	}
	o.results = append(o.results, model.Result{
		ID:        uuid.NewString(),
		Kind:      model.OutputText,
		Prompt:    scene.Prompt,
		Text:      resp.Text,
		CreatedAt: o.now(),
	})
	return nil
}

func (o *Orchestrator) requestVideo(
	ctx context.Context,
	backend driven.GenerationBackend,
	creds *driven.ProviderCredentials,
	prefs model.Preferences,
	scene model.Scene,
) error {
	ratio := scene.Ratio(prefs.AspectRatio)
	o.bus.Publish(model.StatusInfo, fmt.Sprintf("Submitting video: %q", preview(scene.Prompt)), "")

	resp, err := backend.GenerateVideo(ctx, creds, driven.VideoRequest{
		Prompt:      scene.Prompt,
		AspectRatio: ratio.APIString(),
	})
	if err != nil {
		return fmt.Errorf("generate video: %w", err)
	}
	o.setRaw(resp.Raw)

	if len(resp.MediaURLs) > 0 {
		o.addMedia(scene.ID, model.OutputVideo, scene.Prompt, ratio, resp.MediaURLs)
		return nil
	}

	jobID := resp.ID
	if jobID == "" {
		jobID = resp.RequestID
	}
	if jobID == "" {
		return errors.New("video job submitted but no ID returned")
	}

	o.bus.Publish(model.StatusInfo, fmt.Sprintf("Video submitted (id: %s), polling for completion…", jobID), "")
	slog.Info("video job submitted", "job_id", jobID, "scene", scene.Label)

	maxWait := o.poller.MaxWait().Round(time.Minute)
	final, err := o.poller.Poll(ctx, backend, model.VideoJob{JobID: jobID, Scene: scene.ID, AspectRatio: ratio},
		func(p VideoProgress) {
			elapsed := int(p.Elapsed / time.Second)
			if p.Response == nil {
				o.bus.Publish(model.StatusInfo, fmt.Sprintf("Video generating… %ds elapsed (attempt %d/%d)",
					elapsed, p.Job.Attempt, o.poller.Attempts()), "")
				return
			}
			o.setRaw(p.Response.Raw)
			o.bus.Publish(model.StatusInfo, fmt.Sprintf("Video status: %s, %ds elapsed (up to %s)", p.Status, elapsed, maxWait), "")
		})
	if err != nil {
		return err
	}

	o.addMedia(scene.ID, model.OutputVideo, scene.Prompt, ratio, final.MediaURLs)
	return nil
}

func (o *Orchestrator) requestStoryboard(
	ctx context.Context,
	backend driven.GenerationBackend,
	creds *driven.ProviderCredentials,
	prefs model.Preferences,
	runs []model.Scene,
) error {
	prompts := make([]string, len(runs))
	for i, s := range runs {
		prompts[i] = s.Prompt
	}

	resp, err := backend.GenerateStoryboard(ctx, creds, driven.StoryboardRequest{
		Prompts:     prompts,
		AspectRatio: prefs.AspectRatio.APIString(),
		N:           prefs.Variations,
	})
	if err != nil {
		return fmt.Errorf("generate storyboard: %w", err)
	}
	o.setRaw(resp.Raw)

	for i, s := range resp.Scenes {
		var id model.SceneID
		if i < len(runs) {
			id = runs[i].ID
		}
		o.addMedia(id, model.OutputImage, s.Prompt, prefs.AspectRatio, s.MediaURLs)
	}
	return nil
}

// addMedia appends one result per URL and shows the first on the scene.
func (o *Orchestrator) addMedia(id model.SceneID, kind model.OutputKind, prompt string, ratio model.AspectRatio, urls []string) {
	if len(urls) == 0 {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if i := o.sceneIndex(id); i >= 0 {
		o.scenes[i].ImageURL = urls[0]
	}
	now := o.now()
	for _, u := range urls {
		o.results = append(o.results, model.Result{
			ID:          uuid.NewString(),
			Kind:        kind,
			URL:         u,
			Prompt:      prompt,
			AspectRatio: ratio,
			CreatedAt:   now,
		})
	}
}

// sceneIndex must be called with mu held.
func (o *Orchestrator) sceneIndex(id model.SceneID) int {
	if id == "" {
		return -1
	}
	for i, s := range o.scenes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (o *Orchestrator) setRaw(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	o.mu.Lock()
	o.lastRaw = raw
	o.mu.Unlock()
}

func preview(prompt string) string {
	r := []rune(prompt)
	if len(r) <= videoPromptPreview {
		return prompt
	}
	return string(r[:videoPromptPreview]) + "…"
}

// DescribeFailure turns a generation error into a status message and an
// optional hint. Upstream outages point at the provider status page; network
// failures name the backend address.
func DescribeFailure(err error, baseURL string) (message, hint string) {
	msg := err.Error()

	var reqErr *driven.RequestError
	if (errors.As(err, &reqErr) && reqErr.StatusCode == 503) ||
		strings.Contains(msg, "unavailable") || strings.Contains(msg, "503") {
		return "X.ai API temporarily unavailable", "check " + upstreamStatusURL
	}

	var urlErr *url.Error
	var netErr net.Error
	lower := strings.ToLower(msg)
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		strings.Contains(lower, "fetch") || strings.Contains(lower, "network") || strings.Contains(lower, "refused") {
		return "Backend unreachable at " + baseURL, "start the generation backend and try again"
	}

	return "Error: " + msg, ""
}
