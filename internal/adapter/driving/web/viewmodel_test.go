package web

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vm "github.com/ericfisherdev/artsengine/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/domain/model"
)

func TestToBackendViewModel(t *testing.T) {
	tests := []struct {
		name      string
		status    application.BackendStatus
		wantLabel string
		wantState string
	}{
		{"before first check", application.BackendStatus{}, "Checking backend…", "starting"},
		{"online with provider", application.BackendStatus{State: application.ProbeOnline, Online: true, Provider: "xai"}, "Online: xAI", "online"},
		{"online unknown provider", application.BackendStatus{State: application.ProbeOnline, Online: true}, "Online", "online"},
		{"offline", application.BackendStatus{State: application.ProbeOffline}, "Offline", "offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toBackendViewModel(tt.status, "http://localhost:8091")
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.Equal(t, tt.wantState, got.State)
			assert.Equal(t, "http://localhost:8091", got.BaseURL)
		})
	}
}

func TestToStatusViewModel(t *testing.T) {
	assert.Nil(t, toStatusViewModel(model.Status{}))

	got := toStatusViewModel(model.Status{Level: model.StatusError, Message: "boom", Hint: "retry"})
	require.NotNil(t, got)
	assert.Equal(t, "error", got.Level)
	assert.Equal(t, "boom", got.Message)
	assert.Equal(t, "retry", got.Hint)
}

func TestToVaultViewModel(t *testing.T) {
	creds := model.Credentials{"XAI_API_KEY": "xai-secret-9876", "GROQ_API_KEY": "gsk-1"}
	options := []application.ProviderOption{
		{Value: "GROQ_API_KEY", Label: "Groq ●", HasKey: true},
		{Value: model.OtherProvider, Label: model.OtherProvider},
	}

	got := toVaultViewModel(creds, options, model.OtherProvider, "view", true)

	assert.True(t, got.Row.ShowOther)
	assert.Equal(t, "provider_chosen", got.Row.State)
	require.Len(t, got.Providers, 2)
	assert.False(t, got.Providers[0].Selected)
	assert.True(t, got.Providers[1].Selected)
	require.Len(t, got.Entries, 2)
	for _, e := range got.Entries {
		assert.NotContains(t, e.Masked, "secret")
	}
	assert.Equal(t, "view", got.View)
	assert.True(t, got.UndoAvailable)
}

func selectedValues(opts []vm.OptionViewModel) []string {
	var out []string
	for _, o := range opts {
		if o.Selected {
			out = append(out, o.Value)
		}
	}
	return out
}

func TestToPrefsViewModel(t *testing.T) {
	prefs := model.Preferences{
		AspectRatio: model.RatioLandscapeWide,
		OutputKind:  model.OutputText,
		Provider:    "gemini",
		Model:       "gemini-2.0-flash",
		Variations:  2,
	}
	choices := []application.ProviderChoice{{ID: "gemini", Label: "Gemini"}, {ID: model.EnvProvider, Label: "Backend default"}}

	got := toPrefsViewModel(prefs, choices)

	assert.True(t, got.ShowModels)
	assert.Len(t, got.Ratios, len(model.AspectRatios))
	assert.Len(t, got.Variations, model.MaxVariations-model.MinVariations+1)

	assert.Equal(t, []string{"landscape-wide"}, selectedValues(got.Ratios))
	assert.Equal(t, []string{"text"}, selectedValues(got.Kinds))
	assert.Equal(t, []string{"gemini"}, selectedValues(got.Providers))
	assert.Equal(t, []string{"gemini-2.0-flash"}, selectedValues(got.Models))
	assert.Equal(t, []string{"2"}, selectedValues(got.Variations))

	prefs.OutputKind = model.OutputImage
	assert.False(t, toPrefsViewModel(prefs, choices).ShowModels)
}

func TestToSceneViewModel(t *testing.T) {
	scene := model.Scene{
		ID:          "s-1",
		Label:       "3",
		Prompt:      "A bakery at dawn",
		Industry:    "food",
		Count:       "12",
		NAICS:       "311811",
		AspectRatio: "9:16",
		Text:        "**fresh bread**",
	}

	got := toSceneViewModel(scene, model.RatioSquare)

	assert.Equal(t, "food · count 12 · NAICS 311811", got.Meta)
	assert.Equal(t, "9/16", got.RatioCSS)
	assert.Equal(t, "/app/scenes/s-1/remove", got.RemovePath)
	assert.Equal(t, "/app/scenes/s-1/select", got.SelectPath)
	assert.Contains(t, got.TextHTML, "<strong>fresh bread</strong>")

	scene.AspectRatio = ""
	assert.Equal(t, "1/1", toSceneViewModel(scene, model.RatioSquare).RatioCSS, "falls back to the saved ratio")
}

func TestToResultViewModel(t *testing.T) {
	video := toResultViewModel(model.Result{ID: "r1", Kind: model.OutputVideo, URL: "https://m/v.mp4", AspectRatio: model.RatioLandscape})
	assert.True(t, video.IsVideo)
	assert.False(t, video.IsText)
	assert.Equal(t, "4/3", video.RatioCSS)

	text := toResultViewModel(model.Result{ID: "r2", Kind: model.OutputText, Text: "hello"})
	assert.True(t, text.IsText)
	assert.Contains(t, text.TextHTML, "hello")
}

func TestIndentRaw(t *testing.T) {
	assert.Empty(t, indentRaw(nil))
	assert.Equal(t, "{\n  \"a\": 1\n}", indentRaw(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, "not json", indentRaw(json.RawMessage("not json")))
}
