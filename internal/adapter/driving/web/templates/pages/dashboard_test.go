package pages_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/artsengine/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/artsengine/internal/adapter/driving/web/viewmodel"
)

func renderPage(t *testing.T, page vm.PageViewModel) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, pages.Dashboard(page).Render(context.Background(), &buf))
	return buf.String()
}

func basePage() vm.PageViewModel {
	return vm.PageViewModel{
		Title:     "Arts Engine",
		CSRFToken: "tok",
		Backend:   vm.BackendViewModel{BaseURL: "http://localhost:8081", State: "online", Online: true, Label: "Online: xAI"},
		Vault: vm.VaultViewModel{
			Row:       vm.FormRowViewModel{State: "empty"},
			Providers: []vm.OptionViewModel{{Value: "OpenAI", Label: "OpenAI"}},
		},
	}
}

func TestDashboard_EmptyWorkspace(t *testing.T) {
	html := renderPage(t, basePage())

	assert.Contains(t, html, `<span id="backend-indicator" class="indicator indicator-online" title="http://localhost:8081">Online: xAI</span>`)
	assert.Contains(t, html, `<div id="status" role="status" class="status" hidden>`)
	assert.Contains(t, html, `<option value="">Choose provider…</option>`)
	assert.Contains(t, html, `id="vault-other" placeholder="Label, e.g. MY_API_KEY" hidden>`)
	assert.Contains(t, html, "No scenes yet. Add a prompt or load a CSV.")
	assert.Contains(t, html, "Generated images, videos and text appear here.")
	assert.Contains(t, html, "Save token")
	assert.NotContains(t, html, `value="undo"`)
	assert.NotContains(t, html, `id="raw"`, "no response yet")
	assert.NotContains(t, html, `name="model"`, "model choice hidden")
}

func TestDashboard_Status(t *testing.T) {
	page := basePage()
	page.Status = &vm.StatusViewModel{Level: "error", Message: "Backend <offline>", Hint: "Start it"}

	html := renderPage(t, page)
	assert.Contains(t, html, `<div id="status" role="status" class="status status-error">`)
	assert.Contains(t, html, "Backend &lt;offline&gt;")
	assert.Contains(t, html, `<span class="status-hint">Start it</span>`)
}

func TestDashboard_VaultEntries(t *testing.T) {
	page := basePage()
	page.Vault.Row = vm.FormRowViewModel{State: "saveable", ShowOther: true}
	page.Vault.Entries = []vm.CredentialViewModel{{Label: "OPENAI_API_KEY", Masked: "••••1234"}}
	page.Vault.View = "OPENAI_API_KEY: sk-1234"
	page.Vault.UndoAvailable = true

	html := renderPage(t, page)
	assert.Contains(t, html, `data-row-state="saveable"`)
	assert.Contains(t, html, `id="vault-other" placeholder="Label, e.g. MY_API_KEY">`)
	assert.Contains(t, html, `<li><span class="key-label">OPENAI_API_KEY</span> <code>••••1234</code></li>`)
	assert.Contains(t, html, ">OPENAI_API_KEY: sk-1234</textarea>")
	assert.Contains(t, html, `value="undo"`)
}

func TestDashboard_Generating(t *testing.T) {
	page := basePage()
	page.Generating = true
	page.Prefs.ShowModels = true
	page.Prefs.Models = []vm.OptionViewModel{{Value: "grok-2-image", Label: "grok-2-image", Selected: true}}

	html := renderPage(t, page)
	assert.Contains(t, html, `<button type="submit" class="primary" disabled>Generating…</button>`)
	assert.Contains(t, html, `<option value="grok-2-image" selected>grok-2-image</option>`)
}

func TestDashboard_ScenesAndResults(t *testing.T) {
	page := basePage()
	page.Scenes = []vm.SceneViewModel{
		{
			ID: "s1", Label: "1", Prompt: "<b>harbor</b>", RatioCSS: "16/9",
			TextHTML:   "<p>A <em>quiet</em> harbor</p>",
			SelectPath: "/app/scenes/s1/select", RemovePath: "/app/scenes/s1/remove",
		},
		{ID: "s2", Label: "2", Prompt: "forest", RatioCSS: "1/1", ImageURL: "https://media.test/forest.jpg"},
	}
	page.Results = []vm.ResultViewModel{
		{ID: "r1", Kind: "video", URL: "https://media.test/clip.mp4", Prompt: "clip", RatioCSS: "9/16", IsVideo: true},
		{ID: "r2", Kind: "image", URL: "https://media.test/a.jpg", Prompt: "a", RatioCSS: "4/3"},
		{ID: "r3", Kind: "text", Prompt: "story", TextHTML: "<h1>Story</h1>", IsText: true},
	}
	page.RawJSON = `{"ok":true}`

	html := renderPage(t, page)
	assert.Contains(t, html, `<li class="scene" data-scene-id="s1"><div class="frame" data-aspect="16/9"><span class="scene-number">1</span>`)
	assert.Contains(t, html, "&lt;b&gt;harbor&lt;/b&gt;")
	assert.Contains(t, html, "<p>A <em>quiet</em> harbor</p>", "sanitized markdown is embedded as is")
	assert.Contains(t, html, `action="/app/scenes/s1/select"`)
	assert.Contains(t, html, `<img loading="lazy" src="https://media.test/forest.jpg" alt="forest">`)

	assert.Contains(t, html, `<figure class="result result-video"><video controls preload="metadata" src="https://media.test/clip.mp4" data-aspect="9/16"></video>`)
	assert.Contains(t, html, `<a target="_blank" rel="noopener" href="https://media.test/a.jpg">`)
	assert.Contains(t, html, `<figure class="result result-text"><div class="markdown"><h1>Story</h1></div>`)
	assert.Contains(t, html, "Clear results")
	assert.Contains(t, html, `<pre>{&#34;ok&#34;:true}</pre>`)
}

func TestDashboard_ExportWithToken(t *testing.T) {
	page := basePage()
	page.Export = vm.ExportViewModel{HasToken: true, Repo: "modelearth/requests", Folder: "storyboards"}

	html := renderPage(t, page)
	assert.Contains(t, html, `value="modelearth/requests"`)
	assert.Contains(t, html, `<button type="submit" class="primary" disabled>Save to GitHub</button>`)
	assert.Contains(t, html, "Forget token")
	assert.NotContains(t, html, "Save token")

	page.Export.CanSave = true
	assert.Contains(t, renderPage(t, page), `<button type="submit" class="primary">Save to GitHub</button>`)
}
