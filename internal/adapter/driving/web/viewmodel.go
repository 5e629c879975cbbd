package web

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	vm "github.com/ericfisherdev/artsengine/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/domain/model"
)

var ratioLabels = map[model.AspectRatio]string{
	model.RatioSquare:        "Square (1:1)",
	model.RatioLandscapeWide: "Landscape wide (16:9)",
	model.RatioLandscape:     "Landscape (4:3)",
	model.RatioPortraitTall:  "Portrait tall (9:16)",
	model.RatioPortrait:      "Portrait (3:4)",
}

var kindLabels = []struct {
	kind  model.OutputKind
	label string
}{
	{model.OutputImage, "Image"},
	{model.OutputText, "Text"},
	{model.OutputVideo, "Video"},
}

func toBackendViewModel(s application.BackendStatus, baseURL string) vm.BackendViewModel {
	label := "Checking backend…"
	switch {
	case s.State == application.ProbeStarting:
	case s.Online && s.Provider != "":
		label = "Online: " + model.ProviderLabel(s.Provider)
	case s.Online:
		label = "Online"
	default:
		label = "Offline"
	}
	return vm.BackendViewModel{
		BaseURL: baseURL,
		State:   s.State.String(),
		Online:  s.Online,
		Label:   label,
	}
}

// toStatusViewModel returns nil for the zero status.
func toStatusViewModel(st model.Status) *vm.StatusViewModel {
	if st.Message == "" {
		return nil
	}
	return &vm.StatusViewModel{Level: string(st.Level), Message: st.Message, Hint: st.Hint}
}

func toVaultViewModel(
	creds model.Credentials,
	options []application.ProviderOption,
	lastProvider string,
	view string,
	undo bool,
) vm.VaultViewModel {
	row := model.FormRow{Provider: lastProvider}

	out := vm.VaultViewModel{
		Row: vm.FormRowViewModel{
			Provider:  row.Provider,
			State:     row.State().String(),
			ShowOther: row.Provider == model.OtherProvider,
		},
		Providers:     make([]vm.OptionViewModel, 0, len(options)),
		Entries:       make([]vm.CredentialViewModel, 0, len(creds)),
		View:          view,
		UndoAvailable: undo,
	}
	for _, o := range options {
		out.Providers = append(out.Providers, vm.OptionViewModel{Value: o.Value, Label: o.Label, Selected: o.Value == lastProvider})
	}
	for _, label := range creds.Labels() {
		out.Entries = append(out.Entries, vm.CredentialViewModel{Label: label, Masked: model.MaskSecret(creds[label])})
	}
	return out
}

func toPrefsViewModel(p model.Preferences, providers []application.ProviderChoice) vm.PrefsViewModel {
	out := vm.PrefsViewModel{ShowModels: p.OutputKind == model.OutputText}

	for _, r := range model.AspectRatios {
		out.Ratios = append(out.Ratios, vm.OptionViewModel{Value: string(r), Label: ratioLabels[r], Selected: r == p.AspectRatio})
	}
	for _, k := range kindLabels {
		out.Kinds = append(out.Kinds, vm.OptionViewModel{Value: string(k.kind), Label: k.label, Selected: k.kind == p.OutputKind})
	}
	for _, c := range providers {
		out.Providers = append(out.Providers, vm.OptionViewModel{Value: c.ID, Label: c.Label, Selected: c.ID == p.Provider})
	}
	for _, m := range model.ModelsFor(p.Provider) {
		out.Models = append(out.Models, vm.OptionViewModel{Value: m.Value, Label: m.Label, Selected: m.Value == p.Model})
	}
	for n := model.MinVariations; n <= model.MaxVariations; n++ {
		v := strconv.Itoa(n)
		out.Variations = append(out.Variations, vm.OptionViewModel{Value: v, Label: v, Selected: n == p.Variations})
	}
	return out
}

func toSceneViewModel(s model.Scene, fallback model.AspectRatio) vm.SceneViewModel {
	var meta []string
	if s.Industry != "" {
		meta = append(meta, s.Industry)
	}
	if s.Count != "" {
		meta = append(meta, "count "+s.Count)
	}
	if s.NAICS != "" {
		meta = append(meta, "NAICS "+s.NAICS)
	}
	if s.Style != "" {
		meta = append(meta, s.Style)
	}

	id := string(s.ID)
	return vm.SceneViewModel{
		ID:         id,
		Label:      s.Label,
		Prompt:     s.Prompt,
		Meta:       strings.Join(meta, " · "),
		RatioCSS:   s.Ratio(fallback).CSS(),
		ImageURL:   s.ImageURL,
		TextHTML:   RenderMarkdown(s.Text),
		RemovePath: "/app/scenes/" + id + "/remove",
		SelectPath: "/app/scenes/" + id + "/select",
	}
}

func toResultViewModel(r model.Result) vm.ResultViewModel {
	return vm.ResultViewModel{
		ID:       r.ID,
		Kind:     string(r.Kind),
		URL:      r.URL,
		Prompt:   r.Prompt,
		RatioCSS: r.AspectRatio.CSS(),
		TextHTML: RenderMarkdown(r.Text),
		IsVideo:  r.Kind == model.OutputVideo,
		IsText:   r.Kind == model.OutputText,
	}
}

// indentRaw pretty-prints a raw backend response. Non-JSON bodies are shown
// as they are.
func indentRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
