// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// PageViewModel holds everything the dashboard renders.
type PageViewModel struct {
	Title      string
	CSRFToken  string
	Generating bool

	Backend BackendViewModel
	Status  *StatusViewModel
	Vault   VaultViewModel
	Prefs   PrefsViewModel
	Scenes  []SceneViewModel
	Results []ResultViewModel
	Export  ExportViewModel

	// RawJSON is the last backend response, indented for display.
	RawJSON string
}

// OptionViewModel is one <option> of a select.
type OptionViewModel struct {
	Value    string
	Label    string
	Selected bool
}

// BackendViewModel drives the connection indicator.
type BackendViewModel struct {
	BaseURL string
	State   string // starting|offline|online|idle
	Online  bool
	Label   string
}

// StatusViewModel is the status bar message.
type StatusViewModel struct {
	Level   string // info|success|error
	Message string
	Hint    string
}

// FormRowViewModel is the vault input row.
type FormRowViewModel struct {
	Provider  string
	State     string
	ShowOther bool
}

// CredentialViewModel is one stored key with its secret masked.
type CredentialViewModel struct {
	Label  string
	Masked string
}

// VaultViewModel holds presentation-ready data for the credential editor.
type VaultViewModel struct {
	Row           FormRowViewModel
	Providers     []OptionViewModel
	Entries       []CredentialViewModel
	View          string
	UndoAvailable bool
}

// PrefsViewModel holds the generation setting selects.
type PrefsViewModel struct {
	Ratios     []OptionViewModel
	Kinds      []OptionViewModel
	Providers  []OptionViewModel
	Models     []OptionViewModel
	Variations []OptionViewModel
	ShowModels bool // models only apply to text output
}

// SceneViewModel holds presentation-ready data for one storyboard card.
type SceneViewModel struct {
	ID         string
	Label      string
	Prompt     string
	Meta       string // industry, count and NAICS joined for display
	RatioCSS   string
	ImageURL   string
	TextHTML   string // sanitized markdown
	RemovePath string
	SelectPath string
}

// ResultViewModel holds presentation-ready data for one gallery item.
type ResultViewModel struct {
	ID       string
	Kind     string
	URL      string
	Prompt   string
	RatioCSS string
	TextHTML string
	IsVideo  bool
	IsText   bool
}

// ExportViewModel holds the export form state.
type ExportViewModel struct {
	HasToken bool
	Repo     string
	Folder   string
	CanSave  bool
}
