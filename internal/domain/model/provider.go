package model

// EnvProvider is the sentinel provider id meaning "use the backend's own
// configured credentials". No provider headers are sent for it.
const EnvProvider = "env"

// ProviderModel is one selectable model of a provider.
type ProviderModel struct {
	Value string
	Label string
}

// Provider describes a known generation provider and the vault key its
// secret is stored under.
type Provider struct {
	ID      string
	KeyName string
	Label   string
	Models  []ProviderModel
}

// Providers is the catalog of known providers in display order.
var Providers = []Provider{
	{ID: "claude", KeyName: "CLAUDE_API_KEY", Label: "Claude", Models: []ProviderModel{
		{"claude-opus-4-6", "Claude Opus 4.6"},
		{"claude-sonnet-4-6", "Claude Sonnet 4.6"},
		{"claude-haiku-4-5-20251001", "Claude Haiku 4.5"},
	}},
	{ID: "gemini", KeyName: "GEMINI_API_KEY", Label: "Gemini", Models: []ProviderModel{
		{"gemini-2.0-flash", "Gemini 2.0 Flash"},
		{"gemini-2.0-flash-thinking-exp", "Gemini 2.0 Flash Thinking"},
		{"gemini-1.5-pro", "Gemini 1.5 Pro"},
		{"gemini-1.5-flash", "Gemini 1.5 Flash"},
	}},
	{ID: "openai", KeyName: "OPENAI_API_KEY", Label: "OpenAI", Models: []ProviderModel{
		{"gpt-4o", "GPT-4o"},
		{"gpt-4o-mini", "GPT-4o mini"},
		{"gpt-4-turbo", "GPT-4 Turbo"},
	}},
	{ID: "xai", KeyName: "XAI_API_KEY", Label: "xAI", Models: []ProviderModel{
		{"grok-3-mini-beta", "Grok 3 Mini"},
		{"grok-3", "Grok 3"},
		{"grok-2-1212", "Grok 2"},
	}},
	{ID: "groq", KeyName: "GROQ_API_KEY", Label: "Groq", Models: []ProviderModel{
		{"llama-3.3-70b-versatile", "Llama 3.3 70B"},
		{"llama-3.1-8b-instant", "Llama 3.1 8B"},
		{"mixtral-8x7b-32768", "Mixtral 8x7B"},
	}},
	{ID: "together", KeyName: "TOGETHER_API_KEY", Label: "Together AI", Models: []ProviderModel{
		{"meta-llama/Llama-3.3-70B-Instruct-Turbo", "Llama 3.3 70B Turbo"},
		{"meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo", "Llama 3.1 8B Turbo"},
	}},
	{ID: "fireworks", KeyName: "FIREWORKS_API_KEY", Label: "Fireworks AI", Models: []ProviderModel{
		{"accounts/fireworks/models/llama-v3p3-70b-instruct", "Llama 3.3 70B"},
		{"accounts/fireworks/models/qwen2p5-72b-instruct", "Qwen 2.5 72B"},
	}},
	{ID: "mistral", KeyName: "MISTRAL_API_KEY", Label: "Mistral", Models: []ProviderModel{
		{"mistral-large-latest", "Mistral Large"},
		{"mistral-small-latest", "Mistral Small"},
		{"codestral-latest", "Codestral"},
	}},
	{ID: "perplexity", KeyName: "PERPLEXITY_API_KEY", Label: "Perplexity", Models: []ProviderModel{
		{"llama-3.1-sonar-large-128k-online", "Sonar Large (online)"},
		{"llama-3.1-sonar-small-128k-online", "Sonar Small (online)"},
	}},
	{ID: "deepseek", KeyName: "DEEPSEEK_API_KEY", Label: "DeepSeek", Models: []ProviderModel{
		{"deepseek-chat", "DeepSeek Chat"},
		{"deepseek-reasoner", "DeepSeek Reasoner"},
	}},
}

// envModels are offered when the backend default provider is selected.
var envModels = []ProviderModel{
	{"grok-3-mini-beta", "Grok 3 Mini (default)"},
	{"grok-3", "Grok 3"},
}

// LookupProvider returns the catalog entry with the given id.
func LookupProvider(id string) (Provider, bool) {
	for _, p := range Providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

// ModelsFor returns the models offered for a provider id. Unknown ids and
// EnvProvider get the backend default list.
func ModelsFor(id string) []ProviderModel {
	if p, ok := LookupProvider(id); ok {
		return p.Models
	}
	return envModels
}

// ProviderLabel returns the display label for id, or id itself when unknown.
func ProviderLabel(id string) string {
	if p, ok := LookupProvider(id); ok {
		return p.Label
	}
	return id
}
