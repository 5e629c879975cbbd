package model

// Variation bounds for image and video requests per scene.
const (
	MinVariations = 1
	MaxVariations = 4
)

// Preferences are the persisted generation settings.
type Preferences struct {
	AspectRatio AspectRatio
	OutputKind  OutputKind
	Provider    string
	Model       string
	Variations  int
}

// DefaultPreferences returns the settings used before anything is saved.
func DefaultPreferences() Preferences {
	return Preferences{
		AspectRatio: RatioSquare,
		OutputKind:  OutputImage,
		Provider:    "gemini",
		Model:       "gemini-2.0-flash",
		Variations:  MinVariations,
	}
}

// ClampVariations bounds n to [MinVariations, MaxVariations].
func ClampVariations(n int) int {
	if n < MinVariations {
		return MinVariations
	}
	if n > MaxVariations {
		return MaxVariations
	}
	return n
}
