package model

import "strings"

// OutputKind selects what the backend is asked to produce.
type OutputKind string

const (
	OutputImage OutputKind = "image"
	OutputText  OutputKind = "text"
	OutputVideo OutputKind = "video"
)

// ParseOutputKind returns the kind named by s and whether it was recognized.
func ParseOutputKind(s string) (OutputKind, bool) {
	switch OutputKind(strings.ToLower(strings.TrimSpace(s))) {
	case OutputImage:
		return OutputImage, true
	case OutputText:
		return OutputText, true
	case OutputVideo:
		return OutputVideo, true
	default:
		return "", false
	}
}

// HasMedia reports whether results of this kind carry a media URL.
func (k OutputKind) HasMedia() bool {
	return k == OutputImage || k == OutputVideo
}

// AspectRatio is the internal aspect-ratio key.
type AspectRatio string

const (
	RatioSquare        AspectRatio = "square"
	RatioLandscapeWide AspectRatio = "landscape-wide"
	RatioLandscape     AspectRatio = "landscape"
	RatioPortraitTall  AspectRatio = "portrait-tall"
	RatioPortrait      AspectRatio = "portrait"
)

// AspectRatios lists the supported ratios in display order.
var AspectRatios = []AspectRatio{RatioSquare, RatioLandscapeWide, RatioLandscape, RatioPortraitTall, RatioPortrait}

var ratioAliases = map[string]AspectRatio{
	"square": RatioSquare, "1:1": RatioSquare, "1/1": RatioSquare,
	"landscape-wide": RatioLandscapeWide, "16:9": RatioLandscapeWide, "16/9": RatioLandscapeWide,
	"landscape": RatioLandscape, "4:3": RatioLandscape, "4/3": RatioLandscape,
	"portrait-tall": RatioPortraitTall, "9:16": RatioPortraitTall, "9/16": RatioPortraitTall,
	"portrait": RatioPortrait, "3:4": RatioPortrait, "3/4": RatioPortrait,
}

// ParseAspectRatio normalizes an alias such as "16:9" or "Portrait" to its
// internal key. The second result is false for empty or unknown input.
func ParseAspectRatio(raw string) (AspectRatio, bool) {
	r, ok := ratioAliases[strings.ToLower(strings.TrimSpace(raw))]
	return r, ok
}

// APIString is the ratio form sent to the generation backend.
func (r AspectRatio) APIString() string {
	switch r {
	case RatioLandscapeWide:
		return "16:9"
	case RatioLandscape:
		return "4:3"
	case RatioPortraitTall:
		return "9:16"
	case RatioPortrait:
		return "3:4"
	default:
		return "1:1"
	}
}

// CSS is the ratio form used for the aspect-ratio style property.
func (r AspectRatio) CSS() string {
	return strings.ReplaceAll(r.APIString(), ":", "/")
}

// StatusLevel classifies a status message.
type StatusLevel string

const (
	StatusInfo    StatusLevel = "info"
	StatusSuccess StatusLevel = "success"
	StatusError   StatusLevel = "error"
)
