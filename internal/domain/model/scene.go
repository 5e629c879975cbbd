package model

import (
	"time"

	"github.com/google/uuid"
)

// SceneID identifies a scene independently of its position in the list.
type SceneID string

// NewSceneID returns a fresh random scene identifier.
func NewSceneID() SceneID {
	return SceneID(uuid.NewString())
}

// Scene is one prompt unit. Only scenes with a non-empty Prompt are
// generated. ImageURL and Text are filled in as results arrive.
type Scene struct {
	ID          SceneID
	Label       string
	Prompt      string
	Industry    string
	Count       string
	NAICS       string
	AspectRatio string
	Style       string

	ImageURL string
	Text     string
}

// Ratio returns the scene's own aspect ratio when it parses, otherwise
// fallback.
func (s Scene) Ratio(fallback AspectRatio) AspectRatio {
	if r, ok := ParseAspectRatio(s.AspectRatio); ok {
		return r
	}
	return fallback
}

// VideoJob tracks an asynchronous video generation being polled.
type VideoJob struct {
	JobID       string
	Scene       SceneID
	AspectRatio AspectRatio
	Attempt     int
}

// Result is one generated item shown in the gallery and eligible for export.
type Result struct {
	ID          string
	Kind        OutputKind
	URL         string
	Prompt      string
	AspectRatio AspectRatio
	Text        string
	CreatedAt   time.Time
}

// Status is a user-visible status message.
type Status struct {
	Level   StatusLevel
	Message string
	Hint    string
	At      time.Time
}
