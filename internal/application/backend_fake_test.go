package application_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// fakeBackend is a scriptable driven.GenerationBackend. Unset funcs return a
// canned success.
type fakeBackend struct {
	base string

	mu    sync.Mutex
	calls map[string]int
	creds []*driven.ProviderCredentials

	imageReqs      []driven.ImageRequest
	textReqs       []driven.TextRequest
	videoReqs      []driven.VideoRequest
	storyboardReqs []driven.StoryboardRequest

	health       func() (driven.BackendHealth, error)
	image        func(req driven.ImageRequest) (driven.GenerationResponse, error)
	text         func(req driven.TextRequest) (driven.GenerationResponse, error)
	video        func(req driven.VideoRequest) (driven.GenerationResponse, error)
	videoStatus  func(jobID string, call int) (driven.GenerationResponse, error)
	storyboard   func(req driven.StoryboardRequest) (driven.StoryboardResponse, error)
	beforeCreate func()
}

func newFakeBackend(base string) *fakeBackend {
	return &fakeBackend{base: base, calls: map[string]int{}}
}

func (f *fakeBackend) record(name string, creds *driven.ProviderCredentials) int {
	f.mu.Lock()
	f.calls[name]++
	n := f.calls[name]
	if name != "health" && name != "video_status" {
		f.creds = append(f.creds, creds)
	}
	hook := f.beforeCreate
	f.mu.Unlock()

	if hook != nil && name != "health" && name != "video_status" {
		hook()
	}
	return n
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) totalGenerateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls["image"] + f.calls["text"] + f.calls["video"] + f.calls["storyboard"]
}

func (f *fakeBackend) sentCreds() []*driven.ProviderCredentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*driven.ProviderCredentials(nil), f.creds...)
}

func (f *fakeBackend) Health(_ context.Context) (driven.BackendHealth, error) {
	f.record("health", nil)
	if f.health != nil {
		return f.health()
	}
	return driven.BackendHealth{}, nil
}

func (f *fakeBackend) GenerateImage(_ context.Context, creds *driven.ProviderCredentials, req driven.ImageRequest) (driven.GenerationResponse, error) {
	f.record("image", creds)
	f.mu.Lock()
	f.imageReqs = append(f.imageReqs, req)
	f.mu.Unlock()
	if f.image != nil {
		return f.image(req)
	}
	return withRaw(driven.GenerationResponse{
		Status:    "completed",
		MediaURLs: []string{fmt.Sprintf("https://media.test/%s.jpg", slug(req.Prompt))},
	}), nil
}

func (f *fakeBackend) GenerateText(_ context.Context, creds *driven.ProviderCredentials, req driven.TextRequest) (driven.GenerationResponse, error) {
	f.record("text", creds)
	f.mu.Lock()
	f.textReqs = append(f.textReqs, req)
	f.mu.Unlock()
	if f.text != nil {
		return f.text(req)
	}
	return withRaw(driven.GenerationResponse{Status: "completed", Text: "text for " + req.Prompt}), nil
}

func (f *fakeBackend) GenerateVideo(_ context.Context, creds *driven.ProviderCredentials, req driven.VideoRequest) (driven.GenerationResponse, error) {
	f.record("video", creds)
	f.mu.Lock()
	f.videoReqs = append(f.videoReqs, req)
	f.mu.Unlock()
	if f.video != nil {
		return f.video(req)
	}
	return withRaw(driven.GenerationResponse{
		Status:    "completed",
		MediaURLs: []string{fmt.Sprintf("https://media.test/%s.mp4", slug(req.Prompt))},
	}), nil
}

func (f *fakeBackend) VideoStatus(_ context.Context, jobID string) (driven.GenerationResponse, error) {
	n := f.record("video_status", nil)
	if f.videoStatus != nil {
		return f.videoStatus(jobID, n)
	}
	return withRaw(driven.GenerationResponse{ID: jobID, Status: "processing"}), nil
}

func (f *fakeBackend) GenerateStoryboard(_ context.Context, creds *driven.ProviderCredentials, req driven.StoryboardRequest) (driven.StoryboardResponse, error) {
	f.record("storyboard", creds)
	f.mu.Lock()
	f.storyboardReqs = append(f.storyboardReqs, req)
	f.mu.Unlock()
	if f.storyboard != nil {
		return f.storyboard(req)
	}
	resp := driven.StoryboardResponse{}
	for _, p := range req.Prompts {
		resp.Scenes = append(resp.Scenes, driven.StoryboardScene{
			Prompt:    p,
			MediaURLs: []string{fmt.Sprintf("https://media.test/%s.jpg", slug(p))},
		})
	}
	resp.Raw, _ = json.Marshal(map[string]int{"scenes": len(resp.Scenes)})
	return resp, nil
}

func (f *fakeBackend) BaseURL() string { return f.base }

func withRaw(r driven.GenerationResponse) driven.GenerationResponse {
	r.Raw, _ = json.Marshal(r)
	return r
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' {
			r = '-'
		}
		out = append(out, r)
	}
	return string(out)
}

var _ driven.GenerationBackend = (*fakeBackend)(nil)
