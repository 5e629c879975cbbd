package httphandler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

type countingTracker struct{ n atomic.Int32 }

func (c *countingTracker) Touch() { c.n.Add(1) }

func TestActivityMiddleware(t *testing.T) {
	tests := []struct {
		path      string
		wantTouch bool
	}{
		{"/api/v1/scenes", true},
		{"/", true},
		{"/app/generate", true},
		{"/api/v1/health", false},
		{"/api/v1/status/ws", false},
		{"/static/app.css", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			tracker := &countingTracker{}
			h := ApplyMiddleware(http.NotFoundHandler(), slog.Default(), tracker)

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantTouch, tracker.n.Load() == 1)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := ApplyMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), slog.Default(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"validation", &application.ValidationError{Message: "bad ratio"}, http.StatusBadRequest, "bad ratio"},
		{"nothing to generate", application.ErrNothingToGenerate, http.StatusBadRequest, application.ErrNothingToGenerate.Error()},
		{"no token", application.ErrNoExportToken, http.StatusBadRequest, application.ErrNoExportToken.Error()},
		{"scene not found", fmt.Errorf("remove scene x: %w", application.ErrSceneNotFound), http.StatusNotFound, "remove scene x: scene not found"},
		{"in flight", application.ErrGenerationInFlight, http.StatusConflict, application.ErrGenerationInFlight.Error()},
		{"backend", fmt.Errorf("generate image: %w", &driven.RequestError{StatusCode: 401, Message: "bad key"}), http.StatusBadGateway, "bad key"},
		{"codec", application.ErrDependencyUnavailable, http.StatusServiceUnavailable, application.ErrDependencyUnavailable.Error()},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			writeAppError(rec, slog.Default(), "test", tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.wantBody), rec.Body.String())
		})
	}
}

func TestSameOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://localhost:8090/api/v1/status/ws", nil)
	assert.True(t, sameOrigin(req), "no origin header")

	req.Header.Set("Origin", "http://localhost:8090")
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, sameOrigin(req))

	req.Header.Del("Origin")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	assert.False(t, sameOrigin(req), "fetch metadata alone marks the request foreign")

	req.Header.Set("Sec-Fetch-Site", "same-origin")
	assert.True(t, sameOrigin(req))
}
