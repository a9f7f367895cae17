package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmate/backend/internal/model/questionnaire"
	"github.com/tripmate/backend/internal/service/dialogue"
	"github.com/tripmate/backend/internal/service/session"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	locales, err := questionnaire.Seed()
	require.NoError(t, err)
	store := questionnaire.NewMemoryStore(locales)
	locale, err := questionnaire.Resolve(store, "en", "/start")
	require.NoError(t, err)

	gen := dialogue.GeneratorFunc(func(context.Context, string) (string, error) { return "ok", nil })
	engine, err := dialogue.NewEngine(dialogue.Config{Locale: locale, StartCommand: "/start", Generator: gen})
	require.NoError(t, err)

	sessions := session.NewStore(time.Minute)
	return NewRouter(Dependencies{
		Locales:         store,
		DefaultLanguage: "en",
		StartCommand:    "/start",
		Sessions:        sessions,
		Dialogue:        dialogue.NewService(engine, sessions),
		Provider:        "fake",
	})
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok","provider":"fake","sessions":0}`, resp.Body.String())
}

func TestRoutesAreMountedUnderAPI(t *testing.T) {
	r := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/questionnaire", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/session", nil))
	require.Equal(t, http.StatusCreated, resp.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/stream/"+created.ID+"?message=%2Fstart", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), `"event":"outcome"`))
}

func TestStreamRequiresMessage(t *testing.T) {
	r := newTestRouter(t)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/stream/abc", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/session", nil))
	assert.Equal(t, http.StatusNoContent, resp.Code)
}
