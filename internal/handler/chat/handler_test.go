package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tripmate/backend/internal/model/dialogue"
	"github.com/tripmate/backend/internal/model/questionnaire"
	"github.com/tripmate/backend/internal/service/dialogue"
	"github.com/tripmate/backend/internal/service/session"
)

func setupRouter(t *testing.T, gen dialogue.Generator) (*chi.Mux, *session.Store) {
	t.Helper()
	locales, err := questionnaire.Seed()
	require.NoError(t, err)
	locale, err := questionnaire.Resolve(questionnaire.NewMemoryStore(locales), "en", "/start")
	require.NoError(t, err)

	engine, err := dialogue.NewEngine(dialogue.Config{Locale: locale, StartCommand: "/start", Generator: gen})
	require.NoError(t, err)

	store := session.NewStore(time.Minute)
	r := chi.NewRouter()
	New(store, dialogue.NewService(engine, store)).RegisterRoutes(r)
	return r, store
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeTurn(t *testing.T, resp *httptest.ResponseRecorder) turnResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var turn turnResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &turn))
	return turn
}

func staticGenerator(text string) dialogue.Generator {
	return dialogue.GeneratorFunc(func(context.Context, string) (string, error) { return text, nil })
}

func TestCreateSession(t *testing.T) {
	r, store := setupRouter(t, staticGenerator("ok"))

	resp := do(t, r, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var view sessionView
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, model.StateInit, view.State)
	assert.Equal(t, 1, store.Len())
}

func TestFullQuestionnaireOverREST(t *testing.T) {
	r, _ := setupRouter(t, staticGenerator("*Lisbon* (Portugal)"))

	var view sessionView
	require.NoError(t, json.Unmarshal(do(t, r, http.MethodPost, "/session", nil).Body.Bytes(), &view))
	base := "/session/" + view.ID

	turn := decodeTurn(t, do(t, r, http.MethodPost, base+"/start", nil))
	assert.Equal(t, model.OutcomeContinue, turn.Outcome.Kind)
	require.Len(t, turn.Replies, 1)
	assert.Equal(t, model.ReplyQuestion, turn.Replies[0].Kind)

	for _, answer := range []string{"Active", "Not important", "Warm", "1–2 weeks"} {
		turn = decodeTurn(t, do(t, r, http.MethodPost, base+"/messages", map[string]string{"text": answer}))
		assert.Equal(t, model.OutcomeContinue, turn.Outcome.Kind)
	}
	// the submitting turn echoes the answers, the session view does not
	assert.Equal(t, "Not important", turn.Outcome.Slots[model.SlotBudget])

	resp := do(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, model.StateAwaitingCompanion, view.State)
	assert.Equal(t, []string{"type", "budget", "climate", "duration"}, view.Collected)
	assert.NotContains(t, resp.Body.String(), "Not important")

	turn = decodeTurn(t, do(t, r, http.MethodPost, base+"/messages", map[string]string{"text": "Family"}))
	assert.Equal(t, model.OutcomeCompleted, turn.Outcome.Kind)
	assert.Equal(t, "Lisbon (Portugal)", turn.Outcome.Recommendation)
	require.Len(t, turn.Replies, 2)
	assert.Equal(t, model.ReplyProcessing, turn.Replies[0].Kind)
	assert.Equal(t, model.ReplyResult, turn.Replies[1].Kind)
	assert.Equal(t, [][]string{{"/start"}}, turn.Replies[1].Options)
}

func TestExitOverREST(t *testing.T) {
	r, _ := setupRouter(t, staticGenerator("ok"))
	var view sessionView
	require.NoError(t, json.Unmarshal(do(t, r, http.MethodPost, "/session", nil).Body.Bytes(), &view))
	base := "/session/" + view.ID

	decodeTurn(t, do(t, r, http.MethodPost, base+"/start", nil))
	decodeTurn(t, do(t, r, http.MethodPost, base+"/messages", map[string]string{"text": "Active"}))
	turn := decodeTurn(t, do(t, r, http.MethodPost, base+"/messages", map[string]string{"text": "Exit"}))

	assert.Equal(t, model.OutcomeCancelled, turn.Outcome.Kind)
	assert.Equal(t, model.StateTerminated, turn.Outcome.Next)
	assert.Equal(t, map[model.Slot]string{model.SlotType: "Active"}, turn.Outcome.Slots)
}

func TestDeleteSession(t *testing.T) {
	r, store := setupRouter(t, staticGenerator("ok"))
	var view sessionView
	require.NoError(t, json.Unmarshal(do(t, r, http.MethodPost, "/session", nil).Body.Bytes(), &view))

	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/session/"+view.ID, nil).Code)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/session/"+view.ID, nil).Code)
}

func TestUnknownSession(t *testing.T) {
	r, _ := setupRouter(t, staticGenerator("ok"))

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/session/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/session/missing/start", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/session/missing/messages", map[string]string{"text": "hi"}).Code)
}

func TestMessageInvalidBody(t *testing.T) {
	r, _ := setupRouter(t, staticGenerator("ok"))
	var view sessionView
	require.NoError(t, json.Unmarshal(do(t, r, http.MethodPost, "/session", nil).Body.Bytes(), &view))

	req := httptest.NewRequest(http.MethodPost, "/session/"+view.ID+"/messages", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
