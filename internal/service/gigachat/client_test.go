package gigachat

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmate/backend/internal/service/ai"
)

type fakeGigaChat struct {
	oauthCalls atomic.Int32
	chatCalls  atomic.Int32
	chatStatus int
	chatBody   string
	// tokenBody overrides the oauth reply; the default carries expires_at like the real endpoint.
	tokenBody  string
	lastPrompt atomic.Value
}

func (f *fakeGigaChat) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		f.oauthCalls.Add(1)
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("id:secret"))
		assert.Equal(t, want, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("RqUID"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, DefaultScope, r.PostForm.Get("scope"))
		body := f.tokenBody
		if body == "" {
			body = fmt.Sprintf(`{"access_token":"tok","expires_at":%d}`, time.Now().Add(30*time.Minute).UnixMilli())
		}
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("RqUID"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		require.NoError(t, sonic.Unmarshal(body, &req))
		assert.Equal(t, DefaultModel, req.Model)
		if len(req.Messages) > 0 {
			f.lastPrompt.Store(req.Messages[len(req.Messages)-1].Content)
		}

		status := f.chatStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, f.chatBody)
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeGigaChat) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		ClientID:     "id",
		ClientSecret: "secret",
		OAuthURL:     srv.URL + "/oauth",
		APIURL:       srv.URL + "/chat",
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)
	return client
}

func TestGenerateCachesToken(t *testing.T) {
	fake := &fakeGigaChat{chatBody: `{"choices":[{"message":{"role":"assistant","content":" 1. Tbilisi (Georgia) "}}]}`}
	client := newTestClient(t, fake)

	for i := 0; i < 3; i++ {
		got, err := client.Generate(context.Background(), "where to?")
		require.NoError(t, err)
		assert.Equal(t, "1. Tbilisi (Georgia)", got)
	}

	assert.Equal(t, int32(1), fake.oauthCalls.Load())
	assert.Equal(t, int32(3), fake.chatCalls.Load())
	assert.Equal(t, "where to?", fake.lastPrompt.Load())
}

func TestTokenRefreshedAfterExpiry(t *testing.T) {
	fake := &fakeGigaChat{chatBody: `{"choices":[{"message":{"content":"ok"}}]}`}
	client := newTestClient(t, fake)

	now := time.Now()
	client.now = func() time.Time { return now }
	_, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)

	// expires_at is 30 minutes out, minus the leeway
	now = now.Add(1741 * time.Second)
	_, err = client.Generate(context.Background(), "p")
	require.NoError(t, err)

	assert.Equal(t, int32(2), fake.oauthCalls.Load())
}

func TestTokenExpiresInFallback(t *testing.T) {
	fake := &fakeGigaChat{
		chatBody:  `{"choices":[{"message":{"content":"ok"}}]}`,
		tokenBody: `{"access_token":"tok","expires_in":1800}`,
	}
	client := newTestClient(t, fake)

	now := time.Now()
	client.now = func() time.Time { return now }
	for i := 0; i < 2; i++ {
		_, err := client.Generate(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), fake.oauthCalls.Load())

	now = now.Add(1741 * time.Second)
	_, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.oauthCalls.Load())
}

func TestTokenWithoutExpiryIsNotCached(t *testing.T) {
	fake := &fakeGigaChat{
		chatBody:  `{"choices":[{"message":{"content":"ok"}}]}`,
		tokenBody: `{"access_token":"tok"}`,
	}
	client := newTestClient(t, fake)

	for i := 0; i < 2; i++ {
		_, err := client.Generate(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), fake.oauthCalls.Load())
}

func TestUnauthorizedDropsTokenWithoutRetry(t *testing.T) {
	fake := &fakeGigaChat{chatStatus: http.StatusUnauthorized, chatBody: `{}`}
	client := newTestClient(t, fake)

	_, err := client.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), fake.chatCalls.Load())

	fake.chatStatus = http.StatusOK
	fake.chatBody = `{"choices":[{"message":{"content":"ok"}}]}`
	_, err = client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.oauthCalls.Load())
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"server error", http.StatusInternalServerError, `upstream down`, nil},
		{"model error", http.StatusOK, `{"error":{"message":"quota","type":"limit"}}`, nil},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrNoChoices},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, ai.ErrEmptyResponse},
		{"bad json", http.StatusOK, `{`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &fakeGigaChat{chatStatus: tt.status, chatBody: tt.body})

			_, err := client.Generate(context.Background(), "p")
			require.Error(t, err)

			var genErr *ai.GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, "gigachat", genErr.Provider)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestOAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(Options{
		ClientID:     "id",
		ClientSecret: "secret",
		OAuthURL:     srv.URL,
		APIURL:       srv.URL,
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth status 401")
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Options{ClientID: "id"})
	assert.Error(t, err)
}
