// Package gigachat is a GigaChat chat-completions client authenticated with OAuth 2.0
// client credentials.
package gigachat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/tripmate/backend/internal/service/ai"
)

const (
	DefaultOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	DefaultAPIURL   = "https://gigachat.devices.sberbank.ru/api/v1/chat/completions"
	DefaultScope    = "GIGACHAT_API_PERS"
	DefaultModel    = "GigaChat"

	providerName = "gigachat"
	// tokenLeeway is subtracted from the token expiry so a token is never used at the edge.
	tokenLeeway = 60 * time.Second
)

var (
	ErrUnauthorized = errors.New("gigachat rejected the access token")
	ErrNoChoices    = errors.New("gigachat returned no choices")
)

// Options configures a Client. Zero values fall back to the public endpoints.
type Options struct {
	ClientID     string
	ClientSecret string
	Scope        string
	Model        string
	OAuthURL     string
	APIURL       string
	InsecureTLS  bool
	Timeout      time.Duration
	// HTTPClient overrides the transport built from InsecureTLS and Timeout.
	HTTPClient *http.Client
}

// Client implements the recommendation generator on top of GigaChat.
type Client struct {
	opts       Options
	httpClient *http.Client
	now        func() time.Time

	mu           sync.Mutex
	accessToken  string
	tokenExpires time.Time
}

// tokenResponse carries expires_at as epoch milliseconds. expires_in (seconds) is
// accepted for OAuth servers that follow RFC 6749.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (tr tokenResponse) expiry(now time.Time) time.Time {
	if tr.ExpiresAt > 0 {
		return time.UnixMilli(tr.ExpiresAt).Add(-tokenLeeway)
	}
	return now.Add(time.Duration(tr.ExpiresIn)*time.Second - tokenLeeway)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewClient validates credentials and fills defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("gigachat client id and secret are required")
	}
	if opts.Scope == "" {
		opts.Scope = DefaultScope
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.OAuthURL == "" {
		opts.OAuthURL = DefaultOAuthURL
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				// the public endpoints are signed by the Russian national CA
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: opts.InsecureTLS,
					MinVersion:         tls.VersionTLS12,
				},
			},
		}
	}

	return &Client{opts: opts, httpClient: httpClient, now: time.Now}, nil
}

// Generate sends prompt as a single user message and returns the first choice.
// Failures are returned as *ai.GenerationError; a rejected token is dropped so the
// next call authenticates again, but the current call is not retried.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return "", &ai.GenerationError{Provider: providerName, Err: err}
	}
	return content, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", fmt.Errorf("obtain access token: %w", err)
	}

	payload, err := sonic.Marshal(chatRequest{
		Model:    c.opts.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	rqUID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", rqUID)
	req.Header.Set("X-Client-ID", c.opts.ClientID)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call chat completions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	log.Printf("[gigachat] chat completions RqUID=%s status=%d bytes=%d", rqUID, resp.StatusCode, len(body))

	if resp.StatusCode == http.StatusUnauthorized {
		c.dropToken()
		return "", ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completions status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed chatResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("model error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", ai.ErrEmptyResponse
	}
	return content, nil
}

// token returns the cached access token or fetches a new one.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpires) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("scope", c.opts.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.OAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build oauth request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.opts.ClientID + ":" + c.opts.ClientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call oauth: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read oauth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var tr tokenResponse
	if err := sonic.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode oauth response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("oauth response carries no access_token")
	}

	c.accessToken = tr.AccessToken
	c.tokenExpires = tr.expiry(c.now())
	log.Printf("[gigachat] access token refreshed, valid until %s", c.tokenExpires.Format(time.RFC3339))
	return c.accessToken, nil
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.tokenExpires = time.Time{}
	c.mu.Unlock()
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
