package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Provider names accepted by AI_PROVIDER.
const (
	ProviderAuto     = "auto"
	ProviderArk      = "ark"
	ProviderOpenAI   = "openai"
	ProviderGigaChat = "gigachat"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	OpenAI   OpenAIConfig
	GigaChat GigaChatConfig
	Telegram TelegramConfig
	Dialogue DialogueConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	gigachat, err := loadGigaChatConfig()
	if err != nil {
		return nil, err
	}

	telegram, err := loadTelegramConfig()
	if err != nil {
		return nil, err
	}

	dialogue, err := loadDialogueConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		OpenAI:   loadOpenAIConfig(),
		GigaChat: gigachat,
		Telegram: telegram,
		Dialogue: dialogue,
	}, nil
}

// Provider resolves AI_PROVIDER. In auto mode the first configured backend wins,
// in the order ark, openai, gigachat.
func (c *Config) Provider() (string, error) {
	switch c.AI.Provider {
	case ProviderArk:
		if !c.AI.Enabled() {
			return "", fmt.Errorf("AI_PROVIDER=ark but ARK_API_KEY (or AK/SK) and Model are not set")
		}
		return ProviderArk, nil
	case ProviderOpenAI:
		if !c.OpenAI.Enabled() {
			return "", fmt.Errorf("AI_PROVIDER=openai but OPENAI_API_KEY is not set")
		}
		return ProviderOpenAI, nil
	case ProviderGigaChat:
		if !c.GigaChat.Enabled() {
			return "", fmt.Errorf("AI_PROVIDER=gigachat but GIGACHAT_CLIENT_ID/GIGACHAT_CLIENT_SECRET are not set")
		}
		return ProviderGigaChat, nil
	case "", ProviderAuto:
		switch {
		case c.AI.Enabled():
			return ProviderArk, nil
		case c.OpenAI.Enabled():
			return ProviderOpenAI, nil
		case c.GigaChat.Enabled():
			return ProviderGigaChat, nil
		}
		return "", fmt.Errorf("no recommendation backend configured: set ARK_API_KEY, OPENAI_API_KEY or GIGACHAT_CLIENT_ID")
	default:
		return "", fmt.Errorf("unknown AI_PROVIDER %q", c.AI.Provider)
	}
}

// NewChatModel builds the eino chat model of an eino-backed provider.
func (c *Config) NewChatModel(ctx context.Context, provider string) (model.BaseChatModel, error) {
	switch provider {
	case ProviderArk:
		return c.AI.NewChatModel(ctx)
	case ProviderOpenAI:
		return c.OpenAI.NewChatModel(ctx)
	default:
		return nil, fmt.Errorf("provider %q is not backed by an eino chat model", provider)
	}
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述 Ark 大模型相关配置。
type AIConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: toFloat32(c.Temperature),
		TopP:        toFloat32(c.TopP),
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:    strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderAuto)),
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// OpenAIConfig 描述 OpenAI 兼容接口的配置。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled reports whether an API key is present.
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// NewChatModel creates an OpenAI-compatible chat model.
func (c OpenAIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  c.APIKey,
		Model:   c.Model,
		BaseURL: c.BaseURL,
	})
}

func loadOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL: getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}
}

// GigaChatConfig 描述 GigaChat OAuth 客户端配置。
type GigaChatConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	Model        string
	OAuthURL     string
	APIURL       string
	InsecureTLS  bool
	Timeout      time.Duration
}

// Enabled reports whether client credentials are present.
func (c GigaChatConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func loadGigaChatConfig() (GigaChatConfig, error) {
	insecure, err := parseBoolEnv("GIGACHAT_INSECURE_TLS", true)
	if err != nil {
		return GigaChatConfig{}, err
	}

	timeout := 30
	if override, err := parseOptionalIntEnv("GIGACHAT_TIMEOUT"); err != nil {
		return GigaChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return GigaChatConfig{}, fmt.Errorf("invalid GIGACHAT_TIMEOUT value %d: must be positive", *override)
		}
		timeout = *override
	}

	return GigaChatConfig{
		ClientID:     strings.TrimSpace(os.Getenv("GIGACHAT_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("GIGACHAT_CLIENT_SECRET")),
		Scope:        getEnvOrDefault("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
		Model:        getEnvOrDefault("GIGACHAT_MODEL", "GigaChat"),
		OAuthURL:     getEnvOrDefault("GIGACHAT_OAUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
		APIURL:       getEnvOrDefault("GIGACHAT_API_URL", "https://gigachat.devices.sberbank.ru/api/v1/chat/completions"),
		InsecureTLS:  insecure,
		Timeout:      time.Duration(timeout) * time.Second,
	}, nil
}

// TelegramConfig 描述 Telegram 机器人配置。
type TelegramConfig struct {
	Token       string
	PollTimeout int
	Debug       bool
}

// Enabled reports whether the bot should run.
func (c TelegramConfig) Enabled() bool {
	return c.Token != ""
}

func loadTelegramConfig() (TelegramConfig, error) {
	debug, err := parseBoolEnv("TELEGRAM_DEBUG", false)
	if err != nil {
		return TelegramConfig{}, err
	}

	pollTimeout := 60
	if override, err := parseOptionalIntEnv("TELEGRAM_POLL_TIMEOUT"); err != nil {
		return TelegramConfig{}, err
	} else if override != nil {
		if *override < 0 {
			pollTimeout = 0
		} else {
			pollTimeout = *override
		}
	}

	return TelegramConfig{
		Token:       strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		PollTimeout: pollTimeout,
		Debug:       debug,
	}, nil
}

// DialogueConfig 描述问卷对话配置。
type DialogueConfig struct {
	Language     string
	StartCommand string
	SessionTTL   time.Duration
	StripChars   string
}

func loadDialogueConfig() (DialogueConfig, error) {
	ttl := 30 * time.Minute
	if raw := strings.TrimSpace(os.Getenv("DIALOGUE_SESSION_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return DialogueConfig{}, fmt.Errorf("invalid DIALOGUE_SESSION_TTL value %q: %w", raw, err)
		}
		if parsed <= 0 {
			return DialogueConfig{}, fmt.Errorf("invalid DIALOGUE_SESSION_TTL value %q: must be positive", raw)
		}
		ttl = parsed
	}

	start := getEnvOrDefault("DIALOGUE_START_COMMAND", "/start")
	if strings.ContainsAny(start, " \t\n") {
		return DialogueConfig{}, fmt.Errorf("invalid DIALOGUE_START_COMMAND value %q: must be a single token", start)
	}

	return DialogueConfig{
		Language:     strings.ToLower(getEnvOrDefault("DIALOGUE_LANGUAGE", "en")),
		StartCommand: start,
		SessionTTL:   ttl,
		StripChars:   getEnvOrDefault("DIALOGUE_STRIP_CHARS", "*_`"),
	}, nil
}

func toFloat32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
