package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ErrEmptyResponse is reported when the model answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// GenerationError wraps any failure of a recommendation backend.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// systemPrompt frames every request; the questionnaire prompt carries the actual task.
const systemPrompt = "You are a travel assistant. Answer in the language of the request and follow its format exactly."

// Service turns an assembled recommendation prompt into text through an eino chain.
type Service struct {
	provider string
	chain    compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles ChatTemplate -> ChatModel for the given model.
func NewService(ctx context.Context, chatModel model.BaseChatModel, provider string) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile recommendation chain: %w", err)
	}

	return &Service{provider: provider, chain: runnable}, nil
}

// Provider names the backend behind the chain.
func (s *Service) Provider() string {
	return s.provider
}

// Generate runs the chain once. There is no retry; every failure, including an
// empty answer, comes back as *GenerationError.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{"prompt": prompt})
	if err != nil {
		return "", &GenerationError{Provider: s.provider, Err: err}
	}

	content := ""
	if response != nil {
		content = strings.TrimSpace(response.Content)
	}
	if content == "" {
		return "", &GenerationError{Provider: s.provider, Err: ErrEmptyResponse}
	}

	log.Printf("[ai] provider=%s generated recommendation, length=%d", s.provider, len(content))
	return content, nil
}
