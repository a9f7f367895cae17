package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	model "github.com/tripmate/backend/internal/model/dialogue"
)

// PromptBuilder renders the recommendation request from the collected slots.
type PromptBuilder struct {
	template prompt.ChatTemplate
}

// NewPromptBuilder compiles an FString template that references every slot as {slot}.
func NewPromptBuilder(tpl string) (*PromptBuilder, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, fmt.Errorf("prompt template is empty")
	}
	for _, slot := range model.Slots() {
		if !strings.Contains(tpl, "{"+string(slot)+"}") {
			return nil, fmt.Errorf("prompt template does not reference {%s}", slot)
		}
	}
	return &PromptBuilder{
		template: prompt.FromMessages(schema.FString, schema.UserMessage(tpl)),
	}, nil
}

// Build embeds the slot values verbatim into the template.
func (b *PromptBuilder) Build(ctx context.Context, slots map[model.Slot]string) (string, error) {
	vars := make(map[string]any, len(slots))
	for _, slot := range model.Slots() {
		value, ok := slots[slot]
		if !ok {
			return "", fmt.Errorf("slot %s has not been collected", slot)
		}
		vars[string(slot)] = value
	}

	messages, err := b.template.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("format prompt: %w", err)
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("format prompt: template produced no message")
	}
	return strings.TrimSpace(messages[0].Content), nil
}
