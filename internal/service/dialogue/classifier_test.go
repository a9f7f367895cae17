package dialogue

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tripmate/backend/internal/model/dialogue"
)

func TestClassifier(t *testing.T) {
	c := NewClassifier("/start", "Exit", " ", CancelCommand)

	tests := []struct {
		text   string
		start  bool
		cancel bool
	}{
		{"/start", true, false},
		{"  /start\n", true, false},
		{"/start@tripmate_bot", true, false},
		{"/start deep-link", true, false},
		{"/started", false, false},
		{"Exit", false, true},
		{"exit", false, true},
		{"  EXIT ", false, true},
		{"/cancel", false, true},
		{"Exit now", false, false},
		{"", false, false},
		{"Beach", false, false},
	}
	for _, tt := range tests {
		ev := c.Classify("s1", tt.text)
		assert.Equal(t, tt.start, ev.IsStart, "start %q", tt.text)
		assert.Equal(t, tt.cancel, ev.IsCancel, "cancel %q", tt.text)
		assert.Equal(t, tt.text, ev.Text)
		assert.Equal(t, "s1", ev.SessionID)
	}
	assert.Len(t, c.CancelPhrases, 2)
}

func TestClassifierWithoutStartCommand(t *testing.T) {
	c := NewClassifier("")
	assert.False(t, c.IsStart(""))
	assert.False(t, c.IsStart("/start"))
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer("")
	assert.Equal(t, "bold italic code", s.Clean("*bold* _italic_ `code`"))
	assert.Equal(t, "snakecase", s.Clean("snake_case"))
	assert.Equal(t, "plain text stays", s.Clean("plain text stays"))

	custom := NewSanitizer("#")
	assert.Equal(t, "title *kept*", custom.Clean("#title *kept*"))

	var zero Sanitizer
	assert.Equal(t, "x", zero.Clean("*x*"))
}

func TestPromptBuilder(t *testing.T) {
	b, err := NewPromptBuilder("{type}|{budget}|{climate}|{duration}|{companion}")
	require.NoError(t, err)

	got, err := b.Build(context.Background(), map[model.Slot]string{
		model.SlotType:      "Beach",
		model.SlotBudget:    "Up to 50k",
		model.SlotClimate:   "Warm",
		model.SlotDuration:  "Month+",
		model.SlotCompanion: "Friends",
	})
	require.NoError(t, err)
	assert.Equal(t, "Beach|Up to 50k|Warm|Month+|Friends", got)

	_, err = b.Build(context.Background(), map[model.Slot]string{model.SlotType: "Beach"})
	assert.Error(t, err)
}

func TestPromptBuilderRejectsIncompleteTemplate(t *testing.T) {
	_, err := NewPromptBuilder("")
	assert.Error(t, err)

	_, err = NewPromptBuilder("{type} {budget} {climate} {duration}")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "companion"))
}
