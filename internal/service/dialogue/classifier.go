package dialogue

import (
	"strings"

	model "github.com/tripmate/backend/internal/model/dialogue"
)

// CancelCommand is accepted as a cancel phrase next to the locale's exit label.
const CancelCommand = "/cancel"

// Classifier recognises start and cancel commands in raw user text.
//
// The cancel phrase must be the whole input (surrounding whitespace ignored),
// compared case-insensitively; a phrase inside a longer answer is just an answer.
type Classifier struct {
	StartCommand  string
	CancelPhrases []string
}

// NewClassifier builds a Classifier for startCommand and the given cancel phrases.
func NewClassifier(startCommand string, cancelPhrases ...string) Classifier {
	phrases := make([]string, 0, len(cancelPhrases))
	for _, p := range cancelPhrases {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	return Classifier{StartCommand: startCommand, CancelPhrases: phrases}
}

// Classify turns text from sessionID into an Event.
func (c Classifier) Classify(sessionID, text string) model.Event {
	return model.Event{
		SessionID: sessionID,
		Text:      text,
		IsStart:   c.IsStart(text),
		IsCancel:  c.IsCancel(text),
	}
}

// IsStart reports whether text is the start command. Telegram style suffixes
// ("/start@bot", "/start payload") are accepted.
func (c Classifier) IsStart(text string) bool {
	if c.StartCommand == "" {
		return false
	}
	text = strings.TrimSpace(text)
	if text == c.StartCommand {
		return true
	}
	return strings.HasPrefix(text, c.StartCommand+"@") || strings.HasPrefix(text, c.StartCommand+" ")
}

// IsCancel reports whether text is exactly one of the cancel phrases.
func (c Classifier) IsCancel(text string) bool {
	text = strings.TrimSpace(text)
	for _, phrase := range c.CancelPhrases {
		if strings.EqualFold(text, phrase) {
			return true
		}
	}
	return false
}
