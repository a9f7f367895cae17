package dialogue

import "strings"

// DefaultStripChars are the markup delimiters of the chat transports.
const DefaultStripChars = "*_`"

// Sanitizer removes markup characters from generated text so a transport
// rendering rich text never receives unbalanced delimiters.
type Sanitizer struct {
	replacer *strings.Replacer
}

// NewSanitizer strips every rune in chars. An empty set falls back to DefaultStripChars.
func NewSanitizer(chars string) Sanitizer {
	if chars == "" {
		chars = DefaultStripChars
	}
	pairs := make([]string, 0, 2*len(chars))
	for _, r := range chars {
		pairs = append(pairs, string(r), "")
	}
	return Sanitizer{replacer: strings.NewReplacer(pairs...)}
}

// Clean returns text without the configured characters.
func (s Sanitizer) Clean(text string) string {
	if s.replacer == nil {
		return NewSanitizer("").Clean(text)
	}
	return s.replacer.Replace(text)
}
