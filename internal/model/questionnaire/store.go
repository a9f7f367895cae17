package questionnaire

import (
	"errors"
	"sort"
)

// ErrUnknownLanguage is returned when no locale exists for the requested language.
var ErrUnknownLanguage = errors.New("unknown questionnaire language")

// Store exposes locale retrieval for the engine and HTTP handlers.
type Store interface {
	Languages() []string
	Find(lang string) (Locale, bool)
}

// MemoryStore implements Store over a fixed set of locales.
type MemoryStore struct {
	items map[string]Locale
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied locales.
func NewMemoryStore(items []Locale) *MemoryStore {
	m := make(map[string]Locale, len(items))
	for _, item := range items {
		m[item.Language] = item
	}
	return &MemoryStore{items: m}
}

// Languages lists the available language codes in sorted order.
func (s *MemoryStore) Languages() []string {
	out := make([]string, 0, len(s.items))
	for lang := range s.items {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Find looks up a locale by language code.
func (s *MemoryStore) Find(lang string) (Locale, bool) {
	locale, ok := s.items[lang]
	return locale, ok
}

// Resolve returns the locale for lang bound to startCommand.
func Resolve(store Store, lang, startCommand string) (Locale, error) {
	locale, ok := store.Find(lang)
	if !ok {
		return Locale{}, ErrUnknownLanguage
	}
	return locale.Bind(startCommand), nil
}
