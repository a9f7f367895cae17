package questionnaire

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tripmate/backend/internal/model/dialogue"
)

//go:embed locales.yaml
var localesYAML []byte

// Step is one question of the questionnaire together with its suggested answers.
type Step struct {
	State    dialogue.State `yaml:"state" json:"state"`
	Question string         `yaml:"question" json:"question"`
	Options  [][]string     `yaml:"options" json:"options"`
}

// Locale holds every user-facing text of the questionnaire in one language.
type Locale struct {
	Language        string `yaml:"-" json:"language"`
	Greeting        string `yaml:"greeting" json:"greeting"`
	Footer          string `yaml:"footer" json:"footer"`
	Exit            string `yaml:"exit" json:"exit"`
	Processing      string `yaml:"processing" json:"processing"`
	ResultHeader    string `yaml:"resultHeader" json:"resultHeader"`
	RestartHint     string `yaml:"restartHint" json:"restartHint"`
	Cancelled       string `yaml:"cancelled" json:"cancelled"`
	Idle            string `yaml:"idle" json:"idle"`
	GenerationError string `yaml:"generationError" json:"-"`
	Steps           []Step `yaml:"steps" json:"steps"`
	// Prompt is an FString template with one {slot} placeholder per slot.
	Prompt string `yaml:"prompt" json:"-"`
}

// Step returns the question asked while the session is in state.
func (l Locale) Step(state dialogue.State) (Step, bool) {
	for _, step := range l.Steps {
		if step.State == state {
			return step, true
		}
	}
	return Step{}, false
}

// Menu returns the quick-reply rows for state, always ending with the exit row.
func (l Locale) Menu(state dialogue.State) [][]string {
	step, ok := l.Step(state)
	if !ok {
		return nil
	}
	rows := make([][]string, 0, len(step.Options)+1)
	for _, row := range step.Options {
		rows = append(rows, append([]string(nil), row...))
	}
	return append(rows, []string{l.Exit})
}

// markdownEscaper escapes the entity characters of Telegram's legacy Markdown.
var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// Bind substitutes the start command token into every text that mentions it.
// Footer is sent inside Markdown questions, so the command is escaped there.
func (l Locale) Bind(startCommand string) Locale {
	r := strings.NewReplacer("{start}", startCommand)
	md := strings.NewReplacer("{start}", markdownEscaper.Replace(startCommand))
	l.Footer = md.Replace(l.Footer)
	l.RestartHint = r.Replace(l.RestartHint)
	l.Cancelled = r.Replace(l.Cancelled)
	l.Idle = r.Replace(l.Idle)
	steps := make([]Step, len(l.Steps))
	copy(steps, l.Steps)
	l.Steps = steps
	return l
}

func (l Locale) validate() error {
	if strings.TrimSpace(l.Exit) == "" {
		return fmt.Errorf("locale %s: exit label is empty", l.Language)
	}
	if strings.TrimSpace(l.Prompt) == "" {
		return fmt.Errorf("locale %s: prompt template is empty", l.Language)
	}
	for _, state := range dialogue.AwaitingStates() {
		step, ok := l.Step(state)
		if !ok {
			return fmt.Errorf("locale %s: no step for state %s", l.Language, state)
		}
		if len(step.Options) == 0 {
			return fmt.Errorf("locale %s: step %s has no options", l.Language, state)
		}
		slot, _ := state.Slot()
		if !strings.Contains(l.Prompt, "{"+string(slot)+"}") {
			return fmt.Errorf("locale %s: prompt does not reference {%s}", l.Language, slot)
		}
	}
	return nil
}

// Seed parses the embedded locale catalog.
func Seed() ([]Locale, error) {
	return Parse(localesYAML)
}

// Parse decodes a YAML document keyed by language code.
func Parse(data []byte) ([]Locale, error) {
	var raw map[string]Locale
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode locales: %w", err)
	}

	locales := make([]Locale, 0, len(raw))
	for lang, locale := range raw {
		locale.Language = lang
		if err := locale.validate(); err != nil {
			return nil, err
		}
		locales = append(locales, locale)
	}
	return locales, nil
}
