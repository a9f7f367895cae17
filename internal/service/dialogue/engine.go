package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	model "github.com/tripmate/backend/internal/model/dialogue"
	"github.com/tripmate/backend/internal/model/questionnaire"
)

var (
	// ErrNilSession is returned when an event arrives without a session record.
	ErrNilSession = errors.New("dialogue: nil session")
	// ErrIncompleteSession fails a completion whose record lost answers on the way,
	// for example a session restored with missing slots.
	ErrIncompleteSession = errors.New("not every question has been answered")
)

// Config wires an Engine.
type Config struct {
	// Locale must already be bound to StartCommand.
	Locale       questionnaire.Locale
	StartCommand string
	Generator    Generator
	// StripChars is the markup character set removed from generated text.
	StripChars string
}

// Engine drives the questionnaire. It keeps no per-session state of its own: the
// session record is owned by the caller and passed in with every event, and the
// caller guarantees that one session never sees two events at the same time.
type Engine struct {
	locale       questionnaire.Locale
	startCommand string
	generator    Generator
	prompts      *PromptBuilder
	sanitizer    Sanitizer
	classifier   Classifier
}

// NewEngine validates cfg and prepares the prompt template.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("dialogue engine requires a generator")
	}
	if strings.TrimSpace(cfg.StartCommand) == "" {
		return nil, fmt.Errorf("dialogue engine requires a start command")
	}
	prompts, err := NewPromptBuilder(cfg.Locale.Prompt)
	if err != nil {
		return nil, fmt.Errorf("locale %s: %w", cfg.Locale.Language, err)
	}
	return &Engine{
		locale:       cfg.Locale,
		startCommand: cfg.StartCommand,
		generator:    cfg.Generator,
		prompts:      prompts,
		sanitizer:    NewSanitizer(cfg.StripChars),
		classifier:   NewClassifier(cfg.StartCommand, cfg.Locale.Exit, CancelCommand),
	}, nil
}

// Classifier returns the command recogniser matching this engine's locale.
func (e *Engine) Classifier() Classifier {
	return e.classifier
}

// Locale returns the texts the engine speaks.
func (e *Engine) Locale() questionnaire.Locale {
	return e.locale
}

// Prompt assembles the recommendation request for a full set of slots.
func (e *Engine) Prompt(ctx context.Context, slots map[model.Slot]string) (string, error) {
	return e.prompts.Build(ctx, slots)
}

// Handle applies one event to sess and sends the resulting replies through out.
//
// The returned error only reports delivery failures; the outcome is valid either way.
func (e *Engine) Handle(ctx context.Context, sess *model.Session, ev model.Event, out Sender) (model.Outcome, error) {
	if sess == nil {
		return model.Outcome{}, ErrNilSession
	}

	switch {
	case ev.IsStart:
		return e.start(ctx, sess, out)
	case !sess.State.Awaiting():
		return e.idle(ctx, sess, out)
	case ev.IsCancel:
		return e.cancel(ctx, sess, out)
	}

	from := sess.State
	sess.Record(ev.Text)
	log.Printf("[dialogue] session=%s %s -> %s (answer length=%d)", sess.ID, from, sess.State, len(ev.Text))

	if sess.State == model.StateComplete {
		return e.complete(ctx, sess, out)
	}

	err := out.Send(ctx, sess.ID, e.question(sess.State, ""))
	return model.Outcome{
		Kind:  model.OutcomeContinue,
		Next:  sess.State,
		Slots: sess.Snapshot(),
	}, wrapSend(err)
}

func (e *Engine) start(ctx context.Context, sess *model.Session, out Sender) (model.Outcome, error) {
	if sess.State.Awaiting() {
		log.Printf("[dialogue] session=%s restarted from %s, %d answers discarded", sess.ID, sess.State, len(sess.Slots))
	}
	sess.Begin()

	err := out.Send(ctx, sess.ID, e.question(sess.State, e.locale.Greeting))
	return model.Outcome{
		Kind:  model.OutcomeContinue,
		Next:  sess.State,
		Slots: sess.Snapshot(),
	}, wrapSend(err)
}

func (e *Engine) cancel(ctx context.Context, sess *model.Session, out Sender) (model.Outcome, error) {
	slots := sess.Snapshot()
	log.Printf("[dialogue] session=%s cancelled at %s", sess.ID, sess.State)
	sess.Reset()

	err := out.Send(ctx, sess.ID, model.Reply{
		Kind:    model.ReplyCancelled,
		Text:    e.locale.Cancelled,
		Options: e.restartMenu(),
	})
	return model.Outcome{
		Kind:  model.OutcomeCancelled,
		Next:  model.StateTerminated,
		Slots: slots,
	}, wrapSend(err)
}

func (e *Engine) idle(ctx context.Context, sess *model.Session, out Sender) (model.Outcome, error) {
	err := out.Send(ctx, sess.ID, model.Reply{
		Kind:    model.ReplyHint,
		Text:    e.locale.Idle,
		Options: e.restartMenu(),
	})
	return model.Outcome{Kind: model.OutcomeIdle, Next: sess.State}, wrapSend(err)
}

// complete acknowledges, generates, and delivers the recommendation. The session is
// reset on every path, including generation and delivery failures.
func (e *Engine) complete(ctx context.Context, sess *model.Session, out Sender) (model.Outcome, error) {
	slots := sess.Snapshot()
	defer sess.Reset()

	outcome := model.Outcome{
		Kind:  model.OutcomeCompleted,
		Next:  model.StateComplete,
		Slots: slots,
	}

	var (
		ackErr error
		text   string
		err    = ErrIncompleteSession
	)
	if sess.Complete() {
		ackErr = out.Send(ctx, sess.ID, model.Reply{Kind: model.ReplyProcessing, Text: e.locale.Processing})
		if ackErr != nil {
			log.Printf("[dialogue] session=%s processing notice not delivered: %v", sess.ID, ackErr)
		}
		text, err = e.generate(ctx, slots, &outcome)
	}
	if err != nil {
		log.Printf("[dialogue] session=%s generation failed: %v", sess.ID, err)
		outcome.Kind = model.OutcomeFailed
		outcome.Reason = err.Error()
		text = fmt.Sprintf(e.locale.GenerationError, err)
	}

	clean := e.sanitizer.Clean(text)
	if outcome.Kind == model.OutcomeCompleted {
		outcome.Recommendation = clean
		log.Printf("[dialogue] session=%s completed, recommendation length=%d", sess.ID, len(clean))
	}

	resultErr := out.Send(ctx, sess.ID, model.Reply{
		Kind:    model.ReplyResult,
		Text:    e.envelope(clean),
		Options: e.restartMenu(),
	})
	return outcome, wrapSend(errors.Join(ackErr, resultErr))
}

func (e *Engine) generate(ctx context.Context, slots map[model.Slot]string, outcome *model.Outcome) (string, error) {
	prompt, err := e.prompts.Build(ctx, slots)
	if err != nil {
		return "", err
	}
	outcome.Prompt = prompt
	return e.generator.Generate(ctx, prompt)
}

func (e *Engine) question(state model.State, preface string) model.Reply {
	step, _ := e.locale.Step(state)

	var sb strings.Builder
	if preface != "" {
		sb.WriteString(preface)
		sb.WriteString("\n")
	}
	sb.WriteString(step.Question)
	if e.locale.Footer != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.locale.Footer)
	}

	return model.Reply{
		Kind:     model.ReplyQuestion,
		Text:     sb.String(),
		Options:  e.locale.Menu(state),
		Markdown: true,
	}
}

func (e *Engine) envelope(body string) string {
	return fmt.Sprintf("%s\n\n%s\n\n%s", e.locale.ResultHeader, body, e.locale.RestartHint)
}

func (e *Engine) restartMenu() [][]string {
	return [][]string{{e.startCommand}}
}

func wrapSend(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("deliver reply: %w", err)
}
