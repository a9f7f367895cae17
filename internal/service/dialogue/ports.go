package dialogue

import (
	"context"

	model "github.com/tripmate/backend/internal/model/dialogue"
)

// Generator turns an assembled prompt into recommendation text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Sender delivers one reply to the user behind sessionID.
type Sender interface {
	Send(ctx context.Context, sessionID string, reply model.Reply) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, sessionID string, reply model.Reply) error

func (f SenderFunc) Send(ctx context.Context, sessionID string, reply model.Reply) error {
	return f(ctx, sessionID, reply)
}

// Recorder is a Sender that keeps every reply in order. Transports that answer a
// whole request at once (REST) use it to collect the replies of one event.
type Recorder struct {
	Replies []model.Reply
}

func (r *Recorder) Send(_ context.Context, _ string, reply model.Reply) error {
	r.Replies = append(r.Replies, reply)
	return nil
}
