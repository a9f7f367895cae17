package dialogue

import (
	"context"

	model "github.com/tripmate/backend/internal/model/dialogue"
)

// SessionStore hands out exclusive access to session records.
type SessionStore interface {
	Do(ctx context.Context, id string, fn func(*model.Session) error) error
}

// Service routes inbound text to the engine under the store's per-session lock,
// so transports never touch a session record directly.
type Service struct {
	engine   *Engine
	sessions SessionStore
}

// NewService pairs an engine with the store owning the sessions.
func NewService(engine *Engine, sessions SessionStore) *Service {
	return &Service{engine: engine, sessions: sessions}
}

// Engine exposes the underlying engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Submit classifies raw text and applies it to the session.
func (s *Service) Submit(ctx context.Context, sessionID, text string, out Sender) (model.Outcome, error) {
	return s.Dispatch(ctx, s.engine.Classifier().Classify(sessionID, text), out)
}

// Start is the start trigger for transports that expose it as an explicit action.
func (s *Service) Start(ctx context.Context, sessionID string, out Sender) (model.Outcome, error) {
	return s.Dispatch(ctx, model.Event{
		SessionID: sessionID,
		Text:      s.engine.startCommand,
		IsStart:   true,
	}, out)
}

// Cancel is the cancel command for transports that expose it as an explicit action.
func (s *Service) Cancel(ctx context.Context, sessionID string, out Sender) (model.Outcome, error) {
	return s.Dispatch(ctx, model.Event{
		SessionID: sessionID,
		Text:      s.engine.locale.Exit,
		IsCancel:  true,
	}, out)
}

// Dispatch applies an already classified event. Store errors (unknown session,
// ctx ended while waiting) come back with a zero Outcome.
func (s *Service) Dispatch(ctx context.Context, ev model.Event, out Sender) (model.Outcome, error) {
	var outcome model.Outcome
	err := s.sessions.Do(ctx, ev.SessionID, func(sess *model.Session) error {
		var handleErr error
		outcome, handleErr = s.engine.Handle(ctx, sess, ev, out)
		return handleErr
	})
	return outcome, err
}
