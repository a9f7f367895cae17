package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	model "github.com/tripmate/backend/internal/model/dialogue"
	"github.com/tripmate/backend/internal/service/dialogue"
	"github.com/tripmate/backend/internal/service/session"
	"github.com/tripmate/backend/pkg/utils"
)

var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Handler delivers dialogue replies as Server-Sent Events, one event per reply,
// flushed as soon as the engine emits it.
type Handler struct {
	sessions *session.Store
	dialogue *dialogue.Service
}

// New creates a new stream handler
func New(sessions *session.Store, dialogueSvc *dialogue.Service) *Handler {
	return &Handler{
		sessions: sessions,
		dialogue: dialogueSvc,
	}
}

// StreamResponse represents one SSE chunk. Event repeats the SSE event name for
// clients that only read the data lines.
type StreamResponse struct {
	Event     string         `json:"event"`
	SessionID string         `json:"sessionId,omitempty"`
	Reply     *model.Reply   `json:"reply,omitempty"`
	Outcome   *model.Outcome `json:"outcome,omitempty"`
	Finished  bool           `json:"finished,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// sseSender implements dialogue.Sender over an open event stream.
type sseSender struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSender) Send(_ context.Context, sessionID string, reply model.Reply) error {
	return utils.SendSSEEvent(s.w, s.flusher, "reply", StreamResponse{
		Event:     "reply",
		SessionID: sessionID,
		Reply:     &reply,
	})
}

// HandleStreamRequest applies message to the session and streams the replies.
// Errors before the stream opens are answered as plain JSON errors.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, message string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, ErrStreamingUnsupported.Error())
		return ErrStreamingUnsupported
	}

	if _, err := h.sessions.Get(ctx, sessionID); err != nil {
		status := http.StatusNotFound
		if !errors.Is(err, session.ErrSessionNotFound) {
			status = http.StatusServiceUnavailable
		}
		utils.RespondError(w, status, err.Error())
		return fmt.Errorf("resolve session %s: %w", sessionID, err)
	}

	utils.SetupSSEHeaders(w)
	out := &sseSender{w: w, flusher: flusher}

	outcome, err := h.dialogue.Submit(ctx, sessionID, message, out)
	if err != nil {
		h.sendSSEError(w, flusher, sessionID, err)
		return err
	}

	if err := utils.SendSSEEvent(w, flusher, "outcome", StreamResponse{
		Event:     "outcome",
		SessionID: sessionID,
		Outcome:   &outcome,
		Finished:  true,
	}); err != nil {
		return err
	}

	log.Printf("[stream] session=%s outcome=%s", sessionID, outcome.Kind)
	return nil
}

func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, sessionID string, cause error) {
	if err := utils.SendSSEEvent(w, flusher, "error", StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     cause.Error(),
		Finished:  true,
	}); err != nil {
		log.Printf("[stream] session=%s error event not delivered: %v", sessionID, err)
	}
}
