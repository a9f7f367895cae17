package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	model "github.com/tripmate/backend/internal/model/dialogue"
	"github.com/tripmate/backend/internal/service/dialogue"
	"github.com/tripmate/backend/internal/service/session"
	"github.com/tripmate/backend/pkg/utils"
)

// Handler 问卷会话的HTTP处理器
type Handler struct {
	sessions *session.Store
	dialogue *dialogue.Service
}

// New 创建会话处理器
func New(sessions *session.Store, dialogueSvc *dialogue.Service) *Handler {
	return &Handler{
		sessions: sessions,
		dialogue: dialogueSvc,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)
		r.Post("/start", h.handleStart)
		r.Post("/messages", h.handleMessage)
	})
}

type sessionView struct {
	ID        string      `json:"id"`
	State     model.State `json:"state"`
	Collected []string    `json:"collected"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// newSessionView lists the filled slots by name only. The answers go back to the
// client solely in the turnResponse of the request that submitted them.
func newSessionView(s model.Session) sessionView {
	view := sessionView{
		ID:        s.ID,
		State:     s.State,
		Collected: make([]string, 0, len(s.Slots)),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, slot := range model.Slots() {
		if _, ok := s.Slots[slot]; ok {
			view.Collected = append(view.Collected, string(slot))
		}
	}
	return view
}

// turnResponse carries Outcome.Slots with the raw answers collected so far.
type turnResponse struct {
	Outcome model.Outcome `json:"outcome"`
	Replies []model.Reply `json:"replies"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, newSessionView(sess))
}

// handleGetSession 查询会话状态
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, newSessionView(sess))
}

// handleDeleteSession 删除会话
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStart 开始或重新开始问卷
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	h.runTurn(w, r, func(ctx context.Context, out dialogue.Sender) (model.Outcome, error) {
		return h.dialogue.Start(ctx, sessionID, out)
	})
}

// handleMessage 提交一条用户输入
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	h.runTurn(w, r, func(ctx context.Context, out dialogue.Sender) (model.Outcome, error) {
		return h.dialogue.Submit(ctx, sessionID, payload.Text, out)
	})
}

func (h *Handler) runTurn(w http.ResponseWriter, r *http.Request, turn func(context.Context, dialogue.Sender) (model.Outcome, error)) {
	rec := &dialogue.Recorder{}
	outcome, err := turn(r.Context(), rec)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if outcome.Kind == model.OutcomeFailed {
		log.Printf("[session] generation failed: %s", outcome.Reason)
	}
	utils.RespondJSON(w, http.StatusOK, turnResponse{Outcome: outcome, Replies: rec.Replies})
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionIDRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.RespondError(w, http.StatusServiceUnavailable, "session is busy")
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
