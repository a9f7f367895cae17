package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tripmate/backend/internal/handler/chat"
	"github.com/tripmate/backend/internal/handler/questionnaire"
	"github.com/tripmate/backend/internal/handler/stream"
	"github.com/tripmate/backend/internal/handler/ws"
	middlewarePkg "github.com/tripmate/backend/internal/middleware"
	questionnaireModel "github.com/tripmate/backend/internal/model/questionnaire"
	"github.com/tripmate/backend/internal/service/dialogue"
	"github.com/tripmate/backend/internal/service/session"
	"github.com/tripmate/backend/pkg/utils"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	Locales         questionnaireModel.Store
	DefaultLanguage string
	StartCommand    string
	Sessions        *session.Store
	Dialogue        *dialogue.Service
	Provider        string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"provider": deps.Provider,
			"sessions": deps.Sessions.Len(),
		})
	})

	// Create handlers
	questionnaireHandler := questionnaire.New(deps.Locales, deps.DefaultLanguage, deps.StartCommand)
	chatHandler := chat.New(deps.Sessions, deps.Dialogue)
	streamHandler := stream.New(deps.Sessions, deps.Dialogue)
	wsHandler := ws.New(deps.Sessions, deps.Dialogue)

	r.Route("/api", func(api chi.Router) {
		questionnaireHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
