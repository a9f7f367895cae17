package questionnaire

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tripmate/backend/internal/model/dialogue"
	"github.com/tripmate/backend/internal/model/questionnaire"
	"github.com/tripmate/backend/pkg/utils"
)

// Handler 问卷定义的HTTP处理器
type Handler struct {
	locales         questionnaire.Store
	defaultLanguage string
	startCommand    string
}

// New 创建问卷处理器
func New(locales questionnaire.Store, defaultLanguage, startCommand string) *Handler {
	return &Handler{
		locales:         locales,
		defaultLanguage: defaultLanguage,
		startCommand:    startCommand,
	}
}

// RegisterRoutes 注册问卷相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/questionnaire", h.handleGetQuestionnaire)
}

type stepView struct {
	State    dialogue.State `json:"state"`
	Question string         `json:"question"`
	Options  [][]string     `json:"options"`
}

type questionnaireView struct {
	Language     string     `json:"language"`
	Languages    []string   `json:"languages"`
	StartCommand string     `json:"startCommand"`
	Exit         string     `json:"exit"`
	Greeting     string     `json:"greeting"`
	Steps        []stepView `json:"steps"`
}

// handleGetQuestionnaire 返回问题、菜单和退出短语
func (h *Handler) handleGetQuestionnaire(w http.ResponseWriter, r *http.Request) {
	lang := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("lang")))
	if lang == "" {
		lang = h.defaultLanguage
	}

	locale, err := questionnaire.Resolve(h.locales, lang, h.startCommand)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error()+": "+lang)
		return
	}

	view := questionnaireView{
		Language:     locale.Language,
		Languages:    h.locales.Languages(),
		StartCommand: h.startCommand,
		Exit:         locale.Exit,
		Greeting:     locale.Greeting,
	}
	for _, state := range dialogue.AwaitingStates() {
		step, _ := locale.Step(state)
		view.Steps = append(view.Steps, stepView{
			State:    state,
			Question: step.Question,
			Options:  locale.Menu(state),
		})
	}

	utils.RespondJSON(w, http.StatusOK, view)
}
