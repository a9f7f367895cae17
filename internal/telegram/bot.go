// Package telegram delivers the questionnaire over the Telegram Bot API with
// long polling and reply keyboards.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	model "github.com/tripmate/backend/internal/model/dialogue"
	"github.com/tripmate/backend/internal/service/dialogue"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SessionOpener creates the session of a chat on first contact.
type SessionOpener interface {
	Open(ctx context.Context, id string) (model.Session, error)
}

// Bot routes chat messages into the dialogue service.
type Bot struct {
	api         API
	sessions    SessionOpener
	dialogue    *dialogue.Service
	pollTimeout int

	mu      sync.Mutex
	pending map[int64][]*tgbotapi.Message
	wg      sync.WaitGroup
}

// NewBotAPI authorizes token against Telegram.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	api.Debug = debug
	log.Printf("[telegram] authorized as @%s", api.Self.UserName)
	return api, nil
}

// New creates a bot over api.
func New(api API, sessions SessionOpener, dialogueSvc *dialogue.Service, pollTimeout int) *Bot {
	return &Bot{
		api:         api,
		sessions:    sessions,
		dialogue:    dialogueSvc,
		pollTimeout: pollTimeout,
		pending:     make(map[int64][]*tgbotapi.Message),
	}
}

// SessionID maps a chat to its dialogue session.
func SessionID(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// Run polls for updates until ctx ends, then waits for chats being handled.
// Messages already received are answered even after ctx ends.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	work := context.WithoutCancel(ctx)

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(work, update)
		}
	}
}

// HandleUpdate queues a text message for its chat. Chats are handled concurrently;
// messages of one chat are handled in arrival order.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return
	}

	chatID := msg.Chat.ID
	b.mu.Lock()
	queue, running := b.pending[chatID]
	b.pending[chatID] = append(queue, msg)
	b.mu.Unlock()

	if running {
		return
	}
	b.wg.Add(1)
	go b.drain(ctx, chatID)
}

// Wait blocks until every queued message has been handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) drain(ctx context.Context, chatID int64) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		queue := b.pending[chatID]
		if len(queue) == 0 {
			delete(b.pending, chatID)
			b.mu.Unlock()
			return
		}
		msg := queue[0]
		b.pending[chatID] = queue[1:]
		b.mu.Unlock()

		b.handleMessage(ctx, msg)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	sessionID := SessionID(msg.Chat.ID)
	if _, err := b.sessions.Open(ctx, sessionID); err != nil {
		log.Printf("[telegram] chat=%d open session failed: %v", msg.Chat.ID, err)
		return
	}

	out := &chatSender{api: b.api, chatID: msg.Chat.ID}
	outcome, err := b.dialogue.Submit(ctx, sessionID, msg.Text, out)
	if err != nil {
		log.Printf("[telegram] chat=%d turn failed: %v", msg.Chat.ID, err)
		return
	}
	if outcome.Terminal() {
		log.Printf("[telegram] chat=%d questionnaire %s", msg.Chat.ID, outcome.Kind)
	}
}

// chatSender implements dialogue.Sender for one chat.
type chatSender struct {
	api    API
	chatID int64
}

func (s *chatSender) Send(_ context.Context, _ string, reply model.Reply) error {
	msg := tgbotapi.NewMessage(s.chatID, reply.Text)
	if reply.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(reply.Options) > 0 {
		msg.ReplyMarkup = Keyboard(reply.Options)
	}
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", s.chatID, err)
	}
	return nil
}

// Keyboard renders option rows as a resizable reply keyboard.
func Keyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			line = append(line, tgbotapi.NewKeyboardButton(label))
		}
		buttons = append(buttons, line)
	}
	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.ResizeKeyboard = true
	return kb
}
