package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tripmate/backend/internal/app"
	"github.com/tripmate/backend/internal/config"
	"github.com/tripmate/backend/internal/handler"
	"github.com/tripmate/backend/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize dialogue services: %v", err)
	}
	log.Printf("questionnaire language=%s start=%s session ttl=%s",
		application.Locale.Language, cfg.Dialogue.StartCommand, cfg.Dialogue.SessionTTL)

	var bot *telegram.Bot
	if cfg.Telegram.Enabled() {
		api, err := telegram.NewBotAPI(cfg.Telegram.Token, cfg.Telegram.Debug)
		if err != nil {
			log.Printf("warning: failed to initialize Telegram bot: %v", err)
			log.Println("continuing with HTTP transports only")
		} else {
			bot = telegram.New(api, application.Sessions, application.Dialogue, cfg.Telegram.PollTimeout)
		}
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, Telegram transport disabled")
	}

	router := handler.NewRouter(handler.Dependencies{
		Locales:         application.Locales,
		DefaultLanguage: application.Locale.Language,
		StartCommand:    cfg.Dialogue.StartCommand,
		Sessions:        application.Sessions,
		Dialogue:        application.Dialogue,
		Provider:        application.Provider,
	})

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		if bot == nil {
			return
		}
		if err := bot.Run(ctx); err != nil {
			log.Printf("telegram bot stopped: %v", err)
		}
	}()

	startServer(ctx, cfg.Server, router)
	<-botDone
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Tripmate backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
