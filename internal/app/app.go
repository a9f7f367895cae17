// Package app assembles the dialogue stack from configuration.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/tripmate/backend/internal/config"
	"github.com/tripmate/backend/internal/model/questionnaire"
	"github.com/tripmate/backend/internal/service/ai"
	"github.com/tripmate/backend/internal/service/dialogue"
	"github.com/tripmate/backend/internal/service/gigachat"
	"github.com/tripmate/backend/internal/service/session"
)

// App holds the wired services shared by every transport.
type App struct {
	Provider string
	Locales  questionnaire.Store
	Locale   questionnaire.Locale
	Engine   *dialogue.Engine
	Sessions *session.Store
	Dialogue *dialogue.Service
}

// New builds the stack with the generator selected by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	gen, provider, err := NewGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithGenerator(cfg.Dialogue, gen, provider)
}

// NewWithGenerator builds the stack around an explicit generator.
func NewWithGenerator(cfg config.DialogueConfig, gen dialogue.Generator, provider string) (*App, error) {
	seed, err := questionnaire.Seed()
	if err != nil {
		return nil, fmt.Errorf("load questionnaire: %w", err)
	}
	locales := questionnaire.NewMemoryStore(seed)

	locale, err := questionnaire.Resolve(locales, cfg.Language, cfg.StartCommand)
	if err != nil {
		return nil, fmt.Errorf("DIALOGUE_LANGUAGE %q: %w", cfg.Language, err)
	}

	engine, err := dialogue.NewEngine(dialogue.Config{
		Locale:       locale,
		StartCommand: cfg.StartCommand,
		Generator:    gen,
		StripChars:   cfg.StripChars,
	})
	if err != nil {
		return nil, fmt.Errorf("create dialogue engine: %w", err)
	}

	sessions := session.NewStore(cfg.SessionTTL)
	return &App{
		Provider: provider,
		Locales:  locales,
		Locale:   locale,
		Engine:   engine,
		Sessions: sessions,
		Dialogue: dialogue.NewService(engine, sessions),
	}, nil
}

// NewGenerator returns the recommendation backend chosen by AI_PROVIDER.
func NewGenerator(ctx context.Context, cfg *config.Config) (dialogue.Generator, string, error) {
	provider, err := cfg.Provider()
	if err != nil {
		return nil, "", err
	}

	if provider == config.ProviderGigaChat {
		client, err := gigachat.NewClient(gigachat.Options{
			ClientID:     cfg.GigaChat.ClientID,
			ClientSecret: cfg.GigaChat.ClientSecret,
			Scope:        cfg.GigaChat.Scope,
			Model:        cfg.GigaChat.Model,
			OAuthURL:     cfg.GigaChat.OAuthURL,
			APIURL:       cfg.GigaChat.APIURL,
			InsecureTLS:  cfg.GigaChat.InsecureTLS,
			Timeout:      cfg.GigaChat.Timeout,
		})
		if err != nil {
			return nil, "", err
		}
		log.Printf("[app] recommendation backend: gigachat model=%s", cfg.GigaChat.Model)
		return client, provider, nil
	}

	chatModel, err := cfg.NewChatModel(ctx, provider)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create chat model: %w", err)
	}
	svc, err := ai.NewService(ctx, chatModel, provider)
	if err != nil {
		return nil, "", err
	}
	log.Printf("[app] recommendation backend: %s", provider)
	return svc, provider, nil
}
