package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tripmate/backend/internal/app"
	"github.com/tripmate/backend/internal/config"
	model "github.com/tripmate/backend/internal/model/dialogue"
	"github.com/tripmate/backend/internal/service/dialogue"
)

const consoleSessionID = "console"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Answer the questionnaire interactively",
	RunE:  runChat,
}

var chatEcho bool

func init() {
	chatCmd.Flags().BoolVar(&chatEcho, "echo", false, "Answer with the assembled prompt instead of calling a model")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx, chatEcho)
	if err != nil {
		return err
	}
	if _, err := a.Sessions.Open(ctx, consoleSessionID); err != nil {
		return err
	}

	out := &consoleSender{w: cmd.OutOrStdout()}
	if _, err := a.Dialogue.Start(ctx, consoleSessionID, out); err != nil {
		return err
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		outcome, err := a.Dialogue.Submit(ctx, consoleSessionID, scanner.Text(), out)
		if err != nil {
			return err
		}
		if outcome.Kind == model.OutcomeCancelled {
			return nil
		}
	}
	return scanner.Err()
}

// buildApp loads configuration; echo mode needs no model credentials.
func buildApp(ctx context.Context, echo bool) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cliLanguage != "" {
		cfg.Dialogue.Language = strings.ToLower(cliLanguage)
	}
	if echo {
		return app.NewWithGenerator(cfg.Dialogue, echoGenerator(), "echo")
	}
	return app.New(ctx, cfg)
}

func echoGenerator() dialogue.Generator {
	return dialogue.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		return prompt, nil
	})
}

// consoleSender prints replies with their quick-reply options.
type consoleSender struct {
	w io.Writer
}

func (s *consoleSender) Send(_ context.Context, _ string, reply model.Reply) error {
	if _, err := fmt.Fprintln(s.w, reply.Text); err != nil {
		return err
	}
	for _, row := range reply.Options {
		if _, err := fmt.Fprintf(s.w, "  [%s]\n", strings.Join(row, "] [")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(s.w)
	return err
}
