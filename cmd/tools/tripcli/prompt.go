package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	model "github.com/tripmate/backend/internal/model/dialogue"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the recommendation prompt for a set of answers",
	RunE:  runPrompt,
}

var promptSlots = map[model.Slot]*string{}

func init() {
	for _, slot := range model.Slots() {
		value := new(string)
		promptSlots[slot] = value
		promptCmd.Flags().StringVar(value, string(slot), "", fmt.Sprintf("Answer for %s", slot))
		_ = promptCmd.MarkFlagRequired(string(slot))
	}
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx, true)
	if err != nil {
		return err
	}

	slots := make(map[model.Slot]string, len(promptSlots))
	for slot, value := range promptSlots {
		slots[slot] = *value
	}

	prompt, err := a.Engine.Prompt(ctx, slots)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), prompt)
	return err
}
