package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tripcli",
	Short: "Run the travel questionnaire from a terminal",
	Long:  `tripcli drives the travel recommendation questionnaire from the console. It uses the same configuration as the API server, so the recommendation backend and language follow the environment (.env is loaded when present).`,
	SilenceUsage: true,
}

var cliLanguage string

func init() {
	rootCmd.PersistentFlags().StringVar(&cliLanguage, "lang", "", "Questionnaire language (overrides DIALOGUE_LANGUAGE)")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
