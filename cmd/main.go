package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"chat-widget/internal/config"
	"chat-widget/internal/logging"
)

var envFile string

func main() {
	root := &cobra.Command{
		Use:           "chat-widget",
		Short:         "Embeddable chat widget backend and terminal client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")

	root.AddCommand(newServeCommand(), newLambdaCommand(), newChatCommand())

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the process logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logging.New(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}
