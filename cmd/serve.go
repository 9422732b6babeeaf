package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Selleo/mentingo-sub006/api"
	"github.com/Selleo/mentingo-sub006/internal/app"
	"github.com/Selleo/mentingo-sub006/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		a, err := app.Setup(ctx, cfg)
		if err != nil {
			return fmt.Errorf("setting up application: %w", err)
		}
		defer func() {
			if err := a.Close(); err != nil {
				a.Logger.Warn("closing application", "error", err)
			}
		}()

		server := api.NewServer(a.Mentor, a.Documents, a.DBPool, a.Logger)
		return server.Run(ctx, cfg.ServerAddr())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
