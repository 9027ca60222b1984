package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/canvas-api-client/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only Canvas proxy with health and metrics endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				port = a.cfg.Port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info().
				Str("user_agent", a.cfg.UserAgent).
				Bool("redis", a.persistent()).
				Msg("Canvas proxy configured")

			return server.New(a.client, a.redis, a.logger).ListenAndServe(ctx, ":"+port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (default PORT or 8080)")
	return cmd
}
