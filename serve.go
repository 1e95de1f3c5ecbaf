package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_vidqa/internal/askserver"
)

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and the MCP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				c.Port = port
			}
			a, err := buildApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcp.NewServer(&mcp.Implementation{
				Name:    "go_vidqa",
				Version: version,
			}, nil)
			askserver.RegisterTools(server, a.pipeline)

			cfg := askserver.Config{
				Asker:       a.pipeline,
				MCP:         server,
				CORSOrigins: c.CORSOrigins,
				Version:     version,
			}
			if a.history != nil {
				cfg.History = a.history
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("starting go_vidqa",
				slog.String("port", c.Port),
				slog.String("version", version),
				slog.Any("caption_languages", c.CaptionLanguages),
				slog.Any("cors_origins", c.CORSOrigins),
			)
			err = askserver.New(cfg).ListenAndServe(ctx, ":"+c.Port)
			if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	return cmd
}
