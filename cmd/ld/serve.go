package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"leavedesk/internal/logging"
	"leavedesk/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	var cacheSize int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the view API",
		Long:  "Serves approvals, history and actions as JSON for web views. Callers authenticate with their own backend token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			log := logging.Component("server")

			hooks, err := server.StartWebhooks(a.Bus, a.Config.Webhooks, logging.Component("webhooks"))
			if err != nil {
				return err
			}
			defer hooks.Close()

			handler, err := server.New(server.Config{
				NewEngine:       a.NewEngine,
				Repo:            a.Repo,
				BasePath:        basePath,
				PageSize:        a.Config.Views.PageSize,
				EngineCacheSize: cacheSize,
				Log:             log,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			// ListenAndServe returns as soon as Shutdown starts; in-flight
			// handlers may still publish, so hooks close only after drained.
			drained := make(chan struct{})
			go func() {
				defer close(drained)
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("shutdown")
				}
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Serving Leavedesk API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			log.Info().Str("addr", addr).Str("backend", a.Config.Backend.BaseURL).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			<-drained
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().IntVar(&cacheSize, "engine-cache", 256, "tokens kept warm in memory")
	return cmd
}
