package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotecheck/internal/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verification HTTP API",
	Long: `Start the HTTP API. Semantic search is enabled when an embedding
provider can be created; verification works without one.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(a *app) error {
		_, embedErr := a.openEmbedder()
		if embedErr != nil {
			a.logger.Warn(ctx, "embedding provider unavailable; confidence scoring and search disabled", zap.Error(embedErr))
		}

		svc, err := a.verificationService(ctx, embedErr == nil)
		if err != nil {
			return err
		}

		var searcher http.Searcher
		if embedErr == nil {
			ix, err := a.newIndexer(ctx)
			if err != nil {
				return err
			}
			searcher = ix
		}

		srv, err := http.NewServer(svc, searcher, a.logger, &http.Config{
			Host:    a.cfg.Server.Host,
			Port:    a.cfg.Server.Port,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, nethttp.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
