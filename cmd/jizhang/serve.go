package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"jizhang/internal/backend"
	"jizhang/internal/cli"
	apphttp "jizhang/internal/http"
	"jizhang/internal/log"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var flagPort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagPort, "port", "p", "", "Override PORT")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := cli.SignalContext(cmd.Context(), appLogger)
	defer cancel()

	port := appConfig.Port
	if flagPort != "" {
		port = flagPort
	}

	return withBackend(ctx, func(res *backend.BackendResult) error {
		srv := apphttp.NewServer(":"+port, res.Service, apphttp.Options{
			Logger:         appLogger,
			RequestTimeout: appConfig.RequestTimeout,
		})
		srv.MaxHeaderBytes = 1 << 16

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			appLogger.Info("Starting jizhang server", "port", port, "backend", appConfig.DataBackend)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				appLogger.Error("Server shutdown error", log.FieldError, err, log.FieldOperation, log.OpShutdown)
				return err
			}
			appLogger.Info("Server stopped gracefully")
			return nil
		})
		return g.Wait()
	})
}
