package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"notebook_server_go/auth"
	"notebook_server_go/controllers"
	"notebook_server_go/metrics"
	"notebook_server_go/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, files, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	defer files.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	folders := services.NewFolderService(store, files, m, a.log)
	deps := controllers.Dependencies{
		Store:          store,
		Files:          files,
		Folders:        folders,
		Uploads:        services.NewUploadService(store, files, folders, m, a.log),
		Metrics:        m,
		Log:            a.log,
		MaxUploadBytes: a.settings.Storage.MaxUploadBytes(),
		CORSOrigins:    a.settings.Server.CORSOrigins,
		StaticDir:      a.settings.Server.StaticDir,
	}
	if a.settings.Auth.Enabled() {
		tokens, err := auth.NewTokenService(a.settings.Auth.JWTSecret, a.settings.Auth.TokenTTL)
		if err != nil {
			return err
		}
		deps.Tokens = tokens
		deps.OwnerPasswordHash = a.settings.Auth.OwnerPasswordHash
	} else {
		a.log.Warn().Msg("owner authentication disabled, the API is open to anyone who can reach it")
	}

	srv := &http.Server{
		Addr:              listenAddr(a.settings.Server.Port),
		Handler:           controllers.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("uploads", files.Dir()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// listenAddr accepts a bare port or a host:port pair.
func listenAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return net.JoinHostPort("", port)
}
