package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/giantswarm/testcoord"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var smtpCmd = &cobra.Command{
	Use:   "smtp",
	Short: "Run smtp4dev on the group's ports until interrupted",
	Long: `Start smtp4dev on a free SMTP and web UI port of the selected group,
print its endpoints, and keep it running until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runSMTP,
}

func init() {
	smtpCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")
}

func runSMTP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coord, err := newCoordinator()
	if err != nil {
		return err
	}
	defer func() {
		if err := coord.Shutdown(); err != nil {
			slog.Warn("shutdown failed", "error", err)
		}
	}()

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		shutdownMetrics := serveMetrics(addr, coord)
		defer shutdownMetrics()
	}

	srv, err := coord.StartSMTP(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "SMTP:   %s\n", srv.Host())
	fmt.Fprintf(out, "Web UI: %s\n", srv.WebUIURL())

	select {
	case <-ctx.Done():
		return nil
	case <-srv.Process().Exited():
		return fmt.Errorf("smtp4dev exited unexpectedly: %s", srv.Process().Diagnostics())
	}
}

// serveMetrics exposes the coordinator's registry on addr and returns a
// function that stops the server.
func serveMetrics(addr string, coord testcoord.Coordinator) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(coord.Registry(), promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
