package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/example/roster/internal/ports/primary"
	"github.com/example/roster/internal/wire"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Tick every persona on a schedule and serve metrics",
	Long: `Run tick-all immediately and then on every --every interval until
interrupted. Prometheus metrics are served on metrics.addr at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		every, _ := cmd.Flags().GetDuration("every")
		if every <= 0 {
			return fmt.Errorf("--every must be positive")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := wire.Config()
		logger := wire.Logger().With("component", "serve")
		svc := wire.TickService()

		var srv *http.Server
		if cfg.Metrics.Addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server stopped", "error", err)
				}
			}()
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
		}

		runTicks(ctx, svc, every, logger)

		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
		return nil
	},
}

// runTicks issues tick-all now and on every interval until ctx is done.
// Per-persona failures are logged; the loop keeps going.
func runTicks(ctx context.Context, svc primary.TickService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		res, err := svc.TickAll(ctx, primary.TickAllRequest{})
		switch {
		case err != nil:
			logger.Warn("tick-all interrupted", "error", err)
		case res.Failed > 0:
			logger.Warn("tick-all finished with failures", "cycles", len(res.Results), "failed", res.Failed)
		default:
			logger.Info("tick-all finished", "cycles", len(res.Results))
		}

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
		}
	}
}

func init() {
	serveCmd.Flags().Duration("every", 15*time.Minute, "Interval between tick-all runs")
}

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	return serveCmd
}
