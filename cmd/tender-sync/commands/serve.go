package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/galois26/tender-sync/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync on an interval and expose /metrics and /healthz",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx, cfg, log, false)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := metrics.NewServer(cfg.Metrics, a.reg)
		go func() {
			log.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", "err", err)
				cancel()
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()

		log.Info("tender-sync started", "version", version, "sources", len(cfg.Sources), "interval", cfg.Sync.Interval)
		runCycle := func() {
			if _, err := a.runOnce(ctx); err != nil {
				// the next cycle retries; records were not marked as seen
				log.Error("delivery failed", "err", err)
			}
		}
		runCycle()

		ticker := time.NewTicker(cfg.Sync.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info("stopping", "reason", context.Cause(ctx))
				return nil
			case <-ticker.C:
				runCycle()
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
