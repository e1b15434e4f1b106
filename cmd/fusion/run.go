package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-decision-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-decision-engine/internal/pipeline"
	"github.com/ducminhle1904/crypto-decision-engine/internal/scheduler"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/reporting"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run decision cycles continuously on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := a.log.Component("run")

			var server *http.Server
			if cfg.Monitoring.Enabled {
				server = newMonitoringServer(cfg.Monitoring.Addr, a.health)
				go func() {
					log.Info().Str("addr", cfg.Monitoring.Addr).Msg("monitoring server listening")
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Msg("monitoring server failed")
					}
				}()
			}

			out := cmd.OutOrStdout()
			onBatch := func(results []pipeline.CycleResult) {
				var decisions []types.TradeDecision
				for _, r := range results {
					if r.Err == nil {
						decisions = append(decisions, r.Report.Decision)
					}
				}
				if flags.json {
					if err := reporting.WriteRecords(out, decisions); err != nil {
						log.Error().Err(err).Msg("failed to write decision records")
					}
					return
				}
				if len(decisions) > 0 {
					reporting.RenderDecisions(out, decisions)
				}
			}

			sched := scheduler.New(a.engine, cfg.Symbols, a.log.Component("scheduler"), onBatch)
			if err := sched.Register(cfg.Schedule.Cron); err != nil {
				return err
			}
			if !skipInitial {
				sched.RunNow(ctx)
			}
			sched.Start(ctx)

			<-ctx.Done()
			log.Info().Msg("shutting down")
			sched.Stop()

			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("monitoring server shutdown")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "no-initial", false, "wait for the first scheduled tick instead of running immediately")
	return cmd
}

func newMonitoringServer(addr string, health http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.MetricsHandler())
	mux.Handle("/health", health)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
