package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/air-quality-collector/internal/config"
	"github.com/i474232898/air-quality-collector/internal/logging"
	"github.com/i474232898/air-quality-collector/internal/mirror"
	"github.com/i474232898/air-quality-collector/internal/scheduler"
	"github.com/i474232898/air-quality-collector/internal/store"
	"github.com/i474232898/air-quality-collector/internal/weather"
	"github.com/i474232898/air-quality-collector/internal/weather/providers"
)

func newCollectCmd() *cobra.Command {
	var (
		every  time.Duration
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch current readings for every city and persist them",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Secrets are checked before any network or database activity.
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cmd.Flags().Changed("every") {
				every = cfg.CollectInterval
			}

			logger := logging.New(os.Stdout, cfg, appName)

			// Shared HTTP client for outbound API calls.
			httpClient := &http.Client{
				Timeout: cfg.HTTPTimeout,
			}
			provider := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL)

			var st weather.Store
			if dryRun {
				logger.Info("dry run: readings are kept in memory only", "max_history", cfg.DryRunMaxHistory)
				st = store.NewMemoryStore(cfg.DryRunMaxHistory)
			} else {
				db, err := store.Open(store.Options{
					Driver:       cfg.DBDriver,
					DSN:          cfg.DatabaseURL,
					MaxIdleConns: cfg.DBMaxIdleConns,
				})
				if err != nil {
					return err
				}
				defer db.Close()
				st = store.NewSQLStore(db, logger)
			}

			var opts []weather.Option
			if cfg.Influx.Enabled() {
				m := mirror.NewInfluxMirror(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
				defer m.Close()
				opts = append(opts, weather.WithMirror(m))
			}

			collector := weather.NewCollector(provider, st, cfg.Cities, logger, opts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if every <= 0 {
				collector.CollectAll(ctx)
				return nil
			}

			sched := scheduler.New(collector, every, logger)
			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer sched.Stop()

			logger.Info("scheduled collection started", "every", every.String())
			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		},
	}

	cmd.Flags().DurationVar(&every, "every", 0, "run on a schedule with this interval instead of once (e.g. 1h)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep readings in memory instead of writing to the database")
	return cmd
}
