package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/air-quality-collector/internal/api/http"
	"github.com/i474232898/air-quality-collector/internal/config"
	"github.com/i474232898/air-quality-collector/internal/logging"
	"github.com/i474232898/air-quality-collector/internal/store"
	"github.com/i474232898/air-quality-collector/internal/weather"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve latest readings and statistics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadReadOnly()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := logging.New(os.Stdout, cfg, appName)

			db, err := store.Open(store.Options{
				Driver:       cfg.DBDriver,
				DSN:          cfg.DatabaseURL,
				MaxIdleConns: 2,
			})
			if err != nil {
				return err
			}
			defer db.Close()
			sqlStore := store.NewSQLStore(db, log)

			// Basic app configuration
			app := fiber.New(fiber.Config{
				AppName:               appName,
				DisableStartupMessage: true,
				ReadTimeout:           10 * time.Second,
				WriteTimeout:          10 * time.Second,
				ErrorHandler: func(c *fiber.Ctx, err error) error {
					// Centralized error response
					code := fiber.StatusInternalServerError
					if e, ok := err.(*fiber.Error); ok {
						code = e.Code
					}
					return c.Status(code).JSON(fiber.Map{
						"error":   true,
						"message": err.Error(),
					})
				},
			})

			// Global middleware
			app.Use(logger.New())
			app.Use(recover.New())

			httpapi.RegisterRoutes(app, httpapi.Deps{
				Reader: sqlStore,
				Stats:  weather.NewStatsService(sqlStore, nil),
				Pinger: sqlStore,
				Cities: cfg.Cities,
			})

			go func() {
				log.Info("http server listening", "port", cfg.Port)
				if err := app.Listen(":" + cfg.Port); err != nil {
					log.Error("fiber server stopped", "error", err)
				}
			}()

			// Wait for termination signal
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				log.Error("error during shutdown", "error", err)
			}
			return nil
		},
	}
}
