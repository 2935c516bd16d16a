package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/orthoflow/orthoflow/internal/api_server"
	"github.com/orthoflow/orthoflow/internal/config"
	"github.com/orthoflow/orthoflow/internal/executor"
	handlers "github.com/orthoflow/orthoflow/internal/handlers/v1alpha1"
	"github.com/orthoflow/orthoflow/internal/notifier"
	"github.com/orthoflow/orthoflow/internal/odm"
	"github.com/orthoflow/orthoflow/internal/pipeline"
	"github.com/orthoflow/orthoflow/internal/service"
	"github.com/orthoflow/orthoflow/internal/storage"
	"github.com/orthoflow/orthoflow/internal/store"
	"github.com/orthoflow/orthoflow/pkg/metrics"
	"github.com/orthoflow/orthoflow/pkg/migrations"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orthoflow api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		flush := setupLogger(cfg)
		defer flush()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		location, err := time.LoadLocation(cfg.Pipeline.Timezone)
		if err != nil {
			zap.S().Warnw("unknown timezone, using UTC", "timezone", cfg.Pipeline.Timezone, "error", err)
			location = time.UTC
		}

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if cfg.Database.Type == "pgsql" {
			if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
		} else if err := s.InitialMigration(); err != nil {
			return fmt.Errorf("running initial migration: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("accessing the database pool: %w", err)
		}

		artifacts, err := storage.NewMinioStore(
			storage.WithEndpoint(cfg.Storage.Endpoint),
			storage.WithRegion(cfg.Storage.Region),
			storage.WithAccessKey(cfg.Storage.AccessKey),
			storage.WithSecretKey(cfg.Storage.SecretKey),
			storage.WithSSL(cfg.Storage.UseSSL),
			storage.WithInputBucket(cfg.Storage.InputBucket),
			storage.WithOutputBucket(cfg.Storage.OutputBucket),
			storage.WithPublicBaseURL(cfg.Storage.PublicBaseURL),
		)
		if err != nil {
			return fmt.Errorf("creating object storage client: %w", err)
		}

		node, err := odm.NewClient(
			cfg.ODM.URL,
			odm.WithToken(cfg.ODM.Token),
			odm.WithRequestTimeout(cfg.ODM.RequestTimeout),
			odm.WithMaxPollErrors(cfg.ODM.MaxPollErrors),
		)
		if err != nil {
			return fmt.Errorf("creating processing node client: %w", err)
		}

		presets, err := config.LoadPresets(cfg.Pipeline.PresetsFile)
		if err != nil {
			return err
		}
		preset := presets.Resolve(cfg.Pipeline.Preset)
		zap.S().Infow("processing preset selected", "preset", preset.Name)

		var writer notifier.Writer = &notifier.LogWriter{}
		if cfg.Webhook.URL != "" {
			writer = notifier.NewWebhookWriter(cfg.Webhook.URL, cfg.Webhook.Timeout)
		} else {
			zap.S().Warn("no webhook configured, notifications are only logged")
		}

		p := pipeline.New(node, artifacts, s.Request(), notifier.NewNotifier(writer, notifier.WithLocation(location)), pipeline.Options{
			Preset:       preset,
			PollInterval: cfg.Pipeline.PollInterval,
			MaxWait:      cfg.Pipeline.MaxWait,
			TempDir:      cfg.Pipeline.TempDir,
			Location:     location,
		})

		exec := executor.New(cfg.Service.MaxConcurrentRuns)

		metrics.RegisterRequestStatsCollector(s)

		h := handlers.NewServiceHandler(
			service.NewMosaicService(s, p, exec),
			service.NewHealthService(sqlDB, node, location),
		)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			server := apiserver.New(cfg, h, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("Error running server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalw("failed to run metrics server", "error", err)
			}
		}()

		<-ctx.Done()

		zap.S().Infow("waiting for running pipelines", "timeout", cfg.Service.ShutdownTimeout)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer shutdownCancel()
		if err := exec.Shutdown(shutdownCtx); err != nil {
			zap.S().Warnw("pipelines still running at shutdown", "error", err)
		}

		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
