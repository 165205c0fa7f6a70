package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/config"
	"github.com/alfredjeanlab/feedpulse/internal/events"
	"github.com/alfredjeanlab/feedpulse/internal/metrics"
	"github.com/alfredjeanlab/feedpulse/internal/notify"
	"github.com/alfredjeanlab/feedpulse/internal/presence"
	"github.com/alfredjeanlab/feedpulse/internal/server"
	"github.com/alfredjeanlab/feedpulse/internal/store"
	"github.com/alfredjeanlab/feedpulse/internal/store/postgres"
	fpsync "github.com/alfredjeanlab/feedpulse/internal/sync"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the feedpulse server",
	GroupID: "system",
	// The server does not need a client of itself.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		scenario, err := config.LoadScenario(cfg.ScenarioFile)
		if err != nil {
			return err
		}

		m := metrics.New()
		engine := notify.New(
			notify.WithHistoryCap(cfg.HistoryCap),
			notify.WithHandlerTimeout(cfg.HandlerTimeout),
			notify.WithLogger(logger),
			notify.WithRecorder(m),
			notify.WithScenario(scenario),
		)
		tracker := presence.New()
		tracker.StartReaper(&presence.ReaperConfig{
			IdleAfter: cfg.PresenceIdle,
			OnIdle: func(projectID, actor string) {
				logger.Debug("actor idle", "project_id", projectID, "actor", actor)
			},
		})
		defer tracker.Stop()

		opts := []server.Option{
			server.WithMetrics(m),
			server.WithPresence(tracker),
			server.WithScenario(scenario),
			server.WithLogger(logger),
		}

		// Optional durable archive.
		var archive store.Store
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			archive = pg
			opts = append(opts, server.WithStore(pg))
			logger.Info("archive enabled")
		} else {
			logger.Info("archive disabled (FEEDPULSE_DATABASE_URL not set)")
		}
		closeArchive := func() {
			if archive == nil {
				return
			}
			if err := archive.Close(); err != nil {
				logger.Error("error closing store", "err", err)
			}
		}

		// Event mirror.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				closeArchive()
				return err
			}
			publisher = pub
			logger.Info("events mirror enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events mirror disabled (FEEDPULSE_NATS_URL not set)")
		}
		opts = append(opts, server.WithPublisher(publisher))

		notifyServer := server.NewNotifyServer(engine, opts...)
		grpcServer := server.NewGRPCServer(notifyServer, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			closeArchive()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           notifyServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := newExportScheduler(cfg, archive, m, logger)

		// Upstream producers publish on feedpulse.ingest.<project>.
		var ingestCancel context.CancelFunc
		if cfg.NATSURL != "" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create ingest subscriber", "err", err)
			} else {
				ingestor := events.NewIngestor(sub, notifyServer, logger)
				var ingestCtx context.Context
				ingestCtx, ingestCancel = context.WithCancel(context.Background())
				go func() {
					if err := ingestor.Run(ingestCtx); err != nil {
						logger.Error("ingest error", "err", err)
					}
					sub.Close()
					logger.Info("ingest stopped", "accepted", ingestor.Accepted(), "rejected", ingestor.Rejected())
				}()
				logger.Info("ingest subscriber started", "subject", events.IngestWildcard)
			}
		}

		logger.Info("feedpulse server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"history_cap", cfg.HistoryCap,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if ingestCancel != nil {
			ingestCancel()
		}

		// Closing the engine ends every live stream, so the HTTP server
		// below is not left waiting on open SSE connections.
		notifyServer.Shutdown()
		logger.Info("notification engine closed")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		closeArchive()

		logger.Info("shutdown complete")
		return nil
	},
}

// newExportScheduler starts periodic archive exports when an interval, an
// archive and at least one destination are configured. It returns nil
// otherwise.
func newExportScheduler(cfg *config.Config, archive store.Store, m *metrics.Metrics, logger *slog.Logger) *fpsync.Scheduler {
	if cfg.ExportInterval <= 0 {
		return nil
	}
	if archive == nil {
		logger.Warn("export interval set but no archive configured; exports disabled")
		return nil
	}

	var dests []fpsync.Destination
	if cfg.ExportS3Bucket != "" {
		s3Dest, err := fpsync.NewS3Destination(
			context.Background(),
			cfg.ExportS3Bucket,
			cfg.ExportS3Key,
			cfg.ExportS3Region,
			cfg.ExportS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 export destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
		}
	}
	if cfg.ExportGitRepo != "" {
		dests = append(dests, fpsync.NewGitDestination(cfg.ExportGitRepo, cfg.ExportGitFile, cfg.ExportGitBranch))
		logger.Info("export git destination enabled", "repo", cfg.ExportGitRepo, "file", cfg.ExportGitFile)
	}
	if len(dests) == 0 {
		return nil
	}

	scheduler := fpsync.NewScheduler(archive, dests, cfg.ExportInterval, logger)
	scheduler.OnResult(m.Export)
	scheduler.Start()
	logger.Info("export scheduler started", "interval", cfg.ExportInterval)
	return scheduler
}
