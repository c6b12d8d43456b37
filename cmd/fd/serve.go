package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/forms/internal/config"
	"github.com/alfredjeanlab/forms/internal/events"
	"github.com/alfredjeanlab/forms/internal/server"
	"github.com/alfredjeanlab/forms/internal/store"
	"github.com/alfredjeanlab/forms/internal/store/bolt"
	"github.com/alfredjeanlab/forms/internal/store/postgres"
	formsync "github.com/alfredjeanlab/forms/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the forms HTTP and gRPC server",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		logger.Info("store opened", "driver", cfg.Store)

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (FORMS_NATS_URL not set)")
		}

		formsServer := server.NewFormsServer(st, publisher, server.Options{
			DeletePolicy: cfg.DeletePolicy,
			Strict:       cfg.StrictSubmissions,
			StoreTimeout: cfg.StoreTimeout,
		})
		grpcServer := server.NewGRPCServer(formsServer, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
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
			Handler:           formsServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *formsync.Scheduler
		if cfg.SyncEnabled() {
			dests := syncDestinations(context.Background(), cfg, logger)
			if len(dests) > 0 {
				scheduler = formsync.NewScheduler(st, dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval, "destinations", len(dests))
			}
		}

		if cfg.AuthToken == "" {
			logger.Warn("authentication disabled (FORMS_AUTH_TOKEN not set)")
		}
		logger.Info("forms server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"delete_policy", cfg.DeletePolicy,
			"strict_submissions", cfg.StrictSubmissions,
		)

		// SIGHUP forces a sync; SIGINT and SIGTERM shut down.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		sig := <-sigCh
		for sig == syscall.SIGHUP {
			if scheduler != nil {
				scheduler.Trigger()
			} else {
				logger.Warn("SIGHUP ignored, sync is not configured")
			}
			sig = <-sigCh
		}
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// openStore opens the store driver selected by cfg.Store.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return postgres.New(cfg.DatabaseURL)
	case config.StoreBolt:
		return bolt.Open(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// syncDestinations builds every configured sync destination. A destination
// that fails to initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []formsync.Destination {
	var dests []formsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := formsync.NewS3Destination(ctx,
			cfg.SyncS3Bucket,
			cfg.SyncS3Key,
			cfg.SyncS3Region,
			cfg.SyncS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}

	if cfg.SyncGitRepo != "" {
		dests = append(dests, formsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}

	if cfg.SyncFile != "" {
		dests = append(dests, formsync.NewFileDestination(cfg.SyncFile))
		logger.Info("sync file destination enabled", "path", cfg.SyncFile)
	}

	return dests
}
