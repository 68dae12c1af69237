package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/callsheet/internal/config"
	"github.com/alfredjeanlab/callsheet/internal/dispatch"
	"github.com/alfredjeanlab/callsheet/internal/events"
	"github.com/alfredjeanlab/callsheet/internal/hooks"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
	"github.com/alfredjeanlab/callsheet/internal/server"
	"github.com/alfredjeanlab/callsheet/internal/sheet"
	"github.com/alfredjeanlab/callsheet/internal/sheet/tencent"
	"github.com/alfredjeanlab/callsheet/internal/sheet/workbook"
	"github.com/alfredjeanlab/callsheet/internal/store"
	"github.com/alfredjeanlab/callsheet/internal/store/postgres"
	"github.com/alfredjeanlab/callsheet/internal/store/sqlite"
	csync "github.com/alfredjeanlab/callsheet/internal/sync"
)

// openGateway picks the Tencent Docs sheet when one is configured, else the
// local workbook. closeFn is never nil.
func openGateway(cfg *config.Config, cols model.ColumnMap) (gw sheet.Gateway, closeFn func() error, err error) {
	if cfg.TencentFileID != "" {
		return tencent.New(tencent.Config{
			BaseURL:      cfg.TencentBaseURL,
			ClientID:     cfg.TencentClientID,
			ClientSecret: cfg.TencentClientSecret,
			FileID:       cfg.TencentFileID,
			SheetID:      cfg.TencentSheetID,
			LastColumn:   cols.LastColumn(),
		}), func() error { return nil }, nil
	}
	wb, err := workbook.Open(cfg.Workbook, cfg.WorkbookSheet, cols.LastColumn()+1)
	if err != nil {
		return nil, nil, err
	}
	return wb, wb.Close, nil
}

// openJournal prefers postgres, then sqlite, then no journal at all.
func openJournal(cfg *config.Config) (store.Store, string, error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := postgres.New(cfg.DatabaseURL)
		return s, "postgres", err
	case cfg.JournalPath != "":
		s, err := sqlite.New(cfg.JournalPath)
		return s, "sqlite", err
	}
	return store.Discard{}, "disabled", nil
}

func syncDestinations(cfg *config.Config, logger *slog.Logger) []csync.Destination {
	var dests []csync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := csync.NewS3Destination(
			context.Background(),
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
	if cfg.SyncDir != "" {
		dests = append(dests, csync.NewDirDestination(cfg.SyncDir, "snapshot.xlsx"))
		logger.Info("sync dir destination enabled", "dir", cfg.SyncDir)
	}
	return dests
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the callsheet HTTP and gRPC service",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		cols, err := cfg.Columns()
		if err != nil {
			return err
		}

		gw, closeGateway, err := openGateway(cfg, cols)
		if err != nil {
			return err
		}
		defer closeGateway()

		journal, journalKind, err := openJournal(cfg)
		if err != nil {
			return err
		}
		defer journal.Close()
		logger.Info("journal", "backend", journalKind)

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = events.NoopPublisher{}
			logger.Info("events disabled (CALLSHEET_NATS_URL not set)")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("error closing publisher", "err", err)
			}
		}()

		tracker := presence.New()
		tracker.StartReaper(&presence.ReaperConfig{
			IdleThreshold: cfg.IdleAfter,
			OnIdle: func(caller string, holding int) {
				logger.Info("caller idle", "user", caller, "holding", holding)
			},
		})
		defer tracker.Stop()

		hub := server.NewEventHub()
		observers := []dispatch.Observer{tracker, hub}

		// Hooks ride the bus when there is one so every replica's events
		// reach them; otherwise they observe this process directly.
		var hooksCancel context.CancelFunc
		if cfg.HooksFile != "" {
			hookList, err := hooks.LoadFile(cfg.HooksFile)
			if err != nil {
				return err
			}
			handler := hooks.NewHandler(hookList, logger)
			if cfg.NATSURL != "" {
				sub, err := events.NewNATSSubscriber(cfg.NATSURL)
				if err != nil {
					return fmt.Errorf("hooks subscriber: %w", err)
				}
				var hooksCtx context.Context
				hooksCtx, hooksCancel = context.WithCancel(context.Background())
				go func() {
					if err := handler.StartSubscriber(hooksCtx, sub); err != nil {
						logger.Error("hooks subscriber error", "err", err)
					}
					sub.Close()
				}()
			} else {
				observers = append(observers, handler)
			}
			logger.Info("hooks enabled", "file", cfg.HooksFile, "count", len(hookList))
		}

		engine, err := dispatch.New(gw, cols, dispatch.Options{
			SettleDelay:    cfg.SettleDelay,
			VerifyAttempts: cfg.VerifyAttempts,
			Sheet:          cfg.SheetName(),
			Logger:         logger,
			Publisher:      publisher,
			Journal:        journal,
			Observers:      observers,
		})
		if err != nil {
			return err
		}

		csServer := server.New(engine, journal, tracker, hub)
		grpcServer := server.NewGRPCServer(csServer, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		// Event streams run until baseCtx is cancelled at shutdown.
		baseCtx, cancelStreams := context.WithCancel(context.Background())
		defer cancelStreams()
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           csServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *csync.Scheduler
		if cfg.SyncInterval > 0 {
			if dests := syncDestinations(cfg, logger); len(dests) > 0 {
				scheduler = csync.NewScheduler(engine, dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
			}
		}

		logger.Info("callsheet server started",
			"sheet", cfg.SheetName(),
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"settle_delay", cfg.SettleDelay,
			"auth", cfg.AuthToken != "",
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if hooksCancel != nil {
			hooksCancel()
		}
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		cancelStreams()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}
