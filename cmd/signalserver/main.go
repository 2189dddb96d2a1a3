// signalserver is the scheduled-task-runner-facing binary: a serve
// subcommand for the HTTP rendezvous service, and a cleanup subcommand
// an external cron entry or CronJob invokes on a schedule.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"
	"github.com/spf13/cobra"

	"rtc-signal/internal/adminops"
	"rtc-signal/internal/config"
	"rtc-signal/internal/httpapi"
	"rtc-signal/internal/metrics"
	"rtc-signal/internal/recovery"
	"rtc-signal/internal/session"
	"rtc-signal/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:   "signalserver",
		Short: "stateless WebRTC signaling rendezvous service",
	}
	root.AddCommand(serveCmd(), cleanupCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP rendezvous server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			openedStore, closeStore, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			applyTimingOverrides(cfg)

			clock := session.SystemClock{}
			admin := adminops.New(openedStore, clock, logger, cfg.AdminSecret)
			api := httpapi.New(openedStore, clock, logger, admin.Hub())

			mux := http.NewServeMux()
			mux.Handle("/", api.Handler())
			admin.RegisterRoutes(mux)

			httpServer := &http.Server{
				Addr:         cfg.Addr,
				Handler:      mux,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				logger.Infof("signalserver: listening on %s", cfg.Addr)
				serverErrors <- httpServer.ListenAndServe()
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigChan:
				logger.Infof("signalserver: received signal %v, shutting down", sig)
			case err := <-serverErrors:
				if err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("signalserver: server error: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(ctx)
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "run one cleanup sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			openedStore, closeStore, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			applyTimingOverrides(cfg)

			clock := session.SystemClock{}
			start := time.Now()
			result, err := session.Cleanup(context.Background(), openedStore, clock)
			took := time.Since(start)
			if err != nil {
				return fmt.Errorf("signalserver: cleanup sweep failed: %w", err)
			}

			metrics.RecordCleanup(result.Deleted, took)
			logger.Infof("signalserver: cleanup scanned %d, deleted %d, took %s", result.Scanned, result.Deleted, took)
			return nil
		},
	}
}

func openStore(cfg *config.Config, logger logging.LeveledLogger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := store.NewPostgres(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() {}, nil
	case config.StoreBolt:
		b, err := store.NewBolt(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { recovery.SafeCloser(logger, b.Close, "bolt store") }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

func applyTimingOverrides(cfg *config.Config) {
	session.MaxConnection = cfg.MaxConnection
	session.FirstPoll = cfg.FirstPoll
	session.FastPoll = cfg.FastPoll
	session.SlowPoll = cfg.SlowPoll
	session.ConnectGrace = cfg.ConnectGrace
	session.LivenessGrace = cfg.LivenessGrace
}

func newLogger(cfg *config.Config) logging.LeveledLogger {
	factory := logging.NewDefaultLoggerFactory()
	switch cfg.LogLevel {
	case "debug":
		factory.DefaultLogLevel = logging.LogLevelDebug
	case "warn":
		factory.DefaultLogLevel = logging.LogLevelWarn
	case "error":
		factory.DefaultLogLevel = logging.LogLevelError
	default:
		factory.DefaultLogLevel = logging.LogLevelInfo
	}
	return factory.NewLogger("signalserver")
}
