package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/gigradar/internal/adapter"
	"github.com/amishk599/gigradar/internal/admin"
	"github.com/amishk599/gigradar/internal/dispatch"
	"github.com/amishk599/gigradar/internal/supervisor"
)

// Expired dedup keys are purged this often for stores without native TTLs.
const sweepInterval = 10 * time.Minute

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the polling daemon",
	Long:  "Start the source workers and the dispatcher; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.PollInterval.String(),
		"sources", len(cfg.Enabled()),
		"dedup", cfg.Dedup.Backend,
		"bus", cfg.Bus.Backend,
		"recipients", cfg.Recipients.Backend,
		"notification", cfg.Notification.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := newRedisPool()
	defer pool.Close()

	store, sweep, closeStore, err := openDedup(ctx, cfg, pool)
	if err != nil {
		logger.Error("failed to open dedup store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	b, err := openBus(ctx, cfg, pool, logger)
	if err != nil {
		logger.Error("failed to open bus", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	recipients, closeRecipients, err := openRecipients(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open recipient store", "error", err)
		os.Exit(1)
	}
	defer closeRecipients()

	httpClient := adapter.NewHTTPClient(cfg.HTTPTimeout)
	n := setupNotifier(cfg, httpClient, logger)

	pollers := buildPollers(cfg, store, b, httpClient, logger)
	if len(pollers) == 0 {
		logger.Error("no sources to poll")
		os.Exit(1)
	}
	jobs := make([]supervisor.Job, len(pollers))
	for i, p := range pollers {
		jobs[i] = p
	}

	// The dispatcher subscribes before any worker can publish.
	dispatcher := dispatch.NewService(b, recipients, n, logger)
	sub, err := dispatcher.Subscribe(ctx)
	if err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Serve(ctx, sub)
	}()

	sup := supervisor.New(jobs, supervisor.Options{
		Grace:        cfg.Shutdown.Grace,
		KillTimeout:  cfg.Shutdown.KillTimeout,
		RestartDelay: cfg.Shutdown.RestartDelay,
		Control:      b,
	}, logger)

	if cfg.Admin.Addr != "" {
		srv := admin.NewServer(cfg.Admin.Addr, b, sup, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx); err != nil {
				logger.Error("admin server error", "error", err)
			}
		}()
	}

	if sweep != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSweeper(ctx, sweep, logger)
		}()
	}

	runErr := sup.Run(ctx)
	wg.Wait()
	if runErr != nil {
		logger.Error("supervisor error", "error", runErr)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

func runSweeper(ctx context.Context, sweep sweepFunc, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweep(ctx)
			if err != nil {
				logger.Warn("dedup sweep failed", "error", err)
				continue
			}
			logger.Debug("dedup sweep", "removed", n)
		}
	}
}
