package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/gigradar/internal/config"
	"github.com/amishk599/gigradar/internal/model"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Ask a running daemon to poll every source now",
	Long:  "Publishes a force-update request on the control topic. Needs bus.backend: redis so the daemon shares the bus.",
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Bus.Backend != config.BackendRedis {
		logger.Error("refresh requires bus.backend to be \"redis\"; the memory bus is private to the daemon")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool := newRedisPool()
	defer pool.Close()

	b, err := openBus(ctx, cfg, pool, logger)
	if err != nil {
		logger.Error("failed to open bus", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	if err := b.Publish(ctx, model.ControlTopic, []byte("true")); err != nil {
		logger.Error("refresh failed", "error", err)
		os.Exit(1)
	}
	logger.Info("refresh requested", "topic", model.ControlTopic)
	return nil
}
