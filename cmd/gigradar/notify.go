package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/gigradar/internal/adapter"
	"github.com/amishk599/gigradar/internal/notifier"
)

var notifyChatID string

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a sample posting to one chat using the configured notifier.",
	RunE:  runNotifyTest,
}

func init() {
	notifyTestCmd.Flags().StringVar(&notifyChatID, "chat", "", "chat id to send the test message to")
	_ = notifyTestCmd.MarkFlagRequired("chat")
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	httpClient := adapter.NewHTTPClient(cfg.HTTPTimeout)
	n := setupNotifier(cfg, httpClient, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := notifier.SendTestMessage(ctx, n, notifyChatID); err != nil {
		logger.Error("test notification failed", "error", err, "chat_id", notifyChatID)
		os.Exit(1)
	}
	logger.Info("test notification sent successfully", "chat_id", notifyChatID)
	return nil
}
