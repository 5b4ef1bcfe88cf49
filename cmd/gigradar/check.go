package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/gigradar/internal/adapter"
	"github.com/amishk599/gigradar/internal/dedup"
	"github.com/amishk599/gigradar/internal/model"
	"github.com/amishk599/gigradar/internal/notifier"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Poll once, print postings, exit",
	Long:  "One-shot poll: fetches every enabled source once and prints what would be published. Nothing is marked or published.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// printPublisher prints each posting instead of publishing it.
type printPublisher struct{}

func (printPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	source, ok := model.SourceFromTopic(topic)
	if !ok {
		return model.ErrUnknownTopic
	}
	p, err := model.DecodePosting(source, payload)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n%s\n\n", notifier.Render(p), p.URL)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: no postings will be marked or published")

	httpClient := adapter.NewHTTPClient(cfg.HTTPTimeout)
	pollers := buildPollers(cfg, dedup.NewNopStore(), printPublisher{}, httpClient, logger)
	if len(pollers) == 0 {
		logger.Error("no sources to poll")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, p := range pollers {
		stats := p.Poll(ctx)
		logger.Info("source checked", "source", string(p.Source()), "fetched", stats.Fetched, "printed", stats.Published, "invalid", stats.Invalid)
	}

	logger.Info("check complete")
	return nil
}
