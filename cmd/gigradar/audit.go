package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/gigradar/internal/adapter"
	"github.com/amishk599/gigradar/internal/audit"
	"github.com/amishk599/gigradar/internal/config"
	"github.com/amishk599/gigradar/internal/model"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse postings interactively (TUI)",
	Long:  "Shows the source picker TUI, then launches the split-pane audit view with the recipients each posting would reach.",
	RunE:  runAuditCmd,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Audit mode runs a TUI; log output written before the alt-screen
	// starts corrupts the display.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runAudit(cfg, silentLogger)
	return nil
}

func runAudit(cfg *config.Config, logger *slog.Logger) {
	sources := cfg.Enabled()
	if len(sources) == 0 {
		fmt.Println("No enabled sources in config.")
		return
	}

	httpClient := adapter.NewHTTPClient(cfg.HTTPTimeout)
	for {
		choice, err := audit.RunSourcePicker(sources)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return
		}
		if choice < 0 {
			return
		}
		source := sources[choice]

		fetcher, ok := createFetcher(cfg, source, httpClient, logger)
		if !ok {
			fmt.Printf("Unsupported source: %s\n", source)
			continue
		}
		window := cfg.Source(source).Window

		postings, err := audit.RunLoader(source.Label(), func(ctx context.Context) ([]model.Posting, error) {
			ps, err := fetcher.FetchRecent(ctx, window)
			for i := range ps {
				ps[i].Source = source
			}
			return ps, err
		})
		if err != nil {
			fmt.Printf("Error fetching postings: %v\n", err)
			continue
		}

		wantQuit, err := audit.RunAuditTUI(postings, cfg.Recipients.Static)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return
		}
		// else: loop → back to picker
	}
}
