package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/gigradar/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List all marketplaces and their settings",
	Long:  "Reads the config and prints a table of every supported source.",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-12s %-20s %-10s %-10s %s\n", "Source", "Topic", "Interval", "Window", "Status")
	fmt.Println(strings.Repeat("─", 64))

	enabled := 0
	for _, s := range model.Sources {
		sc := cfg.Source(s)
		status := "disabled"
		if sc.Enabled {
			status = "enabled"
			enabled++
		}
		fmt.Printf("%-12s %-20s %-10s %-10s %s\n", s, model.TopicFor(s), sc.Interval, sc.Window, status)
	}

	fmt.Printf("\nTotal: %d sources (%d enabled, %d disabled)\n", len(model.Sources), enabled, len(model.Sources)-enabled)
	return nil
}
