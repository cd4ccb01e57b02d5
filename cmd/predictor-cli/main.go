// cmd/predictor-cli/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"college-predictor/internal/app"
	"college-predictor/internal/common/config"
	"college-predictor/internal/common/logger"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "predictor-cli",
	Short: "Query admission offers from the terminal",
	Long: `Reconcile the three counselling rounds for a rank and category and print
the resulting offers.

Available subcommands:
  page   - One page of offers ordered by cutoff
  export - The capped export set, as JSON or a PDF file
  groups - The program groups usable with --group`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level written to stderr")

	pageCmd.Flags().IntVar(&pageFlags.rank, "rank", 0, "Candidate rank")
	pageCmd.Flags().StringVar(&pageFlags.category, "category", "", "Reservation category, e.g. GM")
	pageCmd.Flags().StringVar(&pageFlags.group, "group", "", "Program group (IT, EC, TRENDING)")
	pageCmd.Flags().IntVar(&pageFlags.page, "page", 1, "Page number, starting at 1")
	_ = pageCmd.MarkFlagRequired("rank")
	_ = pageCmd.MarkFlagRequired("category")

	exportCmd.Flags().IntVar(&exportFlags.rank, "rank", 0, "Candidate rank")
	exportCmd.Flags().StringVar(&exportFlags.category, "category", "", "Reservation category, e.g. GM")
	exportCmd.Flags().StringVar(&exportFlags.group, "group", "", "Program group (IT, EC, TRENDING)")
	exportCmd.Flags().StringVarP(&exportFlags.out, "out", "o", "", "Write a PDF to this path instead of JSON to stdout")
	_ = exportCmd.MarkFlagRequired("rank")
	_ = exportCmd.MarkFlagRequired("category")

	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(groupsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp loads config and builds the application. Callers must Close it.
func openApp(ctx context.Context) (*app.Application, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	log := logger.NewStructured(logLevel, "json")
	return app.New(ctx, cfg, log, app.WithConnectRetries(1, 0))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
