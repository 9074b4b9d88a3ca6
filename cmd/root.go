package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ido77/tarot-capital/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tarot",
	Short: "PSU price-target extraction from SEC filings",
	Long:  "Extracts dollar stock-price targets from PSU vesting language in proxy statements and insider filings, validates them against the current price, and ranks tickers by upside.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
