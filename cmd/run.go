package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runTicker string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract price targets for a single ticker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		r, err := initRunner()
		if err != nil {
			return err
		}

		result, err := r.Run(ctx, runTicker)
		if err != nil {
			return eris.Wrapf(err, "run %s", runTicker)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(result), "encode result")
	},
}

func init() {
	runCmd.Flags().StringVar(&runTicker, "ticker", "", "stock ticker symbol")
	runCmd.MarkFlagRequired("ticker")
	rootCmd.AddCommand(runCmd)
}
