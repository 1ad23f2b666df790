package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var historyCmd = &cobra.Command{
	Use:   "history <id-or-slug>",
	Short: "Show the price history of a market",
	Long: `Fetches the lead outcome price history of a market, trying the CLOB,
the Gamma endpoints and the local archive before generating a synthetic
series.

Example:
  polymarket-lens history 12345 --range 1W`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringP("range", "r", "1D", "History range: 1H, 6H, 1D, 1W, 1M, ALL")
	historyCmd.Flags().IntP("points", "n", 20, "Number of most recent points to print (0 for all)")
	historyCmd.Flags().BoolP("json", "j", false, "Output JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	rangeFlag, _ := cmd.Flags().GetString("range")
	r, err := types.ParseHistoryRange(rangeFlag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lk, err := newLookup()
	if err != nil {
		return err
	}
	defer lk.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	points, _ := cmd.Flags().GetInt("points")

	result, err := lk.Engine().FetchMarketHistory(ctx, args[0], r)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	if jsonOutput {
		return writeJSON(os.Stdout, result)
	}
	printHistory(os.Stdout, result, points)
	return nil
}

func printHistory(w io.Writer, result *types.HistoryResult, limit int) {
	fmt.Fprintf(w, "Market %s, range %s, source %s, %d points\n",
		result.MarketID, result.Range, result.Source, len(result.Points))
	if result.Synthetic {
		fmt.Fprintf(w, "WARNING: no recorded history, showing a synthetic series\n")
	}

	points := result.Points
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	for _, p := range points {
		fmt.Fprintf(w, "  %s  %.4f\n", p.Timestamp.UTC().Format(time.RFC3339), p.Price)
	}
}
