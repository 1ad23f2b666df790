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
var marketCmd = &cobra.Command{
	Use:   "market <id-or-slug>",
	Short: "Show a single market",
	Long: `Looks a market up by id, falling back to its slug.

Example:
  polymarket-lens market will-bitcoin-reach-100k`,
	Args: cobra.ExactArgs(1),
	RunE: runMarket,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(marketCmd)
	marketCmd.Flags().BoolP("json", "j", false, "Output JSON")
}

func runMarket(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lk, err := newLookup()
	if err != nil {
		return err
	}
	defer lk.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")

	detail, err := lk.Engine().FetchMarketDetail(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetch market: %w", err)
	}

	if jsonOutput {
		return writeJSON(os.Stdout, detail)
	}
	printMarket(os.Stdout, &detail.Market)
	return nil
}

func printMarket(w io.Writer, market *types.Market) {
	fmt.Fprintf(w, "Market: %s\n", market.Question)
	fmt.Fprintf(w, "Slug: %s\n", market.Slug)
	fmt.Fprintf(w, "ID: %s\n", market.ID)
	if market.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", market.Category)
	}
	fmt.Fprintf(w, "Active: %v, Closed: %v\n", market.Active, market.Closed)
	if !market.EndDate.IsZero() {
		fmt.Fprintf(w, "Ends: %s\n", market.EndDate.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Volume 24h: %.2f, Liquidity: %.2f\n", market.Volume24hr, market.Liquidity)

	fmt.Fprintf(w, "\nOutcomes:\n")
	for _, o := range market.Outcomes {
		fmt.Fprintf(w, "  %-10s %.3f  %s\n", o.Name, o.Price, o.TokenID)
	}
	if market.OutcomesFallback {
		fmt.Fprintf(w, "  (outcome data unavailable, showing defaults)\n")
	}
}
