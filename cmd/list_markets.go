package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var listMarketsCmd = &cobra.Command{
	Use:   "list-markets",
	Short: "List markets through the query engine",
	Long: `Fetches a page of markets the same way GET /api/markets does, including
category filtering, text search and price enrichment.

Example:
  polymarket-lens list-markets --category crypto --limit 10`,
	RunE: runListMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listMarketsCmd)
	addMarketQueryFlags(listMarketsCmd)
	listMarketsCmd.Flags().BoolP("verbose", "v", false, "Show detailed market information")
	listMarketsCmd.Flags().BoolP("json", "j", false, "Output JSON")
}

func addMarketQueryFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("limit", "l", 20, "Maximum number of markets to return")
	cmd.Flags().Int("offset", 0, "Number of matching markets to skip")
	cmd.Flags().StringP("sort", "s", "volume24hr", "Sort by: volume24hr, volume, liquidity, endDate, createdAt")
	cmd.Flags().String("order", "desc", "Sort direction: asc or desc")
	cmd.Flags().StringP("category", "c", "", "Only markets in this category or tag")
	cmd.Flags().StringP("query", "q", "", "Only markets whose question or description contains this text")
	cmd.Flags().Bool("closed", false, "List closed markets instead of active ones")
	cmd.Flags().Bool("no-enrich", false, "Skip live price enrichment")
}

func marketQueryFromFlags(cmd *cobra.Command) types.MarketQuery {
	q := types.DefaultMarketQuery()
	q.Limit, _ = cmd.Flags().GetInt("limit")
	q.Offset, _ = cmd.Flags().GetInt("offset")
	q.SortBy, _ = cmd.Flags().GetString("sort")
	q.SortDirection, _ = cmd.Flags().GetString("order")
	q.Category, _ = cmd.Flags().GetString("category")
	q.Query, _ = cmd.Flags().GetString("query")

	closed, _ := cmd.Flags().GetBool("closed")
	if closed {
		q.Active = false
		q.Closed = true
	}
	noEnrich, _ := cmd.Flags().GetBool("no-enrich")
	q.Enrich = !noEnrich

	return q
}

func runListMarkets(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lk, err := newLookup()
	if err != nil {
		return err
	}
	defer lk.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	result, err := lk.Engine().FetchMarkets(ctx, marketQueryFromFlags(cmd))
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}

	if jsonOutput {
		return writeJSON(os.Stdout, result)
	}
	return printMarkets(os.Stdout, result, verbose)
}

func printMarkets(out io.Writer, result *types.MarketsResult, verbose bool) error {
	if len(result.Markets) == 0 {
		fmt.Fprintln(out, "No markets found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tSLUG\tQUESTION\tPRICE\tVOLUME 24H\n")
	fmt.Fprintf(w, "--\t----\t--------\t-----\t----------\n")

	for i := range result.Markets {
		market := &result.Markets[i]

		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%.0f\n",
			market.ID, truncate(market.Slug, 40), truncate(market.Question, 60),
			market.CurrentPrice(), market.Volume24hr)

		if verbose {
			fmt.Fprintf(w, "\tCategory: %s\n", market.Category)
			fmt.Fprintf(w, "\tClosed: %v, Active: %v\n", market.Closed, market.Active)
			for _, o := range market.Outcomes {
				fmt.Fprintf(w, "\t%s: %.3f (%s)\n", o.Name, o.Price, o.TokenID)
			}
			fmt.Fprintf(w, "\n")
		}
	}

	err := w.Flush()
	if err != nil {
		return err
	}

	total := fmt.Sprintf("%d", result.Total)
	if !result.TotalExact {
		total = "at least " + total
	}
	fmt.Fprintf(out, "\nTotal: %s markets (showing %d, cache %s, %dms)\n",
		total, len(result.Markets), result.Meta.CacheStatus, result.Meta.DurationMs)

	return nil
}
