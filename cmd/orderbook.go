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
var orderbookCmd = &cobra.Command{
	Use:   "orderbook <token-id>",
	Short: "Show the order book of an outcome token",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderbook,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(orderbookCmd)
	orderbookCmd.Flags().IntP("depth", "d", 5, "Number of levels per side")
	orderbookCmd.Flags().BoolP("json", "j", false, "Output JSON")
}

func runOrderbook(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lk, err := newLookup()
	if err != nil {
		return err
	}
	defer lk.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	depth, _ := cmd.Flags().GetInt("depth")

	result, err := lk.Engine().FetchOrderBook(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetch order book: %w", err)
	}

	if jsonOutput {
		return writeJSON(os.Stdout, result)
	}
	return printOrderBook(os.Stdout, &result.Book, depth)
}

func printOrderBook(out io.Writer, book *types.OrderBook, depth int) error {
	fmt.Fprintf(out, "Token: %s\n", book.TokenID)
	fmt.Fprintf(out, "Best bid: %.3f (%.2f)  Best ask: %.3f (%.2f)\n",
		book.BestBidPrice, book.BestBidSize, book.BestAskPrice, book.BestAskSize)
	fmt.Fprintf(out, "Spread: %.3f  Midpoint: %.3f\n\n", book.Spread, book.Midpoint)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "BID SIZE\tBID\tASK\tASK SIZE\t\n")

	rows := max(len(book.Bids), len(book.Asks))
	if depth > 0 {
		rows = min(rows, depth)
	}
	for i := 0; i < rows; i++ {
		bidSize, bid, ask, askSize := "", "", "", ""
		if i < len(book.Bids) {
			bid = fmt.Sprintf("%.3f", book.Bids[i].Price)
			bidSize = fmt.Sprintf("%.2f", book.Bids[i].Size)
		}
		if i < len(book.Asks) {
			ask = fmt.Sprintf("%.3f", book.Asks[i].Price)
			askSize = fmt.Sprintf("%.2f", book.Asks[i].Size)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", bidSize, bid, ask, askSize)
	}

	return w.Flush()
}
