package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/pricefeed"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchCmd = &cobra.Command{
	Use:   "watch <id-or-slug>",
	Short: "Watch live prices of a market",
	Long: `Connects to the Polymarket market channel and prints every price the
live feed would store for the outcomes of a market.

Example:
  polymarket-lens watch will-bitcoin-reach-100k`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchCmd)
}

// printSink writes feed prices for known tokens as they arrive.
type printSink struct {
	mu       sync.Mutex
	out      io.Writer
	outcomes map[string]string
	now      func() time.Time
}

func newPrintSink(out io.Writer, market *types.Market) *printSink {
	outcomes := make(map[string]string, len(market.Outcomes))
	for _, o := range market.Outcomes {
		if o.TokenID != "" {
			outcomes[o.TokenID] = o.Name
		}
	}
	return &printSink{out: out, outcomes: outcomes, now: time.Now}
}

func (s *printSink) tokenIDs() []string {
	ids := make([]string, 0, len(s.outcomes))
	for id := range s.outcomes {
		ids = append(ids, id)
	}
	return ids
}

// StorePrice implements pricefeed.Sink.
func (s *printSink) StorePrice(tokenID string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, ok := s.outcomes[tokenID]
	if !ok {
		outcome = "UNKNOWN"
	}
	fmt.Fprintf(s.out, "[%s] %-10s %.4f\n", s.now().Format("15:04:05"), outcome, price)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lk, err := newLookup()
	if err != nil {
		return err
	}
	defer lk.Close()

	detail, err := lk.Engine().FetchMarketDetail(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetch market: %w", err)
	}
	market := &detail.Market
	printMarket(os.Stdout, market)

	sink := newPrintSink(os.Stdout, market)
	tokenIDs := sink.tokenIDs()
	if len(tokenIDs) == 0 {
		return fmt.Errorf("market %s has no outcome tokens", market.ID)
	}

	cfg := lk.cfg
	feed := pricefeed.New(pricefeed.Config{
		URL:                   cfg.PolymarketWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		Sink:                  sink,
		Logger:                lk.logger,
	})

	defer feed.Close()

	err = feed.Start()
	if err != nil {
		return fmt.Errorf("start price feed: %w", err)
	}

	err = feed.Subscribe(ctx, tokenIDs)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	fmt.Println("\nSubscribed! Watching for price updates...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	<-sigChan
	fmt.Println("\nShutting down...")
	return nil
}
