package cmd

import (
	"fmt"

	"github.com/mselser95/polymarket-lens/internal/app"
	"github.com/mselser95/polymarket-lens/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the market data API",
	Long: `Starts the HTTP API, which will:
1. Serve market listings, details, history, order books and categories under /api
2. Keep the landing listing warm by polling the Gamma API
3. Stream live prices into the price cache when PRICE_FEED_ENABLED is set
4. Expose /health, /ready and /metrics

Use --no-feed to disable the live price feed regardless of configuration.`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-feed", false, "Disable the live price feed")
	serveCmd.Flags().StringP("port", "p", "", "HTTP port (overrides HTTP_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load config
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Get flags
	noFeed, _ := cmd.Flags().GetBool("no-feed")
	if noFeed {
		cfg.PriceFeedEnabled = false
	}
	port, _ := cmd.Flags().GetString("port")
	if port != "" {
		cfg.HTTPPort = port
	}

	application, err := app.New(cfg, logger, &app.Options{})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
