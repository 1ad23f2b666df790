package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/mselser95/polymarket-lens/internal/app"
	"github.com/mselser95/polymarket-lens/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polymarket-lens",
	Short: "Cached read-only access to Polymarket market data",
	Long: `Polymarket lens serves market listings, market details, price history
and order books from the Polymarket Gamma and CLOB APIs behind a
stale-while-revalidate cache.

Run "serve" for the HTTP API, or use the lookup commands directly.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadDotEnv,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file loaded before configuration is read")
}

// loadDotEnv loads the env file. A missing file is not an error.
func loadDotEnv(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// lookup holds the query engine app used by the one-shot commands.
type lookup struct {
	*app.App
	cfg    *config.Config
	logger *zap.Logger
}

// newLookup builds the query engine without background components.
func newLookup() (*lookup, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	application, err := app.New(cfg, logger, &app.Options{OneShot: true})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("create app: %w", err)
	}

	return &lookup{App: application, cfg: cfg, logger: logger}, nil
}

// Close shuts the app down and flushes the logger.
func (l *lookup) Close() {
	_ = l.Shutdown()
	_ = l.logger.Sync()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
