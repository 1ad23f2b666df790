// Package storage persists genuine price history so it can be served when
// every upstream history endpoint comes back empty.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
)

// HistoryArchive stores and reads price history per market.
type HistoryArchive interface {
	// SavePoints upserts points for a market. Points sharing a timestamp
	// replace the stored price.
	SavePoints(ctx context.Context, marketID string, points []types.PricePoint) error

	// LoadPoints returns the market's points at or after since, oldest first.
	LoadPoints(ctx context.Context, marketID string, since time.Time) ([]types.PricePoint, error)

	// Close closes the storage connection.
	Close() error
}

// Storage modes.
const (
	ModeNone     = "none"
	ModeMemory   = "memory"
	ModePostgres = "postgres"
)

// ValidateMode reports an error for unknown storage modes.
func ValidateMode(mode string) error {
	switch mode {
	case ModeNone, ModeMemory, ModePostgres:
		return nil
	default:
		return fmt.Errorf("invalid storage mode %q (want %s, %s or %s)", mode, ModeNone, ModeMemory, ModePostgres)
	}
}
