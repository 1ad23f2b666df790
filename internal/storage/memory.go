package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// MemoryArchive implements HistoryArchive in process memory.
type MemoryArchive struct {
	logger *zap.Logger

	mu     sync.RWMutex
	series map[string]map[int64]float64 // market id -> unix nanos -> price
}

// NewMemoryArchive creates a new in-memory archive.
func NewMemoryArchive(logger *zap.Logger) *MemoryArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("memory-archive-initialized")
	return &MemoryArchive{
		logger: logger,
		series: make(map[string]map[int64]float64),
	}
}

// SavePoints stores points in memory.
func (m *MemoryArchive) SavePoints(ctx context.Context, marketID string, points []types.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	series, ok := m.series[marketID]
	if !ok {
		series = make(map[int64]float64, len(points))
		m.series[marketID] = series
	}
	for _, p := range points {
		series[p.Timestamp.UnixNano()] = p.Price
	}

	ArchiveWritesTotal.WithLabelValues(ModeMemory, "success").Inc()
	m.logger.Debug("history-archived",
		zap.String("market-id", marketID),
		zap.Int("points", len(points)))
	return nil
}

// LoadPoints returns stored points at or after since.
func (m *MemoryArchive) LoadPoints(ctx context.Context, marketID string, since time.Time) ([]types.PricePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := since.UnixNano()
	var points []types.PricePoint
	for ts, price := range m.series[marketID] {
		if ts < cutoff {
			continue
		}
		points = append(points, types.PricePoint{Timestamp: time.Unix(0, ts).UTC(), Price: price})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })

	ArchiveReadsTotal.WithLabelValues(ModeMemory, hitLabel(len(points))).Inc()
	return points, nil
}

// Close is a no-op.
func (m *MemoryArchive) Close() error {
	return nil
}

func hitLabel(n int) string {
	if n == 0 {
		return "empty"
	}
	return "hit"
}
