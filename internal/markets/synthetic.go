package markets

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
)

const (
	syntheticPoints    = 60
	syntheticStepSigma = 0.012
	syntheticFloor     = 0.01
	syntheticCeiling   = 0.99
)

// SyntheticHistory generates filler history for a market: a random walk
// pinned to a start price derived from the 24h change scaled by the range
// span, and to current at now. The walk is seeded by market id and range so
// repeated calls return the same shape.
func SyntheticHistory(marketID string, r types.HistoryRange, current, dayChange float64, now time.Time) []types.PricePoint {
	if !types.ValidPrice(current) {
		current = 0.5
	}
	if math.IsNaN(dayChange) || math.IsInf(dayChange, 0) {
		dayChange = 0
	}

	span := r.Span()
	scale := float64(span) / float64(24*time.Hour)
	start := clamp(current-dayChange*scale, syntheticFloor, syntheticCeiling)

	h := fnv.New64a()
	_, _ = h.Write([]byte(marketID + "|" + string(r)))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	walk := make([]float64, syntheticPoints)
	for i := 1; i < syntheticPoints; i++ {
		walk[i] = walk[i-1] + rng.NormFloat64()*syntheticStepSigma
	}

	last := syntheticPoints - 1
	points := make([]types.PricePoint, syntheticPoints)
	for i := range points {
		frac := float64(i) / float64(last)
		// Subtracting frac*walk[last] pins both ends of the walk to zero.
		bridge := walk[i] - frac*walk[last]
		price := start + (current-start)*frac + bridge

		ts := now.Add(-span + time.Duration(frac*float64(span)))
		if i == last {
			ts = now
			price = current
		} else {
			price = math.Round(clamp(price, syntheticFloor, syntheticCeiling)*1e4) / 1e4
		}
		points[i] = types.PricePoint{Timestamp: ts, Price: price}
	}
	points[0].Timestamp = now.Add(-span)

	return points
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
