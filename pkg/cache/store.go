package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// DefaultMaxEntries is the store ceiling used when none is configured.
const DefaultMaxEntries = 500

// ExpiryFactor is the default ratio of expiry to staleness TTL.
const ExpiryFactor = 3

// Entry is a cached value with its freshness boundaries.
// FetchedAt <= StaleAt <= ExpiresAt always holds.
type Entry[T any] struct {
	Data      T
	FetchedAt time.Time
	StaleAt   time.Time
	ExpiresAt time.Time
}

// Lookup is the result of a Store read. Data and FetchedAt are zero on a miss.
type Lookup[T any] struct {
	Data      T
	Status    types.CacheStatus
	FetchedAt time.Time
}

// Found reports whether the lookup returned data (fresh or stale).
func (l Lookup[T]) Found() bool {
	return l.Status == types.CacheHit || l.Status == types.CacheStale
}

// StoreConfig holds Store configuration.
type StoreConfig struct {
	Name       string // metrics label
	MaxEntries int
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Store is a key to entry map with fresh/stale/expired semantics and a
// capacity sweep on write.
type Store[T any] struct {
	name       string
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger

	mu      sync.Mutex
	entries map[string]*Entry[T]
}

// NewStore creates a new Store.
func NewStore[T any](cfg StoreConfig) *Store[T] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	return &Store[T]{
		name:       cfg.Name,
		maxEntries: cfg.MaxEntries,
		now:        cfg.Clock,
		logger:     cfg.Logger,
		entries:    make(map[string]*Entry[T]),
	}
}

// Get returns HIT before StaleAt, STALE until ExpiresAt, and MISS otherwise.
// An expired entry is removed.
func (s *Store[T]) Get(key string) Lookup[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok {
		LookupsTotal.WithLabelValues(s.name, string(types.CacheMiss)).Inc()
		return Lookup[T]{Status: types.CacheMiss}
	}

	if !now.Before(entry.ExpiresAt) {
		delete(s.entries, key)
		EntriesGauge.WithLabelValues(s.name).Set(float64(len(s.entries)))
		LookupsTotal.WithLabelValues(s.name, string(types.CacheMiss)).Inc()
		return Lookup[T]{Status: types.CacheMiss}
	}

	status := types.CacheHit
	if !now.Before(entry.StaleAt) {
		status = types.CacheStale
	}
	LookupsTotal.WithLabelValues(s.name, string(status)).Inc()

	return Lookup[T]{Data: entry.Data, Status: status, FetchedAt: entry.FetchedAt}
}

// Set stores data that turns stale after staleTTL and expires after
// ExpiryFactor * staleTTL.
func (s *Store[T]) Set(key string, data T, staleTTL time.Duration) {
	s.SetWithExpiry(key, data, staleTTL, staleTTL*ExpiryFactor)
}

// SetWithExpiry stores data with explicit staleness and expiry TTLs. An
// expireTTL shorter than staleTTL is raised to staleTTL.
func (s *Store[T]) SetWithExpiry(key string, data T, staleTTL, expireTTL time.Duration) {
	if staleTTL < 0 {
		staleTTL = 0
	}
	if expireTTL < staleTTL {
		expireTTL = staleTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if len(s.entries) >= s.maxEntries {
		s.sweepLocked(now)
	}

	s.entries[key] = &Entry[T]{
		Data:      data,
		FetchedAt: now,
		StaleAt:   now.Add(staleTTL),
		ExpiresAt: now.Add(expireTTL),
	}
	EntriesGauge.WithLabelValues(s.name).Set(float64(len(s.entries)))
}

// sweepLocked removes expired entries, then the oldest quarter by FetchedAt
// if the store is still at capacity.
func (s *Store[T]) sweepLocked(now time.Time) {
	expired := 0
	for key, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, key)
			expired++
		}
	}
	if expired > 0 {
		EvictionsTotal.WithLabelValues(s.name, "expired").Add(float64(expired))
	}

	evicted := 0
	if len(s.entries) >= s.maxEntries {
		keys := make([]string, 0, len(s.entries))
		for key := range s.entries {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			return s.entries[keys[i]].FetchedAt.Before(s.entries[keys[j]].FetchedAt)
		})

		evicted = (len(keys) + 3) / 4
		for _, key := range keys[:evicted] {
			delete(s.entries, key)
		}
		EvictionsTotal.WithLabelValues(s.name, "capacity").Add(float64(evicted))
	}

	s.logger.Debug("cache-sweep",
		zap.String("store", s.name),
		zap.Int("expired", expired),
		zap.Int("evicted", evicted),
		zap.Int("remaining", len(s.entries)))
}

// Delete removes a key.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	EntriesGauge.WithLabelValues(s.name).Set(float64(len(s.entries)))
}

// Clear removes every entry.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry[T])
	EntriesGauge.WithLabelValues(s.name).Set(0)
}

// ClearPattern removes every key containing substr and returns how many were removed.
func (s *Store[T]) ClearPattern(substr string) int {
	substr = strings.ToLower(substr)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.Contains(key, substr) {
			delete(s.entries, key)
			removed++
		}
	}
	EntriesGauge.WithLabelValues(s.name).Set(float64(len(s.entries)))
	return removed
}

// Len returns the number of stored entries, including stale and not yet swept expired ones.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
