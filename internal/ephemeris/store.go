package ephemeris

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/pupper42/roo-analysis/internal/sp3"
)

// Store memoizes parsed products so files sharing a GPS day parse the
// product once. Safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.RWMutex
	products map[Product]*sp3.Product

	source Resolver
	logger *slog.Logger
	group  singleflight.Group

	// Counters (lock-free).
	hits   atomic.Int64
	misses atomic.Int64
}

// NewStore creates an empty Store reading products from source.
func NewStore(source Resolver, logger *slog.Logger) *Store {
	return &Store{
		products: make(map[Product]*sp3.Product),
		source:   source,
		logger:   logger,
	}
}

// Get returns the parsed product, resolving and parsing it on first use.
// Failures are not memoized.
func (s *Store) Get(ctx context.Context, p Product) (*sp3.Product, error) {
	s.mu.RLock()
	prod, ok := s.products[p]
	s.mu.RUnlock()
	if ok {
		s.hits.Add(1)
		return prod, nil
	}
	s.misses.Add(1)

	v, err, _ := s.group.Do(p.Name(), func() (any, error) {
		s.mu.RLock()
		prod, ok := s.products[p]
		s.mu.RUnlock()
		if ok {
			return prod, nil
		}

		data, err := s.source.Resolve(ctx, p)
		if err != nil {
			return nil, err
		}
		prod, err = sp3.Parse(bytes.NewReader(data), s.logger)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p.Name(), err)
		}

		s.mu.Lock()
		s.products[p] = prod
		s.mu.Unlock()

		s.logger.Info("ephemeris product loaded",
			"product", p.Name(),
			"satellites", len(prod.Satellites()),
			"epochs", len(prod.Epochs),
		)
		return prod, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sp3.Product), nil
}

// StoreStats reports memo usage.
type StoreStats struct {
	Products int
	Hits     int64
	Misses   int64
}

// Stats returns current memo statistics.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	n := len(s.products)
	s.mu.RUnlock()
	return StoreStats{
		Products: n,
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
	}
}
