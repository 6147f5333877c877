// Package memory is an in-process record store. It evaluates filters and
// aggregations in Go and backs tests and DATA_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"transactions/internal/core"
	"transactions/internal/query"
	"transactions/internal/store"
)

type Store struct {
	mu     sync.RWMutex
	rows   []core.Transaction
	nextID int64
}

// Ensure interface conformance
var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1}
}

// ReplaceAll validates the whole batch before touching the stored rows.
func (s *Store) ReplaceAll(_ context.Context, txs []core.Transaction) (int, error) {
	if _, err := store.NewRows(txs); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make([]core.Transaction, len(txs))
	s.nextID = 1
	for i, t := range txs {
		t.ID = s.nextID
		s.nextID++
		s.rows[i] = t
	}
	return len(txs), nil
}

func (s *Store) List(_ context.Context, f query.Filter, p query.Page) ([]core.Transaction, error) {
	matched := s.match(f)
	lo, hi := p.Bounds(len(matched))
	out := make([]core.Transaction, hi-lo)
	copy(out, matched[lo:hi])
	return out, nil
}

func (s *Store) Count(_ context.Context, f query.Filter) (int64, error) {
	return int64(len(s.match(f))), nil
}

func (s *Store) Statistics(_ context.Context, f query.Filter) (core.Statistics, error) {
	var st core.Statistics
	for _, t := range s.match(f) {
		st.TotalSaleAmount += t.Price
		if t.Sold {
			st.SoldItems++
		} else {
			st.NotSoldItems++
		}
	}
	return st, nil
}

func (s *Store) PriceHistogram(_ context.Context, f query.Filter) ([]core.BucketCount, error) {
	h := core.NewHistogram()
	for _, t := range s.match(f) {
		h[core.BucketIndex(t.Price)].Count++
	}
	return h, nil
}

func (s *Store) CategoryBreakdown(_ context.Context, f query.Filter) ([]core.CategoryCount, error) {
	counts := map[string]int64{}
	for _, t := range s.match(f) {
		counts[t.Category]++
	}
	out := make([]core.CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, core.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// match returns the matching rows in insertion order. The slice is a copy.
func (s *Store) match(f query.Filter) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.rows {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}
