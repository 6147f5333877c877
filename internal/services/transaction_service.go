package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"transactions/internal/core"
	"transactions/internal/query"
	"transactions/internal/store"
)

// ListQuery holds validated listing parameters. A zero Month means any month.
type ListQuery struct {
	Month  core.Month
	Search string
	Page   query.Page
}

// Filter returns month AND search.
func (q ListQuery) Filter() query.Filter {
	return query.MonthFilter(q.Month).And(query.SearchFilter(q.Search))
}

// ListResult is one page of records plus the size of the whole match set.
type ListResult struct {
	Transactions []core.Transaction
	Total        int64
}

// TransactionService answers the read endpoints from an injected store.
type TransactionService struct {
	store store.Store
}

func NewTransactionService(s store.Store) *TransactionService {
	return &TransactionService{store: s}
}

// List returns the requested page of records matching month and search.
func (s *TransactionService) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if q.Month != 0 && !q.Month.Valid() {
		return ListResult{}, core.ErrInvalidMonth
	}
	f := q.Filter()

	var res ListResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.store.List(gctx, f, q.Page)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		res.Transactions = nonNil(txs)
		return nil
	})
	g.Go(func() error {
		n, err := s.store.Count(gctx, f)
		if err != nil {
			return fmt.Errorf("count transactions: %w", err)
		}
		res.Total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, err
	}
	return res, nil
}

// Statistics sums prices and counts sold/unsold records of month m.
func (s *TransactionService) Statistics(ctx context.Context, m core.Month) (core.Statistics, error) {
	if err := checkMonth(m); err != nil {
		return core.Statistics{}, err
	}
	st, err := s.store.Statistics(ctx, query.MonthFilter(m))
	if err != nil {
		return core.Statistics{}, fmt.Errorf("statistics: %w", err)
	}
	st.TotalSaleAmount = core.RoundCents(st.TotalSaleAmount)
	return st, nil
}

// BarChart counts the records of month m per price bucket.
func (s *TransactionService) BarChart(ctx context.Context, m core.Month) ([]core.BucketCount, error) {
	if err := checkMonth(m); err != nil {
		return nil, err
	}
	h, err := s.store.PriceHistogram(ctx, query.MonthFilter(m))
	if err != nil {
		return nil, fmt.Errorf("price histogram: %w", err)
	}
	return h, nil
}

// PieChart counts the records of month m per category.
func (s *TransactionService) PieChart(ctx context.Context, m core.Month) ([]core.CategoryCount, error) {
	if err := checkMonth(m); err != nil {
		return nil, err
	}
	c, err := s.store.CategoryBreakdown(ctx, query.MonthFilter(m))
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	return nonNil(c), nil
}

// Combined runs the four month views concurrently. Any failure fails the
// whole call; partial results are never returned.
func (s *TransactionService) Combined(ctx context.Context, m core.Month) (core.Combined, error) {
	if err := checkMonth(m); err != nil {
		return core.Combined{}, err
	}

	var out core.Combined
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.List(gctx, ListQuery{Month: m, Page: query.All})
		out.Transactions = res.Transactions
		return err
	})
	g.Go(func() (err error) {
		out.Statistics, err = s.Statistics(gctx, m)
		return err
	})
	g.Go(func() (err error) {
		out.BarChart, err = s.BarChart(gctx, m)
		return err
	})
	g.Go(func() (err error) {
		out.PieChart, err = s.PieChart(gctx, m)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Combined{}, err
	}
	return out, nil
}

// IsEmpty reports whether the store holds no records.
func (s *TransactionService) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.store.Count(ctx, query.Filter{})
	if err != nil {
		return false, fmt.Errorf("count transactions: %w", err)
	}
	return n == 0, nil
}

func (s *TransactionService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close closes the underlying store.
func (s *TransactionService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func checkMonth(m core.Month) error {
	if m != 0 && !m.Valid() {
		return core.ErrInvalidMonth
	}
	return nil
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// IsValidation reports whether err is a caller mistake rather than a store
// failure.
func IsValidation(err error) bool {
	return errors.Is(err, core.ErrInvalidMonth) ||
		errors.Is(err, core.ErrInvalidPage) ||
		errors.Is(err, core.ErrInvalidPerPage) ||
		errors.Is(err, core.ErrInvalidSearch)
}
