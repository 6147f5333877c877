// Package store defines the record store port. Implementations live in the
// sqlite, postgres, mongo and memory subpackages; every aggregation runs in
// the backing store's own query engine.
package store

import (
	"context"
	"fmt"

	"transactions/internal/core"
	"transactions/internal/query"
)

// Ports for the record store.
type (
	// Seeder replaces the whole collection.
	Seeder interface {
		// ReplaceAll deletes every record and inserts txs, returning the
		// number inserted.
		ReplaceAll(ctx context.Context, txs []core.Transaction) (int, error)
	}

	// Lister returns matching records ordered by their store key.
	Lister interface {
		List(ctx context.Context, f query.Filter, p query.Page) ([]core.Transaction, error)
		Count(ctx context.Context, f query.Filter) (int64, error)
	}

	// Aggregator computes read-only reductions over the matching records.
	Aggregator interface {
		Statistics(ctx context.Context, f query.Filter) (core.Statistics, error)
		// PriceHistogram returns one count per core.PriceBuckets entry, in order.
		PriceHistogram(ctx context.Context, f query.Filter) ([]core.BucketCount, error)
		// CategoryBreakdown returns one entry per category present, by name.
		CategoryBreakdown(ctx context.Context, f query.Filter) ([]core.CategoryCount, error)
	}

	// Store is the full record store handle injected into services.
	Store interface {
		Seeder
		Lister
		Aggregator
		Ping(ctx context.Context) error
		Close() error
	}
)

// Row is the persisted shape of a transaction, with the derived columns the
// query builder filters on.
type Row struct {
	core.Transaction
	SaleMonth         int
	PriceText         string
	TitleSearch       string
	DescriptionSearch string
}

// NewRow derives the persisted columns of t.
func NewRow(t core.Transaction) (Row, error) {
	m, err := t.SaleMonth()
	if err != nil {
		return Row{}, err
	}
	return Row{
		Transaction:       t,
		SaleMonth:         int(m),
		PriceText:         t.PriceText(),
		TitleSearch:       query.Fold(t.Title),
		DescriptionSearch: query.Fold(t.Description),
	}, nil
}

// NewRows converts a seed batch, failing on the first invalid record.
func NewRows(txs []core.Transaction) ([]Row, error) {
	rows := make([]Row, len(txs))
	for i, t := range txs {
		r, err := NewRow(t)
		if err != nil {
			return nil, fmt.Errorf("record %d (%q): %w", i, t.Title, err)
		}
		rows[i] = r
	}
	return rows, nil
}
