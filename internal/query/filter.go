// Package query turns month, search and pagination parameters into store
// predicates. The same Filter renders to SQL for the relational stores and
// evaluates in memory for the memory store, so every backend selects the
// same records.
package query

import (
	"strings"

	"transactions/internal/core"
)

// Columns shared by the relational schemas.
const (
	ColumnTitle             = "title"
	ColumnDescription       = "description"
	ColumnTitleSearch       = "title_search"
	ColumnDescriptionSearch = "description_search"
	ColumnPriceText         = "price_text"
	ColumnSaleMonth         = "sale_month"
	ColumnPrice             = "price"
)

// SearchColumns are the columns free-text search looks at. They hold Fold
// of the source text, written at insert time.
var SearchColumns = []string{ColumnTitleSearch, ColumnDescriptionSearch, ColumnPriceText}

// Fold is the case folding applied to searched text and search terms.
// Store engines only fold ASCII, so folding happens here.
func Fold(s string) string {
	return strings.ToLower(s)
}

// Filter selects transactions. The zero value matches everything.
type Filter struct {
	// Month restricts to one calendar month of any year; 0 means any month.
	Month core.Month
	// Terms are case-insensitive substrings; each must occur in the title,
	// description or price text.
	Terms []string
}

// MonthFilter selects records sold in month m, independent of year.
func MonthFilter(m core.Month) Filter {
	return Filter{Month: m}
}

// SearchFilter selects records whose title, description or price text
// contains term, whitespace included. An empty term matches everything.
func SearchFilter(term string) Filter {
	if term == "" {
		return Filter{}
	}
	return Filter{Terms: []string{term}}
}

// And combines two filters; the result matches only records both match.
// Two different months yield a filter that cannot match.
func (f Filter) And(o Filter) Filter {
	out := Filter{Month: f.Month}
	switch {
	case o.Month == 0:
	case out.Month == 0:
		out.Month = o.Month
	case out.Month != o.Month:
		out.Month = -1
	}
	out.Terms = append(append([]string(nil), f.Terms...), o.Terms...)
	return out
}

// Impossible reports whether the filter can never match.
func (f Filter) Impossible() bool {
	return f.Month < 0
}

// Match evaluates the filter against one record in memory.
func (f Filter) Match(t core.Transaction) bool {
	if f.Impossible() {
		return false
	}
	if f.Month != 0 {
		m, err := t.SaleMonth()
		if err != nil || m != f.Month {
			return false
		}
	}
	for _, term := range f.Terms {
		term = Fold(term)
		if !strings.Contains(Fold(t.Title), term) &&
			!strings.Contains(Fold(t.Description), term) &&
			!strings.Contains(Fold(t.PriceText()), term) {
			return false
		}
	}
	return true
}

// SQL renders the filter as a WHERE fragment with ? placeholders.
func (f Filter) SQL() (string, []any) {
	if f.Impossible() {
		return "1 = 0", nil
	}

	var (
		clauses []string
		args    []any
	)
	if f.Month != 0 {
		clauses = append(clauses, ColumnSaleMonth+" = ?")
		args = append(args, int(f.Month))
	}
	for _, term := range f.Terms {
		pattern := "%" + EscapeLike(Fold(term)) + "%"
		ors := make([]string, 0, len(SearchColumns))
		for _, col := range SearchColumns {
			ors = append(ors, col+` LIKE ? ESCAPE '\'`)
			args = append(args, pattern)
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if len(clauses) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so the term matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
