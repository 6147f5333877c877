// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating query
// parameters. Invalid values are rejected with the core sentinel errors,
// which handlers map to 400.

package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"transactions/internal/core"
	"transactions/internal/query"
	"transactions/internal/services"
)

// maxSearchLength bounds the free-text search term, in characters.
const maxSearchLength = 200

// PageDefaults configures pagination parsing.
type PageDefaults struct {
	PerPage    int
	MaxPerPage int
}

// ParseMonthParam reads the month query parameter. An absent month is 0,
// meaning no month restriction.
func ParseMonthParam(q url.Values) (core.Month, error) {
	m, _, err := core.ParseMonth(q.Get("month"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", err, q.Get("month"))
	}
	return m, nil
}

// ParseListParams reads month, search, page and perPage.
func ParseListParams(q url.Values, d PageDefaults) (services.ListQuery, error) {
	m, err := ParseMonthParam(q)
	if err != nil {
		return services.ListQuery{}, err
	}

	pageNum, err := parsePositive(q.Get("page"), 1, core.ErrInvalidPage)
	if err != nil {
		return services.ListQuery{}, err
	}
	perPage, err := parsePositive(q.Get("perPage"), d.PerPage, core.ErrInvalidPerPage)
	if err != nil {
		return services.ListQuery{}, err
	}
	page, err := query.NewPage(pageNum, perPage, d.MaxPerPage)
	if err != nil {
		return services.ListQuery{}, fmt.Errorf("%w: page %d, perPage %d", err, pageNum, perPage)
	}

	// The term is matched as written; only its length is bounded.
	search := q.Get("search")
	if utf8.RuneCountInString(search) > maxSearchLength {
		return services.ListQuery{}, fmt.Errorf("%w: longer than %d characters", core.ErrInvalidSearch, maxSearchLength)
	}

	return services.ListQuery{Month: m, Search: search, Page: page}, nil
}

// parsePositive parses v as an integer >= 1, returning def when v is empty.
func parsePositive(v string, def int, sentinel error) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", sentinel, v)
	}
	return n, nil
}
