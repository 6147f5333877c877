package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

type (
	// Transaction is one product sale record.
	Transaction struct {
		ID          int64   `json:"id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		DateOfSale  string  `json:"dateOfSale"`
		Sold        bool    `json:"sold"`
		Category    string  `json:"category"`
		Image       string  `json:"image,omitempty"`
	}

	// SeedResult describes a completed dataset replacement.
	SeedResult struct {
		BatchID  string
		Source   string
		Inserted int
		Duration time.Duration
	}
)

var (
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidPage    = errors.New("invalid page")
	ErrInvalidPerPage = errors.New("invalid perPage")
	ErrInvalidSearch  = errors.New("invalid search")
	ErrInvalidDate    = errors.New("invalid dateOfSale")
	ErrSeedSource     = errors.New("seed source unavailable")
	ErrSeedPayload    = errors.New("malformed seed payload")
)

// Accepted dateOfSale layouts, most specific first.
var saleDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseSaleDate parses a dateOfSale value. The returned time keeps the
// offset written in the source so that Month() reflects the calendar month
// the record was sold in, not the UTC month.
func ParseSaleDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range saleDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// SaleMonth returns the calendar month of the sale.
func (t Transaction) SaleMonth() (Month, error) {
	d, err := ParseSaleDate(t.DateOfSale)
	if err != nil {
		return 0, err
	}
	return Month(d.Month()), nil
}

// PriceText is the textual form of the price used by free-text search.
func (t Transaction) PriceText() string {
	return FormatPrice(t.Price)
}

// FormatPrice renders a price in its shortest decimal form ("50", "329.85").
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// Validate reports whether t can be stored. Every field is kept as given;
// only dateOfSale must parse, since the month filter depends on it.
func (t Transaction) Validate() error {
	if _, err := t.SaleMonth(); err != nil {
		return err
	}
	return nil
}
