package query

import (
	"math"

	"transactions/internal/core"
)

// Page is a 1-based page window. A zero Size means "no pagination".
type Page struct {
	Number int
	Size   int
}

// All is the unpaginated window.
var All = Page{}

// NewPage validates a page window.
func NewPage(number, size, maxSize int) (Page, error) {
	if number < 1 {
		return Page{}, core.ErrInvalidPage
	}
	if size < 1 || (maxSize > 0 && size > maxSize) {
		return Page{}, core.ErrInvalidPerPage
	}
	// The offset (number-1)*size must fit in an int.
	if number-1 > math.MaxInt/size {
		return Page{}, core.ErrInvalidPage
	}
	return Page{Number: number, Size: size}, nil
}

func (p Page) Paginated() bool {
	return p.Size > 0
}

func (p Page) Offset() int {
	if !p.Paginated() || p.Number < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

func (p Page) Limit() int {
	return p.Size
}

// Bounds returns the [lo, hi) slice bounds of the page over n items.
func (p Page) Bounds(n int) (lo, hi int) {
	if !p.Paginated() {
		return 0, n
	}
	lo = max(0, min(p.Offset(), n))
	hi = lo + min(p.Size, n-lo)
	return lo, hi
}
