// Package storetest holds the behavioural contract every store.Store
// implementation must satisfy.
package storetest

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"transactions/internal/core"
	"transactions/internal/query"
	"transactions/internal/store"
)

// Fixture returns a small dataset spanning several months and years, with
// prices on every bucket boundary.
func Fixture() []core.Transaction {
	return []core.Transaction{
		{Title: "A", Description: "first", Price: 50, DateOfSale: "2021-03-05", Sold: true, Category: "X"},
		{Title: "Boundary low", Description: "exactly one hundred", Price: 100, DateOfSale: "2021-07-01T10:00:00+05:30", Sold: true, Category: "X"},
		{Title: "Boundary high", Description: "just over", Price: 101, DateOfSale: "2022-07-02T10:00:00+05:30", Sold: false, Category: "Y"},
		{Title: "Fractional", Description: "between buckets", Price: 100.5, DateOfSale: "2021-07-03", Sold: false, Category: "Y"},
		{Title: "Top of nine", Description: "nine hundred", Price: 900, DateOfSale: "2021-07-04", Sold: true, Category: "Z"},
		{Title: "Open bucket", Description: "nine oh one", Price: 901, DateOfSale: "2023-07-05", Sold: true, Category: "Z"},
		{Title: "Laptop", Description: "USB_C 100% charge", Price: 1299.99, DateOfSale: "2021-11-27T20:29:54+05:30", Sold: false, Category: "electronics"},
	}
}

// Numbered returns n records sold in month m titled "item-01".."item-n".
func Numbered(n int, m core.Month) []core.Transaction {
	out := make([]core.Transaction, n)
	for i := range out {
		out[i] = core.Transaction{
			Title:       fmt.Sprintf("item-%02d", i+1),
			Description: "numbered",
			Price:       float64(i * 10),
			DateOfSale:  fmt.Sprintf("2021-%02d-%02d", int(m), i%28+1),
			Sold:        i%2 == 0,
			Category:    fmt.Sprintf("cat-%d", i%3),
		}
	}
	return out
}

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()

	seed := func(t *testing.T, s store.Store, txs []core.Transaction) {
		t.Helper()
		n, err := s.ReplaceAll(ctx, txs)
		if err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}
		if n != len(txs) {
			t.Fatalf("ReplaceAll inserted %d, want %d", n, len(txs))
		}
	}

	t.Run("seed scenario", func(t *testing.T) {
		s := open(t)
		seed(t, s, Fixture()[:1])

		st, err := s.Statistics(ctx, query.MonthFilter(3))
		if err != nil {
			t.Fatalf("Statistics: %v", err)
		}
		if st != (core.Statistics{TotalSaleAmount: 50, SoldItems: 1, NotSoldItems: 0}) {
			t.Errorf("statistics = %+v", st)
		}

		h, err := s.PriceHistogram(ctx, query.MonthFilter(3))
		if err != nil {
			t.Fatalf("PriceHistogram: %v", err)
		}
		want := core.NewHistogram()
		want[0].Count = 1
		if !reflect.DeepEqual(h, want) {
			t.Errorf("histogram = %+v", h)
		}

		pie, err := s.CategoryBreakdown(ctx, query.MonthFilter(3))
		if err != nil {
			t.Fatalf("CategoryBreakdown: %v", err)
		}
		if !reflect.DeepEqual(pie, []core.CategoryCount{{Category: "X", Count: 1}}) {
			t.Errorf("pie = %+v", pie)
		}
	})

	t.Run("bucket boundaries", func(t *testing.T) {
		s := open(t)
		seed(t, s, Fixture())

		h, err := s.PriceHistogram(ctx, query.MonthFilter(7))
		if err != nil {
			t.Fatalf("PriceHistogram: %v", err)
		}
		got := make([]int64, len(h))
		for i, b := range h {
			got[i] = b.Count
		}
		// 100 -> [0,100]; 101 and 100.5 -> [101,200]; 900 -> [801,900]; 901 -> open.
		want := []int64{1, 2, 0, 0, 0, 0, 0, 0, 1, 1}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("counts = %v, want %v", got, want)
		}
		if h[9].Range != "901-above" {
			t.Errorf("last label = %q", h[9].Range)
		}
	})

	t.Run("aggregates partition the month", func(t *testing.T) {
		s := open(t)
		seed(t, s, Fixture())

		for m := core.Month(1); m <= 12; m++ {
			f := query.MonthFilter(m)
			n, err := s.Count(ctx, f)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			st, err := s.Statistics(ctx, f)
			if err != nil {
				t.Fatalf("Statistics: %v", err)
			}
			if st.SoldItems+st.NotSoldItems != n {
				t.Errorf("month %d: sold+notSold = %d, want %d", m, st.SoldItems+st.NotSoldItems, n)
			}
			h, err := s.PriceHistogram(ctx, f)
			if err != nil {
				t.Fatalf("PriceHistogram: %v", err)
			}
			var hs int64
			for _, b := range h {
				hs += b.Count
			}
			if hs != n {
				t.Errorf("month %d: histogram sum = %d, want %d", m, hs, n)
			}
			pie, err := s.CategoryBreakdown(ctx, f)
			if err != nil {
				t.Fatalf("CategoryBreakdown: %v", err)
			}
			var ps int64
			for _, c := range pie {
				if c.Count == 0 {
					t.Errorf("month %d: zero-filled category %q", m, c.Category)
				}
				ps += c.Count
			}
			if ps != n {
				t.Errorf("month %d: pie sum = %d, want %d", m, ps, n)
			}
		}
	})

	t.Run("month is year independent", func(t *testing.T) {
		s := open(t)
		seed(t, s, Fixture())

		st, err := s.Statistics(ctx, query.MonthFilter(7))
		if err != nil {
			t.Fatalf("Statistics: %v", err)
		}
		if st.SoldItems != 3 || st.NotSoldItems != 2 {
			t.Errorf("july statistics = %+v", st)
		}
		if core.RoundCents(st.TotalSaleAmount) != 2102.5 {
			t.Errorf("july total = %v", st.TotalSaleAmount)
		}
	})

	t.Run("empty month", func(t *testing.T) {
		s := open(t)
		seed(t, s, Fixture())

		st, err := s.Statistics(ctx, query.MonthFilter(2))
		if err != nil {
			t.Fatalf("Statistics: %v", err)
		}
		if st != (core.Statistics{}) {
			t.Errorf("statistics = %+v", st)
		}
		pie, err := s.CategoryBreakdown(ctx, query.MonthFilter(2))
		if err != nil {
			t.Fatalf("CategoryBreakdown: %v", err)
		}
		if len(pie) != 0 {
			t.Errorf("pie = %+v", pie)
		}
		list, err := s.List(ctx, query.MonthFilter(2), query.All)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("search", func(t *testing.T) {
		s := open(t)
		seed(t, s, append(Fixture(), core.Transaction{
			Title: "Élan Backpack", Description: "Sac à dos ÉTÉ", Price: 42, DateOfSale: "2021-02-01", Category: "bags",
		}))

		cases := map[string][]string{
			"Élan":      {"Élan Backpack"},
			"élan":      {"Élan Backpack"},
			"ÉLAN":      {"Élan Backpack"},
			"à dos été": {"Élan Backpack"},
			"boundary":  {"Boundary low", "Boundary high"},
			"NINE":      {"Top of nine", "Open bucket"},
			"100.5":     {"Fractional"},
			"100%":      {"Laptop"},
			"usb_c":     {"Laptop"},
			"t_p":       nil,
		}
		for term, want := range cases {
			got, err := s.List(ctx, query.SearchFilter(term), query.All)
			if err != nil {
				t.Fatalf("List(%q): %v", term, err)
			}
			var titles []string
			for _, tx := range got {
				titles = append(titles, tx.Title)
			}
			if !reflect.DeepEqual(titles, want) {
				t.Errorf("search %q = %v, want %v", term, titles, want)
			}
		}

		got, err := s.List(ctx, query.MonthFilter(7).And(query.SearchFilter("bucket")), query.All)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("july+bucket matched %d, want 2", len(got))
		}
	})

	t.Run("pagination", func(t *testing.T) {
		s := open(t)
		seed(t, s, Numbered(25, 4))

		got, err := s.List(ctx, query.MonthFilter(4), query.Page{Number: 2, Size: 10})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 10 {
			t.Fatalf("page 2 size = %d", len(got))
		}
		if got[0].Title != "item-11" || got[9].Title != "item-20" {
			t.Errorf("page 2 = %s..%s", got[0].Title, got[9].Title)
		}

		got, err = s.List(ctx, query.MonthFilter(4), query.Page{Number: 3, Size: 10})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 5 {
			t.Errorf("page 3 size = %d", len(got))
		}

		got, err = s.List(ctx, query.MonthFilter(4), query.Page{Number: 9, Size: 10})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("page past end size = %d", len(got))
		}
	})

	t.Run("records round trip", func(t *testing.T) {
		s := open(t)
		in := Fixture()[6]
		in.Image = "https://example.test/img.jpg"
		seed(t, s, []core.Transaction{in})

		got, err := s.List(ctx, query.Filter{}, query.All)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len = %d", len(got))
		}
		if got[0].ID == 0 {
			t.Error("store key not assigned")
		}
		in.ID = got[0].ID
		if got[0] != in {
			t.Errorf("round trip = %+v, want %+v", got[0], in)
		}
	})

	t.Run("reseed is idempotent", func(t *testing.T) {
		s := open(t)
		seed(t, s, Fixture())
		seed(t, s, Fixture())

		n, err := s.Count(ctx, query.Filter{})
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != int64(len(Fixture())) {
			t.Errorf("count after reseed = %d, want %d", n, len(Fixture()))
		}
	})

	t.Run("invalid batch keeps previous data", func(t *testing.T) {
		s := open(t)
		seed(t, s, Fixture())

		bad := append(Fixture()[:2], core.Transaction{Title: "broken", DateOfSale: "never"})
		if _, err := s.ReplaceAll(ctx, bad); err == nil {
			t.Fatal("expected error for invalid dateOfSale")
		}
		n, err := s.Count(ctx, query.Filter{})
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != int64(len(Fixture())) {
			t.Errorf("count after failed seed = %d, want %d", n, len(Fixture()))
		}
	})
}
