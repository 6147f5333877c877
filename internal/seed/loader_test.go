package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"transactions/internal/core"
	"transactions/internal/log"
	"transactions/internal/query"
	"transactions/internal/store/memory"
)

const payload = `[
  {"id": 1, "title": "Fjallraven Backpack", "price": 109.95, "description": "Your perfect pack", "category": "men's clothing", "image": "https://img.test/1.jpg", "sold": false, "dateOfSale": "2021-11-27T20:29:54+05:30"},
  {"id": 2, "title": "Mens Casual T-Shirt", "price": 22.3, "description": "Slim-fitting style", "category": "men's clothing", "image": "https://img.test/2.jpg", "sold": true, "dateOfSale": "2021-10-27T20:29:54+05:30"},
  {"id": 3, "title": "Solid Gold Bracelet", "price": 695, "description": "From our Legends Collection", "category": "jewelery", "image": "https://img.test/3.jpg", "sold": true, "dateOfSale": "2022-10-27T20:29:54+05:30"}
]`

type fakeNotifier struct {
	mu      sync.Mutex
	results []core.SeedResult
	err     error
}

func (f *fakeNotifier) PublishDatasetSeeded(_ context.Context, res core.SeedResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, res)
	return f.err
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: log.NewHandler(io.Discard, "text", slog.LevelError)})
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoader_Seed(t *testing.T) {
	srv := serve(t, http.StatusOK, payload)
	st := memory.New()
	n := &fakeNotifier{}
	l := NewLoader(st, srv.URL, WithNotifier(n), WithLogger(quietLogger()))

	res, err := l.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if res.Inserted != 3 || res.Source != srv.URL || res.BatchID == "" {
		t.Errorf("result = %+v", res)
	}

	count, _ := st.Count(context.Background(), query.Filter{})
	if count != 3 {
		t.Errorf("stored %d records, want 3", count)
	}
	october, _ := st.Count(context.Background(), query.MonthFilter(10))
	if october != 2 {
		t.Errorf("october records = %d, want 2", october)
	}

	got, _ := st.List(context.Background(), query.Filter{}, query.All)
	if got[0].ID != 1 || got[0].Image != "https://img.test/1.jpg" || got[0].DateOfSale != "2021-11-27T20:29:54+05:30" {
		t.Errorf("first record = %+v", got[0])
	}

	if len(n.results) != 1 || n.results[0].BatchID != res.BatchID {
		t.Errorf("notifications = %+v", n.results)
	}

	// Seeding twice yields the same collection.
	res2, err := l.Seed(context.Background())
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	count, _ = st.Count(context.Background(), query.Filter{})
	if count != 3 || res2.BatchID == res.BatchID {
		t.Errorf("after reseed count=%d batch=%s", count, res2.BatchID)
	}
}

func TestLoader_NotifierFailureDoesNotFailSeed(t *testing.T) {
	srv := serve(t, http.StatusOK, payload)
	n := &fakeNotifier{err: errors.New("broker down")}
	l := NewLoader(memory.New(), srv.URL, WithNotifier(n), WithLogger(quietLogger()))

	if _, err := l.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
}

func TestLoader_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"upstream error status", http.StatusBadGateway, "oops", core.ErrSeedSource},
		{"not an array", http.StatusOK, `{"title":"x"}`, core.ErrSeedPayload},
		{"malformed json", http.StatusOK, `[{"title":`, core.ErrSeedPayload},
		{"wrong field type", http.StatusOK, `[{"title":"x","price":"cheap","dateOfSale":"2021-01-01"}]`, core.ErrSeedPayload},
		{"unparseable date", http.StatusOK, `[{"title":"x","price":1,"dateOfSale":"yesterday"}]`, core.ErrSeedPayload},
		{"missing date", http.StatusOK, `[{"title":"x","price":1}]`, core.ErrSeedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.New()
			if _, err := st.ReplaceAll(context.Background(), []core.Transaction{{Title: "keep", DateOfSale: "2021-01-01"}}); err != nil {
				t.Fatal(err)
			}

			srv := serve(t, tt.status, tt.body)
			n := &fakeNotifier{}
			l := NewLoader(st, srv.URL, WithNotifier(n), WithLogger(quietLogger()))

			_, err := l.Seed(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Seed error = %v, want %v", err, tt.wantErr)
			}

			count, _ := st.Count(context.Background(), query.Filter{})
			if count != 1 {
				t.Errorf("previous records lost: count = %d", count)
			}
			if len(n.results) != 0 {
				t.Error("failed seed must not notify")
			}
		})
	}
}

func TestLoader_Unreachable(t *testing.T) {
	srv := serve(t, http.StatusOK, payload)
	url := srv.URL
	srv.Close()

	_, err := NewLoader(memory.New(), url, WithLogger(quietLogger())).Seed(context.Background())
	if !errors.Is(err, core.ErrSeedSource) {
		t.Fatalf("error = %v, want ErrSeedSource", err)
	}
}

func TestLoader_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	l := NewLoader(memory.New(), srv.URL, WithTimeout(50*time.Millisecond), WithLogger(quietLogger()))
	_, err := l.Seed(context.Background())
	if !errors.Is(err, core.ErrSeedSource) {
		t.Fatalf("error = %v, want ErrSeedSource", err)
	}
}

func TestDecode_EmptyArray(t *testing.T) {
	txs, err := Decode([]byte("  []\n"))
	if err != nil || len(txs) != 0 {
		t.Fatalf("Decode = %v, %v", txs, err)
	}
}

func TestDecode_IgnoresSourceID(t *testing.T) {
	txs, err := Decode([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	for _, tx := range txs {
		if tx.ID != 0 {
			t.Errorf("source id leaked: %+v", tx)
		}
	}
	if !strings.HasPrefix(txs[2].Title, "Solid Gold") || txs[2].Price != 695 {
		t.Errorf("third = %+v", txs[2])
	}
}

func TestDecode_KeepsEmptyFields(t *testing.T) {
	txs, err := Decode([]byte(`[{"title":"","description":"","price":0,"category":"","sold":false,"dateOfSale":"2021-03-05"}]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := core.Transaction{DateOfSale: "2021-03-05"}
	if len(txs) != 1 || txs[0] != want {
		t.Errorf("Decode = %+v", txs)
	}
}
