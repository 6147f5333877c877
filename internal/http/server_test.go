package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"transactions/internal/core"
	"transactions/internal/log"
	"transactions/internal/query"
	"transactions/internal/services"
	"transactions/internal/store"
	"transactions/internal/store/memory"
	"transactions/internal/store/storetest"
)

type fakeSeeder struct {
	res   core.SeedResult
	err   error
	calls int
}

func (f *fakeSeeder) Seed(context.Context) (core.SeedResult, error) {
	f.calls++
	return f.res, f.err
}

// brokenStore fails every read and ping.
type brokenStore struct{ store.Store }

var errDown = errors.New("connection refused")

func (brokenStore) List(context.Context, query.Filter, query.Page) ([]core.Transaction, error) {
	return nil, errDown
}
func (brokenStore) Count(context.Context, query.Filter) (int64, error) { return 0, errDown }
func (brokenStore) Statistics(context.Context, query.Filter) (core.Statistics, error) {
	return core.Statistics{}, errDown
}
func (brokenStore) PriceHistogram(context.Context, query.Filter) ([]core.BucketCount, error) {
	return nil, errDown
}
func (brokenStore) CategoryBreakdown(context.Context, query.Filter) ([]core.CategoryCount, error) {
	return nil, errDown
}
func (brokenStore) Ping(context.Context) error { return errDown }

func newTestServer(t *testing.T, st store.Store, seeder Seeder, rpm int) *Server {
	t.Helper()
	logger := log.New(log.Config{Handler: log.NewHandler(io.Discard, "text", slog.LevelError)})
	srv := NewServer(":0", services.NewTransactionService(st), seeder, Options{
		Logger:       logger,
		RateLimitRPM: rpm,
		Pages:        PageDefaults{PerPage: 10, MaxPerPage: 100},
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func seededStore(t *testing.T, txs []core.Transaction) *memory.Store {
	t.Helper()
	st := memory.New()
	if _, err := st.ReplaceAll(context.Background(), txs); err != nil {
		t.Fatal(err)
	}
	return st
}

func do(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestSingleRecordScenario(t *testing.T) {
	st := seededStore(t, []core.Transaction{
		{Title: "A", Price: 50, Category: "X", Sold: true, DateOfSale: "2021-03-05"},
	})
	srv := newTestServer(t, st, &fakeSeeder{}, 60)

	rr := do(t, srv, http.MethodGet, "/api/transactions/statistics?month=3")
	if rr.Code != http.StatusOK {
		t.Fatalf("statistics status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"totalSaleAmount":50,"soldItems":1,"notSoldItems":0}` {
		t.Errorf("statistics body = %s", got)
	}

	bars := decode[[]core.BucketCount](t, do(t, srv, http.MethodGet, "/api/transactions/barchart?month=3"))
	if len(bars) != 10 || bars[0].Range != "0-100" || bars[0].Count != 1 || bars[9].Range != "901-above" {
		t.Errorf("barchart = %+v", bars)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions/piechart?month=3")
	if got := strings.TrimSpace(rr.Body.String()); got != `[{"category":"X","count":1}]` {
		t.Errorf("piechart body = %s", got)
	}
}

func TestListEndpoint(t *testing.T) {
	srv := newTestServer(t, seededStore(t, storetest.Numbered(25, 4)), &fakeSeeder{}, 60)

	rr := do(t, srv, http.MethodGet, "/api/transactions?month=4&page=2&perPage=10")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Total-Count"); got != "25" {
		t.Errorf("X-Total-Count = %q", got)
	}
	txs := decode[[]core.Transaction](t, rr)
	if len(txs) != 10 || txs[0].Title != "item-11" || txs[9].Title != "item-20" {
		t.Errorf("page 2 = %+v", txs)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions?month=april&search=item-2")
	txs = decode[[]core.Transaction](t, rr)
	if len(txs) != 6 {
		t.Errorf("search item-2 returned %d records, want 6", len(txs))
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions?month=5")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty month body = %s", rr.Body.String())
	}
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t, seededStore(t, storetest.Fixture()), &fakeSeeder{}, 60)

	for _, target := range []string{
		"/api/transactions?month=13",
		"/api/transactions?page=abc",
		"/api/transactions?page=0",
		"/api/transactions?perPage=-1",
		"/api/transactions?perPage=1000",
		"/api/transactions/statistics?month=0",
		"/api/transactions/barchart?month=foo",
		"/api/transactions/piechart?month=99",
		"/api/transactions/combined?month=x",
		"/api/transactions?month=4&page=4611686018427387904&perPage=4",
		"/api/transactions?search=" + strings.Repeat("a", 201),
	} {
		rr := do(t, srv, http.MethodGet, target)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rr.Code)
			continue
		}
		if body := decode[map[string]string](t, rr); body["error"] == "" {
			t.Errorf("%s: missing error message", target)
		}
	}
}

func TestAbsentMonthMeansAllRecords(t *testing.T) {
	srv := newTestServer(t, seededStore(t, storetest.Fixture()), &fakeSeeder{}, 60)

	st := decode[core.Statistics](t, do(t, srv, http.MethodGet, "/api/transactions/statistics"))
	if st.SoldItems+st.NotSoldItems != int64(len(storetest.Fixture())) {
		t.Errorf("statistics without month = %+v", st)
	}
}

func TestCombinedMatchesIndividualEndpoints(t *testing.T) {
	srv := newTestServer(t, seededStore(t, storetest.Fixture()), &fakeSeeder{}, 60)

	for _, path := range []string{"/api/transactions/combined?month=7", "/api/transactions/all?month=7"} {
		c := decode[core.Combined](t, do(t, srv, http.MethodGet, path))

		list := decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/api/transactions?month=7&perPage=100"))
		st := decode[core.Statistics](t, do(t, srv, http.MethodGet, "/api/transactions/statistics?month=7"))
		bars := decode[[]core.BucketCount](t, do(t, srv, http.MethodGet, "/api/transactions/barchart?month=7"))
		pie := decode[[]core.CategoryCount](t, do(t, srv, http.MethodGet, "/api/transactions/piechart?month=7"))

		if !reflect.DeepEqual(c.Transactions, list) || c.Statistics != st ||
			!reflect.DeepEqual(c.BarChart, bars) || !reflect.DeepEqual(c.PieChart, pie) {
			t.Errorf("%s differs from individual endpoints: %+v", path, c)
		}
		if len(c.Transactions) != 5 {
			t.Errorf("%s: %d transactions, want 5", path, len(c.Transactions))
		}
	}
}

func TestSeedEndpoint(t *testing.T) {
	seeder := &fakeSeeder{res: core.SeedResult{Inserted: 60, BatchID: "b-1"}}
	srv := newTestServer(t, memory.New(), seeder, 60)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr := do(t, srv, method, "/api/init/seed")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", method, rr.Code)
		}
		if got := strings.TrimSpace(rr.Body.String()); got != `{"message":"Database seeded successfully","count":60}` {
			t.Errorf("%s body = %s", method, got)
		}
	}

	seeder.err = core.ErrSeedSource
	rr := do(t, srv, http.MethodGet, "/api/init/seed")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("failure status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"error":"Failed to seed database"}` {
		t.Errorf("failure body = %s", got)
	}
}

func TestSeedRateLimit(t *testing.T) {
	seeder := &fakeSeeder{res: core.SeedResult{Inserted: 1}}
	srv := newTestServer(t, memory.New(), seeder, 1)

	if rr := do(t, srv, http.MethodGet, "/api/init/seed"); rr.Code != http.StatusOK {
		t.Fatalf("first seed status = %d", rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/api/init/seed")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second seed status = %d", rr.Code)
	}
	if seeder.calls != 1 {
		t.Errorf("seeder called %d times", seeder.calls)
	}

	// Reads are not limited.
	for i := 0; i < 3; i++ {
		if rr := do(t, srv, http.MethodGet, "/api/transactions"); rr.Code != http.StatusOK {
			t.Fatalf("read %d status = %d", i, rr.Code)
		}
	}
}

func TestStoreFailure(t *testing.T) {
	srv := newTestServer(t, brokenStore{}, &fakeSeeder{}, 60)

	for _, path := range []string{
		"/api/transactions?month=3",
		"/api/transactions/statistics?month=3",
		"/api/transactions/barchart?month=3",
		"/api/transactions/piechart?month=3",
		"/api/transactions/combined?month=3",
	} {
		rr := do(t, srv, http.MethodGet, path)
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", path, rr.Code)
		}
		if strings.Contains(rr.Body.String(), "connection refused") {
			t.Errorf("%s: store error leaked: %s", path, rr.Body.String())
		}
	}

	if rr := do(t, srv, http.MethodGet, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rr.Code)
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv := newTestServer(t, memory.New(), &fakeSeeder{}, 60)

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, srv, http.MethodGet, path); rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}

	rr := do(t, srv, http.MethodGet, "/metrics")
	if !strings.Contains(rr.Body.String(), "http_requests_total 2") {
		t.Errorf("metrics = %s", rr.Body.String())
	}
}

func TestMiddlewareChain(t *testing.T) {
	srv := newTestServer(t, memory.New(), &fakeSeeder{}, 60)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("Origin", "http://dashboard.test")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	if rr := do(t, srv, http.MethodDelete, "/api/transactions"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d, want 405", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, memory.New(), &fakeSeeder{}, 60)

	req := httptest.NewRequest(http.MethodOptions, "/api/init/seed", nil)
	req.Header.Set("Origin", "http://dashboard.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent && rr.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods = %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
}
