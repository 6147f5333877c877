// Package seed replaces the record collection with the remote dataset.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"transactions/internal/core"
	"transactions/internal/log"
	"transactions/internal/store"
)

// MaxPayloadBytes caps the seed response body.
const MaxPayloadBytes = 32 << 20

// Notifier is told about every completed seed. Failures are logged only.
type Notifier interface {
	PublishDatasetSeeded(ctx context.Context, res core.SeedResult) error
}

// record is one element of the seed payload. The source id is ignored;
// the store assigns its own keys.
type record struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	DateOfSale  string  `json:"dateOfSale"`
	Sold        bool    `json:"sold"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
}

type Loader struct {
	store    store.Seeder
	url      string
	client   *http.Client
	timeout  time.Duration
	notifier Notifier
	logger   *log.Logger
	events   *log.StructuredLogger
}

type Option func(*Loader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithTimeout bounds a whole Seed call, fetch and write included.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

func WithNotifier(n Notifier) Option {
	return func(l *Loader) { l.notifier = n }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) { l.logger = logger.WithComponent(log.ComponentSeed) }
}

func NewLoader(s store.Seeder, url string, opts ...Option) *Loader {
	l := &Loader{
		store:   s,
		url:     url,
		client:  &http.Client{},
		timeout: 30 * time.Second,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentSeed),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.events = log.NewStructuredLogger(l.logger)
	return l
}

// Source returns the URL the loader fetches.
func (l *Loader) Source() string { return l.url }

// Seed fetches the dataset, validates every element and replaces the
// collection. Nothing is deleted unless the whole payload is valid.
func (l *Loader) Seed(ctx context.Context) (core.SeedResult, error) {
	start := time.Now()
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	body, err := l.fetch(ctx)
	if err != nil {
		l.events.LogError(ctx, "Seed fetch failed", err, log.OpSeed, l.fields())
		return core.SeedResult{}, err
	}

	txs, err := Decode(body)
	if err != nil {
		l.events.LogError(ctx, "Seed payload rejected", err, log.OpValidate, l.fields())
		return core.SeedResult{}, err
	}

	n, err := l.store.ReplaceAll(ctx, txs)
	if err != nil {
		l.events.LogError(ctx, "Seed write failed", err, log.OpSeed, l.fields())
		return core.SeedResult{}, fmt.Errorf("replace records: %w", err)
	}

	res := core.SeedResult{
		BatchID:  uuid.NewString(),
		Source:   l.url,
		Inserted: n,
		Duration: time.Since(start),
	}
	l.events.LogSeedCompleted(ctx, res.BatchID, res.Source, res.Inserted, res.Duration)

	if l.notifier != nil {
		// The dataset is already replaced; a lost event must not undo that.
		if err := l.notifier.PublishDatasetSeeded(context.WithoutCancel(ctx), res); err != nil {
			l.logger.WarnContext(ctx, "Failed to publish dataset seeded event",
				log.FieldBatchID, res.BatchID,
				log.FieldError, err.Error())
		}
	}

	return res, nil
}

func (l *Loader) fields() log.LogFields {
	return log.LogFields{log.FieldSeedURL: l.url}
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", core.ErrSeedSource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSeedSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", core.ErrSeedSource, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", core.ErrSeedSource, err)
	}
	if len(body) > MaxPayloadBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", core.ErrSeedPayload, MaxPayloadBytes)
	}
	return body, nil
}

// Decode parses a seed payload: a JSON array of records. Fields are taken
// verbatim; each record only needs a parseable dateOfSale.
func Decode(body []byte) ([]core.Transaction, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", core.ErrSeedPayload)
	}

	var records []record
	if err := json.Unmarshal(body, &records); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: field %q: %v", core.ErrSeedPayload, typeErr.Field, err)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrSeedPayload, err)
	}

	txs := make([]core.Transaction, len(records))
	for i, r := range records {
		t := core.Transaction{
			Title:       r.Title,
			Description: r.Description,
			Price:       r.Price,
			DateOfSale:  r.DateOfSale,
			Sold:        r.Sold,
			Category:    r.Category,
			Image:       r.Image,
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", core.ErrSeedPayload, i, err)
		}
		txs[i] = t
	}
	return txs, nil
}
