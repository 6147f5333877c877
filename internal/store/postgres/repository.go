// Package postgres is a PostgreSQL record store built on gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"transactions/internal/core"
	"transactions/internal/query"
	"transactions/internal/store"
)

const insertBatchSize = 500

// PostgreSQL error classes worth naming in logs.
const (
	PgErrClassConnection = "08"
	PgErrClassResources  = "53"
	PgErrClassOperator   = "57"
)

type Repository struct {
	db *gorm.DB
}

// Ensure interface conformance
var _ store.Store = (*Repository)(nil)

// NewRepository connects to dsn and migrates the transactions table.
func NewRepository(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&Transaction{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return newWithDB(db), nil
}

// newWithDB wraps an already opened gorm handle.
func newWithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) ReplaceAll(ctx context.Context, txs []core.Transaction) (int, error) {
	rows, err := store.NewRows(txs)
	if err != nil {
		return 0, err
	}
	models := make([]Transaction, len(rows))
	for i, row := range rows {
		models[i] = fromRow(row)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM transactions").Error; err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		if len(models) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(models, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		logPgError(ctx, "replace transactions", err)
		return 0, err
	}

	slog.InfoContext(ctx, "Transactions replaced in PostgreSQL", "rows", len(models))
	return len(models), nil
}

func (r *Repository) filtered(ctx context.Context, f query.Filter) *gorm.DB {
	where, args := f.SQL()
	return r.db.WithContext(ctx).Model(&Transaction{}).Where(where, args...)
}

func (r *Repository) List(ctx context.Context, f query.Filter, p query.Page) ([]core.Transaction, error) {
	q := r.filtered(ctx, f).Order("id")
	if p.Paginated() {
		q = q.Limit(p.Limit()).Offset(p.Offset())
	}

	var models []Transaction
	if err := q.Find(&models).Error; err != nil {
		logPgError(ctx, "list transactions", err)
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	out := make([]core.Transaction, len(models))
	for i, m := range models {
		out[i] = m.toCore()
	}
	return out, nil
}

func (r *Repository) Count(ctx context.Context, f query.Filter) (int64, error) {
	var n int64
	if err := r.filtered(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

type statisticsRow struct {
	TotalSaleAmount float64
	SoldItems       int64
	NotSoldItems    int64
}

func (r *Repository) Statistics(ctx context.Context, f query.Filter) (core.Statistics, error) {
	var row statisticsRow
	err := r.filtered(ctx, f).
		Select(`COALESCE(SUM(price), 0) AS total_sale_amount,
			COUNT(*) FILTER (WHERE sold) AS sold_items,
			COUNT(*) FILTER (WHERE NOT sold) AS not_sold_items`).
		Scan(&row).Error
	if err != nil {
		logPgError(ctx, "statistics", err)
		return core.Statistics{}, fmt.Errorf("query statistics: %w", err)
	}
	return core.Statistics(row), nil
}

type bucketRow struct {
	Bucket int
	N      int64
}

func (r *Repository) PriceHistogram(ctx context.Context, f query.Filter) ([]core.BucketCount, error) {
	var rows []bucketRow
	err := r.filtered(ctx, f).
		Select(query.BucketCaseSQL(query.ColumnPrice) + " AS bucket, COUNT(*) AS n").
		Group("bucket").
		Scan(&rows).Error
	if err != nil {
		logPgError(ctx, "price histogram", err)
		return nil, fmt.Errorf("query price histogram: %w", err)
	}

	h := core.NewHistogram()
	for _, b := range rows {
		if b.Bucket < 0 || b.Bucket >= len(h) {
			return nil, fmt.Errorf("bucket index %d out of range", b.Bucket)
		}
		h[b.Bucket].Count = b.N
	}
	return h, nil
}

// categories groups by category in byte order, as the other stores sort,
// regardless of the database locale.
func (r *Repository) categories(ctx context.Context, f query.Filter) *gorm.DB {
	return r.filtered(ctx, f).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order(`category COLLATE "C"`)
}

func (r *Repository) CategoryBreakdown(ctx context.Context, f query.Filter) ([]core.CategoryCount, error) {
	out := []core.CategoryCount{}
	err := r.categories(ctx, f).Scan(&out).Error
	if err != nil {
		logPgError(ctx, "category breakdown", err)
		return nil, fmt.Errorf("query category breakdown: %w", err)
	}
	return out, nil
}

// logPgError records the SQLSTATE of server-side failures.
func logPgError(ctx context.Context, op string, err error) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return
	}
	level := slog.LevelWarn
	switch pgErr.Code[:2] {
	case PgErrClassConnection, PgErrClassResources, PgErrClassOperator:
		level = slog.LevelError
	}
	slog.Log(ctx, level, "PostgreSQL error",
		"operation", op,
		"sqlstate", pgErr.Code,
		"message", pgErr.Message)
}
