// Package sqlite is the default record store: an embedded SQLite database
// (pure-Go modernc driver) with schema managed by golang-migrate.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"transactions/internal/core"
	"transactions/internal/query"
	"transactions/internal/store"

	_ "modernc.org/sqlite"
)

const selectColumns = "id, title, description, price, date_of_sale, sold, category, image"

type Repository struct {
	db *sql.DB
}

// Ensure interface conformance
var _ store.Store = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReplaceAll swaps the collection inside one transaction; a failed insert
// leaves the previous rows in place.
func (r *Repository) ReplaceAll(ctx context.Context, txs []core.Transaction) (int, error) {
	rows, err := store.NewRows(txs)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions"); err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions
		(title, description, title_search, description_search, price, price_text, date_of_sale, sale_month, sold, category, image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.Title, row.Description, row.TitleSearch, row.DescriptionSearch, row.Price, row.PriceText,
			row.DateOfSale, row.SaleMonth, row.Sold, row.Category, row.Image,
		); err != nil {
			return 0, fmt.Errorf("insert transaction %q: %w", row.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transactions replaced in SQLite", "rows", len(rows))
	return len(rows), nil
}

func (r *Repository) List(ctx context.Context, f query.Filter, p query.Page) ([]core.Transaction, error) {
	where, args := f.SQL()
	q := "SELECT " + selectColumns + " FROM transactions WHERE " + where + " ORDER BY id"
	if p.Paginated() {
		q += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit(), p.Offset())
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Price, &t.DateOfSale, &t.Sold, &t.Category, &t.Image); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) Count(ctx context.Context, f query.Filter) (int64, error) {
	where, args := f.SQL()
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *Repository) Statistics(ctx context.Context, f query.Filter) (core.Statistics, error) {
	where, args := f.SQL()
	var st core.Statistics
	err := r.db.QueryRowContext(ctx, `SELECT
			COALESCE(SUM(price), 0.0),
			COALESCE(SUM(CASE WHEN sold THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sold THEN 0 ELSE 1 END), 0)
		FROM transactions WHERE `+where, args...).
		Scan(&st.TotalSaleAmount, &st.SoldItems, &st.NotSoldItems)
	if err != nil {
		return core.Statistics{}, fmt.Errorf("query statistics: %w", err)
	}
	return st, nil
}

func (r *Repository) PriceHistogram(ctx context.Context, f query.Filter) ([]core.BucketCount, error) {
	where, args := f.SQL()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+query.BucketCaseSQL(query.ColumnPrice)+" AS bucket, COUNT(*) FROM transactions WHERE "+where+" GROUP BY bucket",
		args...)
	if err != nil {
		return nil, fmt.Errorf("query price histogram: %w", err)
	}
	defer rows.Close()

	h := core.NewHistogram()
	for rows.Next() {
		var idx int
		var n int64
		if err := rows.Scan(&idx, &n); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		if idx < 0 || idx >= len(h) {
			return nil, fmt.Errorf("bucket index %d out of range", idx)
		}
		h[idx].Count = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return h, nil
}

func (r *Repository) CategoryBreakdown(ctx context.Context, f query.Filter) ([]core.CategoryCount, error) {
	where, args := f.SQL()
	rows, err := r.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM transactions WHERE "+where+" GROUP BY category ORDER BY category",
		args...)
	if err != nil {
		return nil, fmt.Errorf("query category breakdown: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryCount{}
	for rows.Next() {
		var c core.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}
