// Package storage is the read-only data access layer. It issues fixed
// parameterized queries against two database views that are already
// row-filtered by the database's row access policy, plus the entitlement
// lookup used for display. Row-level visibility is entirely the database's
// concern: this package trusts the result sets it receives.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"campusledger/internal/cache"
	"campusledger/internal/core"
)

// Query identities used as cache content addresses.
const (
	queryFinanceData    = "finance_data"
	queryFinanceSummary = "finance_summary"
	queryEntitlements   = "user_entitlements"
)

const financeDataSQL = `
	SELECT department_name,
	       department_code,
	       transaction_date,
	       expenditure_category,
	       amount,
	       fiscal_year,
	       fiscal_month,
	       director_name,
	       director_start_date,
	       is_current_director
	FROM vw_finance_data
	ORDER BY transaction_date DESC, department_name`

const financeSummarySQL = `
	SELECT department_name,
	       department_code,
	       fiscal_year,
	       fiscal_month,
	       expenditure_category,
	       total_amount,
	       transaction_count,
	       average_amount,
	       director_name,
	       director_start_date
	FROM vw_finance_summary
	ORDER BY fiscal_year DESC, fiscal_month DESC, department_name`

const entitlementsSQL = `
	SELECT ue.access_level,
	       COALESCE(d.department_name, ''),
	       COALESCE(d.department_code, '')
	FROM user_entitlements ue
	LEFT JOIN departments d ON ue.department_id = d.department_id
	WHERE ue.username = $1 AND ue.is_active
	ORDER BY d.department_name`

// Repository wraps the database connection and the query cache. All reads
// go through the cache by content address; nothing here ever writes to
// the database.
type Repository struct {
	db    *sql.DB
	cache cache.QueryCache
}

// Open connects to the database and verifies the connection. The URL is
// normalized the way deployment environments tend to hand it over
// (postgresql:// scheme, missing sslmode).
func Open(databaseURL string, qc cache.QueryCache) (*Repository, error) {
	cfg, err := pgx.ParseConfig(NormalizeURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*cfg)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db, cache: qc}, nil
}

// NormalizeURL rewrites postgresql:// to postgres:// and appends
// sslmode=disable when no sslmode is present.
func NormalizeURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql://") {
		databaseURL = "postgres://" + strings.TrimPrefix(databaseURL, "postgresql://")
	}
	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "?"
		if strings.Contains(databaseURL, "?") {
			separator = "&"
		}
		databaseURL += separator + "sslmode=disable"
	}
	return databaseURL
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports database health for the readiness endpoint.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CurrentUser returns the database session user, the same principal the
// row access policies evaluate. Treated everywhere else as an opaque
// string.
func (r *Repository) CurrentUser(ctx context.Context) (string, error) {
	var username string
	if err := r.db.QueryRowContext(ctx, "SELECT current_user").Scan(&username); err != nil {
		return "", fmt.Errorf("query current user: %w", err)
	}
	return username, nil
}

// Transactions loads the row-filtered transaction view, cached under its
// query identity.
func (r *Repository) Transactions(ctx context.Context) ([]core.Transaction, error) {
	key := cache.Key(queryFinanceData)
	if res, ok := r.cache.Get(ctx, key); ok {
		var txs []core.Transaction
		if err := json.Unmarshal(res.Payload, &txs); err == nil {
			return txs, nil
		}
		r.cache.Invalidate(ctx, key)
	}

	rows, err := r.db.QueryContext(ctx, financeDataSQL)
	if err != nil {
		return nil, fmt.Errorf("query finance data: %w", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		var (
			t            core.Transaction
			amount       string
			director     sql.NullString
			directorFrom sql.NullTime
		)
		err := rows.Scan(
			&t.DepartmentName, &t.DepartmentCode, &t.TransactionDate,
			&t.Category, &amount, &t.FiscalYear, &t.FiscalMonth,
			&director, &directorFrom, &t.IsCurrentDirector,
		)
		if err != nil {
			return nil, fmt.Errorf("scan finance data row: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		t.DirectorName = director.String
		t.HasDirector = director.Valid
		t.DirectorStart = directorFrom.Time
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finance data rows: %w", err)
	}

	r.store(ctx, key, txs)
	return txs, nil
}

// Summary loads the pre-aggregated summary view, cached under its query
// identity. The aggregation is derived upstream and consumed as-is.
func (r *Repository) Summary(ctx context.Context) ([]core.SummaryRow, error) {
	key := cache.Key(queryFinanceSummary)
	if res, ok := r.cache.Get(ctx, key); ok {
		var sum []core.SummaryRow
		if err := json.Unmarshal(res.Payload, &sum); err == nil {
			return sum, nil
		}
		r.cache.Invalidate(ctx, key)
	}

	rows, err := r.db.QueryContext(ctx, financeSummarySQL)
	if err != nil {
		return nil, fmt.Errorf("query finance summary: %w", err)
	}
	defer rows.Close()

	sum := make([]core.SummaryRow, 0)
	for rows.Next() {
		var (
			s            core.SummaryRow
			total, avg   string
			director     sql.NullString
			directorFrom sql.NullTime
		)
		err := rows.Scan(
			&s.DepartmentName, &s.DepartmentCode, &s.FiscalYear,
			&s.FiscalMonth, &s.Category, &total, &s.Count, &avg,
			&director, &directorFrom,
		)
		if err != nil {
			return nil, fmt.Errorf("scan finance summary row: %w", err)
		}
		if s.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse total amount %q: %w", total, err)
		}
		if s.AverageAmount, err = decimal.NewFromString(avg); err != nil {
			return nil, fmt.Errorf("parse average amount %q: %w", avg, err)
		}
		s.DirectorName = director.String
		s.DirectorStart = directorFrom.Time
		sum = append(sum, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finance summary rows: %w", err)
	}

	r.store(ctx, key, sum)
	return sum, nil
}

// Entitlements returns the user's department entitlements. Display only:
// filtering stays the database's responsibility.
func (r *Repository) Entitlements(ctx context.Context, username string) ([]core.Entitlement, error) {
	key := cache.Key(queryEntitlements, username)
	if res, ok := r.cache.Get(ctx, key); ok {
		var ents []core.Entitlement
		if err := json.Unmarshal(res.Payload, &ents); err == nil {
			return ents, nil
		}
		r.cache.Invalidate(ctx, key)
	}

	rows, err := r.db.QueryContext(ctx, entitlementsSQL, username)
	if err != nil {
		return nil, fmt.Errorf("query entitlements: %w", err)
	}
	defer rows.Close()

	ents := make([]core.Entitlement, 0)
	for rows.Next() {
		var e core.Entitlement
		if err := rows.Scan(&e.AccessLevel, &e.DepartmentName, &e.DepartmentCode); err != nil {
			return nil, fmt.Errorf("scan entitlement row: %w", err)
		}
		ents = append(ents, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entitlement rows: %w", err)
	}

	r.store(ctx, key, ents)
	return ents, nil
}

// Load fetches the transaction and summary views concurrently; they are
// independent queries and the render pass needs both.
func (r *Repository) Load(ctx context.Context) ([]core.Transaction, []core.SummaryRow, error) {
	var (
		txs []core.Transaction
		sum []core.SummaryRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = r.Transactions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sum, err = r.Summary(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return txs, sum, nil
}

// Refresh drops every cached query result so the next pass re-reads the
// views. This is the only invalidation path; staleness between refreshes
// is accepted.
func (r *Repository) Refresh(ctx context.Context) {
	r.cache.InvalidateAll(ctx)
}

func (r *Repository) store(ctx context.Context, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "Skipping cache write", "key", key, "error", err)
		return
	}
	r.cache.Set(ctx, key, cache.Result{Payload: payload, FetchedAt: time.Now()})
}
