package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ OrderStore = (*SQLiteStore)(nil)
var _ LedgerStore = (*SQLiteStore)(nil)

// SQLiteStore implements OrderStore and LedgerStore backed by a SQLite
// database. Monetary values are stored as decimal strings, never as
// REAL, so amounts round-trip exactly. Order ids come from an
// AUTOINCREMENT column, which SQLite guarantees never to reuse.
type SQLiteStore struct {
	db           *sql.DB
	startingCash decimal.Decimal
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	portfolio_id TEXT    NOT NULL,
	isin         TEXT    NOT NULL,
	side         TEXT    NOT NULL,
	status       TEXT    NOT NULL,
	quantity     TEXT    NOT NULL,
	price        TEXT    NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cash_balances (
	portfolio_id TEXT PRIMARY KEY,
	amount       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
	portfolio_id TEXT NOT NULL,
	isin         TEXT NOT NULL,
	quantity     TEXT NOT NULL,
	PRIMARY KEY (portfolio_id, isin)
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs
// migrations, and returns a ready-to-use store. Portfolios read through
// it start with startingCash.
func NewSQLiteStore(dbPath string, startingCash decimal.Decimal) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &SQLiteStore{db: db, startingCash: startingCash}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// CreateOrder inserts the order and assigns its generated id.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (portfolio_id, isin, side, status, quantity, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.PortfolioID, order.ISIN, order.Side.String(), order.Status.String(),
		order.Quantity.String(), order.Price.String(),
		order.CreatedAt.UnixMilli(), order.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading generated order id: %w", err)
	}
	order.ID = id
	return nil
}

// GetOrder retrieves a single order by its id.
func (s *SQLiteStore) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, portfolio_id, isin, side, status, quantity, price, created_at, updated_at
		FROM orders WHERE id = ?`, id)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading order %d: %w", id, err)
	}
	return order, nil
}

// UpdateOrder replaces the stored record for order.ID.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, order *domain.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET portfolio_id = ?, isin = ?, side = ?, status = ?, quantity = ?, price = ?, updated_at = ?
		WHERE id = ?`,
		order.PortfolioID, order.ISIN, order.Side.String(), order.Status.String(),
		order.Quantity.String(), order.Price.String(), order.UpdatedAt.UnixMilli(),
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("updating order %d: %w", order.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating order %d: %w", order.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", domain.ErrOrderNotFound, order.ID)
	}
	return nil
}

// ListOrders returns orders with the given status (all when empty),
// ordered by id.
func (s *SQLiteStore) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	query := `
		SELECT id, portfolio_id, isin, side, status, quantity, price, created_at, updated_at
		FROM orders`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status.String())
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		out = append(out, *order)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                    domain.Order
		side, status         string
		qty, price           string
		createdMS, updatedMS int64
	)
	if err := row.Scan(&o.ID, &o.PortfolioID, &o.ISIN, &side, &status, &qty, &price, &createdMS, &updatedMS); err != nil {
		return nil, err
	}

	var ok bool
	if o.Side, ok = domain.ParseOrderSide(side); !ok {
		return nil, fmt.Errorf("stored order %d has invalid side %q", o.ID, side)
	}
	if o.Status, ok = domain.ParseOrderStatus(status); !ok {
		return nil, fmt.Errorf("stored order %d has invalid status %q", o.ID, status)
	}

	var err error
	if o.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, fmt.Errorf("stored order %d has invalid quantity %q: %w", o.ID, qty, err)
	}
	if o.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("stored order %d has invalid price %q: %w", o.ID, price, err)
	}

	o.CreatedAt = time.UnixMilli(createdMS).UTC()
	o.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return &o, nil
}

// ---------------------------------------------------------------------------
// LedgerStore implementation
// ---------------------------------------------------------------------------

// GetCash returns the balance, defaulting to the starting cash when the
// portfolio has never been written.
func (s *SQLiteStore) GetCash(ctx context.Context, portfolioID string) (decimal.Decimal, error) {
	var amount string
	err := s.db.QueryRowContext(ctx,
		`SELECT amount FROM cash_balances WHERE portfolio_id = ?`, portfolioID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return s.startingCash, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("reading cash for %s: %w", portfolioID, err)
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("stored cash for %s is invalid %q: %w", portfolioID, amount, err)
	}
	return parsed, nil
}

// SetCash upserts the balance.
func (s *SQLiteStore) SetCash(ctx context.Context, portfolioID string, amount decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_balances (portfolio_id, amount) VALUES (?, ?)
		ON CONFLICT (portfolio_id) DO UPDATE SET amount = excluded.amount`,
		portfolioID, amount.String(),
	)
	if err != nil {
		return fmt.Errorf("writing cash for %s: %w", portfolioID, err)
	}
	return nil
}

// GetHolding returns the quantity, defaulting to zero when absent.
func (s *SQLiteStore) GetHolding(ctx context.Context, portfolioID, isin string) (decimal.Decimal, error) {
	var qty string
	err := s.db.QueryRowContext(ctx,
		`SELECT quantity FROM holdings WHERE portfolio_id = ? AND isin = ?`, portfolioID, isin).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("reading holding %s/%s: %w", portfolioID, isin, err)
	}

	parsed, err := decimal.NewFromString(qty)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("stored holding %s/%s is invalid %q: %w", portfolioID, isin, qty, err)
	}
	return parsed, nil
}

// SetHolding upserts the quantity.
func (s *SQLiteStore) SetHolding(ctx context.Context, portfolioID, isin string, qty decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (portfolio_id, isin, quantity) VALUES (?, ?, ?)
		ON CONFLICT (portfolio_id, isin) DO UPDATE SET quantity = excluded.quantity`,
		portfolioID, isin, qty.String(),
	)
	if err != nil {
		return fmt.Errorf("writing holding %s/%s: %w", portfolioID, isin, err)
	}
	return nil
}
