// Package store defines the keyed storage surfaces for orders and the
// portfolio ledger, plus SQLite, in-memory, and parquet-journal
// implementations. Stores hold data only; every cross-entity invariant
// (solvency, holdings coverage, exactly-once reversal) is enforced by
// the engine before it writes.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// DefaultStartingCash is the buying power a portfolio is born with on
// first reference.
var DefaultStartingCash = decimal.RequireFromString("5000.00")

// OrderStore persists and retrieves order records.
type OrderStore interface {
	// CreateOrder assigns a fresh unique id (never reused) and persists
	// the order, mutating order.ID.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// GetOrder retrieves a single order by its id. Returns an error
	// wrapping domain.ErrOrderNotFound if the id is unknown.
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)

	// UpdateOrder replaces the stored record for order.ID. Returns an
	// error wrapping domain.ErrOrderNotFound if the id is unknown.
	UpdateOrder(ctx context.Context, order *domain.Order) error

	// ListOrders returns all orders with the given status, or every
	// order when status is empty, ordered by id.
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
}

// LedgerStore persists per-portfolio cash balances and per-security
// holdings. It is a dumb key/value surface: reads default rather than
// fail, writes overwrite the full value (never a delta), and no
// validation happens here; negative values are stored as-is.
type LedgerStore interface {
	// GetCash returns the stored balance, or the starting balance if
	// the portfolio has never been written.
	GetCash(ctx context.Context, portfolioID string) (decimal.Decimal, error)

	// SetCash upserts the full balance.
	SetCash(ctx context.Context, portfolioID string, amount decimal.Decimal) error

	// GetHolding returns the stored quantity, or zero if absent.
	GetHolding(ctx context.Context, portfolioID, isin string) (decimal.Decimal, error)

	// SetHolding upserts the full quantity.
	SetHolding(ctx context.Context, portfolioID, isin string, qty decimal.Decimal) error
}
