// Package engine implements the order/portfolio transaction engine:
// it prices incoming orders, validates buying power and holdings,
// applies the ledger effect atomically with order creation, and
// reverses it exactly once on cancellation.
//
// The engine is the sole owner of the invariant that ledger state
// equals starting balances plus the net effect of all non-cancelled
// orders. The stores it writes through enforce nothing themselves.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/market"
	"papertrade/internal/store"
)

// Engine coordinates the price catalogue, the order store, and the
// ledger store. Collaborators are injected at construction so tests can
// substitute in-memory fakes.
type Engine struct {
	catalog market.Catalog
	orders  store.OrderStore
	ledger  store.LedgerStore
	locks   *portfolioLocks
	log     *slog.Logger
	now     func() time.Time
}

// New creates an Engine wired with the given collaborators.
func New(catalog market.Catalog, orders store.OrderStore, ledger store.LedgerStore, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		catalog: catalog,
		orders:  orders,
		ledger:  ledger,
		locks:   newPortfolioLocks(),
		log:     log.With("component", "engine"),
		now:     time.Now,
	}
}

// PlaceOrder prices, validates, and executes an order against the
// portfolio ledger, then persists it with status CREATED. Validation
// happens strictly before any mutation: a rejected order leaves the
// ledger untouched and creates no record.
func (e *Engine) PlaceOrder(ctx context.Context, portfolioID, isin string, side domain.OrderSide, quantity decimal.Decimal) (*domain.Order, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: side must be BUY or SELL", domain.ErrInvalidOrder)
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive, got %s", domain.ErrInvalidOrder, quantity)
	}

	price, err := e.catalog.Price(isin)
	if err != nil {
		return nil, err
	}
	notional := price.Mul(quantity)

	// Serialize all ledger read-check-write sequences per portfolio so
	// two concurrent orders cannot both pass a check against a balance
	// only one of them should observe.
	lock := e.locks.get(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	switch side {
	case domain.OrderSideBuy:
		cash, err := e.ledger.GetCash(ctx, portfolioID)
		if err != nil {
			return nil, err
		}
		if cash.LessThan(notional) {
			return nil, fmt.Errorf("%w: need %s, have %s", domain.ErrInsufficientBuyingPower, notional, cash)
		}
		if err := e.ledger.SetCash(ctx, portfolioID, cash.Sub(notional)); err != nil {
			return nil, err
		}
		holding, err := e.ledger.GetHolding(ctx, portfolioID, isin)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.SetHolding(ctx, portfolioID, isin, holding.Add(quantity)); err != nil {
			return nil, err
		}

	case domain.OrderSideSell:
		holding, err := e.ledger.GetHolding(ctx, portfolioID, isin)
		if err != nil {
			return nil, err
		}
		if holding.LessThan(quantity) {
			return nil, fmt.Errorf("%w: need %s, have %s", domain.ErrInsufficientInventory, quantity, holding)
		}
		if err := e.ledger.SetHolding(ctx, portfolioID, isin, holding.Sub(quantity)); err != nil {
			return nil, err
		}
		cash, err := e.ledger.GetCash(ctx, portfolioID)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.SetCash(ctx, portfolioID, cash.Add(notional)); err != nil {
			return nil, err
		}
	}

	now := e.now().UTC()
	order := &domain.Order{
		PortfolioID: portfolioID,
		ISIN:        isin,
		Side:        side,
		Status:      domain.OrderStatusCreated,
		Quantity:    quantity,
		Price:       price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.orders.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	e.log.Info("order placed",
		"order_id", order.ID,
		"portfolio_id", portfolioID,
		"isin", isin,
		"side", side.String(),
		"quantity", quantity.String(),
		"price", price.String(),
	)
	return order, nil
}

// GetOrder is a pure read-through to the order store.
func (e *Engine) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return e.orders.GetOrder(ctx, id)
}

// ListOrders returns orders filtered by status ("" for all).
func (e *Engine) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return e.orders.ListOrders(ctx, status)
}

// CancelOrder reverses the ledger effect of a CREATED order using its
// stored price and quantity, never a fresh catalogue lookup, and marks
// it CANCELLED. The status guard makes the reversal exactly-once: a
// second cancel fails with ErrOrderNotCancellable.
//
// The reversal is unguarded: if intervening trades consumed what this
// order produced, a balance can go negative.
func (e *Engine) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := e.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := e.locks.get(order.PortfolioID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock so two concurrent cancels cannot both pass
	// the status guard.
	order, err = e.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusCreated {
		return nil, fmt.Errorf("%w: order %d is %s", domain.ErrOrderNotCancellable, id, order.Status)
	}

	notional := order.Notional()
	switch order.Side {
	case domain.OrderSideBuy:
		cash, err := e.ledger.GetCash(ctx, order.PortfolioID)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.SetCash(ctx, order.PortfolioID, cash.Add(notional)); err != nil {
			return nil, err
		}
		holding, err := e.ledger.GetHolding(ctx, order.PortfolioID, order.ISIN)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.SetHolding(ctx, order.PortfolioID, order.ISIN, holding.Sub(order.Quantity)); err != nil {
			return nil, err
		}

	case domain.OrderSideSell:
		holding, err := e.ledger.GetHolding(ctx, order.PortfolioID, order.ISIN)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.SetHolding(ctx, order.PortfolioID, order.ISIN, holding.Add(order.Quantity)); err != nil {
			return nil, err
		}
		cash, err := e.ledger.GetCash(ctx, order.PortfolioID)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.SetCash(ctx, order.PortfolioID, cash.Sub(notional)); err != nil {
			return nil, err
		}
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = e.now().UTC()
	if err := e.orders.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}

	e.log.Info("order cancelled",
		"order_id", order.ID,
		"portfolio_id", order.PortfolioID,
		"isin", order.ISIN,
		"side", order.Side.String(),
	)
	return order, nil
}
