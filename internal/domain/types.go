// Package domain defines the core entities of the papertrade platform:
// orders, their lifecycle, and the error taxonomy shared by the engine
// and the API boundary.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

func (s OrderSide) String() string { return string(s) }

func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// ParseOrderSide parses a side string case-insensitively.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return OrderSideBuy, true
	case "SELL":
		return OrderSideSell, true
	default:
		return "", false
	}
}

// OrderStatus is the lifecycle state of an order.
//
// CREATED is the sole initial state; CANCELLED is terminal. EXECUTED is
// reserved for a settlement feature and is never assigned by the engine.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusExecuted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus parses a status string case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREATED":
		return OrderStatusCreated, true
	case "EXECUTED":
		return OrderStatusExecuted, true
	case "CANCELLED":
		return OrderStatusCancelled, true
	default:
		return "", false
	}
}

// Order is a recorded trade instruction. The ledger effect of an order
// is applied when it is created and reversed exactly once if it is
// cancelled. Price is captured from the catalogue at creation and never
// repriced.
type Order struct {
	ID          int64           `json:"id"`
	PortfolioID string          `json:"portfolio_id"`
	ISIN        string          `json:"isin"`
	Side        OrderSide       `json:"side"`
	Status      OrderStatus     `json:"status"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Notional returns price × quantity, the monetary amount the order
// moves between cash and holdings.
func (o *Order) Notional() decimal.Decimal {
	return o.Price.Mul(o.Quantity)
}
