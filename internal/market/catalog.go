// Package market provides the price catalogue: the lookup from a
// security's ISIN to its current unit price. The catalogue is a pure
// read-only collaborator of the order engine and never mutates ledger
// state.
package market

import (
	"fmt"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// Catalog resolves a security identifier to a unit price.
type Catalog interface {
	// Price returns the unit price for the given ISIN, or an error
	// wrapping domain.ErrUnknownSecurity if the ISIN is not listed.
	// Safe for concurrent use.
	Price(isin string) (decimal.Decimal, error)
}

// Compile-time interface check.
var _ Catalog = (*StaticCatalog)(nil)

// StaticCatalog is a fixed in-memory catalogue. The map is never
// written after construction, so lookups need no synchronization.
type StaticCatalog struct {
	prices map[string]decimal.Decimal
}

// NewStaticCatalog creates a catalogue from a fixed ISIN → price map.
func NewStaticCatalog(prices map[string]decimal.Decimal) *StaticCatalog {
	cloned := make(map[string]decimal.Decimal, len(prices))
	for isin, p := range prices {
		cloned[isin] = p
	}
	return &StaticCatalog{prices: cloned}
}

// DefaultCatalog returns the reference catalogue shipped with the demo.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog(map[string]decimal.Decimal{
		"US67066G1040": decimal.RequireFromString("100.00"),
		"US0378331005": decimal.RequireFromString("200.00"),
		"US5949181045": decimal.RequireFromString("35.50"),
	})
}

// Price returns the listed price for the ISIN.
func (c *StaticCatalog) Price(isin string) (decimal.Decimal, error) {
	p, ok := c.prices[isin]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", domain.ErrUnknownSecurity, isin)
	}
	return p, nil
}
