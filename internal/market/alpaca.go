package market

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/util"
)

// Compile-time interface check.
var _ Catalog = (*AlpacaCatalog)(nil)

// AlpacaCatalog resolves prices from the Alpaca market-data API using
// the latest trade for each listed security. Only ISINs present in the
// symbol map are tradeable; everything else is unknown, matching the
// closed-catalogue contract of StaticCatalog.
type AlpacaCatalog struct {
	client  *marketdata.Client
	symbols map[string]string // ISIN → US ticker
	limiter *util.RateLimiter
}

// NewAlpacaCatalog creates a catalogue backed by the Alpaca market-data
// API. Lookups are rate limited to ratePerMin calls per minute.
func NewAlpacaCatalog(apiKey, apiSecret, dataURL string, symbols map[string]string, ratePerMin int) *AlpacaCatalog {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	cloned := make(map[string]string, len(symbols))
	for isin, sym := range symbols {
		cloned[isin] = sym
	}

	return &AlpacaCatalog{
		client:  marketdata.NewClient(opts),
		symbols: cloned,
		limiter: util.NewRateLimiter(ratePerMin),
	}
}

// DefaultSymbolMap maps the demo catalogue's ISINs to their US tickers.
func DefaultSymbolMap() map[string]string {
	return map[string]string{
		"US67066G1040": "NVDA",
		"US0378331005": "AAPL",
		"US5949181045": "MSFT",
	}
}

// Price returns the latest trade price for the ISIN's ticker.
func (c *AlpacaCatalog) Price(isin string) (decimal.Decimal, error) {
	symbol, ok := c.symbols[isin]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", domain.ErrUnknownSecurity, isin)
	}

	if err := c.limiter.Wait(context.Background()); err != nil {
		return decimal.Decimal{}, fmt.Errorf("waiting for rate limit: %w", err)
	}

	trade, err := c.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetching latest trade for %s: %w", symbol, err)
	}
	if trade == nil {
		return decimal.Decimal{}, fmt.Errorf("no trade data for %s", symbol)
	}

	return decimal.NewFromFloat(trade.Price), nil
}
