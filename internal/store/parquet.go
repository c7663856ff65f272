package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// OrderJournal archives order records as Parquet files on disk, one
// file per creation date. It is an append-style export target for
// reporting, not a store the engine reads from.
type OrderJournal struct {
	DataDir string
}

// NewOrderJournal creates a journal rooted at the given data directory.
func NewOrderJournal(dataDir string) *OrderJournal {
	return &OrderJournal{DataDir: dataDir}
}

// OrderRecord is the Parquet schema for archived orders. Quantity and
// price are decimal strings so archived amounts stay exact.
type OrderRecord struct {
	ID          int64  `parquet:"id"`
	PortfolioID string `parquet:"portfolio_id"`
	ISIN        string `parquet:"isin"`
	Side        string `parquet:"side"`
	Status      string `parquet:"status"`
	Quantity    string `parquet:"quantity"`
	Price       string `parquet:"price"`
	CreatedAt   int64  `parquet:"created_at,timestamp(millisecond)"` // Unix ms
	UpdatedAt   int64  `parquet:"updated_at,timestamp(millisecond)"` // Unix ms
}

// WriteOrders archives orders grouped by creation date. Existing files
// are merged, deduplicated by order id with incoming records winning,
// so re-exporting after cancellations refreshes statuses in place.
//
// Layout: <DataDir>/orders/<YYYY-MM-DD>.parquet
func (j *OrderJournal) WriteOrders(orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	groups := make(map[string][]OrderRecord)
	for _, o := range orders {
		date := o.CreatedAt.UTC().Format("2006-01-02")
		groups[date] = append(groups[date], OrderRecord{
			ID:          o.ID,
			PortfolioID: o.PortfolioID,
			ISIN:        o.ISIN,
			Side:        o.Side.String(),
			Status:      o.Status.String(),
			Quantity:    o.Quantity.String(),
			Price:       o.Price.String(),
			CreatedAt:   o.CreatedAt.UnixMilli(),
			UpdatedAt:   o.UpdatedAt.UnixMilli(),
		})
	}

	for date, records := range groups {
		path := j.orderPath(date)

		existing, _ := readParquetFile[OrderRecord](path)
		merged := mergeOrderRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing order journal for %s: %w", date, err)
		}
	}
	return nil
}

// ReadOrders reads the archived orders for a single date. A missing
// file yields an empty slice, not an error.
func (j *OrderJournal) ReadOrders(date time.Time) ([]domain.Order, error) {
	path := j.orderPath(date.UTC().Format("2006-01-02"))
	records, err := readParquetFile[OrderRecord](path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading order journal %s: %w", path, err)
	}

	out := make([]domain.Order, 0, len(records))
	for _, r := range records {
		o, err := recordToOrder(r)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func recordToOrder(r OrderRecord) (domain.Order, error) {
	side, ok := domain.ParseOrderSide(r.Side)
	if !ok {
		return domain.Order{}, fmt.Errorf("archived order %d has invalid side %q", r.ID, r.Side)
	}
	status, ok := domain.ParseOrderStatus(r.Status)
	if !ok {
		return domain.Order{}, fmt.Errorf("archived order %d has invalid status %q", r.ID, r.Status)
	}
	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return domain.Order{}, fmt.Errorf("archived order %d quantity: %w", r.ID, err)
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return domain.Order{}, fmt.Errorf("archived order %d price: %w", r.ID, err)
	}
	return domain.Order{
		ID:          r.ID,
		PortfolioID: r.PortfolioID,
		ISIN:        r.ISIN,
		Side:        side,
		Status:      status,
		Quantity:    qty,
		Price:       price,
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(r.UpdatedAt).UTC(),
	}, nil
}

// orderPath returns the filesystem path for one day's journal file.
func (j *OrderJournal) orderPath(date string) string {
	return filepath.Join(j.DataDir, "orders", date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeOrderRecords deduplicates records by order id, preferring
// incoming over existing. Results are sorted by id.
func mergeOrderRecords(existing, incoming []OrderRecord) []OrderRecord {
	seen := make(map[int64]OrderRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}

	merged := make([]OrderRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ID < merged[j].ID
	})
	return merged
}
