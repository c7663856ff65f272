// papertrade-export copies the order book from the SQLite store into
// the date-partitioned parquet journal, for offline analysis.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"

	"papertrade/internal/config"
	"papertrade/internal/store"
)

func main() {
	dbPath := flag.String("db", "", "sqlite database path (defaults to storage.sqlite_path)")
	dataDir := flag.String("data-dir", "", "parquet output directory (defaults to storage.data_dir)")
	flag.Parse()

	cfgPath := "config/papertrade.yaml"
	if p := os.Getenv("PAPERTRADE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
	}
	if *dbPath == "" {
		*dbPath = cfg.Storage.SQLitePath
	}
	if *dataDir == "" {
		*dataDir = cfg.Storage.DataDir
	}

	db, err := store.NewSQLiteStore(*dbPath, decimal.Zero)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer db.Close()

	orders, err := db.ListOrders(context.Background(), "")
	if err != nil {
		log.Fatalf("listing orders: %v", err)
	}
	if len(orders) == 0 {
		fmt.Println("no orders to export")
		return
	}

	journal := store.NewOrderJournal(*dataDir)
	if err := journal.WriteOrders(orders); err != nil {
		log.Fatalf("writing parquet journal: %v", err)
	}
	fmt.Printf("exported %d orders to %s\n", len(orders), *dataDir)
}
