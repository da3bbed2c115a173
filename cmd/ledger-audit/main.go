package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/stockledger_backend/config"
	"bitbucket.org/mmdatafocus/stockledger_backend/models"
	"github.com/sirupsen/logrus"
)

// ledger-audit verifies the lockstep invariant between the two tables:
// every product column of SalesData must have exactly one Inventory record,
// and vice versa. Drift appears when a provisioning half-failed and the
// operator has not yet finished the other half manually.

func main() {
	backend := flag.String("backend", config.LedgerBackend(), "Ledger backend: sheets or workbook")
	workbook := flag.String("workbook", config.WorkbookPath(), "Workbook path (workbook backend)")
	flag.Parse()

	logger := logrus.New()

	var store models.LedgerStore
	var err error
	switch *backend {
	case config.LedgerBackendWorkbook:
		store, err = models.NewWorkbookStore(*workbook)
	case config.LedgerBackendSheets:
		config.ConnectSheetsWithRetry()
		store, err = models.NewSheetStore()
	default:
		fmt.Fprintf(os.Stderr, "unknown backend %q\n", *backend)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatalf("init %s backend: %v", *backend, err)
	}

	ctx := context.Background()

	sales, err := store.LoadTable(ctx, models.TableSales)
	if err != nil {
		logger.Fatalf("load %s: %v", models.TableSales, err)
	}
	schema, err := models.ResolveColumnSchema(sales.Header)
	if err != nil && !errors.Is(err, models.ErrEmptyProductRegion) {
		logger.Fatalf("resolve schema: %v", err)
	}

	inventory, err := store.LoadTable(ctx, models.TableInventory)
	if err != nil {
		logger.Fatalf("load %s: %v", models.TableInventory, err)
	}

	inInventory := make(map[string]bool, len(inventory.Rows))
	for _, row := range inventory.Rows {
		inInventory[row[models.InventoryColumnProduct]] = true
	}
	inLedger := make(map[string]bool, len(schema.ProductColumns))
	for _, name := range schema.ProductColumns {
		inLedger[name] = true
	}

	drift := 0
	if err := models.VerifyAggregateRow(ctx, store); err != nil {
		if !errors.Is(err, models.ErrAggregateRowLost) {
			logger.Fatalf("verify aggregate row: %v", err)
		}
		drift++
		fmt.Printf("MISSING AGGREGATE ROW: %v\n", err)
	}
	for _, name := range schema.ProductColumns {
		if !inInventory[name] {
			drift++
			fmt.Printf("MISSING INVENTORY: column %q has no %s record\n", name, models.TableInventory)
		}
	}
	for _, row := range inventory.Rows {
		name := row[models.InventoryColumnProduct]
		if !inLedger[name] {
			drift++
			fmt.Printf("MISSING COLUMN: inventory record %q has no %s column\n", name, models.TableSales)
		}
	}

	if drift == 0 {
		fmt.Printf("ok: %d product(s) in lockstep\n", len(schema.ProductColumns))
		return
	}
	fmt.Printf("%d drift issue(s) found\n", drift)
	os.Exit(2)
}
