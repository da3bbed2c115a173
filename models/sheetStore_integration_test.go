package models_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/stockledger_backend/config"
	"bitbucket.org/mmdatafocus/stockledger_backend/models"
)

// Read-only smoke against the hosted backend. Needs SHEETS_CREDENTIALS_FILE
// plus SALES_SPREADSHEET_ID / INVENTORY_SPREADSHEET_ID pointing at a test
// spreadsheet pair.
func TestSheetStore_LoadAndResolve(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires sheets credentials)")
	}

	config.ConnectSheetsWithRetry()
	store, err := models.NewSheetStore()
	if err != nil {
		t.Fatalf("NewSheetStore: %v", err)
	}
	ctx := context.Background()

	sales, err := store.LoadTable(ctx, models.TableSales)
	if err != nil {
		t.Fatalf("load %s: %v", models.TableSales, err)
	}
	schema, err := models.ResolveColumnSchema(sales.Header)
	if err != nil && !errors.Is(err, models.ErrEmptyProductRegion) {
		t.Fatalf("resolve schema: %v", err)
	}

	if _, err := store.LoadTable(ctx, models.TableInventory); err != nil {
		t.Fatalf("load %s: %v", models.TableInventory, err)
	}
	for _, name := range schema.ProductColumns {
		if _, err := store.FindInventoryRecord(ctx, name); err != nil && !errors.Is(err, models.ErrProductNotFound) {
			t.Fatalf("find %q: %v", name, err)
		}
	}
}
