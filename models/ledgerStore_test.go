package models_test

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/stockledger_backend/models"
)

func invalidations(store *fakeStore, table string) int {
	n := 0
	for _, name := range store.invalidated {
		if name == table {
			n++
		}
	}
	return n
}

// Every successful mutation must drop the cached view of the table it
// touched, so a read issued right after a write can never see stale data.
func TestRecordEntry_InvalidatesMutatedTables(t *testing.T) {
	store := newFakeStore()
	if _, err := models.RecordEntry(context.Background(), store, testEntry("B", 10, "150.00")); err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}
	if invalidations(store, models.TableInventory) == 0 {
		t.Fatal("inventory write did not invalidate its cached view")
	}
	if invalidations(store, models.TableSales) == 0 {
		t.Fatal("sales append did not invalidate its cached view")
	}
}

func TestProvisionProduct_InvalidatesMutatedTables(t *testing.T) {
	store := newFakeStore()
	if _, err := models.ProvisionProduct(context.Background(), store, "NewWidget", 5); err != nil {
		t.Fatalf("ProvisionProduct: %v", err)
	}
	if invalidations(store, models.TableInventory) == 0 {
		t.Fatal("inventory append did not invalidate its cached view")
	}
	if invalidations(store, models.TableSales) == 0 {
		t.Fatal("column insert did not invalidate the sales view")
	}
}

func TestRepairAggregateRow_InvalidatesSales(t *testing.T) {
	store := newFakeStore()
	store.aggRow = 7
	store.aggCells = []models.AggregateCell{{Column: 5, Value: "=SUM(E5:E5)"}}

	before := invalidations(store, models.TableSales)
	if err := models.RepairAggregateRow(context.Background(), store, testSchema(t)); err != nil {
		t.Fatalf("RepairAggregateRow: %v", err)
	}
	if invalidations(store, models.TableSales) <= before {
		t.Fatal("formula rewrite did not invalidate the sales view")
	}
}
