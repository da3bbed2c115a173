package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/stockledger_backend/models"
	"github.com/shopspring/decimal"
)

func testEntry(product string, quantity int, price string) *models.EntryInput {
	unitPrice, _ := decimal.NewFromString(price)
	return &models.EntryInput{
		ClientName:     "зп Иван Петров",
		DocumentNumber: "59460",
		Date:           time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC),
		Note:           "тест",
		Product:        product,
		Quantity:       quantity,
		UnitPrice:      unitPrice,
	}
}

func TestRecordEntry_Success(t *testing.T) {
	store := newFakeStore()
	result, err := models.RecordEntry(context.Background(), store, testEntry("B", 10, "150.00"))
	if err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}
	if result.Outcome != models.EntryOutcomeRecorded {
		t.Fatalf("Outcome = %s, want Recorded", result.Outcome)
	}
	if store.inventory["B"] != 40 {
		t.Fatalf("inventory B = %d, want 40", store.inventory["B"])
	}
	if len(store.appendedRows) != 1 {
		t.Fatalf("appended %d rows, want 1", len(store.appendedRows))
	}

	row := store.appendedRows[0]
	checks := map[string]string{
		models.ColumnClientName:    "ЗП ИВАН ПЕТРОВ",
		models.ColumnDocNumber:     "59460",
		models.ColumnDate:          "07/20/2024",
		models.ColumnTotalQuantity: "10",
		"B":                        "10",
		"A":                        "",
		models.ColumnUnitPrice:     "150.00",
		models.ColumnLineTotal:     "1500.00",
	}
	for col, want := range checks {
		if row[col] != want {
			t.Errorf("row[%q] = %q, want %q", col, row[col], want)
		}
	}
	if result.LineTotal.StringFixed(2) != "1500.00" {
		t.Errorf("LineTotal = %s, want 1500.00", result.LineTotal.StringFixed(2))
	}
}

func TestRecordEntry_UnknownProduct(t *testing.T) {
	store := newFakeStore()
	if _, err := models.RecordEntry(context.Background(), store, testEntry("C", 1, "10")); !errors.Is(err, models.ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
	if len(store.appendedRows) != 0 {
		t.Fatal("row appended for unknown product")
	}
}

func TestRecordEntry_ProductMissingFromInventory(t *testing.T) {
	store := newFakeStore()
	delete(store.inventory, "B")
	if _, err := models.RecordEntry(context.Background(), store, testEntry("B", 1, "10")); !errors.Is(err, models.ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
}

func TestRecordEntry_InsufficientStock(t *testing.T) {
	store := newFakeStore()
	_, err := models.RecordEntry(context.Background(), store, testEntry("B", 51, "10"))
	if !errors.Is(err, models.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	// No partial mutation on this path.
	if store.inventory["B"] != 50 {
		t.Fatalf("inventory B = %d, want unchanged 50", store.inventory["B"])
	}
	if len(store.appendedRows) != 0 {
		t.Fatal("row appended despite insufficient stock")
	}
}

func TestRecordEntry_InventoryWriteFailed(t *testing.T) {
	store := newFakeStore()
	store.failSetQuantity = errors.New("quota exceeded")

	_, err := models.RecordEntry(context.Background(), store, testEntry("B", 10, "150.00"))
	var invErr *models.InventoryWriteError
	if !errors.As(err, &invErr) {
		t.Fatalf("err = %v, want *InventoryWriteError", err)
	}
	// Step 3 failed, so step 4 must not have run.
	if len(store.appendedRows) != 0 {
		t.Fatal("row appended after failed inventory write")
	}
}

func TestRecordEntry_LedgerWriteFailed(t *testing.T) {
	store := newFakeStore()
	store.failAppendRow = errors.New("insert rejected")

	result, err := models.RecordEntry(context.Background(), store, testEntry("B", 10, "150.00"))
	var lagErr *models.LedgerLagError
	if !errors.As(err, &lagErr) {
		t.Fatalf("err = %v, want *LedgerLagError", err)
	}
	// Inventory truth wins: the decrement stays, the divergence is reported.
	if store.inventory["B"] != 40 {
		t.Fatalf("inventory B = %d, want 40 (decrement kept)", store.inventory["B"])
	}
	if result == nil || result.Outcome != models.EntryOutcomeInventoryOnly {
		t.Fatalf("result = %+v, want InventoryOnly outcome", result)
	}
	if lagErr.Product != "B" || lagErr.Quantity != 10 {
		t.Fatalf("lag error detail = %+v", lagErr)
	}
}

// Two identical calls are two sales by design; no idempotence is claimed.
func TestRecordEntry_NotIdempotent(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 2; i++ {
		if _, err := models.RecordEntry(context.Background(), store, testEntry("B", 10, "150.00")); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if store.inventory["B"] != 30 {
		t.Fatalf("inventory B = %d, want 30 after two sales", store.inventory["B"])
	}
	if len(store.appendedRows) != 2 {
		t.Fatalf("appended %d rows, want 2", len(store.appendedRows))
	}
}
