package models_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"bitbucket.org/mmdatafocus/stockledger_backend/models"
)

func TestProvisionProduct_Complete(t *testing.T) {
	store := newFakeStore()
	result, err := models.ProvisionProduct(context.Background(), store, "NewWidget", 5)
	if err != nil {
		t.Fatalf("ProvisionProduct: %v", err)
	}
	if result.Outcome != models.ProvisionOutcomeComplete {
		t.Fatalf("Outcome = %s, want Complete", result.Outcome)
	}
	if store.inventory["NewWidget"] != 5 {
		t.Fatalf("inventory NewWidget = %d, want 5", store.inventory["NewWidget"])
	}
	if !reflect.DeepEqual(store.insertedColumns, []string{"NewWidget"}) {
		t.Fatalf("inserted columns = %v", store.insertedColumns)
	}

	// The column landed immediately left of the unit-price sentinel.
	schema, err := models.ResolveColumnSchema(store.header)
	if err != nil {
		t.Fatalf("ResolveColumnSchema: %v", err)
	}
	products := schema.ProductColumns
	if products[len(products)-1] != "NewWidget" {
		t.Fatalf("ProductColumns = %v, want NewWidget last", products)
	}
}

func TestProvisionProduct_Duplicate(t *testing.T) {
	store := newFakeStore()
	if _, err := models.ProvisionProduct(context.Background(), store, "NewWidget", 5); err != nil {
		t.Fatalf("first provision: %v", err)
	}
	headerBefore := append([]string(nil), store.header...)

	_, err := models.ProvisionProduct(context.Background(), store, "NewWidget", 3)
	if !errors.Is(err, models.ErrDuplicateProduct) {
		t.Fatalf("err = %v, want ErrDuplicateProduct", err)
	}
	// Checked before any mutation: neither table changed further.
	if store.inventory["NewWidget"] != 5 {
		t.Fatalf("inventory NewWidget = %d, want unchanged 5", store.inventory["NewWidget"])
	}
	if !reflect.DeepEqual(store.header, headerBefore) {
		t.Fatalf("header changed on duplicate: %v", store.header)
	}
}

func TestProvisionProduct_ColumnInsertFailed(t *testing.T) {
	store := newFakeStore()
	store.failInsertColumn = errors.New("insertDimension rejected")

	result, err := models.ProvisionProduct(context.Background(), store, "NewWidget", 5)
	var colErr *models.ColumnInsertError
	if !errors.As(err, &colErr) {
		t.Fatalf("err = %v, want *ColumnInsertError", err)
	}
	if result == nil || result.Outcome != models.ProvisionOutcomeInventoryOnly {
		t.Fatalf("result = %+v, want InventoryOnly outcome", result)
	}
	// No rollback of the first half; the operator finishes it manually.
	if store.inventory["NewWidget"] != 5 {
		t.Fatalf("inventory NewWidget = %d, want 5 kept", store.inventory["NewWidget"])
	}
}

func TestProvisionProduct_InventoryAppendFailed(t *testing.T) {
	store := newFakeStore()
	store.failAppendInventory = errors.New("append rejected")

	_, err := models.ProvisionProduct(context.Background(), store, "NewWidget", 5)
	if err == nil {
		t.Fatal("expected error")
	}
	var colErr *models.ColumnInsertError
	if errors.As(err, &colErr) {
		t.Fatal("inventory failure misreported as column failure")
	}
	if len(store.insertedColumns) != 0 {
		t.Fatal("column inserted after failed inventory append")
	}
}

func TestProvisionProduct_NormalizesName(t *testing.T) {
	store := newFakeStore()
	if _, err := models.ProvisionProduct(context.Background(), store, "  New   Widget ", 0); err != nil {
		t.Fatalf("ProvisionProduct: %v", err)
	}
	if _, ok := store.inventory["New Widget"]; !ok {
		t.Fatalf("inventory keys = %v, want normalized 'New Widget'", store.inventory)
	}
}
