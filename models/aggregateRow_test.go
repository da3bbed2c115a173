package models_test

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/stockledger_backend/models"
)

func testSchema(t *testing.T) *models.ColumnSchema {
	t.Helper()
	schema, err := models.ResolveColumnSchema([]string{
		"Клиент име", "Бележка", "Дата", "Фактура №",
		"Общо кол-во", "A", "B", "Цена", "Сума лв.",
	})
	if err != nil {
		t.Fatalf("ResolveColumnSchema: %v", err)
	}
	return schema
}

func TestRepairAggregateRow_RewritesFormulaCells(t *testing.T) {
	store := newFakeStore()
	store.aggRow = 7 // one append already shifted it down from 6
	store.aggCells = []models.AggregateCell{
		{Column: 1, Value: "ОБЩО"},
		{Column: 5, Value: "=SUM(E5:E5)"},
		{Column: 6, Value: "=SUM(F5:F5)"},
		{Column: 7, Value: ""},              // product column opted out
		{Column: 8, Value: "=SUM(H5:H5)"},   // Цена: formula outside the summed span
		{Column: 9, Value: " =SUM(I5:I5)"},  // leading space still counts as formula
	}

	if err := models.RepairAggregateRow(context.Background(), store, testSchema(t)); err != nil {
		t.Fatalf("RepairAggregateRow: %v", err)
	}
	if store.updatedRowIndex != 7 {
		t.Fatalf("updated row = %d, want 7", store.updatedRowIndex)
	}

	want := map[int]string{
		5: "=SUM(E5:E6)",
		6: "=SUM(F5:F6)",
		9: "=SUM(I5:I6)",
	}
	if len(store.updatedFormulas) != len(want) {
		t.Fatalf("rewrote %d cells, want %d: %+v", len(store.updatedFormulas), len(want), store.updatedFormulas)
	}
	for _, f := range store.updatedFormulas {
		if want[f.Column] != f.Formula {
			t.Errorf("column %d formula = %q, want %q", f.Column, f.Formula, want[f.Column])
		}
	}
}

func TestRepairAggregateRow_NoFormulas_NoOp(t *testing.T) {
	store := newFakeStore()
	store.aggRow = 7
	store.aggCells = []models.AggregateCell{
		{Column: 1, Value: "ОБЩО"},
		{Column: 5, Value: "120"},
		{Column: 9, Value: "18000"},
	}
	if err := models.RepairAggregateRow(context.Background(), store, testSchema(t)); err != nil {
		t.Fatalf("RepairAggregateRow: %v", err)
	}
	if store.updatedFormulas != nil {
		t.Fatalf("formulas rewritten on a formula-free backend: %+v", store.updatedFormulas)
	}
}

func TestRepairAggregateRow_NoAggregateRow_NoOp(t *testing.T) {
	store := newFakeStore()
	store.aggRow = 0
	if err := models.RepairAggregateRow(context.Background(), store, testSchema(t)); err != nil {
		t.Fatalf("RepairAggregateRow: %v", err)
	}
	if store.updatedFormulas != nil {
		t.Fatal("formulas rewritten without an aggregate row")
	}
}

func TestVerifyAggregateRow(t *testing.T) {
	store := newFakeStore()
	if err := models.VerifyAggregateRow(context.Background(), store); err != nil {
		t.Fatalf("VerifyAggregateRow: %v", err)
	}

	store.aggRow = 0
	err := models.VerifyAggregateRow(context.Background(), store)
	if !errors.Is(err, models.ErrAggregateRowLost) {
		t.Fatalf("err = %v, want ErrAggregateRowLost", err)
	}
}

func TestRepairAggregateRow_NoDataRows_NoOp(t *testing.T) {
	store := newFakeStore()
	store.aggRow = 5 // directly under the header, nothing to sum
	store.aggCells = []models.AggregateCell{{Column: 5, Value: "=SUM(E5:E4)"}}
	if err := models.RepairAggregateRow(context.Background(), store, testSchema(t)); err != nil {
		t.Fatalf("RepairAggregateRow: %v", err)
	}
	if store.updatedFormulas != nil {
		t.Fatal("formulas rewritten with no data rows above the aggregate row")
	}
}
