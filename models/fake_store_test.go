package models_test

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/stockledger_backend/models"
)

// fakeStore is an in-memory LedgerStore for failure injection. The workbook
// tests cover a real backend; this one exists to exercise the partial-failure
// paths that a healthy backend never takes.
type fakeStore struct {
	header    []string
	rows      []map[string]string
	inventory map[string]int
	aggRow    int
	aggCells  []models.AggregateCell

	failSetQuantity     error
	failAppendRow       error
	failInsertColumn    error
	failAppendInventory error

	appendedRows    []map[string]string
	insertedColumns []string
	updatedRowIndex int
	updatedFormulas []models.CellFormula
	invalidated     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		header: []string{
			models.ColumnClientName, models.ColumnNote, models.ColumnDate,
			models.ColumnDocNumber, models.ColumnTotalQuantity,
			"A", "B",
			models.ColumnUnitPrice, models.ColumnLineTotal,
		},
		inventory: map[string]int{"A": 100, "B": 50},
		aggRow:    6,
	}
}

func (s *fakeStore) LoadTable(ctx context.Context, logicalName string) (*models.Table, error) {
	switch logicalName {
	case models.TableSales:
		return &models.Table{
			LogicalName: logicalName,
			HeaderRow:   models.SalesHeaderRow,
			Header:      append([]string(nil), s.header...),
			Rows:        s.rows,
		}, nil
	case models.TableInventory:
		table := &models.Table{
			LogicalName: logicalName,
			HeaderRow:   models.InventoryHeaderRow,
			Header:      []string{models.InventoryColumnProduct, models.InventoryColumnQuantity},
		}
		for name, qty := range s.inventory {
			table.Rows = append(table.Rows, map[string]string{
				models.InventoryColumnProduct:  name,
				models.InventoryColumnQuantity: fmt.Sprint(qty),
			})
		}
		return table, nil
	}
	return nil, models.ErrTableNotFound
}

func (s *fakeStore) FindInventoryRecord(ctx context.Context, productName string) (*models.InventoryRecord, error) {
	qty, ok := s.inventory[productName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrProductNotFound, productName)
	}
	return &models.InventoryRecord{ProductName: productName, QuantityOnHand: qty, Row: 2}, nil
}

func (s *fakeStore) SetInventoryQuantity(ctx context.Context, productName string, quantity int) error {
	if s.failSetQuantity != nil {
		return s.failSetQuantity
	}
	if _, ok := s.inventory[productName]; !ok {
		return fmt.Errorf("%w: %q", models.ErrProductNotFound, productName)
	}
	s.inventory[productName] = quantity
	s.Invalidate(models.TableInventory)
	return nil
}

func (s *fakeStore) AppendInventoryRecord(ctx context.Context, productName string, quantity int) error {
	if s.failAppendInventory != nil {
		return s.failAppendInventory
	}
	s.inventory[productName] = quantity
	s.Invalidate(models.TableInventory)
	return nil
}

func (s *fakeStore) AppendSalesRow(ctx context.Context, row map[string]string, columnOrder []string) (int, error) {
	if s.failAppendRow != nil {
		return 0, s.failAppendRow
	}
	s.appendedRows = append(s.appendedRows, row)
	s.rows = append(s.rows, row)
	inserted := s.aggRow
	s.aggRow++
	s.Invalidate(models.TableSales)
	return inserted, nil
}

func (s *fakeStore) InsertProductColumn(ctx context.Context, productName string) error {
	if s.failInsertColumn != nil {
		return s.failInsertColumn
	}
	s.insertedColumns = append(s.insertedColumns, productName)
	// Splice immediately before the unit-price sentinel.
	for i, name := range s.header {
		if name == models.ColumnUnitPrice {
			s.header = append(s.header[:i], append([]string{productName}, s.header[i:]...)...)
			break
		}
	}
	s.Invalidate(models.TableSales)
	return nil
}

func (s *fakeStore) AggregateRow(ctx context.Context) (int, []models.AggregateCell, error) {
	return s.aggRow, s.aggCells, nil
}

func (s *fakeStore) UpdateAggregateFormulas(ctx context.Context, rowIndex int, formulas []models.CellFormula) error {
	s.updatedRowIndex = rowIndex
	s.updatedFormulas = formulas
	s.Invalidate(models.TableSales)
	return nil
}

func (s *fakeStore) Invalidate(logicalName string) {
	s.invalidated = append(s.invalidated, logicalName)
}
