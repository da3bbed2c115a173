package models

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
	"github.com/xuri/excelize/v2"
)

// WorkbookStore is the local-file backend: one .xlsx workbook with a
// SalesData sheet and an Inventory sheet. Every operation is a full
// open-mutate-save round trip guarded by a mutex, which is the whole
// concurrency story for a single-process local ledger. Formulas are left to
// the spreadsheet application; excelize also shifts them on row inserts, so
// the aggregate repair works here too when formulas exist.
type WorkbookStore struct {
	path string
	mu   sync.Mutex
}

func NewWorkbookStore(path string) (*WorkbookStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("workbook path is required")
	}
	return &WorkbookStore{path: path}, nil
}

func (s *WorkbookStore) sheetFor(logicalName string) (string, int, error) {
	switch logicalName {
	case TableSales:
		return TableSales, SalesHeaderRow, nil
	case TableInventory:
		return TableInventory, InventoryHeaderRow, nil
	}
	return "", 0, fmt.Errorf("%w: unknown table %q", ErrTableNotFound, logicalName)
}

func (s *WorkbookStore) open(logicalName string) (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, mapWorkbookError(logicalName, err)
	}
	return f, nil
}

func mapWorkbookError(logicalName string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s (%s)", ErrTableNotFound, logicalName, err)
	}
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s (%s)", ErrAccessDenied, logicalName, err)
	}
	return fmt.Errorf("%s: %w", logicalName, err)
}

func (s *WorkbookStore) readRaw(f *excelize.File, logicalName string) ([][]string, int, error) {
	sheet, headerRow, err := s.sheetFor(logicalName)
	if err != nil {
		return nil, 0, err
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, 0, mapWorkbookError(logicalName, err)
	}
	if idx < 0 {
		return nil, 0, fmt.Errorf("%w: sheet %q missing from workbook", ErrTableNotFound, sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, 0, mapWorkbookError(logicalName, err)
	}
	return rows, headerRow, nil
}

func (s *WorkbookStore) LoadTable(ctx context.Context, logicalName string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(logicalName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, headerRow, err := s.readRaw(f, logicalName)
	if err != nil {
		return nil, err
	}
	return buildTable(logicalName, headerRow, raw)
}

func (s *WorkbookStore) FindInventoryRecord(ctx context.Context, productName string) (*InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(TableInventory)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return findInventoryRow(f, productName)
}

func findInventoryRow(f *excelize.File, productName string) (*InventoryRecord, error) {
	rows, err := f.GetRows(TableInventory)
	if err != nil {
		return nil, mapWorkbookError(TableInventory, err)
	}
	want := utils.NormalizeSpace(productName)
	for i := InventoryHeaderRow; i < len(rows); i++ {
		cells := rows[i]
		if len(cells) == 0 || utils.NormalizeSpace(cells[0]) != want {
			continue
		}
		qty := 0
		if len(cells) > 1 {
			qty, err = parseQuantity(cells[1])
			if err != nil {
				return nil, fmt.Errorf("%w: невалидна наличност за '%s': %v", ErrTableMalformed, productName, err)
			}
		}
		return &InventoryRecord{ProductName: want, QuantityOnHand: qty, Row: i + 1}, nil
	}
	return nil, fmt.Errorf("%w: '%s' липсва в '%s'", ErrProductNotFound, productName, TableInventory)
}

func (s *WorkbookStore) SetInventoryQuantity(ctx context.Context, productName string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(TableInventory)
	if err != nil {
		return err
	}
	defer f.Close()

	record, err := findInventoryRow(f, productName)
	if err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(2, record.Row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(TableInventory, cell, quantity); err != nil {
		return mapWorkbookError(TableInventory, err)
	}
	if err := f.Save(); err != nil {
		return mapWorkbookError(TableInventory, err)
	}
	s.Invalidate(TableInventory)
	return nil
}

func (s *WorkbookStore) AppendInventoryRecord(ctx context.Context, productName string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(TableInventory)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(TableInventory)
	if err != nil {
		return mapWorkbookError(TableInventory, err)
	}
	rowIdx := len(rows) + 1
	nameCell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return err
	}
	qtyCell, err := excelize.CoordinatesToCellName(2, rowIdx)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(TableInventory, nameCell, productName); err != nil {
		return mapWorkbookError(TableInventory, err)
	}
	if err := f.SetCellValue(TableInventory, qtyCell, quantity); err != nil {
		return mapWorkbookError(TableInventory, err)
	}
	if err := f.Save(); err != nil {
		return mapWorkbookError(TableInventory, err)
	}
	s.Invalidate(TableInventory)
	return nil
}

func (s *WorkbookStore) AppendSalesRow(ctx context.Context, row map[string]string, columnOrder []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(TableSales)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	raw, _, err := s.readRaw(f, TableSales)
	if err != nil {
		return 0, err
	}
	insertRow := findAggregateRow(raw, SalesHeaderRow)
	if insertRow == 0 {
		insertRow = len(raw) + 1
	}

	if err := f.InsertRows(TableSales, insertRow, 1); err != nil {
		return 0, mapWorkbookError(TableSales, err)
	}
	// Inherit number/date formatting from the data row above the insertion
	// point; the row below is the aggregate row.
	if insertRow-1 > SalesHeaderRow {
		if err := copyRowStyle(f, TableSales, insertRow-1, insertRow, len(columnOrder)); err != nil {
			return 0, mapWorkbookError(TableSales, err)
		}
	}

	for i, col := range columnOrder {
		cell, err := excelize.CoordinatesToCellName(i+1, insertRow)
		if err != nil {
			return 0, err
		}
		if err := setTypedCell(f, TableSales, cell, row[col]); err != nil {
			return 0, mapWorkbookError(TableSales, err)
		}
	}
	if err := f.Save(); err != nil {
		return 0, mapWorkbookError(TableSales, err)
	}
	s.Invalidate(TableSales)
	return insertRow, nil
}

func (s *WorkbookStore) InsertProductColumn(ctx context.Context, productName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(TableSales)
	if err != nil {
		return err
	}
	defer f.Close()

	raw, _, err := s.readRaw(f, TableSales)
	if err != nil {
		return err
	}
	if len(raw) < SalesHeaderRow {
		return fmt.Errorf("%w: %s has no header at row %d", ErrTableMalformed, TableSales, SalesHeaderRow)
	}
	header := normalizeHeader(raw[SalesHeaderRow-1])
	priceIdx := -1
	for i, name := range header {
		if name == ColumnUnitPrice {
			priceIdx = i
			break
		}
	}
	if priceIdx < 0 {
		return fmt.Errorf("%w: %q", ErrMissingSentinel, ColumnUnitPrice)
	}

	priceLetter, err := excelize.ColumnNumberToName(priceIdx + 1)
	if err != nil {
		return err
	}
	if err := f.InsertCols(TableSales, priceLetter, 1); err != nil {
		return mapWorkbookError(TableSales, err)
	}

	// Inherit formatting from the column to the left, down to the aggregate
	// row (or the last row).
	lastRow := findAggregateRow(raw, SalesHeaderRow)
	if lastRow == 0 {
		lastRow = len(raw)
	}
	for r := SalesHeaderRow; priceIdx > 0 && r <= lastRow+1; r++ {
		src, err := excelize.CoordinatesToCellName(priceIdx, r)
		if err != nil {
			return err
		}
		dst, err := excelize.CoordinatesToCellName(priceIdx+1, r)
		if err != nil {
			return err
		}
		style, err := f.GetCellStyle(TableSales, src)
		if err != nil {
			continue
		}
		if err := f.SetCellStyle(TableSales, dst, dst, style); err != nil {
			return mapWorkbookError(TableSales, err)
		}
	}

	headerCell, err := excelize.CoordinatesToCellName(priceIdx+1, SalesHeaderRow)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(TableSales, headerCell, productName); err != nil {
		return mapWorkbookError(TableSales, err)
	}
	if err := f.Save(); err != nil {
		return mapWorkbookError(TableSales, err)
	}
	s.Invalidate(TableSales)
	return nil
}

func (s *WorkbookStore) AggregateRow(ctx context.Context) (int, []AggregateCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(TableSales)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	raw, _, err := s.readRaw(f, TableSales)
	if err != nil {
		return 0, nil, err
	}
	rowIndex := findAggregateRow(raw, SalesHeaderRow)
	if rowIndex == 0 {
		return 0, nil, nil
	}

	width := len(raw[SalesHeaderRow-1])
	var cells []AggregateCell
	for col := 1; col <= width; col++ {
		cell, err := excelize.CoordinatesToCellName(col, rowIndex)
		if err != nil {
			return 0, nil, err
		}
		formula, err := f.GetCellFormula(TableSales, cell)
		if err != nil {
			return 0, nil, mapWorkbookError(TableSales, err)
		}
		value := ""
		if formula != "" {
			value = FormulaMarker + strings.TrimPrefix(formula, FormulaMarker)
		} else {
			value, err = f.GetCellValue(TableSales, cell)
			if err != nil {
				return 0, nil, mapWorkbookError(TableSales, err)
			}
		}
		cells = append(cells, AggregateCell{Column: col, Value: value})
	}
	return rowIndex, cells, nil
}

func (s *WorkbookStore) UpdateAggregateFormulas(ctx context.Context, rowIndex int, formulas []CellFormula) error {
	if len(formulas) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(TableSales)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, formula := range formulas {
		cell, err := excelize.CoordinatesToCellName(formula.Column, rowIndex)
		if err != nil {
			return err
		}
		if err := f.SetCellFormula(TableSales, cell, strings.TrimPrefix(formula.Formula, FormulaMarker)); err != nil {
			return mapWorkbookError(TableSales, err)
		}
	}
	// One save commits every rewrite at once.
	if err := f.Save(); err != nil {
		return mapWorkbookError(TableSales, err)
	}
	s.Invalidate(TableSales)
	return nil
}

// Invalidate is a no-op: local reads are cheap enough that this backend
// keeps no read cache.
func (s *WorkbookStore) Invalidate(logicalName string) {}

func copyRowStyle(f *excelize.File, sheet string, srcRow, dstRow, width int) error {
	for col := 1; col <= width; col++ {
		src, err := excelize.CoordinatesToCellName(col, srcRow)
		if err != nil {
			return err
		}
		dst, err := excelize.CoordinatesToCellName(col, dstRow)
		if err != nil {
			return err
		}
		style, err := f.GetCellStyle(sheet, src)
		if err != nil {
			continue
		}
		if err := f.SetCellStyle(sheet, dst, dst, style); err != nil {
			return err
		}
	}
	return nil
}

func setTypedCell(f *excelize.File, sheet, cell, raw string) error {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return f.SetCellValue(sheet, cell, n)
	}
	if fl, err := strconv.ParseFloat(v, 64); err == nil {
		return f.SetCellValue(sheet, cell, fl)
	}
	return f.SetCellValue(sheet, cell, raw)
}
