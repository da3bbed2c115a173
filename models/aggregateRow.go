package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RepairAggregateRow rewrites the SUM formulas of the aggregate row after a
// sales append. The summed range always starts at the first data row under
// the header and ends at the row immediately above the (shifted) aggregate
// row. Only cells that already hold a formula are rewritten, so a ledger
// designer can opt individual columns out of summation; backends without a
// formula concept surface no formula cells and this becomes a silent no-op.
func RepairAggregateRow(ctx context.Context, store LedgerStore, schema *ColumnSchema) error {
	rowIndex, cells, err := store.AggregateRow(ctx)
	if err != nil {
		return err
	}
	if rowIndex == 0 || len(cells) == 0 {
		return nil
	}

	firstDataRow := SalesHeaderRow + 1
	lastDataRow := rowIndex - 1
	if lastDataRow < firstDataRow {
		return nil
	}

	summed := summedColumns(schema)
	formulas := make([]CellFormula, 0, len(cells))
	for _, cell := range cells {
		if _, ok := summed[cell.Column]; !ok {
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(cell.Value), FormulaMarker) {
			continue
		}
		letter, err := excelize.ColumnNumberToName(cell.Column)
		if err != nil {
			return err
		}
		formulas = append(formulas, CellFormula{
			Column:  cell.Column,
			Formula: fmt.Sprintf("=SUM(%s%d:%s%d)", letter, firstDataRow, letter, lastDataRow),
		})
	}
	if len(formulas) == 0 {
		return nil
	}
	// One batched write per append: a half-updated aggregate row must never
	// be observable.
	return store.UpdateAggregateFormulas(ctx, rowIndex, formulas)
}

// VerifyAggregateRow checks that the reserved totals row still exists.
// Appends tolerate a missing row by falling back to end-append, so the loss
// is only surfaced here, where an operator audits the layout.
func VerifyAggregateRow(ctx context.Context, store LedgerStore) error {
	rowIndex, _, err := store.AggregateRow(ctx)
	if err != nil {
		return err
	}
	if rowIndex == 0 {
		return fmt.Errorf("%w: '%s' marker absent from '%s'", ErrAggregateRowLost, AggregateRowMarker, TableSales)
	}
	return nil
}

// summedColumns is the numeric span eligible for summation: total quantity,
// every product column and the line total, as 1-based sheet columns.
func summedColumns(schema *ColumnSchema) map[int]struct{} {
	out := make(map[int]struct{})
	if schema == nil {
		return out
	}
	out[schema.TotalQuantityIndex+1] = struct{}{}
	for i := schema.TotalQuantityIndex + 1; i < schema.UnitPriceIndex; i++ {
		out[i+1] = struct{}{}
	}
	for i, name := range schema.Columns {
		if name == ColumnLineTotal {
			out[i+1] = struct{}{}
		}
	}
	return out
}
