package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockledger_backend/config"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
)

// EntryInput is one validated sale: exactly one product, its quantity and
// unit price, plus the document metadata.
type EntryInput struct {
	ClientName     string
	DocumentNumber string
	Date           time.Time
	Note           string
	Product        string
	Quantity       int
	UnitPrice      decimal.Decimal
}

// EntryResult reports what the transaction persisted.
type EntryResult struct {
	Outcome     EntryOutcome
	NewQuantity int
	LineTotal   decimal.Decimal
	InsertedRow int
}

// InventoryWriteError means the stock deduction itself failed to persist.
// Nothing was mutated; no ledger row was appended.
type InventoryWriteError struct {
	Product string
	Err     error
}

func (e *InventoryWriteError) Error() string {
	return fmt.Sprintf("обновяването на наличността за '%s' се провали: %v", e.Product, e.Err)
}

func (e *InventoryWriteError) Unwrap() error { return e.Err }

// LedgerLagError means the inventory was already decremented but the sales
// row failed to append. This is the accepted inconsistency window of the
// design: inventory reflects the real-world sale, the paper trail lags. It
// is surfaced with the exact manual-reconciliation action and never
// silently retried or rolled back.
type LedgerLagError struct {
	Product  string
	Quantity int
	Err      error
}

func (e *LedgerLagError) Error() string {
	return fmt.Sprintf(
		"наличността е обновена (-%d за '%s'), но записът в '%s' не бе добавен: %v — добавете реда ръчно",
		e.Quantity, e.Product, TableSales, e.Err)
}

func (e *LedgerLagError) Unwrap() error { return e.Err }

// RecordEntry runs the two-step stock-ledger transaction: decrement the
// product's on-hand quantity, then append the sales row above the aggregate
// row and repair its formulas. The steps are strictly ordered and there is
// no rollback across the two tables; which half succeeded is always part of
// the result.
func RecordEntry(ctx context.Context, store LedgerStore, input *EntryInput) (*EntryResult, error) {
	logger := config.GetLogger()

	// Advisory lock is a best-effort optimization against two operators
	// racing on the same table. Correctness must not depend on Redis; the
	// lost-update window without it is documented behavior.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "lock:"+TableSales, 30*time.Second, nil)
		if err == nil {
			defer lock.Release(ctx)
		} else if err != redislock.ErrNotObtained {
			config.LogWarnCtx(ctx, logger, "models", "RecordEntry", "redislock.Obtain", err)
		}
	}

	table, err := store.LoadTable(ctx, TableSales)
	if err != nil {
		return nil, err
	}
	schema, err := ResolveColumnSchema(table.Header)
	if err != nil {
		return nil, err
	}
	if !schema.HasProduct(input.Product) {
		return nil, fmt.Errorf("%w: %q is not a ledger column", ErrProductNotFound, input.Product)
	}

	// Step 1: look up current stock.
	record, err := store.FindInventoryRecord(ctx, input.Product)
	if err != nil {
		return nil, err
	}

	// Step 2: a negative result aborts before any mutation.
	newQuantity := record.QuantityOnHand - input.Quantity
	if newQuantity < 0 {
		return nil, fmt.Errorf("%w: '%s' има %d бр., поискани са %d",
			ErrInsufficientStock, input.Product, record.QuantityOnHand, input.Quantity)
	}

	// Step 3: persist the deduction. Failure here means no row is appended.
	if err := store.SetInventoryQuantity(ctx, input.Product, newQuantity); err != nil {
		return nil, &InventoryWriteError{Product: input.Product, Err: err}
	}

	lineTotal := input.UnitPrice.Mul(decimal.NewFromInt(int64(input.Quantity)))
	row := buildSalesRow(schema, input, lineTotal)

	// Step 4: append the sales row. Inventory stays decremented on failure.
	insertedRow, err := store.AppendSalesRow(ctx, row, schema.Columns)
	if err != nil {
		return &EntryResult{
				Outcome:     EntryOutcomeInventoryOnly,
				NewQuantity: newQuantity,
				LineTotal:   lineTotal,
			}, &LedgerLagError{
				Product:  input.Product,
				Quantity: input.Quantity,
				Err:      err,
			}
	}

	// Formula repair is a side effect of the append. A failure here leaves
	// both tables correct and only the totals stale until the next append,
	// so it is logged rather than failing the recorded entry.
	if err := RepairAggregateRow(ctx, store, schema); err != nil {
		config.LogErrorCtx(ctx, logger, "models", "RecordEntry", "RepairAggregateRow", input.Product, err)
	}

	return &EntryResult{
		Outcome:     EntryOutcomeRecorded,
		NewQuantity: newQuantity,
		LineTotal:   lineTotal,
		InsertedRow: insertedRow,
	}, nil
}

func buildSalesRow(schema *ColumnSchema, input *EntryInput, lineTotal decimal.Decimal) map[string]string {
	row := make(map[string]string, len(schema.Columns))
	for _, col := range schema.Columns {
		row[col] = ""
	}
	row[ColumnDate] = input.Date.Format("01/02/2006")
	row[ColumnDocNumber] = input.DocumentNumber
	row[ColumnClientName] = strings.ToUpper(strings.TrimSpace(input.ClientName))
	row[ColumnNote] = input.Note
	row[ColumnTotalQuantity] = strconv.Itoa(input.Quantity)
	row[input.Product] = strconv.Itoa(input.Quantity)
	row[ColumnUnitPrice] = input.UnitPrice.StringFixed(2)
	row[ColumnLineTotal] = lineTotal.StringFixed(2)
	return row
}
