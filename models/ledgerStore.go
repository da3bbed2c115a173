package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockledger_backend/config"
	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
)

// Logical table names. The same two tables exist in both backends: a pair of
// Google spreadsheets, or two sheets of one local workbook.
const (
	TableSales     = "SalesData"
	TableInventory = "Inventory"
)

// Fixed layout contract of the persisted tables. The SalesData header sits
// below a title/legend block; Inventory's header is the first row.
const (
	SalesHeaderRow     = 4
	InventoryHeaderRow = 1
)

// Well-known SalesData column names. Product columns live strictly between
// ColumnTotalQuantity and ColumnUnitPrice and are discovered per load.
const (
	ColumnClientName    = "Клиент име"
	ColumnNote          = "Бележка"
	ColumnDate          = "Дата"
	ColumnDocNumber     = "Фактура №"
	ColumnTotalQuantity = "Общо кол-во"
	ColumnUnitPrice     = "Цена"
	ColumnLineTotal     = "Сума лв."
)

// Inventory column names.
const (
	InventoryColumnProduct  = "Продукт"
	InventoryColumnQuantity = "Наличност"
)

// AggregateRowMarker identifies the reserved totals row by its client-name
// cell. It must stay the last data-bearing row of SalesData.
const AggregateRowMarker = "ОБЩО"

// FormulaMarker prefixes cell contents that hold a formula.
const FormulaMarker = "="

// tableCacheTTL bounds the freshness of the read cache independently of
// explicit invalidation.
const tableCacheTTL = 60 * time.Second

// Error taxonomy. Backend failures are mapped to these at the store
// boundary and never leak as raw API errors.
var (
	ErrTableNotFound      = errors.New("table not found")
	ErrAccessDenied       = errors.New("access to table denied")
	ErrTableMalformed     = errors.New("table layout is malformed")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrDuplicateProduct   = errors.New("product already exists")
	ErrAggregateRowLost   = errors.New("aggregate row not found")
	ErrExtractionDisabled = errors.New("document extraction is not configured")
)

// Table is a transient, read-only snapshot of one persisted table. The
// aggregate row is filtered out; callers never see it as data. Snapshots are
// invalidated after any write and must not be reused across writes.
type Table struct {
	LogicalName string              `json:"logicalName"`
	HeaderRow   int                 `json:"headerRow"` // 1-based sheet row of the header
	Header      []string            `json:"header"`    // whitespace-normalized names
	Rows        []map[string]string `json:"rows"`
}

// InventoryRecord is one product's on-hand quantity, with its sheet row so a
// write can target the exact cell that was read.
type InventoryRecord struct {
	ProductName    string
	QuantityOnHand int
	Row            int // 1-based sheet row
}

// AggregateCell is one raw cell of the aggregate row. Formula-bearing cells
// start with FormulaMarker.
type AggregateCell struct {
	Column int // 1-based sheet column
	Value  string
}

// CellFormula is one rewrite of an aggregate-row cell.
type CellFormula struct {
	Column  int
	Formula string
}

// LedgerStore is the backend-agnostic contract over the two persisted
// tables. Implementations map their native failures onto the error taxonomy
// above and call Invalidate after every successful mutation.
type LedgerStore interface {
	// LoadTable returns a snapshot of the named table with the aggregate
	// row filtered out and fully empty rows skipped.
	LoadTable(ctx context.Context, logicalName string) (*Table, error)

	// FindInventoryRecord reads the Inventory table fresh (never from
	// cache) and returns ErrProductNotFound when the product is absent.
	FindInventoryRecord(ctx context.Context, productName string) (*InventoryRecord, error)

	// SetInventoryQuantity overwrites one product's on-hand quantity.
	SetInventoryQuantity(ctx context.Context, productName string, quantity int) error

	// AppendInventoryRecord adds a brand-new product row to Inventory.
	AppendInventoryRecord(ctx context.Context, productName string, quantity int) error

	// AppendSalesRow inserts row immediately above the aggregate row,
	// inheriting formatting from the row above the insertion point, and
	// returns the 1-based row index it landed on.
	AppendSalesRow(ctx context.Context, row map[string]string, columnOrder []string) (int, error)

	// InsertProductColumn inserts a new column immediately before the
	// unit-price sentinel, inheriting formatting from its left neighbour,
	// and labels it with productName.
	InsertProductColumn(ctx context.Context, productName string) error

	// AggregateRow returns the 1-based row index of the aggregate row and
	// its raw cells, formulas included. A backend without a formula concept
	// returns no formula-bearing cells.
	AggregateRow(ctx context.Context) (int, []AggregateCell, error)

	// UpdateAggregateFormulas commits all formula rewrites for one append
	// as a single batched write.
	UpdateAggregateFormulas(ctx context.Context, rowIndex int, formulas []CellFormula) error

	// Invalidate drops any cached read view of the named table.
	Invalidate(logicalName string)
}

// --- read cache -------------------------------------------------------------

// The read cache is advisory: it bounds backend load under repeated reads
// but must never mask a just-completed write, hence explicit invalidation
// on every mutation on top of the TTL.

func tableCacheKey(backend, logicalName string) string {
	return fmt.Sprintf("ledger:%s:table:%s", backend, logicalName)
}

func cachedTable(key string) (*Table, bool) {
	var table Table
	found, err := config.GetRedisObject(key, &table)
	if err != nil || !found {
		return nil, false
	}
	return &table, true
}

func cacheTable(key string, table *Table) {
	if err := config.SetRedisObject(key, table, tableCacheTTL); err != nil {
		config.LogWarn(config.GetLogger(), "models", "cacheTable", key, err)
	}
}

func dropCachedTable(key string) {
	if err := config.DeleteRedisObject(key); err != nil {
		config.LogWarn(config.GetLogger(), "models", "dropCachedTable", key, err)
	}
}

// --- shared row helpers -----------------------------------------------------

// IsAggregateMarker reports whether a client-name cell marks the aggregate
// row. Matching is case- and whitespace-insensitive.
func IsAggregateMarker(cell string) bool {
	return strings.EqualFold(utils.NormalizeSpace(cell), AggregateRowMarker)
}

func normalizeHeader(raw []string) []string {
	header := make([]string, len(raw))
	for i, name := range raw {
		header[i] = utils.NormalizeSpace(name)
	}
	return header
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// buildTable shapes raw sheet rows into a Table: header normalization, the
// aggregate row and fully empty rows dropped, short rows padded.
func buildTable(logicalName string, headerRow int, raw [][]string) (*Table, error) {
	if len(raw) < headerRow {
		return nil, fmt.Errorf("%w: %s has no header at row %d", ErrTableMalformed, logicalName, headerRow)
	}
	header := normalizeHeader(raw[headerRow-1])
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: %s header row %d is empty", ErrTableMalformed, logicalName, headerRow)
	}

	clientIdx := -1
	for i, name := range header {
		if name == ColumnClientName {
			clientIdx = i
			break
		}
	}

	table := &Table{LogicalName: logicalName, HeaderRow: headerRow, Header: header}
	for _, cells := range raw[headerRow:] {
		if isEmptyRow(cells) {
			continue
		}
		if clientIdx >= 0 && clientIdx < len(cells) && IsAggregateMarker(cells[clientIdx]) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(cells) {
				row[name] = cells[i]
			} else {
				row[name] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// findAggregateRow scans the client-name column below the header for the
// reserved marker. Returns 0 when no aggregate row exists.
func findAggregateRow(raw [][]string, headerRow int) int {
	if len(raw) < headerRow {
		return 0
	}
	header := normalizeHeader(raw[headerRow-1])
	clientIdx := -1
	for i, name := range header {
		if name == ColumnClientName {
			clientIdx = i
			break
		}
	}
	if clientIdx < 0 {
		return 0
	}
	for i := headerRow; i < len(raw); i++ {
		cells := raw[i]
		if clientIdx < len(cells) && IsAggregateMarker(cells[clientIdx]) {
			return i + 1
		}
	}
	return 0
}
