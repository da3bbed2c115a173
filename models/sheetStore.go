package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/stockledger_backend/config"
	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// SheetStore is the hosted backend: SalesData and Inventory live in two
// Google spreadsheets, one tab each. All mutations are single API round
// trips serialized by the service itself; row and column inserts go through
// batchUpdate so formatting inheritance is applied server-side.
type SheetStore struct {
	svc         *sheets.Service
	salesID     string
	inventoryID string
	tabName     string

	mu       sync.Mutex
	sheetIDs map[string]int64 // spreadsheetID -> numeric sheet id of the tab
}

// NewSheetStore wires the store from the global Sheets client and env
// configuration. The client must already be connected.
func NewSheetStore() (*SheetStore, error) {
	svc := config.GetSheetsService()
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	salesID := config.SalesSpreadsheetID()
	inventoryID := config.InventorySpreadsheetID()
	if salesID == "" || inventoryID == "" {
		return nil, errors.New("SALES_SPREADSHEET_ID and INVENTORY_SPREADSHEET_ID are required")
	}
	return &SheetStore{
		svc:         svc,
		salesID:     salesID,
		inventoryID: inventoryID,
		tabName:     "Sheet1",
		sheetIDs:    make(map[string]int64),
	}, nil
}

func (s *SheetStore) spreadsheetFor(logicalName string) (string, int, error) {
	switch logicalName {
	case TableSales:
		return s.salesID, SalesHeaderRow, nil
	case TableInventory:
		return s.inventoryID, InventoryHeaderRow, nil
	}
	return "", 0, fmt.Errorf("%w: unknown table %q", ErrTableNotFound, logicalName)
}

// mapSheetsError folds googleapi failures into the store taxonomy; raw API
// errors never cross this boundary.
func mapSheetsError(logicalName string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrTableNotFound, logicalName)
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAccessDenied, logicalName)
		}
	}
	return fmt.Errorf("%s: %w", logicalName, err)
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (s *SheetStore) readRaw(ctx context.Context, logicalName string) ([][]string, error) {
	spreadsheetID, _, err := s.spreadsheetFor(logicalName)
	if err != nil {
		return nil, err
	}
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, s.tabName).Context(ctx).Do()
	if err != nil {
		return nil, mapSheetsError(logicalName, err)
	}
	raw := make([][]string, len(resp.Values))
	for i, cells := range resp.Values {
		row := make([]string, len(cells))
		for j, v := range cells {
			row[j] = cellString(v)
		}
		raw[i] = row
	}
	return raw, nil
}

func (s *SheetStore) sheetID(ctx context.Context, spreadsheetID string) (int64, error) {
	s.mu.Lock()
	id, ok := s.sheetIDs[spreadsheetID]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	meta, err := s.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets(properties(sheetId,title))").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.tabName {
			s.mu.Lock()
			s.sheetIDs[spreadsheetID] = sh.Properties.SheetId
			s.mu.Unlock()
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("tab %q not found in spreadsheet", s.tabName)
}

func (s *SheetStore) LoadTable(ctx context.Context, logicalName string) (*Table, error) {
	_, headerRow, err := s.spreadsheetFor(logicalName)
	if err != nil {
		return nil, err
	}
	key := tableCacheKey(config.LedgerBackendSheets, logicalName)
	if table, ok := cachedTable(key); ok {
		return table, nil
	}
	raw, err := s.readRaw(ctx, logicalName)
	if err != nil {
		return nil, err
	}
	table, err := buildTable(logicalName, headerRow, raw)
	if err != nil {
		return nil, err
	}
	cacheTable(key, table)
	return table, nil
}

func (s *SheetStore) FindInventoryRecord(ctx context.Context, productName string) (*InventoryRecord, error) {
	raw, err := s.readRaw(ctx, TableInventory)
	if err != nil {
		return nil, err
	}
	want := utils.NormalizeSpace(productName)
	for i := InventoryHeaderRow; i < len(raw); i++ {
		cells := raw[i]
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

func (s *SheetStore) SetInventoryQuantity(ctx context.Context, productName string, quantity int) error {
	record, err := s.FindInventoryRecord(ctx, productName)
	if err != nil {
		return err
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{{quantity}}}
	_, err = s.svc.Spreadsheets.Values.
		Update(s.inventoryID, fmt.Sprintf("%s!B%d", s.tabName, record.Row), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return mapSheetsError(TableInventory, err)
	}
	s.Invalidate(TableInventory)
	return nil
}

func (s *SheetStore) AppendInventoryRecord(ctx context.Context, productName string, quantity int) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{{productName, quantity}}}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.inventoryID, fmt.Sprintf("%s!A:B", s.tabName), vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return mapSheetsError(TableInventory, err)
	}
	s.Invalidate(TableInventory)
	return nil
}

func (s *SheetStore) AppendSalesRow(ctx context.Context, row map[string]string, columnOrder []string) (int, error) {
	raw, err := s.readRaw(ctx, TableSales)
	if err != nil {
		return 0, err
	}
	// Insert directly above the aggregate row so it stays last. Without one
	// (legacy sheet), fall back to appending after the final row.
	insertRow := findAggregateRow(raw, SalesHeaderRow)
	if insertRow == 0 {
		insertRow = len(raw) + 1
	}

	sheetID, err := s.sheetID(ctx, s.salesID)
	if err != nil {
		return 0, mapSheetsError(TableSales, err)
	}
	// InheritFromBefore copies formatting from the row above the insertion
	// point; the row below is the aggregate row, whose formatting we must
	// not clone into data rows.
	_, err = s.svc.Spreadsheets.BatchUpdate(s.salesID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			InsertDimension: &sheets.InsertDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(insertRow - 1),
					EndIndex:   int64(insertRow),
				},
				InheritFromBefore: true,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, mapSheetsError(TableSales, err)
	}

	values := make([]interface{}, len(columnOrder))
	for i, col := range columnOrder {
		values[i] = row[col]
	}
	lastCol, err := excelize.ColumnNumberToName(len(columnOrder))
	if err != nil {
		return 0, err
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", s.tabName, insertRow, lastCol, insertRow)
	_, err = s.svc.Spreadsheets.Values.
		Update(s.salesID, rng, &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return 0, mapSheetsError(TableSales, err)
	}
	s.Invalidate(TableSales)
	return insertRow, nil
}

func (s *SheetStore) InsertProductColumn(ctx context.Context, productName string) error {
	raw, err := s.readRaw(ctx, TableSales)
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

	sheetID, err := s.sheetID(ctx, s.salesID)
	if err != nil {
		return mapSheetsError(TableSales, err)
	}
	// New column lands immediately before the unit-price sentinel and
	// inherits the formatting of the product column to its left.
	_, err = s.svc.Spreadsheets.BatchUpdate(s.salesID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			InsertDimension: &sheets.InsertDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: int64(priceIdx),
					EndIndex:   int64(priceIdx + 1),
				},
				InheritFromBefore: true,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return mapSheetsError(TableSales, err)
	}

	colLetter, err := excelize.ColumnNumberToName(priceIdx + 1)
	if err != nil {
		return err
	}
	headerCell := fmt.Sprintf("%s!%s%d", s.tabName, colLetter, SalesHeaderRow)
	_, err = s.svc.Spreadsheets.Values.
		Update(s.salesID, headerCell, &sheets.ValueRange{Values: [][]interface{}{{productName}}}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return mapSheetsError(TableSales, err)
	}
	s.Invalidate(TableSales)
	return nil
}

func (s *SheetStore) AggregateRow(ctx context.Context) (int, []AggregateCell, error) {
	raw, err := s.readRaw(ctx, TableSales)
	if err != nil {
		return 0, nil, err
	}
	rowIndex := findAggregateRow(raw, SalesHeaderRow)
	if rowIndex == 0 {
		return 0, nil, nil
	}
	// Formulas are only visible under the FORMULA render option; the
	// default formatted read returns their computed values.
	rng := fmt.Sprintf("%s!%d:%d", s.tabName, rowIndex, rowIndex)
	resp, err := s.svc.Spreadsheets.Values.Get(s.salesID, rng).
		ValueRenderOption("FORMULA").Context(ctx).Do()
	if err != nil {
		return 0, nil, mapSheetsError(TableSales, err)
	}
	var cells []AggregateCell
	if len(resp.Values) > 0 {
		for j, v := range resp.Values[0] {
			cells = append(cells, AggregateCell{Column: j + 1, Value: cellString(v)})
		}
	}
	return rowIndex, cells, nil
}

func (s *SheetStore) UpdateAggregateFormulas(ctx context.Context, rowIndex int, formulas []CellFormula) error {
	if len(formulas) == 0 {
		return nil
	}
	data := make([]*sheets.ValueRange, 0, len(formulas))
	for _, f := range formulas {
		colLetter, err := excelize.ColumnNumberToName(f.Column)
		if err != nil {
			return err
		}
		data = append(data, &sheets.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", s.tabName, colLetter, rowIndex),
			Values: [][]interface{}{{f.Formula}},
		})
	}
	_, err := s.svc.Spreadsheets.Values.BatchUpdate(s.salesID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return mapSheetsError(TableSales, err)
	}
	s.Invalidate(TableSales)
	return nil
}

func (s *SheetStore) Invalidate(logicalName string) {
	dropCachedTable(tableCacheKey(config.LedgerBackendSheets, logicalName))
}

func parseQuantity(raw string) (int, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
