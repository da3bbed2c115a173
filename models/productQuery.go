package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ProductSale is one historical ledger row that sold the queried product.
type ProductSale struct {
	DocumentNumber string `json:"documentNumber"`
	ClientName     string `json:"clientName"`
	Date           string `json:"date"`
	Note           string `json:"note"`
	Quantity       string `json:"quantity"`
	UnitPrice      string `json:"unitPrice"`
	LineTotal      string `json:"lineTotal"`
}

// ProductSummary is the answer to a product lookup: current stock plus every
// sales row that carries a numeric quantity in the product's column.
type ProductSummary struct {
	Product        string        `json:"product"`
	QuantityOnHand int           `json:"quantityOnHand"`
	Sales          []ProductSale `json:"sales"`
}

// QueryProduct looks a product up by its ledger column name.
func QueryProduct(ctx context.Context, store LedgerStore, productName string) (*ProductSummary, error) {
	table, err := store.LoadTable(ctx, TableSales)
	if err != nil {
		return nil, err
	}
	schema, err := ResolveColumnSchema(table.Header)
	if err != nil {
		return nil, err
	}
	if !schema.HasProduct(productName) {
		return nil, fmt.Errorf("%w: %q is not a ledger column", ErrProductNotFound, productName)
	}

	summary := &ProductSummary{Product: productName, Sales: []ProductSale{}}

	// A product can legitimately exist as a column before its inventory row
	// is reconciled; report zero stock rather than failing the lookup.
	record, err := store.FindInventoryRecord(ctx, productName)
	switch {
	case err == nil:
		summary.QuantityOnHand = record.QuantityOnHand
	case !errors.Is(err, ErrProductNotFound):
		return nil, err
	}

	for _, row := range table.Rows {
		qty := strings.TrimSpace(row[productName])
		if qty == "" {
			continue
		}
		if _, err := strconv.ParseFloat(strings.ReplaceAll(qty, ",", "."), 64); err != nil {
			continue
		}
		summary.Sales = append(summary.Sales, ProductSale{
			DocumentNumber: row[ColumnDocNumber],
			ClientName:     row[ColumnClientName],
			Date:           row[ColumnDate],
			Note:           row[ColumnNote],
			Quantity:       qty,
			UnitPrice:      row[ColumnUnitPrice],
			LineTotal:      row[ColumnLineTotal],
		})
	}
	return summary, nil
}

// ListProducts returns the provisioned products (the dynamic column region)
// with their on-hand quantities. An empty region is reported so the caller
// can disable record entry while keeping the rest of the app alive.
func ListProducts(ctx context.Context, store LedgerStore) ([]ProductSummary, error) {
	table, err := store.LoadTable(ctx, TableSales)
	if err != nil {
		return nil, err
	}
	schema, err := ResolveColumnSchema(table.Header)
	if err != nil {
		return nil, err
	}

	inventory, err := store.LoadTable(ctx, TableInventory)
	if err != nil {
		return nil, err
	}
	onHand := make(map[string]int, len(inventory.Rows))
	for _, row := range inventory.Rows {
		qty, err := parseQuantity(row[InventoryColumnQuantity])
		if err != nil {
			continue
		}
		onHand[row[InventoryColumnProduct]] = qty
	}

	out := make([]ProductSummary, 0, len(schema.ProductColumns))
	for _, name := range schema.ProductColumns {
		out = append(out, ProductSummary{Product: name, QuantityOnHand: onHand[name], Sales: []ProductSale{}})
	}
	return out, nil
}
