package models

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
)

// Schema resolution errors. An empty product region is reported, not fatal:
// the caller disables record entry but the rest of the app keeps working.
var (
	ErrMissingSentinel    = errors.New("sentinel column missing from header")
	ErrEmptyProductRegion = errors.New("no product columns between sentinels")
)

// ColumnSchema is the dynamic schema of the SalesData table, derived fresh
// from each load. Product columns are everything strictly between the
// total-quantity and unit-price sentinels, in left-to-right order. The
// region widens whenever a product is provisioned, so positions are never
// cached across writes.
type ColumnSchema struct {
	Columns        []string
	ProductColumns []string

	// 0-based positions within Columns.
	TotalQuantityIndex int
	UnitPriceIndex     int
}

// ResolveColumnSchema discovers the product-column region of a header.
// Names are whitespace-normalized before sentinel matching (persisted
// headers carry stray spaces); LoadTable normalizes too, which makes this
// idempotent. With duplicated sentinels the first occurrence wins;
// sentinels present but out of order are indistinguishable from a missing
// one.
func ResolveColumnSchema(rawHeader []string) (*ColumnSchema, error) {
	header := make([]string, len(rawHeader))
	totalIdx, priceIdx := -1, -1
	for i, name := range rawHeader {
		header[i] = utils.NormalizeSpace(name)
		if totalIdx < 0 && header[i] == ColumnTotalQuantity {
			totalIdx = i
		}
		if priceIdx < 0 && header[i] == ColumnUnitPrice {
			priceIdx = i
		}
	}
	if totalIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingSentinel, ColumnTotalQuantity)
	}
	if priceIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingSentinel, ColumnUnitPrice)
	}
	if priceIdx < totalIdx {
		return nil, fmt.Errorf("%w: %q precedes %q", ErrMissingSentinel, ColumnUnitPrice, ColumnTotalQuantity)
	}

	schema := &ColumnSchema{
		Columns:            append([]string(nil), header...),
		TotalQuantityIndex: totalIdx,
		UnitPriceIndex:     priceIdx,
	}
	if priceIdx-totalIdx <= 1 {
		return schema, ErrEmptyProductRegion
	}
	schema.ProductColumns = append([]string(nil), header[totalIdx+1:priceIdx]...)
	return schema, nil
}

// HasProduct reports whether name is one of the discovered product columns.
func (s *ColumnSchema) HasProduct(name string) bool {
	for _, p := range s.ProductColumns {
		if p == name {
			return true
		}
	}
	return false
}
