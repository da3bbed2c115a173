package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/stockledger_backend/config"
	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
	"github.com/bsm/redislock"
)

// ProvisionResult reports which halves of a provisioning succeeded.
type ProvisionResult struct {
	Outcome ProvisionOutcome
	Product string
}

// ColumnInsertError means the inventory record was created but the ledger
// column insert failed. The column must be added manually; the inventory
// half is not rolled back.
type ColumnInsertError struct {
	Product string
	Err     error
}

func (e *ColumnInsertError) Error() string {
	return fmt.Sprintf(
		"продуктът '%s' е добавен в '%s', но колоната в '%s' не бе създадена: %v — добавете я ръчно преди '%s'",
		e.Product, TableInventory, TableSales, e.Err, ColumnUnitPrice)
}

func (e *ColumnInsertError) Unwrap() error { return e.Err }

// ProvisionProduct registers a brand-new product in both collaborators: an
// Inventory row with the initial quantity, and a SalesData column inserted
// immediately before the unit-price sentinel. The duplicate check runs
// before any mutation; a failure of the second half is a distinct partial
// outcome, never silently swallowed.
func ProvisionProduct(ctx context.Context, store LedgerStore, productName string, initialQuantity int) (*ProvisionResult, error) {
	productName = utils.NormalizeSpace(productName)
	if productName == "" {
		return nil, fmt.Errorf("%w: празно име на продукт", ErrProductNotFound)
	}
	if initialQuantity < 0 {
		return nil, fmt.Errorf("начална наличност под нула за '%s'", productName)
	}

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "lock:"+TableInventory, 30*time.Second, nil)
		if err == nil {
			defer lock.Release(ctx)
		} else if err != redislock.ErrNotObtained {
			config.LogWarnCtx(ctx, config.GetLogger(), "models", "ProvisionProduct", "redislock.Obtain", err)
		}
	}

	// Checked before any mutation.
	_, err := store.FindInventoryRecord(ctx, productName)
	if err == nil {
		return nil, fmt.Errorf("%w: '%s'", ErrDuplicateProduct, productName)
	}
	if !errors.Is(err, ErrProductNotFound) {
		return nil, err
	}

	if err := store.AppendInventoryRecord(ctx, productName, initialQuantity); err != nil {
		return nil, fmt.Errorf("добавянето на '%s' в '%s' се провали: %w", productName, TableInventory, err)
	}

	if err := store.InsertProductColumn(ctx, productName); err != nil {
		return &ProvisionResult{Outcome: ProvisionOutcomeInventoryOnly, Product: productName},
			&ColumnInsertError{Product: productName, Err: err}
	}

	return &ProvisionResult{Outcome: ProvisionOutcomeComplete, Product: productName}, nil
}
