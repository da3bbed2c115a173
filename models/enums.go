package models

// EntryOutcome tags the result of the two-step record-entry transaction.
// There is no rollback between the steps: inventory truth wins, the ledger
// may lag, and the divergence is always reported.
type EntryOutcome string

const (
	// EntryOutcomeRecorded means both the stock deduction and the ledger
	// append were persisted.
	EntryOutcomeRecorded EntryOutcome = "Recorded"
	// EntryOutcomeInventoryOnly means the stock deduction was persisted but
	// the ledger append failed. The sales row must be added manually.
	EntryOutcomeInventoryOnly EntryOutcome = "InventoryOnly"
)

// ProvisionOutcome tags the result of registering a new product.
type ProvisionOutcome string

const (
	// ProvisionOutcomeComplete means both the inventory record and the
	// ledger product column were created.
	ProvisionOutcomeComplete ProvisionOutcome = "Complete"
	// ProvisionOutcomeInventoryOnly means the inventory record was created
	// but the ledger column insert failed and must be finished manually.
	ProvisionOutcomeInventoryOnly ProvisionOutcome = "InventoryOnly"
)
