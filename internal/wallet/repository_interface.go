package wallet

import "context"

// Store is the read surface handlers and the reconciler consume. Balance
// mutation always happens inside some owning transaction (payment
// confirmation, transfer execution, withdrawal resolution) through the
// ApplyX helpers, never through a standalone call.
type Store interface {
	GetOrCreateWallet(ctx context.Context, userID int) (*Wallet, error)
	ListEntries(ctx context.Context, userID int, limit, offset int) ([]LedgerEntry, error)
}
