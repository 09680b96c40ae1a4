package sheets

import (
	"context"

	"pocketbalance/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror keeps a copy of the ledger in an external spreadsheet.
	Mirror interface {
		// AppendTransaction adds one row for tx.
		AppendTransaction(ctx context.Context, tx core.Transaction) error
		// Clear removes every transaction row, keeping the header.
		Clear(ctx context.Context) error
	}

	// MirrorReader lists the transactions already mirrored.
	MirrorReader interface {
		Transactions(ctx context.Context) ([]core.Transaction, error)
	}
)
