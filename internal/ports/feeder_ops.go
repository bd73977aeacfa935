package ports

import (
	"context"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/reservebot/goreserve/internal/feeds"
	"github.com/reservebot/goreserve/internal/journal"
)

// QuoteSource delivers the latest external price per symbol.
type QuoteSource interface {
	Quotes(ctx context.Context, symbols []string) (map[string]feeds.Quote, error)
}

// BlockReader resolves the current chain head. *ethclient.Client satisfies
// it.
type BlockReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// TxConfirmer waits for a submitted transaction to be mined.
type TxConfirmer interface {
	WaitMined(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error)
}

// OperationJournal records submitted operations and their outcomes.
type OperationJournal interface {
	Insert(ctx context.Context, kind, token, txHash, detail string) (journal.Record, error)
	MarkStatus(ctx context.Context, id string, status journal.Status, detail string) error
}

// JournalReader serves the audit trail to operators.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Record, error)
}
