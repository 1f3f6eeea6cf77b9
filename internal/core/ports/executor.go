package ports

import (
	"context"

	"github.com/walletd-network/walletd/internal/core/domain"
)

// ExecutionResult is what an operation handler reports back after performing
// the external network action for a claimed operation.
type ExecutionResult struct {
	// TxId is the external transaction id the action produced, if any.
	TxId []byte
	// BlockNumber is the inclusion block when already known, zero otherwise.
	BlockNumber uint64
	// Address carries the network-assigned value for address creation and
	// the contract address for token creation.
	Address []byte
	// Broadcasted tells whether the transaction was observed propagating on
	// the network.
	Broadcasted bool
	// Completed tells whether the operation needs no further network
	// confirmation and can be resolved right away.
	Completed bool
}

// OperationHandler performs the external network action for one claimed
// operation. Returning an error marks the operation failed with the error
// text as reason, it never halts processing of other operations.
type OperationHandler func(
	ctx context.Context, op domain.Operation,
) (*ExecutionResult, error)

// HandlerTable maps each operation kind to its handler. It is built once at
// startup and passed by reference, lookup is a pure map access with no
// runtime reflection.
type HandlerTable map[domain.OperationKind]OperationHandler

// BlockSource supplies the latest observed block height of a network. The
// core performs no network I/O itself, implementations live outside it.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// TxStatusSource reports the inclusion block of an external transaction,
// zero while it is still in the mempool.
type TxStatusSource interface {
	TxBlock(ctx context.Context, txid []byte) (uint64, error)
}
