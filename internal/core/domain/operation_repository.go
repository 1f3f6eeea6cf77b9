package domain

import "context"

// OperationRepository is the abstraction for any kind of database intended
// to persist crypto operations.
type OperationRepository interface {
	// AddOperation persists a new operation.
	AddOperation(ctx context.Context, op *Operation) error
	// GetOperation returns the operation with the given id, or
	// ErrOperationNotFound.
	GetOperation(ctx context.Context, opId string) (*Operation, error)
	// GetOperationByOpId returns the network's operation with the given
	// incoming-transaction dedup key, or ErrOperationNotFound.
	GetOperationByOpId(ctx context.Context, networkId string, opId []byte) (*Operation, error)
	// GetCreationOperationForAddress returns the address-creation operation
	// of the given address, or ErrOperationNotFound.
	GetCreationOperationForAddress(ctx context.Context, addressId string) (*Operation, error)
	// GetTokenCreationForAsset returns the create-token operation whose
	// holding account holds the given asset, or ErrOperationNotFound.
	GetTokenCreationForAsset(ctx context.Context, assetId string) (*Operation, error)
	// ListOperationsByTxId returns all operations recorded against the given
	// external transaction id. One transaction can carry several operations.
	ListOperationsByTxId(ctx context.Context, txId []byte) ([]Operation, error)
	// ListWaitingOperations returns the network's operations in waiting
	// state, oldest first.
	ListWaitingOperations(ctx context.Context, networkId string) ([]Operation, error)
	// ListUnresolvedConfirmationOperations returns the network's in-flight
	// operations still tracking block depth.
	ListUnresolvedConfirmationOperations(ctx context.Context, networkId string) ([]Operation, error)
	// ListExpiredApprovals returns the network's operations whose manual
	// approval deadline passed before now.
	ListExpiredApprovals(ctx context.Context, networkId string, now int64) ([]Operation, error)
	// ListOperationsForNetwork returns all operations of a network, oldest
	// first.
	ListOperationsForNetwork(ctx context.Context, networkId string) ([]Operation, error)
	// UpdateOperation commits multiple changes to the same operation in a
	// transactional way.
	UpdateOperation(
		ctx context.Context,
		opId string,
		updateFn func(o *Operation) (*Operation, error),
	) error
}
