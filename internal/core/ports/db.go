package ports

import (
	"context"

	"github.com/walletd-network/walletd/internal/core/domain"
)

// RepoManager gives access to all repositories and to the transactional
// boundary they share.
type RepoManager interface {
	AssetRepository() domain.AssetRepository
	AccountRepository() domain.AccountRepository
	AddressRepository() domain.AddressRepository
	OperationRepository() domain.OperationRepository
	NetworkStatusRepository() domain.NetworkStatusRepository

	Close()

	// RunTransaction runs the handler against the main store inside one
	// atomic transaction. Repositories called with the returned context
	// share that transaction, everything the handler writes commits as one
	// unit or not at all.
	RunTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) (interface{}, error),
	) (interface{}, error)
	// RunStatusTransaction is RunTransaction against the network-status
	// store.
	RunStatusTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) (interface{}, error),
	) (interface{}, error)
}

// Transaction defines the methods to commit or discard a database
// transaction.
type Transaction interface {
	Commit() error
	Discard()
}
