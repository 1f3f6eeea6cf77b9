package domain

import "context"

// AccountRepository is the abstraction for any kind of database intended to
// persist ledger accounts and their transaction rows.
type AccountRepository interface {
	// AddAccount persists a new account.
	AddAccount(ctx context.Context, account *Account) error
	// GetAccount returns the account with the given id, or ErrAccountNotFound.
	GetAccount(ctx context.Context, accountId string) (*Account, error)
	// UpdateAccount commits multiple changes to the same account in a
	// transactional way.
	UpdateAccount(
		ctx context.Context,
		accountId string,
		updateFn func(a *Account) (*Account, error),
	) error
	// ListAccountsForAsset returns all accounts holding the given asset.
	ListAccountsForAsset(ctx context.Context, assetId string) ([]Account, error)
	// ListAllAccounts returns every account in the store.
	ListAllAccounts(ctx context.Context) ([]Account, error)

	// AddTransaction persists a new immutable transaction row.
	AddTransaction(ctx context.Context, tx *AccountTransaction) error
	// GetTransaction returns the transaction with the given id, or
	// ErrTransactionNotFound.
	GetTransaction(ctx context.Context, txId string) (*AccountTransaction, error)
	// ListTransactionsForAccount returns the account's rows ordered by
	// creation.
	ListTransactionsForAccount(ctx context.Context, accountId string) ([]AccountTransaction, error)
}
