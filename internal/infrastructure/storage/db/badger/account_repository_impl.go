package dbbadger

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/walletd-network/walletd/internal/core/domain"
)

type accountRepositoryImpl struct {
	store *badgerhold.Store
}

func newAccountRepositoryImpl(store *badgerhold.Store) domain.AccountRepository {
	return accountRepositoryImpl{store}
}

func (r accountRepositoryImpl) AddAccount(
	ctx context.Context, account *domain.Account,
) error {
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		return r.store.TxInsert(tx, account.Id, account)
	}
	return r.store.Insert(account.Id, account)
}

func (r accountRepositoryImpl) GetAccount(
	ctx context.Context, accountId string,
) (*domain.Account, error) {
	var account domain.Account
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxGet(tx, accountId, &account)
	} else {
		err = r.store.Get(accountId, &account)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r accountRepositoryImpl) UpdateAccount(
	ctx context.Context,
	accountId string,
	updateFn func(a *domain.Account) (*domain.Account, error),
) error {
	account, err := r.GetAccount(ctx, accountId)
	if err != nil {
		return err
	}

	updated, err := updateFn(account)
	if err != nil {
		return err
	}

	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		return r.store.TxUpdate(tx, updated.Id, updated)
	}
	return r.store.Update(updated.Id, updated)
}

func (r accountRepositoryImpl) ListAccountsForAsset(
	ctx context.Context, assetId string,
) ([]domain.Account, error) {
	return r.findAccounts(ctx, badgerhold.Where("AssetId").Eq(assetId))
}

func (r accountRepositoryImpl) ListAllAccounts(
	ctx context.Context,
) ([]domain.Account, error) {
	return r.findAccounts(ctx, nil)
}

func (r accountRepositoryImpl) AddTransaction(
	ctx context.Context, accountTx *domain.AccountTransaction,
) error {
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		return r.store.TxInsert(tx, accountTx.Id, accountTx)
	}
	return r.store.Insert(accountTx.Id, accountTx)
}

func (r accountRepositoryImpl) GetTransaction(
	ctx context.Context, txId string,
) (*domain.AccountTransaction, error) {
	var accountTx domain.AccountTransaction
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxGet(tx, txId, &accountTx)
	} else {
		err = r.store.Get(txId, &accountTx)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &accountTx, nil
}

func (r accountRepositoryImpl) ListTransactionsForAccount(
	ctx context.Context, accountId string,
) ([]domain.AccountTransaction, error) {
	var txs []domain.AccountTransaction
	var err error
	query := badgerhold.Where("AccountId").Eq(accountId)
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxFind(tx, &txs, query)
	} else {
		err = r.store.Find(&txs, query)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt < txs[j].CreatedAt
	})
	return txs, nil
}

func (r accountRepositoryImpl) findAccounts(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Account, error) {
	var accounts []domain.Account
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxFind(tx, &accounts, query)
	} else {
		err = r.store.Find(&accounts, query)
	}
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
