package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/walletd-network/walletd/internal/core/domain"
)

type networkStatusRepositoryImpl struct {
	store *badgerhold.Store
}

func newNetworkStatusRepositoryImpl(store *badgerhold.Store) domain.NetworkStatusRepository {
	return networkStatusRepositoryImpl{store}
}

func (r networkStatusRepositoryImpl) GetStatus(
	ctx context.Context, networkId string,
) (*domain.NetworkStatus, error) {
	var status domain.NetworkStatus
	var err error
	if ctx.Value(statusTxKey) != nil {
		tx := ctx.Value(statusTxKey).(*badger.Txn)
		err = r.store.TxGet(tx, networkId, &status)
	} else {
		err = r.store.Get(networkId, &status)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

func (r networkStatusRepositoryImpl) UpsertStatus(
	ctx context.Context, status domain.NetworkStatus,
) error {
	if ctx.Value(statusTxKey) != nil {
		tx := ctx.Value(statusTxKey).(*badger.Txn)
		return r.store.TxUpsert(tx, status.NetworkId, &status)
	}
	return r.store.Upsert(status.NetworkId, &status)
}
