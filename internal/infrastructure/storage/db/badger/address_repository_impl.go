package dbbadger

import (
	"bytes"
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/walletd-network/walletd/internal/core/domain"
)

type addressRepositoryImpl struct {
	store *badgerhold.Store
}

func newAddressRepositoryImpl(store *badgerhold.Store) domain.AddressRepository {
	return addressRepositoryImpl{store}
}

func (r addressRepositoryImpl) AddAddress(
	ctx context.Context, address *domain.Address,
) error {
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		return r.store.TxInsert(tx, address.Id, address)
	}
	return r.store.Insert(address.Id, address)
}

func (r addressRepositoryImpl) GetAddress(
	ctx context.Context, addressId string,
) (*domain.Address, error) {
	var address domain.Address
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxGet(tx, addressId, &address)
	} else {
		err = r.store.Get(addressId, &address)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrAddressNotFound
		}
		return nil, err
	}
	return &address, nil
}

func (r addressRepositoryImpl) GetAddressByValue(
	ctx context.Context, networkId string, value []byte,
) (*domain.Address, error) {
	addresses, err := r.findAddresses(
		ctx, badgerhold.Where("NetworkId").Eq(networkId),
	)
	if err != nil {
		return nil, err
	}
	for i := range addresses {
		if bytes.Equal(addresses[i].Value, value) {
			return &addresses[i], nil
		}
	}
	return nil, domain.ErrAddressNotFound
}

func (r addressRepositoryImpl) ListAddressesForNetwork(
	ctx context.Context, networkId string,
) ([]domain.Address, error) {
	return r.findAddresses(ctx, badgerhold.Where("NetworkId").Eq(networkId))
}

func (r addressRepositoryImpl) UpdateAddress(
	ctx context.Context,
	addressId string,
	updateFn func(a *domain.Address) (*domain.Address, error),
) error {
	address, err := r.GetAddress(ctx, addressId)
	if err != nil {
		return err
	}

	updated, err := updateFn(address)
	if err != nil {
		return err
	}

	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		return r.store.TxUpdate(tx, updated.Id, updated)
	}
	return r.store.Update(updated.Id, updated)
}

func (r addressRepositoryImpl) AddAddressAccount(
	ctx context.Context, account *domain.AddressAccount,
) error {
	// The storage key is derived from the address and asset pair, a second
	// binding for the same pair collides instead of silently duplicating.
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxInsert(tx, account.Key(), account)
	} else {
		err = r.store.Insert(account.Key(), account)
	}
	if err == badgerhold.ErrKeyExists {
		return domain.ErrMultipleAssetAccountsPerAddress
	}
	return err
}

func (r addressRepositoryImpl) GetAddressAccount(
	ctx context.Context, addressId, assetId string,
) (*domain.AddressAccount, error) {
	accounts, err := r.findAddressAccounts(
		ctx,
		badgerhold.Where("AddressId").Eq(addressId).And("AssetId").Eq(assetId),
	)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, domain.ErrAddressAccountNotFound
	}
	return &accounts[0], nil
}

func (r addressRepositoryImpl) ListAccountsForAddress(
	ctx context.Context, addressId string,
) ([]domain.AddressAccount, error) {
	return r.findAddressAccounts(ctx, badgerhold.Where("AddressId").Eq(addressId))
}

func (r addressRepositoryImpl) findAddresses(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Address, error) {
	var addresses []domain.Address
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxFind(tx, &addresses, query)
	} else {
		err = r.store.Find(&addresses, query)
	}
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

func (r addressRepositoryImpl) findAddressAccounts(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.AddressAccount, error) {
	var accounts []domain.AddressAccount
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
