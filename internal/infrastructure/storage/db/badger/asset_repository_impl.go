package dbbadger

import (
	"bytes"
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/walletd-network/walletd/internal/core/domain"
)

type assetRepositoryImpl struct {
	store *badgerhold.Store
}

func newAssetRepositoryImpl(store *badgerhold.Store) domain.AssetRepository {
	return assetRepositoryImpl{store}
}

func (r assetRepositoryImpl) AddNetwork(
	ctx context.Context, network *domain.AssetNetwork,
) error {
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxInsert(tx, network.Id, network)
	} else {
		err = r.store.Insert(network.Id, network)
	}
	return err
}

func (r assetRepositoryImpl) GetNetwork(
	ctx context.Context, networkId string,
) (*domain.AssetNetwork, error) {
	var network domain.AssetNetwork
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxGet(tx, networkId, &network)
	} else {
		err = r.store.Get(networkId, &network)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrNetworkNotFound
		}
		return nil, err
	}
	return &network, nil
}

func (r assetRepositoryImpl) GetNetworkByName(
	ctx context.Context, name string,
) (*domain.AssetNetwork, error) {
	networks, err := r.findNetworks(ctx, badgerhold.Where("Name").Eq(name))
	if err != nil {
		return nil, err
	}
	if len(networks) == 0 {
		return nil, domain.ErrNetworkNotFound
	}
	return &networks[0], nil
}

func (r assetRepositoryImpl) ListNetworks(
	ctx context.Context,
) ([]domain.AssetNetwork, error) {
	return r.findNetworks(ctx, nil)
}

func (r assetRepositoryImpl) AddAsset(
	ctx context.Context, asset *domain.Asset,
) error {
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxInsert(tx, asset.Id, asset)
	} else {
		err = r.store.Insert(asset.Id, asset)
	}
	if err == badgerhold.ErrKeyExists {
		return domain.ErrAssetAlreadyExists
	}
	return err
}

func (r assetRepositoryImpl) GetAsset(
	ctx context.Context, assetId string,
) (*domain.Asset, error) {
	var asset domain.Asset
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxGet(tx, assetId, &asset)
	} else {
		err = r.store.Get(assetId, &asset)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrAssetNotFound
		}
		return nil, err
	}
	return &asset, nil
}

func (r assetRepositoryImpl) GetAssetBySymbol(
	ctx context.Context, networkId, symbol string,
) (*domain.Asset, error) {
	return r.getAsset(
		ctx,
		badgerhold.Where("NetworkId").Eq(networkId).And("Symbol").Eq(symbol),
	)
}

func (r assetRepositoryImpl) GetAssetByName(
	ctx context.Context, networkId, name string,
) (*domain.Asset, error) {
	return r.getAsset(
		ctx,
		badgerhold.Where("NetworkId").Eq(networkId).And("Name").Eq(name),
	)
}

func (r assetRepositoryImpl) GetAssetByExternalId(
	ctx context.Context, networkId string, externalId []byte,
) (*domain.Asset, error) {
	assets, err := r.findAssets(ctx, badgerhold.Where("NetworkId").Eq(networkId))
	if err != nil {
		return nil, err
	}
	for i := range assets {
		if bytes.Equal(assets[i].ExternalId, externalId) {
			return &assets[i], nil
		}
	}
	return nil, domain.ErrAssetNotFound
}

func (r assetRepositoryImpl) ListAssetsForNetwork(
	ctx context.Context, networkId string,
) ([]domain.Asset, error) {
	return r.findAssets(ctx, badgerhold.Where("NetworkId").Eq(networkId))
}

func (r assetRepositoryImpl) UpdateAsset(
	ctx context.Context,
	assetId string,
	updateFn func(a *domain.Asset) (*domain.Asset, error),
) error {
	asset, err := r.GetAsset(ctx, assetId)
	if err != nil {
		return err
	}

	updated, err := updateFn(asset)
	if err != nil {
		return err
	}

	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		return r.store.TxUpdate(tx, updated.Id, updated)
	}
	return r.store.Update(updated.Id, updated)
}

func (r assetRepositoryImpl) getAsset(
	ctx context.Context, query *badgerhold.Query,
) (*domain.Asset, error) {
	assets, err := r.findAssets(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, domain.ErrAssetNotFound
	}
	return &assets[0], nil
}

func (r assetRepositoryImpl) findAssets(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Asset, error) {
	var assets []domain.Asset
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxFind(tx, &assets, query)
	} else {
		err = r.store.Find(&assets, query)
	}
	if err != nil {
		return nil, err
	}
	return assets, nil
}

func (r assetRepositoryImpl) findNetworks(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.AssetNetwork, error) {
	var networks []domain.AssetNetwork
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxFind(tx, &networks, query)
	} else {
		err = r.store.Find(&networks, query)
	}
	if err != nil {
		return nil, err
	}
	return networks, nil
}
