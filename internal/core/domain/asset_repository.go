package domain

import "context"

// AssetRepository is the abstraction for any kind of database intended to
// persist networks and their asset catalogs.
type AssetRepository interface {
	// AddNetwork persists a new network.
	AddNetwork(ctx context.Context, network *AssetNetwork) error
	// GetNetwork returns the network with the given id, or ErrNetworkNotFound.
	GetNetwork(ctx context.Context, networkId string) (*AssetNetwork, error)
	// GetNetworkByName returns the network with the given name, or
	// ErrNetworkNotFound.
	GetNetworkByName(ctx context.Context, name string) (*AssetNetwork, error)
	// ListNetworks returns every known network.
	ListNetworks(ctx context.Context) ([]AssetNetwork, error)

	// AddAsset persists a new asset.
	AddAsset(ctx context.Context, asset *Asset) error
	// GetAsset returns the asset with the given id, or ErrAssetNotFound.
	GetAsset(ctx context.Context, assetId string) (*Asset, error)
	// GetAssetBySymbol returns the network's asset with the given symbol,
	// or ErrAssetNotFound.
	GetAssetBySymbol(ctx context.Context, networkId, symbol string) (*Asset, error)
	// GetAssetByName returns the network's asset with the given name, or
	// ErrAssetNotFound.
	GetAssetByName(ctx context.Context, networkId, name string) (*Asset, error)
	// GetAssetByExternalId returns the network's asset anchored to the given
	// contract identity, or ErrAssetNotFound.
	GetAssetByExternalId(ctx context.Context, networkId string, externalId []byte) (*Asset, error)
	// ListAssetsForNetwork returns all assets of a network.
	ListAssetsForNetwork(ctx context.Context, networkId string) ([]Asset, error)
	// UpdateAsset commits multiple changes to the same asset in a
	// transactional way.
	UpdateAsset(
		ctx context.Context,
		assetId string,
		updateFn func(a *Asset) (*Asset, error),
	) error
}
