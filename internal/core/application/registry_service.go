package application

import (
	"bytes"
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
)

// RegistryService manages the typed asset catalog, one per network, with
// per-network uniqueness on symbol, name and external id.
type RegistryService interface {
	CreateNetwork(ctx context.Context, name string) (*domain.AssetNetwork, error)
	GetNetworkByName(ctx context.Context, name string) (*domain.AssetNetwork, error)
	ListNetworks(ctx context.Context) ([]domain.AssetNetwork, error)
	CreateAsset(
		ctx context.Context,
		networkId, name, symbol string,
		supply decimal.Decimal, class domain.AssetClass,
	) (*domain.Asset, error)
	GetAssetBySymbol(ctx context.Context, networkId, symbol string) (*domain.Asset, error)
	GetAssetByName(ctx context.Context, networkId, name string) (*domain.Asset, error)
	// GetAssetByExternalId returns the network's asset anchored to the
	// given contract id.
	GetAssetByExternalId(ctx context.Context, networkId string, externalId []byte) (*domain.Asset, error)
	// GetOrCreateAssetByName returns the network's asset with the given
	// name, creating a token-class asset when missing. The flag tells
	// whether a new asset was created.
	GetOrCreateAssetByName(
		ctx context.Context,
		networkId, name, symbol string,
		supply decimal.Decimal, class domain.AssetClass,
	) (*domain.Asset, bool, error)
	ListAssets(ctx context.Context, networkId string) ([]domain.Asset, error)
	// SetAssetState moves an asset between visibility states, including the
	// frozen gate blocking further deposits.
	SetAssetState(ctx context.Context, assetId string, state domain.AssetState) error
	// ArchiveAsset removes the asset from public listings.
	ArchiveAsset(ctx context.Context, assetId string) error
}

type registryService struct {
	repoManager ports.RepoManager
}

// NewRegistryService returns a RegistryService backed by the given
// repositories.
func NewRegistryService(repoManager ports.RepoManager) RegistryService {
	return &registryService{repoManager: repoManager}
}

func (s *registryService) CreateNetwork(
	ctx context.Context, name string,
) (*domain.AssetNetwork, error) {
	network, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			network := domain.NewAssetNetwork(name)
			if err := s.repoManager.AssetRepository().AddNetwork(ctx, network); err != nil {
				return nil, err
			}
			return network, nil
		},
	)
	if err != nil {
		return nil, err
	}

	log.Infof("created network %s", name)
	return network.(*domain.AssetNetwork), nil
}

func (s *registryService) GetNetworkByName(
	ctx context.Context, name string,
) (*domain.AssetNetwork, error) {
	network, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.AssetRepository().GetNetworkByName(ctx, name)
		},
	)
	if err != nil {
		return nil, err
	}
	return network.(*domain.AssetNetwork), nil
}

func (s *registryService) ListNetworks(
	ctx context.Context,
) ([]domain.AssetNetwork, error) {
	networks, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.AssetRepository().ListNetworks(ctx)
		},
	)
	if err != nil {
		return nil, err
	}
	return networks.([]domain.AssetNetwork), nil
}

func (s *registryService) CreateAsset(
	ctx context.Context,
	networkId, name, symbol string,
	supply decimal.Decimal, class domain.AssetClass,
) (*domain.Asset, error) {
	asset, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.createAsset(ctx, networkId, name, symbol, supply, class, nil)
		},
	)
	if err != nil {
		return nil, err
	}
	return asset.(*domain.Asset), nil
}

// createAsset must run inside a storage transaction.
func (s *registryService) createAsset(
	ctx context.Context,
	networkId, name, symbol string,
	supply decimal.Decimal, class domain.AssetClass,
	externalId []byte,
) (*domain.Asset, error) {
	assetRepo := s.repoManager.AssetRepository()

	if _, err := assetRepo.GetNetwork(ctx, networkId); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueAsset(ctx, networkId, name, symbol, externalId); err != nil {
		return nil, err
	}

	asset := domain.NewAsset(networkId, name, symbol, supply, class)
	asset.ExternalId = externalId
	if err := assetRepo.AddAsset(ctx, asset); err != nil {
		return nil, err
	}

	log.Infof("created asset %s (%s) in network %s", name, symbol, networkId)
	return asset, nil
}

// ensureUniqueAsset must run inside a storage transaction.
func (s *registryService) ensureUniqueAsset(
	ctx context.Context, networkId, name, symbol string, externalId []byte,
) error {
	assetRepo := s.repoManager.AssetRepository()

	assets, err := assetRepo.ListAssetsForNetwork(ctx, networkId)
	if err != nil {
		return err
	}
	for _, a := range assets {
		if symbol != "" && a.Symbol == symbol {
			return domain.ErrAssetAlreadyExists
		}
		if name != "" && a.Name == name {
			return domain.ErrAssetAlreadyExists
		}
		if len(externalId) > 0 && bytes.Equal(a.ExternalId, externalId) {
			return domain.ErrAssetAlreadyExists
		}
	}
	return nil
}

func (s *registryService) GetAssetBySymbol(
	ctx context.Context, networkId, symbol string,
) (*domain.Asset, error) {
	asset, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.AssetRepository().GetAssetBySymbol(ctx, networkId, symbol)
		},
	)
	if err != nil {
		return nil, err
	}
	return asset.(*domain.Asset), nil
}

func (s *registryService) GetAssetByName(
	ctx context.Context, networkId, name string,
) (*domain.Asset, error) {
	asset, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.AssetRepository().GetAssetByName(ctx, networkId, name)
		},
	)
	if err != nil {
		return nil, err
	}
	return asset.(*domain.Asset), nil
}

func (s *registryService) GetAssetByExternalId(
	ctx context.Context, networkId string, externalId []byte,
) (*domain.Asset, error) {
	asset, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.AssetRepository().
				GetAssetByExternalId(ctx, networkId, externalId)
		},
	)
	if err != nil {
		return nil, err
	}
	return asset.(*domain.Asset), nil
}

func (s *registryService) GetOrCreateAssetByName(
	ctx context.Context,
	networkId, name, symbol string,
	supply decimal.Decimal, class domain.AssetClass,
) (*domain.Asset, bool, error) {
	type result struct {
		asset   *domain.Asset
		created bool
	}

	res, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			asset, err := s.repoManager.AssetRepository().
				GetAssetByName(ctx, networkId, name)
			if err == nil {
				return result{asset, false}, nil
			}
			if err != domain.ErrAssetNotFound {
				return nil, err
			}

			if class == "" {
				class = domain.AssetClassToken
			}
			asset, err = s.createAsset(ctx, networkId, name, symbol, supply, class, nil)
			if err != nil {
				return nil, err
			}
			return result{asset, true}, nil
		},
	)
	if err != nil {
		return nil, false, err
	}

	r := res.(result)
	return r.asset, r.created, nil
}

func (s *registryService) ListAssets(
	ctx context.Context, networkId string,
) ([]domain.Asset, error) {
	assets, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.AssetRepository().ListAssetsForNetwork(ctx, networkId)
		},
	)
	if err != nil {
		return nil, err
	}
	return assets.([]domain.Asset), nil
}

func (s *registryService) SetAssetState(
	ctx context.Context, assetId string, state domain.AssetState,
) error {
	if _, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return nil, s.repoManager.AssetRepository().UpdateAsset(
				ctx, assetId,
				func(a *domain.Asset) (*domain.Asset, error) {
					a.State = state
					a.UpdatedAt = time.Now().Unix()
					return a, nil
				},
			)
		},
	); err != nil {
		return err
	}

	log.Infof("asset %s moved to state %s", assetId, state)
	return nil
}

func (s *registryService) ArchiveAsset(ctx context.Context, assetId string) error {
	_, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return nil, s.repoManager.AssetRepository().UpdateAsset(
				ctx, assetId,
				func(a *domain.Asset) (*domain.Asset, error) {
					a.Archive(time.Now().Unix())
					return a, nil
				},
			)
		},
	)
	return err
}
