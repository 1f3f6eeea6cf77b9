package dbbadger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/walletd-network/walletd/internal/core/domain"
)

func TestNetworkRoundTrip(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.AssetRepository()

	network := newTestNetwork(t, repoManager)

	got, err := repo.GetNetwork(ctx, network.Id)
	require.NoError(t, err)
	require.Equal(t, network.Name, got.Name)

	byName, err := repo.GetNetworkByName(ctx, "testnet")
	require.NoError(t, err)
	require.Equal(t, network.Id, byName.Id)

	networks, err := repo.ListNetworks(ctx)
	require.NoError(t, err)
	require.Len(t, networks, 1)
}

func TestNetworkNotFound(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.AssetRepository()

	_, err := repo.GetNetwork(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNetworkNotFound)

	_, err = repo.GetNetworkByName(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNetworkNotFound)
}

func TestAssetRoundTrip(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.AssetRepository()

	network := newTestNetwork(t, repoManager)
	asset := newTestAsset(t, repoManager, network.Id, "Testcoin", "TST")

	got, err := repo.GetAsset(ctx, asset.Id)
	require.NoError(t, err)
	require.Equal(t, "Testcoin", got.Name)
	require.True(t, asset.Supply.Equal(got.Supply))

	bySymbol, err := repo.GetAssetBySymbol(ctx, network.Id, "TST")
	require.NoError(t, err)
	require.Equal(t, asset.Id, bySymbol.Id)

	byName, err := repo.GetAssetByName(ctx, network.Id, "Testcoin")
	require.NoError(t, err)
	require.Equal(t, asset.Id, byName.Id)

	_, err = repo.GetAsset(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrAssetNotFound)
}

func TestAddAssetDuplicateId(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.AssetRepository()

	network := newTestNetwork(t, repoManager)
	asset := newTestAsset(t, repoManager, network.Id, "Testcoin", "TST")

	err := repo.AddAsset(ctx, asset)
	require.ErrorIs(t, err, domain.ErrAssetAlreadyExists)
}

func TestGetAssetByExternalId(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.AssetRepository()

	network := newTestNetwork(t, repoManager)
	asset := newTestAsset(t, repoManager, network.Id, "Testcoin", "TST")
	other := newTestAsset(t, repoManager, network.Id, "Othercoin", "OTH")

	contract := bytes.Repeat([]byte{0xaa}, domain.AddressValueSize)
	err := repo.UpdateAsset(ctx, asset.Id, func(a *domain.Asset) (*domain.Asset, error) {
		a.ExternalId = contract
		return a, nil
	})
	require.NoError(t, err)

	got, err := repo.GetAssetByExternalId(ctx, network.Id, contract)
	require.NoError(t, err)
	require.Equal(t, asset.Id, got.Id)
	require.NotEqual(t, other.Id, got.Id)

	_, err = repo.GetAssetByExternalId(
		ctx, network.Id, bytes.Repeat([]byte{0xbb}, domain.AddressValueSize),
	)
	require.ErrorIs(t, err, domain.ErrAssetNotFound)
}

func TestListAssetsForNetwork(t *testing.T) {
	repoManager := newTestRepoManager(t)
	repo := repoManager.AssetRepository()

	network := newTestNetwork(t, repoManager)
	otherNetwork := domain.NewAssetNetwork("othernet")
	require.NoError(t, repo.AddNetwork(ctx, otherNetwork))

	newTestAsset(t, repoManager, network.Id, "Testcoin", "TST")
	newTestAsset(t, repoManager, network.Id, "Othercoin", "OTH")
	newTestAsset(t, repoManager, otherNetwork.Id, "Farcoin", "FAR")

	assets, err := repo.ListAssetsForNetwork(ctx, network.Id)
	require.NoError(t, err)
	require.Len(t, assets, 2)
}
