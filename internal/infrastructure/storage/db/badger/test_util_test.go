package dbbadger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
)

var ctx = context.Background()

func newTestRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()

	repoManager, err := NewRepoManager(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)

	return repoManager
}

func newTestNetwork(t *testing.T, repoManager ports.RepoManager) *domain.AssetNetwork {
	t.Helper()

	network := domain.NewAssetNetwork("testnet")
	require.NoError(t, repoManager.AssetRepository().AddNetwork(ctx, network))
	return network
}

func newTestAsset(
	t *testing.T, repoManager ports.RepoManager, networkId, name, symbol string,
) *domain.Asset {
	t.Helper()

	asset := domain.NewAsset(
		networkId, name, symbol, decimal.NewFromInt(1000), domain.AssetClassToken,
	)
	require.NoError(t, repoManager.AssetRepository().AddAsset(ctx, asset))
	return asset
}
