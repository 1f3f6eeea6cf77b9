package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
	dbbadger "github.com/walletd-network/walletd/internal/infrastructure/storage/db/badger"
)

func newTestRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()

	repoManager, err := dbbadger.NewRepoManager(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	return repoManager
}

type testFixture struct {
	repoManager ports.RepoManager
	registry    RegistryService
	ledger      LedgerService
	wallet      WalletService

	network *domain.AssetNetwork
	asset   *domain.Asset
	address *domain.Address
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	repoManager := newTestRepoManager(t)
	registry := NewRegistryService(repoManager)
	ctx := context.Background()

	network, err := registry.CreateNetwork(ctx, "testnet")
	require.NoError(t, err)

	asset, err := registry.CreateAsset(
		ctx, network.Id, "Testcoin", "TST",
		decimal.NewFromInt(10000), domain.AssetClassToken,
	)
	require.NoError(t, err)

	address := domain.NewAddress(network.Id)
	_, err = repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			return nil, repoManager.AddressRepository().AddAddress(ctx, address)
		},
	)
	require.NoError(t, err)

	return &testFixture{
		repoManager: repoManager,
		registry:    registry,
		ledger:      NewLedgerService(repoManager),
		wallet:      NewWalletService(repoManager),
		network:     network,
		asset:       asset,
		address:     address,
	}
}

// fundAddress credits the address's asset account directly, bypassing the
// deposit pipeline, and returns the backing ledger account id.
func (f *testFixture) fundAddress(t *testing.T, amount int64) string {
	t.Helper()

	ctx := context.Background()
	svc := f.wallet.(*walletService)

	res, err := f.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			account, err := svc.getOrCreateAddressAccount(ctx, f.address, f.asset)
			if err != nil {
				return nil, err
			}
			if amount > 0 {
				if _, err := svc.pipeline.ledger.withdrawOrDeposit(
					ctx, account.AccountId, decimal.NewFromInt(amount), "funding", false,
				); err != nil {
					return nil, err
				}
			}
			return account.AccountId, nil
		},
	)
	require.NoError(t, err)
	return res.(string)
}

func (f *testFixture) balance(t *testing.T, accountId string) decimal.Decimal {
	t.Helper()

	balance, err := f.ledger.GetBalance(context.Background(), accountId)
	require.NoError(t, err)
	return balance
}

func (f *testFixture) getOperation(t *testing.T, opId string) *domain.Operation {
	t.Helper()

	op, err := f.wallet.GetOperation(context.Background(), opId)
	require.NoError(t, err)
	return op
}
