package application

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/walletd-network/walletd/internal/core/domain"
)

func externalAddress(b byte) []byte {
	return bytes.Repeat([]byte{b}, domain.AddressValueSize)
}

func externalTxId(b byte) []byte {
	return bytes.Repeat([]byte{b}, domain.TxIdSize)
}

func TestNewAddress(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	op, err := f.wallet.NewAddress(ctx, f.network.Id)
	require.NoError(t, err)
	require.Equal(t, domain.OperationKindCreateAddress, op.Kind)
	require.Equal(t, domain.OperationStateWaiting, op.State)

	address, err := f.wallet.GetAddress(ctx, op.AddressId)
	require.NoError(t, err)
	require.False(t, address.IsAssigned())

	// An address gets exactly one creation operation, ever.
	_, err = f.wallet.RequestAddressCreation(ctx, op.AddressId)
	require.Equal(t, domain.ErrMultipleCreationOperations, err)
}

func TestNewAddressUnknownNetwork(t *testing.T) {
	f := newTestFixture(t)

	_, err := f.wallet.NewAddress(context.Background(), "nope")
	require.Equal(t, domain.ErrNetworkNotFound, err)
}

func TestDeposit(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	txid := externalTxId(0xaa)

	op, err := f.wallet.Deposit(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(100), txid, 0, "incoming", 3,
	)
	require.NoError(t, err)
	require.Equal(t, domain.OperationKindDeposit, op.Kind)
	require.True(t, op.TracksConfirmations)

	// Funds sit in escrow, the destination account stays untouched.
	require.True(t, f.balance(t, op.HoldingAccountId).Equal(decimal.NewFromInt(100)))
	require.True(t, f.balance(t, op.AccountId).IsZero())

	// The same transaction and log index maps back to the same operation.
	again, err := f.wallet.Deposit(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(100), txid, 0, "incoming", 3,
	)
	require.NoError(t, err)
	require.Equal(t, op.Id, again.Id)
	require.True(t, f.balance(t, op.HoldingAccountId).Equal(decimal.NewFromInt(100)))

	// A different log index of the same transaction is a new operation.
	other, err := f.wallet.Deposit(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(5), txid, 1, "incoming", 3,
	)
	require.NoError(t, err)
	require.NotEqual(t, op.Id, other.Id)
}

func TestDepositGuards(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	_, err := f.wallet.Deposit(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(-1), externalTxId(1), 0, "incoming", 3,
	)
	require.Equal(t, domain.ErrAmountNotPositive, err)

	_, err = f.wallet.Deposit(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(1), []byte{0x01}, 0, "incoming", 3,
	)
	require.Error(t, err)

	require.NoError(t, f.registry.SetAssetState(ctx, f.asset.Id, domain.AssetStateFrozen))
	_, err = f.wallet.Deposit(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(1), externalTxId(2), 0, "incoming", 3,
	)
	require.Equal(t, domain.ErrAssetFrozen, err)
}

func TestDepositWrongNetwork(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	other, err := f.registry.CreateNetwork(ctx, "othernet")
	require.NoError(t, err)
	foreign, err := f.registry.CreateAsset(
		ctx, other.Id, "Foreign", "FRN", decimal.NewFromInt(1), domain.AssetClassToken,
	)
	require.NoError(t, err)

	_, err = f.wallet.Deposit(
		ctx, f.address.Id, foreign.Id,
		decimal.NewFromInt(1), externalTxId(3), 0, "incoming", 3,
	)
	require.Equal(t, domain.ErrWrongNetwork, err)
}

func TestWithdraw(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	accountId := f.fundAddress(t, 100)

	op, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(60), externalAddress(0x11), "payout", 3,
	)
	require.NoError(t, err)
	require.Equal(t, domain.OperationKindWithdraw, op.Kind)

	// The amount moved into escrow in the same atomic step.
	require.True(t, f.balance(t, accountId).Equal(decimal.NewFromInt(40)))
	require.True(t, f.balance(t, op.HoldingAccountId).Equal(decimal.NewFromInt(60)))
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	accountId := f.fundAddress(t, 10)

	_, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(60), externalAddress(0x11), "payout", 3,
	)
	require.Equal(t, domain.ErrAccountOverdrawn, err)

	// Nothing persisted, neither the operation nor its holding account.
	require.True(t, f.balance(t, accountId).Equal(decimal.NewFromInt(10)))
	ops, err := f.wallet.ListOperations(ctx, f.network.Id)
	require.NoError(t, err)
	require.Empty(t, ops)
}

func TestWithdrawFrozenAsset(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.fundAddress(t, 100)

	require.NoError(t, f.registry.SetAssetState(ctx, f.asset.Id, domain.AssetStateFrozen))

	_, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(10), externalAddress(0x11), "payout", 3,
	)
	require.Equal(t, domain.ErrAssetFrozen, err)
}

func TestCancelWithdrawRestoresBalance(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	accountId := f.fundAddress(t, 100)

	op, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(60), externalAddress(0x11), "payout", 3,
	)
	require.NoError(t, err)
	require.True(t, f.balance(t, accountId).Equal(decimal.NewFromInt(40)))

	cancelled, err := f.wallet.CancelOperation(ctx, op.Id, "user changed their mind")
	require.NoError(t, err)
	require.Equal(t, domain.OperationStateCancelled, cancelled.State)
	require.Equal(t, "user changed their mind", cancelled.FailureReason)

	// The escrow flowed back where it came from.
	require.True(t, f.balance(t, accountId).Equal(decimal.NewFromInt(100)))
	require.True(t, f.balance(t, op.HoldingAccountId).IsZero())
}

func TestCancelBroadcastedOperationRefused(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.fundAddress(t, 100)

	op, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(60), externalAddress(0x11), "payout", 3,
	)
	require.NoError(t, err)

	_, err = f.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			return nil, f.repoManager.OperationRepository().UpdateOperation(
				ctx, op.Id,
				func(o *domain.Operation) (*domain.Operation, error) {
					if err := o.Claim(0); err != nil {
						return nil, err
					}
					if err := o.MarkBroadcasted(); err != nil {
						return nil, err
					}
					return o, nil
				},
			)
		},
	)
	require.NoError(t, err)

	_, err = f.wallet.CancelOperation(ctx, op.Id, "too late")
	require.Equal(t, domain.ErrOperationNotCancellable, err)
	require.True(t, f.balance(t, op.HoldingAccountId).Equal(decimal.NewFromInt(60)))
}

func TestCreateToken(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	op, err := f.wallet.CreateToken(ctx, f.address.Id, f.asset.Id, 3)
	require.NoError(t, err)
	require.Equal(t, domain.OperationKindCreateToken, op.Kind)
	require.Equal(t, f.asset.Id, op.AssetId)

	// The whole supply is escrowed until the contract confirms.
	require.True(t, f.balance(t, op.HoldingAccountId).Equal(f.asset.Supply))

	_, err = f.wallet.CreateToken(ctx, f.address.Id, f.asset.Id, 3)
	require.Equal(t, domain.ErrTokenAlreadyCreated, err)
}

func TestImportToken(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	contract := externalAddress(0x33)

	op, err := f.wallet.ImportToken(ctx, f.network.Id, contract)
	require.NoError(t, err)
	require.Equal(t, domain.OperationKindImportToken, op.Kind)
	require.Equal(t, contract, op.ExternalAddress)

	asset, err := f.wallet.CompleteTokenImport(ctx, op.Id, TokenImportData{
		Name:   "Imported",
		Symbol: "IMP",
		Supply: decimal.NewFromInt(500),
		Balances: []ImportedBalance{
			{AddressId: f.address.Id, Amount: decimal.NewFromInt(120)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, contract, asset.ExternalId)

	op = f.getOperation(t, op.Id)
	require.True(t, op.IsCompleted())

	account, err := f.repoManager.RunTransaction(
		ctx, true,
		func(ctx context.Context) (interface{}, error) {
			return f.repoManager.AddressRepository().
				GetAddressAccount(ctx, f.address.Id, asset.Id)
		},
	)
	require.NoError(t, err)
	accountId := account.(*domain.AddressAccount).AccountId
	require.True(t, f.balance(t, accountId).Equal(decimal.NewFromInt(120)))
}

func TestCompleteTokenImportPartialFailure(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	op, err := f.wallet.ImportToken(ctx, f.network.Id, externalAddress(0x44))
	require.NoError(t, err)

	_, err = f.wallet.CompleteTokenImport(ctx, op.Id, TokenImportData{
		Name:   "Broken",
		Symbol: "BRK",
		Supply: decimal.NewFromInt(500),
		Balances: []ImportedBalance{
			{AddressId: f.address.Id, Amount: decimal.NewFromInt(10)},
			{AddressId: "no-such-address", Amount: decimal.NewFromInt(20)},
		},
	})
	require.Error(t, err)

	// The operation failed but everything imported before the bad address
	// stays in place.
	op = f.getOperation(t, op.Id)
	require.True(t, op.IsFailed())

	asset, err := f.registry.GetAssetBySymbol(ctx, f.network.Id, "BRK")
	require.NoError(t, err)

	total, err := f.ledger.AssetLiabilities(ctx, asset.Id)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(10)))
}

func TestImportTokenUniqueness(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	op, err := f.wallet.ImportToken(ctx, f.network.Id, externalAddress(0x55))
	require.NoError(t, err)
	_, err = f.wallet.CompleteTokenImport(ctx, op.Id, TokenImportData{
		Name: "Testcoin", Symbol: "TST", Supply: decimal.NewFromInt(1),
	})
	// The fixture already registered an asset named Testcoin.
	require.Equal(t, domain.ErrAssetAlreadyExists, err)

	op = f.getOperation(t, op.Id)
	require.True(t, op.IsFailed())
}

func TestGetAddressAccount(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	_, err := f.wallet.GetAddressAccount(ctx, f.address.Id, f.asset.Id)
	require.Equal(t, domain.ErrAddressAccountNotFound, err)

	accountId := f.fundAddress(t, 75)

	account, err := f.wallet.GetAddressAccount(ctx, f.address.Id, f.asset.Id)
	require.NoError(t, err)
	require.Equal(t, accountId, account.Id)
	require.True(t, account.Balance.Equal(decimal.NewFromInt(75)))
}
