package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
)

func TestRunWaitingAppliesResult(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.fundAddress(t, 100)

	op, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(60), externalAddress(0x11), "payout", 3,
	)
	require.NoError(t, err)

	txid := externalTxId(0xbb)
	queue := NewOperationQueue(f.repoManager, ports.HandlerTable{
		domain.OperationKindWithdraw: func(
			ctx context.Context, op domain.Operation,
		) (*ports.ExecutionResult, error) {
			return &ports.ExecutionResult{TxId: txid, Broadcasted: true}, nil
		},
	})

	succeeded, failed, err := queue.RunWaiting(ctx, f.network.Id)
	require.NoError(t, err)
	require.Equal(t, 1, succeeded)
	require.Zero(t, failed)

	op = f.getOperation(t, op.Id)
	require.Equal(t, domain.OperationStateBroadcasted, op.State)
	require.Equal(t, txid, op.TxId)
	require.Equal(t, 1, op.Attempts)
	require.True(t, op.PerformedAt > 0)

	// Nothing left waiting, a second run is a no-op.
	succeeded, failed, err = queue.RunWaiting(ctx, f.network.Id)
	require.NoError(t, err)
	require.Zero(t, succeeded)
	require.Zero(t, failed)
}

func TestRunWaitingMissingHandler(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	op, err := f.wallet.NewAddress(ctx, f.network.Id)
	require.NoError(t, err)

	queue := NewOperationQueue(f.repoManager, ports.HandlerTable{})

	succeeded, failed, err := queue.RunWaiting(ctx, f.network.Id)
	require.NoError(t, err)
	require.Zero(t, succeeded)
	require.Equal(t, 1, failed)

	op = f.getOperation(t, op.Id)
	require.True(t, op.IsFailed())
	require.Contains(t, op.FailureReason, "no executor handler")
}

func TestRunWaitingFailureIsolation(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.fundAddress(t, 100)

	bad, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(10), externalAddress(0x11), "payout", 3,
	)
	require.NoError(t, err)
	good, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(20), externalAddress(0x12), "payout", 3,
	)
	require.NoError(t, err)

	queue := NewOperationQueue(f.repoManager, ports.HandlerTable{
		domain.OperationKindWithdraw: func(
			ctx context.Context, op domain.Operation,
		) (*ports.ExecutionResult, error) {
			if op.Id == bad.Id {
				return nil, errors.New("gas estimation failed")
			}
			return &ports.ExecutionResult{TxId: externalTxId(0xcc), Broadcasted: true}, nil
		},
	})

	succeeded, failed, err := queue.RunWaiting(ctx, f.network.Id)
	require.NoError(t, err)
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, failed)

	require.True(t, f.getOperation(t, bad.Id).IsFailed())
	require.Equal(t, "gas estimation failed", f.getOperation(t, bad.Id).FailureReason)
	require.Equal(t, domain.OperationStateBroadcasted, f.getOperation(t, good.Id).State)
}

func TestRunWaitingCompletedResolvesEscrow(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	op, err := f.wallet.Deposit(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(100), externalTxId(0xdd), 0, "incoming", 0,
	)
	require.NoError(t, err)

	queue := NewOperationQueue(f.repoManager, ports.HandlerTable{
		domain.OperationKindDeposit: func(
			ctx context.Context, op domain.Operation,
		) (*ports.ExecutionResult, error) {
			return &ports.ExecutionResult{Completed: true}, nil
		},
	})

	succeeded, _, err := queue.RunWaiting(ctx, f.network.Id)
	require.NoError(t, err)
	require.Equal(t, 1, succeeded)

	op = f.getOperation(t, op.Id)
	require.True(t, op.IsCompleted())

	// The escrow settled into the destination account.
	require.True(t, f.balance(t, op.HoldingAccountId).IsZero())
	require.True(t, f.balance(t, op.AccountId).Equal(decimal.NewFromInt(100)))
}

func TestRunWaitingRecordsCreatedAddress(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	op, err := f.wallet.NewAddress(ctx, f.network.Id)
	require.NoError(t, err)

	assigned := externalAddress(0x66)
	queue := NewOperationQueue(f.repoManager, ports.HandlerTable{
		domain.OperationKindCreateAddress: func(
			ctx context.Context, op domain.Operation,
		) (*ports.ExecutionResult, error) {
			return &ports.ExecutionResult{Address: assigned, Completed: true}, nil
		},
	})

	succeeded, _, err := queue.RunWaiting(ctx, f.network.Id)
	require.NoError(t, err)
	require.Equal(t, 1, succeeded)

	op = f.getOperation(t, op.Id)
	require.True(t, op.IsCompleted())
	require.Equal(t, assigned, op.ExternalAddress)

	address, err := f.wallet.GetAddress(ctx, op.AddressId)
	require.NoError(t, err)
	require.Equal(t, assigned, address.Value)
}

func TestClaimedOperationNotPickedTwice(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.fundAddress(t, 100)

	op, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(10), externalAddress(0x11), "payout", 3,
	)
	require.NoError(t, err)

	// Another worker already claimed the operation.
	_, err = f.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			return nil, f.repoManager.OperationRepository().UpdateOperation(
				ctx, op.Id,
				func(o *domain.Operation) (*domain.Operation, error) {
					if err := o.Claim(1); err != nil {
						return nil, err
					}
					return o, nil
				},
			)
		},
	)
	require.NoError(t, err)

	called := false
	queue := NewOperationQueue(f.repoManager, ports.HandlerTable{
		domain.OperationKindWithdraw: func(
			ctx context.Context, op domain.Operation,
		) (*ports.ExecutionResult, error) {
			called = true
			return nil, nil
		},
	})

	succeeded, failed, err := queue.RunWaiting(ctx, f.network.Id)
	require.NoError(t, err)
	require.Zero(t, succeeded)
	require.Zero(t, failed)
	require.False(t, called)
	require.Equal(t, 1, f.getOperation(t, op.Id).Attempts)
}
