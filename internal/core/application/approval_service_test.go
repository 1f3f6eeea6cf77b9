package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/walletd-network/walletd/internal/core/domain"
)

func newGatedWithdraw(t *testing.T, f *testFixture, deadline int64) *domain.Operation {
	t.Helper()

	ctx := context.Background()
	op, err := f.wallet.Withdraw(
		ctx, f.address.Id, f.asset.Id,
		decimal.NewFromInt(60), externalAddress(0x11), "payout", 3,
	)
	require.NoError(t, err)

	approval := NewApprovalService(f.repoManager)
	gated, err := approval.RequireApproval(ctx, op.Id, deadline)
	require.NoError(t, err)
	require.Equal(t, domain.OperationStateConfirmationRequired, gated.State)
	return gated
}

func TestRequireApprovalWithdrawOnly(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	approval := NewApprovalService(f.repoManager)

	op, err := f.wallet.NewAddress(ctx, f.network.Id)
	require.NoError(t, err)

	_, err = approval.RequireApproval(ctx, op.Id, time.Now().Unix()+3600)
	require.Equal(t, domain.ErrApprovalNotRequired, err)
}

func TestApprove(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.fundAddress(t, 100)
	approval := NewApprovalService(f.repoManager)

	op := newGatedWithdraw(t, f, time.Now().Unix()+3600)

	approved, err := approval.Approve(ctx, op.Id)
	require.NoError(t, err)
	require.Equal(t, domain.OperationStateWaiting, approved.State)
	require.Zero(t, approved.ApprovalDeadline)

	// The escrow stayed locked the whole time.
	require.True(t, f.balance(t, op.HoldingAccountId).Equal(decimal.NewFromInt(60)))
}

func TestDenyRestoresBalance(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	accountId := f.fundAddress(t, 100)
	approval := NewApprovalService(f.repoManager)

	op := newGatedWithdraw(t, f, time.Now().Unix()+3600)
	require.True(t, f.balance(t, accountId).Equal(decimal.NewFromInt(40)))

	denied, err := approval.Deny(ctx, op.Id)
	require.NoError(t, err)
	require.Equal(t, domain.OperationStateCancelled, denied.State)
	require.Equal(t, "manual confirmation cancelled", denied.FailureReason)

	require.True(t, f.balance(t, accountId).Equal(decimal.NewFromInt(100)))
	require.True(t, f.balance(t, op.HoldingAccountId).IsZero())
}

func TestSweepExpired(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	accountId := f.fundAddress(t, 200)
	approval := NewApprovalService(f.repoManager)

	now := time.Now().Unix()
	expired := newGatedWithdraw(t, f, now-10)
	fresh := newGatedWithdraw(t, f, now+3600)

	cancelled, err := approval.SweepExpired(ctx, f.network.Id, now)
	require.NoError(t, err)
	require.Equal(t, 1, cancelled)

	op := f.getOperation(t, expired.Id)
	require.Equal(t, domain.OperationStateCancelled, op.State)
	require.Equal(t, "manual confirmation timed out", op.FailureReason)

	require.Equal(
		t, domain.OperationStateConfirmationRequired,
		f.getOperation(t, fresh.Id).State,
	)

	// Only the timed out escrow flowed back, the fresh one stays locked.
	require.True(t, f.balance(t, accountId).Equal(decimal.NewFromInt(140)))
}
