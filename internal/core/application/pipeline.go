package application

import (
	"context"
	"fmt"

	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
)

// operationCapability carries the kind-specific settlement and reversal
// behavior of one operation kind. Dispatch goes through this closed table,
// shared state-machine logic stays on domain.Operation.
type operationCapability struct {
	// resolve finalizes the operation once it requires no further network
	// confirmation. For deposit-like kinds it settles the escrowed funds
	// into the destination account first.
	resolve func(ctx context.Context, op *domain.Operation) error
	// reverse returns escrowed funds to their origin. Only kinds that are
	// safely reversible pre-broadcast define it meaningfully, invoking it on
	// any other kind is a caller bug and surfaces as an error.
	reverse func(ctx context.Context, op *domain.Operation) error
}

// operationPipeline holds the ledger-coupled halves of the operation state
// machine. All of its methods must run inside a storage transaction.
type operationPipeline struct {
	repoManager  ports.RepoManager
	ledger       *ledgerService
	capabilities map[domain.OperationKind]operationCapability
}

func newOperationPipeline(repoManager ports.RepoManager) *operationPipeline {
	p := &operationPipeline{
		repoManager: repoManager,
		ledger:      &ledgerService{repoManager: repoManager},
	}
	p.capabilities = map[domain.OperationKind]operationCapability{
		domain.OperationKindCreateAddress: {
			resolve: p.resolveBare,
			reverse: p.reverseNoop,
		},
		domain.OperationKindDeposit: {
			resolve: p.resolveSettling,
			reverse: p.reverseUnsupported,
		},
		domain.OperationKindWithdraw: {
			resolve: p.resolveBare,
			reverse: p.reverseEscrow,
		},
		domain.OperationKindCreateToken: {
			resolve: p.resolveSettling,
			reverse: p.reverseUnsupported,
		},
		domain.OperationKindImportToken: {
			resolve: p.resolveBare,
			reverse: p.reverseUnsupported,
		},
	}
	return p
}

// resolve finalizes the operation through its capability. No-op if the
// operation already completed.
func (p *operationPipeline) resolve(
	ctx context.Context, op *domain.Operation,
) error {
	if op.CompletedAt > 0 {
		return nil
	}
	return p.capabilities[op.Kind].resolve(ctx, op)
}

// cancel terminates a pre-broadcast operation and runs its escrow reversal
// in the same storage transaction.
func (p *operationPipeline) cancel(
	ctx context.Context, op *domain.Operation, reason string,
) error {
	if err := op.MarkCancelled(reason); err != nil {
		return err
	}
	return p.capabilities[op.Kind].reverse(ctx, op)
}

// resolveBare completes an operation that settles nothing internally.
func (p *operationPipeline) resolveBare(
	ctx context.Context, op *domain.Operation,
) error {
	return op.MarkComplete()
}

// resolveSettling drains the holding account into the destination address
// account, then completes. Used by deposits and token creations, where the
// real account is only credited once the required block depth is reached.
func (p *operationPipeline) resolveSettling(
	ctx context.Context, op *domain.Operation,
) error {
	incoming, err := p.primaryTransaction(ctx, op)
	if err != nil {
		return err
	}

	if _, _, err := p.ledger.transferFunds(
		ctx, incoming.Amount, op.HoldingAccountId, op.AccountId, incoming.Note,
	); err != nil {
		return err
	}
	return op.MarkComplete()
}

// reverseEscrow restores the escrowed funds to the account the reserve
// transfer debited. Valid only while the escrow was funded by a transfer
// pair, which is exactly the pre-broadcast withdraw case.
func (p *operationPipeline) reverseEscrow(
	ctx context.Context, op *domain.Operation,
) error {
	escrowTx, err := p.primaryTransaction(ctx, op)
	if err != nil {
		return err
	}
	if !escrowTx.IsTransferHalf() {
		return domain.ErrOperationNotReversible
	}

	counterparty, err := p.repoManager.AccountRepository().
		GetTransaction(ctx, escrowTx.CounterpartyId)
	if err != nil {
		return err
	}

	note := fmt.Sprintf("transaction %s reversed", escrowTx.Id)
	_, _, err = p.ledger.transferFunds(
		ctx, escrowTx.Amount, op.HoldingAccountId, counterparty.AccountId, note,
	)
	return err
}

func (p *operationPipeline) reverseNoop(
	ctx context.Context, op *domain.Operation,
) error {
	return nil
}

func (p *operationPipeline) reverseUnsupported(
	ctx context.Context, op *domain.Operation,
) error {
	return domain.ErrOperationNotReversible
}

// primaryTransaction returns the transaction that moved value between the
// user account and the operation's holding account.
func (p *operationPipeline) primaryTransaction(
	ctx context.Context, op *domain.Operation,
) (*domain.AccountTransaction, error) {
	if !op.HoldsEscrow() {
		return nil, domain.ErrOperationNotReversible
	}
	txs, err := p.repoManager.AccountRepository().
		ListTransactionsForAccount(ctx, op.HoldingAccountId)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, domain.ErrOperationNotReversible
	}
	return &txs[0], nil
}
