package domain

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind is the closed set of asynchronous external-network actions.
type OperationKind string

const (
	OperationKindCreateAddress OperationKind = "create_address"
	OperationKindDeposit       OperationKind = "deposit"
	OperationKindWithdraw      OperationKind = "withdraw"
	OperationKindCreateToken   OperationKind = "create_token"
	OperationKindImportToken   OperationKind = "import_token"
)

// OperationState is the lifecycle state of an operation.
//
// State mapping for outgoing operations:
//
//   - waiting when the operation is put in the queue
//   - pending when a worker claimed it for network broadcast. This state is
//     never picked twice, so the same withdraw cannot be broadcast by two
//     workers.
//   - broadcasted when the transaction was observed propagating on the
//     network
//   - success when the required confirmation count has been reached
//
// success, failed and cancelled are terminal.
type OperationState string

const (
	// OperationStateConfirmationRequired gates the operation behind an
	// out-of-band manual approval before any network action.
	OperationStateConfirmationRequired OperationState = "confirmation_required"
	OperationStateWaiting              OperationState = "waiting"
	OperationStatePending              OperationState = "pending"
	OperationStateBroadcasted          OperationState = "broadcasted"
	OperationStateSuccess              OperationState = "success"
	OperationStateFailed               OperationState = "failed"
	OperationStateCancelled            OperationState = "cancelled"
)

// Operation is a unit of asynchronous work bridging the ledger and an
// external network. It is created in waiting state atomically with its
// escrow funding, later claimed and driven forward by an external executor,
// and resolved by the confirmation tracker.
//
// Kind-specific payload lives in the optional fields below, settlement and
// reversal behavior per kind is dispatched through an explicit capability
// table in the application layer.
type Operation struct {
	Id        string
	NetworkId string
	Kind      OperationKind
	State     OperationState

	CreatedAt int64
	UpdatedAt int64

	// Claim bookkeeping. If the connection to a node is down the operation
	// is attempted again later.
	AttemptedAt int64
	Attempts    int

	PerformedAt   int64
	BroadcastedAt int64
	CompletedAt   int64
	FailedAt      int64

	// ExternalAddress is the destination for withdrawals, the origin for
	// deposits and the contract address for token operations.
	ExternalAddress []byte
	// TxId is the external network transaction id, fixed 32 bytes.
	TxId []byte
	// OpId is the txid plus log-index dedup key for incoming transactions.
	OpId []byte
	// BlockNumber is the block the transaction was first included in, zero
	// until mined.
	BlockNumber uint64

	// TracksConfirmations tells whether the operation resolves by block
	// depth. RequiredConfirmations is fixed at creation and never
	// renegotiated.
	TracksConfirmations   bool
	RequiredConfirmations uint64

	// AddressId is the hosted address the operation concerns, empty for
	// token imports.
	AddressId string
	// AssetId anchors token creations to the asset they deploy.
	AssetId string
	// AccountId is the ledger account the operation settles into or out of.
	AccountId string
	// HoldingAccountId is the operation-owned escrow account, exclusively
	// owned for the operation's lifetime.
	HoldingAccountId string

	// ApprovalDeadline is the unix time after which a pending manual
	// approval times out.
	ApprovalDeadline int64

	// FailureReason records why the operation failed or was cancelled.
	FailureReason string
}

func newOperation(networkId string, kind OperationKind) *Operation {
	now := time.Now().Unix()
	return &Operation{
		Id:        uuid.New().String(),
		NetworkId: networkId,
		Kind:      kind,
		State:     OperationStateWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewAddressCreation returns a waiting operation that asks the network for a
// receiving address. It moves no value and needs no confirmations.
func NewAddressCreation(address *Address) *Operation {
	op := newOperation(address.NetworkId, OperationKindCreateAddress)
	op.AddressId = address.Id
	return op
}

// NewDeposit returns a waiting operation crediting an address account once
// the incoming transaction reaches the required block depth.
func NewDeposit(
	networkId, accountId, holdingAccountId string,
	txid, opid []byte, requiredConfirmations uint64,
) *Operation {
	op := newOperation(networkId, OperationKindDeposit)
	op.AccountId = accountId
	op.HoldingAccountId = holdingAccountId
	op.TxId = txid
	op.OpId = opid
	op.TracksConfirmations = true
	op.RequiredConfirmations = requiredConfirmations
	return op
}

// NewWithdraw returns a waiting operation sending escrowed funds to an
// external address.
func NewWithdraw(
	networkId, accountId, holdingAccountId string,
	externalAddress []byte, requiredConfirmations uint64,
) *Operation {
	op := newOperation(networkId, OperationKindWithdraw)
	op.AccountId = accountId
	op.HoldingAccountId = holdingAccountId
	op.ExternalAddress = externalAddress
	op.TracksConfirmations = true
	op.RequiredConfirmations = requiredConfirmations
	return op
}

// NewTokenCreation returns a waiting operation deploying a token contract
// whose initial supply settles into the owner account on resolution.
func NewTokenCreation(
	networkId, accountId, holdingAccountId string, requiredConfirmations uint64,
) *Operation {
	op := newOperation(networkId, OperationKindCreateToken)
	op.AccountId = accountId
	op.HoldingAccountId = holdingAccountId
	op.TracksConfirmations = true
	op.RequiredConfirmations = requiredConfirmations
	return op
}

// NewTokenImport returns a waiting operation importing an existing token
// contract as an asset.
func NewTokenImport(networkId string, contractAddress []byte) *Operation {
	op := newOperation(networkId, OperationKindImportToken)
	op.ExternalAddress = contractAddress
	return op
}

// IsInProgress returns whether the operation still awaits external progress.
func (o *Operation) IsInProgress() bool {
	switch o.State {
	case OperationStateConfirmationRequired, OperationStateWaiting,
		OperationStatePending, OperationStateBroadcasted:
		return true
	}
	return false
}

// IsTerminal returns whether the operation reached a permanent state.
func (o *Operation) IsTerminal() bool {
	return !o.IsInProgress()
}

// IsPreBroadcast returns whether nothing has been committed to the network
// yet, the window in which failure and cancellation are safely reversible.
func (o *Operation) IsPreBroadcast() bool {
	switch o.State {
	case OperationStateConfirmationRequired, OperationStateWaiting,
		OperationStatePending:
		return true
	}
	return false
}

// IsFailed returns whether the operation terminally failed.
func (o *Operation) IsFailed() bool {
	return o.State == OperationStateFailed
}

// IsCompleted returns whether the operation resolved successfully.
func (o *Operation) IsCompleted() bool {
	return o.State == OperationStateSuccess
}

// HoldsEscrow returns whether the operation owns a holding account.
func (o *Operation) HoldsEscrow() bool {
	return o.HoldingAccountId != ""
}

// Claim transitions waiting to pending and records the attempt. Exactly one
// worker can claim an operation, callers must run the claim under
// transactional isolation so two workers never broadcast the same operation.
func (o *Operation) Claim(now int64) error {
	if o.State != OperationStateWaiting {
		return ErrOperationNotClaimable
	}
	o.State = OperationStatePending
	o.AttemptedAt = now
	o.Attempts++
	o.UpdatedAt = now
	return nil
}

// Requeue releases a claim without counting an outcome, putting the
// operation back in line for a later attempt. Only a claimed operation
// whose broadcast step never ran may be requeued.
func (o *Operation) Requeue() error {
	if o.State != OperationStatePending {
		return ErrInvalidStateTransition
	}
	o.State = OperationStateWaiting
	o.UpdatedAt = time.Now().Unix()
	return nil
}

// MarkPerformed records that the executor attempted or completed the local
// or initial broadcast step. Idempotent from the pending state.
func (o *Operation) MarkPerformed() error {
	if o.State != OperationStateWaiting && o.State != OperationStatePending {
		return ErrInvalidStateTransition
	}
	now := time.Now().Unix()
	o.State = OperationStatePending
	o.PerformedAt = now
	o.UpdatedAt = now
	return nil
}

// MarkBroadcasted records that the transaction was observed propagating on
// the network. From here on the escrow is considered spent.
func (o *Operation) MarkBroadcasted() error {
	if o.State != OperationStatePending {
		return ErrInvalidStateTransition
	}
	now := time.Now().Unix()
	o.State = OperationStateBroadcasted
	o.BroadcastedAt = now
	o.UpdatedAt = now
	return nil
}

// MarkComplete finalizes the operation, there are no further changes after
// this.
func (o *Operation) MarkComplete() error {
	if o.IsTerminal() {
		return ErrInvalidStateTransition
	}
	now := time.Now().Unix()
	o.State = OperationStateSuccess
	o.CompletedAt = now
	o.UpdatedAt = now
	return nil
}

// MarkFailed terminates the operation with a recorded reason. Pre-broadcast
// failures left no external trace. Post-broadcast failures are never
// auto-reversed because the true on-chain outcome is ambiguous, they require
// manual reconciliation.
func (o *Operation) MarkFailed(reason string) error {
	if o.IsTerminal() {
		return ErrInvalidStateTransition
	}
	now := time.Now().Unix()
	o.State = OperationStateFailed
	o.FailedAt = now
	o.FailureReason = reason
	o.UpdatedAt = now
	return nil
}

// MarkCancelled terminates a pre-broadcast operation with a recorded reason.
// The caller must run the escrow reversal in the same atomic step. Once
// broadcast, cancellation is refused and manual follow-up is required
// instead.
func (o *Operation) MarkCancelled(reason string) error {
	if !o.IsPreBroadcast() {
		if o.IsTerminal() {
			return ErrInvalidStateTransition
		}
		return ErrOperationNotCancellable
	}
	now := time.Now().Unix()
	o.State = OperationStateCancelled
	o.FailedAt = now
	o.FailureReason = reason
	o.UpdatedAt = now
	return nil
}

// RequireApproval gates a waiting operation behind an out-of-band manual
// approval with the given deadline.
func (o *Operation) RequireApproval(deadline int64) error {
	if o.State != OperationStateWaiting {
		return ErrInvalidStateTransition
	}
	o.State = OperationStateConfirmationRequired
	o.ApprovalDeadline = deadline
	o.UpdatedAt = time.Now().Unix()
	return nil
}

// Approve puts an approved operation back in the queue.
func (o *Operation) Approve() error {
	if o.State != OperationStateConfirmationRequired {
		return ErrApprovalNotRequired
	}
	o.State = OperationStateWaiting
	o.ApprovalDeadline = 0
	o.UpdatedAt = time.Now().Unix()
	return nil
}

// IsApprovalExpired returns whether a required approval passed its deadline.
func (o *Operation) IsApprovalExpired(now int64) bool {
	return o.State == OperationStateConfirmationRequired &&
		o.ApprovalDeadline > 0 && now > o.ApprovalDeadline
}

// UpdateConfirmations reports whether the operation reached its required
// block depth and should be resolved. It is a no-op returning false once the
// operation completed, repeated calls after completion change nothing.
func (o *Operation) UpdateConfirmations(depth uint64) (bool, error) {
	if o.CompletedAt > 0 || o.IsTerminal() {
		return false, nil
	}
	if !o.TracksConfirmations {
		return false, ErrConfirmationsNotTracked
	}
	return depth > o.RequiredConfirmations, nil
}

// Confirmations derives the confirmation depth of the operation from the
// network's latest observed block. The second return is false if the
// operation does not track confirmations or the network status is unknown.
// The depth is zero while no transaction id or block has been recorded.
func (o *Operation) Confirmations(status *NetworkStatus) (uint64, bool) {
	if !o.TracksConfirmations || status == nil || status.BlockNumber == 0 {
		return 0, false
	}
	if len(o.TxId) == 0 || o.BlockNumber == 0 {
		return 0, true
	}
	if status.BlockNumber < o.BlockNumber {
		// The cursor lags behind an observed inclusion, e.g. right after a
		// reorg. Treat as not yet confirmed.
		return 0, true
	}
	return status.BlockNumber - o.BlockNumber, true
}
