package domain

import "errors"

var (
	// ErrAccountOverdrawn is thrown when a withdrawal asks for more than the
	// account balance and negative balances were not explicitly allowed.
	ErrAccountOverdrawn = errors.New("cannot withdraw more than the account balance")
	// ErrAssetFrozen is thrown on any balance-increasing mutation of a frozen asset.
	ErrAssetFrozen = errors.New("asset is frozen")
	// ErrTransactionConflict is thrown when a storage transaction kept
	// colliding with concurrent writers after several retries. The call
	// left no trace and is safe to retry.
	ErrTransactionConflict = errors.New("transaction conflicted with concurrent writes, retry")
	// ErrIncompatibleAssets is thrown when transferring between accounts
	// holding different assets.
	ErrIncompatibleAssets = errors.New("cannot transfer between accounts of different assets")
	// ErrWrongNetwork is thrown when mixing entities of different networks.
	ErrWrongNetwork = errors.New("asset belongs to another network")
	// ErrAmountNotPositive ...
	ErrAmountNotPositive = errors.New("amount must be positive")

	// ErrAssetAlreadyExists is thrown if another asset of the network already
	// uses the same symbol, name or external id.
	ErrAssetAlreadyExists = errors.New("asset with the same symbol, name or external id already exists in the network")
	// ErrAssetNotFound ...
	ErrAssetNotFound = errors.New("asset not found")
	// ErrNetworkNotFound ...
	ErrNetworkNotFound = errors.New("network not found")
	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")
	// ErrTransactionNotFound ...
	ErrTransactionNotFound = errors.New("account transaction not found")
	// ErrAddressNotFound ...
	ErrAddressNotFound = errors.New("address not found")
	// ErrAddressAccountNotFound ...
	ErrAddressAccountNotFound = errors.New("address does not hold an account for the asset")
	// ErrOperationNotFound ...
	ErrOperationNotFound = errors.New("operation not found")

	// ErrMultipleAssetAccountsPerAddress is thrown when creating a second
	// account for the same asset under one address.
	ErrMultipleAssetAccountsPerAddress = errors.New("address already holds an account for the asset")
	// ErrMultipleCreationOperations is thrown when putting a second creation
	// operation for the same address in the pipeline.
	ErrMultipleCreationOperations = errors.New("address already has a creation operation")
	// ErrTokenAlreadyCreated ...
	ErrTokenAlreadyCreated = errors.New("token for the asset has already been created")

	// ErrInvalidStateTransition is thrown when a state-machine method is
	// called on an operation in the wrong state.
	ErrInvalidStateTransition = errors.New("invalid operation state transition")
	// ErrOperationNotClaimable is thrown when claiming an operation that is
	// not waiting. A second worker hitting this must not touch the network.
	ErrOperationNotClaimable = errors.New("operation is not waiting to be claimed")
	// ErrOperationNotCancellable is thrown when cancelling an operation that
	// already reached the network.
	ErrOperationNotCancellable = errors.New("operation cannot be cancelled after broadcast")
	// ErrOperationNotReversible signals a reversal without the expected
	// escrow counterpart. It indicates the state machine was violated by the
	// caller, not a recoverable condition.
	ErrOperationNotReversible = errors.New("operation does not support escrow reversal")
	// ErrConfirmationsNotTracked is thrown when updating confirmations of an
	// operation that does not require them.
	ErrConfirmationsNotTracked = errors.New("operation does not track confirmations")
	// ErrApprovalNotRequired ...
	ErrApprovalNotRequired = errors.New("operation is not awaiting manual approval")
)
