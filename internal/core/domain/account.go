package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is an internal credit/debit account holding the balance of exactly
// one asset. Balance is a running total maintained in the same atomic step
// as every new transaction, it must always equal the sum of the account's
// transaction amounts.
type Account struct {
	Id        string
	AssetId   string
	Balance   decimal.Decimal
	CreatedAt int64
	UpdatedAt int64
}

// NewAccount returns an empty account holding the given asset.
func NewAccount(assetId string) *Account {
	now := time.Now().Unix()
	return &Account{
		Id:        uuid.New().String(),
		AssetId:   assetId,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetBalance returns the cached running total.
func (a *Account) GetBalance() decimal.Decimal {
	return a.Balance
}

// WithdrawOrDeposit appends a signed transaction to the account and updates
// the running total. A positive amount is a deposit, a negative one a
// withdrawal. Deposits of a frozen asset return ErrAssetFrozen. Withdrawals
// below zero return ErrAccountOverdrawn unless allowNegative is set, which
// callers opt into for internal escrow debits only.
//
// The caller must persist the returned transaction and the mutated account
// in one storage transaction.
func (a *Account) WithdrawOrDeposit(
	asset *Asset, amount decimal.Decimal, note string, allowNegative bool,
) (*AccountTransaction, error) {
	if asset.Id != a.AssetId {
		return nil, ErrIncompatibleAssets
	}

	if amount.IsPositive() {
		if err := asset.EnsureNotFrozen(); err != nil {
			return nil, err
		}
	}

	if !allowNegative && amount.IsNegative() {
		if a.Balance.Add(amount).IsNegative() {
			return nil, ErrAccountOverdrawn
		}
	}

	now := time.Now().Unix()
	tx := &AccountTransaction{
		Id:        uuid.New().String(),
		AccountId: a.Id,
		Amount:    amount,
		Note:      note,
		CreatedAt: now,
	}

	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = now

	return tx, nil
}

// TransferFunds debits from and credits to by the same amount, returning the
// two cross-referenced transactions (withdrawal first). Both accounts must
// hold the given asset. The two rows and both updated balances must commit
// as one atomic unit or not at all.
func TransferFunds(
	asset *Asset, amount decimal.Decimal, from, to *Account, note string,
) (*AccountTransaction, *AccountTransaction, error) {
	if !amount.IsPositive() {
		return nil, nil, ErrAmountNotPositive
	}
	if from.AssetId != to.AssetId {
		return nil, nil, ErrIncompatibleAssets
	}
	if err := asset.EnsureNotFrozen(); err != nil {
		return nil, nil, err
	}

	withdrawal, err := from.WithdrawOrDeposit(asset, amount.Neg(), note, false)
	if err != nil {
		return nil, nil, err
	}
	deposit, err := to.WithdrawOrDeposit(asset, amount, note, false)
	if err != nil {
		return nil, nil, err
	}

	withdrawal.CounterpartyId = deposit.Id
	deposit.CounterpartyId = withdrawal.Id

	return withdrawal, deposit, nil
}

// AccountTransaction is one immutable signed ledger row. CounterpartyId
// links the two halves of a transfer pair and is the only field ever set
// after creation.
type AccountTransaction struct {
	Id             string
	AccountId      string
	Amount         decimal.Decimal
	Note           string
	CounterpartyId string
	CreatedAt      int64
}

// IsTransferHalf returns whether the transaction belongs to a transfer pair.
func (t *AccountTransaction) IsTransferHalf() bool {
	return t.CounterpartyId != ""
}
