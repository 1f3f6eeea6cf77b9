package application

import (
	"context"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
)

// LedgerService exposes the double-entry value store: balance reads, signed
// adjustments and atomic account-to-account transfers. Every write commits
// the new transaction rows and the updated running totals as one unit.
type LedgerService interface {
	GetBalance(ctx context.Context, accountId string) (decimal.Decimal, error)
	// WithdrawOrDeposit appends one signed transaction to the account. It
	// has no matching row on any other account, its main purpose is to
	// initialize accounts with a certain balance.
	WithdrawOrDeposit(
		ctx context.Context,
		accountId string, amount decimal.Decimal, note string,
		allowNegative bool,
	) (*domain.AccountTransaction, error)
	// Transfer debits from and credits to atomically, returning the
	// withdrawal and deposit rows cross-referenced as counterparties.
	Transfer(
		ctx context.Context,
		amount decimal.Decimal, fromAccountId, toAccountId, note string,
	) (*domain.AccountTransaction, *domain.AccountTransaction, error)
	// AssetLiabilities sums the balances of all accounts holding an asset.
	AssetLiabilities(ctx context.Context, assetId string) (decimal.Decimal, error)
	// ReconcileBalances re-sums every account's transactions and reports
	// accounts whose running total drifted. It never repairs, only audits.
	ReconcileBalances(ctx context.Context) ([]BalanceMismatch, error)
}

// BalanceMismatch reports one account whose cached balance does not equal
// the sum of its transaction rows.
type BalanceMismatch struct {
	AccountId string
	Cached    decimal.Decimal
	Summed    decimal.Decimal
}

type ledgerService struct {
	repoManager ports.RepoManager
}

// NewLedgerService returns a LedgerService backed by the given repositories.
func NewLedgerService(repoManager ports.RepoManager) LedgerService {
	return &ledgerService{repoManager: repoManager}
}

func (s *ledgerService) GetBalance(
	ctx context.Context, accountId string,
) (decimal.Decimal, error) {
	balance, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			account, err := s.repoManager.AccountRepository().GetAccount(ctx, accountId)
			if err != nil {
				return nil, err
			}
			return account.GetBalance(), nil
		},
	)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.(decimal.Decimal), nil
}

func (s *ledgerService) WithdrawOrDeposit(
	ctx context.Context,
	accountId string, amount decimal.Decimal, note string, allowNegative bool,
) (*domain.AccountTransaction, error) {
	tx, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.withdrawOrDeposit(ctx, accountId, amount, note, allowNegative)
		},
	)
	if err != nil {
		return nil, err
	}
	return tx.(*domain.AccountTransaction), nil
}

// withdrawOrDeposit must run inside a storage transaction.
func (s *ledgerService) withdrawOrDeposit(
	ctx context.Context,
	accountId string, amount decimal.Decimal, note string, allowNegative bool,
) (*domain.AccountTransaction, error) {
	accountRepo := s.repoManager.AccountRepository()

	account, err := accountRepo.GetAccount(ctx, accountId)
	if err != nil {
		return nil, err
	}
	asset, err := s.repoManager.AssetRepository().GetAsset(ctx, account.AssetId)
	if err != nil {
		return nil, err
	}

	tx, err := account.WithdrawOrDeposit(asset, amount, note, allowNegative)
	if err != nil {
		return nil, err
	}

	if err := accountRepo.AddTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := accountRepo.UpdateAccount(
		ctx, account.Id,
		func(_ *domain.Account) (*domain.Account, error) { return account, nil },
	); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *ledgerService) Transfer(
	ctx context.Context,
	amount decimal.Decimal, fromAccountId, toAccountId, note string,
) (*domain.AccountTransaction, *domain.AccountTransaction, error) {
	res, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			withdrawal, deposit, err := s.transferFunds(
				ctx, amount, fromAccountId, toAccountId, note,
			)
			if err != nil {
				return nil, err
			}
			return []*domain.AccountTransaction{withdrawal, deposit}, nil
		},
	)
	if err != nil {
		return nil, nil, err
	}
	pair := res.([]*domain.AccountTransaction)
	return pair[0], pair[1], nil
}

// transferFunds must run inside a storage transaction. It is shared with the
// escrow funding, settlement and reversal paths of the operation pipeline.
func (s *ledgerService) transferFunds(
	ctx context.Context,
	amount decimal.Decimal, fromAccountId, toAccountId, note string,
) (*domain.AccountTransaction, *domain.AccountTransaction, error) {
	accountRepo := s.repoManager.AccountRepository()

	from, err := accountRepo.GetAccount(ctx, fromAccountId)
	if err != nil {
		return nil, nil, err
	}
	to, err := accountRepo.GetAccount(ctx, toAccountId)
	if err != nil {
		return nil, nil, err
	}
	if from.AssetId != to.AssetId {
		return nil, nil, domain.ErrIncompatibleAssets
	}
	asset, err := s.repoManager.AssetRepository().GetAsset(ctx, from.AssetId)
	if err != nil {
		return nil, nil, err
	}

	withdrawal, deposit, err := domain.TransferFunds(asset, amount, from, to, note)
	if err != nil {
		return nil, nil, err
	}

	if err := accountRepo.AddTransaction(ctx, withdrawal); err != nil {
		return nil, nil, err
	}
	if err := accountRepo.AddTransaction(ctx, deposit); err != nil {
		return nil, nil, err
	}
	if err := accountRepo.UpdateAccount(
		ctx, from.Id,
		func(_ *domain.Account) (*domain.Account, error) { return from, nil },
	); err != nil {
		return nil, nil, err
	}
	if err := accountRepo.UpdateAccount(
		ctx, to.Id,
		func(_ *domain.Account) (*domain.Account, error) { return to, nil },
	); err != nil {
		return nil, nil, err
	}
	return withdrawal, deposit, nil
}

func (s *ledgerService) AssetLiabilities(
	ctx context.Context, assetId string,
) (decimal.Decimal, error) {
	total, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			accounts, err := s.repoManager.AccountRepository().
				ListAccountsForAsset(ctx, assetId)
			if err != nil {
				return nil, err
			}
			sum := decimal.Zero
			for _, account := range accounts {
				sum = sum.Add(account.Balance)
			}
			return sum, nil
		},
	)
	if err != nil {
		return decimal.Zero, err
	}
	return total.(decimal.Decimal), nil
}

func (s *ledgerService) ReconcileBalances(
	ctx context.Context,
) ([]BalanceMismatch, error) {
	res, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			accountRepo := s.repoManager.AccountRepository()
			accounts, err := accountRepo.ListAllAccounts(ctx)
			if err != nil {
				return nil, err
			}

			mismatches := make([]BalanceMismatch, 0)
			for _, account := range accounts {
				txs, err := accountRepo.ListTransactionsForAccount(ctx, account.Id)
				if err != nil {
					return nil, err
				}
				summed := decimal.Zero
				for _, tx := range txs {
					summed = summed.Add(tx.Amount)
				}
				if !summed.Equal(account.Balance) {
					mismatches = append(mismatches, BalanceMismatch{
						AccountId: account.Id,
						Cached:    account.Balance,
						Summed:    summed,
					})
				}
			}
			return mismatches, nil
		},
	)
	if err != nil {
		return nil, err
	}

	mismatches := res.([]BalanceMismatch)
	for _, m := range mismatches {
		log.Warnf(
			"ledger audit: account %s cached balance %s does not match summed %s",
			m.AccountId, m.Cached, m.Summed,
		)
	}
	return mismatches, nil
}
