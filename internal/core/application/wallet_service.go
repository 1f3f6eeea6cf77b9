package application

import (
	"context"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
)

// WalletService creates and manages the asynchronous operations bridging
// the ledger and the external network. Every value-moving operation reserves
// its funds into a fresh operation-owned holding account in the same atomic
// step that creates the operation row, so "operation exists" and "funds
// reserved" are a single crash-safe fact.
type WalletService interface {
	// NewAddress creates an address with no network value yet and puts its
	// creation operation in the queue.
	NewAddress(ctx context.Context, networkId string) (*domain.Operation, error)
	// RequestAddressCreation queues a creation operation for an existing
	// address. At most one creation operation per address may ever exist.
	RequestAddressCreation(ctx context.Context, addressId string) (*domain.Operation, error)
	// Deposit registers an incoming external transaction crediting an
	// address. Calling it twice with the same txid and log index returns
	// the existing operation so the deposit is never processed twice. The
	// destination account is only credited when the operation resolves.
	Deposit(
		ctx context.Context, addressId, assetId string,
		amount decimal.Decimal, txid []byte, logIndex uint16, note string,
		requiredConfirmations uint64,
	) (*domain.Operation, error)
	// Withdraw reserves funds from the address's account into escrow and
	// queues the outgoing transfer to the external address.
	Withdraw(
		ctx context.Context, addressId, assetId string,
		amount decimal.Decimal, toAddress []byte, note string,
		requiredConfirmations uint64,
	) (*domain.Operation, error)
	// CreateToken queues the deployment of a token contract for an asset.
	// The initial supply is escrowed and settles into the owner's account
	// on resolution.
	CreateToken(
		ctx context.Context, addressId, assetId string,
		requiredConfirmations uint64,
	) (*domain.Operation, error)
	// ImportToken queues the import of an existing token contract as an
	// asset of the network.
	ImportToken(
		ctx context.Context, networkId string, contractAddress []byte,
	) (*domain.Operation, error)
	// CompleteTokenImport registers the token metadata and on-chain
	// balances fetched by the executor. Balances are seeded one address at
	// a time, a failure mid-scan marks the operation failed and leaves the
	// partially imported asset in place.
	CompleteTokenImport(
		ctx context.Context, opId string, data TokenImportData,
	) (*domain.Asset, error)
	// CancelOperation terminates a pre-broadcast operation and restores its
	// escrowed funds to their origin in the same atomic step.
	CancelOperation(ctx context.Context, opId, reason string) (*domain.Operation, error)

	GetOperation(ctx context.Context, opId string) (*domain.Operation, error)
	GetAddress(ctx context.Context, addressId string) (*domain.Address, error)
	// GetAddressAccount returns the address's ledger account for the given
	// asset, or ErrAddressAccountNotFound. Combined with the registry's
	// symbol and contract-id lookups this covers account resolution by
	// either key.
	GetAddressAccount(ctx context.Context, addressId, assetId string) (*domain.Account, error)
	ListOperations(ctx context.Context, networkId string) ([]domain.Operation, error)
	ListAddressAccounts(ctx context.Context, addressId string) ([]domain.AddressAccount, error)
}

// TokenImportData is what the executor learned about an imported token
// contract: its metadata and the balances of the addresses we host.
type TokenImportData struct {
	Name     string
	Symbol   string
	Supply   decimal.Decimal
	Balances []ImportedBalance
}

// ImportedBalance is one hosted address holding a non-zero balance of the
// imported token.
type ImportedBalance struct {
	AddressId string
	Amount    decimal.Decimal
}

type walletService struct {
	repoManager ports.RepoManager
	pipeline    *operationPipeline
	registry    *registryService
}

// NewWalletService returns a WalletService backed by the given repositories.
func NewWalletService(repoManager ports.RepoManager) WalletService {
	return &walletService{
		repoManager: repoManager,
		pipeline:    newOperationPipeline(repoManager),
		registry:    &registryService{repoManager: repoManager},
	}
}

func (s *walletService) NewAddress(
	ctx context.Context, networkId string,
) (*domain.Operation, error) {
	op, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			if _, err := s.repoManager.AssetRepository().GetNetwork(ctx, networkId); err != nil {
				return nil, err
			}

			address := domain.NewAddress(networkId)
			if err := s.repoManager.AddressRepository().AddAddress(ctx, address); err != nil {
				return nil, err
			}
			return s.queueAddressCreation(ctx, address)
		},
	)
	if err != nil {
		return nil, err
	}

	log.Debugf("queued address creation in network %s", networkId)
	return op.(*domain.Operation), nil
}

func (s *walletService) RequestAddressCreation(
	ctx context.Context, addressId string,
) (*domain.Operation, error) {
	op, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			address, err := s.repoManager.AddressRepository().GetAddress(ctx, addressId)
			if err != nil {
				return nil, err
			}
			return s.queueAddressCreation(ctx, address)
		},
	)
	if err != nil {
		return nil, err
	}
	return op.(*domain.Operation), nil
}

// queueAddressCreation must run inside a storage transaction.
func (s *walletService) queueAddressCreation(
	ctx context.Context, address *domain.Address,
) (*domain.Operation, error) {
	opRepo := s.repoManager.OperationRepository()

	if _, err := opRepo.GetCreationOperationForAddress(ctx, address.Id); err == nil {
		return nil, domain.ErrMultipleCreationOperations
	} else if err != domain.ErrOperationNotFound {
		return nil, err
	}

	op := domain.NewAddressCreation(address)
	if err := opRepo.AddOperation(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

func (s *walletService) Deposit(
	ctx context.Context, addressId, assetId string,
	amount decimal.Decimal, txid []byte, logIndex uint16, note string,
	requiredConfirmations uint64,
) (*domain.Operation, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrAmountNotPositive
	}
	opid, err := domain.NewOpId(txid, logIndex)
	if err != nil {
		return nil, err
	}

	op, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			address, asset, err := s.getAddressAndAsset(ctx, addressId, assetId)
			if err != nil {
				return nil, err
			}

			// One transaction can carry several recognized assets for the
			// same address, each log entry maps to its own operation.
			existing, err := s.repoManager.OperationRepository().
				GetOperationByOpId(ctx, address.NetworkId, opid)
			if err == nil {
				return existing, nil
			}
			if err != domain.ErrOperationNotFound {
				return nil, err
			}

			destination, err := s.getOrCreateAddressAccount(ctx, address, asset)
			if err != nil {
				return nil, err
			}

			holding, err := s.newHoldingAccount(ctx, asset)
			if err != nil {
				return nil, err
			}
			if _, err := s.pipeline.ledger.withdrawOrDeposit(
				ctx, holding.Id, amount, note, false,
			); err != nil {
				return nil, err
			}

			op := domain.NewDeposit(
				address.NetworkId, destination.AccountId, holding.Id,
				txid, opid, requiredConfirmations,
			)
			op.AddressId = address.Id
			if err := s.repoManager.OperationRepository().AddOperation(ctx, op); err != nil {
				return nil, err
			}
			return op, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return op.(*domain.Operation), nil
}

func (s *walletService) Withdraw(
	ctx context.Context, addressId, assetId string,
	amount decimal.Decimal, toAddress []byte, note string,
	requiredConfirmations uint64,
) (*domain.Operation, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrAmountNotPositive
	}
	if err := domain.ValidateAddressValue(toAddress); err != nil {
		return nil, err
	}

	op, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			address, asset, err := s.getAddressAndAsset(ctx, addressId, assetId)
			if err != nil {
				return nil, err
			}
			if err := asset.EnsureNotFrozen(); err != nil {
				return nil, err
			}

			source, err := s.repoManager.AddressRepository().
				GetAddressAccount(ctx, address.Id, asset.Id)
			if err != nil {
				return nil, err
			}

			holding, err := s.newHoldingAccount(ctx, asset)
			if err != nil {
				return nil, err
			}

			op := domain.NewWithdraw(
				address.NetworkId, source.AccountId, holding.Id,
				toAddress, requiredConfirmations,
			)
			op.AddressId = address.Id
			if err := s.repoManager.OperationRepository().AddOperation(ctx, op); err != nil {
				return nil, err
			}

			// Lock the funds in escrow for the operation's lifetime.
			if _, _, err := s.pipeline.ledger.transferFunds(
				ctx, amount, source.AccountId, holding.Id, note,
			); err != nil {
				return nil, err
			}
			return op, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return op.(*domain.Operation), nil
}

func (s *walletService) CreateToken(
	ctx context.Context, addressId, assetId string,
	requiredConfirmations uint64,
) (*domain.Operation, error) {
	op, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			address, asset, err := s.getAddressAndAsset(ctx, addressId, assetId)
			if err != nil {
				return nil, err
			}
			if !asset.Supply.IsPositive() {
				return nil, domain.ErrAmountNotPositive
			}

			if _, err := s.repoManager.OperationRepository().
				GetTokenCreationForAsset(ctx, asset.Id); err == nil {
				return nil, domain.ErrTokenAlreadyCreated
			} else if err != domain.ErrOperationNotFound {
				return nil, err
			}

			destination, err := s.getOrCreateAddressAccount(ctx, address, asset)
			if err != nil {
				return nil, err
			}

			holding, err := s.newHoldingAccount(ctx, asset)
			if err != nil {
				return nil, err
			}
			if _, err := s.pipeline.ledger.withdrawOrDeposit(
				ctx, holding.Id, asset.Supply, "Initial supply", false,
			); err != nil {
				return nil, err
			}

			op := domain.NewTokenCreation(
				address.NetworkId, destination.AccountId, holding.Id,
				requiredConfirmations,
			)
			op.AddressId = address.Id
			op.AssetId = asset.Id
			if err := s.repoManager.OperationRepository().AddOperation(ctx, op); err != nil {
				return nil, err
			}
			return op, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return op.(*domain.Operation), nil
}

func (s *walletService) ImportToken(
	ctx context.Context, networkId string, contractAddress []byte,
) (*domain.Operation, error) {
	if err := domain.ValidateAddressValue(contractAddress); err != nil {
		return nil, err
	}

	op, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			if _, err := s.repoManager.AssetRepository().GetNetwork(ctx, networkId); err != nil {
				return nil, err
			}
			op := domain.NewTokenImport(networkId, contractAddress)
			if err := s.repoManager.OperationRepository().AddOperation(ctx, op); err != nil {
				return nil, err
			}
			return op, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return op.(*domain.Operation), nil
}

func (s *walletService) CompleteTokenImport(
	ctx context.Context, opId string, data TokenImportData,
) (*domain.Asset, error) {
	created, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			op, err := s.repoManager.OperationRepository().GetOperation(ctx, opId)
			if err != nil {
				return nil, err
			}
			return s.registry.createAsset(
				ctx, op.NetworkId, data.Name, data.Symbol, data.Supply,
				domain.AssetClassToken, op.ExternalAddress,
			)
		},
	)
	if err != nil {
		return nil, s.failTokenImport(ctx, opId, err)
	}
	asset := created.(*domain.Asset)

	// Balances are seeded one address per transaction on purpose. A failing
	// address marks the operation failed and leaves everything imported so
	// far in place, which is tolerated over rolling back a half-scanned
	// contract.
	for _, balance := range data.Balances {
		if !balance.Amount.IsPositive() {
			continue
		}
		if _, err := s.repoManager.RunTransaction(
			ctx, !readOnlyTx,
			func(ctx context.Context) (interface{}, error) {
				address, err := s.repoManager.AddressRepository().
					GetAddress(ctx, balance.AddressId)
				if err != nil {
					return nil, err
				}
				account, err := s.getOrCreateAddressAccount(ctx, address, asset)
				if err != nil {
					return nil, err
				}
				return s.pipeline.ledger.withdrawOrDeposit(
					ctx, account.AccountId, balance.Amount,
					"Token contract import", false,
				)
			},
		); err != nil {
			log.WithError(err).Warnf(
				"token import %s: seeding balance for address %s failed",
				opId, balance.AddressId,
			)
			return asset, s.failTokenImport(ctx, opId, err)
		}
	}

	if _, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return nil, s.repoManager.OperationRepository().UpdateOperation(
				ctx, opId,
				func(o *domain.Operation) (*domain.Operation, error) {
					if err := o.MarkPerformed(); err != nil {
						return nil, err
					}
					if err := o.MarkComplete(); err != nil {
						return nil, err
					}
					return o, nil
				},
			)
		},
	); err != nil {
		return asset, err
	}
	return asset, nil
}

func (s *walletService) failTokenImport(
	ctx context.Context, opId string, cause error,
) error {
	if _, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return nil, s.repoManager.OperationRepository().UpdateOperation(
				ctx, opId,
				func(o *domain.Operation) (*domain.Operation, error) {
					if err := o.MarkFailed(cause.Error()); err != nil {
						return nil, err
					}
					return o, nil
				},
			)
		},
	); err != nil {
		return err
	}
	return cause
}

func (s *walletService) CancelOperation(
	ctx context.Context, opId, reason string,
) (*domain.Operation, error) {
	op, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			var cancelled *domain.Operation
			if err := s.repoManager.OperationRepository().UpdateOperation(
				ctx, opId,
				func(o *domain.Operation) (*domain.Operation, error) {
					if err := s.pipeline.cancel(ctx, o, reason); err != nil {
						return nil, err
					}
					cancelled = o
					return o, nil
				},
			); err != nil {
				return nil, err
			}
			return cancelled, nil
		},
	)
	if err != nil {
		return nil, err
	}

	log.Infof("operation %s cancelled: %s", opId, reason)
	return op.(*domain.Operation), nil
}

func (s *walletService) GetOperation(
	ctx context.Context, opId string,
) (*domain.Operation, error) {
	op, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.OperationRepository().GetOperation(ctx, opId)
		},
	)
	if err != nil {
		return nil, err
	}
	return op.(*domain.Operation), nil
}

func (s *walletService) GetAddress(
	ctx context.Context, addressId string,
) (*domain.Address, error) {
	address, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.AddressRepository().GetAddress(ctx, addressId)
		},
	)
	if err != nil {
		return nil, err
	}
	return address.(*domain.Address), nil
}

func (s *walletService) GetAddressAccount(
	ctx context.Context, addressId, assetId string,
) (*domain.Account, error) {
	account, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			binding, err := s.repoManager.AddressRepository().
				GetAddressAccount(ctx, addressId, assetId)
			if err != nil {
				return nil, err
			}
			return s.repoManager.AccountRepository().GetAccount(ctx, binding.AccountId)
		},
	)
	if err != nil {
		return nil, err
	}
	return account.(*domain.Account), nil
}

func (s *walletService) ListOperations(
	ctx context.Context, networkId string,
) ([]domain.Operation, error) {
	ops, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.OperationRepository().
				ListOperationsForNetwork(ctx, networkId)
		},
	)
	if err != nil {
		return nil, err
	}
	return ops.([]domain.Operation), nil
}

func (s *walletService) ListAddressAccounts(
	ctx context.Context, addressId string,
) ([]domain.AddressAccount, error) {
	accounts, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.AddressRepository().
				ListAccountsForAddress(ctx, addressId)
		},
	)
	if err != nil {
		return nil, err
	}
	return accounts.([]domain.AddressAccount), nil
}

// getAddressAndAsset must run inside a storage transaction. It loads both
// entities and refuses cross-network combinations.
func (s *walletService) getAddressAndAsset(
	ctx context.Context, addressId, assetId string,
) (*domain.Address, *domain.Asset, error) {
	address, err := s.repoManager.AddressRepository().GetAddress(ctx, addressId)
	if err != nil {
		return nil, nil, err
	}
	asset, err := s.repoManager.AssetRepository().GetAsset(ctx, assetId)
	if err != nil {
		return nil, nil, err
	}
	if asset.NetworkId != address.NetworkId {
		return nil, nil, domain.ErrWrongNetwork
	}
	return address, asset, nil
}

// getOrCreateAddressAccount must run inside a storage transaction.
func (s *walletService) getOrCreateAddressAccount(
	ctx context.Context, address *domain.Address, asset *domain.Asset,
) (*domain.AddressAccount, error) {
	if asset.NetworkId != address.NetworkId {
		return nil, domain.ErrWrongNetwork
	}

	addressRepo := s.repoManager.AddressRepository()
	existing, err := addressRepo.GetAddressAccount(ctx, address.Id, asset.Id)
	if err == nil {
		return existing, nil
	}
	if err != domain.ErrAddressAccountNotFound {
		return nil, err
	}

	account := domain.NewAccount(asset.Id)
	if err := s.repoManager.AccountRepository().AddAccount(ctx, account); err != nil {
		return nil, err
	}
	addressAccount := domain.NewAddressAccount(address.Id, account.Id, asset.Id)
	if err := addressRepo.AddAddressAccount(ctx, addressAccount); err != nil {
		return nil, err
	}
	return addressAccount, nil
}

// newHoldingAccount must run inside a storage transaction. The returned
// account belongs to exactly one operation and is never shared.
func (s *walletService) newHoldingAccount(
	ctx context.Context, asset *domain.Asset,
) (*domain.Account, error) {
	holding := domain.NewAccount(asset.Id)
	if err := s.repoManager.AccountRepository().AddAccount(ctx, holding); err != nil {
		return nil, err
	}
	return holding, nil
}
