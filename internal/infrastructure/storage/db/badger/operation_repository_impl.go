package dbbadger

import (
	"bytes"
	"context"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/walletd-network/walletd/internal/core/domain"
)

type operationRepositoryImpl struct {
	store *badgerhold.Store
}

func newOperationRepositoryImpl(store *badgerhold.Store) domain.OperationRepository {
	return operationRepositoryImpl{store}
}

func (r operationRepositoryImpl) AddOperation(
	ctx context.Context, op *domain.Operation,
) error {
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		return r.store.TxInsert(tx, op.Id, op)
	}
	return r.store.Insert(op.Id, op)
}

func (r operationRepositoryImpl) GetOperation(
	ctx context.Context, opId string,
) (*domain.Operation, error) {
	var op domain.Operation
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxGet(tx, opId, &op)
	} else {
		err = r.store.Get(opId, &op)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrOperationNotFound
		}
		return nil, err
	}
	return &op, nil
}

func (r operationRepositoryImpl) GetOperationByOpId(
	ctx context.Context, networkId string, opId []byte,
) (*domain.Operation, error) {
	ops, err := r.findOperations(
		ctx, badgerhold.Where("NetworkId").Eq(networkId), false,
	)
	if err != nil {
		return nil, err
	}
	for i := range ops {
		if bytes.Equal(ops[i].OpId, opId) {
			return &ops[i], nil
		}
	}
	return nil, domain.ErrOperationNotFound
}

func (r operationRepositoryImpl) GetCreationOperationForAddress(
	ctx context.Context, addressId string,
) (*domain.Operation, error) {
	return r.getOperation(
		ctx,
		badgerhold.Where("Kind").Eq(domain.OperationKindCreateAddress).
			And("AddressId").Eq(addressId),
	)
}

func (r operationRepositoryImpl) GetTokenCreationForAsset(
	ctx context.Context, assetId string,
) (*domain.Operation, error) {
	return r.getOperation(
		ctx,
		badgerhold.Where("Kind").Eq(domain.OperationKindCreateToken).
			And("AssetId").Eq(assetId),
	)
}

func (r operationRepositoryImpl) ListOperationsByTxId(
	ctx context.Context, txId []byte,
) ([]domain.Operation, error) {
	ops, err := r.findOperations(ctx, nil, false)
	if err != nil {
		return nil, err
	}
	matches := make([]domain.Operation, 0)
	for i := range ops {
		if bytes.Equal(ops[i].TxId, txId) {
			matches = append(matches, ops[i])
		}
	}
	return matches, nil
}

func (r operationRepositoryImpl) ListWaitingOperations(
	ctx context.Context, networkId string,
) ([]domain.Operation, error) {
	return r.findOperations(
		ctx,
		badgerhold.Where("NetworkId").Eq(networkId).
			And("State").Eq(domain.OperationStateWaiting),
		true,
	)
}

func (r operationRepositoryImpl) ListUnresolvedConfirmationOperations(
	ctx context.Context, networkId string,
) ([]domain.Operation, error) {
	ops, err := r.findOperations(
		ctx,
		badgerhold.Where("NetworkId").Eq(networkId).
			And("TracksConfirmations").Eq(true),
		true,
	)
	if err != nil {
		return nil, err
	}
	unresolved := make([]domain.Operation, 0, len(ops))
	for i := range ops {
		if ops[i].IsTerminal() || ops[i].CompletedAt > 0 {
			continue
		}
		unresolved = append(unresolved, ops[i])
	}
	return unresolved, nil
}

func (r operationRepositoryImpl) ListExpiredApprovals(
	ctx context.Context, networkId string, now int64,
) ([]domain.Operation, error) {
	ops, err := r.findOperations(
		ctx,
		badgerhold.Where("NetworkId").Eq(networkId).
			And("State").Eq(domain.OperationStateConfirmationRequired),
		true,
	)
	if err != nil {
		return nil, err
	}
	expired := make([]domain.Operation, 0, len(ops))
	for i := range ops {
		if ops[i].IsApprovalExpired(now) {
			expired = append(expired, ops[i])
		}
	}
	return expired, nil
}

func (r operationRepositoryImpl) ListOperationsForNetwork(
	ctx context.Context, networkId string,
) ([]domain.Operation, error) {
	return r.findOperations(ctx, badgerhold.Where("NetworkId").Eq(networkId), true)
}

func (r operationRepositoryImpl) UpdateOperation(
	ctx context.Context,
	opId string,
	updateFn func(o *domain.Operation) (*domain.Operation, error),
) error {
	op, err := r.GetOperation(ctx, opId)
	if err != nil {
		return err
	}

	updated, err := updateFn(op)
	if err != nil {
		return err
	}

	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		return r.store.TxUpdate(tx, updated.Id, updated)
	}
	return r.store.Update(updated.Id, updated)
}

func (r operationRepositoryImpl) getOperation(
	ctx context.Context, query *badgerhold.Query,
) (*domain.Operation, error) {
	ops, err := r.findOperations(ctx, query, false)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, domain.ErrOperationNotFound
	}
	return &ops[0], nil
}

func (r operationRepositoryImpl) findOperations(
	ctx context.Context, query *badgerhold.Query, sorted bool,
) ([]domain.Operation, error) {
	var ops []domain.Operation
	var err error
	if ctx.Value(mainTxKey) != nil {
		tx := ctx.Value(mainTxKey).(*badger.Txn)
		err = r.store.TxFind(tx, &ops, query)
	} else {
		err = r.store.Find(&ops, query)
	}
	if err != nil {
		return nil, err
	}
	if sorted {
		sort.Slice(ops, func(i, j int) bool {
			return ops[i].CreatedAt < ops[j].CreatedAt
		})
	}
	return ops, nil
}
