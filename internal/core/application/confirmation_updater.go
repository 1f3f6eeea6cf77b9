package application

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
	"golang.org/x/time/rate"
)

// ConfirmationUpdater reconciles broadcasted operations against the network
// head. Block heights come in through RecordBlockNumber and RecordTxBlock,
// Poll then resolves every tracked operation whose transaction has sunk deep
// enough. Polling is paced with a rate limiter so a tight caller loop cannot
// hammer the store.
type ConfirmationUpdater struct {
	repoManager ports.RepoManager
	pipeline    *operationPipeline
	limiter     *rate.Limiter
}

// NewConfirmationUpdater returns an updater polling at most once per the
// given interval.
func NewConfirmationUpdater(
	repoManager ports.RepoManager, pollInterval time.Duration,
) *ConfirmationUpdater {
	return &ConfirmationUpdater{
		repoManager: repoManager,
		pipeline:    newOperationPipeline(repoManager),
		limiter:     rate.NewLimiter(rate.Every(pollInterval), 1),
	}
}

// RecordBlockNumber stores the latest observed network head. The status
// store is written outside the main database so the high-frequency
// heartbeat never contends with ledger transactions.
func (u *ConfirmationUpdater) RecordBlockNumber(
	ctx context.Context, networkId string, blockNumber uint64,
) error {
	_, err := u.repoManager.RunStatusTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return nil, u.repoManager.NetworkStatusRepository().UpsertStatus(
				ctx, domain.NetworkStatus{
					NetworkId:   networkId,
					BlockNumber: blockNumber,
					Timestamp:   time.Now().Unix(),
				},
			)
		},
	)
	return err
}

// RecordTxBlock pins the mined block height on every live operation carrying
// the given transaction id.
func (u *ConfirmationUpdater) RecordTxBlock(
	ctx context.Context, txid []byte, blockNumber uint64,
) error {
	if err := domain.ValidateTxId(txid); err != nil {
		return err
	}

	_, err := u.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			ops, err := u.repoManager.OperationRepository().
				ListOperationsByTxId(ctx, txid)
			if err != nil {
				return nil, err
			}
			for i := range ops {
				if ops[i].IsTerminal() {
					continue
				}
				if err := u.repoManager.OperationRepository().UpdateOperation(
					ctx, ops[i].Id,
					func(o *domain.Operation) (*domain.Operation, error) {
						o.BlockNumber = blockNumber
						return o, nil
					},
				); err != nil {
					return nil, err
				}
			}
			return nil, nil
		},
	)
	return err
}

// Poll walks every unresolved confirmation-tracked operation in the network
// and resolves those whose transaction depth exceeds their required
// confirmation count. It returns how many operations were resolved.
func (u *ConfirmationUpdater) Poll(
	ctx context.Context, networkId string,
) (int, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	res, err := u.repoManager.RunStatusTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return u.repoManager.NetworkStatusRepository().GetStatus(ctx, networkId)
		},
	)
	if err != nil {
		return 0, err
	}
	status, _ := res.(*domain.NetworkStatus)
	if status == nil || status.BlockNumber == 0 {
		return 0, nil
	}

	unresolved, err := u.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return u.repoManager.OperationRepository().
				ListUnresolvedConfirmationOperations(ctx, networkId)
		},
	)
	if err != nil {
		return 0, err
	}
	ops := unresolved.([]domain.Operation)

	resolved := 0
	for i := range ops {
		// Each operation settles in its own transaction so one bad row
		// cannot wedge the whole sweep.
		done, err := u.updateOne(ctx, ops[i].Id, status)
		if err != nil {
			log.WithError(err).Warnf(
				"confirmation updater: operation %s", ops[i].Id,
			)
			continue
		}
		if done {
			resolved++
		}
	}
	return resolved, nil
}

func (u *ConfirmationUpdater) updateOne(
	ctx context.Context, opId string, status *domain.NetworkStatus,
) (bool, error) {
	res, err := u.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			resolved := false
			if err := u.repoManager.OperationRepository().UpdateOperation(
				ctx, opId,
				func(o *domain.Operation) (*domain.Operation, error) {
					depth, known := o.Confirmations(status)
					if !known {
						return o, nil
					}
					shouldResolve, err := o.UpdateConfirmations(depth)
					if err != nil {
						return nil, err
					}
					if !shouldResolve {
						return o, nil
					}
					if err := u.pipeline.resolve(ctx, o); err != nil {
						return nil, err
					}
					resolved = true
					return o, nil
				},
			); err != nil {
				return nil, err
			}
			return resolved, nil
		},
	)
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}
