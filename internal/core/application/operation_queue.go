package application

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
	"github.com/walletd-network/walletd/pkg/circuitbreaker"
)

// OperationQueue drains waiting operations and runs them against the
// executor handlers. Each operation is claimed in its own storage
// transaction before its handler is called, so a crash between claim and
// outcome leaves the operation pending with its attempt recorded instead
// of letting a second worker broadcast it again.
type OperationQueue struct {
	repoManager ports.RepoManager
	pipeline    *operationPipeline
	handlers    ports.HandlerTable
	cb          *gobreaker.CircuitBreaker
}

// NewOperationQueue returns a queue dispatching to the given handler table.
func NewOperationQueue(
	repoManager ports.RepoManager, handlers ports.HandlerTable,
) *OperationQueue {
	return &OperationQueue{
		repoManager: repoManager,
		pipeline:    newOperationPipeline(repoManager),
		handlers:    handlers,
		cb:          circuitbreaker.NewCircuitBreaker("executor"),
	}
}

// RunWaiting processes every operation currently waiting in the given
// network, oldest first. It returns how many operations ran through their
// handler and how many were marked failed. A failing operation never stops
// the rest of the batch.
func (q *OperationQueue) RunWaiting(
	ctx context.Context, networkId string,
) (int, int, error) {
	waiting, err := q.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return q.repoManager.OperationRepository().
				ListWaitingOperations(ctx, networkId)
		},
	)
	if err != nil {
		return 0, 0, err
	}
	ops := waiting.([]domain.Operation)

	succeeded, failed := 0, 0
	for i := range ops {
		switch q.runOne(ctx, ops[i].Id) {
		case outcomeSucceeded:
			succeeded++
		case outcomeFailed:
			failed++
		}
	}
	if succeeded+failed > 0 {
		log.Debugf(
			"operation queue: network %s ran %d operations, %d failed",
			networkId, succeeded+failed, failed,
		)
	}
	return succeeded, failed, nil
}

type queueOutcome int

const (
	outcomeSkipped queueOutcome = iota
	outcomeSucceeded
	outcomeFailed
)

func (q *OperationQueue) runOne(ctx context.Context, opId string) queueOutcome {
	op, err := q.claim(ctx, opId)
	if err == domain.ErrOperationNotClaimable {
		// Another worker got there first.
		return outcomeSkipped
	}
	if err != nil {
		log.WithError(err).Warnf("operation queue: claiming %s", opId)
		return outcomeSkipped
	}

	handler, ok := q.handlers[op.Kind]
	if !ok {
		q.fail(ctx, opId, fmt.Sprintf("no executor handler for %s operations", op.Kind))
		return outcomeFailed
	}

	// The handler runs outside any storage transaction, it may take
	// arbitrarily long talking to the network.
	res, err := q.cb.Execute(func() (interface{}, error) {
		return handler(ctx, *op)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		// The backend looks down, put the operation back in line rather
		// than burning it on an error it never caused.
		q.requeue(ctx, opId)
		return outcomeSkipped
	}
	if err != nil {
		log.WithError(err).Warnf("operation queue: executing %s %s", op.Kind, opId)
		q.fail(ctx, opId, err.Error())
		return outcomeFailed
	}

	var result *ports.ExecutionResult
	if res != nil {
		result = res.(*ports.ExecutionResult)
	}
	if err := q.applyResult(ctx, opId, result); err != nil {
		log.WithError(err).Warnf("operation queue: recording outcome of %s", opId)
		q.fail(ctx, opId, err.Error())
		return outcomeFailed
	}
	return outcomeSucceeded
}

func (q *OperationQueue) claim(
	ctx context.Context, opId string,
) (*domain.Operation, error) {
	claimed, err := q.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			var op *domain.Operation
			if err := q.repoManager.OperationRepository().UpdateOperation(
				ctx, opId,
				func(o *domain.Operation) (*domain.Operation, error) {
					if err := o.Claim(time.Now().Unix()); err != nil {
						return nil, err
					}
					op = o
					return o, nil
				},
			); err != nil {
				return nil, err
			}
			return op, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return claimed.(*domain.Operation), nil
}

// applyResult persists what the executor reported. A nil result means the
// handler drove the operation through service calls of its own, token
// imports do this, and the row already reflects the final state.
func (q *OperationQueue) applyResult(
	ctx context.Context, opId string, res *ports.ExecutionResult,
) error {
	_, err := q.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return nil, q.repoManager.OperationRepository().UpdateOperation(
				ctx, opId,
				func(o *domain.Operation) (*domain.Operation, error) {
					if res == nil {
						if !o.IsTerminal() {
							log.Warnf(
								"operation queue: handler for %s %s returned no result",
								o.Kind, o.Id,
							)
						}
						return o, nil
					}

					if err := o.MarkPerformed(); err != nil {
						return nil, err
					}
					if len(res.TxId) > 0 {
						if err := domain.ValidateTxId(res.TxId); err != nil {
							return nil, err
						}
						o.TxId = res.TxId
					}
					if res.BlockNumber > 0 {
						o.BlockNumber = res.BlockNumber
					}
					if len(res.Address) > 0 {
						if err := q.recordExternalAddress(ctx, o, res.Address); err != nil {
							return nil, err
						}
					}
					if res.Broadcasted {
						if err := o.MarkBroadcasted(); err != nil {
							return nil, err
						}
					}
					if res.Completed {
						if err := q.pipeline.resolve(ctx, o); err != nil {
							return nil, err
						}
					}
					return o, nil
				},
			)
		},
	)
	return err
}

// recordExternalAddress must run inside a storage transaction. For address
// creations the reported address becomes the address row's on-network
// value, for token creations it anchors the asset to its contract.
func (q *OperationQueue) recordExternalAddress(
	ctx context.Context, op *domain.Operation, value []byte,
) error {
	if err := domain.ValidateAddressValue(value); err != nil {
		return err
	}
	op.ExternalAddress = value

	switch op.Kind {
	case domain.OperationKindCreateAddress:
		return q.repoManager.AddressRepository().UpdateAddress(
			ctx, op.AddressId,
			func(a *domain.Address) (*domain.Address, error) {
				a.Value = value
				return a, nil
			},
		)
	case domain.OperationKindCreateToken:
		return q.repoManager.AssetRepository().UpdateAsset(
			ctx, op.AssetId,
			func(a *domain.Asset) (*domain.Asset, error) {
				a.ExternalId = value
				return a, nil
			},
		)
	default:
		return nil
	}
}

func (q *OperationQueue) fail(ctx context.Context, opId, reason string) {
	if _, err := q.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return nil, q.repoManager.OperationRepository().UpdateOperation(
				ctx, opId,
				func(o *domain.Operation) (*domain.Operation, error) {
					if o.IsTerminal() {
						return o, nil
					}
					if err := o.MarkFailed(reason); err != nil {
						return nil, err
					}
					return o, nil
				},
			)
		},
	); err != nil {
		log.WithError(err).Errorf("operation queue: marking %s failed", opId)
	}
}

func (q *OperationQueue) requeue(ctx context.Context, opId string) {
	if _, err := q.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return nil, q.repoManager.OperationRepository().UpdateOperation(
				ctx, opId,
				func(o *domain.Operation) (*domain.Operation, error) {
					if err := o.Requeue(); err != nil {
						return nil, err
					}
					return o, nil
				},
			)
		},
	); err != nil {
		log.WithError(err).Errorf("operation queue: requeueing %s", opId)
	}
}
