package application

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
)

// ApprovalService gates withdrawals behind an out-of-band manual
// confirmation. A gated operation sits outside the queue until it is
// approved, denied or its deadline passes, denial and timeout both restore
// the escrowed funds.
type ApprovalService interface {
	RequireApproval(ctx context.Context, opId string, deadline int64) (*domain.Operation, error)
	Approve(ctx context.Context, opId string) (*domain.Operation, error)
	Deny(ctx context.Context, opId string) (*domain.Operation, error)
	// SweepExpired cancels every gated operation whose deadline has passed
	// and returns how many were cancelled.
	SweepExpired(ctx context.Context, networkId string, now int64) (int, error)
}

type approvalService struct {
	repoManager ports.RepoManager
	pipeline    *operationPipeline
}

// NewApprovalService returns an ApprovalService backed by the given
// repositories.
func NewApprovalService(repoManager ports.RepoManager) ApprovalService {
	return &approvalService{
		repoManager: repoManager,
		pipeline:    newOperationPipeline(repoManager),
	}
}

func (s *approvalService) RequireApproval(
	ctx context.Context, opId string, deadline int64,
) (*domain.Operation, error) {
	return s.update(ctx, opId, func(ctx context.Context, o *domain.Operation) error {
		// Only operations spending user funds need a human in the loop.
		if o.Kind != domain.OperationKindWithdraw {
			return domain.ErrApprovalNotRequired
		}
		return o.RequireApproval(deadline)
	})
}

func (s *approvalService) Approve(
	ctx context.Context, opId string,
) (*domain.Operation, error) {
	op, err := s.update(ctx, opId, func(ctx context.Context, o *domain.Operation) error {
		return o.Approve()
	})
	if err != nil {
		return nil, err
	}
	log.Infof("operation %s manually approved", opId)
	return op, nil
}

func (s *approvalService) Deny(
	ctx context.Context, opId string,
) (*domain.Operation, error) {
	return s.update(ctx, opId, func(ctx context.Context, o *domain.Operation) error {
		return s.pipeline.cancel(ctx, o, "manual confirmation cancelled")
	})
}

func (s *approvalService) SweepExpired(
	ctx context.Context, networkId string, now int64,
) (int, error) {
	expired, err := s.repoManager.RunTransaction(
		ctx, readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.OperationRepository().
				ListExpiredApprovals(ctx, networkId, now)
		},
	)
	if err != nil {
		return 0, err
	}
	ops := expired.([]domain.Operation)

	cancelled := 0
	for i := range ops {
		if _, err := s.update(
			ctx, ops[i].Id,
			func(ctx context.Context, o *domain.Operation) error {
				return s.pipeline.cancel(ctx, o, "manual confirmation timed out")
			},
		); err != nil {
			log.WithError(err).Warnf(
				"approval sweep: cancelling %s", ops[i].Id,
			)
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		log.Infof(
			"approval sweep: cancelled %d timed out operations in network %s",
			cancelled, networkId,
		)
	}
	return cancelled, nil
}

func (s *approvalService) update(
	ctx context.Context, opId string,
	apply func(ctx context.Context, o *domain.Operation) error,
) (*domain.Operation, error) {
	res, err := s.repoManager.RunTransaction(
		ctx, !readOnlyTx,
		func(ctx context.Context) (interface{}, error) {
			var op *domain.Operation
			if err := s.repoManager.OperationRepository().UpdateOperation(
				ctx, opId,
				func(o *domain.Operation) (*domain.Operation, error) {
					if err := apply(ctx, o); err != nil {
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
	return res.(*domain.Operation), nil
}
