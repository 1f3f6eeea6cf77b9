package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/walletd-network/walletd/internal/config"
	"github.com/walletd-network/walletd/internal/core/application"
	"github.com/walletd-network/walletd/internal/core/ports"
	dbbadger "github.com/walletd-network/walletd/internal/infrastructure/storage/db/badger"
	"github.com/walletd-network/walletd/pkg/crawler"
	"github.com/walletd-network/walletd/pkg/stats"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	repoManager, err := dbbadger.NewRepoManager(config.GetDbDir(), nil)
	if err != nil {
		log.WithError(err).Panic("error while opening db")
	}
	defer repoManager.Close()

	registrySvc := application.NewRegistryService(repoManager)
	ledgerSvc := application.NewLedgerService(repoManager)
	approvalSvc := application.NewApprovalService(repoManager)
	updater := application.NewConfirmationUpdater(
		repoManager, config.GetDuration(config.ConfirmationIntervalKey)*time.Millisecond,
	)

	// Executor backends register their handlers here. Without any the queue
	// idles and operations stay waiting until a backend is attached.
	handlers := ports.HandlerTable{}
	queue := application.NewOperationQueue(repoManager, handlers)

	// Audit the ledger on startup, a drifted balance points at a bug or a
	// partially restored backup.
	if mismatches, err := ledgerSvc.ReconcileBalances(context.Background()); err != nil {
		log.WithError(err).Warn("error while auditing ledger")
	} else if len(mismatches) > 0 {
		log.Warnf("ledger audit found %d drifted accounts", len(mismatches))
	}

	crawlerSvc := crawler.NewService(crawler.Opts{
		IntervalInMilliseconds: config.GetInt(config.ConfirmationIntervalKey),
		RequestsPerSecond:      1,
		ErrorHandler: func(err error) {
			log.WithError(err).Warn("crawler error")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	if config.GetBool(config.EnableProfilerKey) {
		interval := config.GetDuration(config.StatsIntervalKey) * time.Second
		stats.EnableMemoryStatistics(ctx, interval)
	}

	g.Go(func() error {
		return runQueue(gctx, repoManager, registrySvc, queue, len(handlers) > 0)
	})
	g.Go(func() error {
		return runConfirmations(gctx, registrySvc, updater, approvalSvc)
	})
	g.Go(func() error {
		consumeCrawlerEvents(gctx, crawlerSvc, updater)
		return nil
	})

	go crawlerSvc.Start()

	log.Info("daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Debug("shutting down")
	crawlerSvc.Stop()
	cancel()
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.WithError(err).Error("error while shutting down")
	}
	log.Debug("exiting")
}

func runQueue(
	ctx context.Context,
	repoManager ports.RepoManager,
	registrySvc application.RegistryService,
	queue *application.OperationQueue,
	hasHandlers bool,
) error {
	if !hasHandlers {
		log.Debug("no executor handlers configured, operation queue idle")
		return nil
	}

	interval := config.GetDuration(config.QueueIntervalKey) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			networks, err := registrySvc.ListNetworks(ctx)
			if err != nil {
				log.WithError(err).Warn("listing networks")
				continue
			}
			for _, network := range networks {
				if _, _, err := queue.RunWaiting(ctx, network.Id); err != nil {
					log.WithError(err).Warnf(
						"running waiting operations of network %s", network.Name,
					)
				}
			}
		}
	}
}

func runConfirmations(
	ctx context.Context,
	registrySvc application.RegistryService,
	updater *application.ConfirmationUpdater,
	approvalSvc application.ApprovalService,
) error {
	interval := config.GetDuration(config.ConfirmationIntervalKey) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			networks, err := registrySvc.ListNetworks(ctx)
			if err != nil {
				log.WithError(err).Warn("listing networks")
				continue
			}
			now := time.Now().Unix()
			for _, network := range networks {
				if _, err := updater.Poll(ctx, network.Id); err != nil {
					log.WithError(err).Warnf(
						"reconciling confirmations of network %s", network.Name,
					)
				}
				if _, err := approvalSvc.SweepExpired(ctx, network.Id, now); err != nil {
					log.WithError(err).Warnf(
						"sweeping expired approvals of network %s", network.Name,
					)
				}
			}
		}
	}
}

func consumeCrawlerEvents(
	ctx context.Context,
	crawlerSvc crawler.Service,
	updater *application.ConfirmationUpdater,
) {
	for event := range crawlerSvc.GetEventChannel() {
		switch e := event.(type) {
		case crawler.BlockEvent:
			if err := updater.RecordBlockNumber(ctx, e.NetworkId, e.BlockNumber); err != nil {
				log.WithError(err).Warn("recording block number")
			}
		case crawler.TransactionEvent:
			if err := updater.RecordTxBlock(ctx, e.TxId, e.BlockNumber); err != nil {
				log.WithError(err).Warn("recording tx block")
			}
		case crawler.QuitEvent:
			return
		}
	}
}
