package dbbadger

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
	"github.com/walletd-network/walletd/internal/core/domain"
	"github.com/walletd-network/walletd/internal/core/ports"
)

const (
	// context keys the repositories use to join an open transaction.
	mainTxKey   = "tx"
	statusTxKey = "stx"

	// maxTxRetries bounds how often a serialized transaction is replayed
	// after a write conflict. Each retry backs off a little longer so
	// contending writers spread out instead of colliding again.
	maxTxRetries       = 5
	txRetryBaseBackoff = 5 * time.Millisecond
)

type repoManager struct {
	store       *badgerhold.Store
	statusStore *badgerhold.Store

	assetRepository         domain.AssetRepository
	accountRepository       domain.AccountRepository
	addressRepository       domain.AddressRepository
	operationRepository     domain.OperationRepository
	networkStatusRepository domain.NetworkStatusRepository
}

// NewRepoManager opens (or creates if not exists) the badger stores on disk
// under the given base data dir. The network status cursor lives in its own
// store so the block heartbeat never contends with ledger transactions.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	mainDb, err := createDb(filepath.Join(baseDbDir, "main"), logger)
	if err != nil {
		return nil, fmt.Errorf("opening main db: %w", err)
	}

	statusDb, err := createDb(filepath.Join(baseDbDir, "status"), logger)
	if err != nil {
		return nil, fmt.Errorf("opening status db: %w", err)
	}

	return &repoManager{
		store:                   mainDb,
		statusStore:             statusDb,
		assetRepository:         newAssetRepositoryImpl(mainDb),
		accountRepository:       newAccountRepositoryImpl(mainDb),
		addressRepository:       newAddressRepositoryImpl(mainDb),
		operationRepository:     newOperationRepositoryImpl(mainDb),
		networkStatusRepository: newNetworkStatusRepositoryImpl(statusDb),
	}, nil
}

func (d *repoManager) AssetRepository() domain.AssetRepository {
	return d.assetRepository
}

func (d *repoManager) AccountRepository() domain.AccountRepository {
	return d.accountRepository
}

func (d *repoManager) AddressRepository() domain.AddressRepository {
	return d.addressRepository
}

func (d *repoManager) OperationRepository() domain.OperationRepository {
	return d.operationRepository
}

func (d *repoManager) NetworkStatusRepository() domain.NetworkStatusRepository {
	return d.networkStatusRepository
}

func (d *repoManager) Close() {
	if err := d.store.Close(); err != nil {
		log.WithError(err).Warn("closing main db")
	}
	if err := d.statusStore.Close(); err != nil {
		log.WithError(err).Warn("closing status db")
	}
}

func (d *repoManager) RunTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	return d.runTransaction(ctx, d.store, mainTxKey, readOnly, handler)
}

func (d *repoManager) RunStatusTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	return d.runTransaction(ctx, d.statusStore, statusTxKey, readOnly, handler)
}

// runTransaction replays the handler on write conflicts, so handlers must be
// side-effect free outside the store. Once the retries are spent the
// conflict surfaces as domain.ErrTransactionConflict so callers never have
// to match on storage internals.
func (d *repoManager) runTransaction(
	ctx context.Context,
	store *badgerhold.Store,
	txKey string,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	for attempt := 0; ; attempt++ {
		tx := store.Badger().NewTransaction(!readOnly)
		res, err := handler(context.WithValue(ctx, txKey, tx))
		if err != nil {
			tx.Discard()
			return nil, err
		}
		if readOnly {
			tx.Discard()
			return res, nil
		}

		err = tx.Commit()
		if err == nil {
			return res, nil
		}
		tx.Discard()
		if err != badger.ErrConflict {
			return nil, err
		}
		if attempt >= maxTxRetries {
			return nil, domain.ErrTransactionConflict
		}

		backoff := txRetryBaseBackoff << attempt
		backoff += time.Duration(rand.Int63n(int64(backoff)))
		log.Debugf("db: retrying conflicting transaction in %s, attempt %d", backoff, attempt+1)
		time.Sleep(backoff)
	}
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	opts.Compression = options.ZSTD

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
