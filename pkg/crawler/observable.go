package crawler

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/walletd-network/walletd/internal/core/ports"
	"golang.org/x/time/rate"
)

const (
	New       Status = "NEW"
	Waiting   Status = "WAITING"
	Processed Status = "PROCESSED"
)

type Status string

type observableStatus struct {
	sync.RWMutex
	status Status
}

func NewObservableStatus() *observableStatus {
	return &observableStatus{
		status: New,
	}
}

func (o *observableStatus) Get() Status {
	o.RLock()
	defer o.RUnlock()
	return o.status
}

func (o *observableStatus) Set(status Status) {
	o.Lock()
	defer o.Unlock()
	o.status = status
}

// Observable is something worth polling on the external network.
type Observable interface {
	observe(
		errChan chan error,
		eventChan chan Event,
		observableStatus *observableStatus,
		rateLimiter *rate.Limiter,
	)
	key() string
}

// NetworkObservable watches the head of a network and emits a BlockEvent
// every time it advances.
type NetworkObservable struct {
	NetworkId string
	Source    ports.BlockSource

	lastBlock uint64
}

func (n *NetworkObservable) observe(
	errChan chan error,
	eventChan chan Event,
	observableStatus *observableStatus,
	rateLimiter *rate.Limiter,
) {
	if n == nil {
		return
	}

	observableStatus.Set(Waiting)
	if err := rateLimiter.Wait(context.Background()); err != nil {
		errChan <- err
		return
	}

	block, err := n.Source.BlockNumber(context.Background())
	if err != nil {
		errChan <- err
		return
	}

	observableStatus.Set(Processed)

	if block == n.lastBlock {
		return
	}
	n.lastBlock = block

	eventChan <- BlockEvent{
		NetworkId:   n.NetworkId,
		BlockNumber: block,
	}
}

func (n *NetworkObservable) key() string {
	return n.NetworkId
}

// TransactionObservable watches a broadcasted transaction until it is seen
// included in a block.
type TransactionObservable struct {
	TxId   []byte
	Source ports.TxStatusSource
}

func (t *TransactionObservable) observe(
	errChan chan error,
	eventChan chan Event,
	observableStatus *observableStatus,
	rateLimiter *rate.Limiter,
) {
	if t == nil {
		return
	}

	observableStatus.Set(Waiting)
	if err := rateLimiter.Wait(context.Background()); err != nil {
		errChan <- err
		return
	}

	block, err := t.Source.TxBlock(context.Background(), t.TxId)
	if err != nil {
		errChan <- err
		return
	}

	observableStatus.Set(Processed)

	if block == 0 {
		return
	}

	eventChan <- TransactionEvent{
		TxId:        t.TxId,
		BlockNumber: block,
	}
}

func (t *TransactionObservable) key() string {
	return hex.EncodeToString(t.TxId)
}
