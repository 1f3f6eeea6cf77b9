package crawler

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeBlockSource struct {
	block uint64
}

func (s *fakeBlockSource) BlockNumber(_ context.Context) (uint64, error) {
	return atomic.LoadUint64(&s.block), nil
}

func (s *fakeBlockSource) advance() {
	atomic.AddUint64(&s.block, 1)
}

type fakeTxSource struct {
	block uint64
}

func (s *fakeTxSource) TxBlock(_ context.Context, _ []byte) (uint64, error) {
	return atomic.LoadUint64(&s.block), nil
}

func newTestCrawler(t *testing.T) Service {
	svc := NewService(Opts{
		IntervalInMilliseconds: 10,
		RequestsPerSecond:      1000,
		ErrorHandler: func(err error) {
			t.Logf("crawler error: %v", err)
		},
	})
	go svc.Start()
	return svc
}

func nextEvent(t *testing.T, svc Service) Event {
	t.Helper()
	select {
	case event := <-svc.GetEventChannel():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event within deadline")
		return nil
	}
}

func TestNetworkObservableEmitsOnNewBlock(t *testing.T) {
	svc := newTestCrawler(t)
	source := &fakeBlockSource{block: 10}

	svc.AddObservable(&NetworkObservable{
		NetworkId: "testnet",
		Source:    source,
	})

	event := nextEvent(t, svc)
	blockEvent, ok := event.(BlockEvent)
	require.True(t, ok)
	require.Equal(t, "testnet", blockEvent.NetworkId)
	require.Equal(t, uint64(10), blockEvent.BlockNumber)

	source.advance()
	event = nextEvent(t, svc)
	require.Equal(t, uint64(11), event.(BlockEvent).BlockNumber)

	svc.Stop()
	for event := range svc.GetEventChannel() {
		if _, ok := event.(QuitEvent); ok {
			return
		}
	}
}

func TestNetworkObservableSilentOnSameBlock(t *testing.T) {
	svc := newTestCrawler(t)
	source := &fakeBlockSource{block: 5}

	svc.AddObservable(&NetworkObservable{
		NetworkId: "testnet",
		Source:    source,
	})

	// The first observation always reports the current head.
	event := nextEvent(t, svc)
	require.Equal(t, uint64(5), event.(BlockEvent).BlockNumber)

	// An unchanged head stays silent.
	select {
	case event := <-svc.GetEventChannel():
		t.Fatalf("unexpected event: %v", event)
	case <-time.After(100 * time.Millisecond):
	}

	svc.Stop()
}

func TestTransactionObservableEmitsOnceMined(t *testing.T) {
	svc := newTestCrawler(t)
	source := &fakeTxSource{}
	txid := bytes.Repeat([]byte{0x01}, 32)

	observable := &TransactionObservable{TxId: txid, Source: source}
	svc.AddObservable(observable)

	// Not mined yet, nothing to report.
	select {
	case event := <-svc.GetEventChannel():
		t.Fatalf("unexpected event: %v", event)
	case <-time.After(100 * time.Millisecond):
	}

	atomic.StoreUint64(&source.block, 77)
	event := nextEvent(t, svc)
	txEvent, ok := event.(TransactionEvent)
	require.True(t, ok)
	require.True(t, bytes.Equal(txid, txEvent.TxId))
	require.Equal(t, uint64(77), txEvent.BlockNumber)

	svc.RemoveObservable(observable)
	svc.Stop()
}

func TestStopRightAfterAdd(t *testing.T) {
	svc := newTestCrawler(t)
	svc.AddObservable(&NetworkObservable{
		NetworkId: "testnet",
		Source:    &fakeBlockSource{block: 1},
	})

	// Stopping before the observation loop had a chance to run must still
	// wait for it and end with the quit marker.
	svc.Stop()

	for {
		select {
		case event := <-svc.GetEventChannel():
			if _, ok := event.(QuitEvent); ok {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no quit event after stop")
		}
	}
}
