package crawler

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	eventQueueMaxSize = 100
	errorQueueMaxSize = 10
)

// Service watches a set of Observables and publishes what it sees on a
// shared event channel.
type Service interface {
	Start()
	Stop()
	AddObservable(observable Observable)
	RemoveObservable(observable Observable)
	GetEventChannel() chan Event
}

type blockchainCrawler struct {
	interval     int
	rateLimiter  *rate.Limiter
	errChan      chan error
	eventChan    chan Event
	observables  map[string]*observableHandler
	errorHandler func(err error)
	mutex        *sync.RWMutex
	wg           *sync.WaitGroup
}

// Opts defines the parameters needed for creating a crawler service with
// the NewService method.
type Opts struct {
	IntervalInMilliseconds int
	// RequestsPerSecond caps how often the observables may hit their
	// backing source, shared between all of them.
	RequestsPerSecond float64
	ErrorHandler      func(err error)
}

// NewService returns a crawler ready to watch for network activity. Use
// Start and Stop methods to manage it.
func NewService(opts Opts) Service {
	return &blockchainCrawler{
		interval:     opts.IntervalInMilliseconds,
		rateLimiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		errChan:      make(chan error, errorQueueMaxSize),
		eventChan:    make(chan Event, eventQueueMaxSize),
		observables:  map[string]*observableHandler{},
		errorHandler: opts.ErrorHandler,
		mutex:        &sync.RWMutex{},
		wg:           &sync.WaitGroup{},
	}
}

// Start routes observation errors to the error handler until Stop is
// called.
func (bc *blockchainCrawler) Start() {
	for err := range bc.errChan {
		go bc.errorHandler(err)
	}
}

// Stop stops every running observation and publishes a final QuitEvent so
// consumers know no further events will follow.
func (bc *blockchainCrawler) Stop() {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()
	for _, obsHandler := range bc.observables {
		go obsHandler.stop()
	}
	bc.wg.Wait()
	bc.eventChan <- QuitEvent{}
	close(bc.errChan)
}

// GetEventChannel returns the channel the crawler publishes events on.
func (bc *blockchainCrawler) GetEventChannel() chan Event {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()
	return bc.eventChan
}

// AddObservable starts watching the given Observable unless it is already
// watched.
func (bc *blockchainCrawler) AddObservable(observable Observable) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if _, ok := bc.observables[observable.key()]; !ok {
		obsHandler := newObservableHandler(
			observable,
			bc.wg,
			bc.interval,
			bc.eventChan,
			bc.errChan,
			bc.rateLimiter,
		)

		bc.observables[observable.key()] = obsHandler
		// Register before the goroutine runs so a Stop right after Add
		// cannot slip past the wait.
		bc.wg.Add(1)
		go obsHandler.start()
	}
}

// RemoveObservable stops watching the given Observable.
func (bc *blockchainCrawler) RemoveObservable(observable Observable) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if obsHandler, ok := bc.observables[observable.key()]; ok {
		obsHandler.stop()
		delete(bc.observables, observable.key())
	}
}

type observableHandler struct {
	observable       Observable
	wg               *sync.WaitGroup
	ticker           *time.Ticker
	eventChan        chan Event
	errChan          chan error
	stopChan         chan int
	observableStatus *observableStatus
	rateLimiter      *rate.Limiter
}

func newObservableHandler(
	observable Observable,
	wg *sync.WaitGroup,
	interval int,
	eventChan chan Event,
	errChan chan error,
	rateLimiter *rate.Limiter,
) *observableHandler {
	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	stopChan := make(chan int, 1)

	return &observableHandler{
		observable,
		wg,
		ticker,
		eventChan,
		errChan,
		stopChan,
		NewObservableStatus(),
		rateLimiter,
	}
}

func (oh *observableHandler) start() {
	oh.logAction("start")
	for {
		select {
		case <-oh.ticker.C:
			if oh.observableStatus.Get() != Waiting {
				oh.observable.observe(
					oh.errChan,
					oh.eventChan,
					oh.observableStatus,
					oh.rateLimiter,
				)
			}
		case <-oh.stopChan:
			oh.ticker.Stop()
			close(oh.stopChan)
			return
		}
	}
}

func (oh *observableHandler) stop() {
	oh.logAction("stop")
	oh.stopChan <- 1
	oh.wg.Done()
}

func (oh *observableHandler) logAction(action string) {
	switch oh.observable.(type) {
	case *NetworkObservable:
		log.Debugf("%s observing network: %v", action, oh.observable.key())
	case *TransactionObservable:
		log.Debugf("%s observing tx: %v", action, oh.observable.key())
	}
}
