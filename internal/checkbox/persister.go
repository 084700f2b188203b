package checkbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const persistTimeout = 10 * time.Second

// Persister saves a Store on a fixed interval. Failures are logged and left for the next tick.
type Persister struct {
	store    *Store
	clock    clockwork.Clock
	interval time.Duration

	// at most one failure log per window; counts stay accurate in metrics
	errorLog rate.Sometimes

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewPersister creates a Persister. Call Start to begin ticking.
func NewPersister(store *Store, clock clockwork.Clock, interval time.Duration) *Persister {
	return &Persister{
		store:    store,
		clock:    clock,
		interval: interval,
		errorLog: rate.Sometimes{First: 1, Interval: time.Minute},
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background ticker. Call it at most once, before Stop.
func (p *Persister) Start() {
	p.done = make(chan struct{})
	ticker := p.clock.NewTicker(p.interval)
	go p.run(ticker)
}

func (p *Persister) run(ticker clockwork.Ticker) {
	defer close(p.done)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			p.persist()
		case <-p.stopCh:
			return
		}
	}
}

// Stop halts the ticker, waits for an in-flight save, then saves once more.
func (p *Persister) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if p.done != nil {
			<-p.done
		}
		p.persist()
		slog.Info("Final state flush complete")
	})
}

func (p *Persister) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := p.store.Persist(ctx); err != nil {
		p.errorLog.Do(func() {
			slog.Error("Failed to persist state", "error", err)
		})
		return
	}
	slog.Debug("State persisted")
}
