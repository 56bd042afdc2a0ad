// Package dashboard drives the staff view of open orders: a poller that
// refreshes the pending list and helpers to search and page through orders.
package dashboard

import (
	"context"
	"time"

	"github.com/kiwari-pos/orderledger/internal/ledger"
)

// DefaultInterval is how often the pending list is refreshed.
const DefaultInterval = 10 * time.Second

// Poller fetches orders on a fixed interval and hands each snapshot to
// OnRefresh. While Paused reports true a tick is skipped; the next refresh
// happens one interval later.
type Poller struct {
	Interval  time.Duration
	Paused    func() bool
	Fetch     func(ctx context.Context) ([]ledger.Order, error)
	OnRefresh func(orders []ledger.Order)
	OnError   func(err error)
}

// Handle stops a running Poller.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop ends the poll loop and waits for an in-flight refresh to finish.
// It is safe to call more than once.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed once the poll loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Start refreshes once right away, then every interval until ctx is done or
// Stop is called.
func (p *Poller) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	go func() {
		defer close(h.done)

		p.refresh(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if p.Paused != nil && p.Paused() {
					continue
				}
				p.refresh(ctx)
			}
		}
	}()
	return h
}

func (p *Poller) refresh(ctx context.Context) {
	orders, err := p.Fetch(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if p.OnError != nil {
			p.OnError(err)
		}
		return
	}
	if p.OnRefresh != nil {
		p.OnRefresh(orders)
	}
}
