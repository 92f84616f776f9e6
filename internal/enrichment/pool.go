package enrichment

import (
	"context"
	"sync"
	"time"

	"whale-tracker/internal/domain"
)

// Lookup is one enrichment request: a qualifying trade joined with one of
// its participant accounts.
type Lookup struct {
	Trade   domain.TradeEvent
	Account string
}

// Result pairs a lookup with the snapshot that resolved it. Err is non-nil
// when the lookup failed; Snapshot is then the zero snapshot, and the caller
// still emits the record.
type Result struct {
	Lookup   Lookup
	Snapshot domain.PositionSnapshot
	Err      error
}

// Pool issues lookups with bounded concurrency and delivers results on a
// completion channel in whatever order the calls finish. One Pool serves the
// whole pipeline lifetime; it survives feed reconnects.
type Pool struct {
	client  Client
	timeout time.Duration
	sem     chan struct{}
	results chan Result
	wg      sync.WaitGroup
}

// NewPool creates a pool issuing at most concurrency lookups at once. Each
// call is bounded by timeout when timeout is positive.
func NewPool(client Client, concurrency int, timeout time.Duration) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		client:  client,
		timeout: timeout,
		sem:     make(chan struct{}, concurrency),
		results: make(chan Result, concurrency*4),
	}
}

// Results returns the completion channel. It is closed by Close.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Submit schedules one lookup and returns immediately. If ctx is cancelled
// before the lookup completes, no result is delivered: partial records are
// not emitted on shutdown.
func (p *Pool) Submit(ctx context.Context, lu Lookup) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-p.sem }()

		callCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		res := Result{
			Lookup:   lu,
			Snapshot: domain.ZeroSnapshot(lu.Account, lu.Trade.Coin),
		}
		positions, err := p.client.Fetch(callCtx, lu.Account)
		if err != nil {
			res.Err = err
		} else {
			res.Snapshot = positions.ForCoin(lu.Trade.Coin)
		}

		if ctx.Err() != nil {
			return
		}
		select {
		case p.results <- res:
		case <-ctx.Done():
		}
	}()
}

// Close waits for in-flight lookups and closes the results channel. No
// Submit may be issued after Close.
func (p *Pool) Close() {
	p.wg.Wait()
	close(p.results)
}
