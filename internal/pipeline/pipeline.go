// Package pipeline wires the feed, decoder, filter, enrichment pool and sink
// into the ingestion loop and supervises the connection lifecycle.
package pipeline

import (
	"context"
	"log"
	"time"

	"whale-tracker/internal/domain"
	"whale-tracker/internal/enrichment"
	"whale-tracker/internal/feed"
	"whale-tracker/internal/observability"
	"whale-tracker/internal/sink"
)

// FeedConn is the pipeline's view of one connection epoch. The frame channel
// is closed when the transport drops; Err then reports the cause.
type FeedConn interface {
	Frames() <-chan []byte
	Err() error
	Close() error
}

// Dialer opens one feed connection epoch subscribed to coins.
type Dialer func(ctx context.Context, coins []string) (FeedConn, error)

// Options contains the collaborators and policy for creating a Pipeline.
type Options struct {
	Dial    Dialer
	Coins   []string
	Decoder *feed.Decoder
	Filter  feed.Filter
	Pool    *enrichment.Pool
	Sink    *sink.Sink
	Display *sink.Display
	Logger  *log.Logger
	Metrics *observability.Metrics

	// ReconnectBaseDelay and ReconnectMaxDelay bound the backoff between
	// connection epochs.
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

// Pipeline drives the loop: decode frame, filter, fan out enrichment, emit
// records. It owns reconnect policy; the feed connection itself never
// retries.
type Pipeline struct {
	dial    Dialer
	coins   []string
	decoder *feed.Decoder
	filter  feed.Filter
	pool    *enrichment.Pool
	sink    *sink.Sink
	display *sink.Display
	logger  *log.Logger
	metrics *observability.Metrics

	reconnectBase time.Duration
	reconnectMax  time.Duration
}

// New creates a Pipeline from options.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	decoder := opts.Decoder
	if decoder == nil {
		decoder = feed.NewDecoder()
	}
	base := opts.ReconnectBaseDelay
	if base <= 0 {
		base = 1 * time.Second
	}
	max := opts.ReconnectMaxDelay
	if max < base {
		max = 30 * time.Second
	}

	return &Pipeline{
		dial:          opts.Dial,
		coins:         append([]string(nil), opts.Coins...),
		decoder:       decoder,
		filter:        opts.Filter,
		pool:          opts.Pool,
		sink:          opts.Sink,
		display:       opts.Display,
		logger:        logger,
		metrics:       opts.Metrics,
		reconnectBase: base,
		reconnectMax:  max,
	}
}

// Run consumes the feed until ctx is cancelled or a persist error escalates.
// Connection drops are recovered by redialing with the same instrument set.
// Decode and lookup failures are logged and never terminate the run.
func (p *Pipeline) Run(ctx context.Context) error {
	emitErr := make(chan error, 1)
	consumerDone := make(chan struct{})
	go p.consumeResults(ctx, emitErr, consumerDone)

	banner := false
	delay := p.reconnectBase
	var runErr error

loop:
	for {
		conn, err := p.dial(ctx, p.coins)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Printf("[pipeline] connect failed: %v (retrying in %v)", err, delay)
			if p.metrics != nil {
				p.metrics.Reconnects.Inc()
			}
			if !sleep(ctx, delay) {
				break
			}
			delay = p.nextDelay(delay)
			continue
		}
		delay = p.reconnectBase

		if !banner && p.display != nil {
			p.display.Banner(p.coins)
			banner = true
		}

		fatal := p.consume(ctx, conn, emitErr)
		conn.Close()
		if fatal != nil {
			runErr = fatal
			break
		}
		if ctx.Err() != nil {
			break
		}

		p.logger.Printf("[pipeline] connection dropped: %v (reconnecting in %v)", conn.Err(), delay)
		if p.metrics != nil {
			p.metrics.Reconnects.Inc()
		}
		if !sleep(ctx, delay) {
			break loop
		}
		delay = p.nextDelay(delay)
	}

	// Let in-flight lookups finish or abandon on cancellation, then close
	// the completion channel so the consumer drains and exits.
	p.pool.Close()
	<-consumerDone

	if runErr == nil {
		select {
		case err := <-emitErr:
			runErr = err
		default:
		}
	}
	return runErr
}

// consume reads frames from one connection epoch. It returns nil when the
// epoch ends or ctx is cancelled, and the escalated error when the sink
// reported a persist failure.
func (p *Pipeline) consume(ctx context.Context, conn FeedConn, emitErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-emitErr:
			return err
		case raw, ok := <-conn.Frames():
			if !ok {
				return nil
			}
			p.handleFrame(ctx, raw)
		}
	}
}

// handleFrame decodes one frame and fans out enrichment for qualifying
// trades, strictly in arrival order up to the filter.
func (p *Pipeline) handleFrame(ctx context.Context, raw []byte) {
	if p.metrics != nil {
		p.metrics.FramesReceived.Inc()
	}

	events, err := p.decoder.Decode(raw)
	if err != nil {
		p.logger.Printf("[pipeline] %v (payload %s)", err, payloadExcerpt(raw))
		if p.metrics != nil {
			p.metrics.DecodeErrors.Inc()
		}
	}

	for _, ev := range events {
		if p.display != nil {
			p.display.Trade(ev)
		}
		if p.metrics != nil {
			p.metrics.TradesObserved.WithLabelValues(ev.Coin).Inc()
		}

		if !p.filter.Passes(ev) {
			continue
		}
		if p.metrics != nil {
			p.metrics.WhaleTrades.WithLabelValues(ev.Coin).Inc()
		}

		for _, account := range ev.Users {
			p.pool.Submit(ctx, enrichment.Lookup{Trade: ev, Account: account})
		}
	}
}

// consumeResults builds and emits records in lookup-completion order. One
// consumer preserves the single-writer contract of the durable log. After a
// persist error it keeps draining without emitting, so in-flight workers
// never block on the completion channel.
func (p *Pipeline) consumeResults(ctx context.Context, emitErr chan<- error, done chan<- struct{}) {
	defer close(done)

	var failed bool
	for res := range p.pool.Results() {
		if failed {
			continue
		}

		if res.Err != nil {
			p.logger.Printf("[pipeline] lookup %s on %s: %v (emitting zeroed snapshot)",
				res.Lookup.Account, res.Lookup.Trade.Coin, res.Err)
			if p.metrics != nil {
				p.metrics.LookupErrors.Inc()
			}
		}

		rec := domain.NewWhaleRecord(res.Lookup.Trade, res.Lookup.Account, res.Snapshot)

		start := time.Now()
		if err := p.sink.Emit(ctx, rec); err != nil {
			p.logger.Printf("[pipeline] emit failed: %v", err)
			failed = true
			emitErr <- err
			continue
		}
		if p.metrics != nil {
			p.metrics.AppendLatency.Observe(time.Since(start).Seconds())
			p.metrics.RecordsEmitted.Inc()
		}
	}
}

func (p *Pipeline) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > p.reconnectMax {
		d = p.reconnectMax
	}
	return d
}

// sleep waits for d, returning false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// payloadExcerpt truncates a raw frame for log context.
func payloadExcerpt(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
