package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whale-tracker/internal/domain"
	"whale-tracker/internal/enrichment"
	"whale-tracker/internal/feed"
	"whale-tracker/internal/sink"
	"whale-tracker/internal/storage"
	"whale-tracker/internal/storage/memory"
)

// fakeConn is one scripted connection epoch.
type fakeConn struct {
	frames chan []byte
	err    error
}

func newFakeConn(dropErr error, frames ...string) *fakeConn {
	ch := make(chan []byte, len(frames))
	for _, f := range frames {
		ch <- []byte(f)
	}
	close(ch)
	return &fakeConn{frames: ch, err: dropErr}
}

func (c *fakeConn) Frames() <-chan []byte { return c.frames }
func (c *fakeConn) Err() error            { return c.err }
func (c *fakeConn) Close() error          { return nil }

// openConn is an epoch that stays connected until the test ends.
type openConn struct {
	frames chan []byte
}

func newOpenConn(frames ...string) *openConn {
	ch := make(chan []byte, len(frames)+1)
	for _, f := range frames {
		ch <- []byte(f)
	}
	return &openConn{frames: ch}
}

func (c *openConn) Frames() <-chan []byte { return c.frames }
func (c *openConn) Err() error            { return nil }
func (c *openConn) Close() error          { return nil }

// scriptedDialer returns one epoch per dial, recording the requested coins.
type scriptedDialer struct {
	mu     sync.Mutex
	epochs []FeedConn
	dials  [][]string
}

func (d *scriptedDialer) dial(ctx context.Context, coins []string) (FeedConn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, append([]string(nil), coins...))
	n := len(d.dials)
	d.mu.Unlock()

	if n > len(d.epochs) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return d.epochs[n-1], nil
}

func (d *scriptedDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *scriptedDialer) dialCoins(i int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[i]
}

// fakeLookup serves canned positions and fails configured accounts.
type fakeLookup struct {
	failFor map[string]bool
}

func (f *fakeLookup) Fetch(ctx context.Context, account string) (domain.AccountPositions, error) {
	if f.failFor[account] {
		return domain.AccountPositions{}, errors.New("lookup down")
	}
	return domain.AccountPositions{
		Account: account,
		Positions: []domain.PositionSnapshot{
			{Account: account, Coin: "BTC", PositionValueUSD: 99000, LeverageType: "cross"},
		},
	}, nil
}

// syncBuffer is a goroutine-safe io.Writer for the display.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const (
	qualifyingBTC = `{"channel":"trades","data":[
		{"coin":"BTC","side":"buy","px":"50000","sz":"0.5","time":1700000000000,"users":["0xaaa","0xbbb"]},
		{"coin":"BTC","side":"buy","px":"50000","sz":"0.1","time":1700000000001,"users":["0xccc"]}
	]}`
	otherChannel = `{"channel":"subscriptionResponse","data":{"method":"subscribe"}}`
	partlyBroken = `{"channel":"trades","data":[
		"garbage entry",
		{"coin":"BTC","side":"sell","px":"40000","sz":"1","time":1700000000002,"users":["0xeee"]}
	]}`
	qualifyingETH = `{"channel":"trades","data":[
		{"coin":"ETH","side":"sell","px":"3000","sz":"10","time":1700000000003,"users":["0xddd"]}
	]}`
)

func newTestPipeline(t *testing.T, dialer *scriptedDialer, lookup enrichment.Client, display *sink.Display, stores []storage.WhaleRecordStore) *Pipeline {
	t.Helper()

	logger := log.New(&bytes.Buffer{}, "", 0)
	csvPath := filepath.Join(t.TempDir(), "whale_logs.csv")

	return New(Options{
		Dial:               dialer.dial,
		Coins:              []string{"BTC", "ETH"},
		Filter:             feed.Filter{ThresholdUSD: 10000},
		Pool:               enrichment.NewPool(lookup, 2, 0),
		Sink:               sink.New(sink.NewCSVLog(csvPath), display, stores, logger),
		Display:            display,
		Logger:             logger,
		ReconnectBaseDelay: 5 * time.Millisecond,
		ReconnectMaxDelay:  20 * time.Millisecond,
	})
}

func TestPipeline_EndToEnd(t *testing.T) {
	dialer := &scriptedDialer{epochs: []FeedConn{
		newFakeConn(errors.New("connection reset"), qualifyingBTC, otherChannel, partlyBroken),
		newFakeConn(errors.New("connection reset"), qualifyingETH),
	}}
	lookup := &fakeLookup{failFor: map[string]bool{"0xbbb": true}}
	store := memory.NewWhaleRecordStore()
	var out syncBuffer
	display := sink.NewDisplay(&out)

	p := newTestPipeline(t, dialer, lookup, display, []storage.WhaleRecordStore{store})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	// 0xaaa and 0xbbb from the first qualifying trade, 0xeee from the
	// partly broken frame, 0xddd from the second epoch. The sub-threshold
	// trade produces nothing.
	require.Eventually(t, func() bool {
		recs, err := store.GetByTimeRange(context.Background(), 0, time.Now().UnixMilli())
		return err == nil && len(recs) == 4
	}, 5*time.Second, 10*time.Millisecond, "expected 4 records")

	cancel()
	require.NoError(t, <-runErr)

	recs, err := store.GetByTimeRange(context.Background(), 0, time.Now().UnixMilli())
	require.NoError(t, err)
	require.Len(t, recs, 4)

	byAddr := make(map[string]*domain.WhaleRecord)
	for _, r := range recs {
		byAddr[r.Address] = r
	}

	// Filter soundness: nothing for the sub-threshold trade's account
	assert.NotContains(t, byAddr, "0xccc")

	// No spurious joins: only participant accounts appear
	assert.ElementsMatch(t, []string{"0xaaa", "0xbbb", "0xeee", "0xddd"},
		[]string{recs[0].Address, recs[1].Address, recs[2].Address, recs[3].Address})

	// Lookup failure for one account still emits its record, zeroed, and
	// never suppresses the sibling account's record
	failed := byAddr["0xbbb"]
	require.NotNil(t, failed)
	assert.Zero(t, failed.Position.PositionValueUSD)
	assert.Equal(t, domain.LeverageTypeUnknown, failed.Position.LeverageType)

	ok := byAddr["0xaaa"]
	require.NotNil(t, ok)
	assert.Equal(t, 99000.0, ok.Position.PositionValueUSD)

	// The ETH trade selects the traded coin; the fake only holds BTC
	eth := byAddr["0xddd"]
	require.NotNil(t, eth)
	assert.Equal(t, "ETH", eth.Coin)
	assert.Zero(t, eth.Position.PositionValueUSD)

	// Recovery: reconnected with exactly the original instrument set
	require.GreaterOrEqual(t, dialer.dialCount(), 2)
	assert.Equal(t, []string{"BTC", "ETH"}, dialer.dialCoins(0))
	assert.Equal(t, []string{"BTC", "ETH"}, dialer.dialCoins(1))

	// The raw-trade display line is printed regardless of threshold
	shown := out.String()
	assert.Contains(t, shown, "TRADE: BTC buy 0.1000@50000.00")
	assert.Contains(t, shown, "TRADE: ETH sell 10.0000@3000.00")
	assert.Equal(t, 1, strings.Count(shown, "Subscribed to trades for"),
		"banner is printed once")
}

func TestPipeline_PersistErrorEscalates(t *testing.T) {
	dialer := &scriptedDialer{epochs: []FeedConn{
		newOpenConn(qualifyingETH),
	}}
	var out syncBuffer
	display := sink.NewDisplay(&out)
	logger := log.New(&bytes.Buffer{}, "", 0)

	// A directory as the log path makes every append fail
	badSink := sink.New(sink.NewCSVLog(t.TempDir()), display, nil, logger)

	p := New(Options{
		Dial:               dialer.dial,
		Coins:              []string{"ETH"},
		Filter:             feed.Filter{ThresholdUSD: 10000},
		Pool:               enrichment.NewPool(&fakeLookup{}, 2, 0),
		Sink:               badSink,
		Display:            display,
		Logger:             logger,
		ReconnectBaseDelay: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.Run(ctx)
	require.Error(t, err, "losing the durable log must terminate the pipeline")

	var perr *sink.PersistError
	assert.True(t, errors.As(err, &perr))
}

func TestPipeline_DecodeErrorIsNotFatal(t *testing.T) {
	dialer := &scriptedDialer{epochs: []FeedConn{
		newFakeConn(errors.New("gone"), `{broken`, qualifyingETH),
	}}
	store := memory.NewWhaleRecordStore()
	var out syncBuffer
	display := sink.NewDisplay(&out)

	p := newTestPipeline(t, dialer, &fakeLookup{}, display, []storage.WhaleRecordStore{store})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		recs, _ := store.GetByCoin(context.Background(), "ETH")
		return len(recs) == 1
	}, 5*time.Second, 10*time.Millisecond, "the malformed frame must not stop the stream")

	cancel()
	require.NoError(t, <-runErr)
}

func TestPipeline_NoEnrichmentBelowThreshold(t *testing.T) {
	subThreshold := `{"channel":"trades","data":[{"coin":"BTC","side":"buy","px":"50000","sz":"0.1","time":1700000000000,"users":["0xabc"]}]}`

	dialer := &scriptedDialer{epochs: []FeedConn{
		newFakeConn(errors.New("gone"), subThreshold),
	}}

	var fetches int32
	lookup := countingLookup{n: &fetches}
	store := memory.NewWhaleRecordStore()
	var out syncBuffer
	display := sink.NewDisplay(&out)

	p := newTestPipeline(t, dialer, lookup, display, []storage.WhaleRecordStore{store})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "TRADE: BTC")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-runErr)

	recs, err := store.GetByCoin(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Empty(t, recs, "no record below threshold")
	assert.Zero(t, atomic.LoadInt32(&fetches), "no enrichment call below threshold")
}

// countingLookup counts Fetch calls.
type countingLookup struct {
	n *int32
}

func (c countingLookup) Fetch(ctx context.Context, account string) (domain.AccountPositions, error) {
	atomic.AddInt32(c.n, 1)
	return domain.AccountPositions{Account: account}, nil
}
