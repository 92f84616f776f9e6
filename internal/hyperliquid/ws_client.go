package hyperliquid

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// FeedConfig configures feed connection behavior.
type FeedConfig struct {
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// FrameBuffer is the capacity of the raw frame channel.
	FrameBuffer int
}

// DefaultFeedConfig returns default feed connection configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		FrameBuffer:      1000,
	}
}

// FeedConn is one connection epoch to the trade feed. On construction it
// subscribes to the trades channel for every configured coin. It is not
// restartable: when the transport drops, Frames is closed and Err reports
// the cause. The owner opens a fresh FeedConn to resume; reconnect and
// backoff policy live there, not here.
type FeedConn struct {
	conn   *websocket.Conn
	config FeedConfig
	coins  []string
	logger *log.Logger

	frames chan []byte
	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup

	errMu sync.Mutex
	err   error

	writeMu sync.Mutex
}

// DialFeed connects to the feed endpoint and subscribes to trades for each
// coin. The returned connection is already streaming.
func DialFeed(ctx context.Context, endpoint string, coins []string, config *FeedConfig, logger *log.Logger) (*FeedConn, error) {
	cfg := DefaultFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &FeedConn{
		conn:   conn,
		config: cfg,
		coins:  append([]string(nil), coins...),
		logger: logger,
		frames: make(chan []byte, cfg.FrameBuffer),
		done:   make(chan struct{}),
	}

	for _, coin := range c.coins {
		if err := c.subscribe(coin); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe trades %s: %w", coin, err)
		}
		c.logger.Printf("[feed] subscribed to trades: %s", coin)
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// subscribe sends one trades subscription request.
func (c *FeedConn) subscribe(coin string) error {
	req := subscribeRequest{
		Method:       "subscribe",
		Subscription: subscription{Type: "trades", Coin: coin},
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(req)
}

// Frames returns the raw inbound frames for this epoch. The channel is
// closed when the transport drops or the connection is closed.
func (c *FeedConn) Frames() <-chan []byte {
	return c.frames
}

// Coins returns the instrument set this epoch subscribed to.
func (c *FeedConn) Coins() []string {
	return append([]string(nil), c.coins...)
}

// Err reports why the frame stream ended. It is nil while streaming and
// after a deliberate Close.
func (c *FeedConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *FeedConn) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Close closes the WebSocket connection and waits for the loops to exit.
func (c *FeedConn) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.conn.Close()

	c.wg.Wait()
	return nil
}

// readLoop reads frames from the WebSocket and forwards them to Frames.
// Exactly one goroutine closes the frames channel.
func (c *FeedConn) readLoop() {
	defer c.wg.Done()
	defer close(c.frames)

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.setErr(fmt.Errorf("feed read: %w", err))
			}
			return
		}

		select {
		case c.frames <- message:
		case <-c.done:
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *FeedConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Connection might be dead, reader will surface the error
			}
			c.writeMu.Unlock()
		}
	}
}
