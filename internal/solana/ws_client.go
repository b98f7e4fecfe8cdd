package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bagwatch/internal/observability"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the keepalive ping period.
	PingInterval time.Duration
	// ReadTimeout bounds a single read.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns the default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    5 * time.Second,
		MaxReconnectDelay: 60 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// wsSub is one live subscription: its filter (kept for resubscription after
// reconnect) and the delivery channel.
type wsSub struct {
	filter LogsFilter
	ch     chan LogNotification
}

// WS implements WSClient using gorilla/websocket. The connection is
// re-established with capped exponential delay on any read failure and all
// live subscriptions are replayed on the new connection.
type WS struct {
	endpoint string
	config   WSConfig

	conn   *websocket.Conn
	connMu sync.Mutex

	requestID    atomic.Uint64
	closed       atomic.Bool
	reconnecting atomic.Bool

	mu      sync.Mutex
	subs    map[int64]*wsSub
	pending map[uint64]chan int64

	done chan struct{}
	wg   sync.WaitGroup
}

// DialWS connects to the endpoint and starts the read and keepalive loops.
func DialWS(ctx context.Context, endpoint string, config *WSConfig) (*WS, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WS{
		endpoint: endpoint,
		config:   cfg,
		subs:     make(map[int64]*wsSub),
		pending:  make(map[uint64]chan int64),
		done:     make(chan struct{}),
	}

	if err := c.dial(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WS) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeLogs subscribes to logs mentioning the filter addresses. The
// returned channel is buffered; delivery blocks rather than drops.
func (c *WS) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	subID, err := c.subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	ch := make(chan LogNotification, 1000)
	c.mu.Lock()
	c.subs[subID] = &wsSub{filter: filter, ch: ch}
	c.mu.Unlock()

	return ch, nil
}

// subscribe sends a logsSubscribe request and waits for the confirmation
// carrying the subscription ID.
func (c *WS) subscribe(ctx context.Context, filter LogsFilter) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)

	mentions := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		mentions["mentions"] = filter.Mentions
	} else {
		mentions["all"] = nil
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentions,
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	c.mu.Lock()
	c.pending[reqID] = confirmCh
	c.mu.Unlock()

	dropPending := func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		dropPending()
		return 0, fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		dropPending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		if subID == 0 {
			// Channel closed during shutdown.
			return 0, fmt.Errorf("client closed")
		}
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		dropPending()
		return 0, fmt.Errorf("subscription timeout after %v", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// Close tears down the connection and closes all subscription channels.
func (c *WS) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.mu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads and dispatches messages. On read failure it kicks off a
// reconnect in its own goroutine and keeps spinning: the loop must stay free
// to read the new connection, or resubscription confirmations would never be
// delivered.
func (c *WS) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnecting.Swap(true) {
				go c.reconnect(delay)
				delay = nextDelay(delay, c.config.MaxReconnectDelay)
			}
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			logrus.WithError(err).Warn("websocket read failed, reconnecting")
			c.connMu.Lock()
			if c.conn == conn {
				conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			continue
		}

		delay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// reconnect waits, redials, and resubscribes. Runs in its own goroutine so
// the read loop can drain the new connection while subscribe waits for its
// confirmation.
func (c *WS) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}
	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.dial(ctx); err != nil {
		// Read loop retriggers with the next delay.
		logrus.WithError(err).Warn("websocket reconnect failed")
		return
	}
	if c.closed.Load() {
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
		return
	}
	logrus.Info("websocket reconnected")
	observability.RecordWSReconnect()

	c.resubscribeAll()
}

// resubscribeAll replays every live subscription on the current connection
// and rebinds the delivery channels to the new subscription IDs.
func (c *WS) resubscribeAll() {
	c.mu.Lock()
	old := make(map[int64]*wsSub, len(c.subs))
	for id, sub := range c.subs {
		old[id] = sub
	}
	c.mu.Unlock()

	for oldID, sub := range old {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.SubscribeTimeout)
		newID, err := c.subscribe(ctx, sub.filter)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("resubscribe failed, keeping old mapping")
			continue
		}

		c.mu.Lock()
		delete(c.subs, oldID)
		c.subs[newID] = sub
		c.mu.Unlock()
	}
}

// handleMessage routes one incoming frame: subscription confirmation,
// logsNotification, or error response.
func (c *WS) handleMessage(message []byte) {
	var confirm wsSubscribeResponse
	if err := json.Unmarshal(message, &confirm); err == nil && confirm.Result > 0 {
		c.mu.Lock()
		ch, ok := c.pending[confirm.ID]
		if ok {
			delete(c.pending, confirm.ID)
		}
		c.mu.Unlock()
		if ok {
			select {
			case ch <- confirm.Result:
			default:
			}
		}
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "logsNotification" {
		c.dispatch(&notif)
		return
	}

	var errResp struct {
		Error *rpcError `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		logrus.WithFields(logrus.Fields{
			"code":    errResp.Error.Code,
			"message": errResp.Error.Message,
		}).Warn("websocket error response")
	}
}

// dispatch forwards a notification to its subscriber. Sends block until the
// subscriber drains; events are never dropped.
func (c *WS) dispatch(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value
	out := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Err:       value.Err,
	}
	if notif.Params.Result.Context != nil {
		out.Slot = notif.Params.Result.Context.Slot
	}

	c.mu.Lock()
	sub, ok := c.subs[notif.Params.Subscription]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case sub.ch <- out:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WS) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// An error here surfaces as a read failure; the read loop
				// owns reconnection.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

func nextDelay(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}

// Wire shapes.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
