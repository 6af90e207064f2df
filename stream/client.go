package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/harborwatch/bridgewatch/protocol"
)

// State is the client's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 60 * time.Second
)

// Options configures a Client.
type Options struct {
	// URL of the gateway websocket endpoint.
	URL string
	// SharedSecret, when non-empty, enables the authenticate-before-subscribe
	// handshake.
	SharedSecret string
	// Subscription is replayed on every (re)connect.
	Subscription protocol.Subscription
	// OnMessage receives every non-acknowledgement frame.
	OnMessage func(data []byte)

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *zap.Logger
}

// Client maintains one logical subscription to the gateway across any number
// of physical connections.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	log    *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	stopping bool
}

// New creates a Client. Run starts it.
func New(opts Options) *Client {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    opts.Logger,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects and keeps the subscription alive until ctx is canceled or
// Close is called. It blocks.
func (c *Client) Run(ctx context.Context) {
	backoff := c.opts.InitialBackoff
	for {
		if c.stopped() || ctx.Err() != nil {
			return
		}
		c.setState(Connecting)

		subscribed, err := c.runOnce(ctx)
		c.setState(Disconnected)
		if c.stopped() || ctx.Err() != nil {
			return
		}

		if subscribed {
			// The last open made it all the way to a live subscription, so
			// the next failure starts the backoff ladder from the bottom.
			backoff = c.opts.InitialBackoff
		}
		if err != nil {
			c.log.Warn("stream disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if !subscribed {
			backoff *= 2
			if backoff > c.opts.MaxBackoff {
				backoff = c.opts.MaxBackoff
			}
		}
	}
}

// runOnce performs one connect→handshake→read-loop cycle. It reports whether
// the subscription was successfully established on this connection.
func (c *Client) runOnce(ctx context.Context) (subscribed bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	if !c.adopt(conn) {
		// Close raced the dial; the socket must not be promoted to active.
		_ = conn.Close()
		return false, nil
	}
	defer c.drop(conn)

	if c.opts.SharedSecret != "" {
		c.setState(Authenticating)
		if err := conn.WriteJSON(protocol.AuthRequest{AuthToken: c.opts.SharedSecret}); err != nil {
			return false, fmt.Errorf("send auth: %w", err)
		}
	} else {
		if err := conn.WriteJSON(c.opts.Subscription); err != nil {
			return false, fmt.Errorf("send subscription: %w", err)
		}
		subscribed = true
		c.setState(Connected)
		c.log.Info("stream subscribed", zap.String("url", c.opts.URL))
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.stopped() {
				return subscribed, nil
			}
			return subscribed, fmt.Errorf("read: %w", err)
		}
		if !subscribed && isAuthAck(data) {
			if err := conn.WriteJSON(c.opts.Subscription); err != nil {
				return false, fmt.Errorf("send subscription: %w", err)
			}
			subscribed = true
			c.setState(Connected)
			c.log.Info("stream authenticated and subscribed", zap.String("url", c.opts.URL))
			continue
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(data)
		}
	}
}

// Close stops the client and closes any live connection. It is idempotent
// and safe to call from any goroutine.
func (c *Client) Close() {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return
	}
	c.stopping = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

func (c *Client) adopt(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopping {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func isAuthAck(data []byte) bool {
	var ack protocol.AuthAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return false
	}
	return ack.Type == protocol.AckType
}
