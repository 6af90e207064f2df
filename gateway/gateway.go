package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/harborwatch/bridgewatch/protocol"
)

// Options configures a Gateway.
type Options struct {
	Port                 int
	UpstreamURL          string
	UpstreamAPIKey       string
	SharedSecret         string
	MaxConnectionsPerIP  int
	MaxMessagesPerMinute int
	SubscriptionTimeout  time.Duration
	Limits               protocol.Limits
	Logger               *zap.Logger
}

const (
	DefaultMaxConnectionsPerIP  = 5
	DefaultMaxMessagesPerMinute = 60
	DefaultSubscriptionTimeout  = 10 * time.Second
)

// Gateway accepts downstream websocket connections and pairs each with one
// upstream feed connection.
type Gateway struct {
	opts     Options
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
	log      *zap.Logger

	mu       sync.Mutex
	perIP    map[string]int
	sessions map[uint64]*session
	nextID   uint64

	server *http.Server
}

// New creates a Gateway. Start or Handler serves it.
func New(opts Options) *Gateway {
	if opts.MaxConnectionsPerIP <= 0 {
		opts.MaxConnectionsPerIP = DefaultMaxConnectionsPerIP
	}
	if opts.MaxMessagesPerMinute <= 0 {
		opts.MaxMessagesPerMinute = DefaultMaxMessagesPerMinute
	}
	if opts.SubscriptionTimeout <= 0 {
		opts.SubscriptionTimeout = DefaultSubscriptionTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gateway{
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:      opts.Logger,
		perIP:    make(map[string]int),
		sessions: make(map[uint64]*session),
	}
}

// Handler returns the HTTP handler serving the stream endpoint and health
// check.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", g.handleStream)
	mux.HandleFunc("/healthz", g.handleHealth)
	return mux
}

// Start begins listening on the configured port. It does not block.
func (g *Gateway) Start() error {
	addr := fmt.Sprintf(":%d", g.opts.Port)
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	go func() {
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.log.Error("gateway server error", zap.Error(err))
		}
	}()
	g.log.Info("gateway listening", zap.String("addr", addr))
	return nil
}

// Shutdown stops accepting connections and tears down every live session.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	open := make([]*session, 0, len(g.sessions))
	for _, s := range g.sessions {
		open = append(open, s)
	}
	g.mu.Unlock()

	for _, s := range open {
		s.close(websocket.CloseGoingAway, "gateway shutting down")
	}
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

// SessionCount returns the number of live downstream sessions.
func (g *Gateway) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": g.SessionCount(),
	})
}

func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.String("ip", ip), zap.Error(err))
		return
	}

	s, ok := g.admit(conn, ip)
	if !ok {
		// The close frame carries the reason; no session state was created.
		reason := fmt.Sprintf("connection limit reached for %s (max %d)", ip, g.opts.MaxConnectionsPerIP)
		g.log.Warn("connection rejected", zap.String("ip", ip), zap.String("reason", reason))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	g.log.Info("client connected", zap.Uint64("session", s.id), zap.String("ip", ip))
	go s.run()
}

// admit reserves an IP slot and registers a session, or reports that the IP
// is at its cap.
func (g *Gateway) admit(conn *websocket.Conn, ip string) (*session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.perIP[ip] >= g.opts.MaxConnectionsPerIP {
		return nil, false
	}
	g.perIP[ip]++
	g.nextID++
	s := newSession(g, g.nextID, ip, conn)
	g.sessions[s.id] = s
	return s, true
}

// release frees a session's IP slot and registry entry. Safe to call once
// per session only; session.close guarantees that.
func (g *Gateway) release(s *session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.sessions, s.id)
	if g.perIP[s.ip] <= 1 {
		delete(g.perIP, s.ip)
	} else {
		g.perIP[s.ip]--
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
