package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/harborwatch/bridgewatch/protocol"
)

// session is the per-connection state machine:
// AWAITING_AUTH_OR_SUB → [AUTHENTICATED] → AWAITING_SUB → RELAYING.
// All of a session's mutable state is owned by its read goroutine except the
// paired-connection handle and the closed flag, which close() also touches.
type session struct {
	id   uint64
	ip   string
	gw   *Gateway
	log  *zap.Logger
	down *websocket.Conn

	authenticated bool
	relaying      bool

	// rolling per-minute message counter
	msgCount    int
	windowStart time.Time

	subTimer *time.Timer

	mu     sync.Mutex
	up     *websocket.Conn
	closed bool
}

func newSession(g *Gateway, id uint64, ip string, conn *websocket.Conn) *session {
	return &session{
		id:   id,
		ip:   ip,
		gw:   g,
		log:  g.log.With(zap.Uint64("session", id), zap.String("ip", ip)),
		down: conn,
	}
}

// run is the session's downstream read loop. It owns the subscription timer
// and the first-message state machine.
func (s *session) run() {
	s.subTimer = time.AfterFunc(s.gw.opts.SubscriptionTimeout, func() {
		s.log.Warn("subscription timeout")
		s.close(websocket.ClosePolicyViolation, "no subscription received within the allowed time")
	})
	defer s.close(websocket.CloseNormalClosure, "client disconnected")

	for {
		msgType, data, err := s.down.ReadMessage()
		if err != nil {
			return
		}
		if !s.allowMessage() {
			s.log.Warn("rate limit exceeded", zap.Int("count", s.msgCount))
			s.close(websocket.ClosePolicyViolation, "message rate limit exceeded")
			return
		}
		if s.relaying {
			s.forwardUpstream(msgType, data)
			continue
		}
		if !s.handleFirstMessage(data) {
			return
		}
	}
}

// allowMessage applies the rolling 60-second message counter.
func (s *session) allowMessage() bool {
	now := time.Now()
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= time.Minute {
		s.windowStart = now
		s.msgCount = 0
	}
	s.msgCount++
	return s.msgCount <= s.gw.opts.MaxMessagesPerMinute
}

// handleFirstMessage advances the pre-relay state machine by one message.
// It reports whether the session should keep reading.
func (s *session) handleFirstMessage(data []byte) bool {
	if s.gw.opts.SharedSecret != "" && !s.authenticated {
		var req protocol.AuthRequest
		if err := json.Unmarshal(data, &req); err != nil || req.AuthToken != s.gw.opts.SharedSecret {
			s.log.Warn("authentication failed")
			s.close(websocket.CloseProtocolError, "authentication failed")
			return false
		}
		s.authenticated = true
		if err := s.down.WriteJSON(protocol.NewAuthAck()); err != nil {
			s.close(websocket.CloseInternalServerErr, "failed to acknowledge authentication")
			return false
		}
		s.log.Info("client authenticated")
		// The subscription timer keeps running; the subscription itself is
		// still owed.
		return true
	}

	sub, err := protocol.ParseSubscription(data, s.gw.opts.Limits)
	if err != nil {
		s.log.Warn("subscription rejected", zap.String("reason", err.Error()))
		s.close(websocket.CloseProtocolError, err.Error())
		return false
	}
	s.subTimer.Stop()

	upstream, _, err := s.gw.dialer.Dial(s.gw.opts.UpstreamURL, nil)
	if err != nil {
		s.log.Error("upstream dial failed", zap.Error(err))
		s.close(websocket.CloseInternalServerErr, "upstream connection failed")
		return false
	}
	if !s.pair(upstream) {
		_ = upstream.Close()
		return false
	}
	if err := upstream.WriteJSON(sub.ForUpstream(s.gw.opts.UpstreamAPIKey)); err != nil {
		s.log.Error("upstream subscription failed", zap.Error(err))
		s.close(websocket.CloseInternalServerErr, "upstream connection failed")
		return false
	}

	s.relaying = true
	s.log.Info("relaying", zap.Int("bounding_boxes", len(sub.BoundingBoxes)))
	go s.pumpDownstream(upstream)
	return true
}

// pair installs the upstream connection unless the session already closed.
func (s *session) pair(upstream *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.up = upstream
	return true
}

// forwardUpstream relays one downstream frame verbatim.
func (s *session) forwardUpstream(msgType int, data []byte) {
	s.mu.Lock()
	upstream := s.up
	s.mu.Unlock()
	if upstream == nil {
		return
	}
	if err := upstream.WriteMessage(msgType, data); err != nil {
		s.log.Warn("upstream write failed", zap.Error(err))
		s.close(websocket.CloseInternalServerErr, "upstream connection lost")
	}
}

// pumpDownstream relays upstream frames to the client until either socket
// dies, then tears the pair down.
func (s *session) pumpDownstream(upstream *websocket.Conn) {
	for {
		msgType, data, err := upstream.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				s.log.Warn("upstream closed", zap.Error(err))
			}
			s.close(websocket.CloseInternalServerErr, "upstream connection lost")
			return
		}
		if err := s.down.WriteMessage(msgType, data); err != nil {
			s.close(websocket.CloseNormalClosure, "client disconnected")
			return
		}
	}
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close tears down both sides of the session exactly once: close frame to
// the client, upstream socket closed, timer canceled, IP slot released.
func (s *session) close(code int, reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	upstream := s.up
	s.up = nil
	s.mu.Unlock()

	if s.subTimer != nil {
		s.subTimer.Stop()
	}
	_ = s.down.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	_ = s.down.Close()
	if upstream != nil {
		_ = upstream.Close()
	}
	s.gw.release(s)
	s.log.Info("session closed", zap.Int("code", code), zap.String("reason", reason))
}
