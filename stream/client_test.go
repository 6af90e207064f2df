package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harborwatch/bridgewatch/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func testSubscription() protocol.Subscription {
	return protocol.Subscription{
		BoundingBoxes: []protocol.BoundingBox{{{49.26, -123.30}, {49.37, -123.02}}},
	}
}

func waitFor(t *testing.T, ch <-chan []byte, what string) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func TestClientSubscribesAndDeliversMessages(t *testing.T) {
	received := make(chan []byte, 1)
	subs := make(chan []byte, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subs <- sub
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"MessageType":"PositionReport"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := New(Options{
		URL:          wsURL(srv),
		Subscription: testSubscription(),
		OnMessage:    func(data []byte) { received <- data },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	var sub protocol.Subscription
	if err := json.Unmarshal(waitFor(t, subs, "subscription"), &sub); err != nil {
		t.Fatalf("subscription was not valid JSON: %v", err)
	}
	if len(sub.BoundingBoxes) != 1 {
		t.Errorf("expected 1 bounding box, got %d", len(sub.BoundingBoxes))
	}

	msg := waitFor(t, received, "feed message")
	if !strings.Contains(string(msg), "PositionReport") {
		t.Errorf("unexpected message: %s", msg)
	}
	if client.State() != Connected {
		t.Errorf("expected connected state, got %s", client.State())
	}
}

func TestClientAuthenticatesBeforeSubscribing(t *testing.T) {
	received := make(chan []byte, 1)
	handshake := make(chan []byte, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, first, err := conn.ReadMessage()
		if err != nil {
			return
		}
		handshake <- first
		var auth protocol.AuthRequest
		if json.Unmarshal(first, &auth) != nil || auth.AuthToken != "s3cret" {
			return
		}
		_ = conn.WriteJSON(protocol.NewAuthAck())

		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		handshake <- sub
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"MessageType":"ShipStaticData"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := New(Options{
		URL:          wsURL(srv),
		SharedSecret: "s3cret",
		Subscription: testSubscription(),
		OnMessage:    func(data []byte) { received <- data },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	var auth protocol.AuthRequest
	if err := json.Unmarshal(waitFor(t, handshake, "auth request"), &auth); err != nil {
		t.Fatalf("auth frame was not valid JSON: %v", err)
	}
	if auth.AuthToken != "s3cret" {
		t.Errorf("expected the shared secret, got %q", auth.AuthToken)
	}

	var sub protocol.Subscription
	if err := json.Unmarshal(waitFor(t, handshake, "subscription"), &sub); err != nil {
		t.Fatalf("subscription was not valid JSON: %v", err)
	}
	if len(sub.BoundingBoxes) != 1 {
		t.Errorf("expected the subscription after the ack, got %+v", sub)
	}

	msg := waitFor(t, received, "feed message")
	if !strings.Contains(string(msg), "ShipStaticData") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestClientReconnectsAfterServerClose(t *testing.T) {
	var conns atomic.Int32
	second := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection right after the subscription.
			return
		}
		close(second)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := New(Options{
		URL:            wsURL(srv),
		Subscription:   testSubscription(),
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	select {
	case <-second:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not reconnect after the server dropped it")
	}
}

func TestClientCloseIsIdempotentAndStopsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := New(Options{URL: wsURL(srv), Subscription: testSubscription()})
	done := make(chan struct{})
	go func() {
		client.Run(context.Background())
		close(done)
	}()

	// Give the client a moment to establish the connection, then stop it
	// twice; the second call must be a no-op.
	time.Sleep(200 * time.Millisecond)
	client.Close()
	client.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	if client.State() == Connected {
		t.Error("client should not report connected after Close")
	}
}
