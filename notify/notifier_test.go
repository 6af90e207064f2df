package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harborwatch/bridgewatch/feed"
	"github.com/harborwatch/bridgewatch/tracking"
)

func testEvent() *tracking.CrossingEvent {
	return &tracking.CrossingEvent{
		MMSI:        123456789,
		Name:        "COASTAL RUNNER",
		Bridge:      "Lions Gate Bridge",
		SpeedKn:     8.04,
		CourseDeg:   181.4,
		Direction:   tracking.Southbound,
		Destination: "VANCOUVER",
		LengthM:     294,
	}
}

func TestTitle(t *testing.T) {
	got := Title(testEvent())
	if got != "COASTAL RUNNER passing under Lions Gate Bridge" {
		t.Errorf("unexpected title: %q", got)
	}
}

func TestBody(t *testing.T) {
	body := Body(testEvent())
	for _, want := range []string{
		"southbound at 8.0 kn",
		"MMSI 123456789",
		"Course 181°",
		"Bound for VANCOUVER",
		"Length 294 m",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBodyOmitsOptionalLines(t *testing.T) {
	ev := testEvent()
	ev.Destination = ""
	ev.LengthM = 0
	body := Body(ev)
	if strings.Contains(body, "Bound for") {
		t.Error("destination line should be omitted when unknown")
	}
	if strings.Contains(body, "Length") {
		t.Error("length line should be omitted when unknown")
	}
}

func TestBodyOmitsUnavailableCourse(t *testing.T) {
	ev := testEvent()
	ev.CourseDeg = feed.CourseUnavailable
	if body := Body(ev); strings.Contains(body, "Course") {
		t.Errorf("course line should be omitted for the 511 sentinel:\n%s", body)
	}
}

func TestNotifyPostsPayload(t *testing.T) {
	var got sinkPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(Options{
		URL:      srv.URL,
		Topic:    "bridgewatch",
		Token:    "secret-token",
		Priority: 4,
		Tags:     []string{"ship"},
	}, nil)

	if err := n.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Topic != "bridgewatch" {
		t.Errorf("expected topic bridgewatch, got %q", got.Topic)
	}
	if got.Priority != 4 {
		t.Errorf("expected priority 4, got %d", got.Priority)
	}
	if !strings.Contains(got.Title, "passing under") {
		t.Errorf("unexpected title %q", got.Title)
	}
	if auth != "Bearer secret-token" {
		t.Errorf("expected bearer header, got %q", auth)
	}
}

func TestNotifySinkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := New(Options{URL: srv.URL, Topic: "bridgewatch"}, nil)
	err := n.Notify(context.Background(), testEvent())
	if err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected the status code in the error, got %v", err)
	}
}

func TestNotifyNetworkFailure(t *testing.T) {
	n := New(Options{URL: "http://127.0.0.1:1", Topic: "bridgewatch"}, nil)
	if err := n.Notify(context.Background(), testEvent()); err == nil {
		t.Fatal("expected an error when the sink is unreachable")
	}
}
