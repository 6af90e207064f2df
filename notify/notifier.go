package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborwatch/bridgewatch/feed"
	"github.com/harborwatch/bridgewatch/tracking"
)

// Options configures the push-notification sink.
type Options struct {
	URL      string
	Topic    string
	Token    string
	Priority int
	Tags     []string
}

// Notifier submits crossing events to the sink.
type Notifier struct {
	opts       Options
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a Notifier. A nil logger falls back to a no-op logger.
func New(opts Options, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		opts:       opts,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

type sinkPayload struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Tags     []string `json:"tags"`
	Priority int      `json:"priority"`
}

// Notify posts one crossing event to the sink. A non-2xx status is an error.
func (n *Notifier) Notify(ctx context.Context, event *tracking.CrossingEvent) error {
	payload := sinkPayload{
		Topic:    n.opts.Topic,
		Title:    Title(event),
		Message:  Body(event),
		Tags:     n.opts.Tags,
		Priority: n.opts.Priority,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.opts.Token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification sink returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	n.log.Info("notification dispatched",
		zap.Int("mmsi", event.MMSI),
		zap.String("vessel", event.Name),
		zap.String("direction", string(event.Direction)))
	return nil
}

// Title renders the notification title for a crossing event.
func Title(event *tracking.CrossingEvent) string {
	return fmt.Sprintf("%s passing under %s", event.Name, event.Bridge)
}

// Body renders the notification body lines for a crossing event.
func Body(event *tracking.CrossingEvent) string {
	glyph := "⬆️"
	if event.Direction == tracking.Southbound {
		glyph = "⬇️"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s at %.1f kn\n", glyph, event.Direction, event.SpeedKn)
	fmt.Fprintf(&b, "MMSI %d", event.MMSI)
	if event.CourseDeg != feed.CourseUnavailable {
		fmt.Fprintf(&b, "\nCourse %d°", int(math.Round(event.CourseDeg)))
	}
	if event.Destination != "" {
		fmt.Fprintf(&b, "\nBound for %s", event.Destination)
	}
	if event.LengthM > 0 {
		fmt.Fprintf(&b, "\nLength %d m", event.LengthM)
	}
	return b.String()
}
