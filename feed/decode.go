package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type rawEnvelope struct {
	MessageType string                     `json:"MessageType"`
	MetaData    MetaData                   `json:"MetaData"`
	Message     map[string]json.RawMessage `json:"Message"`
}

// Decode parses one feed frame. Malformed JSON is an error; a well-formed
// frame with an unknown MessageType is not — it decodes to an envelope with
// no payload.
func Decode(data []byte) (*Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode feed message: %w", err)
	}

	env := &Envelope{MessageType: raw.MessageType, MetaData: raw.MetaData}

	payload, ok := raw.Message[raw.MessageType]
	if !ok {
		return env, nil
	}

	switch raw.MessageType {
	case TypePositionReport:
		var pr PositionReport
		if err := json.Unmarshal(payload, &pr); err != nil {
			return nil, fmt.Errorf("decode position report: %w", err)
		}
		env.Position = &pr
	case TypeShipStaticData:
		var sd ShipStaticData
		if err := json.Unmarshal(payload, &sd); err != nil {
			return nil, fmt.Errorf("decode ship static data: %w", err)
		}
		env.Static = &sd
	}
	return env, nil
}

// feedTimeLayouts covers the textual encodings observed on the feed's
// time_utc field. The first is Go's time.Time String() form, which is what
// the upstream actually emits; the rest are defensive.
var feedTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999 -0700",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseFeedTime parses a feed timestamp string, returning the zero time when
// no layout matches. The zero-time fallback masks bad clocks rather than
// dropping the report; stale eviction then retires the record immediately.
func ParseFeedTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
