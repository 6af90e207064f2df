package protocol

// BoundingBox is a geographic rectangle given as two [lat, lon] corners.
type BoundingBox [2][2]float64

// Subscription is the first frame a downstream client sends to select the
// slice of the feed it wants. FilterMessageTypes entries may be strings or
// integers; both forms are accepted and forwarded as-is.
type Subscription struct {
	BoundingBoxes      []BoundingBox `json:"boundingBoxes" validate:"required,min=1"`
	FilterMessageTypes []any         `json:"filterMessageTypes,omitempty"`
	FiltersShipMMSI    []string      `json:"filtersShipMMSI,omitempty"`
}

// AuthRequest is the optional pre-subscription frame carrying the shared
// secret.
type AuthRequest struct {
	AuthToken string `json:"authToken"`
}

// AuthAck acknowledges a successful AuthRequest. Type is always "auth_ok".
type AuthAck struct {
	Type string `json:"type"`
}

// AckType is the discriminator value carried by AuthAck frames.
const AckType = "auth_ok"

// NewAuthAck returns the acknowledgement frame sent after a valid AuthRequest.
func NewAuthAck() AuthAck {
	return AuthAck{Type: AckType}
}

// UpstreamSubscription is the payload the gateway sends upstream as the first
// message of each paired connection. It is built fresh from a validated
// client Subscription so that only whitelisted fields cross, and APIKey is
// always the server-held credential.
type UpstreamSubscription struct {
	APIKey             string        `json:"APIKey"`
	BoundingBoxes      []BoundingBox `json:"BoundingBoxes"`
	FilterMessageTypes []any         `json:"FilterMessageTypes,omitempty"`
	FiltersShipMMSI    []string      `json:"FiltersShipMMSI,omitempty"`
}

// ForUpstream whitelists a validated subscription into the upstream payload,
// injecting the server-held credential. Any extra fields a client smuggled
// into its JSON never survive this copy.
func (s *Subscription) ForUpstream(apiKey string) UpstreamSubscription {
	return UpstreamSubscription{
		APIKey:             apiKey,
		BoundingBoxes:      s.BoundingBoxes,
		FilterMessageTypes: s.FilterMessageTypes,
		FiltersShipMMSI:    s.FiltersShipMMSI,
	}
}
