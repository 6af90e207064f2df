package feed

import "time"

// Message type discriminators used by the upstream feed.
const (
	TypePositionReport = "PositionReport"
	TypeShipStaticData = "ShipStaticData"
)

// Sentinel values defined by the AIS standard.
const (
	CourseUnavailable  = 511.0 // COG field when no course is available
	HeadingUnavailable = 511   // true heading field when no heading is available
)

// MetaData carries the vessel identity fields present on every feed message.
type MetaData struct {
	MMSI      int     `json:"MMSI"`
	ShipName  string  `json:"ShipName"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	TimeUTC   string  `json:"time_utc"`
}

// PositionReport is the kinematic payload of a class A position message.
type PositionReport struct {
	Cog                float64 `json:"Cog"`
	Sog                float64 `json:"Sog"`
	TrueHeading        int     `json:"TrueHeading"`
	NavigationalStatus int     `json:"NavigationalStatus"`
	Latitude           float64 `json:"Latitude"`
	Longitude          float64 `json:"Longitude"`
}

// Dimension describes the reported hull extents relative to the GPS antenna.
// A+B is the vessel length, C+D the beam, both in meters.
type Dimension struct {
	A int `json:"A"`
	B int `json:"B"`
	C int `json:"C"`
	D int `json:"D"`
}

// ShipStaticData is the voyage/static payload of an AIS message type 5.
type ShipStaticData struct {
	Destination string    `json:"Destination"`
	Type        int       `json:"Type"`
	Dimension   Dimension `json:"Dimension"`
}

// Envelope is one decoded feed message. Exactly one of Position and Static is
// non-nil for known message types; both are nil for unknown types.
type Envelope struct {
	MessageType string
	MetaData    MetaData
	Position    *PositionReport
	Static      *ShipStaticData
}

// Timestamp returns the metadata timestamp parsed to UTC. Degenerate values
// parse to the zero time, which downstream stale eviction treats as already
// expired rather than failing the message.
func (e *Envelope) Timestamp() time.Time {
	return ParseFeedTime(e.MetaData.TimeUTC)
}

var navStatusLabels = map[int]string{
	0:  "under way using engine",
	1:  "at anchor",
	2:  "not under command",
	3:  "restricted manoeuvrability",
	4:  "constrained by draught",
	5:  "moored",
	6:  "aground",
	7:  "engaged in fishing",
	8:  "under way sailing",
	14: "AIS-SART active",
	15: "undefined",
}

// NavStatusLabel returns the human label for a navigational status code.
func NavStatusLabel(code int) string {
	if label, ok := navStatusLabels[code]; ok {
		return label
	}
	return "reserved"
}
