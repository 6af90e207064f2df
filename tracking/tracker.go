package tracking

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/harborwatch/bridgewatch/feed"
	"github.com/harborwatch/bridgewatch/geo"
)

// Options configures a Tracker. Zero values take the defaults below.
type Options struct {
	BridgeName   string
	BridgeLat    float64
	BridgeLon    float64
	ThresholdNM  float64
	MinSpeedKn   float64
	Cooldown     time.Duration
	StaleTimeout time.Duration
}

const (
	DefaultThresholdNM  = 0.5
	DefaultMinSpeedKn   = 0.5
	DefaultCooldown     = 30 * time.Minute
	DefaultStaleTimeout = 15 * time.Minute
)

// Vessel is the tracked state for one MMSI. Created by the first valid
// position report, enriched by static data, evicted when stale.
type Vessel struct {
	MMSI        int
	Name        string
	Latitude    float64
	Longitude   float64
	CourseDeg   float64
	SpeedKn     float64
	DistanceNM  float64
	LastUpdate  time.Time
	Destination string
	ShipType    int
	LengthM     int
}

// Direction is the approximate passage direction under the bridge.
type Direction string

const (
	Northbound Direction = "northbound"
	Southbound Direction = "southbound"
)

// CrossingEvent records one vessel's distance-to-bridge transitioning from
// above to at-or-below the threshold.
type CrossingEvent struct {
	MMSI        int
	Name        string
	Bridge      string
	SpeedKn     float64
	CourseDeg   float64
	DistanceNM  float64
	Direction   Direction
	At          time.Time
	Destination string
	LengthM     int
}

// Tracker owns all per-vessel state and derives crossing events from the
// position stream.
type Tracker struct {
	opts Options

	mu           sync.Mutex
	vessels      map[int]*Vessel
	lastNotified map[int]time.Time

	now func() time.Time
}

// New creates a Tracker watching the configured bridge.
func New(opts Options) *Tracker {
	if opts.ThresholdNM <= 0 {
		opts.ThresholdNM = DefaultThresholdNM
	}
	if opts.MinSpeedKn <= 0 {
		opts.MinSpeedKn = DefaultMinSpeedKn
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.StaleTimeout <= 0 {
		opts.StaleTimeout = DefaultStaleTimeout
	}
	return &Tracker{
		opts:         opts,
		vessels:      make(map[int]*Vessel),
		lastNotified: make(map[int]time.Time),
		now:          time.Now,
	}
}

// Ingest processes one decoded feed message and returns a crossing event when
// the message completes an above→below threshold transition that is not
// suppressed by the cooldown. Messages with no payload are ignored.
func (t *Tracker) Ingest(env *feed.Envelope) *CrossingEvent {
	switch {
	case env.Position != nil:
		return t.ingestPosition(env)
	case env.Static != nil:
		t.ingestStatic(env)
	}
	return nil
}

func (t *Tracker) ingestPosition(env *feed.Envelope) *CrossingEvent {
	pos := env.Position
	lat, lon := pos.Latitude, pos.Longitude
	if !geo.ValidCoordinates(lat, lon) {
		// Null-island and out-of-range fixes are known feed garbage.
		return nil
	}

	distance := geo.DistanceNM(lat, lon, t.opts.BridgeLat, t.opts.BridgeLon)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	vessel, known := t.vessels[env.MetaData.MMSI]
	previousDistance := math.Inf(1)
	if known {
		previousDistance = vessel.DistanceNM
	} else {
		vessel = &Vessel{MMSI: env.MetaData.MMSI}
		t.vessels[env.MetaData.MMSI] = vessel
	}

	if name := strings.TrimSpace(env.MetaData.ShipName); name != "" {
		vessel.Name = name
	} else if vessel.Name == "" {
		vessel.Name = fmt.Sprintf("ID %d", env.MetaData.MMSI)
	}
	vessel.Latitude = lat
	vessel.Longitude = lon
	vessel.CourseDeg = pos.Cog
	vessel.SpeedKn = pos.Sog
	vessel.DistanceNM = distance
	// Stamp with the feed clock, not arrival time. An unparseable time_utc
	// yields the zero time, so a bad-clock record is already stale and the
	// next sweep retires it.
	vessel.LastUpdate = env.Timestamp()

	crossed := previousDistance > t.opts.ThresholdNM && distance <= t.opts.ThresholdNM
	if !crossed || pos.Sog < t.opts.MinSpeedKn {
		return nil
	}
	if last, ok := t.lastNotified[vessel.MMSI]; ok && now.Sub(last) < t.opts.Cooldown {
		return nil
	}
	t.lastNotified[vessel.MMSI] = now

	return &CrossingEvent{
		MMSI:        vessel.MMSI,
		Name:        vessel.Name,
		Bridge:      t.opts.BridgeName,
		SpeedKn:     vessel.SpeedKn,
		CourseDeg:   vessel.CourseDeg,
		DistanceNM:  distance,
		Direction:   t.direction(pos.Cog, lat),
		At:          now,
		Destination: vessel.Destination,
		LengthM:     vessel.LengthM,
	}
}

func (t *Tracker) ingestStatic(env *feed.Envelope) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Static data never creates a record; position reports are the only
	// creation path.
	vessel, ok := t.vessels[env.MetaData.MMSI]
	if !ok {
		return
	}
	if name := strings.TrimSpace(env.MetaData.ShipName); name != "" {
		vessel.Name = name
	}
	if dest := strings.TrimSpace(env.Static.Destination); dest != "" {
		vessel.Destination = dest
	}
	if env.Static.Type != 0 {
		vessel.ShipType = env.Static.Type
	}
	if length := env.Static.Dimension.A + env.Static.Dimension.B; length > 0 {
		vessel.LengthM = length
	}
	vessel.LastUpdate = env.Timestamp()
}

// direction derives the passage direction from course over ground. Courses
// within 45 degrees of north or south decide directly; beam courses and the
// course-unavailable sentinel fall through to the latitude tie-break: a vessel
// north of the bridge is taken as heading south. This is an approximation, not
// true-track inference.
func (t *Tracker) direction(cog, lat float64) Direction {
	if cog != feed.CourseUnavailable {
		heading := geo.NormalizeDegrees(cog)
		switch {
		case heading > 315 || heading < 45:
			return Northbound
		case heading > 135 && heading < 225:
			return Southbound
		}
	}
	if lat > t.opts.BridgeLat {
		return Southbound
	}
	return Northbound
}

// Evict removes vessels that have not reported within the stale timeout and
// cooldown records older than the cooldown window. It returns the number of
// evictions of each kind.
func (t *Tracker) Evict() (vessels, cooldowns int) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for mmsi, vessel := range t.vessels {
		if now.Sub(vessel.LastUpdate) > t.opts.StaleTimeout {
			delete(t.vessels, mmsi)
			vessels++
		}
	}
	for mmsi, last := range t.lastNotified {
		if now.Sub(last) > t.opts.Cooldown {
			delete(t.lastNotified, mmsi)
			cooldowns++
		}
	}
	return vessels, cooldowns
}

// TrackedCount returns the number of vessels currently tracked.
func (t *Tracker) TrackedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.vessels)
}

// Lookup returns a copy of the tracked state for an MMSI.
func (t *Tracker) Lookup(mmsi int) (Vessel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	vessel, ok := t.vessels[mmsi]
	if !ok {
		return Vessel{}, false
	}
	return *vessel, true
}
