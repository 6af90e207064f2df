package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// Limits bounds what a subscription may ask for. Zero values are replaced by
// the defaults below.
type Limits struct {
	MaxBoundingBoxes int
	MaxBoxAreaDeg2   float64
}

const (
	DefaultMaxBoundingBoxes = 5
	DefaultMaxBoxAreaDeg2   = 25.0
)

var validate = validator.New()

// ParseSubscription decodes and validates a subscription frame. The returned
// error text is human-readable and is used verbatim as a close reason.
func ParseSubscription(data []byte, limits Limits) (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("subscription is not valid JSON")
	}
	if err := ValidateSubscription(&sub, limits); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ValidateSubscription enforces the bounding-box count, corner-range, and
// area invariants. The area cap is inclusive: a box of exactly the cap passes.
func ValidateSubscription(sub *Subscription, limits Limits) error {
	if limits.MaxBoundingBoxes <= 0 {
		limits.MaxBoundingBoxes = DefaultMaxBoundingBoxes
	}
	if limits.MaxBoxAreaDeg2 <= 0 {
		limits.MaxBoxAreaDeg2 = DefaultMaxBoxAreaDeg2
	}

	if err := validate.Struct(sub); err != nil {
		return fmt.Errorf("subscription requires at least one bounding box")
	}
	if len(sub.BoundingBoxes) > limits.MaxBoundingBoxes {
		return fmt.Errorf("too many bounding boxes: %d (max %d)", len(sub.BoundingBoxes), limits.MaxBoundingBoxes)
	}
	for i, box := range sub.BoundingBoxes {
		for _, corner := range box {
			lat, lon := corner[0], corner[1]
			if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
				return fmt.Errorf("bounding box %d has an out-of-range corner [%g, %g]", i, lat, lon)
			}
		}
		area := math.Abs(box[0][0]-box[1][0]) * math.Abs(box[0][1]-box[1][1])
		if area > limits.MaxBoxAreaDeg2 {
			return fmt.Errorf("bounding box %d area %g deg2 exceeds the maximum of %g deg2", i, area, limits.MaxBoxAreaDeg2)
		}
	}
	for i, entry := range sub.FilterMessageTypes {
		if !validMessageTypeEntry(entry) {
			return fmt.Errorf("filterMessageTypes entry %d must be a string or an integer", i)
		}
	}
	return nil
}

func validMessageTypeEntry(entry any) bool {
	switch v := entry.(type) {
	case string:
		return true
	case float64:
		// JSON numbers decode as float64; only whole values are message types.
		return v == math.Trunc(v)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	case int, int32, int64:
		return true
	default:
		return false
	}
}
