package geo

import (
	"fmt"
	"math"
)

// EarthRadiusNM is the mean Earth radius in nautical miles.
const EarthRadiusNM = 3440.065

// DistanceNM returns the haversine great-circle distance between two
// coordinates in nautical miles.
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusNM * c
}

// Bearing returns the initial great-circle bearing from point 1 to point 2,
// in degrees normalized to [0, 360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	y := math.Sin(dLon) * math.Cos(la2)
	x := math.Cos(la1)*math.Sin(la2) - math.Sin(la1)*math.Cos(la2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return NormalizeDegrees(deg)
}

// NormalizeDegrees maps an angle in degrees onto [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

var compassPoints = [...]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Compass returns the 16-point compass label for a bearing in degrees.
func Compass(deg float64) string {
	idx := int(math.Mod(NormalizeDegrees(deg)+11.25, 360) / 22.5)
	return compassPoints[idx]
}

// PresentableDistance formats a distance in nautical miles for display.
// Short distances switch to yards so close approaches read naturally.
func PresentableDistance(nm float64) string {
	const yardsPerNM = 2025.37
	if nm < 0.1 {
		return fmt.Sprintf("%.0f yd", nm*yardsPerNM)
	}
	return fmt.Sprintf("%.2f NM", nm)
}

// ValidCoordinates reports whether a lat/lon pair is inside geographic
// bounds and is not the (0,0) null-island sentinel some transponders emit.
func ValidCoordinates(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
