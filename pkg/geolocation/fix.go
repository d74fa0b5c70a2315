package geolocation

import (
	"math"
	"time"
)

// Fix is a single position reading with its accuracy metadata.
type Fix struct {
	// Latitude in degrees.
	Latitude float64
	// Longitude in degrees.
	Longitude float64
	// Altitude in meters.
	Altitude float64
	// Speed in meters per second. Negative when unknown.
	Speed float64
	// Accuracy is the horizontal accuracy radius in meters. Negative when
	// the device did not report one.
	Accuracy float64
	// VerticalAccuracy is the altitude accuracy in meters. Negative when unknown.
	VerticalAccuracy float64
	// Course is the direction of travel in degrees from true north. Negative when unknown.
	Course float64
	// Timestamp is when the reading was taken, in milliseconds since the Unix epoch.
	Timestamp int64
}

// Time returns the reading time.
func (f Fix) Time() time.Time {
	return time.UnixMilli(f.Timestamp)
}

// Within reports whether the fix's horizontal accuracy is at most threshold
// meters. An infinite threshold accepts every fix, including one with
// unknown accuracy; a finite one rejects unknown accuracy.
func (f Fix) Within(threshold float64) bool {
	if math.IsInf(threshold, 1) {
		return true
	}
	return f.Accuracy >= 0 && f.Accuracy <= threshold
}

// Payload returns the fix as the result object handed across the bridge.
func (f Fix) Payload() map[string]any {
	return map[string]any{
		"latitude":         f.Latitude,
		"longitude":        f.Longitude,
		"altitude":         f.Altitude,
		"speed":            f.Speed,
		"accuracy":         f.Accuracy,
		"time":             f.Timestamp,
		"verticalAccuracy": f.VerticalAccuracy,
		"course":           f.Course,
	}
}
