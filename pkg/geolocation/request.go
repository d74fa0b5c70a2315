package geolocation

import (
	"fmt"
	"math"
	"time"
)

// AccuracyHint selects how hard the positioning service should work.
type AccuracyHint int

const (
	// HintCoarse asks for a battery-friendly fix (cell/Wi-Fi).
	HintCoarse AccuracyHint = iota
	// HintBest asks for the best fix the hardware can produce (GPS).
	HintBest
)

func (h AccuracyHint) String() string {
	if h == HintBest {
		return "best"
	}
	return "coarse"
}

// Request describes one position request. The zero value is the default
// request: coarse accuracy, no timeout, any fix accepted.
type Request struct {
	// EnableHighAccuracy selects HintBest instead of HintCoarse.
	EnableHighAccuracy bool
	// Timeout bounds the time spent tracking once permission is granted.
	// Zero or negative disables the timeout.
	Timeout time.Duration
	// DesiredAccuracy is the largest acceptable horizontal accuracy in
	// meters. Zero, negative or NaN accepts any fix.
	DesiredAccuracy float64
}

// Hint returns the accuracy hint passed to the position source.
func (r Request) Hint() AccuracyHint {
	if r.EnableHighAccuracy {
		return HintBest
	}
	return HintCoarse
}

// normalized returns the request with defaults applied.
func (r Request) normalized() Request {
	if r.Timeout < 0 {
		r.Timeout = 0
	}
	if math.IsNaN(r.DesiredAccuracy) || r.DesiredAccuracy <= 0 {
		r.DesiredAccuracy = math.Inf(1)
	}
	return r
}

// RequestFromMap builds a Request from a bridge options object with the keys
// enableHighAccuracy (bool), timeout (milliseconds) and desiredAccuracy
// (meters). Missing keys take their defaults.
func RequestFromMap(m map[string]any) (Request, error) {
	var req Request
	if v, ok := m["enableHighAccuracy"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return Request{}, fmt.Errorf("geolocation: enableHighAccuracy: expected bool, got %T", v)
		}
		req.EnableHighAccuracy = b
	}
	if v, ok := m["timeout"]; ok && v != nil {
		ms, ok := number(v)
		if !ok {
			return Request{}, fmt.Errorf("geolocation: timeout: expected number, got %T", v)
		}
		req.Timeout = time.Duration(ms * float64(time.Millisecond))
	}
	if v, ok := m["desiredAccuracy"]; ok && v != nil {
		meters, ok := number(v)
		if !ok {
			return Request{}, fmt.Errorf("geolocation: desiredAccuracy: expected number, got %T", v)
		}
		req.DesiredAccuracy = meters
	}
	return req.normalized(), nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
