package geolocation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-drift/geolocation/pkg/platform"
)

// MethodChannelName is the channel native code calls to use a Controller.
//
//	getCurrentPosition {enableHighAccuracy, timeout, desiredAccuracy} -> fix payload
//	cancel                                                              -> null
//	openSettings                                                        -> null
//
// A failed request comes back as a platform.ChannelError whose code is the
// request's Code and whose details are the error payload.
const MethodChannelName = "drift/geolocation"

// CodeSettingsFailed is the channel error code for a failed openSettings call.
const CodeSettingsFailed = "SETTINGS_FAILED"

var serviceChannel = sync.OnceValue(func() *platform.MethodChannel {
	return platform.NewMethodChannel(MethodChannelName)
})

// Serve answers native calls on MethodChannelName with c and settings until
// stop is called or ctx ends. getCurrentPosition blocks the calling bridge
// thread until the request resolves; when ctx ends the request is cancelled
// and ctx.Err() is returned to the bridge.
func Serve(ctx context.Context, c *Controller, settings SettingsLauncher) (stop func()) {
	ch := serviceChannel()
	ch.SetHandler(func(method string, args any) (any, error) {
		switch method {
		case "getCurrentPosition":
			m, ok := args.(map[string]any)
			if args != nil && !ok {
				return nil, fmt.Errorf("%w: options must be an object, got %T", platform.ErrInvalidArguments, args)
			}
			req, err := RequestFromMap(m)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", platform.ErrInvalidArguments, err)
			}
			fix, err := c.GetCurrentPosition(ctx, req)
			if err != nil {
				return nil, toChannelError(err)
			}
			return fix.Payload(), nil
		case "cancel":
			c.Cancel()
			return nil, nil
		case "openSettings":
			if err := settings.OpenSettings(ctx); err != nil {
				return nil, platform.NewChannelError(CodeSettingsFailed, err.Error())
			}
			return nil, nil
		}
		return nil, platform.ErrMethodNotFound
	})
	return func() { ch.SetHandler(nil) }
}

func toChannelError(err error) error {
	var gerr *Error
	if !errors.As(err, &gerr) {
		return err
	}
	return platform.NewChannelErrorWithDetails(string(gerr.Code), gerr.Message, gerr.Payload())
}

// ErrorFromChannel rebuilds the *Error carried by a channel error returned
// from getCurrentPosition. ok is false for any other error.
func ErrorFromChannel(err error) (gerr *Error, ok bool) {
	var chErr *platform.ChannelError
	if !errors.As(err, &chErr) {
		return nil, false
	}
	switch code := Code(chErr.Code); code {
	case CodeUnavailable, CodeTimeout, CodeUnauthorized, CodeCancelled:
		gerr = &Error{Code: code, Message: chErr.Message}
	default:
		return nil, false
	}
	if details, _ := chErr.Details.(map[string]any); details != nil {
		if cause, _ := details["cause"].(string); cause != "" {
			gerr.Err = errors.New(cause)
		}
	}
	return gerr, true
}

// Options returns the request as a bridge options object, the inverse of
// RequestFromMap. Defaults are omitted.
func (r Request) Options() map[string]any {
	r = r.normalized()
	m := map[string]any{"enableHighAccuracy": r.EnableHighAccuracy}
	if r.Timeout > 0 {
		m["timeout"] = float64(r.Timeout) / 1e6
	}
	if !math.IsInf(r.DesiredAccuracy, 1) {
		m["desiredAccuracy"] = r.DesiredAccuracy
	}
	return m
}

// FixFromPayload decodes a fix payload as produced by Fix.Payload and sent
// across the bridge.
func FixFromPayload(m map[string]any) (Fix, error) {
	var f Fix
	fields := []struct {
		key string
		dst *float64
	}{
		{"latitude", &f.Latitude},
		{"longitude", &f.Longitude},
		{"altitude", &f.Altitude},
		{"speed", &f.Speed},
		{"accuracy", &f.Accuracy},
		{"verticalAccuracy", &f.VerticalAccuracy},
		{"course", &f.Course},
	}
	for _, field := range fields {
		v, ok := number(m[field.key])
		if !ok {
			return Fix{}, fmt.Errorf("geolocation: fix %s: expected number, got %T", field.key, m[field.key])
		}
		*field.dst = v
	}
	ms, ok := number(m["time"])
	if !ok {
		return Fix{}, fmt.Errorf("geolocation: fix time: expected number, got %T", m["time"])
	}
	f.Timestamp = int64(ms)
	return f, nil
}
