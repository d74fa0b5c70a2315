package platform

import "errors"

// Sentinel errors for platform operations.
var (
	// ErrChannelNotFound indicates the requested platform channel does not exist.
	ErrChannelNotFound = errors.New("platform channel not found")

	// ErrMethodNotFound indicates the method is not implemented on the native side.
	ErrMethodNotFound = errors.New("method not implemented")

	// ErrInvalidArguments indicates the arguments passed to the method were invalid.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrPlatformUnavailable indicates no native bridge is installed or the
	// platform feature is not available.
	ErrPlatformUnavailable = errors.New("platform feature unavailable")

	// ErrClosed is returned when operating on a closed channel or stream.
	ErrClosed = errors.New("platform: channel closed")

	// ErrStreamEnded is delivered to stream error handlers when native code
	// ends an event stream that still had listeners.
	ErrStreamEnded = errors.New("platform: event stream ended")
)

// CodeNotImplemented is the ChannelError code native code uses for methods
// it does not implement.
const CodeNotImplemented = "not_implemented"

// IsNotImplemented reports whether err means the native side lacks the method.
func IsNotImplemented(err error) bool {
	if errors.Is(err, ErrMethodNotFound) {
		return true
	}
	var chErr *ChannelError
	return errors.As(err, &chErr) && chErr.Code == CodeNotImplemented
}
