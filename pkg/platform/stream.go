package platform

import (
	"fmt"

	drifterrors "github.com/go-drift/geolocation/pkg/errors"
)

// Stream provides a multi-subscriber broadcast of typed platform events.
// Use Listen or ListenWithError to subscribe and the returned function to
// unsubscribe.
type Stream[T any] struct {
	eventChannel *EventChannel
	channelName  string
	parser       func(data any) (T, error)
}

// NewStream creates a Stream wrapping an EventChannel.
// The parser converts raw event data to the typed value, returning error on parse failure.
func NewStream[T any](name string, channel *EventChannel, parser func(data any) (T, error)) *Stream[T] {
	return &Stream[T]{
		eventChannel: channel,
		channelName:  name,
		parser:       parser,
	}
}

// Listen subscribes to events and returns an unsubscribe function.
// Parse errors and stream errors are reported via errors.Report.
func (s *Stream[T]) Listen(handler func(T)) (unsubscribe func()) {
	return s.ListenWithError(handler, nil)
}

// ListenWithError is like Listen but delivers stream errors (native failures
// and bridge startup errors) to onError instead of reporting them. If native
// code ends the stream, onError receives an error wrapping ErrStreamEnded and
// the subscription is over. Parse errors are always reported and never
// delivered. A nil onError falls back to reporting.
func (s *Stream[T]) ListenWithError(handler func(T), onError func(error)) (unsubscribe func()) {
	sub := s.eventChannel.Listen(EventHandler{
		OnEvent: func(data any) {
			val, err := s.parser(data)
			if err != nil {
				drifterrors.Report(&drifterrors.DriftError{
					Op:      "stream.parse",
					Kind:    drifterrors.KindParsing,
					Channel: s.channelName,
					Err:     err,
				})
				return
			}
			handler(val)
		},
		OnError: func(err error) {
			if onError != nil {
				onError(err)
				return
			}
			drifterrors.Report(&drifterrors.DriftError{
				Op:      "stream.error",
				Kind:    drifterrors.KindPlatform,
				Channel: s.channelName,
				Err:     err,
			})
		},
		OnDone: func() {
			if onError != nil {
				onError(fmt.Errorf("%w: %s", ErrStreamEnded, s.channelName))
			}
		},
	})
	return sub.Cancel
}
