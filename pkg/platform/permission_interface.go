package platform

import "context"

// Permission is a runtime permission guarding a platform feature.
type Permission interface {
	// Status returns the current permission status.
	Status(ctx context.Context) (PermissionStatus, error)

	// Prompt shows the permission dialog and returns immediately. The answer
	// arrives through ListenWithError; an already decided permission is
	// re-emitted.
	Prompt(ctx context.Context) error

	// ListenWithError subscribes to status changes. Stream errors go to
	// onError, or to errors.Report when onError is nil.
	ListenWithError(handler func(PermissionStatus), onError func(error)) (unsubscribe func())
}
