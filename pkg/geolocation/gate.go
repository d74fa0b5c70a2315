package geolocation

import "context"

// AuthorizationStatus is the classified location permission state.
type AuthorizationStatus int

const (
	// AuthorizationUndetermined means the user has not answered yet.
	AuthorizationUndetermined AuthorizationStatus = iota
	// AuthorizationGranted means foreground location access is allowed.
	AuthorizationGranted
	// AuthorizationDenied means access was refused or is restricted by policy.
	AuthorizationDenied
)

func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationGranted:
		return "granted"
	case AuthorizationDenied:
		return "denied"
	default:
		return "undetermined"
	}
}

// AuthorizationGate queries and observes location permission.
type AuthorizationGate interface {
	// Status returns the current classified permission status.
	Status(ctx context.Context) (AuthorizationStatus, error)

	// RequestAuthorization shows the permission prompt and returns without
	// waiting. The answer arrives later through Listen.
	RequestAuthorization(ctx context.Context) error

	// Listen subscribes to status changes and stream errors. Events arrive
	// whether or not a request is waiting for them.
	Listen(onStatus func(AuthorizationStatus), onError func(error)) (unsubscribe func())
}

// ServiceChecker reports whether the device positioning service is switched on.
type ServiceChecker interface {
	ServicesEnabled(ctx context.Context) (bool, error)
}
