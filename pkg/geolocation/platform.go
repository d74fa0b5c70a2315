package geolocation

import (
	"context"
	"errors"
	"sync"
	"time"

	drifterrors "github.com/go-drift/geolocation/pkg/errors"
	"github.com/go-drift/geolocation/pkg/platform"
)

// AppSettingsURL is opened through the URL launcher when the native side has
// no dedicated settings method.
const AppSettingsURL = "app-settings:"

var (
	errSourceReused = errors.New("geolocation: position source already started")

	// ErrNoSettingsHandler is wrapped in the SettingsError returned when
	// native code has no settings method and nothing handles AppSettingsURL.
	ErrNoSettingsHandler = errors.New("geolocation: no handler for the settings URL")
)

// ClassifyPermission maps a platform permission status onto the three states
// the controller distinguishes. Limited (approximate) access counts as
// granted; the accuracy threshold decides whether its fixes are good enough.
func ClassifyPermission(status platform.PermissionStatus) AuthorizationStatus {
	switch status {
	case platform.PermissionGranted, platform.PermissionLimited:
		return AuthorizationGranted
	case platform.PermissionDenied, platform.PermissionPermanentlyDenied, platform.PermissionRestricted:
		return AuthorizationDenied
	default:
		return AuthorizationUndetermined
	}
}

// platformGate implements AuthorizationGate and ServiceChecker over the
// platform location service.
type platformGate struct {
	svc *platform.LocationService
}

func (g platformGate) Status(ctx context.Context) (AuthorizationStatus, error) {
	status, err := g.svc.Permission.WhenInUse.Status(ctx)
	if err != nil {
		return AuthorizationUndetermined, err
	}
	return ClassifyPermission(status), nil
}

func (g platformGate) RequestAuthorization(ctx context.Context) error {
	return g.svc.PromptPermission(ctx)
}

func (g platformGate) Listen(onStatus func(AuthorizationStatus), onError func(error)) func() {
	return g.svc.Permission.WhenInUse.ListenWithError(func(status platform.PermissionStatus) {
		onStatus(ClassifyPermission(status))
	}, onError)
}

func (g platformGate) ServicesEnabled(ctx context.Context) (bool, error) {
	return g.svc.IsEnabled(ctx)
}

// platformSource implements PositionSource over the platform location
// service's update stream.
type platformSource struct {
	svc *platform.LocationService

	mu          sync.Mutex
	started     bool
	stopped     bool
	unsubscribe func()
}

func newPlatformSource(svc *platform.LocationService) *platformSource {
	return &platformSource{svc: svc}
}

func (s *platformSource) Start(hint AccuracyHint, h UpdateHandler) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return errSourceReused
	}
	s.started = true
	s.mu.Unlock()

	unsubscribe := s.svc.Updates().ListenWithError(func(batch []platform.LocationUpdate) {
		fixes := make([]Fix, len(batch))
		for i, u := range batch {
			fixes[i] = fixFromUpdate(u)
		}
		if h.OnFixes != nil {
			h.OnFixes(fixes)
		}
	}, h.OnError)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	err := s.svc.StartUpdates(context.Background(), platform.LocationOptions{
		HighAccuracy: hint == HintBest,
	})
	if err != nil {
		s.Stop()
		return err
	}
	return nil
}

func (s *platformSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasStarted := s.started
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if !wasStarted {
		return
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	if err := s.svc.StopUpdates(context.Background()); err != nil && !errors.Is(err, platform.ErrPlatformUnavailable) {
		drifterrors.Report(&drifterrors.DriftError{
			Op:      "geolocation.stopUpdates",
			Kind:    drifterrors.KindPlatform,
			Channel: "drift/location",
			Err:     err,
		})
	}
}

func fixFromUpdate(u platform.LocationUpdate) Fix {
	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Fix{
		Latitude:         u.Latitude,
		Longitude:        u.Longitude,
		Altitude:         u.Altitude,
		Speed:            u.Speed,
		Accuracy:         u.Accuracy,
		VerticalAccuracy: u.VerticalAccuracy,
		Course:           u.Heading,
		Timestamp:        ts.UnixMilli(),
	}
}

// platformSettings implements SettingsLauncher.
type platformSettings struct{}

func (platformSettings) OpenSettings(ctx context.Context) error {
	err := platform.OpenAppSettings(ctx)
	if err != nil && platform.IsNotImplemented(err) {
		err = openSettingsURL(ctx)
	}
	if err != nil {
		return &SettingsError{Err: err}
	}
	return nil
}

func openSettingsURL(ctx context.Context) error {
	ok, err := platform.URLLauncher.CanOpenURL(ctx, AppSettingsURL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoSettingsHandler
	}
	return platform.URLLauncher.OpenURL(ctx, AppSettingsURL)
}

// PlatformSettings returns the SettingsLauncher backed by the native bridge.
func PlatformSettings() SettingsLauncher {
	return platformSettings{}
}

// OpenAppSettings opens the app's page in the system settings.
func OpenAppSettings(ctx context.Context) error {
	return PlatformSettings().OpenSettings(ctx)
}

// NewPlatformController returns a Controller wired to the native bridge.
// When a main-thread dispatcher is registered, controller work runs on it;
// otherwise a serial executor is used. Options override these defaults.
//
// Controller jobs call the bridge synchronously (isEnabled, check, request,
// startUpdates, stopUpdates), so with a dispatcher those calls run on the
// main thread. The bridge must answer them there without waiting for
// another main-thread callback.
func NewPlatformController(opts ...Option) *Controller {
	gate := platformGate{svc: platform.Location}
	var base []Option
	if platform.DispatchRegistered() {
		base = append(base, WithExecutor(dispatchExecutor()))
	}
	return New(gate, gate, func() PositionSource {
		return newPlatformSource(platform.Location)
	}, append(base, opts...)...)
}

// dispatchExecutor posts jobs to the platform dispatcher and falls back to a
// serial queue if the dispatcher goes away.
func dispatchExecutor() Executor {
	fallback := NewSerialExecutor()
	return func(job func()) {
		if !platform.Dispatch(job) {
			fallback(job)
		}
	}
}
