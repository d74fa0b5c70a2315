package geolocation

// UpdateHandler receives deliveries from a PositionSource. Each call to
// OnFixes carries one delivery, in the order the device produced it.
type UpdateHandler struct {
	OnFixes func(fixes []Fix)
	OnError func(err error)
}

// PositionSource wraps the platform positioning service for one session.
// A source is started at most once; it is not restartable.
type PositionSource interface {
	// Start begins delivering fixes to h. Deliveries may arrive on any goroutine.
	Start(hint AccuracyHint, h UpdateHandler) error

	// Stop ends delivery. It is idempotent and safe to call on a source that
	// was never started.
	Stop()
}

// SourceFactory creates a fresh PositionSource for each session.
type SourceFactory func() PositionSource
