package geotest

import (
	"context"
	"sync"

	"github.com/go-drift/geolocation/pkg/geolocation"
)

// FakeGate is a scriptable geolocation.AuthorizationGate.
type FakeGate struct {
	mu         sync.Mutex
	status     geolocation.AuthorizationStatus
	statusErr  error
	requestErr error
	requests   int
	nextID     int
	listeners  map[int]gateListener
}

type gateListener struct {
	onStatus func(geolocation.AuthorizationStatus)
	onError  func(error)
}

// NewFakeGate returns a gate reporting status.
func NewFakeGate(status geolocation.AuthorizationStatus) *FakeGate {
	return &FakeGate{status: status, listeners: make(map[int]gateListener)}
}

// Status returns the scripted status or error.
func (g *FakeGate) Status(ctx context.Context) (geolocation.AuthorizationStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, g.statusErr
}

// RequestAuthorization records the prompt. It does not answer it; call Emit.
func (g *FakeGate) RequestAuthorization(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests++
	return g.requestErr
}

// Listen registers listeners for Emit and EmitError.
func (g *FakeGate) Listen(onStatus func(geolocation.AuthorizationStatus), onError func(error)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = gateListener{onStatus: onStatus, onError: onError}
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

// SetStatus changes the reported status without notifying listeners.
func (g *FakeGate) SetStatus(status geolocation.AuthorizationStatus) {
	g.mu.Lock()
	g.status = status
	g.mu.Unlock()
}

// FailStatus makes Status return err.
func (g *FakeGate) FailStatus(err error) {
	g.mu.Lock()
	g.statusErr = err
	g.mu.Unlock()
}

// FailRequest makes RequestAuthorization return err.
func (g *FakeGate) FailRequest(err error) {
	g.mu.Lock()
	g.requestErr = err
	g.mu.Unlock()
}

// Emit changes the status and notifies every listener synchronously.
func (g *FakeGate) Emit(status geolocation.AuthorizationStatus) {
	g.SetStatus(status)
	for _, l := range g.snapshot() {
		if l.onStatus != nil {
			l.onStatus(status)
		}
	}
}

// EmitError delivers err to every listener synchronously.
func (g *FakeGate) EmitError(err error) {
	for _, l := range g.snapshot() {
		if l.onError != nil {
			l.onError(err)
		}
	}
}

// Requests returns how many times RequestAuthorization was called.
func (g *FakeGate) Requests() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

// Listeners returns the number of active listeners.
func (g *FakeGate) Listeners() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listeners)
}

func (g *FakeGate) snapshot() []gateListener {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]gateListener, 0, len(g.listeners))
	for _, l := range g.listeners {
		out = append(out, l)
	}
	return out
}

// FakeServices is a geolocation.ServiceChecker with a settable answer.
type FakeServices struct {
	mu      sync.Mutex
	enabled bool
	err     error
}

// NewFakeServices returns a checker reporting enabled.
func NewFakeServices(enabled bool) *FakeServices {
	return &FakeServices{enabled: enabled}
}

// ServicesEnabled returns the scripted answer.
func (s *FakeServices) ServicesEnabled(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled, s.err
}

// SetEnabled changes the answer.
func (s *FakeServices) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Fail makes ServicesEnabled return err.
func (s *FakeServices) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// FakeSources creates and remembers FakeSource instances. Its New method has
// the signature of a geolocation.SourceFactory.
type FakeSources struct {
	mu sync.Mutex
	// StartErr, if set, is returned by Start on every source created afterwards.
	StartErr error
	// OnStart, if set, is called after each successful Start, outside the
	// source's lock. Use it to emit synchronously from inside Start.
	OnStart func(src *FakeSource)
	sources []*FakeSource
}

// New creates a FakeSource.
func (f *FakeSources) New() geolocation.PositionSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := &FakeSource{startErr: f.StartErr, onStart: f.OnStart}
	f.sources = append(f.sources, src)
	return src
}

// Count returns how many sources were created.
func (f *FakeSources) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

// Last returns the most recently created source, or nil.
func (f *FakeSources) Last() *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sources) == 0 {
		return nil
	}
	return f.sources[len(f.sources)-1]
}

// FakeSource is a geolocation.PositionSource that records calls and emits on
// demand.
type FakeSource struct {
	mu       sync.Mutex
	startErr error
	onStart  func(*FakeSource)
	handler  geolocation.UpdateHandler
	hint     geolocation.AccuracyHint
	starts   int
	stops    int
	running  bool
}

// Start records the call and keeps h for Emit and Fail.
func (s *FakeSource) Start(hint geolocation.AccuracyHint, h geolocation.UpdateHandler) error {
	s.mu.Lock()
	s.starts++
	if s.startErr != nil {
		s.mu.Unlock()
		return s.startErr
	}
	s.hint = hint
	s.handler = h
	s.running = true
	onStart := s.onStart
	s.mu.Unlock()

	if onStart != nil {
		onStart(s)
	}
	return nil
}

// Stop records the call.
func (s *FakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.running = false
}

// Emit delivers fixes as one delivery. It delivers even after Stop, to
// simulate platform events that were already in flight.
func (s *FakeSource) Emit(fixes ...geolocation.Fix) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h.OnFixes != nil {
		h.OnFixes(fixes)
	}
}

// Fail delivers err. Like Emit, it delivers even after Stop.
func (s *FakeSource) Fail(err error) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Running reports whether the source was started and not yet stopped.
func (s *FakeSource) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Starts returns how many times Start was called.
func (s *FakeSource) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Stops returns how many times Stop was called.
func (s *FakeSource) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Hint returns the accuracy hint passed to Start.
func (s *FakeSource) Hint() geolocation.AccuracyHint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hint
}

// FakeSettings is a recording geolocation.SettingsLauncher.
type FakeSettings struct {
	mu    sync.Mutex
	err   error
	opens int
}

// OpenSettings records the call and returns the scripted error.
func (f *FakeSettings) OpenSettings(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	return f.err
}

// Fail makes OpenSettings return err.
func (f *FakeSettings) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Opens returns how many times OpenSettings was called.
func (f *FakeSettings) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}
