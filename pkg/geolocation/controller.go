// Package geolocation answers "where is the device now?" with exactly one
// fix that meets a requested accuracy, or with one typed error.
//
// A Controller owns at most one in-flight request. It waits for location
// permission when needed, tracks the device until a reading is accurate
// enough, and enforces an optional timeout. A newer request cancels the
// older one. Permission changes, position deliveries and timer fires arrive
// from independent goroutines; the Controller funnels all of them through a
// single Executor so that each request resolves exactly once and every
// subscription and timer is released on every exit path.
package geolocation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	drifterrors "github.com/go-drift/geolocation/pkg/errors"
)

// State is the controller's lifecycle state.
type State int

const (
	// StateIdle means no request is in flight.
	StateIdle State = iota
	// StateAwaitingAuthorization means the permission prompt is showing.
	StateAwaitingAuthorization
	// StateTracking means the position source is running.
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateAwaitingAuthorization:
		return "awaiting_authorization"
	case StateTracking:
		return "tracking"
	default:
		return "idle"
	}
}

// RequestID identifies a request accepted by Controller.Request.
type RequestID uint64

// ResultHandler receives the single outcome of a request. Exactly one of the
// callbacks is invoked, exactly once. Errors are always *Error.
type ResultHandler struct {
	OnFix   func(fix Fix)
	OnError func(err error)
}

// session is the state of one in-flight request. Fields other than state are
// only touched from executor jobs.
type session struct {
	id      RequestID
	req     Request
	handler ResultHandler
	state   State
	source  PositionSource
	timer   TimeoutTimer
	done    bool
}

// Controller runs one-shot location requests.
type Controller struct {
	gate      AuthorizationGate
	services  ServiceChecker
	newSource SourceFactory
	newTimer  TimerFactory
	exec      Executor

	nextID atomic.Uint64

	mu          sync.Mutex
	active      *session
	closed      bool
	unsubscribe func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithExecutor sets the executor that serializes controller work.
// Defaults to NewSerialExecutor.
func WithExecutor(exec Executor) Option {
	return func(c *Controller) {
		c.exec = exec
	}
}

// WithTimerFactory sets how timeout timers are created. Defaults to NewTimer.
func WithTimerFactory(f TimerFactory) Option {
	return func(c *Controller) {
		c.newTimer = f
	}
}

// WithSourceFactory replaces the factory passed to New. NewPlatformController
// callers use it to substitute the native position source.
func WithSourceFactory(f SourceFactory) Option {
	return func(c *Controller) {
		c.newSource = f
	}
}

// New creates a Controller and subscribes it to gate's status changes.
// Call Close to unsubscribe.
func New(gate AuthorizationGate, services ServiceChecker, sources SourceFactory, opts ...Option) *Controller {
	c := &Controller{
		gate:      gate,
		services:  services,
		newSource: sources,
		newTimer:  NewTimer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = NewSerialExecutor()
	}
	unsubscribe := gate.Listen(
		func(status AuthorizationStatus) {
			c.exec(func() { c.onAuthorization(status) })
		},
		func(err error) {
			c.exec(func() { c.onGateError(err) })
		},
	)
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return c
}

// Request starts a request and returns immediately. Any request still in
// flight is resolved with CodeCancelled before the new one is processed.
// The outcome is delivered to h.
func (c *Controller) Request(req Request, h ResultHandler) RequestID {
	id := RequestID(c.nextID.Add(1))
	req = req.normalized()
	c.exec(func() { c.begin(id, req, h) })
	return id
}

// GetCurrentPosition runs a request and waits for its outcome. If ctx ends
// first, the request is cancelled and ctx.Err() is returned.
func (c *Controller) GetCurrentPosition(ctx context.Context, req Request) (Fix, error) {
	type result struct {
		fix Fix
		err error
	}
	done := make(chan result, 1)
	id := c.Request(req, ResultHandler{
		OnFix:   func(fix Fix) { done <- result{fix: fix} },
		OnError: func(err error) { done <- result{err: err} },
	})
	select {
	case r := <-done:
		return r.fix, r.err
	case <-ctx.Done():
		c.cancel(id, "context done")
		return Fix{}, ctx.Err()
	}
}

// Cancel resolves the in-flight request, if any, with CodeCancelled.
func (c *Controller) Cancel() {
	c.cancel(0, "cancelled by caller")
}

// cancel resolves the active session with CodeCancelled. A non-zero id limits
// cancellation to that request.
func (c *Controller) cancel(id RequestID, reason string) {
	c.exec(func() {
		s := c.current()
		if s == nil || (id != 0 && s.id != id) {
			return
		}
		c.finish(s, nil, newError(CodeCancelled, reason, nil))
	})
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return StateIdle
	}
	return c.active.state
}

// Close unsubscribes from permission changes and cancels the in-flight
// request. Requests made after Close resolve with CodeCancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.cancel(0, "controller closed")
}

func (c *Controller) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) setState(s *session, state State) {
	c.mu.Lock()
	s.state = state
	c.mu.Unlock()
}

func (c *Controller) begin(id RequestID, req Request, h ResultHandler) {
	if prev := c.current(); prev != nil {
		c.finish(prev, nil, newError(CodeCancelled, "superseded by a newer request", nil))
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		deliver(h, nil, newError(CodeCancelled, "controller closed", nil))
		return
	}

	ctx := context.Background()
	enabled, err := c.services.ServicesEnabled(ctx)
	if err != nil {
		deliver(h, nil, newError(CodeUnavailable, "could not query location services", err))
		return
	}
	if !enabled {
		deliver(h, nil, newError(CodeUnavailable, "location services are disabled", nil))
		return
	}

	s := &session{id: id, req: req, handler: h, state: StateAwaitingAuthorization}
	c.mu.Lock()
	c.active = s
	c.mu.Unlock()

	status, err := c.gate.Status(ctx)
	if err != nil {
		c.finish(s, nil, newError(CodeUnavailable, "could not query location permission", err))
		return
	}
	switch status {
	case AuthorizationGranted:
		c.startTracking(s)
	case AuthorizationDenied:
		c.finish(s, nil, newError(CodeUnauthorized, "location permission denied", nil))
	default:
		if err := c.gate.RequestAuthorization(ctx); err != nil {
			c.finish(s, nil, newError(CodeUnavailable, "could not request location permission", err))
		}
	}
}

func (c *Controller) onAuthorization(status AuthorizationStatus) {
	s := c.current()
	if s == nil || s.done || s.state != StateAwaitingAuthorization {
		return
	}
	switch status {
	case AuthorizationGranted:
		c.startTracking(s)
	case AuthorizationDenied:
		c.finish(s, nil, newError(CodeUnauthorized, "location permission denied", nil))
	}
}

func (c *Controller) onGateError(err error) {
	s := c.current()
	if s == nil || s.done || s.state != StateAwaitingAuthorization {
		drifterrors.Report(&drifterrors.DriftError{
			Op:   "geolocation.authorization",
			Kind: drifterrors.KindLocation,
			Err:  err,
		})
		return
	}
	c.finish(s, nil, newError(CodeUnavailable, "location permission stream failed", err))
}

func (c *Controller) startTracking(s *session) {
	c.setState(s, StateTracking)
	src := c.newSource()
	s.source = src
	err := src.Start(s.req.Hint(), UpdateHandler{
		OnFixes: func(fixes []Fix) {
			batch := append([]Fix(nil), fixes...)
			c.exec(func() { c.onFixes(s, batch) })
		},
		OnError: func(err error) {
			c.exec(func() { c.onSourceError(s, err) })
		},
	})
	if err != nil {
		c.finish(s, nil, newError(CodeUnavailable, "could not start location updates", err))
		return
	}
	// A synchronous executor may already have resolved the session from
	// inside Start.
	if s.done || s.req.Timeout <= 0 {
		return
	}
	timer := c.newTimer()
	s.timer = timer
	timer.Arm(s.req.Timeout, func() {
		c.exec(func() { c.onTimeout(s) })
	})
}

func (c *Controller) onFixes(s *session, fixes []Fix) {
	if s.done || s.state != StateTracking {
		return
	}
	for _, fix := range fixes {
		if fix.Within(s.req.DesiredAccuracy) {
			c.finish(s, &fix, nil)
			return
		}
	}
}

func (c *Controller) onSourceError(s *session, err error) {
	if s.done {
		drifterrors.Report(&drifterrors.DriftError{
			Op:   "geolocation.source",
			Kind: drifterrors.KindLocation,
			Err:  fmt.Errorf("request %d already resolved: %w", s.id, err),
		})
		return
	}
	c.finish(s, nil, newError(CodeUnavailable, "location updates failed", err))
}

func (c *Controller) onTimeout(s *session) {
	if s.done {
		return
	}
	c.finish(s, nil, newError(CodeTimeout, fmt.Sprintf("no fix within %v", s.req.Timeout), nil))
}

// finish tears the session down and then delivers its outcome. Later calls
// for the same session are ignored.
func (c *Controller) finish(s *session, fix *Fix, err error) {
	if s.done {
		return
	}
	s.done = true
	if s.source != nil {
		s.source.Stop()
	}
	if s.timer != nil {
		s.timer.Cancel()
	}
	c.mu.Lock()
	s.state = StateIdle
	if c.active == s {
		c.active = nil
	}
	c.mu.Unlock()

	deliver(s.handler, fix, err)
}

func deliver(h ResultHandler, fix *Fix, err error) {
	defer drifterrors.Recover("geolocation.handler")
	if err != nil {
		if h.OnError != nil {
			h.OnError(err)
		}
		return
	}
	if h.OnFix != nil {
		h.OnFix(*fix)
	}
}
