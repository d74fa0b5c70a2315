package geolocation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	drifterrors "github.com/go-drift/geolocation/pkg/errors"
	"github.com/go-drift/geolocation/pkg/geolocation"
	"github.com/go-drift/geolocation/pkg/geotest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects the outcomes delivered to a ResultHandler.
type recorder struct {
	mu    sync.Mutex
	fixes []geolocation.Fix
	errs  []error
}

func (r *recorder) handler() geolocation.ResultHandler {
	return geolocation.ResultHandler{
		OnFix: func(fix geolocation.Fix) {
			r.mu.Lock()
			r.fixes = append(r.fixes, fix)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fixes) + len(r.errs)
}

func (r *recorder) fix(t *testing.T) geolocation.Fix {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) != 0 {
		t.Fatalf("expected a fix, got error %v", r.errs[0])
	}
	if len(r.fixes) != 1 {
		t.Fatalf("expected exactly one fix, got %d", len(r.fixes))
	}
	return r.fixes[0]
}

func (r *recorder) err(t *testing.T) error {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fixes) != 0 {
		t.Fatalf("expected an error, got fix %+v", r.fixes[0])
	}
	if len(r.errs) != 1 {
		t.Fatalf("expected exactly one error, got %d", len(r.errs))
	}
	return r.errs[0]
}

type harness struct {
	clock    *geotest.FakeClock
	gate     *geotest.FakeGate
	services *geotest.FakeServices
	sources  *geotest.FakeSources
	ctrl     *geolocation.Controller
}

func newHarness(t *testing.T, status geolocation.AuthorizationStatus) *harness {
	t.Helper()
	h := &harness{
		clock:    geotest.NewFakeClock(),
		gate:     geotest.NewFakeGate(status),
		services: geotest.NewFakeServices(true),
		sources:  &geotest.FakeSources{},
	}
	h.ctrl = geolocation.New(h.gate, h.services, h.sources.New,
		geolocation.WithTimerFactory(h.clock.NewTimer))
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) fixAt(accuracy float64) geolocation.Fix {
	return geolocation.Fix{
		Latitude:         37.3318,
		Longitude:        -122.0312,
		Altitude:         12.5,
		Speed:            1.2,
		Accuracy:         accuracy,
		VerticalAccuracy: 4,
		Course:           90,
		Timestamp:        h.clock.Now().UnixMilli(),
	}
}

func expectCode(t *testing.T, err error, want geolocation.Code) {
	t.Helper()
	if got := geolocation.CodeOf(err); got != want {
		t.Fatalf("expected code %s, got %s (%v)", want, got, err)
	}
}

func TestController_PreGrantedHighAccuracyResolvesWithFullPayload(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)
	rec := &recorder{}

	h.ctrl.Request(geolocation.Request{
		EnableHighAccuracy: true,
		DesiredAccuracy:    20,
	}, rec.handler())

	if got := h.ctrl.State(); got != geolocation.StateTracking {
		t.Fatalf("expected tracking without an authorization event, got %s", got)
	}
	if h.gate.Requests() != 0 {
		t.Errorf("pre-granted permission should not prompt, got %d prompts", h.gate.Requests())
	}
	src := h.sources.Last()
	if src == nil || !src.Running() {
		t.Fatal("expected a running source")
	}
	if src.Hint() != geolocation.HintBest {
		t.Errorf("expected HintBest, got %s", src.Hint())
	}
	if h.clock.Pending() != 0 {
		t.Errorf("timeout 0 must not arm a timer, %d pending", h.clock.Pending())
	}

	h.clock.Advance(50 * time.Millisecond)
	want := h.fixAt(15)
	src.Emit(want)

	got := rec.fix(t)
	if got != want {
		t.Errorf("fix = %+v, want %+v", got, want)
	}
	if !got.Time().Equal(h.clock.Now()) {
		t.Errorf("fix time %v, want %v", got.Time(), h.clock.Now())
	}
	payload := got.Payload()
	for _, key := range []string{"latitude", "longitude", "altitude", "speed", "accuracy", "time", "verticalAccuracy", "course"} {
		if _, ok := payload[key]; !ok {
			t.Errorf("payload missing %q", key)
		}
	}
	if payload["accuracy"] != 15.0 {
		t.Errorf("payload accuracy = %v", payload["accuracy"])
	}
	if src.Running() {
		t.Error("source should be stopped after resolution")
	}
	if got := h.ctrl.State(); got != geolocation.StateIdle {
		t.Errorf("expected idle after resolution, got %s", got)
	}
}

func TestController_AccuracyGate(t *testing.T) {
	tests := []struct {
		name       string
		deliveries [][]float64
		desired    float64
		want       float64
		resolved   bool
	}{
		{
			name:       "one delivery, first too coarse",
			deliveries: [][]float64{{50, 5}},
			desired:    10,
			want:       5,
			resolved:   true,
		},
		{
			name:       "separate deliveries",
			deliveries: [][]float64{{50}, {5}},
			desired:    10,
			want:       5,
			resolved:   true,
		},
		{
			name:       "first qualifying wins over better later sample",
			deliveries: [][]float64{{50, 8, 3}},
			desired:    10,
			want:       8,
			resolved:   true,
		},
		{
			name:       "boundary is inclusive",
			deliveries: [][]float64{{10}},
			desired:    10,
			want:       10,
			resolved:   true,
		},
		{
			name:       "unknown accuracy fails a finite threshold",
			deliveries: [][]float64{{-1}},
			desired:    10,
			resolved:   false,
		},
		{
			name:       "unknown accuracy passes the default threshold",
			deliveries: [][]float64{{-1}},
			desired:    0,
			want:       -1,
			resolved:   true,
		},
		{
			name:       "default accepts anything",
			deliveries: [][]float64{{5000}},
			desired:    0,
			want:       5000,
			resolved:   true,
		},
		{
			name:       "nothing good enough",
			deliveries: [][]float64{{50}, {25}},
			desired:    10,
			resolved:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, geolocation.AuthorizationGranted)
			rec := &recorder{}
			h.ctrl.Request(geolocation.Request{DesiredAccuracy: tt.desired}, rec.handler())
			src := h.sources.Last()

			for _, delivery := range tt.deliveries {
				fixes := make([]geolocation.Fix, len(delivery))
				for i, acc := range delivery {
					fixes[i] = h.fixAt(acc)
				}
				src.Emit(fixes...)
			}

			if !tt.resolved {
				if rec.calls() != 0 {
					t.Fatalf("expected no resolution, got %d", rec.calls())
				}
				if h.ctrl.State() != geolocation.StateTracking {
					t.Errorf("expected to keep tracking, got %s", h.ctrl.State())
				}
				return
			}
			if got := rec.fix(t).Accuracy; got != tt.want {
				t.Errorf("resolved with accuracy %v, want %v", got, tt.want)
			}
		})
	}
}

func TestController_Timeout(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{Timeout: 100 * time.Millisecond, DesiredAccuracy: 10}, rec.handler())
	src := h.sources.Last()

	src.Emit(h.fixAt(50))
	h.clock.Advance(99 * time.Millisecond)
	if rec.calls() != 0 {
		t.Fatal("resolved before the timeout")
	}

	h.clock.Advance(time.Millisecond)
	err := rec.err(t)
	expectCode(t, err, geolocation.CodeTimeout)
	if !errors.Is(err, geolocation.ErrTimeout) {
		t.Errorf("errors.Is(err, ErrTimeout) = false for %v", err)
	}
	if src.Running() {
		t.Error("source should be stopped after timeout")
	}
	if h.ctrl.State() != geolocation.StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
}

func TestController_FixCancelsTimer(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{Timeout: time.Second}, rec.handler())
	if h.clock.Pending() != 1 {
		t.Fatalf("expected one armed timer, got %d", h.clock.Pending())
	}

	h.sources.Last().Emit(h.fixAt(3))
	if h.clock.Pending() != 0 {
		t.Errorf("timer should be cancelled on success, %d pending", h.clock.Pending())
	}
	h.clock.Advance(2 * time.Second)
	rec.fix(t)
}

func TestController_SupersedeCancelsPreviousFirst(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)

	var mu sync.Mutex
	var log []string
	logger := func(name string) geolocation.ResultHandler {
		return geolocation.ResultHandler{
			OnFix: func(fix geolocation.Fix) {
				mu.Lock()
				log = append(log, fmt.Sprintf("%s:fix:%v", name, fix.Accuracy))
				mu.Unlock()
			},
			OnError: func(err error) {
				mu.Lock()
				log = append(log, fmt.Sprintf("%s:%s", name, geolocation.CodeOf(err)))
				mu.Unlock()
			},
		}
	}

	h.ctrl.Request(geolocation.Request{Timeout: time.Second}, logger("A"))
	srcA := h.sources.Last()

	// B's source emits from inside Start; A must already be resolved.
	h.sources.OnStart = func(src *geotest.FakeSource) { src.Emit(h.fixAt(4)) }
	h.ctrl.Request(geolocation.Request{Timeout: time.Second}, logger("B"))

	mu.Lock()
	got := append([]string(nil), log...)
	mu.Unlock()
	want := []string{"A:CANCELLED", "B:fix:4"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("resolution order = %v, want %v", got, want)
	}
	if srcA.Running() {
		t.Error("A's source should be stopped")
	}
	if h.clock.Pending() != 0 {
		t.Errorf("both timers should be cancelled, %d pending", h.clock.Pending())
	}

	// A late delivery on A's source must not resolve anything.
	srcA.Emit(h.fixAt(1))
	mu.Lock()
	defer mu.Unlock()
	if len(log) != 2 {
		t.Errorf("stale event resolved a request: %v", log)
	}
}

func TestController_SupersedeWhileAwaitingAuthorization(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationUndetermined)
	a, b := &recorder{}, &recorder{}

	h.ctrl.Request(geolocation.Request{}, a.handler())
	h.ctrl.Request(geolocation.Request{}, b.handler())
	expectCode(t, a.err(t), geolocation.CodeCancelled)
	if b.calls() != 0 {
		t.Fatal("B resolved early")
	}

	h.gate.Emit(geolocation.AuthorizationGranted)
	if h.sources.Count() != 1 {
		t.Fatalf("expected exactly one source for B, got %d", h.sources.Count())
	}
	h.sources.Last().Emit(h.fixAt(7))
	b.fix(t)
	if a.calls() != 1 {
		t.Errorf("A resolved %d times", a.calls())
	}
}

func TestController_PromptThenGrant(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationUndetermined)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{Timeout: 100 * time.Millisecond}, rec.handler())

	if h.ctrl.State() != geolocation.StateAwaitingAuthorization {
		t.Fatalf("expected awaiting authorization, got %s", h.ctrl.State())
	}
	if h.gate.Requests() != 1 {
		t.Errorf("expected one prompt, got %d", h.gate.Requests())
	}
	if h.clock.Pending() != 0 {
		t.Error("timer must not be armed before authorization")
	}

	// The user takes longer than the timeout to answer.
	h.clock.Advance(time.Second)
	h.gate.Emit(geolocation.AuthorizationUndetermined)
	if h.ctrl.State() != geolocation.StateAwaitingAuthorization {
		t.Fatalf("undetermined status should be ignored, got %s", h.ctrl.State())
	}

	h.gate.Emit(geolocation.AuthorizationGranted)
	if h.ctrl.State() != geolocation.StateTracking {
		t.Fatalf("expected tracking after grant, got %s", h.ctrl.State())
	}
	if h.clock.Pending() != 1 {
		t.Errorf("expected timer armed after grant, %d pending", h.clock.Pending())
	}
	h.sources.Last().Emit(h.fixAt(30))
	rec.fix(t)
}

func TestController_DenialNeverStartsSource(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationUndetermined)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{Timeout: time.Second}, rec.handler())

	h.gate.Emit(geolocation.AuthorizationDenied)
	err := rec.err(t)
	expectCode(t, err, geolocation.CodeUnauthorized)
	if !errors.Is(err, geolocation.ErrUnauthorized) {
		t.Errorf("errors.Is(err, ErrUnauthorized) = false")
	}
	if h.sources.Count() != 0 {
		t.Errorf("no source may be started on denial, got %d", h.sources.Count())
	}
	if h.ctrl.State() != geolocation.StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
}

func TestController_PreDenied(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationDenied)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{}, rec.handler())

	expectCode(t, rec.err(t), geolocation.CodeUnauthorized)
	if h.gate.Requests() != 0 {
		t.Error("denied permission should not prompt")
	}
	if h.sources.Count() != 0 {
		t.Error("denied permission should not start a source")
	}
}

func TestController_AuthorizationEventsWithoutSessionAreIgnored(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationUndetermined)

	h.gate.Emit(geolocation.AuthorizationGranted)
	h.gate.Emit(geolocation.AuthorizationDenied)

	if h.sources.Count() != 0 {
		t.Errorf("unrelated status change started a source")
	}
	if h.ctrl.State() != geolocation.StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}

	// A status event while tracking is also ignored.
	h.gate.SetStatus(geolocation.AuthorizationGranted)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{}, rec.handler())
	h.gate.Emit(geolocation.AuthorizationDenied)
	if rec.calls() != 0 || h.ctrl.State() != geolocation.StateTracking {
		t.Errorf("status change while tracking should be ignored")
	}
}

func TestController_ServicesDisabled(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationUndetermined)
	h.services.SetEnabled(false)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{}, rec.handler())

	err := rec.err(t)
	expectCode(t, err, geolocation.CodeUnavailable)
	if !errors.Is(err, geolocation.ErrUnavailable) {
		t.Errorf("errors.Is(err, ErrUnavailable) = false")
	}
	if h.gate.Requests() != 0 || h.sources.Count() != 0 {
		t.Error("disabled services must not prompt or start a source")
	}
	if h.ctrl.State() != geolocation.StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
}

func TestController_ServicesQueryError(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)
	cause := errors.New("bridge gone")
	h.services.Fail(cause)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{}, rec.handler())

	err := rec.err(t)
	expectCode(t, err, geolocation.CodeUnavailable)
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be attached, got %v", err)
	}
}

func TestController_DisabledServicesStillSupersede(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)
	a, b := &recorder{}, &recorder{}
	h.ctrl.Request(geolocation.Request{}, a.handler())
	srcA := h.sources.Last()

	h.services.SetEnabled(false)
	h.ctrl.Request(geolocation.Request{}, b.handler())

	expectCode(t, a.err(t), geolocation.CodeCancelled)
	expectCode(t, b.err(t), geolocation.CodeUnavailable)
	if srcA.Running() {
		t.Error("A's source should be stopped")
	}
}

func TestController_FailurePaths(t *testing.T) {
	cause := errors.New("kCLErrorLocationUnknown")

	tests := []struct {
		name   string
		status geolocation.AuthorizationStatus
		setup  func(h *harness)
		act    func(h *harness)
	}{
		{
			name:   "source error while tracking",
			status: geolocation.AuthorizationGranted,
			act:    func(h *harness) { h.sources.Last().Fail(cause) },
		},
		{
			name:   "source fails to start",
			status: geolocation.AuthorizationGranted,
			setup:  func(h *harness) { h.sources.StartErr = cause },
		},
		{
			name:   "permission status query fails",
			status: geolocation.AuthorizationGranted,
			setup:  func(h *harness) { h.gate.FailStatus(cause) },
		},
		{
			name:   "permission prompt fails",
			status: geolocation.AuthorizationUndetermined,
			setup:  func(h *harness) { h.gate.FailRequest(cause) },
		},
		{
			name:   "permission stream fails while awaiting",
			status: geolocation.AuthorizationUndetermined,
			act:    func(h *harness) { h.gate.EmitError(cause) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.status)
			if tt.setup != nil {
				tt.setup(h)
			}
			rec := &recorder{}
			h.ctrl.Request(geolocation.Request{Timeout: time.Second}, rec.handler())
			if tt.act != nil {
				tt.act(h)
			}

			err := rec.err(t)
			expectCode(t, err, geolocation.CodeUnavailable)
			if !errors.Is(err, cause) {
				t.Errorf("cause not attached: %v", err)
			}
			if src := h.sources.Last(); src != nil && src.Running() {
				t.Error("source left running")
			}
			if h.clock.Pending() != 0 {
				t.Errorf("timer left armed")
			}
			if h.ctrl.State() != geolocation.StateIdle {
				t.Errorf("expected idle, got %s", h.ctrl.State())
			}
		})
	}
}

func TestController_SingleResolution(t *testing.T) {
	reports := captureReports(t)
	h := newHarness(t, geolocation.AuthorizationGranted)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{Timeout: 100 * time.Millisecond, DesiredAccuracy: 10}, rec.handler())
	src := h.sources.Last()

	src.Emit(h.fixAt(5), h.fixAt(4))
	src.Emit(h.fixAt(3))
	src.Fail(errors.New("late failure"))
	h.clock.Advance(time.Second)
	h.gate.Emit(geolocation.AuthorizationDenied)

	if rec.calls() != 1 {
		t.Fatalf("handler invoked %d times, want 1", rec.calls())
	}
	if got := rec.fix(t).Accuracy; got != 5 {
		t.Errorf("resolved with %v, want 5", got)
	}
	if src.Stops() < 1 {
		t.Error("source never stopped")
	}
	if n := reports.count(); n != 1 {
		t.Errorf("expected the late source error to be reported once, got %d", n)
	}
}

func TestController_Cancel(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)

	// No session: no-op.
	h.ctrl.Cancel()

	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{Timeout: time.Second}, rec.handler())
	h.ctrl.Cancel()
	h.ctrl.Cancel()

	err := rec.err(t)
	expectCode(t, err, geolocation.CodeCancelled)
	if !errors.Is(err, geolocation.ErrCancelled) {
		t.Error("errors.Is(err, ErrCancelled) = false")
	}
	if h.sources.Last().Running() || h.clock.Pending() != 0 {
		t.Error("cancel must release source and timer")
	}
}

func TestController_Close(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)
	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{}, rec.handler())

	h.ctrl.Close()
	h.ctrl.Close()

	expectCode(t, rec.err(t), geolocation.CodeCancelled)
	if h.gate.Listeners() != 0 {
		t.Errorf("expected gate listener removed, got %d", h.gate.Listeners())
	}

	after := &recorder{}
	h.ctrl.Request(geolocation.Request{}, after.handler())
	expectCode(t, after.err(t), geolocation.CodeCancelled)
	if h.sources.Count() != 1 {
		t.Errorf("closed controller started a source")
	}
}

func TestController_HandlerPanicDoesNotWedge(t *testing.T) {
	reports := captureReports(t)
	h := newHarness(t, geolocation.AuthorizationGranted)

	h.ctrl.Request(geolocation.Request{}, geolocation.ResultHandler{
		OnFix: func(geolocation.Fix) { panic("handler bug") },
	})
	h.sources.Last().Emit(h.fixAt(1))
	if reports.panics() != 1 {
		t.Fatalf("expected panic to be reported, got %d", reports.panics())
	}

	rec := &recorder{}
	h.ctrl.Request(geolocation.Request{}, rec.handler())
	h.sources.Last().Emit(h.fixAt(1))
	rec.fix(t)
}

func TestController_GetCurrentPosition(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)
	h.sources.OnStart = func(src *geotest.FakeSource) {
		src.Emit(h.fixAt(40), h.fixAt(9))
	}

	fix, err := h.ctrl.GetCurrentPosition(context.Background(), geolocation.Request{DesiredAccuracy: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fix.Accuracy != 9 {
		t.Errorf("accuracy = %v, want 9", fix.Accuracy)
	}
}

func TestController_GetCurrentPositionContextCancel(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.ctrl.GetCurrentPosition(ctx, geolocation.Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.ctrl.State() != geolocation.StateIdle {
		t.Errorf("request should be cancelled, state %s", h.ctrl.State())
	}
	if src := h.sources.Last(); src != nil && src.Running() {
		t.Error("source left running")
	}
}

func TestController_WallClockTimeout(t *testing.T) {
	gate := geotest.NewFakeGate(geolocation.AuthorizationGranted)
	sources := &geotest.FakeSources{}
	ctrl := geolocation.New(gate, geotest.NewFakeServices(true), sources.New)
	defer ctrl.Close()

	start := time.Now()
	_, err := ctrl.GetCurrentPosition(context.Background(), geolocation.Request{Timeout: 20 * time.Millisecond})
	expectCode(t, err, geolocation.CodeTimeout)
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("timed out after %v, before the deadline", elapsed)
	}
	if sources.Last().Running() {
		t.Error("source left running")
	}
}

func TestController_ConcurrentRequests(t *testing.T) {
	h := newHarness(t, geolocation.AuthorizationGranted)
	const n = 32

	recs := make([]*recorder, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		recs[i] = &recorder{}
		wg.Add(1)
		go func(r *recorder) {
			defer wg.Done()
			h.ctrl.Request(geolocation.Request{Timeout: time.Second}, r.handler())
		}(recs[i])
	}
	wg.Wait()
	h.ctrl.Cancel()

	for i, r := range recs {
		if r.calls() != 1 {
			t.Errorf("request %d resolved %d times", i, r.calls())
		}
		expectCode(t, r.err(t), geolocation.CodeCancelled)
	}
	if h.sources.Count() != n {
		t.Errorf("expected %d sources, got %d", n, h.sources.Count())
	}
	if h.clock.Pending() != 0 {
		t.Errorf("%d timers left armed", h.clock.Pending())
	}
}

// reportCapture collects errors and panics sent to the global error handler.
type reportCapture struct {
	mu     sync.Mutex
	errs   []*drifterrors.DriftError
	paniks []*drifterrors.PanicError
}

func (c *reportCapture) HandleError(err *drifterrors.DriftError) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *reportCapture) HandlePanic(err *drifterrors.PanicError) {
	c.mu.Lock()
	c.paniks = append(c.paniks, err)
	c.mu.Unlock()
}

func (c *reportCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

func (c *reportCapture) panics() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paniks)
}

func captureReports(t *testing.T) *reportCapture {
	t.Helper()
	c := &reportCapture{}
	prev := drifterrors.SetHandler(c)
	t.Cleanup(func() { drifterrors.SetHandler(prev) })
	return c
}
