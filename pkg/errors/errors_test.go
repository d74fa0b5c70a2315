package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDriftErrorString(t *testing.T) {
	err := &DriftError{
		Op:   "geolocation.source",
		Kind: KindPlatform,
		Err:  fmt.Errorf("provider offline"),
	}
	want := "geolocation.source [platform]: provider offline"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestDriftErrorWithChannel(t *testing.T) {
	err := &DriftError{
		Op:      "stream.parse",
		Kind:    KindParsing,
		Channel: "drift/location/updates",
		Err:     &ParseError{Channel: "drift/location/updates", DataType: "LocationUpdate", Got: nil},
	}
	want := "channel=drift/location/updates"
	if got := err.Error(); !strings.Contains(got, want) {
		t.Errorf("error string %q should contain %q", got, want)
	}
}

func TestDriftErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("inner")
	err := &DriftError{Op: "op", Err: inner}
	if err.Unwrap() != inner {
		t.Error("Unwrap should return the wrapped error")
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindPlatform, "platform"},
		{KindParsing, "parsing"},
		{KindPanic, "panic"},
		{KindLocation, "location"},
		{ErrorKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{Value: "boom"}
	if got, want := err.Error(), "panic: boom"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
	err.Op = "geolocation.executor"
	if got, want := err.Error(), "panic in geolocation.executor: boom"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestParseErrorString(t *testing.T) {
	err := &ParseError{Channel: "drift/permissions/changes", DataType: "PermissionChange", Got: 123}
	want := "failed to parse PermissionChange from channel drift/permissions/changes: got int"
	if got := err.Error(); got != want {
		t.Errorf("ParseError.Error() = %q, want %q", got, want)
	}
}

func TestReport(t *testing.T) {
	var captured *DriftError
	prev := SetHandler(&testHandler{onError: func(err *DriftError) { captured = err }})
	defer SetHandler(prev)

	Report(&DriftError{Op: "test.op", Kind: KindLocation, Err: fmt.Errorf("x")})
	Report(nil)

	if captured == nil {
		t.Fatal("expected error to be captured")
	}
	if captured.Op != "test.op" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.op")
	}
	if captured.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestRecover(t *testing.T) {
	var captured *PanicError
	prev := SetHandler(&testHandler{onPanic: func(err *PanicError) { captured = err }})
	defer SetHandler(prev)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	if captured == nil {
		t.Fatal("expected panic to be recovered and captured")
	}
	if captured.Value != "intentional test panic" {
		t.Errorf("Value = %v, want %q", captured.Value, "intentional test panic")
	}
	if captured.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.recover")
	}
	if captured.StackTrace == "" {
		t.Error("expected stack trace")
	}
}

func TestSetHandlerNil(t *testing.T) {
	prev := SetHandler(nil)
	defer SetHandler(prev)
	if _, ok := getHandler().(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should set LogHandler, got %T", getHandler())
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &LogHandler{Out: &buf}
	h.HandleError(&DriftError{Op: "geolocation.gate", Kind: KindPlatform, Channel: "drift/permissions/changes", Err: fmt.Errorf("gone")})
	if got, want := buf.String(), "[geolocation error] geolocation.gate: gone\n"; got != want {
		t.Errorf("terse output = %q, want %q", got, want)
	}

	buf.Reset()
	h.Verbose = true
	h.HandleError(&DriftError{Op: "geolocation.gate", Kind: KindPlatform, Channel: "drift/permissions/changes", Err: fmt.Errorf("gone")})
	if got := buf.String(); !strings.Contains(got, "[platform] channel=drift/permissions/changes: gone") {
		t.Errorf("verbose output = %q", got)
	}

	buf.Reset()
	h.HandlePanic(&PanicError{Op: "x", Value: "v", Timestamp: time.Now()})
	if got := buf.String(); !strings.HasPrefix(got, "[geolocation panic] x: v") {
		t.Errorf("panic output = %q", got)
	}
}

type testHandler struct {
	onError func(*DriftError)
	onPanic func(*PanicError)
}

func (h *testHandler) HandleError(err *DriftError) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}
