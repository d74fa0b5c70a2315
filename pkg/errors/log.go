package errors

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// LogHandler is an ErrorHandler that writes errors to Out (stderr when nil).
type LogHandler struct {
	// Verbose enables detailed output including kind, channel and stack traces.
	Verbose bool
	// Out receives log lines. Defaults to os.Stderr.
	Out io.Writer

	mu sync.Mutex
}

func (h *LogHandler) writer() io.Writer {
	if h.Out == nil {
		return os.Stderr
	}
	return h.Out
}

// HandleError logs a DriftError.
func (h *LogHandler) HandleError(err *DriftError) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.writer()
	if !h.Verbose {
		fmt.Fprintf(w, "[geolocation error] %s: %v\n", err.Op, err.Err)
		return
	}
	fmt.Fprintf(w, "[geolocation error] %s [%s]", err.Op, err.Kind)
	if err.Channel != "" {
		fmt.Fprintf(w, " channel=%s", err.Channel)
	}
	fmt.Fprintf(w, ": %v\n", err.Err)
	if err.StackTrace != "" {
		fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
	}
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.writer()
	if err.Op != "" {
		fmt.Fprintf(w, "[geolocation panic] %s: %v\n", err.Op, err.Value)
	} else {
		fmt.Fprintf(w, "[geolocation panic] %v\n", err.Value)
	}
	if h.Verbose && err.StackTrace != "" {
		fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
	}
}
