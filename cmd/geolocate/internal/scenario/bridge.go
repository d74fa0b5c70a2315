package scenario

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	drifterrors "github.com/go-drift/geolocation/pkg/errors"
	"github.com/go-drift/geolocation/pkg/platform"
)

const (
	locationChannel    = "drift/location"
	updatesChannel     = "drift/location/updates"
	permissionsChannel = "drift/permissions"
	changesChannel     = "drift/permissions/changes"
	urlChannel         = "drift/url_launcher"
)

// Bridge is a platform.NativeBridge that plays a Scenario. Scripted events
// are delivered from timer goroutines through platform.HandleEvent, the way
// a real device delivers them from its own threads.
type Bridge struct {
	sc *Scenario

	mu       sync.Mutex
	status   platform.PermissionStatus
	calls    []string
	urls     []string
	streams  map[string]bool
	pending  []*time.Timer
	tracking bool
	closed   bool
	inflight sync.WaitGroup
}

// NewBridge returns a bridge for sc.
func NewBridge(sc *Scenario) *Bridge {
	return &Bridge{
		sc:      sc,
		status:  sc.InitialPermission(),
		streams: make(map[string]bool),
	}
}

// InvokeMethod implements platform.NativeBridge.
func (b *Bridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	var decoded map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return nil, platform.ErrInvalidArguments
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, platform.ErrClosed
	}
	b.calls = append(b.calls, channel+"/"+method)
	b.mu.Unlock()

	result, err := b.handle(channel, method, decoded)
	if err != nil {
		return nil, err
	}
	return platform.DefaultCodec.Encode(result)
}

func (b *Bridge) handle(channel, method string, args map[string]any) (any, error) {
	switch channel + "/" + method {
	case locationChannel + "/isEnabled":
		return map[string]any{"enabled": b.sc.ServicesEnabled()}, nil
	case locationChannel + "/startUpdates":
		b.startUpdates()
		return nil, nil
	case locationChannel + "/stopUpdates":
		b.stopUpdates()
		return nil, nil
	case permissionsChannel + "/check":
		b.mu.Lock()
		defer b.mu.Unlock()
		return map[string]any{"status": string(b.status)}, nil
	case permissionsChannel + "/request":
		b.prompt()
		return nil, nil
	case permissionsChannel + "/openSettings":
		if b.sc.Settings.Unsupported {
			return nil, platform.NewChannelError(platform.CodeNotImplemented, "openSettings is not available")
		}
		if b.sc.Settings.Fail != "" {
			return nil, platform.NewChannelError(b.sc.Settings.Fail, "could not open settings")
		}
		return nil, nil
	case urlChannel + "/canOpenURL":
		return map[string]any{"canOpen": !b.sc.Settings.NoURLHandler}, nil
	case urlChannel + "/openURL":
		url, _ := args["url"].(string)
		b.mu.Lock()
		b.urls = append(b.urls, url)
		b.mu.Unlock()
		return nil, nil
	}
	return nil, platform.NewChannelError(platform.CodeNotImplemented, fmt.Sprintf("%s.%s", channel, method))
}

// StartEventStream implements platform.NativeBridge.
func (b *Bridge) StartEventStream(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return platform.ErrClosed
	}
	b.streams[channel] = true
	return nil
}

// StopEventStream implements platform.NativeBridge.
func (b *Bridge) StopEventStream(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return platform.ErrClosed
	}
	delete(b.streams, channel)
	return nil
}

// prompt schedules the scripted answer. An already decided permission is
// re-emitted immediately.
func (b *Bridge) prompt() {
	b.mu.Lock()
	current := b.status
	b.mu.Unlock()

	if current != platform.PermissionNotDetermined {
		b.after(0, func() { b.emitPermission(current) })
		return
	}
	answer := platform.PermissionStatus(b.sc.Prompt.Answer)
	if answer == "" {
		return
	}
	b.after(time.Duration(b.sc.Prompt.Delay), func() {
		b.mu.Lock()
		b.status = answer
		b.mu.Unlock()
		b.emitPermission(answer)
	})
}

func (b *Bridge) emitPermission(status platform.PermissionStatus) {
	b.emit(changesChannel, map[string]any{
		"permission": "location",
		"status":     string(status),
	})
}

func (b *Bridge) startUpdates() {
	b.mu.Lock()
	if b.tracking {
		b.mu.Unlock()
		return
	}
	b.tracking = true
	b.mu.Unlock()

	for _, ev := range b.sc.Events {
		ev := ev
		b.after(time.Duration(ev.At), func() {
			if !b.isTracking() {
				return
			}
			if ev.End {
				if err := platform.HandleEventDone(updatesChannel); err != nil {
					reportEmit(updatesChannel, err)
				}
				return
			}
			if ev.Error != nil {
				if err := platform.HandleEventError(updatesChannel, ev.Error.Code, ev.Error.Message); err != nil {
					reportEmit(updatesChannel, err)
				}
				return
			}
			locations := make([]any, len(ev.Fixes))
			for i, fix := range ev.Fixes {
				locations[i] = fix
			}
			b.emit(updatesChannel, map[string]any{"locations": locations})
		})
	}
}

func (b *Bridge) stopUpdates() {
	b.mu.Lock()
	b.tracking = false
	b.mu.Unlock()
}

func (b *Bridge) isTracking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracking && !b.closed
}

func (b *Bridge) emit(channel string, payload any) {
	data, err := platform.DefaultCodec.Encode(payload)
	if err != nil {
		reportEmit(channel, err)
		return
	}
	if err := platform.HandleEvent(channel, data); err != nil {
		reportEmit(channel, err)
	}
}

func reportEmit(channel string, err error) {
	drifterrors.Report(&drifterrors.DriftError{
		Op:      "scenario.emit",
		Kind:    drifterrors.KindPlatform,
		Channel: channel,
		Err:     err,
	})
}

// after runs fn on a timer goroutine unless the bridge is closed first.
func (b *Bridge) after(d time.Duration, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.inflight.Add(1)
	t := time.AfterFunc(d, func() {
		defer b.inflight.Done()
		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()
		if !closed {
			fn()
		}
	})
	b.pending = append(b.pending, t)
}

// Close cancels scripted events that have not fired and waits for running
// ones to return.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, t := range pending {
		if t.Stop() {
			b.inflight.Done()
		}
	}
	b.inflight.Wait()
}

// Calls returns the native methods invoked so far as "channel/method".
func (b *Bridge) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// OpenedURLs returns the URLs passed to openURL.
func (b *Bridge) OpenedURLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.urls...)
}

// Tracking reports whether location updates are running.
func (b *Bridge) Tracking() bool {
	return b.isTracking()
}

// StreamOpen reports whether Go is listening on the named event channel.
func (b *Bridge) StreamOpen(channel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streams[channel]
}
