package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-drift/geolocation/pkg/geolocation"
	"github.com/go-drift/geolocation/pkg/platform"
)

// Result is the outcome of one replayed request.
type Result struct {
	Fix     *geolocation.Fix
	Err     *geolocation.Error
	Calls   []string
	Elapsed time.Duration
}

// Payload returns the result in the shape handed back across the bridge:
// {"fix": {...}} or {"error": {...}}.
func (r Result) Payload() map[string]any {
	if r.Err != nil {
		return map[string]any{"error": r.Err.Payload()}
	}
	if r.Fix != nil {
		return map[string]any{"fix": r.Fix.Payload()}
	}
	return map[string]any{}
}

// SettingsResult is the outcome of a replayed settings launch.
type SettingsResult struct {
	Err   error
	Calls []string
	URLs  []string
}

// The platform bridge is process-global.
var runMu sync.Mutex

func install(b *Bridge) (uninstall func()) {
	platform.SetNativeBridge(b)
	return func() {
		b.Close()
		platform.SetNativeBridge(nil)
	}
}

// Run plays sc and performs one location request with req the way native
// code would: through a getCurrentPosition call on the geolocation method
// channel. The controller and bridge are torn down before Run returns. The
// returned error is non-nil only when ctx ends first or the call itself is
// malformed; request failures are in Result.Err.
func Run(ctx context.Context, sc *Scenario, req geolocation.Request) (Result, error) {
	runMu.Lock()
	defer runMu.Unlock()

	bridge := NewBridge(sc)
	uninstall := install(bridge)
	defer uninstall()

	args, err := platform.DefaultCodec.Encode(req.Options())
	if err != nil {
		return Result{}, err
	}

	ctrl := geolocation.NewPlatformController()
	stop := geolocation.Serve(ctx, ctrl, geolocation.PlatformSettings())
	start := time.Now()
	out, err := platform.HandleMethodCall(geolocation.MethodChannelName, "getCurrentPosition", args)
	elapsed := time.Since(start)
	stop()
	ctrl.Close()

	res := Result{Calls: bridge.Calls(), Elapsed: elapsed}
	if err != nil {
		gerr, ok := geolocation.ErrorFromChannel(err)
		if !ok {
			return res, err
		}
		res.Err = gerr
		return res, nil
	}
	decoded, err := platform.DefaultCodec.Decode(out)
	if err != nil {
		return res, err
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		return res, fmt.Errorf("scenario: getCurrentPosition returned %T", decoded)
	}
	fix, err := geolocation.FixFromPayload(payload)
	if err != nil {
		return res, err
	}
	res.Fix = &fix
	return res, nil
}

// OpenSettings plays sc and opens the app settings page through the
// geolocation settings launcher.
func OpenSettings(ctx context.Context, sc *Scenario) SettingsResult {
	runMu.Lock()
	defer runMu.Unlock()

	bridge := NewBridge(sc)
	uninstall := install(bridge)
	defer uninstall()

	err := geolocation.OpenAppSettings(ctx)
	return SettingsResult{
		Err:   err,
		Calls: bridge.Calls(),
		URLs:  bridge.OpenedURLs(),
	}
}
