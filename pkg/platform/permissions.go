package platform

import (
	"context"
	"sync"

	drifterrors "github.com/go-drift/geolocation/pkg/errors"
)

// PermissionStatus is the raw status string reported by native code.
type PermissionStatus string

const (
	// PermissionGranted means full access.
	PermissionGranted PermissionStatus = "granted"

	// PermissionDenied means the user said no. The app may ask again.
	PermissionDenied PermissionStatus = "denied"

	// PermissionPermanentlyDenied means the dialog will not be shown again
	// ("don't ask again" on Android, a second denial on iOS). Only the
	// settings page can change it.
	PermissionPermanentlyDenied PermissionStatus = "permanently_denied"

	// PermissionRestricted means device policy (parental controls, MDM)
	// forbids access and the user cannot change it.
	PermissionRestricted PermissionStatus = "restricted"

	// PermissionLimited means approximate location only.
	PermissionLimited PermissionStatus = "limited"

	// PermissionNotDetermined means the user has not been asked yet.
	PermissionNotDetermined PermissionStatus = "not_determined"

	// PermissionUnknown means native code returned nothing usable.
	PermissionUnknown PermissionStatus = "unknown"
)

const (
	permissionChannelName        = "drift/permissions"
	permissionChangesChannelName = "drift/permissions/changes"
)

var (
	// All runtime permissions share one method channel and one change
	// stream; calls and events carry the permission name.
	permissionMethods = sync.OnceValue(func() *MethodChannel {
		return NewMethodChannel(permissionChannelName)
	})
	permissionChanges = sync.OnceValue(func() *EventChannel {
		return NewEventChannel(permissionChangesChannelName)
	})
)

type runtimePermission struct {
	name    string
	channel *MethodChannel
	changes *EventChannel
}

func newRuntimePermission(name string) *runtimePermission {
	return &runtimePermission{
		name:    name,
		channel: permissionMethods(),
		changes: permissionChanges(),
	}
}

func (p *runtimePermission) Status(ctx context.Context) (PermissionStatus, error) {
	result, err := p.channel.Invoke("check", map[string]any{"permission": p.name})
	if err != nil {
		return PermissionUnknown, err
	}
	if status := parseString(parseMap(result)["status"]); status != "" {
		return PermissionStatus(status), nil
	}
	return PermissionUnknown, nil
}

func (p *runtimePermission) Prompt(ctx context.Context) error {
	_, err := p.channel.Invoke("request", map[string]any{"permission": p.name})
	return err
}

func (p *runtimePermission) ListenWithError(handler func(PermissionStatus), onError func(error)) (unsubscribe func()) {
	sub := p.changes.Listen(EventHandler{
		OnEvent: func(data any) {
			name, status, ok := parsePermissionChange(data)
			if !ok {
				drifterrors.Report(&drifterrors.DriftError{
					Op:      "permissions.parseChange",
					Kind:    drifterrors.KindParsing,
					Channel: permissionChangesChannelName,
					Err: &drifterrors.ParseError{
						Channel:  permissionChangesChannelName,
						DataType: "PermissionChange",
						Got:      data,
					},
				})
				return
			}
			if name == p.name {
				handler(status)
			}
		},
		OnError: func(err error) {
			if onError != nil {
				onError(err)
				return
			}
			reportPermissionStreamError("permissions.streamError", err)
		},
	})
	return sub.Cancel
}

// OpenAppSettings opens this app's page in the system settings, the only
// place a permanently denied permission can be re-enabled.
func OpenAppSettings(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := permissionMethods().Invoke("openSettings", nil)
	return err
}

func parsePermissionChange(data any) (name string, status PermissionStatus, ok bool) {
	m := parseMap(data)
	name = parseString(m["permission"])
	status = PermissionStatus(parseString(m["status"]))
	return name, status, name != "" && status != ""
}

func reportPermissionStreamError(op string, err error) {
	drifterrors.Report(&drifterrors.DriftError{
		Op:      op,
		Kind:    drifterrors.KindPlatform,
		Channel: permissionChangesChannelName,
		Err:     err,
	})
}
