package geolocation

import "context"

// SettingsLauncher opens the app's page in the system settings. It has no
// interaction with location requests.
type SettingsLauncher interface {
	OpenSettings(ctx context.Context) error
}
