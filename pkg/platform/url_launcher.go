package platform

import (
	"context"
	"fmt"
	"net/url"
)

// URLLauncher is the system URL launcher service.
var URLLauncher = &URLLauncherService{
	channel: NewMethodChannel("drift/url_launcher"),
}

// URLLauncherService hands URLs to the system handler for their scheme.
// Settings deep links like "app-settings:" are valid URLs with an empty
// opaque part.
type URLLauncherService struct {
	channel *MethodChannel
}

// OpenURL opens rawURL with the system handler for its scheme.
func (u *URLLauncherService) OpenURL(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateURL(rawURL); err != nil {
		return err
	}
	_, err := u.channel.Invoke("openURL", map[string]any{"url": rawURL})
	return err
}

// CanOpenURL reports whether some installed handler accepts rawURL.
//
// On iOS only schemes listed in LSApplicationQueriesSchemes can be queried;
// on Android 11+ only schemes declared in the manifest's <queries> block.
func (u *URLLauncherService) CanOpenURL(ctx context.Context, rawURL string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateURL(rawURL); err != nil {
		return false, err
	}
	result, err := u.channel.Invoke("canOpenURL", map[string]any{"url": rawURL})
	if err != nil {
		return false, err
	}
	if m := parseMap(result); m != nil {
		if canOpen, ok := m["canOpen"].(bool); ok {
			return canOpen, nil
		}
	}
	return false, fmt.Errorf("url_launcher: unexpected canOpenURL response %v", result)
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidArguments)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: URL %q has no scheme", ErrInvalidArguments, rawURL)
	}
	return nil
}
