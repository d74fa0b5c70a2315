package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-drift/geolocation/cmd/geolocate/internal/scenario"
)

func init() {
	RegisterCommand(&Command{
		Name:  "settings",
		Short: "Open the app's system settings page",
		Long: `Open the app's page in the system settings, where a user can
re-enable a denied location permission.

Without a scenario file the native side is assumed to support the settings
method. A scenario can make it unsupported (falling back to the settings
URL) or make it fail.`,
		Usage: "geolocate settings [<scenario.yaml>] [--verbose]",
		Run:   runSettings,
	})
}

func runSettings(args []string) error {
	var path string
	var verbose bool
	for _, arg := range args {
		switch {
		case arg == "--verbose":
			verbose = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag %q", arg)
		case path != "":
			return fmt.Errorf("unexpected argument %q", arg)
		default:
			path = arg
		}
	}
	if verbose {
		defer enableVerbose()()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sc := &scenario.Scenario{}
	if path != "" {
		if sc, err = scenario.Load(path); err != nil {
			return err
		}
	}

	res := scenario.OpenSettings(context.Background(), sc)
	if verbose {
		fmt.Fprintf(stderr, "native calls: %s\n", strings.Join(res.Calls, ", "))
	}
	if res.Err != nil {
		return res.Err
	}
	if len(res.URLs) > 0 {
		fmt.Fprintf(stdout, "Opened settings for %s via %s\n", cfg.AppID, res.URLs[0])
		return nil
	}
	fmt.Fprintf(stdout, "Opened settings for %s\n", cfg.AppID)
	return nil
}
