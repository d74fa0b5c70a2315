package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/go-drift/geolocation/cmd/geolocate/internal/config"
	"github.com/go-drift/geolocation/cmd/geolocate/internal/scenario"
	drifterrors "github.com/go-drift/geolocation/pkg/errors"
	"github.com/go-drift/geolocation/pkg/geolocation"
)

func init() {
	RegisterCommand(&Command{
		Name:  "locate",
		Short: "Request one location fix",
		Long: `Replay a scenario and request one location fix.

Request options come from geolocate.yaml defaults, then the scenario's
request block, then the command line, each overriding the previous.

Flags:
  --high-accuracy    Ask for the best accuracy the hardware can produce
  --timeout D        Give up after D once tracking starts (e.g. 5s)
  --accuracy M       Accept only fixes accurate to M meters
  --verbose          Log platform errors with stack traces

The result is printed as JSON: {"fix": {...}} or {"error": {...}}.`,
		Usage: "geolocate locate <scenario.yaml> [flags]",
		Run:   runLocate,
	})
}

type locateOptions struct {
	scenario     string
	highAccuracy *bool
	timeout      *time.Duration
	accuracy     *float64
	verbose      bool
}

func parseLocateArgs(args []string) (locateOptions, error) {
	var opts locateOptions
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--high-accuracy":
			v := true
			opts.highAccuracy = &v
			continue
		case "--verbose":
			opts.verbose = true
			continue
		}

		if value, n, ok, err := flagValue(args, i, "--timeout"); ok {
			if err != nil {
				return opts, err
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return opts, fmt.Errorf("--timeout: %w", err)
			}
			opts.timeout = &d
			i += n
			continue
		}
		if value, n, ok, err := flagValue(args, i, "--accuracy"); ok {
			if err != nil {
				return opts, err
			}
			m, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return opts, fmt.Errorf("--accuracy: %w", err)
			}
			opts.accuracy = &m
			i += n
			continue
		}

		if strings.HasPrefix(arg, "-") {
			return opts, fmt.Errorf("unknown flag %q", arg)
		}
		if opts.scenario != "" {
			return opts, fmt.Errorf("unexpected argument %q", arg)
		}
		opts.scenario = arg
	}
	if opts.scenario == "" {
		return opts, fmt.Errorf("scenario file is required\n\nUsage: geolocate locate <scenario.yaml> [flags]")
	}
	return opts, nil
}

func (o locateOptions) apply(req geolocation.Request) geolocation.Request {
	if o.highAccuracy != nil {
		req.EnableHighAccuracy = *o.highAccuracy
	}
	if o.timeout != nil {
		req.Timeout = *o.timeout
	}
	if o.accuracy != nil {
		req.DesiredAccuracy = *o.accuracy
	}
	return req
}

// loadConfig resolves geolocate.yaml from the enclosing module, or the
// standalone defaults when run outside one.
func loadConfig() (*config.Resolved, error) {
	root, err := config.FindProjectRoot()
	if err != nil {
		return config.Standalone(), nil
	}
	cfg, err := config.Resolve(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func enableVerbose() func() {
	prev := drifterrors.SetHandler(&drifterrors.LogHandler{Verbose: true, Out: stderr})
	return func() { drifterrors.SetHandler(prev) }
}

func runLocate(args []string) error {
	opts, err := parseLocateArgs(args)
	if err != nil {
		return err
	}
	if opts.verbose {
		defer enableVerbose()()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := scenario.Load(opts.scenario)
	if err != nil {
		return err
	}
	req := opts.apply(sc.Request.Apply(cfg.Request))

	if opts.verbose {
		fmt.Fprintf(stderr, "%s (%s): hint=%s timeout=%v accuracy=%v\n",
			cfg.AppName, cfg.AppID, req.Hint(), req.Timeout, req.DesiredAccuracy)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := scenario.Run(ctx, sc, req)
	if err != nil {
		return fmt.Errorf("location request interrupted: %w", err)
	}
	if opts.verbose {
		fmt.Fprintf(stderr, "resolved after %v; native calls: %s\n",
			res.Elapsed.Round(time.Millisecond), strings.Join(res.Calls, ", "))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Payload()); err != nil {
		return err
	}
	if res.Err != nil {
		return fmt.Errorf("location request failed: %s", res.Err.Code)
	}
	return nil
}
