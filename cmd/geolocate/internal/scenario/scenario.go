// Package scenario replays a scripted device for the geolocate CLI. A
// scenario file describes what the native side would do: whether location
// services are on, how the user answers the permission prompt, and which
// fixes or failures the positioning hardware produces after tracking starts.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-drift/geolocation/pkg/geolocation"
	"github.com/go-drift/geolocation/pkg/platform"
)

// Scenario is the parsed form of a scenario file.
type Scenario struct {
	// Services reports whether device location services are enabled.
	// Defaults to true.
	Services *bool `yaml:"services,omitempty"`
	// Permission is the initial location permission status.
	// Defaults to not_determined.
	Permission string `yaml:"permission,omitempty"`
	// Prompt describes how the user answers the permission dialog.
	Prompt Prompt `yaml:"prompt,omitempty"`
	// Request overrides the configured request defaults.
	Request RequestOverrides `yaml:"request,omitempty"`
	// Events are replayed relative to the startUpdates call.
	Events []Event `yaml:"events,omitempty"`
	// Settings controls the native settings method.
	Settings Settings `yaml:"settings,omitempty"`
}

// Prompt is the scripted answer to the permission dialog. An empty Answer
// leaves the dialog open forever.
type Prompt struct {
	Answer string   `yaml:"answer,omitempty"`
	Delay  Duration `yaml:"delay,omitempty"`
}

// RequestOverrides holds request options set by the scenario. Nil fields
// keep the configured default.
type RequestOverrides struct {
	EnableHighAccuracy *bool     `yaml:"enableHighAccuracy,omitempty"`
	Timeout            *Duration `yaml:"timeout,omitempty"`
	DesiredAccuracy    *float64  `yaml:"desiredAccuracy,omitempty"`
}

// Apply returns base with the overrides set.
func (o RequestOverrides) Apply(base geolocation.Request) geolocation.Request {
	if o.EnableHighAccuracy != nil {
		base.EnableHighAccuracy = *o.EnableHighAccuracy
	}
	if o.Timeout != nil {
		base.Timeout = time.Duration(*o.Timeout)
	}
	if o.DesiredAccuracy != nil {
		base.DesiredAccuracy = *o.DesiredAccuracy
	}
	return base
}

// Event is one delivery from the positioning hardware: a batch of fixes, a
// stream error, or the end of the stream.
type Event struct {
	At    Duration             `yaml:"at"`
	Fixes []map[string]float64 `yaml:"fixes,omitempty"`
	Error *EventError          `yaml:"error,omitempty"`
	End   bool                 `yaml:"end,omitempty"`
}

// EventError is a native stream failure.
type EventError struct {
	Code    string `yaml:"code"`
	Message string `yaml:"message,omitempty"`
}

// Settings scripts the native openSettings method.
type Settings struct {
	// Unsupported makes openSettings report not_implemented so the
	// settings URL fallback is taken.
	Unsupported bool `yaml:"unsupported,omitempty"`
	// Fail, if set, is the error code openSettings fails with.
	Fail string `yaml:"fail,omitempty"`
	// NoURLHandler makes canOpenURL report false for the settings URL.
	NoURLHandler bool `yaml:"noUrlHandler,omitempty"`
}

// Duration is a time.Duration that unmarshals from strings like "150ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"250ms\"", value.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ServicesEnabled returns the effective services flag.
func (s *Scenario) ServicesEnabled() bool {
	return s.Services == nil || *s.Services
}

// InitialPermission returns the effective initial permission status.
func (s *Scenario) InitialPermission() platform.PermissionStatus {
	if s.Permission == "" {
		return platform.PermissionNotDetermined
	}
	return platform.PermissionStatus(s.Permission)
}

var knownStatuses = map[string]bool{
	string(platform.PermissionGranted):           true,
	string(platform.PermissionDenied):            true,
	string(platform.PermissionPermanentlyDenied): true,
	string(platform.PermissionRestricted):        true,
	string(platform.PermissionLimited):           true,
	string(platform.PermissionNotDetermined):     true,
}

// Validate checks the scenario for mistakes that would make a replay
// meaningless.
func (s *Scenario) Validate() error {
	var errs []error
	if s.Permission != "" && !knownStatuses[s.Permission] {
		errs = append(errs, fmt.Errorf("permission: unknown status %q", s.Permission))
	}
	if s.Prompt.Answer != "" && !knownStatuses[s.Prompt.Answer] {
		errs = append(errs, fmt.Errorf("prompt.answer: unknown status %q", s.Prompt.Answer))
	}
	if s.Prompt.Delay < 0 {
		errs = append(errs, fmt.Errorf("prompt.delay: must not be negative"))
	}
	for i, ev := range s.Events {
		if ev.At < 0 {
			errs = append(errs, fmt.Errorf("events[%d].at: must not be negative", i))
		}
		payloads := 0
		if len(ev.Fixes) > 0 {
			payloads++
		}
		if ev.Error != nil {
			payloads++
		}
		if ev.End {
			payloads++
		}
		switch {
		case payloads == 0:
			errs = append(errs, fmt.Errorf("events[%d]: needs fixes, error or end", i))
		case payloads > 1:
			errs = append(errs, fmt.Errorf("events[%d]: fixes, error and end are exclusive", i))
		case ev.Error != nil && ev.Error.Code == "":
			errs = append(errs, fmt.Errorf("events[%d].error.code: required", i))
		}
		for j, fix := range ev.Fixes {
			if _, ok := fix["latitude"]; !ok {
				errs = append(errs, fmt.Errorf("events[%d].fixes[%d]: latitude required", i, j))
			}
			if _, ok := fix["longitude"]; !ok {
				errs = append(errs, fmt.Errorf("events[%d].fixes[%d]: longitude required", i, j))
			}
		}
	}
	return errors.Join(errs...)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Parse(data)
}
