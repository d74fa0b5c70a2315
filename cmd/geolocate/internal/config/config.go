// Package config loads the optional geolocate.yaml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/geolocation/pkg/geolocation"
)

// FileName is the project configuration file looked up next to go.mod.
const FileName = "geolocate.yaml"

// Config represents the optional geolocate.yaml configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

// DefaultsConfig holds request options applied when neither the scenario
// nor the command line sets them.
type DefaultsConfig struct {
	HighAccuracy    bool    `yaml:"highAccuracy,omitempty"`
	Timeout         string  `yaml:"timeout,omitempty"`
	DesiredAccuracy float64 `yaml:"desiredAccuracy,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root       string
	ModulePath string
	AppName    string
	AppID      string
	Request    geolocation.Request
}

// LoadOptional reads geolocate.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Resolve loads geolocate.yaml (if present) from the module rooted at dir
// and fills in defaults.
func Resolve(dir string) (*Resolved, error) {
	modulePath, err := modulePath(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(modulePath, dir)
	}

	appID := strings.TrimSpace(cfg.App.ID)
	if appID == "" {
		appID = defaultAppID(modulePath, appName)
	}
	if err := validateAppID(appID); err != nil {
		return nil, err
	}

	req, err := cfg.Defaults.request()
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Root:       dir,
		ModulePath: modulePath,
		AppName:    appName,
		AppID:      appID,
		Request:    req,
	}, nil
}

// Standalone returns the configuration used outside any Go module.
func Standalone() *Resolved {
	return &Resolved{
		AppName: "geolocate",
		AppID:   "com.example.geolocate",
	}
}

func (d DefaultsConfig) request() (geolocation.Request, error) {
	req := geolocation.Request{
		EnableHighAccuracy: d.HighAccuracy,
		DesiredAccuracy:    d.DesiredAccuracy,
	}
	if s := strings.TrimSpace(d.Timeout); s != "" {
		timeout, err := time.ParseDuration(s)
		if err != nil {
			return geolocation.Request{}, fmt.Errorf("defaults.timeout: %w", err)
		}
		if timeout < 0 {
			return geolocation.Request{}, fmt.Errorf("defaults.timeout must not be negative (got %s)", s)
		}
		req.Timeout = timeout
	}
	if d.DesiredAccuracy < 0 {
		return geolocation.Request{}, fmt.Errorf("defaults.desiredAccuracy must not be negative (got %v)", d.DesiredAccuracy)
	}
	return req, nil
}

// FindProjectRoot walks up from the current directory to find go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go module (no go.mod found)")
		}
		dir = parent
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

// defaultAppName is the last module path element without its major version
// suffix, e.g. "tracker" for example.com/acme/tracker/v2.
func defaultAppName(modulePath, dir string) string {
	name := filepath.Base(dir)
	if prefix, _, ok := module.SplitPathVersion(modulePath); ok {
		if i := strings.LastIndex(prefix, "/"); i >= 0 {
			name = prefix[i+1:]
		} else {
			name = prefix
		}
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "geolocate"
	}
	return name
}

// defaultAppID reverses the module host and appends the path, so
// github.com/acme/tracker becomes com.github.acme.tracker.
func defaultAppID(modulePath, appName string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return "com.example." + sanitizeSegment(appName)
	}

	host := strings.Split(parts[0], ".")
	segments := make([]string, 0, len(host)+len(parts)-1)
	for i := len(host) - 1; i >= 0; i-- {
		segments = append(segments, host[i])
	}
	for _, p := range parts[1:] {
		if p != "" {
			segments = append(segments, p)
		}
	}
	for i, segment := range segments {
		segments[i] = sanitizeSegment(segment)
	}
	return strings.Join(segments, ".")
}

// sanitizeSegment lowercases s and keeps only [a-z0-9_]. Hyphens and dots
// become underscores. A leading digit or underscore gets an "a" prefix.
func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-' || r == '.':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		return "app"
	}
	if out[0] == '_' || (out[0] >= '0' && out[0] <= '9') {
		out = "a" + out
	}
	return out
}

func validateAppID(appID string) error {
	if !strings.Contains(appID, ".") {
		return fmt.Errorf("app.id must contain at least one '.' (got %q)", appID)
	}
	for _, segment := range strings.Split(appID, ".") {
		if segment == "" {
			return fmt.Errorf("app.id contains an empty segment (%q)", appID)
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			return fmt.Errorf("app.id segments cannot start with a digit (%q)", appID)
		}
		if segment[0] == '_' {
			return fmt.Errorf("app.id segments cannot start with '_' (%q)", appID)
		}
		for _, r := range segment {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return fmt.Errorf("app.id contains invalid character %q in %q", r, appID)
			}
		}
	}
	return nil
}
