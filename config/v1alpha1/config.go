// Package v1alpha1 contains the configuration of a model store.
//
// A configuration file looks like this:
//
//	type: modelarchive.config.ocm.software/v1alpha1
//	storeRoot: /var/lib/models
//	allowedRoots:
//	  - /mnt/shared-models
//	versionedDirectories: true
//	download:
//	  timeout: 5m
package v1alpha1

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"sigs.k8s.io/yaml"
)

const (
	// ConfigType defines the type identifier for model store configurations.
	ConfigType = "modelarchive.config.ocm.software"
	Version    = "v1alpha1"
)

// VersionedType is the fully qualified type written into configuration files.
var VersionedType = ConfigType + "/" + Version

var ErrUnsupportedType = fmt.Errorf("unsupported config type, only %s is supported", VersionedType)

type Config struct {
	Type string `json:"type"`

	// StoreRoot is the directory archives are acquired into.
	StoreRoot string `json:"storeRoot,omitempty"`

	// AllowedRoots are additional directories local archives may be acquired from.
	// The store root is always allowed.
	AllowedRoots []string `json:"allowedRoots,omitempty"`

	// WorkingDirectory is used to resolve relative local paths.
	// If not defined, the current working directory is used.
	WorkingDirectory string `json:"workingDirectory,omitempty"`

	// VersionedDirectories extracts archives into <name>-<version> instead of <name>.
	VersionedDirectories *bool `json:"versionedDirectories,omitempty"`

	Download Download `json:"download,omitzero"`
}

type Download struct {
	// Timeout bounds a single remote download. Zero means no timeout.
	Timeout   Duration `json:"timeout,omitempty"`
	UserAgent string   `json:"userAgent,omitempty"`
}

// Duration is a time.Duration that is written in its string form, e.g. "1m30s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// Decode reads a configuration in YAML or JSON form. Unknown fields are rejected.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	switch cfg.Type {
	case "":
		cfg.Type = VersionedType
	case VersionedType, ConfigType:
	default:
		return nil, fmt.Errorf("%w: got %q", ErrUnsupportedType, cfg.Type)
	}
	return &cfg, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Decode(data)
}

// Validate reports configuration values that can never work.
func (c *Config) Validate() error {
	var errs []error
	if c.Download.Timeout < 0 {
		errs = append(errs, fmt.Errorf("download timeout must not be negative"))
	}
	for _, root := range c.AllowedRoots {
		if root == "" {
			errs = append(errs, fmt.Errorf("allowed roots must not contain empty entries"))
			break
		}
	}
	return errors.Join(errs...)
}

// Merge merges the provided configs into a single config.
// Later configs take precedence for scalar values, allowed roots are accumulated.
func Merge(configs ...*Config) *Config {
	if len(configs) == 0 {
		return nil
	}

	merged := &Config{Type: VersionedType}
	for _, config := range configs {
		if config == nil {
			continue
		}
		if config.StoreRoot != "" {
			merged.StoreRoot = config.StoreRoot
		}
		if config.WorkingDirectory != "" {
			merged.WorkingDirectory = config.WorkingDirectory
		}
		if config.VersionedDirectories != nil {
			merged.VersionedDirectories = config.VersionedDirectories
		}
		if config.Download.Timeout != 0 {
			merged.Download.Timeout = config.Download.Timeout
		}
		if config.Download.UserAgent != "" {
			merged.Download.UserAgent = config.Download.UserAgent
		}
		for _, root := range config.AllowedRoots {
			if !slices.Contains(merged.AllowedRoots, root) {
				merged.AllowedRoots = append(merged.AllowedRoots, root)
			}
		}
	}

	return merged
}

// Versioned reports whether versioned extraction directories are enabled.
func (c *Config) Versioned() bool {
	return c != nil && c.VersionedDirectories != nil && *c.VersionedDirectories
}
