package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/log"
)

// ErrUnknownSetting is returned for keys that do not name a config field.
var ErrUnknownSetting = errors.New("unknown setting")

type setter func(c *Config, value string) error

func stringField(field func(*Config) *string) setter {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func intField(field func(*Config) *int) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatField(field func(*Config) *float64) setter {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolField(field func(*Config) *bool) setter {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// settings maps stored keys to config fields. Keys use the TOML names.
var settings = map[string]setter{
	"server.addr":              stringField(func(c *Config) *string { return &c.Server.Addr }),
	"server.static_dir":        stringField(func(c *Config) *string { return &c.Server.StaticDir }),
	"camera.probe_limit":       intField(func(c *Config) *int { return &c.Camera.ProbeLimit }),
	"camera.tick_interval_ms":  intField(func(c *Config) *int { return &c.Camera.TickIntervalMs }),
	"detector.cascade_path":    stringField(func(c *Config) *string { return &c.Detector.CascadePath }),
	"detector.scale_factor":    floatField(func(c *Config) *float64 { return &c.Detector.ScaleFactor }),
	"detector.min_neighbors":   intField(func(c *Config) *int { return &c.Detector.MinNeighbors }),
	"detector.min_size":        intField(func(c *Config) *int { return &c.Detector.MinSize }),
	"capture.dir":              stringField(func(c *Config) *string { return &c.Capture.Dir }),
	"scene.width":              intField(func(c *Config) *int { return &c.Scene.Width }),
	"scene.height":             intField(func(c *Config) *int { return &c.Scene.Height }),
	"scene.watch":              boolField(func(c *Config) *bool { return &c.Scene.Watch }),
	"reconstruct.pipeline_dir": stringField(func(c *Config) *string { return &c.Reconstruct.PipelineDir }),
	"reconstruct.pipeline":     stringField(func(c *Config) *string { return &c.Reconstruct.Pipeline }),
	"reconstruct.timeout_ms":   intField(func(c *Config) *int { return &c.Reconstruct.TimeoutMs }),
	"log.level":                stringField(func(c *Config) *string { return &c.Log.Level }),
}

// SettingKeys returns every key ApplySettings understands, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSettingKey reports whether key names a config field.
func IsSettingKey(key string) bool {
	_, ok := settings[key]
	return ok
}

// CheckSetting reports whether value is acceptable for key, without
// changing any config.
func CheckSetting(key, value string) error {
	c := Default()
	if err := c.Set(key, value); err != nil {
		return err
	}
	return c.Validate()
}

// Set applies a single key/value override.
func (c *Config) Set(key, value string) error {
	set, ok := settings[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if err := set(c, value); err != nil {
		return fmt.Errorf("setting %s=%q: %w", key, value, err)
	}
	return nil
}

// ApplySettings applies stored overrides and validates the result.
// Unknown keys are logged and skipped. Malformed values are errors.
func (c *Config) ApplySettings(values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		err := c.Set(k, values[k])
		if errors.Is(err, ErrUnknownSetting) {
			log.Warn("Ignoring unknown stored setting", "key", k)
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return c.Validate()
}
