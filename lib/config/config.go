// Copyright 2026 The HomeAnywhere Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written in the usual
// Go duration syntax ("350ms", "30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the master configuration for a HomeAnywhere deployment.
type Config struct {
	// Controllers lists the IPCom controllers to connect to.
	Controllers []ControllerConfig `yaml:"controllers"`

	// Timing configures polling cadences and exchange timeouts. All
	// fields have working defaults; override only when a site needs it.
	Timing TimingConfig `yaml:"timing"`

	// Journal configures the state-change journal.
	Journal JournalConfig `yaml:"journal"`
}

// ControllerConfig describes one IPCom controller endpoint.
type ControllerConfig struct {
	// Name identifies the controller in logs and the session registry.
	Name string `yaml:"name"`

	// Host is the controller's address.
	Host string `yaml:"host"`

	// LocalHost is an optional LAN address for the same controller.
	// When set together with PreferLocal, the session probes it first
	// and falls back to Host if the probe fails.
	LocalHost string `yaml:"local_host"`

	// PreferLocal selects LocalHost when it answers a TCP probe.
	PreferLocal bool `yaml:"prefer_local"`

	// Port is the controller's TCP port. Default: 5000.
	Port int `yaml:"port"`

	// Username and Password authenticate the session. Each is limited
	// to 26 characters by the wire format.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Bus selects the hardware bus behind the controller. Bus 0 is the
	// controller's own bus.
	Bus byte `yaml:"bus"`

	// LockBus requests exclusive use of the bus for this session.
	LockBus bool `yaml:"lock_bus"`

	// BusAddress is the frame address of the bus coupler that output
	// commands are sent through. Default: 60.
	BusAddress byte `yaml:"bus_address"`

	// Insecure disables the session cipher after authentication. Only
	// useful against controllers that demand a non-secure session;
	// normally the demand is detected and handled automatically.
	Insecure bool `yaml:"insecure"`
}

// TimingConfig configures the scheduler cadences and socket timeouts.
type TimingConfig struct {
	// StatusInterval is the output-state polling cadence. Default: 350ms.
	StatusInterval Duration `yaml:"status_interval"`

	// KeyboardInterval is the keyboard-status polling cadence. Default: 475ms.
	KeyboardInterval Duration `yaml:"keyboard_interval"`

	// KeepAliveInterval is the keep-alive cadence. Default: 30s.
	KeepAliveInterval Duration `yaml:"keep_alive_interval"`

	// DrainInterval is the command-queue drain cadence. Default: 250ms.
	DrainInterval Duration `yaml:"drain_interval"`

	// KeepAliveThreshold is the number of unanswered keep-alives after
	// which the session is considered stale. Default: 3.
	KeepAliveThreshold int `yaml:"keep_alive_threshold"`

	// ConnectTimeout bounds the TCP dial. Default: 1s.
	ConnectTimeout Duration `yaml:"connect_timeout"`

	// SendTimeout bounds a single socket write. Default: 3s.
	SendTimeout Duration `yaml:"send_timeout"`

	// ReceiveTimeout bounds a single socket read. Default: 6s.
	ReceiveTimeout Duration `yaml:"receive_timeout"`
}

// JournalConfig configures the state-change journal.
type JournalConfig struct {
	// Path is the SQLite database file. Empty disables journaling.
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Default: 2.
	PoolSize int `yaml:"pool_size"`
}

// Default returns the default configuration. These defaults are used as a
// base before loading the config file; controllers must come from the file.
func Default() *Config {
	return &Config{
		Timing: TimingConfig{
			StatusInterval:     Duration(350 * time.Millisecond),
			KeyboardInterval:   Duration(475 * time.Millisecond),
			KeepAliveInterval:  Duration(30 * time.Second),
			DrainInterval:      Duration(250 * time.Millisecond),
			KeepAliveThreshold: 3,
			ConnectTimeout:     Duration(1 * time.Second),
			SendTimeout:        Duration(3 * time.Second),
			ReceiveTimeout:     Duration(6 * time.Second),
		},
		Journal: JournalConfig{
			PoolSize: 2,
		},
	}
}

// Load loads configuration from the HOMEANYWHERE_CONFIG environment variable.
//
// There are no fallbacks - if HOMEANYWHERE_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("HOMEANYWHERE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("HOMEANYWHERE_CONFIG environment variable not set; " +
			"set it to the path of your homeanywhere.yaml config file")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do
// not override config values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for problems a controller session
// could not recover from at runtime.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Controllers))
	for i := range c.Controllers {
		ctrl := &c.Controllers[i]
		if ctrl.Name == "" {
			return fmt.Errorf("controller %d: name is required", i)
		}
		if seen[ctrl.Name] {
			return fmt.Errorf("controller %q: duplicate name", ctrl.Name)
		}
		seen[ctrl.Name] = true
		if ctrl.Host == "" {
			return fmt.Errorf("controller %q: host is required", ctrl.Name)
		}
		if ctrl.Port == 0 {
			ctrl.Port = 5000
		}
		if ctrl.Port < 0 || ctrl.Port > 65535 {
			return fmt.Errorf("controller %q: port %d out of range", ctrl.Name, ctrl.Port)
		}
		if len(ctrl.Username) > 26 {
			return fmt.Errorf("controller %q: username exceeds 26 characters", ctrl.Name)
		}
		if len(ctrl.Password) > 26 {
			return fmt.Errorf("controller %q: password exceeds 26 characters", ctrl.Name)
		}
		if ctrl.BusAddress == 0 {
			ctrl.BusAddress = 60
		}
	}

	if c.Timing.KeepAliveThreshold < 1 {
		return fmt.Errorf("timing: keep_alive_threshold must be at least 1")
	}
	for _, interval := range []struct {
		name string
		d    Duration
	}{
		{"status_interval", c.Timing.StatusInterval},
		{"keyboard_interval", c.Timing.KeyboardInterval},
		{"keep_alive_interval", c.Timing.KeepAliveInterval},
		{"drain_interval", c.Timing.DrainInterval},
		{"connect_timeout", c.Timing.ConnectTimeout},
		{"send_timeout", c.Timing.SendTimeout},
		{"receive_timeout", c.Timing.ReceiveTimeout},
	} {
		if interval.d <= 0 {
			return fmt.Errorf("timing: %s must be positive", interval.name)
		}
	}
	return nil
}
