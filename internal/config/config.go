package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file accepted by Load.
const MaxConfigFileBytes = 1 << 20

// FocuserConfig holds motion settings and pin wiring. Key names follow the
// historical settings file of the focuser.
type FocuserConfig struct {
	StepsPerMM     int  `yaml:"steps_per_mm"`     // microsteps per mm of travel
	BacklashIn     int  `yaml:"backlash0"`        // pulses added on a reversal towards INFOCUS
	BacklashOut    int  `yaml:"backlash1"`        // pulses added on a reversal towards OUTFOCUS
	DelayUs        int  `yaml:"delay"`            // STEP half-cycle in microseconds
	DirPin         int  `yaml:"dir-pin"`          // BCM / line offset
	StepPin        int  `yaml:"step-pin"`         // BCM / line offset
	EnablePin      int  `yaml:"enable-pin"`       // Active LOW
	Port           int  `yaml:"port"`             // TCP listen port
	DirInfocusHigh bool `yaml:"dir-infocus-high"` // DIR level for INFOCUS (default LOW)
}

// GPIOConfig selects the GPIO backend.
type GPIOConfig struct {
	Backend string `yaml:"backend"` // "rpio" (default) or "cdev"
	Chip    string `yaml:"chip"`    // cdev only, e.g. "gpiochip0"
	Mock    bool   `yaml:"mock"`    // use mock GPIO (true=dev/test, false=real hardware)
}

// Config aggregates all application configuration.
type Config struct {
	Focuser    FocuserConfig `yaml:"focuser"`
	GPIO       GPIOConfig    `yaml:"gpio"`
	DebugLevel int           `yaml:"debug_level"` // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Defaults applied by Load when a key is missing or zero.
const (
	DefaultStepsPerMM = 470
	DefaultDelayUs    = 10000
	DefaultPort       = 5000
)

// ValidateConfigPath rejects paths that are not a .yaml file directly
// inside a directory named "configs", or that contain "..".
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given: the
// default motion settings with the pins still to be filled in.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Focuser.StepsPerMM == 0 {
		c.Focuser.StepsPerMM = DefaultStepsPerMM
	}
	if c.Focuser.DelayUs <= 0 {
		c.Focuser.DelayUs = DefaultDelayUs
	}
	if c.Focuser.Port == 0 {
		c.Focuser.Port = DefaultPort
	}
}

// Validate checks ranges and pin wiring.
func (c *Config) Validate() error {
	f := c.Focuser
	if f.StepsPerMM < 1 {
		return fmt.Errorf("steps_per_mm must be >= 1, got %d", f.StepsPerMM)
	}
	if f.BacklashIn < 0 || f.BacklashOut < 0 {
		return fmt.Errorf("backlash must be >= 0, got backlash0=%d backlash1=%d", f.BacklashIn, f.BacklashOut)
	}
	if f.Port <= 0 || f.Port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", f.Port)
	}
	for name, pin := range map[string]int{"dir-pin": f.DirPin, "step-pin": f.StepPin, "enable-pin": f.EnablePin} {
		if pin < 0 {
			return fmt.Errorf("%s must be >= 0, got %d", name, pin)
		}
	}
	if f.DirPin == f.StepPin || f.DirPin == f.EnablePin || f.StepPin == f.EnablePin {
		return fmt.Errorf("dir-pin, step-pin and enable-pin must differ, got %d/%d/%d", f.DirPin, f.StepPin, f.EnablePin)
	}
	switch c.GPIO.Backend {
	case "", "rpio", "cdev":
	default:
		return fmt.Errorf("gpio.backend must be rpio or cdev, got %q", c.GPIO.Backend)
	}
	if c.DebugLevel < 0 || c.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.DebugLevel)
	}
	return nil
}

// Save writes the configuration back to path, replacing the file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// StepDelay returns the STEP half-cycle duration.
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Focuser.DelayUs) * time.Microsecond
}

// Addr returns the TCP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Focuser.Port)
}
