package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/gridloc.defaults.json"

// Fallbacks used by the Get* accessors when a field is unset.
const (
	DefaultPHit     = 0.6
	DefaultPMiss    = 0.2
	DefaultBlurring = 0.12
	DefaultMapPath  = "maps/m1.txt"
	DefaultBaudRate = 9600
)

// TuningConfig is the root configuration for a localization run. Every
// field is optional; the Get* methods fill in defaults.
type TuningConfig struct {
	// Sensor model
	PHit  *float64 `json:"p_hit,omitempty"`
	PMiss *float64 `json:"p_miss,omitempty"`

	// Motion noise passed to the blur on every move, in [0, 1]
	Blurring *float64 `json:"blurring,omitempty"`

	MapPath *string `json:"map_path,omitempty"`

	// Feed pacing between commands, duration string like "250ms"
	ReplayInterval *string `json:"replay_interval,omitempty"`

	Serial *SerialConfig `json:"serial,omitempty"`

	// Outputs (empty disables)
	DBPath  *string `json:"db_path,omitempty"`
	PlotDir *string `json:"plot_dir,omitempty"`
	Listen  *string `json:"listen,omitempty"`
}

// SerialConfig describes the serial device a live command feed is read from.
type SerialConfig struct {
	Device   string `json:"device"`
	BaudRate int    `json:"baud_rate,omitempty"`
	DataBits int    `json:"data_bits,omitempty"`
	StopBits int    `json:"stop_bits,omitempty"`
	Parity   string `json:"parity,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and be at most 1MB. Omitted fields keep their
// defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded, intended for
// test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	if c.PHit != nil && !positive(*c.PHit) {
		return fmt.Errorf("p_hit must be positive, got %v", *c.PHit)
	}
	if c.PMiss != nil && !positive(*c.PMiss) {
		return fmt.Errorf("p_miss must be positive, got %v", *c.PMiss)
	}
	if c.Blurring != nil {
		if b := *c.Blurring; math.IsNaN(b) || b < 0 || b > 1 {
			return fmt.Errorf("blurring must be between 0 and 1, got %v", b)
		}
	}
	if c.ReplayInterval != nil && *c.ReplayInterval != "" {
		d, err := time.ParseDuration(*c.ReplayInterval)
		if err != nil {
			return fmt.Errorf("invalid replay_interval '%s': %w", *c.ReplayInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("replay_interval must be non-negative, got %s", d)
		}
	}
	if c.Serial != nil && c.Serial.Device == "" {
		return fmt.Errorf("serial.device is required when serial is set")
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// GetPHit returns p_hit or the default.
func (c *TuningConfig) GetPHit() float64 {
	if c.PHit == nil {
		return DefaultPHit
	}
	return *c.PHit
}

// GetPMiss returns p_miss or the default.
func (c *TuningConfig) GetPMiss() float64 {
	if c.PMiss == nil {
		return DefaultPMiss
	}
	return *c.PMiss
}

// GetBlurring returns the blur amount or the default.
func (c *TuningConfig) GetBlurring() float64 {
	if c.Blurring == nil {
		return DefaultBlurring
	}
	return *c.Blurring
}

// GetMapPath returns the map file path or the default.
func (c *TuningConfig) GetMapPath() string {
	if c.MapPath == nil || *c.MapPath == "" {
		return DefaultMapPath
	}
	return *c.MapPath
}

// GetReplayInterval parses ReplayInterval. Zero means no pacing.
func (c *TuningConfig) GetReplayInterval() time.Duration {
	if c.ReplayInterval == nil || *c.ReplayInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.ReplayInterval)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}

// GetSerial returns the serial settings with defaults applied, or nil when
// no serial device is configured.
func (c *TuningConfig) GetSerial() *SerialConfig {
	if c.Serial == nil {
		return nil
	}
	s := *c.Serial
	if s.BaudRate <= 0 {
		s.BaudRate = DefaultBaudRate
	}
	return &s
}

// GetDBPath returns the run history path; empty disables recording.
func (c *TuningConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetPlotDir returns the plot output directory; empty disables plots.
func (c *TuningConfig) GetPlotDir() string {
	if c.PlotDir == nil {
		return ""
	}
	return *c.PlotDir
}

// GetListen returns the debug server address; empty disables it.
func (c *TuningConfig) GetListen() string {
	if c.Listen == nil {
		return ""
	}
	return *c.Listen
}
