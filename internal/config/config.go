package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical run defaults file.
const DefaultConfigPath = "config/sim.defaults.json"

// SimConfig is the on-disk run configuration. Every field is optional; the
// Get* methods fall back to the built-in default for anything omitted, so a
// partial file is safe.
type SimConfig struct {
	Scenario        *string  `json:"scenario,omitempty"`
	StartTime       *string  `json:"start_time,omitempty"` // "HH:MM"
	GreenDuration   *int     `json:"green_duration_ticks,omitempty"`
	RainIntensity   *float64 `json:"rain_intensity,omitempty"` // 0..10
	AllowOvertaking *bool    `json:"allow_overtaking,omitempty"`
	TimeScale       *float64 `json:"time_scale,omitempty"`
	Seed            *int64   `json:"seed,omitempty"`

	TickInterval          *string `json:"tick_interval,omitempty"` // duration string like "50ms"
	MaxClearanceTicks     *int    `json:"max_clearance_ticks,omitempty"`
	IncidentDurationTicks *int    `json:"incident_duration_ticks,omitempty"`

	HistoryIntervalMinutes *int `json:"history_interval_minutes,omitempty"`
	HistoryLimit           *int `json:"history_limit,omitempty"` // 0 keeps everything

	StrictInvariants *bool `json:"strict_invariants,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptySimConfig returns a SimConfig with all fields unset.
func EmptySimConfig() *SimConfig {
	return &SimConfig{}
}

// LoadConfig loads a SimConfig from a JSON file. The path must have a .json
// extension and the file must be under 1MB.
func LoadConfig(path string) (*SimConfig, error) {
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

	cfg := EmptySimConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up towards the repository root. Panics if the file cannot be
// loaded; intended for test setup.
func MustLoadDefaultConfig() *SimConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set.
func (c *SimConfig) Validate() error {
	if c.StartTime != nil {
		if _, _, err := ParseClock(*c.StartTime); err != nil {
			return fmt.Errorf("invalid start_time: %w", err)
		}
	}

	if c.RainIntensity != nil {
		if *c.RainIntensity < 0 || *c.RainIntensity > 10 {
			return fmt.Errorf("rain_intensity must be between 0 and 10, got %g", *c.RainIntensity)
		}
	}

	if c.TimeScale != nil {
		if *c.TimeScale <= 0 || *c.TimeScale > 10 {
			return fmt.Errorf("time_scale must be in (0, 10], got %g", *c.TimeScale)
		}
	}

	if c.GreenDuration != nil && *c.GreenDuration <= 0 {
		return fmt.Errorf("green_duration_ticks must be positive, got %d", *c.GreenDuration)
	}

	if c.TickInterval != nil && *c.TickInterval != "" {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %s", d)
		}
	}

	if c.MaxClearanceTicks != nil && *c.MaxClearanceTicks <= 0 {
		return fmt.Errorf("max_clearance_ticks must be positive, got %d", *c.MaxClearanceTicks)
	}

	if c.IncidentDurationTicks != nil && *c.IncidentDurationTicks <= 0 {
		return fmt.Errorf("incident_duration_ticks must be positive, got %d", *c.IncidentDurationTicks)
	}

	if c.HistoryIntervalMinutes != nil && *c.HistoryIntervalMinutes <= 0 {
		return fmt.Errorf("history_interval_minutes must be positive, got %d", *c.HistoryIntervalMinutes)
	}

	if c.HistoryLimit != nil && *c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must be non-negative, got %d", *c.HistoryLimit)
	}

	return nil
}

// ParseClock parses a 24h "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour out of range in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute out of range in %q", s)
	}
	return hour, minute, nil
}

// GetScenario returns the scenario id or the default.
func (c *SimConfig) GetScenario() string {
	if c.Scenario == nil || *c.Scenario == "" {
		return "real"
	}
	return *c.Scenario
}

// GetStartTime returns the start_time value or the default.
func (c *SimConfig) GetStartTime() string {
	if c.StartTime == nil || *c.StartTime == "" {
		return "06:00"
	}
	return *c.StartTime
}

// GetGreenDuration returns the green phase length in ticks or the default.
func (c *SimConfig) GetGreenDuration() int {
	if c.GreenDuration == nil {
		return 400
	}
	return *c.GreenDuration
}

// GetRainIntensity returns the rain_intensity value or the default.
func (c *SimConfig) GetRainIntensity() float64 {
	if c.RainIntensity == nil {
		return 0
	}
	return *c.RainIntensity
}

// GetAllowOvertaking returns the allow_overtaking value or the default.
func (c *SimConfig) GetAllowOvertaking() bool {
	if c.AllowOvertaking == nil {
		return false
	}
	return *c.AllowOvertaking
}

// GetTimeScale returns the time_scale value or the default.
func (c *SimConfig) GetTimeScale() float64 {
	if c.TimeScale == nil {
		return 1
	}
	return *c.TimeScale
}

// GetSeed returns the seed value or the default.
func (c *SimConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *SimConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 50 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil || d <= 0 {
		return 50 * time.Millisecond // default on parse error
	}
	return d
}

// GetMaxClearanceTicks returns the clearance timeout or the default.
func (c *SimConfig) GetMaxClearanceTicks() int {
	if c.MaxClearanceTicks == nil {
		return 200
	}
	return *c.MaxClearanceTicks
}

// GetIncidentDurationTicks returns how long wrecks stay on the road.
func (c *SimConfig) GetIncidentDurationTicks() int {
	if c.IncidentDurationTicks == nil {
		return 300 // 15s at the default tick interval
	}
	return *c.IncidentDurationTicks
}

// GetHistoryIntervalMinutes returns the history sampling period.
func (c *SimConfig) GetHistoryIntervalMinutes() int {
	if c.HistoryIntervalMinutes == nil {
		return 10
	}
	return *c.HistoryIntervalMinutes
}

// GetHistoryLimit returns the history_limit value or the default.
func (c *SimConfig) GetHistoryLimit() int {
	if c.HistoryLimit == nil {
		return 1000
	}
	return *c.HistoryLimit
}

// GetStrictInvariants returns the strict_invariants value or the default.
func (c *SimConfig) GetStrictInvariants() bool {
	if c.StrictInvariants == nil {
		return false
	}
	return *c.StrictInvariants
}
