package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/bottleneck/internal/config"
)

// Config is the run configuration the engine is built from.
type Config struct {
	StartTime       string // "HH:MM"
	GreenDuration   int    // ticks of green per direction
	RainIntensity   float64
	AllowOvertaking bool
	TimeScale       float64
	Seed            int64

	TickInterval          time.Duration
	MaxClearanceTicks     int
	IncidentDurationTicks int

	HistoryIntervalMinutes int
	HistoryLimit           int // 0 keeps every sample

	// StrictInvariants turns invariant violations into panics.
	StrictInvariants bool
}

// DefaultConfig returns the configuration used when nothing is supplied.
func DefaultConfig() Config {
	return ConfigFromFile(config.EmptySimConfig())
}

// ConfigFromFile builds a Config from the on-disk representation, applying
// defaults for omitted fields.
func ConfigFromFile(c *config.SimConfig) Config {
	return Config{
		StartTime:              c.GetStartTime(),
		GreenDuration:          c.GetGreenDuration(),
		RainIntensity:          c.GetRainIntensity(),
		AllowOvertaking:        c.GetAllowOvertaking(),
		TimeScale:              c.GetTimeScale(),
		Seed:                   c.GetSeed(),
		TickInterval:           c.GetTickInterval(),
		MaxClearanceTicks:      c.GetMaxClearanceTicks(),
		IncidentDurationTicks:  c.GetIncidentDurationTicks(),
		HistoryIntervalMinutes: c.GetHistoryIntervalMinutes(),
		HistoryLimit:           c.GetHistoryLimit(),
		StrictInvariants:       c.GetStrictInvariants(),
	}
}

// Validate returns a *ConfigurationError for the first rejected field.
func (c Config) Validate() error {
	if _, _, err := config.ParseClock(c.StartTime); err != nil {
		return &ConfigurationError{Field: "start_time", Value: c.StartTime, Err: err}
	}
	if c.GreenDuration <= 0 {
		return &ConfigurationError{Field: "green_duration_ticks", Value: c.GreenDuration, Err: errors.New("must be positive")}
	}
	if c.RainIntensity < 0 || c.RainIntensity > 10 {
		return &ConfigurationError{Field: "rain_intensity", Value: c.RainIntensity, Err: errors.New("must be between 0 and 10")}
	}
	if c.TimeScale <= 0 || c.TimeScale > 10 {
		return &ConfigurationError{Field: "time_scale", Value: c.TimeScale, Err: errors.New("must be in (0, 10]")}
	}
	if c.TickInterval <= 0 {
		return &ConfigurationError{Field: "tick_interval", Value: c.TickInterval, Err: errors.New("must be positive")}
	}
	if c.MaxClearanceTicks <= 0 {
		return &ConfigurationError{Field: "max_clearance_ticks", Value: c.MaxClearanceTicks, Err: errors.New("must be positive")}
	}
	if c.IncidentDurationTicks <= 0 {
		return &ConfigurationError{Field: "incident_duration_ticks", Value: c.IncidentDurationTicks, Err: errors.New("must be positive")}
	}
	if c.HistoryIntervalMinutes <= 0 {
		return &ConfigurationError{Field: "history_interval_minutes", Value: c.HistoryIntervalMinutes, Err: errors.New("must be positive")}
	}
	if c.HistoryLimit < 0 {
		return &ConfigurationError{Field: "history_limit", Value: c.HistoryLimit, Err: fmt.Errorf("must be non-negative")}
	}
	return nil
}

// WeatherDerating is the fraction of top speed available in the current rain.
func (c Config) WeatherDerating() float64 {
	return 1 - c.RainIntensity*0.04
}
