package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/banshee-data/bottleneck/internal/config"
	"github.com/banshee-data/bottleneck/internal/scenario"
	"github.com/banshee-data/bottleneck/internal/sim"
)

// simFlags are the run parameters shared by run, compare and serve. Flags
// that are set override the config file; the rest keep its values.
type simFlags struct {
	fs *flag.FlagSet

	configPath string
	scenario   string
	start      string
	green      int
	rain       float64
	overtaking bool
	timeScale  float64
	seed       int64
	strict     bool
}

func registerSimFlags(fs *flag.FlagSet) *simFlags {
	f := &simFlags{fs: fs}
	fs.StringVar(&f.configPath, "config", "", "Path to a JSON run configuration (see "+config.DefaultConfigPath+")")
	fs.StringVar(&f.scenario, "scenario", "", "Scenario: "+strings.Join(scenario.IDs(), ", "))
	fs.StringVar(&f.start, "start", "", "Simulated start time, HH:MM")
	fs.IntVar(&f.green, "green", 0, "Green phase length in ticks")
	fs.Float64Var(&f.rain, "rain", 0, "Rain intensity, 0 to 10")
	fs.BoolVar(&f.overtaking, "overtaking", true, "Allow overtaking")
	fs.Float64Var(&f.timeScale, "time-scale", 1, "Simulated minutes per real minute multiplier, (0, 10]")
	fs.Int64Var(&f.seed, "seed", 0, "Random seed")
	fs.BoolVar(&f.strict, "strict", false, "Panic on invariant violations")
	return f
}

// fileConfig loads -config (or an empty config) and applies every flag the
// user set on top of it.
func (f *simFlags) fileConfig() (*config.SimConfig, error) {
	c := config.EmptySimConfig()
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		c = loaded
	}

	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "scenario":
			c.Scenario = &f.scenario
		case "start":
			c.StartTime = &f.start
		case "green":
			c.GreenDuration = &f.green
		case "rain":
			c.RainIntensity = &f.rain
		case "overtaking":
			c.AllowOvertaking = &f.overtaking
		case "time-scale":
			c.TimeScale = &f.timeScale
		case "seed":
			c.Seed = &f.seed
		case "strict":
			c.StrictInvariants = &f.strict
		}
	})

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// resolve returns the engine configuration and scenario selected by the
// flags and config file.
func (f *simFlags) resolve() (sim.Config, scenario.Scenario, error) {
	c, err := f.fileConfig()
	if err != nil {
		return sim.Config{}, scenario.Scenario{}, err
	}
	sc, err := scenario.ByID(c.GetScenario())
	if err != nil {
		return sim.Config{}, scenario.Scenario{}, err
	}
	cfg := sim.ConfigFromFile(c)
	if err := cfg.Validate(); err != nil {
		return sim.Config{}, scenario.Scenario{}, err
	}
	return cfg, sc, nil
}
