package runner

import (
	"context"
	"fmt"

	"github.com/banshee-data/bottleneck/internal/scenario"
	"github.com/banshee-data/bottleneck/internal/sim"
)

// Result is the outcome of a headless run.
type Result struct {
	RunID    string
	Scenario scenario.Scenario
	Config   sim.Config
	Ticks    int
	Final    sim.Snapshot
}

// RunHeadless steps a fresh engine ticks times as fast as possible. It checks
// ctx between ticks and returns the snapshot reached so far on cancellation.
func RunHeadless(ctx context.Context, runID string, cfg sim.Config, sc scenario.Scenario, ticks int, opts ...sim.Option) (Result, error) {
	if ticks <= 0 {
		return Result{}, fmt.Errorf("ticks must be positive, got %d", ticks)
	}
	e, err := sim.New(cfg, sc, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("create engine: %w", err)
	}
	res := Result{RunID: runID, Scenario: sc, Config: cfg, Final: e.Snapshot()}
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Final = e.Step(cfg.TickInterval)
		res.Ticks++
	}
	logf("run %s finished: scenario=%s ticks=%d incidents=%d total_cost=%.0f",
		runID, sc.ID, res.Ticks, len(res.Final.IncidentLog), res.Final.Stats.TotalCost)
	return res, nil
}

// Comparison holds two runs that differ only in scenario.
type Comparison struct {
	A, B Result
	// Deltas are B minus A.
	CostDelta       float64
	SpeedDelta      float64
	IncidentDelta   int
	ThroughputDelta int
}

// Compare runs scenarios a and b with identical configuration and seed.
func Compare(ctx context.Context, runID string, cfg sim.Config, a, b scenario.Scenario, ticks int) (Comparison, error) {
	ra, err := RunHeadless(ctx, runID+"-a", cfg, a, ticks)
	if err != nil {
		return Comparison{}, fmt.Errorf("scenario %s: %w", a.ID, err)
	}
	rb, err := RunHeadless(ctx, runID+"-b", cfg, b, ticks)
	if err != nil {
		return Comparison{}, fmt.Errorf("scenario %s: %w", b.ID, err)
	}
	return Comparison{
		A:               ra,
		B:               rb,
		CostDelta:       rb.Final.Stats.TotalCost - ra.Final.Stats.TotalCost,
		SpeedDelta:      rb.Final.Stats.RunMeanSpeed - ra.Final.Stats.RunMeanSpeed,
		IncidentDelta:   len(rb.Final.IncidentLog) - len(ra.Final.IncidentLog),
		ThroughputDelta: rb.Final.Stats.Throughput - ra.Final.Stats.Throughput,
	}, nil
}
