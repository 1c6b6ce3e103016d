// Package runner owns the goroutine that drives a sim.Engine in wall-clock
// time and serialises control commands against it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/bottleneck/internal/monitoring"
	"github.com/banshee-data/bottleneck/internal/scenario"
	"github.com/banshee-data/bottleneck/internal/sim"
	"github.com/banshee-data/bottleneck/internal/timeutil"
)

var logf = monitoring.Tagged("runner")

// ErrNotRunning is returned by Send when no Run loop is receiving commands.
var ErrNotRunning = errors.New("runner is not running")

// Action names a control command.
type Action string

const (
	ActionPause     Action = "pause"
	ActionResume    Action = "resume"
	ActionReset     Action = "reset"
	ActionTimeScale Action = "time_scale"
	ActionStep      Action = "step"
)

// ParseAction validates a command name received from outside.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPause, ActionResume, ActionReset, ActionTimeScale, ActionStep:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Command is a control request. Value carries the time scale for
// ActionTimeScale.
type Command struct {
	Action Action
	Value  float64
}

type request struct {
	cmd   Command
	reply chan error
}

// Config configures a Runner.
type Config struct {
	Engine *sim.Engine
	// Clock drives the tick loop; nil uses the wall clock.
	Clock timeutil.Clock
	// Interval is the wall time between ticks; zero uses the engine's tick
	// interval.
	Interval time.Duration
	// StartPaused leaves the engine idle until a resume command arrives.
	StartPaused bool
	// OnTick, if set, is called from the loop goroutine after every step.
	OnTick func(sim.Snapshot)
}

// Runner drives one engine. Only the Run goroutine touches the engine;
// everything else reads the latest snapshot.
type Runner struct {
	id       string
	engine   *sim.Engine
	clock    timeutil.Clock
	interval time.Duration
	onTick   func(sim.Snapshot)

	requests chan request

	mu      sync.RWMutex
	latest  sim.Snapshot
	config  sim.Config
	paused  bool
	running bool
	doneCh  chan struct{}
}

// New returns a Runner for cfg.Engine.
func New(cfg Config) (*Runner, error) {
	if cfg.Engine == nil {
		return nil, errors.New("runner: nil engine")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = cfg.Engine.Config().TickInterval
	}
	return &Runner{
		id:       uuid.NewString(),
		engine:   cfg.Engine,
		clock:    clock,
		interval: interval,
		onTick:   cfg.OnTick,
		requests: make(chan request),
		latest:   cfg.Engine.Snapshot(),
		config:   cfg.Engine.Config(),
		paused:   cfg.StartPaused,
	}, nil
}

// ID is the run identifier, unique per Runner.
func (r *Runner) ID() string { return r.id }

// Interval is the wall time between ticks.
func (r *Runner) Interval() time.Duration { return r.interval }

// Run ticks the engine until ctx is cancelled. It returns nil on clean
// shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("runner: already running")
	}
	r.running = true
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		close(r.doneCh)
		r.mu.Unlock()
	}()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	logf("run %s started: scenario=%s interval=%v", r.id, r.engine.Scenario().ID, r.interval)
	for {
		select {
		case <-ctx.Done():
			logf("run %s stopping at tick %d", r.id, r.engine.Tick())
			return nil
		case req := <-r.requests:
			req.reply <- r.apply(req.cmd)
		case <-ticker.C():
			if r.Paused() {
				continue
			}
			r.step()
		}
	}
}

func (r *Runner) step() {
	snap := r.engine.Step(r.interval)
	r.publish(snap)
	if r.onTick != nil {
		r.onTick(snap)
	}
}

func (r *Runner) publish(snap sim.Snapshot) {
	r.mu.Lock()
	r.latest = snap
	r.mu.Unlock()
}

func (r *Runner) apply(cmd Command) error {
	switch cmd.Action {
	case ActionPause:
		r.setPaused(true)
	case ActionResume:
		r.setPaused(false)
	case ActionReset:
		r.engine.Reset()
		r.publish(r.engine.Snapshot())
		logf("run %s reset", r.id)
	case ActionTimeScale:
		if err := r.engine.SetTimeScale(cmd.Value); err != nil {
			return err
		}
		r.mu.Lock()
		r.config = r.engine.Config()
		r.mu.Unlock()
		logf("run %s time scale set to %g", r.id, cmd.Value)
	case ActionStep:
		r.step()
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	return nil
}

// Send delivers cmd to the Run loop and waits for it to be applied.
func (r *Runner) Send(ctx context.Context, cmd Command) error {
	r.mu.RLock()
	running, done := r.running, r.doneCh
	r.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case r.requests <- req:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the most recent snapshot.
func (r *Runner) Latest() sim.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Config returns the engine configuration, including any time scale change
// applied by a command.
func (r *Runner) Config() sim.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Scenario returns the scenario the engine runs.
func (r *Runner) Scenario() scenario.Scenario { return r.engine.Scenario() }

// Paused reports whether ticking is suspended.
func (r *Runner) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

func (r *Runner) setPaused(p bool) {
	r.mu.Lock()
	r.paused = p
	r.mu.Unlock()
	if p {
		logf("run %s paused", r.id)
	} else {
		logf("run %s resumed", r.id)
	}
}

// IsRunning reports whether the Run loop is active.
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}
