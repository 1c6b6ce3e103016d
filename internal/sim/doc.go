// Package sim owns the traffic simulation of the reversible passage.
//
// Responsibilities: the simulated clock, the reversible-lane signal, vehicle
// spawn and removal, car-following and overtaking kinematics, incident
// resolution, the risk estimate, and running economic totals.
// Key types: Engine, Snapshot, Vehicle, SignalController.
//
// The engine is a deterministic step function: a given Config, Scenario and
// random source always produce the same sequence of snapshots. No goroutine
// lives in this package; internal/runner owns the loop that drives Step.
package sim
