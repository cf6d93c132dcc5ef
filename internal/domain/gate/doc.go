// Package gate implements the crossing-direction core: the geometric model
// for counting boundaries (a single line or a two-line gate in normalized
// image coordinates) and the per-trajectory state machines that classify a
// tracked object's crossing direction.
//
// The package is pure domain logic: no I/O, no clocks, no shared state.
// Trajectories come from an external tracker, configs from the operator UI;
// the engine's only output is at most one CrossingEvent per trajectory.
package gate
