package gate

import (
	"fmt"
	"time"
)

// engineState is the two-line gate traversal state. Single-line mode only
// uses stateNotEntered and stateReported.
type engineState int

const (
	stateNotEntered engineState = iota
	statePassedA
	statePassedB
	stateReported
)

// Engine classifies the crossing direction of one trajectory against one
// GateConfig. It is a pure, synchronous state machine: one instance per
// tracked object, no shared mutable state between instances, no I/O. The
// config is read-only for the engine's lifetime.
//
// At most one CrossingEvent is emitted per trajectory. In single-line mode
// only the first side transition counts (anti-flicker); in gate mode the
// engine reaches its terminal state after the first completed pass.
type Engine struct {
	cfg   GateConfig
	state engineState

	// Last known non-OnLine side per boundary line. SideOnLine doubles as
	// the "no prior side" starting value: a side cannot be determined from
	// an on-line observation, so the engine holds until one resolves.
	lastSide  Side // single-line mode
	lastSideA Side // gate mode, Gate A
	lastSideB Side // gate mode, Gate B

	started  bool
	lastTime time.Time
}

// NewEngine builds an engine for a validated config. Incomplete or
// degenerate configs are rejected and never drive live counting.
func NewEngine(cfg GateConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Feed consumes the next trajectory point and returns a CrossingEvent when
// this point completes a crossing, or nil. Points must arrive in strictly
// increasing timestamp order; a violation returns ErrMalformedTrajectory
// and leaves the engine state untouched.
func (e *Engine) Feed(pt TrajectoryPoint) (*CrossingEvent, error) {
	if e.started && !pt.Time.After(e.lastTime) {
		return nil, fmt.Errorf("%w: point at %s not after %s", ErrMalformedTrajectory, pt.Time.Format(time.RFC3339Nano), e.lastTime.Format(time.RFC3339Nano))
	}
	e.started = true
	e.lastTime = pt.Time

	if e.state == stateReported {
		return nil, nil
	}

	if e.cfg.Mode == ModeLine {
		return e.feedLine(pt), nil
	}
	return e.feedGate(pt), nil
}

// Process runs a complete trajectory through a fresh engine and returns its
// single event, if any. Trajectories that end without a completed crossing
// yield nil. The trajectory is validated up front so a malformed sequence
// can never emit a fabricated event.
func (e *Engine) Process(points []TrajectoryPoint) (*CrossingEvent, error) {
	if err := ValidateTrajectory(points); err != nil {
		return nil, err
	}
	for _, pt := range points {
		event, err := e.Feed(pt)
		if err != nil {
			return nil, err
		}
		if event != nil {
			return event, nil
		}
	}
	return nil, nil
}

// feedLine runs the single-line state machine: emit on the first
// Positive<->Negative transition, then terminal.
func (e *Engine) feedLine(pt TrajectoryPoint) *CrossingEvent {
	prev := e.lastSide
	if !stepSide(*e.cfg.Line, &e.lastSide, pt.Point) {
		return nil
	}

	direction := DirectionBToA
	if prev == SidePositive {
		direction = DirectionAToB
	}
	e.state = stateReported
	return &CrossingEvent{Direction: direction, CrossingTime: pt.Time}
}

// feedGate runs the two-line gate state machine. Gate A's transition is
// evaluated before Gate B's for every point; when sparse sampling flips both
// lines in one step this fixed order deterministically resolves the pass as
// A-then-B.
func (e *Engine) feedGate(pt TrajectoryPoint) *CrossingEvent {
	crossedA := stepSide(*e.cfg.GateA, &e.lastSideA, pt.Point)
	crossedB := stepSide(*e.cfg.GateB, &e.lastSideB, pt.Point)

	if crossedA {
		switch e.state {
		case stateNotEntered:
			e.state = statePassedA
		case statePassedB:
			e.state = stateReported
			return &CrossingEvent{Direction: DirectionBToA, CrossingTime: pt.Time}
		case statePassedA:
			// Re-crossing the entry line before reaching the other gate:
			// the object backed out of the gate zone before committing.
			e.state = stateNotEntered
		}
	}

	if crossedB {
		switch e.state {
		case stateNotEntered:
			e.state = statePassedB
		case statePassedA:
			e.state = stateReported
			return &CrossingEvent{Direction: DirectionAToB, CrossingTime: pt.Time}
		case statePassedB:
			e.state = stateNotEntered
		}
	}

	return nil
}

// stepSide updates the last known side for one boundary line and reports
// whether this point crossed it. OnLine observations neither count as a
// crossing nor reset the last known side; the first non-OnLine observation
// establishes the starting side without crossing.
func stepSide(seg LineSegment, last *Side, pt Point) bool {
	side := SideOf(seg, pt)
	if side == SideOnLine {
		return false
	}
	if *last == SideOnLine {
		*last = side
		return false
	}
	if side != *last {
		*last = side
		return true
	}
	return false
}
