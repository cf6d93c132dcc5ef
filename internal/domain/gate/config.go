package gate

import (
	"errors"
	"fmt"

	"gatecount-service/internal/utils"
)

// Counting boundary modes.
const (
	ModeLine = "line" // single counting line
	ModeGate = "gate" // two-line gate bracketing a counting zone
)

// Direction values carried by CrossingEvent.
const (
	DirectionAToB = "a_to_b"
	DirectionBToA = "b_to_a"
)

var (
	ErrIncompleteConfig  = errors.New("incomplete gate config")
	ErrDegenerateSegment = errors.New("degenerate line segment")
)

// DirectionLabels are the operator-facing names for the two crossing
// directions, e.g. "northbound" / "southbound".
type DirectionLabels struct {
	AToB string `json:"a_to_b"`
	BToA string `json:"b_to_a"`
}

// GateConfig is the persisted counting-boundary definition for one camera.
// Exactly one shape applies per mode: ModeLine uses Line, ModeGate uses
// GateA and GateB. A config with any required segment unset is a valid
// draft in storage but must not be activated for live counting.
type GateConfig struct {
	Mode            string          `json:"mode"`
	Line            *LineSegment    `json:"line,omitempty"`
	GateA           *LineSegment    `json:"gate_a,omitempty"`
	GateB           *LineSegment    `json:"gate_b,omitempty"`
	DirectionLabels DirectionLabels `json:"direction_labels"`
}

// Validate checks that the config is complete enough to activate: the
// mode-required segments are present and non-degenerate and both direction
// labels are non-empty. No geometric sanity checks beyond degeneracy:
// non-parallel or intersecting gate lines are accepted and the engine
// resolves them deterministically.
func (c GateConfig) Validate() error {
	switch c.Mode {
	case ModeLine:
		if c.Line == nil {
			return fmt.Errorf("%w: line is required in line mode", ErrIncompleteConfig)
		}
		if c.Line.IsDegenerate() {
			return fmt.Errorf("%w: line endpoints coincide", ErrDegenerateSegment)
		}
	case ModeGate:
		if c.GateA == nil {
			return fmt.Errorf("%w: gate_a is required in gate mode", ErrIncompleteConfig)
		}
		if c.GateB == nil {
			return fmt.Errorf("%w: gate_b is required in gate mode", ErrIncompleteConfig)
		}
		if c.GateA.IsDegenerate() {
			return fmt.Errorf("%w: gate_a endpoints coincide", ErrDegenerateSegment)
		}
		if c.GateB.IsDegenerate() {
			return fmt.Errorf("%w: gate_b endpoints coincide", ErrDegenerateSegment)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrIncompleteConfig, c.Mode)
	}

	if utils.NormalizeLabel(c.DirectionLabels.AToB) == "" {
		return fmt.Errorf("%w: a_to_b direction label is empty", ErrIncompleteConfig)
	}
	if utils.NormalizeLabel(c.DirectionLabels.BToA) == "" {
		return fmt.Errorf("%w: b_to_a direction label is empty", ErrIncompleteConfig)
	}
	return nil
}

// LabelFor resolves a direction constant to its operator-facing label.
// Unknown directions fall back to the raw direction string.
func (c GateConfig) LabelFor(direction string) string {
	switch direction {
	case DirectionAToB:
		return utils.NormalizeLabel(c.DirectionLabels.AToB)
	case DirectionBToA:
		return utils.NormalizeLabel(c.DirectionLabels.BToA)
	default:
		return direction
	}
}
