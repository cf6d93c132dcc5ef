package gate

import "math"

// OnLineEpsilon is the tolerance band, in normalized units, within which a
// point is classified as lying on a line rather than on either side of it.
// The value affects reproducibility of boundary-grazing trajectories, so it
// is a stated constant rather than an implementation choice.
const OnLineEpsilon = 1e-9

// Point is a 2-D coordinate normalized to [0,1]x[0,1] relative to the frame
// width and height. Normalization keeps gate definitions resolution-independent.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LineSegment is an ordered pair of distinct points. The ordering orients the
// line: the positive side is the side to the left of the directed vector P1->P2.
type LineSegment struct {
	P1 Point `json:"p1"`
	P2 Point `json:"p2"`
}

// IsDegenerate reports whether both endpoints coincide (within OnLineEpsilon).
func (s LineSegment) IsDegenerate() bool {
	return math.Abs(s.P1.X-s.P2.X) <= OnLineEpsilon && math.Abs(s.P1.Y-s.P2.Y) <= OnLineEpsilon
}

// Side locates a point relative to an oriented line segment.
type Side int

const (
	SideOnLine Side = iota
	SidePositive
	SideNegative
)

func (s Side) String() string {
	switch s {
	case SidePositive:
		return "positive"
	case SideNegative:
		return "negative"
	default:
		return "on_line"
	}
}

// SideOf classifies a point against the oriented line through seg using the
// 2-D cross product of (P2-P1) and (pt-P1). A cross product within
// OnLineEpsilon of zero classifies as SideOnLine.
func SideOf(seg LineSegment, pt Point) Side {
	cross := (seg.P2.X-seg.P1.X)*(pt.Y-seg.P1.Y) - (seg.P2.Y-seg.P1.Y)*(pt.X-seg.P1.X)
	switch {
	case cross > OnLineEpsilon:
		return SidePositive
	case cross < -OnLineEpsilon:
		return SideNegative
	default:
		return SideOnLine
	}
}
