package gate

import (
	"errors"
	"fmt"
	"time"
)

var ErrMalformedTrajectory = errors.New("malformed trajectory")

// TrajectoryPoint is one time-stamped observation of a tracked object,
// as produced by the external tracker.
type TrajectoryPoint struct {
	Time  time.Time `json:"t"`
	Point Point     `json:"p"`
}

// TrajectoryPayload is a completed track pushed by the tracker collaborator:
// the full ordered point sequence for one object, plus identity metadata.
// The core never manages object identity or re-association.
type TrajectoryPayload struct {
	CameraID    string                 `json:"camera_id"`
	TrackID     string                 `json:"track_id"`
	ObjectClass string                 `json:"object_class,omitempty"`
	Points      []TrajectoryPoint      `json:"points"`
	RawPayload  map[string]interface{} `json:"raw_payload,omitempty"`
}

// CrossingEvent is the engine's sole output: a classified direction plus the
// timestamp of the point that completed the crossing. Immutable once emitted.
type CrossingEvent struct {
	Direction    string    `json:"direction"`
	CrossingTime time.Time `json:"crossing_time"`
}

// ValidateTrajectory rejects empty point sequences and sequences whose
// timestamps are not strictly increasing. A malformed trajectory is dropped;
// it must never produce a fabricated event.
func ValidateTrajectory(points []TrajectoryPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: empty point sequence", ErrMalformedTrajectory)
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Time.After(points[i-1].Time) {
			return fmt.Errorf("%w: timestamps not strictly increasing at index %d", ErrMalformedTrajectory, i)
		}
	}
	return nil
}
