package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gatecount-service/internal/domain/gate"
)

// trackSession is the per-track crossing state for incrementally fed
// trajectories. Each session owns its own engine instance and the ActiveGate
// handle pinned when the track began; sessions share nothing and can be fed
// from concurrent tracker connections.
type trackSession struct {
	mu sync.Mutex

	cameraID    string
	objectClass string
	pinned      *ActiveGate
	engine      *gate.Engine
	reported    bool
}

type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*trackSession
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[string]*trackSession)}
}

func (m *sessionManager) getOrCreate(trackID string, create func() (*trackSession, error)) (*trackSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[trackID]; ok {
		return session, nil
	}
	session, err := create()
	if err != nil {
		return nil, err
	}
	m.sessions[trackID] = session
	return session, nil
}

func (m *sessionManager) remove(trackID string) (*trackSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[trackID]
	if ok {
		delete(m.sessions, trackID)
	}
	return session, ok
}

// AppendPoint feeds one tracker observation into the track's session,
// creating the session on first contact. The session pins the camera's
// active config at creation time: a config activated mid-track is observed
// by new tracks only.
func (s *CountingService) AppendPoint(ctx context.Context, cameraID, trackID, objectClass string, pt gate.TrajectoryPoint) (*CrossingResult, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("%w: camera_id is required", ErrInvalidInput)
	}
	if trackID == "" {
		return nil, fmt.Errorf("%w: track_id is required", ErrInvalidInput)
	}

	session, err := s.sessions.getOrCreate(trackID, func() (*trackSession, error) {
		active, err := s.gates.ResolveActive(cameraID)
		if err != nil {
			return nil, err
		}
		engine, err := gate.NewEngine(active.Config)
		if err != nil {
			return nil, fmt.Errorf("active gate config rejected by engine: %w", err)
		}
		return &trackSession{
			cameraID:    cameraID,
			objectClass: objectClass,
			pinned:      active,
			engine:      engine,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	result := &CrossingResult{
		CameraID:      session.cameraID,
		TrackID:       trackID,
		ConfigVersion: session.pinned.Version,
	}

	event, err := session.engine.Feed(pt)
	if err != nil {
		if errors.Is(err, gate.ErrMalformedTrajectory) {
			s.sessions.remove(trackID)
			s.log.Warn().
				Err(err).
				Str("camera_id", session.cameraID).
				Str("track_id", trackID).
				Msg("dropping malformed track session")
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}
	if event == nil || session.reported {
		return result, nil
	}

	if err := s.recordCrossing(ctx, session.pinned, session.cameraID, trackID, session.objectClass, nil, event); err != nil {
		return nil, err
	}
	session.reported = true

	result.Crossed = true
	result.Direction = event.Direction
	result.DirectionLabel = session.pinned.Config.LabelFor(event.Direction)
	t := event.CrossingTime
	result.CrossingTime = &t
	return result, nil
}

// EndTrack handles the tracker's track-ended signal: the session state is
// discarded. A track that ends mid-pass has emitted nothing and never will.
func (s *CountingService) EndTrack(ctx context.Context, trackID string) error {
	if trackID == "" {
		return fmt.Errorf("%w: track_id is required", ErrInvalidInput)
	}
	session, ok := s.sessions.remove(trackID)
	if !ok {
		return fmt.Errorf("%w: unknown track %s", ErrNotFound, trackID)
	}

	session.mu.Lock()
	reported := session.reported
	cameraID := session.cameraID
	session.mu.Unlock()

	s.log.Debug().
		Str("camera_id", cameraID).
		Str("track_id", trackID).
		Bool("crossed", reported).
		Msg("track session ended")
	return nil
}
