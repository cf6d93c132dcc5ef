package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gatecount-service/internal/domain/gate"
	"gatecount-service/internal/repository"
)

// CountingService turns tracker trajectories into per-direction crossing
// counts. The crossing engine itself is pure; this service supplies it with
// the pinned active config and hands its events to persistence.
type CountingService struct {
	store              GateStore
	gates              *GateService
	log                zerolog.Logger
	defaultObjectClass string

	sessions *sessionManager
}

func NewCountingService(store GateStore, gates *GateService, log zerolog.Logger, defaultObjectClass string) *CountingService {
	return &CountingService{
		store:              store,
		gates:              gates,
		log:                log,
		defaultObjectClass: defaultObjectClass,
		sessions:           newSessionManager(),
	}
}

// CrossingResult reports the outcome of a processed trajectory or point.
type CrossingResult struct {
	CameraID       string     `json:"camera_id"`
	TrackID        string     `json:"track_id"`
	Crossed        bool       `json:"crossed"`
	Direction      string     `json:"direction,omitempty"`
	DirectionLabel string     `json:"direction_label,omitempty"`
	CrossingTime   *time.Time `json:"crossing_time,omitempty"`
	ConfigVersion  string     `json:"config_version"`
}

// ProcessTrajectory runs a completed trajectory through the crossing engine
// under the camera's active config and persists the resulting event and
// daily count, if any.
func (s *CountingService) ProcessTrajectory(ctx context.Context, payload gate.TrajectoryPayload) (*CrossingResult, error) {
	if payload.CameraID == "" {
		return nil, fmt.Errorf("%w: camera_id is required", ErrInvalidInput)
	}
	if payload.TrackID == "" {
		return nil, fmt.Errorf("%w: track_id is required", ErrInvalidInput)
	}

	active, err := s.gates.ResolveActive(payload.CameraID)
	if err != nil {
		return nil, err
	}

	engine, err := gate.NewEngine(active.Config)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("camera_id", payload.CameraID).
			Str("version", active.Version).
			Msg("active gate config rejected by engine")
		return nil, fmt.Errorf("active gate config rejected by engine: %w", err)
	}

	event, err := engine.Process(payload.Points)
	if err != nil {
		if errors.Is(err, gate.ErrMalformedTrajectory) {
			s.log.Warn().
				Err(err).
				Str("camera_id", payload.CameraID).
				Str("track_id", payload.TrackID).
				Int("points", len(payload.Points)).
				Msg("dropping malformed trajectory")
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	result := &CrossingResult{
		CameraID:      payload.CameraID,
		TrackID:       payload.TrackID,
		ConfigVersion: active.Version,
	}
	if event == nil {
		s.log.Debug().
			Str("camera_id", payload.CameraID).
			Str("track_id", payload.TrackID).
			Msg("trajectory ended without crossing")
		return result, nil
	}

	if err := s.recordCrossing(ctx, active, payload.CameraID, payload.TrackID, payload.ObjectClass, payload.RawPayload, event); err != nil {
		return nil, err
	}

	result.Crossed = true
	result.Direction = event.Direction
	result.DirectionLabel = active.Config.LabelFor(event.Direction)
	t := event.CrossingTime
	result.CrossingTime = &t
	return result, nil
}

func (s *CountingService) recordCrossing(ctx context.Context, active *ActiveGate, cameraID, trackID, objectClass string, rawPayload map[string]interface{}, event *gate.CrossingEvent) error {
	if objectClass == "" {
		objectClass = s.defaultObjectClass
	}

	record := &repository.CrossingRecord{
		CameraID:       cameraID,
		TrackID:        trackID,
		ConfigVersion:  active.Version,
		Direction:      event.Direction,
		DirectionLabel: active.Config.LabelFor(event.Direction),
		CrossingTime:   event.CrossingTime,
		CreatedAt:      time.Now(),
	}
	if objectClass != "" {
		record.ObjectClass = &objectClass
	}
	if len(rawPayload) > 0 {
		record.RawPayload = rawPayload
	}

	if err := s.store.RecordCrossing(ctx, record); err != nil {
		s.log.Error().
			Err(err).
			Str("camera_id", cameraID).
			Str("track_id", trackID).
			Str("direction", event.Direction).
			Msg("failed to record crossing")
		return fmt.Errorf("failed to record crossing: %w", err)
	}

	s.log.Info().
		Str("camera_id", cameraID).
		Str("track_id", trackID).
		Str("direction", event.Direction).
		Str("direction_label", record.DirectionLabel).
		Str("object_class", objectClass).
		Str("config_version", active.Version).
		Time("crossing_time", event.CrossingTime).
		Msg("recorded crossing")
	return nil
}

// EventInfo is the query projection for persisted crossing events.
type EventInfo struct {
	ID             int64     `json:"id"`
	CameraID       string    `json:"camera_id"`
	TrackID        string    `json:"track_id"`
	ConfigVersion  string    `json:"config_version"`
	Direction      string    `json:"direction"`
	DirectionLabel string    `json:"direction_label"`
	ObjectClass    *string   `json:"object_class,omitempty"`
	CrossingTime   time.Time `json:"crossing_time"`
}

func (s *CountingService) FindEvents(ctx context.Context, cameraID *string, from, to *string, limit, offset int) ([]EventInfo, error) {
	fromTime, toTime, err := parseTimeRange(from, to, time.RFC3339)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.store.ListCrossingEvents(ctx, cameraID, fromTime, toTime, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find crossing events: %w", err)
	}

	result := make([]EventInfo, 0, len(events))
	for _, e := range events {
		result = append(result, EventInfo{
			ID:             e.ID,
			CameraID:       e.CameraID,
			TrackID:        e.TrackID,
			ConfigVersion:  e.ConfigVersion,
			Direction:      e.Direction,
			DirectionLabel: e.DirectionLabel,
			ObjectClass:    e.ObjectClass,
			CrossingTime:   e.CrossingTime,
		})
	}
	return result, nil
}

// CountInfo is one daily per-direction, per-class total.
type CountInfo struct {
	CameraID    string `json:"camera_id"`
	Day         string `json:"day"`
	Direction   string `json:"direction"`
	ObjectClass string `json:"object_class"`
	Count       int64  `json:"count"`
}

func (s *CountingService) FindCounts(ctx context.Context, cameraID *string, from, to *string) ([]CountInfo, error) {
	fromTime, toTime, err := parseTimeRange(from, to, "2006-01-02")
	if err != nil {
		return nil, err
	}

	counts, err := s.store.ListDailyCounts(ctx, cameraID, fromTime, toTime)
	if err != nil {
		return nil, fmt.Errorf("failed to find daily counts: %w", err)
	}

	result := make([]CountInfo, 0, len(counts))
	for _, c := range counts {
		result = append(result, CountInfo{
			CameraID:    c.CameraID,
			Day:         c.Day.UTC().Format("2006-01-02"),
			Direction:   c.Direction,
			ObjectClass: c.ObjectClass,
			Count:       c.Count,
		})
	}
	return result, nil
}

func parseTimeRange(from, to *string, layout string) (*time.Time, *time.Time, error) {
	var fromTime, toTime *time.Time
	if from != nil && *from != "" {
		t, err := time.Parse(layout, *from)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		fromTime = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(layout, *to)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		toTime = &t
	}
	return fromTime, toTime, nil
}
