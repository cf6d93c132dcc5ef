package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"gatecount-service/internal/domain/gate"
	"gatecount-service/internal/repository"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrNoActiveGate = errors.New("no active gate config")
)

// GateStore is the persistence surface the services depend on, implemented
// by repository.GateRepository.
type GateStore interface {
	SaveDraftGateConfig(ctx context.Context, cameraID string, cfg gate.GateConfig) (*repository.GateConfigRecord, error)
	GetDraftGateConfig(ctx context.Context, cameraID string) (*repository.GateConfigRecord, error)
	GetGateConfig(ctx context.Context, cameraID string) (*repository.GateConfigRecord, error)
	GetActiveGateConfig(ctx context.Context, cameraID string) (*repository.GateConfigRecord, error)
	ListActiveGateConfigs(ctx context.Context) ([]repository.GateConfigRecord, error)
	ActivateGateConfig(ctx context.Context, cameraID string) (*repository.GateConfigRecord, error)
	RecordCrossing(ctx context.Context, record *repository.CrossingRecord) error
	ListCrossingEvents(ctx context.Context, cameraID *string, from, to *time.Time, limit, offset int) ([]repository.CrossingRecord, error)
	ListDailyCounts(ctx context.Context, cameraID *string, from, to *time.Time) ([]repository.DailyCount, error)
}

// ActiveGate is the versioned handle for a camera's live counting config.
// Handles are immutable once published: a reconfiguration publishes a new
// handle, it never mutates an existing one. Trajectories pin the handle they
// started under, so an in-flight track is never evaluated against a
// half-old/half-new config.
type ActiveGate struct {
	CameraID string
	Version  string
	Config   gate.GateConfig
}

// GateService owns gate-config drafting, activation, and the in-memory
// registry of active configs per camera.
type GateService struct {
	store GateStore
	log   zerolog.Logger

	mu     sync.RWMutex
	active map[string]*ActiveGate
}

func NewGateService(store GateStore, log zerolog.Logger) *GateService {
	return &GateService{
		store:  store,
		log:    log,
		active: make(map[string]*ActiveGate),
	}
}

// LoadActiveConfigs seeds the registry from persisted active configs.
// Called once at startup.
func (s *GateService) LoadActiveConfigs(ctx context.Context) error {
	records, err := s.store.ListActiveGateConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active gate configs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		record := &records[i]
		cfg, err := record.GateConfig()
		if err != nil {
			s.log.Error().
				Err(err).
				Str("camera_id", record.CameraID).
				Str("version", record.Version).
				Msg("skipping undecodable active gate config")
			continue
		}
		s.active[record.CameraID] = &ActiveGate{
			CameraID: record.CameraID,
			Version:  record.Version,
			Config:   cfg,
		}
	}
	s.log.Info().Int("cameras", len(s.active)).Msg("loaded active gate configs")
	return nil
}

// SaveDraft stores a draft config for the camera. Drafts may be incomplete
// (segments still unset while the operator is drawing); only the mode must
// be recognisable.
func (s *GateService) SaveDraft(ctx context.Context, cameraID string, cfg gate.GateConfig) (*repository.GateConfigRecord, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("%w: camera_id is required", ErrInvalidInput)
	}
	if cfg.Mode != gate.ModeLine && cfg.Mode != gate.ModeGate {
		return nil, fmt.Errorf("%w: mode must be %q or %q", ErrInvalidInput, gate.ModeLine, gate.ModeGate)
	}

	record, err := s.store.SaveDraftGateConfig(ctx, cameraID, cfg)
	if err != nil {
		s.log.Error().Err(err).Str("camera_id", cameraID).Msg("failed to save gate config draft")
		return nil, fmt.Errorf("failed to save gate config draft: %w", err)
	}

	s.log.Info().
		Str("camera_id", cameraID).
		Str("version", record.Version).
		Str("mode", cfg.Mode).
		Msg("saved gate config draft")
	return record, nil
}

// GetConfig returns the camera's draft if present, otherwise its active config.
func (s *GateService) GetConfig(ctx context.Context, cameraID string) (*repository.GateConfigRecord, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("%w: camera_id is required", ErrInvalidInput)
	}
	record, err := s.store.GetGateConfig(ctx, cameraID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no gate config for camera %s", ErrNotFound, cameraID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gate config: %w", err)
	}
	return record, nil
}

// Activate validates the camera's draft, promotes it to active in storage,
// and publishes the new handle to the registry. The registry swap is the
// atomic reconfiguration point: trajectories starting after it resolve the
// new config, trajectories already in flight keep their pinned handle.
func (s *GateService) Activate(ctx context.Context, cameraID string) (*ActiveGate, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("%w: camera_id is required", ErrInvalidInput)
	}

	draft, err := s.store.GetDraftGateConfig(ctx, cameraID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no draft gate config for camera %s", ErrNotFound, cameraID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft gate config: %w", err)
	}

	cfg, err := draft.GateConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	record, err := s.store.ActivateGateConfig(ctx, cameraID)
	if err != nil {
		s.log.Error().Err(err).Str("camera_id", cameraID).Msg("failed to activate gate config")
		return nil, fmt.Errorf("failed to activate gate config: %w", err)
	}

	handle := &ActiveGate{
		CameraID: cameraID,
		Version:  record.Version,
		Config:   cfg,
	}

	s.mu.Lock()
	s.active[cameraID] = handle
	s.mu.Unlock()

	s.log.Info().
		Str("camera_id", cameraID).
		Str("version", handle.Version).
		Str("mode", cfg.Mode).
		Msg("activated gate config")
	return handle, nil
}

// ResolveActive returns the camera's current active config handle.
func (s *GateService) ResolveActive(cameraID string) (*ActiveGate, error) {
	s.mu.RLock()
	handle, ok := s.active[cameraID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: camera %s", ErrNoActiveGate, cameraID)
	}
	return handle, nil
}
