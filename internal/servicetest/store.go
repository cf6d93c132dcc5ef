// Package servicetest provides an in-memory GateStore implementation shared
// by service and handler tests.
package servicetest

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gatecount-service/internal/domain/gate"
	"gatecount-service/internal/repository"
)

// Store implements service.GateStore in memory.
type Store struct {
	mu        sync.Mutex
	configs   []repository.GateConfigRecord
	crossings []repository.CrossingRecord
	counts    map[string]int64
}

func NewStore() *Store {
	return &Store{counts: make(map[string]int64)}
}

// Crossings returns a copy of all recorded crossing events.
func (s *Store) Crossings() []repository.CrossingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.CrossingRecord, len(s.crossings))
	copy(out, s.crossings)
	return out
}

// CountFor returns the accumulated daily count for one counter key.
// Day is formatted as 2006-01-02.
func (s *Store) CountFor(cameraID, day, direction, objectClass string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[countKey(cameraID, day, direction, objectClass)]
}

func countKey(cameraID, day, direction, objectClass string) string {
	return cameraID + "|" + day + "|" + direction + "|" + objectClass
}

func (s *Store) SaveDraftGateConfig(_ context.Context, cameraID string, cfg gate.GateConfig) (*repository.GateConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.configs[:0]
	for _, r := range s.configs {
		if !(r.CameraID == cameraID && r.Status == repository.StatusDraft) {
			kept = append(kept, r)
		}
	}
	s.configs = kept

	geometry, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	record := repository.GateConfigRecord{
		ID:        int64(len(s.configs) + 1),
		CameraID:  cameraID,
		Version:   uuid.NewString(),
		Mode:      cfg.Mode,
		Geometry:  geometry,
		Status:    repository.StatusDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.configs = append(s.configs, record)
	return &record, nil
}

func (s *Store) find(cameraID, status string) (*repository.GateConfigRecord, error) {
	for i := range s.configs {
		if s.configs[i].CameraID == cameraID && s.configs[i].Status == status {
			record := s.configs[i]
			return &record, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *Store) GetDraftGateConfig(_ context.Context, cameraID string) (*repository.GateConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(cameraID, repository.StatusDraft)
}

func (s *Store) GetGateConfig(_ context.Context, cameraID string) (*repository.GateConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, err := s.find(cameraID, repository.StatusDraft); err == nil {
		return record, nil
	}
	return s.find(cameraID, repository.StatusActive)
}

func (s *Store) GetActiveGateConfig(_ context.Context, cameraID string) (*repository.GateConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(cameraID, repository.StatusActive)
}

func (s *Store) ListActiveGateConfigs(_ context.Context) ([]repository.GateConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []repository.GateConfigRecord
	for _, r := range s.configs {
		if r.Status == repository.StatusActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *Store) ActivateGateConfig(_ context.Context, cameraID string) (*repository.GateConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var draft *repository.GateConfigRecord
	for i := range s.configs {
		if s.configs[i].CameraID == cameraID && s.configs[i].Status == repository.StatusDraft {
			draft = &s.configs[i]
			break
		}
	}
	if draft == nil {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range s.configs {
		if s.configs[i].CameraID == cameraID && s.configs[i].Status == repository.StatusActive {
			s.configs[i].Status = repository.StatusRetired
		}
	}
	draft.Status = repository.StatusActive
	draft.UpdatedAt = time.Now()
	record := *draft
	return &record, nil
}

func (s *Store) RecordCrossing(_ context.Context, record *repository.CrossingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = int64(len(s.crossings) + 1)
	s.crossings = append(s.crossings, *record)

	objectClass := ""
	if record.ObjectClass != nil {
		objectClass = *record.ObjectClass
	}
	day := record.CrossingTime.UTC().Format("2006-01-02")
	s.counts[countKey(record.CameraID, day, record.Direction, objectClass)]++
	return nil
}

func (s *Store) ListCrossingEvents(_ context.Context, cameraID *string, from, to *time.Time, limit, offset int) ([]repository.CrossingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []repository.CrossingRecord
	for _, r := range s.crossings {
		if cameraID != nil && r.CameraID != *cameraID {
			continue
		}
		if from != nil && r.CrossingTime.Before(*from) {
			continue
		}
		if to != nil && r.CrossingTime.After(*to) {
			continue
		}
		out = append(out, r)
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListDailyCounts(_ context.Context, cameraID *string, from, to *time.Time) ([]repository.DailyCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []repository.DailyCount
	for key, count := range s.counts {
		parts := strings.SplitN(key, "|", 4)
		if cameraID != nil && parts[0] != *cameraID {
			continue
		}
		day, err := time.Parse("2006-01-02", parts[1])
		if err != nil {
			continue
		}
		if from != nil && day.Before(*from) {
			continue
		}
		if to != nil && day.After(*to) {
			continue
		}
		out = append(out, repository.DailyCount{
			CameraID:    parts[0],
			Day:         day,
			Direction:   parts[2],
			ObjectClass: parts[3],
			Count:       count,
		})
	}
	return out, nil
}
