package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"gatecount-service/internal/domain/gate"
)

// Gate config lifecycle states. A draft may be incomplete; only validated
// configs become active. Activation retires the previous active config so
// exactly one config is active per camera.
const (
	StatusDraft   = "draft"
	StatusActive  = "active"
	StatusRetired = "retired"
)

type GateRepository struct {
	db *gorm.DB
}

func NewGateRepository(db *gorm.DB) *GateRepository {
	return &GateRepository{db: db}
}

type GateConfigRecord struct {
	ID        int64          `gorm:"primaryKey"`
	CameraID  string         `gorm:"not null"`
	Version   string         `gorm:"not null;uniqueIndex"`
	Mode      string         `gorm:"not null"`
	Geometry  datatypes.JSON `gorm:"type:jsonb"`
	Status    string         `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GateConfigRecord) TableName() string {
	return "gate_configs"
}

// GateConfig decodes the persisted geometry record back into the domain
// config. Persisting and reloading preserves point coordinates and labels
// exactly.
func (r *GateConfigRecord) GateConfig() (gate.GateConfig, error) {
	var cfg gate.GateConfig
	if err := json.Unmarshal(r.Geometry, &cfg); err != nil {
		return gate.GateConfig{}, fmt.Errorf("failed to decode gate config geometry: %w", err)
	}
	return cfg, nil
}

type CrossingRecord struct {
	ID             int64   `gorm:"primaryKey"`
	CameraID       string  `gorm:"not null"`
	TrackID        string  `gorm:"not null"`
	ConfigVersion  string  `gorm:"not null"`
	Direction      string  `gorm:"not null"`
	DirectionLabel string  `gorm:"not null"`
	ObjectClass    *string
	CrossingTime   time.Time              `gorm:"not null"`
	RawPayload     map[string]interface{} `gorm:"type:jsonb"`
	CreatedAt      time.Time
}

func (CrossingRecord) TableName() string {
	return "crossing_events"
}

type DailyCount struct {
	CameraID    string    `gorm:"primaryKey"`
	Day         time.Time `gorm:"primaryKey;type:date"`
	Direction   string    `gorm:"primaryKey"`
	ObjectClass string    `gorm:"primaryKey"`
	Count       int64     `gorm:"not null"`
}

func (DailyCount) TableName() string {
	return "daily_counts"
}

// SaveDraftGateConfig stores cfg as the camera's draft, replacing any prior
// draft. Drafts are allowed to be incomplete; validation happens at
// activation. Each save gets a fresh version identifier.
func (r *GateRepository) SaveDraftGateConfig(ctx context.Context, cameraID string, cfg gate.GateConfig) (*GateConfigRecord, error) {
	geometry, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gate config: %w", err)
	}

	record := &GateConfigRecord{
		CameraID:  cameraID,
		Version:   uuid.NewString(),
		Mode:      cfg.Mode,
		Geometry:  geometry,
		Status:    StatusDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("camera_id = ? AND status = ?", cameraID, StatusDraft).
			Delete(&GateConfigRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetDraftGateConfig returns the camera's current draft, if any.
func (r *GateRepository) GetDraftGateConfig(ctx context.Context, cameraID string) (*GateConfigRecord, error) {
	var record GateConfigRecord
	err := r.db.WithContext(ctx).
		Where("camera_id = ? AND status = ?", cameraID, StatusDraft).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetGateConfig returns the camera's draft if one exists, otherwise its
// active config. Used by the configuration UI.
func (r *GateRepository) GetGateConfig(ctx context.Context, cameraID string) (*GateConfigRecord, error) {
	var record GateConfigRecord
	err := r.db.WithContext(ctx).
		Where("camera_id = ? AND status = ?", cameraID, StatusDraft).
		First(&record).Error
	if err == nil {
		return &record, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	return r.GetActiveGateConfig(ctx, cameraID)
}

func (r *GateRepository) GetActiveGateConfig(ctx context.Context, cameraID string) (*GateConfigRecord, error) {
	var record GateConfigRecord
	err := r.db.WithContext(ctx).
		Where("camera_id = ? AND status = ?", cameraID, StatusActive).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListActiveGateConfigs returns the active config for every camera. Used to
// seed the in-memory active-config registry at startup.
func (r *GateRepository) ListActiveGateConfigs(ctx context.Context) ([]GateConfigRecord, error) {
	var records []GateConfigRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusActive).
		Find(&records).Error
	return records, err
}

// ActivateGateConfig promotes the camera's draft to active and retires the
// previously active config, in one transaction.
func (r *GateRepository) ActivateGateConfig(ctx context.Context, cameraID string) (*GateConfigRecord, error) {
	var draft GateConfigRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("camera_id = ? AND status = ?", cameraID, StatusDraft).
			First(&draft).Error; err != nil {
			return err
		}
		if err := tx.Model(&GateConfigRecord{}).
			Where("camera_id = ? AND status = ?", cameraID, StatusActive).
			Updates(map[string]interface{}{"status": StatusRetired, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		draft.Status = StatusActive
		draft.UpdatedAt = time.Now()
		return tx.Save(&draft).Error
	})
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// RecordCrossing persists a crossing event and increments the matching daily
// total in one transaction. The count upsert is a plain increment, so events
// from concurrently processed trajectories aggregate commutatively in any
// arrival order.
func (r *GateRepository) RecordCrossing(ctx context.Context, record *CrossingRecord) error {
	objectClass := ""
	if record.ObjectClass != nil {
		objectClass = *record.ObjectClass
	}
	day := record.CrossingTime.UTC().Truncate(24 * time.Hour)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return tx.Exec(
			`INSERT INTO daily_counts (camera_id, day, direction, object_class, count)
			 VALUES (?, ?, ?, ?, 1)
			 ON CONFLICT (camera_id, day, direction, object_class)
			 DO UPDATE SET count = daily_counts.count + 1`,
			record.CameraID, day, record.Direction, objectClass,
		).Error
	})
}

func (r *GateRepository) ListCrossingEvents(ctx context.Context, cameraID *string, from, to *time.Time, limit, offset int) ([]CrossingRecord, error) {
	query := r.db.WithContext(ctx).Model(&CrossingRecord{})

	if cameraID != nil {
		query = query.Where("camera_id = ?", *cameraID)
	}
	if from != nil {
		query = query.Where("crossing_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("crossing_time <= ?", *to)
	}

	query = query.Order("crossing_time DESC")

	if limit > 0 {
		if limit > 100 {
			limit = 100
		}
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var events []CrossingRecord
	err := query.Find(&events).Error
	return events, err
}

func (r *GateRepository) ListDailyCounts(ctx context.Context, cameraID *string, from, to *time.Time) ([]DailyCount, error) {
	query := r.db.WithContext(ctx).Model(&DailyCount{})

	if cameraID != nil {
		query = query.Where("camera_id = ?", *cameraID)
	}
	if from != nil {
		query = query.Where("day >= ?", *from)
	}
	if to != nil {
		query = query.Where("day <= ?", *to)
	}

	var counts []DailyCount
	err := query.Order("day DESC").Find(&counts).Error
	return counts, err
}
