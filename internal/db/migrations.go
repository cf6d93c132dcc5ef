package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS gate_configs (
		id          BIGSERIAL PRIMARY KEY,
		camera_id   TEXT NOT NULL,
		version     TEXT NOT NULL,
		mode        TEXT NOT NULL,
		geometry    JSONB NOT NULL,
		status      TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_gate_configs_version ON gate_configs(version);`,
	`CREATE INDEX IF NOT EXISTS idx_gate_configs_camera_status ON gate_configs(camera_id, status);`,
	`CREATE TABLE IF NOT EXISTS crossing_events (
		id              BIGSERIAL PRIMARY KEY,
		camera_id       TEXT NOT NULL,
		track_id        TEXT NOT NULL,
		config_version  TEXT NOT NULL,
		direction       TEXT NOT NULL,
		direction_label TEXT NOT NULL,
		object_class    TEXT,
		crossing_time   TIMESTAMPTZ NOT NULL,
		raw_payload     JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_crossing_events_camera_id ON crossing_events(camera_id);`,
	`CREATE INDEX IF NOT EXISTS idx_crossing_events_crossing_time ON crossing_events(crossing_time);`,
	`CREATE TABLE IF NOT EXISTS daily_counts (
		camera_id    TEXT NOT NULL,
		day          DATE NOT NULL,
		direction    TEXT NOT NULL,
		object_class TEXT NOT NULL,
		count        BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (camera_id, day, direction, object_class)
	);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
