package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SensorRepo implements internal/sensor's StateRepo.
type SensorRepo struct {
	db *sql.DB
}

// SaveSensorState upserts the latest alert/error flags observed for a
// sensor channel.
func (r *SensorRepo) SaveSensorState(ctx context.Context, sensorID int, alert, errFlag bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sensor_state (sensor_id, alert, error, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sensor_id) DO UPDATE SET alert = excluded.alert, error = excluded.error, updated_at = excluded.updated_at
	`, sensorID, alert, errFlag, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("repo: save sensor state: %w", err)
	}
	return nil
}
