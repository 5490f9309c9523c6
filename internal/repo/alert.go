package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arpi-project/monitord/internal/model"
)

// AlertRepo implements internal/alert's Repo.
type AlertRepo struct {
	db *sql.DB
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// OpenAlert inserts a new Alert row and returns its ID.
func (r *AlertRepo) OpenAlert(ctx context.Context, armID *int, start time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO alert (arm_id, start_time) VALUES (?, ?)`,
		nullableInt(armID), start.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("repo: open alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("repo: open alert: last insert id: %w", err)
	}
	return int(id), nil
}

// AddAlertSensor inserts a per-sensor contribution row.
func (r *AlertRepo) AddAlertSensor(ctx context.Context, alertID int, as *model.AlertSensor) error {
	var silent any
	if as.Silent != nil {
		silent = *as.Silent
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alert_sensor (alert_id, channel, name, type, start_time, end_time, delay, silent, suppression)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, alertID, as.Channel, as.Name, as.Type, as.StartTime.UTC().Format(time.RFC3339Nano),
		nullableTime(as.EndTime), as.Delay, silent, as.Suppression)
	if err != nil {
		return fmt.Errorf("repo: add alert sensor: %w", err)
	}
	return nil
}

// CloseAlertSensor seals one still-open per-sensor row.
func (r *AlertRepo) CloseAlertSensor(ctx context.Context, alertID int, channel int, end time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alert_sensor SET end_time = ?
		WHERE alert_id = ? AND channel = ? AND end_time IS NULL
	`, end.UTC().Format(time.RFC3339Nano), alertID, channel)
	if err != nil {
		return fmt.Errorf("repo: close alert sensor: %w", err)
	}
	return nil
}

// CloseAlert seals the Alert row, records the closing Disarm link, and
// seals any still-open per-sensor rows at the same end time.
func (r *AlertRepo) CloseAlert(ctx context.Context, alertID int, end time.Time, disarmID *int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE alert SET end_time = ?, disarm_id = ? WHERE id = ?`,
		end.UTC().Format(time.RFC3339Nano), nullableInt(disarmID), alertID)
	if err != nil {
		return fmt.Errorf("repo: close alert: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE alert_sensor SET end_time = ?
		WHERE alert_id = ? AND end_time IS NULL
	`, end.UTC().Format(time.RFC3339Nano), alertID)
	if err != nil {
		return fmt.Errorf("repo: seal open alert sensors: %w", err)
	}
	return nil
}
