package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arpi-project/monitord/internal/model"
)

// AreaRepo implements internal/area's Repo.
type AreaRepo struct {
	db *sql.DB
}

// SetAreaState upserts the current arm state of one area.
func (r *AreaRepo) SetAreaState(ctx context.Context, areaID int, state model.ArmState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO area_state (area_id, state) VALUES (?, ?)
		ON CONFLICT(area_id) DO UPDATE SET state = excluded.state
	`, areaID, string(state))
	if err != nil {
		return fmt.Errorf("repo: set area state: %w", err)
	}
	return nil
}

// OpenArm inserts a new Arm audit row and returns its ID.
func (r *AreaRepo) OpenArm(ctx context.Context, armType model.ArmType, t time.Time, userID, keypadID *int) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO arm (type, time, user_id, keypad_id) VALUES (?, ?, ?, ?)
	`, string(armType), t.UTC().Format(time.RFC3339Nano), nullableInt(userID), nullableInt(keypadID))
	if err != nil {
		return 0, fmt.Errorf("repo: open arm: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("repo: open arm: last insert id: %w", err)
	}
	return int(id), nil
}

// CloseArm inserts the closing Disarm audit row for armID.
func (r *AreaRepo) CloseArm(ctx context.Context, armID int, t time.Time, userID, keypadID *int, alertID *int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO disarm (arm_id, time, user_id, keypad_id, alert_id) VALUES (?, ?, ?, ?, ?)
	`, armID, t.UTC().Format(time.RFC3339Nano), nullableInt(userID), nullableInt(keypadID), nullableInt(alertID))
	if err != nil {
		return fmt.Errorf("repo: close arm: %w", err)
	}
	return nil
}
