package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/arpi-project/monitord/internal/model"
)

// OptionRepo persists the keyed (section, name) -> JSON configuration
// blobs described by model.Option: dyndns, SSH, MQTT, SMTP, GSM,
// subscriptions, syren and sensitivity settings.
type OptionRepo struct {
	db *sql.DB
}

// Get returns the option at (section, name), or nil if unset.
func (r *OptionRepo) Get(ctx context.Context, section, name string) (*model.Option, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT value FROM option WHERE section = ? AND name = ?
	`, section, name)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repo: get option %s/%s: %w", section, name, err)
	}
	return &model.Option{Section: section, Name: name, Value: json.RawMessage(raw)}, nil
}

// Section returns every option stored under section.
func (r *OptionRepo) Section(ctx context.Context, section string) ([]*model.Option, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, value FROM option WHERE section = ?
	`, section)
	if err != nil {
		return nil, fmt.Errorf("repo: list options %s: %w", section, err)
	}
	defer rows.Close()

	var out []*model.Option
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("repo: scan option: %w", err)
		}
		out = append(out, &model.Option{Section: section, Name: name, Value: json.RawMessage(raw)})
	}
	return out, rows.Err()
}

// Set upserts an option's JSON value.
func (r *OptionRepo) Set(ctx context.Context, o *model.Option) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO option (section, name, value) VALUES (?, ?, ?)
		ON CONFLICT(section, name) DO UPDATE SET value = excluded.value
	`, o.Section, o.Name, string(o.Value))
	if err != nil {
		return fmt.Errorf("repo: set option %s/%s: %w", o.Section, o.Name, err)
	}
	return nil
}
