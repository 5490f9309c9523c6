package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/arpi-project/monitord/internal/model"
)

// UserRepo implements internal/keypad's UserRepo.
type UserRepo struct {
	db *sql.DB
}

// Users returns every non-deleted user.
func (r *UserRepo) Users(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, access_code_hash, pin_hash, card_registration_expiry
		FROM user WHERE deleted = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("repo: query users: %w", err)
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		var u model.User
		var pinHash, expiry sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &u.AccessCodeHash, &pinHash, &expiry); err != nil {
			return nil, fmt.Errorf("repo: scan user: %w", err)
		}
		if pinHash.Valid {
			v := pinHash.String
			u.PINHash = &v
		}
		if expiry.Valid {
			t, err := time.Parse(time.RFC3339Nano, expiry.String)
			if err != nil {
				return nil, fmt.Errorf("repo: parse card_registration_expiry: %w", err)
			}
			u.CardRegistrationExpiry = &t
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// UpsertUser inserts or updates a user's identity and access-code hash
// from the bootstrap entity topology. Card registration state and card
// bindings are never touched here since those are purely runtime.
func (r *UserRepo) UpsertUser(ctx context.Context, u *model.User) error {
	var pinHash any
	if u.PINHash != nil {
		pinHash = *u.PINHash
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user (id, name, access_code_hash, pin_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			access_code_hash = excluded.access_code_hash,
			pin_hash = excluded.pin_hash
	`, u.ID, u.Name, u.AccessCodeHash, pinHash)
	if err != nil {
		return fmt.Errorf("repo: upsert user: %w", err)
	}
	return nil
}

// Cards returns every card.
func (r *UserRepo) Cards(ctx context.Context) ([]*model.Card, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, deleted, enabled, owner_id, card_number_hash FROM card
	`)
	if err != nil {
		return nil, fmt.Errorf("repo: query cards: %w", err)
	}
	defer rows.Close()

	var out []*model.Card
	for rows.Next() {
		var c model.Card
		if err := rows.Scan(&c.ID, &c.Deleted, &c.Enabled, &c.OwnerID, &c.CardNumberHash); err != nil {
			return nil, fmt.Errorf("repo: scan card: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// BindCard hashes cardNumber and inserts a new enabled Card owned by
// userID.
func (r *UserRepo) BindCard(ctx context.Context, cardNumber string, userID int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(cardNumber), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("repo: hash card number: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO card (enabled, owner_id, card_number_hash) VALUES (1, ?, ?)
	`, userID, string(hash))
	if err != nil {
		return fmt.Errorf("repo: bind card: %w", err)
	}
	return nil
}

// ClearCardRegistration closes userID's enrollment window.
func (r *UserRepo) ClearCardRegistration(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user SET card_registration_expiry = NULL WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("repo: clear card registration: %w", err)
	}
	return nil
}
