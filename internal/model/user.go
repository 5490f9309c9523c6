package model

import "time"

// User is an identity record holding a salted+hashed access code and an
// optional four-digit PIN hash.
type User struct {
	ID      int
	Deleted bool

	Name string

	AccessCodeHash string // bcrypt hash of the access code
	PINHash        *string // bcrypt hash of the 4-digit PIN, optional

	CardRegistrationExpiry *time.Time // one-shot: future value opens the enrollment window
}

// RegistrationOpen reports whether this user still has an unconsumed
// card-registration window open at t.
func (u *User) RegistrationOpen(t time.Time) bool {
	return u.CardRegistrationExpiry != nil && u.CardRegistrationExpiry.After(t)
}

// Card carries a hashed card number bound to an owning User.
type Card struct {
	ID      int
	Deleted bool

	CardNumberHash string
	Enabled        bool
	OwnerID        int
}
