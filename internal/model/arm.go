package model

import "time"

// ArmType is the arm mode recorded on an Arm row.
type ArmType string

const (
	ArmTypeAway ArmType = "AWAY"
	ArmTypeStay ArmType = "STAY"
)

// Arm is an audit row: one is open from an arm command until a matching
// Disarm closes it. At most one is open at a time (invariant #1).
type Arm struct {
	ID   int
	Type ArmType
	Time time.Time

	UserID   *int
	KeypadID *int
}

// Disarm is an audit row closing an Arm, optionally linked to the Alert
// that preceded it.
type Disarm struct {
	ID      int
	Time    time.Time
	ArmID   int
	UserID  *int
	KeypadID *int
	AlertID *int
}
