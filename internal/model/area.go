package model

// ArmState is the arm state of an area, or of the whole system once
// reconciled across areas.
type ArmState string

const (
	ArmAway  ArmState = "AWAY"
	ArmStay  ArmState = "STAY"
	ArmMixed ArmState = "MIXED"
	ArmDisarm ArmState = "DISARM"
)

// Area is a grouping of sensors with its own arm state.
type Area struct {
	ID      int
	Deleted bool
	Name    string
	State   ArmState
}

// GlobalArmState reconciles the per-area arm states into one global
// state: if every non-deleted area shares one state (DISARM included),
// that is the global state; otherwise MIXED. Deleted areas are skipped;
// areas are not filtered by whether they have sensors.
func GlobalArmState(areas []*Area) ArmState {
	var common ArmState
	seen := false
	for _, a := range areas {
		if a.Deleted {
			continue
		}
		if !seen {
			common = a.State
			seen = true
			continue
		}
		if a.State != common {
			return ArmMixed
		}
	}
	if !seen {
		return ArmDisarm
	}
	return common
}
