package model

import (
	"errors"
	"time"
)

// ErrAlertAlreadyOpen occurs when attempting to open a second Alert while
// one is already open (invariant #2: at most one open Alert).
var ErrAlertAlreadyOpen = errors.New("an alert is already open")

// ErrAlertSensorDuplicate occurs when attempting to add a sensor to an
// Alert it is already part of (invariant #3).
var ErrAlertSensorDuplicate = errors.New("sensor already part of this alert")

// Alert is an incident record: one active at a time (invariant #2).
type Alert struct {
	ID        int
	StartTime time.Time
	EndTime   *time.Time
	Silent    bool
	ArmID     *int // nil for pure sabotage while disarmed

	Sensors []*AlertSensor
}

// Open reports whether the alert is still active.
func (a *Alert) Open() bool {
	return a.EndTime == nil
}

// AddSensor appends a new AlertSensor snapshot, rejecting a duplicate
// (channel already present and still open) per invariant #3.
func (a *Alert) AddSensor(as *AlertSensor) error {
	for _, existing := range a.Sensors {
		if existing.Channel == as.Channel && existing.EndTime == nil {
			return ErrAlertSensorDuplicate
		}
	}
	a.Sensors = append(a.Sensors, as)
	return nil
}

// Close ends the alert at t, sealing any still-open AlertSensor rows with
// the same end time. It does not change Silent; SirenSilent combines the
// contributing sensors' silent flags.
func (a *Alert) Close(t time.Time) {
	a.EndTime = &t
	for _, s := range a.Sensors {
		if s.EndTime == nil {
			s.EndTime = &t
		}
	}
}

// AlertSensor is a per-sensor snapshot of its contribution to an Alert.
type AlertSensor struct {
	Channel     int
	Name        string
	Type        int
	StartTime   time.Time
	EndTime     *time.Time
	Delay       int
	Silent      *bool
	Suppression string // "period/threshold", e.g. "2/100"
}

// Open reports whether this per-sensor row is still contributing.
func (as *AlertSensor) Open() bool {
	return as.EndTime == nil
}

// SirenSilent computes the AND-of-silent-flags siren arbitration: a
// non-null-false flag from any sensor forces audible.
func SirenSilent(sensors []*AlertSensor, defaultSilent bool) bool {
	silent := true
	any := false
	for _, s := range sensors {
		any = true
		if s.Silent == nil {
			// inherits default; treat as the default for AND purposes
			if !defaultSilent {
				silent = false
			}
			continue
		}
		if !*s.Silent {
			return false
		}
	}
	if !any {
		return defaultSilent
	}
	return silent
}
