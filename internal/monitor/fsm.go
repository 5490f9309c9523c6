// Package monitor implements the monitoring state machine: transition
// rules over statestore.MonitoringState plus the per-sensor alert-type
// and delay selection the alert controller queries on every qualifying
// trigger.
package monitor

import (
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/statestore"
)

// AlertType names which delay profile an alert uses.
type AlertType int

const (
	AlertNone AlertType = iota
	AlertSabotage
	AlertAway
	AlertStay
)

// Event is a state-machine input. Sensor-driven events carry the
// qualifying AlertType so the caller can react without a second lookup.
type Event int

const (
	EventConfigLoadOK Event = iota
	EventConfigLoadFailed
	EventArmAway
	EventArmStay
	EventArmTimerExpired
	EventSabotageAlert
	EventDelayedAlert
	EventImmediateAlert
	EventAlertDelayElapsed
	EventDisarm
	EventUpdateConfig
)

// Next computes the transition table of the monitoring state machine.
// All transitions not named here are no-ops (current is returned
// unchanged).
func Next(current statestore.MonitoringState, ev Event) statestore.MonitoringState {
	switch ev {
	case EventUpdateConfig:
		return statestore.UpdatingConfig

	case EventConfigLoadOK:
		if current == statestore.Startup || current == statestore.UpdatingConfig {
			return statestore.Ready
		}
		return current

	case EventConfigLoadFailed:
		if current == statestore.Startup || current == statestore.Ready || current == statestore.UpdatingConfig {
			return statestore.InvalidConfig
		}
		return current

	case EventArmAway, EventArmStay:
		if current == statestore.Ready {
			return statestore.ArmDelay // caller downgrades to Armed if delay is 0/null
		}
		return current

	case EventArmTimerExpired:
		if current == statestore.ArmDelay {
			return statestore.Armed
		}
		return current

	case EventSabotageAlert:
		switch current {
		case statestore.ArmDelay, statestore.Armed, statestore.Ready:
			return statestore.Sabotage
		}
		return current

	case EventDelayedAlert:
		if current == statestore.Armed {
			return statestore.AlertDelay
		}
		return current

	case EventImmediateAlert:
		if current == statestore.Armed {
			return statestore.Alert
		}
		return current

	case EventAlertDelayElapsed:
		if current == statestore.AlertDelay {
			return statestore.Alert
		}
		return current

	case EventDisarm:
		switch current {
		case statestore.AlertDelay, statestore.Alert, statestore.Sabotage, statestore.Armed, statestore.ArmDelay:
			return statestore.Ready
		}
		return current
	}

	return current
}

// SelectAlertType picks the alert type a sensor qualifies for given its
// zone and the arm state of its area, per spec §4.2's "sabotage
// dominates, otherwise AWAY/STAY by area arm state" rule.
func SelectAlertType(zone *model.Zone, areaState model.ArmState) AlertType {
	if zone.Sabotage() {
		return AlertSabotage
	}
	switch areaState {
	case model.ArmAway:
		return AlertAway
	case model.ArmStay:
		return AlertStay
	default:
		return AlertNone
	}
}

// SelectDelay mirrors alert-type selection to pick the delay (seconds) a
// sensor uses in the given monitoring state. A nil result means the
// sensor does not alert in that state.
func SelectDelay(zone *model.Zone, alertType AlertType, current statestore.MonitoringState) *int {
	switch current {
	case statestore.ArmDelay:
		if alertType == AlertAway {
			return zone.AwayArmDelay
		}
		if alertType == AlertStay {
			return zone.StayArmDelay
		}
		return nil

	case statestore.Armed, statestore.AlertDelay:
		if alertType == AlertAway {
			return zone.AwayAlertDelay
		}
		if alertType == AlertStay {
			return zone.StayAlertDelay
		}
		return nil

	case statestore.Ready:
		if alertType == AlertSabotage {
			return zone.DisarmedDelay
		}
		return nil

	default:
		return nil
	}
}
