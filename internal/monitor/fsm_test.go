package monitor

import (
	"testing"

	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/statestore"
	"github.com/stretchr/testify/require"
)

func TestStartupToReadyOnConfigLoadOK(t *testing.T) {
	require.Equal(t, statestore.Ready, Next(statestore.Startup, EventConfigLoadOK))
}

func TestReadyToArmDelayOnArmAway(t *testing.T) {
	require.Equal(t, statestore.ArmDelay, Next(statestore.Ready, EventArmAway))
}

func TestArmDelayToArmedOnTimerExpiry(t *testing.T) {
	require.Equal(t, statestore.Armed, Next(statestore.ArmDelay, EventArmTimerExpired))
}

func TestArmedToSabotageOnSabotageAlert(t *testing.T) {
	require.Equal(t, statestore.Sabotage, Next(statestore.Armed, EventSabotageAlert))
}

func TestArmedToAlertDelayOnDelayedAlert(t *testing.T) {
	require.Equal(t, statestore.AlertDelay, Next(statestore.Armed, EventDelayedAlert))
}

func TestArmedToAlertOnImmediateAlert(t *testing.T) {
	require.Equal(t, statestore.Alert, Next(statestore.Armed, EventImmediateAlert))
}

func TestAlertDelayToAlertOnDelayElapsed(t *testing.T) {
	require.Equal(t, statestore.Alert, Next(statestore.AlertDelay, EventAlertDelayElapsed))
}

func TestAnyArmedStateToReadyOnDisarm(t *testing.T) {
	for _, s := range []statestore.MonitoringState{
		statestore.AlertDelay, statestore.Alert, statestore.Sabotage,
		statestore.Armed, statestore.ArmDelay,
	} {
		require.Equal(t, statestore.Ready, Next(s, EventDisarm), "from %s", s)
	}
}

func TestDisarmIsNoOpFromReady(t *testing.T) {
	require.Equal(t, statestore.Ready, Next(statestore.Ready, EventDisarm))
}

func TestUpdateConfigAlwaysTransitions(t *testing.T) {
	require.Equal(t, statestore.UpdatingConfig, Next(statestore.Error, EventUpdateConfig))
}

func TestSelectAlertTypeSabotageDominates(t *testing.T) {
	delay := 10
	zone := &model.Zone{DisarmedDelay: &delay}
	require.Equal(t, AlertSabotage, SelectAlertType(zone, model.ArmAway))
}

func TestSelectAlertTypeByAreaArmState(t *testing.T) {
	zone := &model.Zone{}
	require.Equal(t, AlertAway, SelectAlertType(zone, model.ArmAway))
	require.Equal(t, AlertStay, SelectAlertType(zone, model.ArmStay))
	require.Equal(t, AlertNone, SelectAlertType(zone, model.ArmDisarm))
}

func TestSelectDelayUsesArmDelayFieldsInArmDelay(t *testing.T) {
	away, stay := 5, 7
	zone := &model.Zone{AwayArmDelay: &away, StayArmDelay: &stay}
	require.Equal(t, &away, SelectDelay(zone, AlertAway, statestore.ArmDelay))
	require.Equal(t, &stay, SelectDelay(zone, AlertStay, statestore.ArmDelay))
}

func TestSelectDelayUsesAlertDelayFieldsInArmed(t *testing.T) {
	away := 3
	zone := &model.Zone{AwayAlertDelay: &away}
	require.Equal(t, &away, SelectDelay(zone, AlertAway, statestore.Armed))
	require.Nil(t, SelectDelay(zone, AlertStay, statestore.Armed))
}

func TestSelectDelayUsesDisarmedDelayInReady(t *testing.T) {
	disarmed := 2
	zone := &model.Zone{DisarmedDelay: &disarmed}
	require.Equal(t, &disarmed, SelectDelay(zone, AlertSabotage, statestore.Ready))
	require.Nil(t, SelectDelay(zone, AlertAway, statestore.Ready))
}

func TestSelectDelayNilAlertTypeNeverAlerts(t *testing.T) {
	zone := &model.Zone{}
	require.Nil(t, SelectDelay(zone, AlertNone, statestore.Armed))
}
