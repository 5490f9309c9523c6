package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/ipc"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/statestore"
)

type fakeArmArea struct {
	armed    []model.ArmType
	disarmed int
	lastAlertID *int
}

func (f *fakeArmArea) Arm(_ context.Context, armType model.ArmType, _, _ *int) error {
	f.armed = append(f.armed, armType)
	return nil
}

func (f *fakeArmArea) Disarm(_ context.Context, _, _ *int, alertID *int) error {
	f.disarmed++
	f.lastAlertID = alertID
	return nil
}

type fakeAlertStopper struct {
	stopped   int
	currentID int
	hasCurrent bool
}

func (f *fakeAlertStopper) StopAll(_ context.Context, _ time.Time, _ *int) { f.stopped++ }
func (f *fakeAlertStopper) CurrentAlertID() (int, bool)                   { return f.currentID, f.hasCurrent }

func newTestCoordinator(t *testing.T, zones []*model.Zone, sensors []*model.Sensor) (*Coordinator, *fakeArmArea, *fakeAlertStopper, *statestore.Store, *bus.Bus) {
	t.Helper()
	b := bus.New(testLogger())
	state := statestore.New(b)
	state.SetMonitoring(statestore.Ready)
	areas := &fakeArmArea{}
	al := &fakeAlertStopper{}
	delays := NewDelayResolver(sensors, zones, &readyGlobal{})
	c, err := NewCoordinator(areas, al, state, delays, b, testLogger())
	require.NoError(t, err)
	return c, areas, al, state, b
}

type readyGlobal struct{}

func (readyGlobal) Global() model.ArmState { return model.ArmAway }

func TestArmWithZeroDelayGoesStraightToArmed(t *testing.T) {
	c, areas, _, state, _ := newTestCoordinator(t, nil, nil)
	require.NoError(t, c.Arm(context.Background(), model.ArmTypeAway, nil, nil))
	require.Equal(t, statestore.Armed, state.Monitoring())
	require.Equal(t, []model.ArmType{model.ArmTypeAway}, areas.armed)
}

func TestArmWithDelayEntersArmDelayThenArmed(t *testing.T) {
	delay := 1
	zone := &model.Zone{ID: 1, AwayArmDelay: &delay}
	sensor := &model.Sensor{ZoneID: 1, Enabled: true}
	c, _, _, state, _ := newTestCoordinator(t, []*model.Zone{zone}, []*model.Sensor{sensor})

	require.NoError(t, c.Arm(context.Background(), model.ArmTypeAway, nil, nil))
	require.Equal(t, statestore.ArmDelay, state.Monitoring())

	require.Eventually(t, func() bool {
		return state.Monitoring() == statestore.Armed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDisarmStopsTimerAndClosesAlert(t *testing.T) {
	delay := 10
	zone := &model.Zone{ID: 1, AwayArmDelay: &delay}
	sensor := &model.Sensor{ZoneID: 1, Enabled: true}
	c, areas, al, state, _ := newTestCoordinator(t, []*model.Zone{zone}, []*model.Sensor{sensor})

	require.NoError(t, c.Arm(context.Background(), model.ArmTypeAway, nil, nil))
	require.Equal(t, statestore.ArmDelay, state.Monitoring())

	al.hasCurrent = true
	al.currentID = 42

	require.NoError(t, c.Disarm(context.Background(), nil, nil, nil))
	require.Equal(t, statestore.Ready, state.Monitoring())
	require.Equal(t, 1, areas.disarmed)
	require.NotNil(t, areas.lastAlertID)
	require.Equal(t, 42, *areas.lastAlertID)
	require.Equal(t, 1, al.stopped)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, statestore.Ready, state.Monitoring(), "arm timer must not fire after disarm")
}

func TestBusActionsDriveArmAndDisarm(t *testing.T) {
	c, areas, _, state, b := newTestCoordinator(t, nil, nil)
	c.Start(context.Background())

	b.Publish("monitor_arm_stay", ipc.Request{Action: "monitor_arm_stay"})
	require.Eventually(t, func() bool { return state.Monitoring() == statestore.Armed }, time.Second, 5*time.Millisecond)
	require.Equal(t, []model.ArmType{model.ArmTypeStay}, areas.armed)

	b.Publish("monitor_disarm", ipc.Request{Action: "monitor_disarm"})
	require.Eventually(t, func() bool { return state.Monitoring() == statestore.Ready }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, areas.disarmed)
}

func TestBusArmActionRespectsUseDelayFalse(t *testing.T) {
	delay := 30
	zone := &model.Zone{ID: 1, AwayArmDelay: &delay}
	sensor := &model.Sensor{ZoneID: 1, Enabled: true}
	c, _, _, state, b := newTestCoordinator(t, []*model.Zone{zone}, []*model.Sensor{sensor})
	c.Start(context.Background())

	no := false
	b.Publish("monitor_arm_away", ipc.Request{Action: "monitor_arm_away", UseDelay: &no})
	require.Eventually(t, func() bool { return state.Monitoring() == statestore.Armed }, time.Second, 5*time.Millisecond)
}
