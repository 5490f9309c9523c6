package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arpi-project/monitord/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSensorRepoUpsertsState(t *testing.T) {
	s := newTestStore(t)
	sensors := s.Sensors()

	require.NoError(t, sensors.SaveSensorState(context.Background(), 1, true, false))
	require.NoError(t, sensors.SaveSensorState(context.Background(), 1, false, true))

	var alert, errFlag bool
	row := s.db.QueryRow(`SELECT alert, error FROM sensor_state WHERE sensor_id = 1`)
	require.NoError(t, row.Scan(&alert, &errFlag))
	require.False(t, alert)
	require.True(t, errFlag)
}

func TestAreaRepoArmAndDisarmRoundTrip(t *testing.T) {
	s := newTestStore(t)
	areas := s.Areas()
	ctx := context.Background()

	require.NoError(t, areas.SetAreaState(ctx, 1, model.ArmAway))

	userID := 7
	armID, err := areas.OpenArm(ctx, model.ArmTypeAway, time.Now(), &userID, nil)
	require.NoError(t, err)
	require.Greater(t, armID, 0)

	require.NoError(t, areas.CloseArm(ctx, armID, time.Now(), &userID, nil, nil))

	var state string
	require.NoError(t, s.db.QueryRow(`SELECT state FROM area_state WHERE area_id = 1`).Scan(&state))
	require.Equal(t, "AWAY", state)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM disarm WHERE arm_id = ?`, armID).Scan(&count))
	require.Equal(t, 1, count)
}

func TestAlertRepoLifecycle(t *testing.T) {
	s := newTestStore(t)
	alerts := s.Alerts()
	ctx := context.Background()

	alertID, err := alerts.OpenAlert(ctx, nil, time.Now())
	require.NoError(t, err)

	require.NoError(t, alerts.AddAlertSensor(ctx, alertID, &model.AlertSensor{
		Channel: 2, Name: "front door", StartTime: time.Now(),
	}))

	require.NoError(t, alerts.CloseAlertSensor(ctx, alertID, 2, time.Now()))
	require.NoError(t, alerts.CloseAlert(ctx, alertID, time.Now(), nil))

	var endTime *string
	require.NoError(t, s.db.QueryRow(`SELECT end_time FROM alert WHERE id = ?`, alertID).Scan(&endTime))
	require.NotNil(t, endTime)
}

func TestUserRepoBindAndListCards(t *testing.T) {
	s := newTestStore(t)
	users := s.Users()
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `INSERT INTO user (id, name, access_code_hash) VALUES (1, 'alice', 'x')`)
	require.NoError(t, err)

	require.NoError(t, users.BindCard(ctx, "1234567890", 1))

	cards, err := users.Cards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	require.Equal(t, 1, cards[0].OwnerID)
	require.True(t, cards[0].Enabled)

	fetched, err := users.Users(ctx)
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	require.Equal(t, "alice", fetched[0].Name)
}

func TestOptionRepoSetGetAndSection(t *testing.T) {
	s := newTestStore(t)
	opts := s.Options()
	ctx := context.Background()

	require.NoError(t, opts.Set(ctx, &model.Option{Section: "subscriptions", Name: "sms1", Value: []byte(`{"configured":true}`)}))
	require.NoError(t, opts.Set(ctx, &model.Option{Section: "subscriptions", Name: "sms2", Value: []byte(`{"configured":false}`)}))

	got, err := opts.Get(ctx, "subscriptions", "sms1")
	require.NoError(t, err)
	require.JSONEq(t, `{"configured":true}`, string(got.Value))

	missing, err := opts.Get(ctx, "subscriptions", "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, opts.Set(ctx, &model.Option{Section: "subscriptions", Name: "sms1", Value: []byte(`{"configured":false}`)}))
	got, err = opts.Get(ctx, "subscriptions", "sms1")
	require.NoError(t, err)
	require.JSONEq(t, `{"configured":false}`, string(got.Value))

	all, err := opts.Section(ctx, "subscriptions")
	require.NoError(t, err)
	require.Len(t, all, 2)
}
