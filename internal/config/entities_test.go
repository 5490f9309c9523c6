package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/outputsign"
)

const validEntitiesYAML = `
areas:
  - id: 1
    name: Home
zones:
  - id: 1
    name: Ground floor
    away_alert_delay: 30
sensors:
  - id: 1
    name: Front door
    channel: 0
    channel_type: NO
    contact_type: door
    eol_count: single
    enabled: true
    zone_id: 1
    area_id: 1
    type_id: 1
keypads:
  - id: 1
    enabled: true
    type: WIEGAND
users:
  - id: 1
    name: Alice
    access_code_hash: hash1
outputs:
  - channel: 2
    enabled: true
    trigger_kind: area
    area_id: 1
    delay_seconds: 5
    duration_seconds: -1
`

func TestLoadEntitiesAndConvert(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/entities.yaml", []byte(validEntitiesYAML), 0o644))

	ents, err := LoadEntities(fs, "/entities.yaml")
	require.NoError(t, err)

	areas := ents.ToAreas()
	require.Len(t, areas, 1)
	require.Equal(t, model.ArmDisarm, areas[0].State)

	zones := ents.ToZones()
	require.Len(t, zones, 1)
	require.NotNil(t, zones[0].AwayAlertDelay)
	require.Equal(t, 30, *zones[0].AwayAlertDelay)

	sensors := ents.ToSensors()
	require.Len(t, sensors, 1)
	require.Equal(t, "Front door", sensors[0].Name)

	keypads := ents.ToKeypads()
	require.Len(t, keypads, 1)
	require.Equal(t, model.KeypadWiegand, keypads[0].Type)

	users := ents.ToUsers()
	require.Len(t, users, 1)
	require.Equal(t, "Alice", users[0].Name)
	require.Nil(t, users[0].PINHash)

	outputs := ents.ToOutputs()
	require.Len(t, outputs, 1)
	require.Equal(t, outputsign.TriggerArea, outputs[0].Key.Kind)
	require.Equal(t, outputsign.DurationUntilCancelled, int(outputs[0].Duration))
}

func TestLoadEntitiesRejectsUnknownFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/entities.yaml", []byte("areas:\n  - id: 1\n    bogus: true\n"), 0o644))

	_, err := LoadEntities(fs, "/entities.yaml")
	require.Error(t, err)
}
