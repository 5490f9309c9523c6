package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const validYAML = `
board:
  variant: v3
  use_simulator: false
sample_rate:
  hz: 10
  measurement_cycles: 5
  measurement_time: 1s
database_dsn: /var/lib/monitord/state.db
entities_path: /etc/monitord/entities.yaml
ipc:
  socket_path: /run/monitord.sock
  permission: 384
  username: monitord
  groupname: monitord
gsm:
  port: /dev/ttyUSB0
  baud: 9600
  sms1: "+15550001"
smtp:
  addr: smtp.example.com:587
  from: alarm@example.com
mqtt:
  enabled: false
websocket:
  enabled: false
secret:
  path: /etc/monitord/secret
`

func TestLoadValidConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/monitord.yaml", []byte(validYAML), 0o644))

	cfg, err := Load(fs, "/etc/monitord.yaml")
	require.NoError(t, err)
	require.Equal(t, "v3", cfg.Board.Variant)
	require.Equal(t, "/run/monitord.sock", cfg.IPC.SocketPath)
	require.Equal(t, 10.0, cfg.SampleRate.HZ)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	bad := validYAML + "\nbogus_field: true\n"
	require.NoError(t, afero.WriteFile(fs, "/etc/monitord.yaml", []byte(bad), 0o644))

	_, err := Load(fs, "/etc/monitord.yaml")
	require.Error(t, err)
}

func TestLoadRejectsInvalidBoardVariant(t *testing.T) {
	fs := afero.NewMemMapFs()
	bad := `
board:
  variant: v99
database_dsn: /var/lib/monitord/state.db
ipc:
  socket_path: /run/monitord.sock
sample_rate:
  hz: 10
`
	require.NoError(t, afero.WriteFile(fs, "/etc/monitord.yaml", []byte(bad), 0o644))

	_, err := Load(fs, "/etc/monitord.yaml")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Load(fs, "/nope.yaml")
	require.Error(t, err)
}
