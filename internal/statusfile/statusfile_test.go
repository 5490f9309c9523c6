package statusfile

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/arpi-project/monitord/internal/statestore"
)

func TestWriteThenRead(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(fsys, "/var/lib/monitord/status.json", NoLock{})

	snap := statestore.Snapshot{Monitoring: statestore.Armed, Power: statestore.PowerOK}
	require.NoError(t, store.Write(snap))

	got, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, snap, got)
}

func TestReadMissingFileReturnsZeroValue(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(fsys, "/var/lib/monitord/status.json", NoLock{})

	got, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, statestore.Snapshot{}, got)
}
