package secretfile

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/arpi-project/monitord/internal/statusfile"
)

func TestEnsureGeneratesWhenMissing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	secret, err := Ensure(fsys, "/etc/monitord/secrets.env", statusfile.NoLock{})
	require.NoError(t, err)
	require.Len(t, secret, 32)
}

func TestEnsureIsIdempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	first, err := Ensure(fsys, "/etc/monitord/secrets.env", statusfile.NoLock{})
	require.NoError(t, err)

	second, err := Ensure(fsys, "/etc/monitord/secrets.env", statusfile.NoLock{})
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestEnsurePreservesExistingLines(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/etc/monitord/secrets.env", []byte("OTHER=value\n"), 0o600))

	_, err := Ensure(fsys, "/etc/monitord/secrets.env", statusfile.NoLock{})
	require.NoError(t, err)

	data, err := afero.ReadFile(fsys, "/etc/monitord/secrets.env")
	require.NoError(t, err)
	require.Contains(t, string(data), "OTHER=value")
	require.Contains(t, string(data), secretLinePrefix)
}
