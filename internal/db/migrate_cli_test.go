package db

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/banshee-data/gridloc/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrateCommand(t *testing.T) {
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = orig })

	path := filepath.Join(t.TempDir(), "runs.db")
	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		err := RunMigrateCommand(args, path, &out)
		return out.String(), err
	}

	out, err := run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "none")

	out, err = run("up")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	out, err = run("status")
	require.NoError(t, err)
	assert.Equal(t, "schema version: 1\n", out)

	_, err = run("down")
	require.NoError(t, err)
	out, err = run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "none")
}

func TestRunMigrateCommandUsage(t *testing.T) {
	var out bytes.Buffer
	err := RunMigrateCommand(nil, "x.db", &out)
	assert.ErrorIs(t, err, ErrUnknownMigrateAction)
	assert.Contains(t, out.String(), "Usage: gridloc")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"help"}, "", &out))
	assert.Contains(t, out.String(), "Actions:")

	err = RunMigrateCommand([]string{"sideways"}, filepath.Join(t.TempDir(), "runs.db"), &out)
	assert.ErrorIs(t, err, ErrUnknownMigrateAction)

	err = RunMigrateCommand([]string{"up"}, "", &out)
	assert.Error(t, err)
}
