package sqlite

import (
	"context"
	"testing"

	"github.com/influxdata/mlcore/sqlite/migrations"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *SqlStore {
	t.Helper()

	store, err := NewSqlStore(InmemPath, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUp(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	// a new database should have a user_version of 0
	v, err := store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 0, v)

	migrator := NewMigrator(store, zaptest.NewLogger(t))
	require.NoError(t, migrator.Up(ctx, migrations.AllUp))

	v, err = store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 2, v)

	names, err := store.tableNames()
	require.NoError(t, err)
	require.Equal(t, []string{"kv", "sessions"}, names)

	// running again is a no-op
	require.NoError(t, migrator.Up(ctx, migrations.AllUp))
	v, err = store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestScriptVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		want     int
		wantErr  bool
	}{
		{
			"single digit number",
			"0001_some_file_name.sql",
			1,
			false,
		},
		{
			"larger number",
			"0921_another_file.sql",
			921,
			false,
		},
		{
			"bad name",
			"not_numbered_correctly.sql",
			0,
			true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := scriptVersion(tt.filename)
			require.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
