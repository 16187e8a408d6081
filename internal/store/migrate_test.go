package store

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	scripts []string
	applied map[int]bool
}

func (f *fakeExec) ExecScript(ctx context.Context, script string) error {
	f.scripts = append(f.scripts, script)
	return nil
}

func (f *fakeExec) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	out := map[int]bool{}
	for k, v := range f.applied {
		out[k] = v
	}
	return out, nil
}

func (f *fakeExec) RecordVersion(ctx context.Context, version int, name string) error {
	f.applied[version] = true
	return nil
}

func TestMigratorAppliesInOrderAndSkipsApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_second.sql": {Data: []byte("B")},
		"sql/0001_first.sql":  {Data: []byte("A")},
		"sql/README.md":       {Data: []byte("ignored")},
	}
	exec := &fakeExec{applied: map[int]bool{}}
	m := NewMigrator(fsys, "sql")

	res, err := m.Run(context.Background(), exec)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, res.Applied)
	require.Equal(t, []string{migrationsTableSQL, "A", "B"}, exec.scripts)

	res, err = m.Run(context.Background(), exec)
	require.NoError(t, err)
	require.Empty(t, res.Applied)
	require.Equal(t, []int{1, 2}, res.Skipped)
}
