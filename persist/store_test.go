package persist_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumish/cascadeopt/cost"
	"github.com/quantumish/cascadeopt/memo"
	"github.com/quantumish/cascadeopt/persist"
	"github.com/quantumish/cascadeopt/plan"
)

func scanMemo(t *testing.T) *memo.Memo {
	in := plan.NewInterner()
	scan, err := in.Intern(plan.TagScan, plan.TablePayload("t"), nil)
	require.NoError(t, err)
	m := memo.New(cost.NewDefaultCoster(), cost.NewDefaultCarder())
	_, err = m.AddPlan(scan)
	require.NoError(t, err)
	return m
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := persist.Open(filepath.Join(dir, "snapshots.db"))
	require.NoError(t, err)
	defer s.Close()

	m := scanMemo(t)
	require.NoError(t, s.Save("run-1", 0, m))

	loaded, ok, err := s.Load("run-1", 0, cost.NewDefaultCoster(), cost.NewDefaultCarder())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m.NumGroups(), loaded.NumGroups())
}

func TestLoadMissingSnapshotReportsNotOK(t *testing.T) {
	dir := t.TempDir()
	s, err := persist.Open(filepath.Join(dir, "snapshots.db"))
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Load("nope", 0, cost.NewDefaultCoster(), cost.NewDefaultCarder())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStagesListsStoredStages(t *testing.T) {
	dir := t.TempDir()
	s, err := persist.Open(filepath.Join(dir, "snapshots.db"))
	require.NoError(t, err)
	defer s.Close()

	m := scanMemo(t)
	require.NoError(t, s.Save("run-2", 0, m))
	require.NoError(t, s.Save("run-2", 1, m))

	stages, err := s.Stages("run-2")
	require.NoError(t, err)
	require.ElementsMatch(t, []int{0, 1}, stages)
}

func TestDeleteRemovesSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := persist.Open(filepath.Join(dir, "snapshots.db"))
	require.NoError(t, err)
	defer s.Close()

	m := scanMemo(t)
	require.NoError(t, s.Save("run-3", 0, m))
	require.NoError(t, s.Delete("run-3", 0))

	_, ok, err := s.Load("run-3", 0, cost.NewDefaultCoster(), cost.NewDefaultCarder())
	require.NoError(t, err)
	require.False(t, ok)
}
