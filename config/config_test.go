package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumish/cascadeopt/cascade"
	"github.com/quantumish/cascadeopt/config"
	"github.com/quantumish/cascadeopt/rules"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cascadeopt.yaml")
	opts := cascade.Options{
		Stages: []cascade.StageSpec{
			{Name: "explore", Kinds: []rules.Kind{rules.Transformation}},
			{Name: "implement", Kinds: []rules.Kind{rules.Implementation}},
		},
		MaxWeightedCost: 1e6,
		PruneEnabled:    true,
		BudgetTasks:     5000,
		BudgetWallMS:    2000,
	}
	require.NoError(t, config.Save(path, opts))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, opts.Stages, loaded.Stages)
	require.Equal(t, opts.MaxWeightedCost, loaded.MaxWeightedCost)
	require.Equal(t, opts.PruneEnabled, loaded.PruneEnabled)
	require.Equal(t, opts.BudgetTasks, loaded.BudgetTasks)
	require.Equal(t, opts.BudgetWallMS, loaded.BudgetWallMS)
	require.Nil(t, loaded.Logger)
	require.Nil(t, loaded.Tracer)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
