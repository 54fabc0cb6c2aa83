package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahurka/Arrhenius/config"
	"github.com/ahurka/Arrhenius/store"
)

const runnerBody = `{
	"co2": {"from": [1], "to": [2.0]},
	"year": 1,
	"grid": {"dims": {"lat": 18, "lon": 4}, "repr": "count"},
	"layers": 1,
	"iters": 10,
	"aggregate_lat": "after",
	"aggregate_level": "none",
	"temp_src": "berkeley",
	"humidity_src": "NCEP/NCAR",
	"albedo_src": "static",
	"pressure_src": "static",
	"absorbance_src": "table",
	"CO2_weight": "closest",
	"H2O_weight": "mean",
	"scale": [-5, 5]
}`

func runnerFixture(t *testing.T, command string, args ...string) (*modelRunner, *store.Layout, *config.Config) {
	t.Helper()

	layout, err := store.New(t.TempDir())
	require.NoError(t, err)
	cfg, err := config.Parse([]byte(runnerBody))
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	return newModelRunner(layout, command, args, logger), layout, cfg
}

func TestModelRunnerCommitsDatasetOnSuccess(t *testing.T) {
	t.Parallel()

	runner, layout, cfg := runnerFixture(t, "sh", "-c", "printf dataset-bytes")
	require.NoError(t, runner.Run(context.Background(), cfg))

	data, err := os.ReadFile(layout.DatasetPath(cfg.RunID()))
	require.NoError(t, err)
	assert.Equal(t, []byte("dataset-bytes"), data)
}

func TestModelRunnerPassesConfigOnStdin(t *testing.T) {
	t.Parallel()

	runner, layout, cfg := runnerFixture(t, "sh", "-c", "cat")
	require.NoError(t, runner.Run(context.Background(), cfg))

	want, err := json.Marshal(cfg)
	require.NoError(t, err)
	got, err := os.ReadFile(layout.DatasetPath(cfg.RunID()))
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

// A run that dies after producing partial output must leave nothing at
// the dataset path, or the partial file would read as a cache hit on
// the next request for the same configuration.
func TestModelRunnerFailureLeavesNoDataset(t *testing.T) {
	t.Parallel()

	runner, layout, cfg := runnerFixture(t, "sh", "-c", "printf partial; echo boom >&2; exit 3")
	err := runner.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")

	dsPath := layout.DatasetPath(cfg.RunID())
	assert.NoFileExists(t, dsPath)

	entries, err := os.ReadDir(layout.RunDir(cfg.RunID()))
	require.NoError(t, err)
	assert.Empty(t, entries, "staging temporaries must be discarded")
}

func TestModelRunnerMissingCommand(t *testing.T) {
	t.Parallel()

	runner, layout, cfg := runnerFixture(t, "/nonexistent/arrhenius-model")
	require.Error(t, runner.Run(context.Background(), cfg))
	assert.NoFileExists(t, layout.DatasetPath(cfg.RunID()))
}
