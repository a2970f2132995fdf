package options

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiknep/tiknep/datasets"
)

func TestDefaults(t *testing.T) {
	opts := Defaults()
	require.NoError(t, opts.Validate())
	assert.Equal(t, int64(42), opts.Seed)
	assert.Len(t, opts.Tasks, 4)
}

func TestNilStdoutDiscardsSummary(t *testing.T) {
	opts := Defaults()
	opts.Stdout = nil
	require.NoError(t, opts.Validate())
	assert.Nil(t, opts.Stdout)

	require.NoError(t, opts.Apply(WithStdout(nil)))
	assert.Equal(t, io.Discard, opts.Stdout)
}

func TestFractionsMustSumToOne(t *testing.T) {
	for _, fractions := range [][3]float64{
		{0.7, 0.2, 0.2},
		{0.5, 0.15, 0.15},
		{1, 0, 0},
		{0.8, -0.1, 0.3},
	} {
		err := Defaults().Apply(WithFractions(fractions[0], fractions[1], fractions[2]))
		assert.ErrorIs(t, err, ErrInvalidFractions, "%v", fractions)
	}
	assert.NoError(t, Defaults().Apply(WithFractions(0.8, 0.1, 0.1)))
	assert.NoError(t, Defaults().Apply(WithFractions(0.6, 0.2, 0.2)))
}

func TestValidateRejectsBadSettings(t *testing.T) {
	assert.Error(t, Defaults().Apply(WithFormat("parquet")))
	assert.Error(t, Defaults().Apply(WithPartitionMode("random")))
	assert.Error(t, Defaults().Apply(WithTasks()))
	assert.Error(t, Defaults().Apply(WithOutputDir("")))
	assert.Error(t, Defaults().Apply(WithInputPath("")))

	task := datasets.TaskDefinition{Name: "sentiment", Feature: "Text", Label: datasets.SingleLabel("SEN")}
	assert.ErrorContains(t, Defaults().Apply(WithTasks(task, task)), "defined twice")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	config := `{
		"seed": 7,
		"trainFrac": 0.8, "valFrac": 0.1, "testFrac": 0.1,
		"mode": "per-task",
		"tasks": [
			{"name": "sentiment", "feature": "Text", "label": "SEN"},
			{"name": "topics", "feature": "Text", "label": ["PGS", "FT"]}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(config), 0o644))

	opts := Defaults()
	require.NoError(t, opts.Apply(WithConfigFile(path), WithSeed(9)))
	assert.Equal(t, int64(9), opts.Seed)
	assert.Equal(t, 0.8, opts.TrainFrac)
	assert.Equal(t, PartitionPerTask, opts.Mode)
	assert.Equal(t, FormatCSV, opts.Format)
	assert.Equal(t, "SN", opts.IDColumn)
	require.Len(t, opts.Tasks, 2)
	assert.Equal(t, datasets.MultiLabel("PGS", "FT"), opts.Tasks[1].Label)

	assert.Error(t, Defaults().Apply(WithConfigFile(filepath.Join(t.TempDir(), "missing.json"))))
}
