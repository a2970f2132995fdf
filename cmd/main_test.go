package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiknep/tiknep"
	"github.com/tiknep/tiknep/datasets"
	"github.com/tiknep/tiknep/split"
)

func check(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s", err.Error())
	}
}

// writeAnnotated writes a csv with every combination of SEN, HAO and POL
// equally represented.
func writeAnnotated(t *testing.T, dir string, n int) string {
	records := make([]datasets.Record, n)
	for i := range records {
		records[i] = datasets.Record{
			SN:     i + 1,
			TextID: fmt.Sprintf("c%d", i),
			Text:   fmt.Sprintf("कमेन्ट %d, राम्रो", i),
			SEN:    i % 3,
			HAO:    (i / 3) % 2,
			POL:    (i / 6) % 2,
			PGS:    i % 2,
			FT:     (i / 2) % 2,
			SW:     (i / 5) % 2,
		}
	}
	table, err := datasets.RecordsTable(records)
	check(t, err)
	var b strings.Builder
	check(t, datasets.EncodeCSV(&b, table))
	input := path.Join(dir, "clean_annotated.csv")
	check(t, os.WriteFile(input, []byte(b.String()), 0o644))
	return input
}

func runApp(t *testing.T, args ...string) (string, error) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	baseArgs := os.Args[0:1]
	err := app.Run(append(baseArgs, append([]string{"split"}, args...)...))
	return out.String(), err
}

func TestSplitCli(t *testing.T) {
	dir := t.TempDir()
	input := writeAnnotated(t, dir, 240)
	output := path.Join(dir, "splits")

	out, err := runApp(t, fmt.Sprintf("--input=%s", input), fmt.Sprintf("--output=%s", output))
	check(t, err)
	assert.Contains(t, out, "Loading dataset from: "+input)
	assert.Contains(t, out, "All splits created successfully!")

	for _, task := range datasets.TikNepTasks() {
		for _, prefix := range []string{"X", "y"} {
			for _, subset := range split.Subsets {
				assert.FileExists(t, path.Join(output, task.Name, tiknep.FileName(prefix, subset, task.Name, "csv")))
			}
		}
	}

	manifest, err := tiknep.ReadManifest(context.Background(), path.Join(output, tiknep.ManifestFile))
	check(t, err)
	assert.Equal(t, int64(42), manifest.Seed)
	assert.Equal(t, 240, manifest.Rows)
	require.Len(t, manifest.Tasks, 4)
	assert.Len(t, manifest.Tasks[0].Train, 168)
	assert.Len(t, manifest.Tasks[0].Validation, 36)
	assert.Len(t, manifest.Tasks[0].Test, 36)
}

func TestSplitCliConfigAndFlags(t *testing.T) {
	dir := t.TempDir()
	input := writeAnnotated(t, dir, 240)
	output := path.Join(dir, "splits")
	config := path.Join(dir, "config.json")
	check(t, os.WriteFile(config, []byte(fmt.Sprintf(`{
		"seed": 7,
		"trainFrac": 0.8, "valFrac": 0.1, "testFrac": 0.1,
		"inputPath": %q,
		"mode": "per-task",
		"format": "xlsx"
	}`, input)), 0o644))

	_, err := runApp(t, fmt.Sprintf("--config=%s", config), fmt.Sprintf("--output=%s", output), "--seed=11")
	check(t, err)

	manifest, err := tiknep.ReadManifest(context.Background(), path.Join(output, tiknep.ManifestFile))
	check(t, err)
	assert.Equal(t, int64(11), manifest.Seed)
	assert.Equal(t, "per-task", string(manifest.Mode))
	assert.Len(t, manifest.Tasks[0].Train, 192)
	assert.FileExists(t, path.Join(output, "political", "y_val_political.xlsx"))
}

func TestSplitCliRejectsBadFractions(t *testing.T) {
	dir := t.TempDir()
	input := writeAnnotated(t, dir, 60)
	output := path.Join(dir, "splits")

	_, err := runApp(t, fmt.Sprintf("--input=%s", input), fmt.Sprintf("--output=%s", output), "--train=0.8", "--val=0.2", "--test=0.2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.NoDirExists(t, output)
}

func pipeStdin(t *testing.T, content string) {
	previous, previousPiped := stdin, stdinPiped
	stdin = strings.NewReader(content)
	stdinPiped = func() bool { return true }
	t.Cleanup(func() {
		stdin, stdinPiped = previous, previousPiped
	})
}

func TestSplitCliPipedStdin(t *testing.T) {
	dir := t.TempDir()
	content, err := os.ReadFile(writeAnnotated(t, dir, 120))
	check(t, err)
	pipeStdin(t, string(content))
	output := path.Join(dir, "splits")

	out, err := runApp(t, fmt.Sprintf("--output=%s", output))
	check(t, err)
	assert.NotContains(t, out, "Loading dataset from")
	manifest, err := tiknep.ReadManifest(context.Background(), path.Join(output, tiknep.ManifestFile))
	check(t, err)
	assert.Equal(t, 120, manifest.Rows)
}

func TestSplitCliEmptyStdinReadsDefaultInput(t *testing.T) {
	dir := t.TempDir()
	check(t, os.MkdirAll(path.Join(dir, "data", "processed"), 0o755))
	check(t, os.Rename(writeAnnotated(t, dir, 120), path.Join(dir, "data", "processed", "clean_annotated_4k.csv")))
	t.Chdir(dir)
	pipeStdin(t, "")

	out, err := runApp(t)
	check(t, err)
	assert.Contains(t, out, "Loading dataset from: data/processed/clean_annotated_4k.csv")
	assert.FileExists(t, path.Join(dir, "data", "splits", tiknep.ManifestFile))

	// an explicit - still requires a table on stdin
	pipeStdin(t, "")
	_, err = runApp(t, "--input=-")
	assert.ErrorContains(t, err, "empty CSV input")
}
