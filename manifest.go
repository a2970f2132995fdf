package tiknep

import (
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/tiknep/tiknep/options"
	"github.com/tiknep/tiknep/split"
	"github.com/tiknep/tiknep/util/fileutil"
)

// ManifestFile is written at the root of the output directory.
const ManifestFile = "split_manifest.json"

// Manifest records how a run partitioned the table, identifying rows by id,
// so that two runs can be compared without diffing the output files.
type Manifest struct {
	Seed      int64                 `json:"seed"`
	TrainFrac float64               `json:"trainFrac"`
	ValFrac   float64               `json:"valFrac"`
	TestFrac  float64               `json:"testFrac"`
	Mode      options.PartitionMode `json:"mode"`
	Format    options.Format        `json:"format"`
	IDColumn  string                `json:"idColumn,omitempty"`
	Rows      int                   `json:"rows"`
	Tasks     []TaskManifest        `json:"tasks"`
}

type TaskManifest struct {
	Name       string   `json:"name"`
	Train      []string `json:"train"`
	Validation []string `json:"val"`
	Test       []string `json:"test"`
	Merged     []string `json:"mergedStrata,omitempty"`
}

// IDs returns the row ids of a subset.
func (t TaskManifest) IDs(subset split.Subset) []string {
	switch subset {
	case split.Train:
		return t.Train
	case split.Validation:
		return t.Validation
	case split.Test:
		return t.Test
	}
	return nil
}

func newManifest(o *options.Options, ids []string, tasks []TaskResult) Manifest {
	m := Manifest{
		Seed:      o.Seed,
		TrainFrac: o.TrainFrac,
		ValFrac:   o.ValFrac,
		TestFrac:  o.TestFrac,
		Mode:      o.Mode,
		Format:    o.Format,
		IDColumn:  o.IDColumn,
		Rows:      len(ids),
	}
	toIDs := func(rows []int) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = ids[r]
		}
		return out
	}
	for _, t := range tasks {
		m.Tasks = append(m.Tasks, TaskManifest{
			Name:       t.Task.Name,
			Train:      toIDs(t.Assignment.Train),
			Validation: toIDs(t.Assignment.Validation),
			Test:       toIDs(t.Assignment.Test),
			Merged:     t.Assignment.Merged,
		})
	}
	return m
}

func WriteManifest(ctx context.Context, path string, m Manifest) error {
	data, err := jsoniter.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err = fileutil.WriteFile(ctx, path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	}); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

func ReadManifest(ctx context.Context, path string) (Manifest, error) {
	var m Manifest
	data, err := fileutil.ReadFileBytes(ctx, path)
	if err != nil {
		return m, err
	}
	if err = jsoniter.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}
