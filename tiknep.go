package tiknep

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/phuslu/log"

	"github.com/tiknep/tiknep/datasets"
	"github.com/tiknep/tiknep/options"
	"github.com/tiknep/tiknep/split"
	"github.com/tiknep/tiknep/util/fileutil"
)

// Splitter partitions an annotated table into train, validation and test
// subsets for every configured task and writes them to disk.
type Splitter struct {
	options *options.Options
	out     io.Writer
}

// TaskResult describes what was written for one task.
type TaskResult struct {
	Task       datasets.TaskDefinition
	Dir        string
	Assignment split.Assignment
	Files      []string
}

// Result is returned by a successful run.
type Result struct {
	Rows         int
	Tasks        []TaskResult
	ManifestPath string
}

// NewSplitter validates the configuration. A configuration error is returned
// before any file is read or written.
func NewSplitter(opts ...options.WithOption) (*Splitter, error) {
	parsed := options.Defaults()
	if err := parsed.Apply(opts...); err != nil {
		return nil, err
	}
	return &Splitter{options: parsed, out: parsed.Stdout}, nil
}

// Options returns the configuration of the splitter.
func (s *Splitter) Options() options.Options {
	return *s.options
}

// Run loads the configured input table and splits it.
func (s *Splitter) Run(ctx context.Context) (*Result, error) {
	s.banner("Dataset Splitting")
	fmt.Fprintf(s.out, "\nLoading dataset from: %s\n", s.options.InputPath)
	table, err := datasets.LoadTable(ctx, s.options.InputPath)
	if err != nil {
		return nil, err
	}
	return s.split(ctx, table)
}

// RunTable splits a table that is already in memory.
func (s *Splitter) RunTable(ctx context.Context, table *datasets.Table) (*Result, error) {
	s.banner("Dataset Splitting")
	return s.split(ctx, table)
}

func (s *Splitter) split(ctx context.Context, table *datasets.Table) (*Result, error) {
	fmt.Fprintf(s.out, "Loaded %s rows and %d columns\n", comma(table.Len()), len(table.Header()))
	fmt.Fprintf(s.out, "Columns: %s\n", strings.Join(table.Header(), ", "))

	for _, task := range s.options.Tasks {
		if err := task.Validate(table); err != nil {
			return nil, err
		}
	}
	if datasets.HasAnnotation(table) {
		if err := datasets.CheckAnnotation(table); err != nil {
			return nil, fmt.Errorf("checking label codes: %w", err)
		}
	}
	ids, err := s.rowIDs(table)
	if err != nil {
		return nil, err
	}

	// every partition is computed before the first file is written
	assignments := make([]split.Assignment, len(s.options.Tasks))
	if s.options.Mode == options.PartitionShared {
		a, err := s.sharedAssignment(table)
		if err != nil {
			return nil, err
		}
		for i := range assignments {
			assignments[i] = a
		}
	} else {
		for i, task := range s.options.Tasks {
			if assignments[i], err = s.taskAssignment(table, task); err != nil {
				return nil, fmt.Errorf("task %s: %w", task.Name, err)
			}
		}
	}

	if err = fileutil.CreateDir(ctx, s.options.OutputDir); err != nil {
		return nil, fmt.Errorf("creating %s: %w", s.options.OutputDir, err)
	}

	result := &Result{Rows: table.Len()}
	for i, task := range s.options.Tasks {
		taskResult, err := s.writeTask(ctx, table, task, assignments[i])
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task.Name, err)
		}
		result.Tasks = append(result.Tasks, taskResult)
	}

	manifest := newManifest(s.options, ids, result.Tasks)
	result.ManifestPath = fileutil.PathJoinSafe(s.options.OutputDir, ManifestFile)
	if err = WriteManifest(ctx, result.ManifestPath, manifest); err != nil {
		return nil, err
	}

	fmt.Fprintln(s.out)
	s.banner("All splits created successfully!")
	return result, nil
}

func (s *Splitter) plan(keys []string, mergeRare bool) split.Plan {
	return split.Plan{
		Seed:      s.options.Seed,
		TrainFrac: s.options.TrainFrac,
		ValFrac:   s.options.ValFrac,
		TestFrac:  s.options.TestFrac,
		Keys:      keys,
		MergeRare: mergeRare,
	}
}

// sharedAssignment computes the single partition reused by every task. It is
// stratified on the combination of all single-label columns, so that each of
// them keeps its class shares in every subset. Label columns with a class of
// fewer than two members are rejected. Combinations too small to be split, or
// too many for the size of a subset, are folded together and reported in the
// summary.
func (s *Splitter) sharedAssignment(table *datasets.Table) (split.Assignment, error) {
	var columns []string
	for _, task := range s.options.Tasks {
		if task.Label.IsSingle() && !slices.Contains(columns, task.Label.Column()) {
			columns = append(columns, task.Label.Column())
		}
	}
	if len(columns) == 0 {
		return s.plan(nil, false).Partition(table.Len())
	}

	values := make([][]string, len(columns))
	for i, column := range columns {
		v, err := table.Values(column)
		if err != nil {
			return split.Assignment{}, err
		}
		if err = checkClassSizes(column, v); err != nil {
			return split.Assignment{}, err
		}
		for r, cell := range v {
			if strings.Contains(cell, keySeparator) {
				return split.Assignment{}, fmt.Errorf("column %s row %d: label value %q holds a unit separator", column, r, cell)
			}
		}
		values[i] = v
	}
	if len(columns) == 1 {
		// a single column is stratified exactly as in per-task mode
		return s.plan(values[0], false).Partition(table.Len())
	}
	keys := make([]string, table.Len())
	row := make([]string, len(columns))
	for i := range keys {
		for j := range columns {
			row[j] = values[j][i]
		}
		keys[i] = compositeKey(row...)
	}
	a, err := s.plan(keys, true).Partition(table.Len())
	if err != nil {
		return split.Assignment{}, err
	}
	for i, m := range a.Merged {
		a.Merged[i] = describeKey(columns, m)
	}
	if s.options.Verbose {
		log.Info().Strs("strata", columns).Int("folded", len(a.Merged)).Msg("computed shared partition")
	}
	return a, nil
}

// taskAssignment computes a partition for one task alone: stratified on its
// label column for single-label tasks, plain shuffle for multi-label tasks.
func (s *Splitter) taskAssignment(table *datasets.Table, task datasets.TaskDefinition) (split.Assignment, error) {
	var keys []string
	if task.Label.IsSingle() {
		values, err := table.Values(task.Label.Column())
		if err != nil {
			return split.Assignment{}, err
		}
		if err = checkClassSizes(task.Label.Column(), values); err != nil {
			return split.Assignment{}, err
		}
		keys = values
	}
	a, err := s.plan(keys, false).Partition(table.Len())
	if err != nil {
		return split.Assignment{}, err
	}
	if s.options.Verbose {
		log.Info().Str("task", task.Name).Bool("stratified", keys != nil).Msg("computed task partition")
	}
	return a, nil
}

// writeTask materializes the six subsets of a task, then writes them.
func (s *Splitter) writeTask(ctx context.Context, table *datasets.Table, task datasets.TaskDefinition, a split.Assignment) (TaskResult, error) {
	if err := a.Validate(table.Len()); err != nil {
		return TaskResult{}, err
	}
	s.section(task.Name)
	fmt.Fprintf(s.out, "Total samples: %s\n", comma(table.Len()))
	fmt.Fprintf(s.out, "Features: %s\n", task.Feature)
	fmt.Fprintf(s.out, "Labels: %s\n", task.Label)
	if err := s.printLengths(table, task.Feature); err != nil {
		return TaskResult{}, err
	}

	type pair struct {
		subset split.Subset
		x, y   *datasets.Table
	}
	pairs := make([]pair, 0, len(split.Subsets))
	for _, subset := range split.Subsets {
		rows := a.Indices(subset)
		x, err := table.Select(rows, []string{task.Feature})
		if err != nil {
			return TaskResult{}, err
		}
		y, err := table.Select(rows, task.Label.Columns())
		if err != nil {
			return TaskResult{}, err
		}
		pairs = append(pairs, pair{subset: subset, x: x, y: y})
	}

	s.printSizes(a, table.Len())
	if err := s.printDistribution(table, task, a); err != nil {
		return TaskResult{}, err
	}
	if len(a.Merged) > 0 {
		fmt.Fprintf(s.out, "\nFolded strata: %s\n", strings.Join(a.Merged, "; "))
	}

	dir := fileutil.PathJoinSafe(s.options.OutputDir, task.Name)
	if err := fileutil.CreateDir(ctx, dir); err != nil {
		return TaskResult{}, fmt.Errorf("creating %s: %w", dir, err)
	}
	ext := string(s.options.Format)
	result := TaskResult{Task: task, Dir: dir, Assignment: a}
	fmt.Fprintf(s.out, "\nSaving files:\n")
	for _, p := range pairs {
		for _, f := range []struct {
			prefix string
			table  *datasets.Table
		}{{"X", p.x}, {"y", p.y}} {
			path := fileutil.PathJoinSafe(dir, FileName(f.prefix, p.subset, task.Name, ext))
			if err := datasets.WriteTable(ctx, path, ext, f.table); err != nil {
				return TaskResult{}, err
			}
			fmt.Fprintf(s.out, "  Saved %s (%s rows)\n", path, comma(f.table.Len()))
			result.Files = append(result.Files, path)
		}
	}
	return result, nil
}

// FileName is the name of one output file, e.g. X_train_sentiment.csv.
func FileName(prefix string, subset split.Subset, task string, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, subset, task, ext)
}

// rowIDs returns the identifier of each row: the configured id column when
// the table has it, the 0-based row number otherwise.
func (s *Splitter) rowIDs(table *datasets.Table) ([]string, error) {
	if s.options.IDColumn != "" {
		if _, err := table.Column(s.options.IDColumn); err == nil {
			return table.Values(s.options.IDColumn)
		}
	}
	ids := make([]string, table.Len())
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}
	return ids, nil
}

// keySeparator joins label values into a stratification key. It is the ASCII
// unit separator, which does not occur in annotated cells.
const keySeparator = "\x1f"

func compositeKey(values ...string) string {
	return strings.Join(values, keySeparator)
}

func describeKey(columns []string, key string) string {
	values := strings.Split(key, keySeparator)
	if len(values) != len(columns) {
		return key
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + "=" + values[i]
	}
	return strings.Join(parts, ", ")
}

func checkClassSizes(column string, values []string) error {
	counts := map[string]int{}
	for _, v := range values {
		counts[v]++
	}
	for _, class := range sortedKeys(counts) {
		if counts[class] < 2 {
			return fmt.Errorf("column %s: %w: class %q has %d member(s), need at least 2",
				column, split.ErrClassTooSmall, class, counts[class])
		}
	}
	return nil
}
