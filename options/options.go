package options

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/tiknep/tiknep/datasets"
	"github.com/tiknep/tiknep/util/fileutil"
)

// ErrInvalidFractions is returned when the split fractions are out of range
// or do not add up to one.
var ErrInvalidFractions = errors.New("invalid split fractions")

const fractionTolerance = 1e-9

type PartitionMode string

const (
	// PartitionShared computes one assignment per run and reuses it for every task.
	PartitionShared PartitionMode = "shared"
	// PartitionPerTask computes one assignment per task, stratified by that task's own label.
	PartitionPerTask PartitionMode = "per-task"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Options is the complete configuration of a splitting run.
type Options struct {
	Seed      int64                     `json:"seed"`
	TrainFrac float64                   `json:"trainFrac"`
	ValFrac   float64                   `json:"valFrac"`
	TestFrac  float64                   `json:"testFrac"`
	InputPath string                    `json:"inputPath"`
	IDColumn  string                    `json:"idColumn"`
	OutputDir string                    `json:"outputDir"`
	Format    Format                    `json:"format"`
	Mode      PartitionMode             `json:"mode"`
	Tasks     []datasets.TaskDefinition `json:"tasks"`
	Verbose   bool                      `json:"verbose"`
	Stdout    io.Writer                 `json:"-"`
}

// WithOption is the interface for all option functions
type WithOption func(o *Options) error

// Defaults reproduces the configuration of the original TikNep split.
func Defaults() *Options {
	return &Options{
		Seed:      42,
		TrainFrac: 0.70,
		ValFrac:   0.15,
		TestFrac:  0.15,
		InputPath: "data/processed/clean_annotated_4k.csv",
		IDColumn:  "SN",
		OutputDir: "data/splits",
		Format:    FormatCSV,
		Mode:      PartitionShared,
		Tasks:     datasets.TikNepTasks(),
		Stdout:    os.Stdout,
	}
}

// Apply applies opts in order and validates the result. A nil Stdout
// discards the summary.
func (o *Options) Apply(opts ...WithOption) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	if o.Stdout == nil {
		o.Stdout = io.Discard
	}
	return o.Validate()
}

// Validate checks the configuration before any file is touched.
func (o *Options) Validate() error {
	for _, f := range []float64{o.TrainFrac, o.ValFrac, o.TestFrac} {
		if f <= 0 || f >= 1 || math.IsNaN(f) {
			return fmt.Errorf("%w: each fraction must be in (0, 1), got train=%v val=%v test=%v",
				ErrInvalidFractions, o.TrainFrac, o.ValFrac, o.TestFrac)
		}
	}
	if sum := o.TrainFrac + o.ValFrac + o.TestFrac; math.Abs(sum-1) > fractionTolerance {
		return fmt.Errorf("%w: split ratios must sum to 1.0, got %v", ErrInvalidFractions, sum)
	}
	switch o.Format {
	case FormatCSV, FormatXLSX:
	default:
		return fmt.Errorf("unsupported output format %q", o.Format)
	}
	switch o.Mode {
	case PartitionShared, PartitionPerTask:
	default:
		return fmt.Errorf("unsupported partition mode %q", o.Mode)
	}
	if len(o.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}
	seen := map[string]bool{}
	for _, task := range o.Tasks {
		if err := task.Check(); err != nil {
			return err
		}
		if seen[task.Name] {
			return fmt.Errorf("task %s is defined twice", task.Name)
		}
		seen[task.Name] = true
	}
	if o.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

// WithSeed sets the seed used by every split call of the run.
func WithSeed(seed int64) WithOption {
	return func(o *Options) error {
		o.Seed = seed
		return nil
	}
}

// WithFractions sets the train, validation and test fractions. They are checked in Validate.
func WithFractions(train, val, test float64) WithOption {
	return func(o *Options) error {
		o.TrainFrac = train
		o.ValFrac = val
		o.TestFrac = test
		return nil
	}
}

func WithInputPath(path string) WithOption {
	return func(o *Options) error {
		if path == "" {
			return fmt.Errorf("input path is required")
		}
		o.InputPath = path
		return nil
	}
}

// WithIDColumn names the column identifying rows in the split manifest.
func WithIDColumn(column string) WithOption {
	return func(o *Options) error {
		o.IDColumn = column
		return nil
	}
}

func WithOutputDir(dir string) WithOption {
	return func(o *Options) error {
		o.OutputDir = dir
		return nil
	}
}

func WithFormat(format Format) WithOption {
	return func(o *Options) error {
		o.Format = format
		return nil
	}
}

func WithPartitionMode(mode PartitionMode) WithOption {
	return func(o *Options) error {
		o.Mode = mode
		return nil
	}
}

// WithTasks replaces the default TikNep tasks.
func WithTasks(tasks ...datasets.TaskDefinition) WithOption {
	return func(o *Options) error {
		o.Tasks = tasks
		return nil
	}
}

func WithVerbose(verbose bool) WithOption {
	return func(o *Options) error {
		o.Verbose = verbose
		return nil
	}
}

// WithStdout redirects the progress summary, os.Stdout by default.
func WithStdout(w io.Writer) WithOption {
	return func(o *Options) error {
		o.Stdout = w
		return nil
	}
}

// WithConfigFile overlays the fields present in a JSON config file onto the
// current options. Fields missing from the file keep their current value.
func WithConfigFile(path string) WithOption {
	return func(o *Options) error {
		data, err := fileutil.ReadFileBytes(context.Background(), path)
		if err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		if err = jsoniter.Unmarshal(data, o); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
		return nil
	}
}
