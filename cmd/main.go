package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"
	"github.com/urfave/cli/v2"

	"github.com/tiknep/tiknep"
	"github.com/tiknep/tiknep/datasets"
	"github.com/tiknep/tiknep/options"
	"github.com/tiknep/tiknep/utils/checks"
)

var inputPath string
var outputPath string
var configPath string
var seed int64
var trainFrac float64
var valFrac float64
var testFrac float64
var format string
var mode string
var idColumn string
var verbose bool

// stdin is read when the table is piped in.
var stdin io.Reader = os.Stdin

var stdinPiped = func() bool {
	return !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd())
}

var splitCommand = &cli.Command{
	Name:  "split",
	Usage: "Split an annotated table into train/val/test sets for every task",
	Description: `Split reads an annotated comment table (.csv or .xlsx) and writes, for every task, the features and
				labels of the train, validation and test subsets to <output>/<task>/{X,y}_{train,val,test}_<task>.<format>.
				The default tasks are sentiment (SEN), hate_offense (HAO), political (POL) and multi_topics (nine topic columns).
				`,
	ArgsUsage: `
				--input: path to the annotated table, or - to read a CSV table from stdin. Without --input and --config, a CSV piped to stdin is read;
				if stdin is not a terminal but empty (cron, CI, < /dev/null), the default input data/processed/clean_annotated_4k.csv is read instead.
				--output: folder where the task folders and split_manifest.json are written.
				--config: JSON file with any of seed, trainFrac, valFrac, testFrac, inputPath, outputDir, idColumn, format, mode, tasks. Flags override it.
				--seed: seed used by every split; the same seed and input always give the same subsets.
				--train, --val, --test: subset fractions, which must add up to 1.
				--format: csv or xlsx.
				--mode: shared (one partition reused by all tasks) or per-task (one partition per task).
				`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Usage:       "Path to the annotated table",
			Aliases:     []string{"i"},
			Destination: &inputPath,
		},
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Folder to write the splits to",
			Aliases:     []string{"o"},
			Destination: &outputPath,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to a JSON configuration file",
			Aliases:     []string{"c"},
			Destination: &configPath,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "Random seed",
			Aliases:     []string{"s"},
			Destination: &seed,
			Value:       42,
		},
		&cli.Float64Flag{
			Name:        "train",
			Usage:       "Train fraction",
			Destination: &trainFrac,
			Value:       0.70,
		},
		&cli.Float64Flag{
			Name:        "val",
			Usage:       "Validation fraction",
			Destination: &valFrac,
			Value:       0.15,
		},
		&cli.Float64Flag{
			Name:        "test",
			Usage:       "Test fraction",
			Destination: &testFrac,
			Value:       0.15,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "Output format, csv or xlsx",
			Aliases:     []string{"f"},
			Destination: &format,
			Value:       string(options.FormatCSV),
		},
		&cli.StringFlag{
			Name:        "mode",
			Usage:       "Partition mode, shared or per-task",
			Aliases:     []string{"m"},
			Destination: &mode,
			Value:       string(options.PartitionShared),
		},
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Column identifying rows in the manifest",
			Destination: &idColumn,
			Value:       "SN",
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Usage:       "Log partition details to stderr",
			Aliases:     []string{"v"},
			Destination: &verbose,
		},
	},
	Action: func(ctx *cli.Context) error {
		// the config file is applied first so that explicit flags win
		var opts []options.WithOption
		if configPath != "" {
			opts = append(opts, options.WithConfigFile(configPath))
		}
		if ctx.IsSet("seed") || configPath == "" {
			opts = append(opts, options.WithSeed(seed))
		}
		if ctx.IsSet("train") || ctx.IsSet("val") || ctx.IsSet("test") || configPath == "" {
			opts = append(opts, options.WithFractions(trainFrac, valFrac, testFrac))
		}
		if ctx.IsSet("format") || configPath == "" {
			opts = append(opts, options.WithFormat(options.Format(format)))
		}
		if ctx.IsSet("mode") || configPath == "" {
			opts = append(opts, options.WithPartitionMode(options.PartitionMode(mode)))
		}
		if ctx.IsSet("id") || configPath == "" {
			opts = append(opts, options.WithIDColumn(idColumn))
		}
		if outputPath != "" {
			opts = append(opts, options.WithOutputDir(outputPath))
		}
		explicitStdin := inputPath == "-"
		pipedStdin := inputPath == "" && configPath == "" && stdinPiped()
		if inputPath != "" && !explicitStdin {
			opts = append(opts, options.WithInputPath(inputPath))
		}
		if ctx.IsSet("verbose") {
			opts = append(opts, options.WithVerbose(verbose))
		}
		opts = append(opts, options.WithStdout(ctx.App.Writer))

		splitter, err := tiknep.NewSplitter(opts...)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if explicitStdin || pipedStdin {
			content, err := io.ReadAll(stdin)
			if err != nil {
				return fmt.Errorf("reading table from stdin: %w", err)
			}
			if explicitStdin || len(bytes.TrimSpace(content)) > 0 {
				table, err := datasets.ReadTable(bytes.NewReader(content))
				if err != nil {
					return fmt.Errorf("reading table from stdin: %w", err)
				}
				_, err = splitter.RunTable(ctx.Context, table)
				return err
			}
			log.Info().Str("input", splitter.Options().InputPath).Msg("stdin is empty, reading the input path instead")
		}
		if verbose {
			log.Info().Str("input", splitter.Options().InputPath).Msg("reading table")
		}
		_, err = splitter.Run(ctx.Context)
		return err
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "tiknep",
		Usage:    "Prepare the TikNep comment dataset for multi-task classification training",
		Commands: []*cli.Command{splitCommand},
	}
}

func main() {
	checks.CheckWithMessage(newApp().Run(os.Args), "tiknep failed")
}
