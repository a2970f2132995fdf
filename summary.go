package tiknep

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"

	"github.com/tiknep/tiknep/datasets"
	"github.com/tiknep/tiknep/split"
)

const rule = 60

func comma(n int) string {
	return humanize.Comma(int64(n))
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func (s *Splitter) banner(title string) {
	fmt.Fprintln(s.out, strings.Repeat("=", rule))
	fmt.Fprintln(s.out, title)
	fmt.Fprintln(s.out, strings.Repeat("=", rule))
}

func (s *Splitter) section(title string) {
	fmt.Fprintf(s.out, "\n%s\nProcessing: %s\n%s\n", strings.Repeat("=", rule), title, strings.Repeat("=", rule))
}

func (s *Splitter) printSizes(a split.Assignment, total int) {
	fmt.Fprintf(s.out, "\nSplit sizes:\n")
	for _, subset := range split.Subsets {
		n := len(a.Indices(subset))
		fmt.Fprintf(s.out, "  %-6s %s (%.1f%%)\n", subsetTitle(subset)+":", comma(n), percent(n, total))
	}
}

func subsetTitle(subset split.Subset) string {
	switch subset {
	case split.Train:
		return "Train"
	case split.Validation:
		return "Val"
	}
	return "Test"
}

// printDistribution prints, for each class of a single-label task or each
// topic of a multi-label task, its share in the full table and in every
// subset, followed by the largest deviation from the full table.
func (s *Splitter) printDistribution(table *datasets.Table, task datasets.TaskDefinition, a split.Assignment) error {
	if task.Label.IsSingle() {
		column := task.Label.Column()
		values, err := table.Values(column)
		if err != nil {
			return err
		}
		drift, err := classDrift(values, a)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "\nClass distribution (%s), full / train / val / test:\n", column)
		for _, class := range sortedKeys(drift.shares) {
			shares := drift.shares[class]
			fmt.Fprintf(s.out, "  %-22s %5.1f%% / %5.1f%% / %5.1f%% / %5.1f%%\n",
				datasets.ClassName(column, class), shares[0], shares[1], shares[2], shares[3])
		}
		fmt.Fprintf(s.out, "  Max deviation from full table: %.2f points\n", drift.max)
		return nil
	}

	fmt.Fprintf(s.out, "\nPositive rate per label (not stratified), full / train / val / test:\n")
	for _, column := range task.Label.Columns() {
		values, err := table.Values(column)
		if err != nil {
			return err
		}
		rates := make([]float64, 0, 4)
		full, err := positiveRate(values, nil)
		if err != nil {
			return err
		}
		rates = append(rates, full)
		for _, subset := range split.Subsets {
			rate, err := positiveRate(values, a.Indices(subset))
			if err != nil {
				return err
			}
			rates = append(rates, rate)
		}
		fmt.Fprintf(s.out, "  %-8s %5.1f%% / %5.1f%% / %5.1f%% / %5.1f%%\n", column, rates[0], rates[1], rates[2], rates[3])
	}
	return nil
}

// printLengths prints the length in characters of the feature column.
func (s *Splitter) printLengths(table *datasets.Table, column string) error {
	values, err := table.Values(column)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	lengths := make(stats.Float64Data, len(values))
	for i, v := range values {
		lengths[i] = float64(utf8.RuneCountInString(v))
	}
	shortest, err := lengths.Min()
	if err != nil {
		return err
	}
	longest, err := lengths.Max()
	if err != nil {
		return err
	}
	mean, err := lengths.Mean()
	if err != nil {
		return err
	}
	median, err := lengths.Median()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s length (characters): min %.0f, median %.1f, mean %.1f, max %.0f\n",
		column, shortest, median, mean, longest)
	return nil
}

type distribution struct {
	// shares holds, per class, its percentage in the full table, train, val and test.
	shares map[string][4]float64
	// max is the largest absolute difference, in percentage points, between a
	// subset share and the full table share.
	max float64
}

func classDrift(values []string, a split.Assignment) (distribution, error) {
	counts := func(rows []int) map[string]int {
		out := map[string]int{}
		if rows == nil {
			for _, v := range values {
				out[v]++
			}
			return out
		}
		for _, r := range rows {
			out[values[r]]++
		}
		return out
	}
	full := counts(nil)
	perSubset := make([]map[string]int, len(split.Subsets))
	for i, subset := range split.Subsets {
		perSubset[i] = counts(a.Indices(subset))
	}

	d := distribution{shares: map[string][4]float64{}}
	var deviations stats.Float64Data
	for class, n := range full {
		var shares [4]float64
		shares[0] = percent(n, len(values))
		for i, subset := range split.Subsets {
			shares[i+1] = percent(perSubset[i][class], len(a.Indices(subset)))
			deviations = append(deviations, math.Abs(shares[i+1]-shares[0]))
		}
		d.shares[class] = shares
	}
	if len(deviations) == 0 {
		return d, nil
	}
	largest, err := stats.Max(deviations)
	if err != nil {
		return distribution{}, err
	}
	d.max = largest
	return d, nil
}

// positiveRate is the percentage of rows equal to "1", over rows when given and over all values otherwise.
func positiveRate(values []string, rows []int) (float64, error) {
	var indicators stats.Float64Data
	if rows == nil {
		indicators = make(stats.Float64Data, len(values))
		for i, v := range values {
			indicators[i] = indicator(v)
		}
	} else {
		indicators = make(stats.Float64Data, len(rows))
		for i, r := range rows {
			indicators[i] = indicator(values[r])
		}
	}
	if len(indicators) == 0 {
		return 0, nil
	}
	mean, err := stats.Mean(indicators)
	if err != nil {
		return 0, err
	}
	return mean * 100, nil
}

func indicator(v string) float64 {
	if strings.TrimSpace(v) == "1" {
		return 1
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
