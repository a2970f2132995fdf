package split

import (
	"fmt"
	"math"
	"slices"
)

type Subset int

const (
	Train Subset = iota
	Validation
	Test
)

// Subsets lists the three subsets in file order.
var Subsets = []Subset{Train, Validation, Test}

// String is the short name used in output file names.
func (s Subset) String() string {
	switch s {
	case Train:
		return "train"
	case Validation:
		return "val"
	case Test:
		return "test"
	}
	return fmt.Sprintf("Subset(%d)", int(s))
}

// Assignment partitions row indices into train, validation and test.
type Assignment struct {
	Train      []int
	Validation []int
	Test       []int
	// Merged lists the stratification classes that were folded together because
	// they were too small to be spread over the subsets.
	Merged []string
}

func (a Assignment) Indices(s Subset) []int {
	switch s {
	case Train:
		return a.Train
	case Validation:
		return a.Validation
	case Test:
		return a.Test
	}
	return nil
}

func (a Assignment) Len() int {
	return len(a.Train) + len(a.Validation) + len(a.Test)
}

// Lookup returns, for each of the n rows, the subset it was assigned to.
func (a Assignment) Lookup(n int) ([]Subset, error) {
	if err := a.Validate(n); err != nil {
		return nil, err
	}
	out := make([]Subset, n)
	for _, s := range Subsets {
		for _, i := range a.Indices(s) {
			out[i] = s
		}
	}
	return out, nil
}

// Validate checks that the assignment covers rows 0..n-1 exactly once.
func (a Assignment) Validate(n int) error {
	if a.Len() != n {
		return fmt.Errorf("assignment holds %d rows, table has %d", a.Len(), n)
	}
	seen := make([]bool, n)
	for _, s := range Subsets {
		for _, i := range a.Indices(s) {
			if i < 0 || i >= n {
				return fmt.Errorf("row %d in %s is out of range", i, s)
			}
			if seen[i] {
				return fmt.Errorf("row %d is assigned twice", i)
			}
			seen[i] = true
		}
	}
	return nil
}

// Plan describes how to partition a table into train, validation and test.
type Plan struct {
	Seed      int64
	TrainFrac float64
	ValFrac   float64
	TestFrac  float64
	// Keys holds one stratification key per row. Nil disables stratification.
	Keys []string
	// MergeRare folds classes too small to split into one bucket before each
	// split instead of failing with ErrClassTooSmall.
	MergeRare bool
}

const rareKey = "\x00rare"

// RemainderFrac is the fraction of the rows held out by the first split.
func (p Plan) RemainderFrac() float64 {
	return p.ValFrac + p.TestFrac
}

// ValRatio is the share of the remainder that becomes the validation set, so
// that validation and test end up at ValFrac and TestFrac of all rows.
func (p Plan) ValRatio() float64 {
	return p.ValFrac / p.RemainderFrac()
}

// Partition runs two binary splits with the same seed: all rows into train
// and a remainder of ValFrac+TestFrac, then the remainder into validation and
// test so that both end up at their fraction of the full table.
func (p Plan) Partition(n int) (Assignment, error) {
	if p.ValFrac <= 0 || p.TestFrac <= 0 || math.Abs(p.TrainFrac+p.RemainderFrac()-1) > 1e-9 {
		return Assignment{}, fmt.Errorf("fractions train=%v val=%v test=%v must be positive and add up to 1",
			p.TrainFrac, p.ValFrac, p.TestFrac)
	}
	if p.Keys != nil && len(p.Keys) != n {
		return Assignment{}, fmt.Errorf("got %d stratification keys for %d rows", len(p.Keys), n)
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	var a Assignment

	first, err := p.binary(all, p.RemainderFrac(), &a)
	if err != nil {
		return Assignment{}, fmt.Errorf("train split: %w", err)
	}
	second, err := p.binary(first.Test, 1-p.ValRatio(), &a)
	if err != nil {
		return Assignment{}, fmt.Errorf("validation/test split: %w", err)
	}
	a.Train = first.Train
	a.Validation = second.Train
	a.Test = second.Test
	return a, nil
}

// binary splits rows, returning row indices rather than positions.
func (p Plan) binary(rows []int, testFrac float64, a *Assignment) (Binary, error) {
	var b Binary
	var err error
	if p.Keys == nil {
		b, err = Shuffle(len(rows), testFrac, p.Seed)
	} else {
		keys := make([]string, len(rows))
		for i, r := range rows {
			keys[i] = p.Keys[r]
		}
		if p.MergeRare {
			nTrain, nTest, err := Sizes(len(rows), testFrac)
			if err != nil {
				return Binary{}, err
			}
			var merged []string
			keys, merged = MergeRare(keys, 2, min(nTrain, nTest), rareKey)
			a.Merged = appendNew(a.Merged, merged...)
		}
		b, err = Stratified(keys, testFrac, p.Seed)
	}
	if err != nil {
		return Binary{}, err
	}
	return Binary{Train: pick(rows, b.Train), Test: pick(rows, b.Test)}, nil
}

func pick(rows []int, positions []int) []int {
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = rows[p]
	}
	return out
}

func appendNew(list []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}
