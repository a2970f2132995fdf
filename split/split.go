// Package split implements deterministic random partitions of row indices.
//
// Every call derives a fresh generator from the seed it is given, so the same
// seed and the same input always produce the same indices. How a seed maps to
// a permutation is specific to this package: results are reproducible from
// run to run, not across other implementations of the same procedure.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
)

// ErrClassTooSmall is returned when a stratification class cannot be spread
// over both sides of a split.
var ErrClassTooSmall = errors.New("class has too few members to stratify")

// ErrTooFewSamples is returned when a side of a split would end up empty or
// smaller than the number of classes.
var ErrTooFewSamples = errors.New("too few samples to split")

// Binary is the result of one binary split. Both slices hold positions in the
// split input, in the order the split produced them.
type Binary struct {
	Train []int
	Test  []int
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// Sizes returns the train and test sizes for n samples: the test side gets
// ceil(testFrac*n) samples and train the rest.
func Sizes(n int, testFrac float64) (nTrain, nTest int, err error) {
	if testFrac <= 0 || testFrac >= 1 {
		return 0, 0, fmt.Errorf("test fraction must be in (0, 1), got %v", testFrac)
	}
	// the epsilon keeps products like 0.15*20 = 3.0000000000000004 from rounding up
	nTest = int(math.Ceil(testFrac*float64(n) - 1e-9))
	nTrain = n - nTest
	if nTrain < 1 || nTest < 1 {
		return 0, 0, fmt.Errorf("%w: %d samples with test fraction %v gives train=%d test=%d",
			ErrTooFewSamples, n, testFrac, nTrain, nTest)
	}
	return nTrain, nTest, nil
}

// Shuffle splits n samples without looking at their labels.
func Shuffle(n int, testFrac float64, seed int64) (Binary, error) {
	nTrain, nTest, err := Sizes(n, testFrac)
	if err != nil {
		return Binary{}, err
	}
	perm := newRand(seed).Perm(n)
	return Binary{
		Train: perm[nTest : nTest+nTrain],
		Test:  perm[:nTest],
	}, nil
}

// Stratified splits len(keys) samples so that every class (distinct key)
// keeps its share on both sides, up to rounding. Each class needs at least
// two members.
func Stratified(keys []string, testFrac float64, seed int64) (Binary, error) {
	n := len(keys)
	nTrain, nTest, err := Sizes(n, testFrac)
	if err != nil {
		return Binary{}, err
	}

	classes, members := groupByClass(keys)
	counts := make([]int, len(classes))
	for i, class := range classes {
		counts[i] = len(members[class])
		if counts[i] < 2 {
			return Binary{}, fmt.Errorf("%w: class %q has %d member(s), need at least 2",
				ErrClassTooSmall, class, counts[i])
		}
	}
	if nTrain < len(classes) || nTest < len(classes) {
		return Binary{}, fmt.Errorf("%w: train=%d and test=%d must each be at least the number of classes (%d)",
			ErrTooFewSamples, nTrain, nTest, len(classes))
	}

	r := newRand(seed)
	trainCounts := approximateMode(counts, nTrain, r)
	remaining := make([]int, len(counts))
	for i := range counts {
		remaining[i] = counts[i] - trainCounts[i]
	}
	testCounts := approximateMode(remaining, nTest, r)

	out := Binary{
		Train: make([]int, 0, nTrain),
		Test:  make([]int, 0, nTest),
	}
	for i, class := range classes {
		idx := members[class]
		perm := r.Perm(len(idx))
		for _, p := range perm[:trainCounts[i]] {
			out.Train = append(out.Train, idx[p])
		}
		for _, p := range perm[trainCounts[i] : trainCounts[i]+testCounts[i]] {
			out.Test = append(out.Test, idx[p])
		}
	}
	r.Shuffle(len(out.Train), func(i, j int) { out.Train[i], out.Train[j] = out.Train[j], out.Train[i] })
	r.Shuffle(len(out.Test), func(i, j int) { out.Test[i], out.Test[j] = out.Test[j], out.Test[i] })
	return out, nil
}

// groupByClass returns the sorted distinct keys and, per key, the positions
// holding it in ascending order.
func groupByClass(keys []string) ([]string, map[string][]int) {
	members := map[string][]int{}
	for i, k := range keys {
		members[k] = append(members[k], i)
	}
	classes := make([]string, 0, len(members))
	for k := range members {
		classes = append(classes, k)
	}
	sort.Strings(classes)
	return classes, members
}

// approximateMode spreads draws over classes proportionally to counts. Each
// class gets the floor of its exact share, and the draws left over go to the
// classes with the largest fractional parts; ties are broken at random.
func approximateMode(counts []int, draws int, r *rand.Rand) []int {
	total := 0
	for _, c := range counts {
		total += c
	}
	out := make([]int, len(counts))
	remainders := make([]float64, len(counts))
	assigned := 0
	for i, c := range counts {
		exact := float64(c) * float64(draws) / float64(total)
		out[i] = int(math.Floor(exact))
		remainders[i] = exact - float64(out[i])
		assigned += out[i]
	}
	need := draws - assigned
	if need <= 0 {
		return out
	}

	levels := slices.Clone(remainders)
	slices.Sort(levels)
	levels = slices.Compact(levels)
	slices.Reverse(levels)
	for _, level := range levels {
		if level == 0 {
			break
		}
		var tied []int
		for i, rem := range remainders {
			if rem == level {
				tied = append(tied, i)
			}
		}
		r.Shuffle(len(tied), func(i, j int) { tied[i], tied[j] = tied[j], tied[i] })
		take := min(len(tied), need)
		for _, i := range tied[:take] {
			out[i]++
		}
		need -= take
		if need == 0 {
			break
		}
	}
	return out
}

// MergeRare folds every class with fewer than minSize members into a single
// bucket named rareKey, and returns the new keys with the folded class names
// in sorted order. While more than maxClasses classes remain, the smallest
// ones are folded as well; maxClasses <= 0 sets no limit. If the bucket itself
// ends up too small it joins the largest class left.
func MergeRare(keys []string, minSize, maxClasses int, rareKey string) ([]string, []string) {
	classes, members := groupByClass(keys)
	// smallest first, ties by name
	sort.SliceStable(classes, func(i, j int) bool {
		return len(members[classes[i]]) < len(members[classes[j]])
	})
	folded := 0
	bucket := 0
	for folded < len(classes) && len(members[classes[folded]]) < minSize {
		bucket += len(members[classes[folded]])
		folded++
	}
	count := func() int {
		if folded == 0 {
			return len(classes)
		}
		return len(classes) - folded + 1
	}
	for maxClasses > 0 && count() > maxClasses && folded < len(classes) {
		bucket += len(members[classes[folded]])
		folded++
	}
	if folded == 0 {
		return keys, nil
	}
	rare := slices.Clone(classes[:folded])
	sort.Strings(rare)

	target := rareKey
	if bucket < minSize && folded < len(classes) {
		// classes are sorted by size, so the last one is the largest
		target = classes[len(classes)-1]
	}
	merged := slices.Clone(keys)
	for _, class := range rare {
		for _, i := range members[class] {
			merged[i] = target
		}
	}
	return merged, rare
}
