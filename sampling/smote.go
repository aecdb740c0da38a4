// Package sampling rebalances labelled training sets.
package sampling

import (
	"math/rand"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/core/model"
	"github.com/YuminosukeSato/exotrain/core/parallel"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// Resampler changes the class distribution of a labelled training set.
type Resampler interface {
	FitResample(X mat.Matrix, y []float64) (*Result, error)
}

// Result is a resampled training set. The first len(y) rows are the original
// samples in their original order; the NSynthetic rows after them are
// synthetic.
type Result struct {
	X          *mat.Dense
	Y          []float64
	NSynthetic int
}

// SMOTE oversamples every non-majority class up to the majority count by
// interpolating between a sample and one of its nearest same-class neighbours.
type SMOTE struct {
	kNeighbors  int
	randomState int64

	// parallelThreshold is the minority count above which the neighbour search
	// is spread over all cores.
	parallelThreshold int
}

// Option configures SMOTE.
type Option func(*SMOTE)

// WithKNeighbors sets how many nearest neighbours are candidates for
// interpolation.
func WithKNeighbors(k int) Option {
	return func(s *SMOTE) {
		s.kNeighbors = k
	}
}

// WithRandomState sets the seed of the generator that picks samples,
// neighbours and gaps.
func WithRandomState(seed int64) Option {
	return func(s *SMOTE) {
		s.randomState = seed
	}
}

// NewSMOTE creates a SMOTE with k=5 and seed 42 unless overridden.
func NewSMOTE(options ...Option) *SMOTE {
	s := &SMOTE{
		kNeighbors:        5,
		randomState:       42,
		parallelThreshold: 256,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// GetParams returns the sampler's hyperparameters.
func (s *SMOTE) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"k_neighbors":  s.kNeighbors,
		"random_state": s.randomState,
	}
}

// FitResample returns X and y with synthetic minority rows appended. The input
// is not modified. A fresh generator is seeded on every call, so equal inputs
// give equal outputs.
func (s *SMOTE) FitResample(X mat.Matrix, y []float64) (*Result, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("SMOTE.FitResample", "empty data", errors.ErrEmptyData)
	}
	if r != len(y) {
		return nil, errors.NewDimensionError("SMOTE.FitResample", r, len(y), 0)
	}
	if s.kNeighbors < 1 {
		return nil, errors.NewValidationError("k_neighbors", "must be at least 1", s.kNeighbors)
	}

	classes, members := groupByClass(y)
	if len(classes) < 2 {
		return nil, errors.Wrap(errors.ErrSingleClass, "SMOTE.FitResample")
	}
	nMajority := 0
	for _, idx := range members {
		if len(idx) > nMajority {
			nMajority = len(idx)
		}
	}

	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}

	rng := rand.New(rand.NewSource(s.randomState))
	var synthX [][]float64
	var synthY []float64
	for ci, class := range classes {
		idx := members[ci]
		nNew := nMajority - len(idx)
		if nNew == 0 {
			continue
		}
		if len(idx) < 2 {
			return nil, errors.NewValueError("SMOTE.FitResample",
				"class "+strconv.FormatFloat(class, 'g', -1, 64)+" has "+strconv.Itoa(len(idx))+
					" sample(s); at least 2 are needed to interpolate")
		}
		k := s.kNeighbors
		if k > len(idx)-1 {
			k = len(idx) - 1
		}

		samples := make([][]float64, len(idx))
		for i, row := range idx {
			samples[i] = rows[row]
		}
		nn := s.nearestNeighbors(samples, k)

		for n := 0; n < nNew; n++ {
			i := rng.Intn(len(samples))
			j := nn[i][rng.Intn(k)]
			gap := rng.Float64()

			// x + gap*(neighbour - x)
			out := make([]float64, c)
			floats.SubTo(out, samples[j], samples[i])
			floats.Scale(gap, out)
			floats.Add(out, samples[i])
			synthX = append(synthX, out)
			synthY = append(synthY, class)
		}
	}

	total := r + len(synthX)
	outX := mat.NewDense(total, c, nil)
	for i, row := range rows {
		outX.SetRow(i, row)
	}
	for i, row := range synthX {
		outX.SetRow(r+i, row)
	}
	outY := make([]float64, 0, total)
	outY = append(outY, y...)
	outY = append(outY, synthY...)

	return &Result{X: outX, Y: outY, NSynthetic: len(synthX)}, nil
}

// nearestNeighbors returns, for each sample, the positions of its k nearest
// other samples by Euclidean distance. Ties go to the lower position.
func (s *SMOTE) nearestNeighbors(samples [][]float64, k int) [][]int {
	n := len(samples)
	nn := make([][]int, n)
	parallel.ParallelizeWithThreshold(n, s.parallelThreshold, func(start, end int) {
		order := make([]int, 0, n-1)
		dist := make([]float64, n)
		for i := start; i < end; i++ {
			order = order[:0]
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				dist[j] = floats.Distance(samples[i], samples[j], 2)
				order = append(order, j)
			}
			sort.SliceStable(order, func(a, b int) bool {
				return dist[order[a]] < dist[order[b]]
			})
			nn[i] = append([]int(nil), order[:k]...)
		}
	})
	return nn
}

// groupByClass returns the distinct labels in ascending order and the row
// indices of each.
func groupByClass(y []float64) ([]float64, [][]int) {
	byClass := make(map[float64][]int)
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	classes := make([]float64, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Float64s(classes)
	members := make([][]int, len(classes))
	for i, c := range classes {
		members[i] = byClass[c]
	}
	return classes, members
}

var (
	_ Resampler             = (*SMOTE)(nil)
	_ model.ParameterGetter = (*SMOTE)(nil)
)
