package dataset

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// DefaultLabelColumn is the label column of the light-curve tables.
const DefaultLabelColumn = "LABEL"

// LabelMap maps source label codes onto the binary convention.
type LabelMap map[int]float64

// DefaultLabelMap maps code 1 (no transit) to 0 and code 2 (exoplanet) to 1.
var DefaultLabelMap = LabelMap{1: 0, 2: 1}

// Codes returns the known source codes in ascending order.
func (m LabelMap) Codes() []int {
	codes := make([]int, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// SplitLabel separates labelColumn from the features and remaps its codes with
// m. In strict mode a code missing from m (or a non-integer code) is an
// UnknownLabelError; otherwise the value passes through unchanged.
func SplitLabel(f *Frame, labelColumn string, m LabelMap, strict bool) (*Frame, []float64, error) {
	features, raw, err := f.DropColumn(labelColumn)
	if err != nil {
		return nil, nil, err
	}

	labels := make([]float64, len(raw))
	for i, v := range raw {
		code := int(v)
		mapped, ok := m[code]
		if !ok || float64(code) != v || math.IsNaN(v) {
			if strict {
				return nil, nil, errors.NewUnknownLabelError(i, v, m.Codes())
			}
			labels[i] = v
			continue
		}
		labels[i] = mapped
	}
	return features, labels, nil
}

// Partition is a feature frame and its labels.
type Partition struct {
	X *Frame
	Y []float64
}

// Len returns the number of rows.
func (p Partition) Len() int {
	return len(p.Y)
}

// SplitAt cuts X and y at boundary: rows before it form the training partition
// and the rest the test partition.
func SplitAt(X *Frame, y []float64, boundary int) (train, test Partition, err error) {
	rows, _ := X.Dims()
	if rows != len(y) {
		return train, test, errors.NewDimensionError("SplitAt", rows, len(y), 0)
	}
	if boundary <= 0 || boundary >= rows {
		return train, test, errors.NewValidationError("boundary", "must leave rows on both sides", boundary)
	}

	trainX, err := X.SliceRows(0, boundary)
	if err != nil {
		return train, test, err
	}
	testX, err := X.SliceRows(boundary, rows)
	if err != nil {
		return train, test, err
	}
	train = Partition{X: trainX, Y: append([]float64(nil), y[:boundary]...)}
	test = Partition{X: testX, Y: append([]float64(nil), y[boundary:]...)}
	return train, test, nil
}

// ClassCounts returns how many times each label value occurs.
func ClassCounts(y []float64) map[float64]int {
	counts := make(map[float64]int)
	for _, v := range y {
		counts[v]++
	}
	return counts
}
