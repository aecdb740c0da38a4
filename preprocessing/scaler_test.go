package preprocessing

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/core/model"
	"github.com/YuminosukeSato/exotrain/dataset"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

func referenceStats(X *mat.Dense) (mean, std []float64) {
	r, c := X.Dims()
	mean = make([]float64, c)
	std = make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			mean[j] += X.At(i, j)
		}
		mean[j] /= float64(r)
		for i := 0; i < r; i++ {
			d := X.At(i, j) - mean[j]
			std[j] += d * d
		}
		std[j] = math.Sqrt(std[j] / float64(r))
	}
	return mean, std
}

func TestStandardScalerFitUsesTrainRowsOnly(t *testing.T) {
	train := mat.NewDense(4, 3, []float64{
		1, 10, -3,
		2, 20, -1,
		3, 30, 1,
		4, 40, 3,
	})
	test := mat.NewDense(2, 3, []float64{
		1000, -500, 7,
		-1000, 500, 9,
	})

	s := NewStandardScalerDefault()
	require.NoError(t, s.Fit(train))

	wantMean, wantStd := referenceStats(train)
	assert.InDeltaSlice(t, wantMean, s.Mean, 1e-12)
	assert.InDeltaSlice(t, wantStd, s.Scale, 1e-12)
	for j := range wantStd {
		assert.InDelta(t, wantStd[j]*wantStd[j], s.Var[j], 1e-12)
	}
	assert.Equal(t, 4, s.NSamplesSeen)

	out, err := s.Transform(test)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			want := (test.At(i, j) - wantMean[j]) / wantStd[j]
			assert.InDelta(t, want, out.At(i, j), 1e-12)
		}
	}
}

func TestStandardScalerTransformedTrainIsStandard(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 100,
		3, 90,
		5, 80,
		7, 75,
		9, 60,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	mean, std := referenceStats(mat.DenseCopyOf(out))
	for j := 0; j < 2; j++ {
		assert.InDelta(t, 0, mean[j], 1e-12)
		assert.InDelta(t, 1, std[j], 1e-12)
	}

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-9))
}

func TestStandardScalerZeroVariance(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	f := &dataset.Frame{
		Columns: []string{"FLUX.1", "FLUX.2"},
		Data:    mat.NewDense(3, 2, []float64{5, 1, 5, 2, 5, 3}),
	}
	s := NewStandardScalerDefault()
	require.NoError(t, s.FitFrame(f))

	assert.Equal(t, 1.0, s.Scale[0], "constant column must not be divided by zero")
	assert.Equal(t, []string{"FLUX.1"}, s.ZeroVarianceFeatures)
	require.Len(t, warnings, 1)
	var zv *errors.ZeroVarianceWarning
	require.True(t, errors.As(warnings[0], &zv))
	assert.Equal(t, []string{"FLUX.1"}, zv.Features)

	out, err := s.TransformFrame(f)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Zero(t, out.Data.At(i, 0))
		assert.False(t, math.IsNaN(out.Data.At(i, 1)))
	}
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScalerDefault()

	_, err := s.Transform(mat.NewDense(1, 2, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))
	assert.Error(t, s.Save(filepath.Join(t.TempDir(), "s.gob")))

	withNaN := mat.NewDense(2, 2, []float64{1, math.NaN(), 3, 4})
	assert.Error(t, s.Fit(withNaN), "missing cells must be filled before scaling")

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(2, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestStandardScalerTransformFrameSchema(t *testing.T) {
	s := NewStandardScalerDefault()
	require.NoError(t, s.FitFrame(&dataset.Frame{
		Columns: []string{"A", "B"},
		Data:    mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
	}))

	_, err := s.TransformFrame(&dataset.Frame{
		Columns: []string{"B", "A"},
		Data:    mat.NewDense(1, 2, []float64{1, 2}),
	})
	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, 0, schemaErr.Column)
}

func TestStandardScalerSaveLoad(t *testing.T) {
	train := mat.NewDense(3, 3, []float64{1, 0, 7, 2, 0, 8, 4, 0, 9})
	test := mat.NewDense(2, 3, []float64{3, 1, 10, -1, 2, 0})

	s := NewStandardScalerDefault()
	require.NoError(t, s.FitFrame(&dataset.Frame{Columns: []string{"a", "b", "c"}, Data: train}))

	path := filepath.Join(t.TempDir(), "scaler.gob")
	require.NoError(t, s.Save(path))

	loaded, err := LoadStandardScaler(path)
	require.NoError(t, err)
	assert.True(t, loaded.IsFitted())
	assert.Equal(t, s.FeatureNames, loaded.FeatureNames)
	assert.Equal(t, s.ZeroVarianceFeatures, loaded.ZeroVarianceFeatures)

	want, err := s.Transform(test)
	require.NoError(t, err)
	got, err := loaded.Transform(test)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got), "loaded scaler must transform identically")
}

func TestLoadStandardScalerWrongKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, model.SaveModel("Sequential", struct{ Name string }{"cnn"}, path))
	_, err := LoadStandardScaler(path)
	assert.Error(t, err)
}

func TestExpandDimsRoundTrip(t *testing.T) {
	X := mat.NewDense(2, 4, []float64{0.1, -0.2, 0.3, -0.4, 1, 2, 3, 4})
	tt := ExpandDims(X)
	assert.Equal(t, []int{2, 4, 1}, tt.Shape())

	back, err := tt.Squeeze()
	require.NoError(t, err)
	assert.True(t, mat.Equal(X, back))
}
