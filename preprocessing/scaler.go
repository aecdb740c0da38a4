// Package preprocessing standardizes light-curve features and reshapes them into
// single-channel sequences for the convolutional network.
package preprocessing

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/exotrain/core/model"
	"github.com/YuminosukeSato/exotrain/dataset"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// ScalerKind identifies StandardScaler artifacts on disk.
const ScalerKind = "StandardScaler"

// zeroScaleThreshold is the standard deviation under which a column counts as
// constant.
const zeroScaleThreshold = 1e-8

// StandardScaler removes the per-feature mean and divides by the per-feature
// population standard deviation learned during Fit.
type StandardScaler struct {
	State *model.StateManager

	// Mean is the per-feature mean of the training rows.
	Mean []float64
	// Scale is the per-feature divisor, 1 for constant features.
	Scale []float64
	// Var is the per-feature population variance.
	Var []float64

	// FeatureNames is set by FitFrame and checked by TransformFrame.
	FeatureNames []string
	// ZeroVarianceFeatures lists the features whose scale was clamped to 1.
	ZeroVarianceFeatures []string
	NSamplesSeen         int

	WithMean bool
	WithStd  bool
}

// NewStandardScaler creates a StandardScaler.
//
// Parameters:
//   - withMean: subtract the mean
//   - withStd: divide by the standard deviation
//
// Example:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(XTrain)
//	XScaled, err := scaler.Transform(XTest)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		State:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault creates a StandardScaler that centres and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// IsFitted reports whether the scaler has learned its statistics.
func (s *StandardScaler) IsFitted() bool {
	return s.State != nil && s.State.IsFitted()
}

// Fit learns the mean and population standard deviation of every column of X.
// X must not contain NaN or Inf.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	return s.fit(X, nil)
}

// FitFrame fits on f and remembers its column names.
func (s *StandardScaler) FitFrame(f *dataset.Frame) error {
	return s.fit(f.Data, f.Columns)
}

func (s *StandardScaler) fit(X mat.Matrix, names []string) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if names != nil && len(names) != c {
		return errors.NewDimensionError("StandardScaler.Fit", len(names), c, 1)
	}
	if err := errors.CheckMatrix("StandardScaler.Fit", X, 0); err != nil {
		return err
	}
	if s.State == nil {
		s.State = model.NewStateManager()
	}
	s.State.Reset()

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	s.Var = make([]float64, c)
	s.FeatureNames = nil
	if names != nil {
		s.FeatureNames = append([]string(nil), names...)
	}
	s.ZeroVarianceFeatures = nil

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Var[j] = std * std

		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd {
			if std < zeroScaleThreshold {
				s.ZeroVarianceFeatures = append(s.ZeroVarianceFeatures, s.featureName(j))
			} else {
				s.Scale[j] = std
			}
		}
	}

	if len(s.ZeroVarianceFeatures) > 0 {
		errors.Warn(errors.NewZeroVarianceWarning(append([]string(nil), s.ZeroVarianceFeatures...)))
	}

	s.NSamplesSeen = r
	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

func (s *StandardScaler) featureName(j int) string {
	if s.FeatureNames != nil {
		return s.FeatureNames[j]
	}
	return "x" + strconv.Itoa(j)
}

// Transform standardizes X with the learned statistics.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply(X, "Transform", func(v float64, j int) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// TransformFrame standardizes f, whose columns must match the names seen by
// FitFrame.
func (s *StandardScaler) TransformFrame(f *dataset.Frame) (*dataset.Frame, error) {
	if err := s.checkColumns(f.Columns); err != nil {
		return nil, err
	}
	out, err := s.Transform(f.Data)
	if err != nil {
		return nil, err
	}
	return &dataset.Frame{
		Columns: append([]string(nil), f.Columns...),
		Data:    out.(*mat.Dense),
	}, nil
}

func (s *StandardScaler) checkColumns(columns []string) error {
	if s.FeatureNames == nil {
		return nil
	}
	if len(columns) != len(s.FeatureNames) {
		return errors.NewSchemaError("StandardScaler.Transform", -1,
			strconv.Itoa(len(s.FeatureNames))+" columns", strconv.Itoa(len(columns))+" columns")
	}
	for i, name := range columns {
		if name != s.FeatureNames[i] {
			return errors.NewSchemaError("StandardScaler.Transform", i, s.FeatureNames[i], name)
		}
	}
	return nil
}

// FitTransform fits on X and transforms it.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply(X, "InverseTransform", func(v float64, j int) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

func (s *StandardScaler) apply(X mat.Matrix, method string, fn func(v float64, j int) float64) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", method)
	}
	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, errors.NewDimensionError("StandardScaler."+method, len(s.Mean), c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return fn(v, j)
	}, X)
	return result, nil
}

// Save writes the fitted scaler to path, replacing any existing file.
func (s *StandardScaler) Save(path string) error {
	if err := s.requireFitted("Save"); err != nil {
		return err
	}
	return model.SaveModel(ScalerKind, s, path)
}

// LoadStandardScaler reads a scaler written by Save.
func LoadStandardScaler(path string) (*StandardScaler, error) {
	var s StandardScaler
	if err := model.LoadModel(ScalerKind, &s, path); err != nil {
		return nil, err
	}
	if !s.IsFitted() || len(s.Mean) != len(s.Scale) {
		return nil, errors.NewValueError("LoadStandardScaler", "artifact does not hold a fitted scaler")
	}
	return &s, nil
}

func (s *StandardScaler) requireFitted(method string) error {
	if s.State == nil {
		return errors.NewNotFittedError("StandardScaler", method)
	}
	return s.State.RequireFitted("StandardScaler", method)
}

// GetParams returns the scaler's hyperparameters.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String returns a short description.
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, len(s.Mean))
}

var (
	_ model.InverseTransformer = (*StandardScaler)(nil)
	_ model.Fittable           = (*StandardScaler)(nil)
	_ model.ParameterGetter    = (*StandardScaler)(nil)
)
