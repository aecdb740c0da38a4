package model

import "gonum.org/v1/gonum/mat"

// Transformer learns parameters from data and applies them.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer can undo its transformation.
type InverseTransformer interface {
	Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// Fittable is implemented by estimators that track fitted state.
type Fittable interface {
	IsFitted() bool
}

// ParameterGetter exposes hyperparameters for logging.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
