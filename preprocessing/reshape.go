package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/tensor"
)

// ExpandDims appends a unit channel axis: an (N, F) matrix becomes an (N, F, 1)
// tensor. Values are copied.
func ExpandDims(X mat.Matrix) *tensor.Tensor {
	return tensor.FromMatrix(X)
}
