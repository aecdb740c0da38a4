// Package tensor holds the rank-3 batches fed to the convolutional network.
package tensor

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// Tensor is a batch of N sequences of Length steps with Channels values per
// step. Data is row-major: element (n, l, c) lives at n*Length*Channels +
// l*Channels + c.
type Tensor struct {
	N        int
	Length   int
	Channels int
	Data     []float64
}

// New allocates a zeroed tensor.
func New(n, length, channels int) *Tensor {
	return &Tensor{N: n, Length: length, Channels: channels, Data: make([]float64, n*length*channels)}
}

// FromMatrix copies X into a tensor of shape (rows, cols, 1).
func FromMatrix(X mat.Matrix) *Tensor {
	r, c := X.Dims()
	t := New(r, c, 1)
	if d, ok := X.(*mat.Dense); ok {
		raw := d.RawMatrix()
		for i := 0; i < r; i++ {
			copy(t.Data[i*c:(i+1)*c], raw.Data[i*raw.Stride:i*raw.Stride+c])
		}
		return t
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			t.Data[i*c+j] = X.At(i, j)
		}
	}
	return t
}

// Shape returns (N, Length, Channels).
func (t *Tensor) Shape() []int {
	return []int{t.N, t.Length, t.Channels}
}

// SampleSize is the number of values in one sample.
func (t *Tensor) SampleSize() int {
	return t.Length * t.Channels
}

// At returns element (n, l, c).
func (t *Tensor) At(n, l, c int) float64 {
	return t.Data[(n*t.Length+l)*t.Channels+c]
}

// Set assigns element (n, l, c).
func (t *Tensor) Set(n, l, c int, v float64) {
	t.Data[(n*t.Length+l)*t.Channels+c] = v
}

// Sample returns the slice backing sample n. It aliases t.Data.
func (t *Tensor) Sample(n int) []float64 {
	s := t.SampleSize()
	return t.Data[n*s : (n+1)*s]
}

// Gather copies the samples at idx into a new tensor, in that order.
func (t *Tensor) Gather(idx []int) *Tensor {
	out := New(len(idx), t.Length, t.Channels)
	s := t.SampleSize()
	for i, n := range idx {
		copy(out.Data[i*s:(i+1)*s], t.Sample(n))
	}
	return out
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := New(t.N, t.Length, t.Channels)
	copy(out.Data, t.Data)
	return out
}

// Squeeze drops the trailing unit channel axis and returns the (N, Length)
// matrix.
func (t *Tensor) Squeeze() (*mat.Dense, error) {
	if t.Channels != 1 {
		return nil, errors.NewInputShapeError("Squeeze", []int{t.N, t.Length, 1}, t.Shape())
	}
	if t.N == 0 || t.Length == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Squeeze")
	}
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return mat.NewDense(t.N, t.Length, data), nil
}

// Matrix views the tensor as an (N, Length*Channels) matrix sharing t.Data.
func (t *Tensor) Matrix() *mat.Dense {
	return mat.NewDense(t.N, t.SampleSize(), t.Data)
}
