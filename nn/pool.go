package nn

import (
	"math/rand"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
	"github.com/YuminosukeSato/exotrain/tensor"
)

// MaxPool1D takes the maximum over non-overlapping windows of PoolSize steps.
// Trailing steps that do not fill a window are dropped.
type MaxPool1D struct {
	LayerName string
	PoolSize  int

	length   int
	channels int
	outLen   int
	argmax   []int
}

// NewMaxPool1D creates a pooling layer whose stride equals its window.
func NewMaxPool1D(poolSize int) *MaxPool1D {
	return &MaxPool1D{PoolSize: poolSize}
}

func (l *MaxPool1D) Name() string        { return l.LayerName }
func (l *MaxPool1D) setName(name string) { l.LayerName = name }
func (l *MaxPool1D) Params() []*Param    { return nil }

// Build implements Layer.
func (l *MaxPool1D) Build(input []int, _ *rand.Rand) ([]int, error) {
	if len(input) != 2 {
		return nil, errors.NewInputShapeError("MaxPool1D.Build", []int{-1, -1}, input)
	}
	if l.PoolSize < 1 {
		return nil, errors.NewValidationError("pool_size", "must be positive", l.PoolSize)
	}
	l.length, l.channels = input[0], input[1]
	l.outLen = l.length / l.PoolSize
	if l.outLen < 1 {
		return nil, errors.NewInputShapeError("MaxPool1D.Build", []int{l.PoolSize, l.channels}, input)
	}
	return []int{l.outLen, l.channels}, nil
}

// Forward implements Layer. The first maximum of a window wins ties.
func (l *MaxPool1D) Forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	c := l.channels
	out := tensor.New(x.N, l.outLen, c)
	l.argmax = make([]int, len(out.Data))
	for n := 0; n < x.N; n++ {
		in := x.Sample(n)
		base := n * l.length * c
		for t := 0; t < l.outLen; t++ {
			for ch := 0; ch < c; ch++ {
				best := t*l.PoolSize*c + ch
				for k := 1; k < l.PoolSize; k++ {
					if i := (t*l.PoolSize+k)*c + ch; in[i] > in[best] {
						best = i
					}
				}
				o := (n*l.outLen+t)*c + ch
				out.Data[o] = in[best]
				l.argmax[o] = base + best
			}
		}
	}
	return out
}

// Backward routes each gradient to the position that won its window.
func (l *MaxPool1D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	dx := tensor.New(grad.N, l.length, l.channels)
	for o, g := range grad.Data {
		dx.Data[l.argmax[o]] += g
	}
	return dx
}

// Flatten turns (Length, Channels) sequences into flat feature vectors in
// row-major order.
type Flatten struct {
	LayerName string

	input []int
}

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

func (l *Flatten) Name() string        { return l.LayerName }
func (l *Flatten) setName(name string) { l.LayerName = name }
func (l *Flatten) Params() []*Param    { return nil }

// Build implements Layer.
func (l *Flatten) Build(input []int, _ *rand.Rand) ([]int, error) {
	if len(input) == 0 {
		return nil, errors.NewInputShapeError("Flatten.Build", []int{-1, -1}, input)
	}
	l.input = append([]int(nil), input...)
	return []int{shapeSize(input)}, nil
}

// Forward implements Layer. The data is shared, not copied.
func (l *Flatten) Forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	return &tensor.Tensor{N: x.N, Length: 1, Channels: x.SampleSize(), Data: x.Data}
}

// Backward implements Layer.
func (l *Flatten) Backward(grad *tensor.Tensor) *tensor.Tensor {
	return asTensor(grad.N, l.input, grad.Data)
}
