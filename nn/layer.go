// Package nn implements the layers, optimizer, loss and training loop of the
// exoplanet light-curve classifier.
//
// Activations flow between layers as tensor.Tensor values of shape
// (N, Length, Channels). Flat activations, after Flatten or Dense, use Length 1.
// Layer shapes exclude the batch axis: [Length, Channels] for sequences and
// [Features] for flat activations.
//
//	model, err := nn.ExoplanetCNN(3197, 42)
//	model.Compile(nn.NewAdam(1e-4, nn.WithClipValue(1)), nn.BinaryCrossEntropy{})
//	history, err := model.Fit(ctx, xTrain, yTrain, nn.FitConfig{Epochs: 15, BatchSize: 64})
package nn

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/exotrain/tensor"
)

// Layer is one stage of a Sequential model.
type Layer interface {
	// Name is the layer's display name, unique within a model.
	Name() string
	setName(name string)

	// Build validates the input shape, allocates parameters that are not yet
	// present and returns the output shape. Parameters restored from disk are
	// kept.
	Build(input []int, rng *rand.Rand) ([]int, error)

	// Forward computes the layer output and caches what Backward needs.
	Forward(x *tensor.Tensor, training bool) *tensor.Tensor

	// Backward takes dLoss/dOutput for the last Forward call, accumulates
	// parameter gradients and returns dLoss/dInput.
	Backward(grad *tensor.Tensor) *tensor.Tensor

	// Params returns the trainable parameters.
	Params() []*Param
}

// Param is a trainable weight array and the gradient accumulated for it.
type Param struct {
	Name  string
	Shape []int
	Value []float64

	grad []float64
}

func newParam(name string, shape ...int) *Param {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Param{Name: name, Shape: shape, Value: make([]float64, n), grad: make([]float64, n)}
}

// Grad returns the accumulated gradient.
func (p *Param) Grad() []float64 {
	if len(p.grad) != len(p.Value) {
		p.grad = make([]float64, len(p.Value))
	}
	return p.grad
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	g := p.Grad()
	for i := range g {
		g[i] = 0
	}
}

// Size returns the number of scalars in the parameter.
func (p *Param) Size() int {
	return len(p.Value)
}

// ready reports whether p holds values of the expected size.
func (p *Param) ready(n int) bool {
	return p != nil && len(p.Value) == n
}

// glorotUniform fills p with U(-limit, limit), limit = sqrt(6/(fanIn+fanOut)).
func glorotUniform(p *Param, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.Value {
		p.Value[i] = (2*rng.Float64() - 1) * limit
	}
}

// Activation names an element-wise activation function.
type Activation string

const (
	Linear  Activation = "linear"
	ReLU    Activation = "relu"
	Sigmoid Activation = "sigmoid"
)

func (a Activation) valid() bool {
	switch a {
	case Linear, ReLU, Sigmoid, "":
		return true
	}
	return false
}

func (a Activation) apply(z []float64) {
	switch a {
	case ReLU:
		for i, v := range z {
			if v < 0 {
				z[i] = 0
			}
		}
	case Sigmoid:
		for i, v := range z {
			z[i] = sigmoid(v)
		}
	}
}

// derivative multiplies grad in place by the activation derivative, expressed
// through the activation output out.
func (a Activation) derivative(grad, out []float64) {
	switch a {
	case ReLU:
		for i, o := range out {
			if o <= 0 {
				grad[i] = 0
			}
		}
	case Sigmoid:
		for i, o := range out {
			grad[i] *= o * (1 - o)
		}
	}
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// asTensor returns a tensor with the given per-sample shape over data.
func asTensor(n int, shape []int, data []float64) *tensor.Tensor {
	if len(shape) == 1 {
		return &tensor.Tensor{N: n, Length: 1, Channels: shape[0], Data: data}
	}
	return &tensor.Tensor{N: n, Length: shape[0], Channels: shape[1], Data: data}
}
