package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
	"github.com/YuminosukeSato/exotrain/tensor"
)

// Dense is a fully connected layer over flat inputs.
type Dense struct {
	LayerName  string
	Units      int
	Activation Activation
	InFeatures int

	Kernel *Param
	Bias   *Param

	input  *tensor.Tensor
	output *tensor.Tensor
	logits []float64
}

// NewDense creates a fully connected layer.
func NewDense(units int, activation Activation) *Dense {
	return &Dense{Units: units, Activation: activation}
}

func (l *Dense) Name() string        { return l.LayerName }
func (l *Dense) setName(name string) { l.LayerName = name }

// Params returns the kernel and bias.
func (l *Dense) Params() []*Param { return []*Param{l.Kernel, l.Bias} }

// Build implements Layer.
func (l *Dense) Build(input []int, rng *rand.Rand) ([]int, error) {
	if len(input) != 1 {
		return nil, errors.NewInputShapeError("Dense.Build", []int{-1}, input)
	}
	if l.Units < 1 {
		return nil, errors.NewValidationError("units", "must be positive", l.Units)
	}
	if !l.Activation.valid() {
		return nil, errors.NewValidationError("activation", "unknown activation", l.Activation)
	}
	if l.InFeatures != 0 && l.InFeatures != input[0] {
		return nil, errors.NewDimensionError("Dense.Build", l.InFeatures, input[0], 1)
	}
	l.InFeatures = input[0]

	if !l.Kernel.ready(l.InFeatures * l.Units) {
		l.Kernel = newParam("kernel", l.InFeatures, l.Units)
		glorotUniform(l.Kernel, l.InFeatures, l.Units, rng)
	}
	if !l.Bias.ready(l.Units) {
		l.Bias = newParam("bias", l.Units)
	}
	return []int{l.Units}, nil
}

// Forward implements Layer.
func (l *Dense) Forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	out := tensor.New(x.N, 1, l.Units)
	z := mat.NewDense(x.N, l.Units, out.Data)
	z.Mul(mat.NewDense(x.N, l.InFeatures, x.Data), mat.NewDense(l.InFeatures, l.Units, l.Kernel.Value))
	for n := 0; n < x.N; n++ {
		row := z.RawRowView(n)
		for j := range row {
			row[j] += l.Bias.Value[j]
		}
	}
	l.logits = nil
	if l.Activation == Sigmoid {
		l.logits = append([]float64(nil), out.Data...)
	}
	l.Activation.apply(out.Data)

	l.input, l.output = x, out
	return out
}

// Logits returns the pre-activation output of the last Forward call of a
// sigmoid layer, or nil.
func (l *Dense) Logits() []float64 {
	return l.logits
}

// Backward implements Layer.
func (l *Dense) Backward(grad *tensor.Tensor) *tensor.Tensor {
	dz := make([]float64, len(grad.Data))
	copy(dz, grad.Data)
	l.Activation.derivative(dz, l.output.Data)
	return l.backwardLinear(grad.N, dz)
}

// backwardLinear backpropagates a gradient taken with respect to the
// pre-activation output.
func (l *Dense) backwardLinear(n int, dz []float64) *tensor.Tensor {
	dzMat := mat.NewDense(n, l.Units, dz)

	var dw mat.Dense
	dw.Mul(mat.NewDense(n, l.InFeatures, l.input.Data).T(), dzMat)
	kg := l.Kernel.Grad()
	raw := dw.RawMatrix()
	for i := 0; i < l.InFeatures; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+l.Units]
		for j, v := range row {
			kg[i*l.Units+j] += v
		}
	}

	bg := l.Bias.Grad()
	for i := 0; i < n; i++ {
		for j, v := range dzMat.RawRowView(i) {
			bg[j] += v
		}
	}

	dx := tensor.New(n, 1, l.InFeatures)
	mat.NewDense(n, l.InFeatures, dx.Data).Mul(dzMat, mat.NewDense(l.InFeatures, l.Units, l.Kernel.Value).T())
	return dx
}

// Dropout zeroes a fraction Rate of its inputs during training and scales the
// survivors by 1/(1-Rate). At inference it is the identity.
type Dropout struct {
	LayerName string
	Rate      float64

	shape []int
	rng   *rand.Rand
	mask  []float64
}

// NewDropout creates a dropout layer.
func NewDropout(rate float64) *Dropout {
	return &Dropout{Rate: rate}
}

func (l *Dropout) Name() string        { return l.LayerName }
func (l *Dropout) setName(name string) { l.LayerName = name }
func (l *Dropout) Params() []*Param    { return nil }

// Build implements Layer. The layer draws its masks from rng.
func (l *Dropout) Build(input []int, rng *rand.Rand) ([]int, error) {
	if l.Rate < 0 || l.Rate >= 1 {
		return nil, errors.NewValidationError("rate", "must be in [0, 1)", l.Rate)
	}
	l.shape = append([]int(nil), input...)
	l.rng = rng
	return l.shape, nil
}

// Forward implements Layer.
func (l *Dropout) Forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	if !training || l.Rate == 0 {
		l.mask = nil
		return x
	}
	keep := 1 - l.Rate
	out := &tensor.Tensor{N: x.N, Length: x.Length, Channels: x.Channels, Data: make([]float64, len(x.Data))}
	l.mask = make([]float64, len(x.Data))
	for i, v := range x.Data {
		if l.rng.Float64() < keep {
			l.mask[i] = 1 / keep
			out.Data[i] = v / keep
		}
	}
	return out
}

// Backward implements Layer.
func (l *Dropout) Backward(grad *tensor.Tensor) *tensor.Tensor {
	if l.mask == nil {
		return grad
	}
	dx := &tensor.Tensor{N: grad.N, Length: grad.Length, Channels: grad.Channels, Data: make([]float64, len(grad.Data))}
	for i, g := range grad.Data {
		dx.Data[i] = g * l.mask[i]
	}
	return dx
}
