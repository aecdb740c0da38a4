package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/core/parallel"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
	"github.com/YuminosukeSato/exotrain/tensor"
)

// Conv1D is a stride-1 one-dimensional convolution over (Length, Channels)
// sequences. With "same" padding the output keeps the input length; "valid"
// padding shrinks it by KernelSize-1.
//
// The kernel is stored as (KernelSize, InChannels, Filters) in row-major order,
// so each output step is one row of im2col(x) times the kernel viewed as a
// (KernelSize*InChannels, Filters) matrix.
type Conv1D struct {
	LayerName  string
	Filters    int
	KernelSize int
	Padding    string
	Activation Activation
	InChannels int

	Kernel *Param
	Bias   *Param

	length int
	outLen int
	padL   int

	input  *tensor.Tensor
	output *tensor.Tensor
}

// NewConv1D creates a convolution with the given number of filters.
func NewConv1D(filters, kernelSize int, padding string, activation Activation) *Conv1D {
	return &Conv1D{Filters: filters, KernelSize: kernelSize, Padding: padding, Activation: activation}
}

func (l *Conv1D) Name() string        { return l.LayerName }
func (l *Conv1D) setName(name string) { l.LayerName = name }

// Params returns the kernel and bias.
func (l *Conv1D) Params() []*Param { return []*Param{l.Kernel, l.Bias} }

// Build implements Layer.
func (l *Conv1D) Build(input []int, rng *rand.Rand) ([]int, error) {
	if len(input) != 2 {
		return nil, errors.NewInputShapeError("Conv1D.Build", []int{-1, -1}, input)
	}
	if l.Filters < 1 || l.KernelSize < 1 {
		return nil, errors.NewValidationError("filters/kernel_size", "must be positive", []int{l.Filters, l.KernelSize})
	}
	if !l.Activation.valid() {
		return nil, errors.NewValidationError("activation", "unknown activation", l.Activation)
	}

	l.length = input[0]
	switch l.Padding {
	case "same":
		l.padL = (l.KernelSize - 1) / 2
		l.outLen = l.length
	case "valid", "":
		l.Padding = "valid"
		l.padL = 0
		l.outLen = l.length - l.KernelSize + 1
	default:
		return nil, errors.NewValidationError("padding", "must be same or valid", l.Padding)
	}
	if l.outLen < 1 {
		return nil, errors.NewInputShapeError("Conv1D.Build", []int{l.KernelSize, input[1]}, input)
	}

	if l.InChannels != 0 && l.InChannels != input[1] {
		return nil, errors.NewDimensionError("Conv1D.Build", l.InChannels, input[1], 2)
	}
	l.InChannels = input[1]

	rows := l.KernelSize * l.InChannels
	if !l.Kernel.ready(rows * l.Filters) {
		l.Kernel = newParam("kernel", l.KernelSize, l.InChannels, l.Filters)
		glorotUniform(l.Kernel, rows, l.KernelSize*l.Filters, rng)
	}
	if !l.Bias.ready(l.Filters) {
		l.Bias = newParam("bias", l.Filters)
	}
	return []int{l.outLen, l.Filters}, nil
}

// im2col writes the receptive fields of sample n into cols, an
// (outLen, KernelSize*InChannels) row-major buffer. Out-of-range steps read 0.
func (l *Conv1D) im2col(x *tensor.Tensor, n int, cols []float64) {
	cin := l.InChannels
	width := l.KernelSize * cin
	sample := x.Sample(n)
	for t := 0; t < l.outLen; t++ {
		row := cols[t*width : (t+1)*width]
		for k := 0; k < l.KernelSize; k++ {
			src := t + k - l.padL
			dst := row[k*cin : (k+1)*cin]
			if src < 0 || src >= l.length {
				for c := range dst {
					dst[c] = 0
				}
				continue
			}
			copy(dst, sample[src*cin:(src+1)*cin])
		}
	}
}

// Forward implements Layer.
func (l *Conv1D) Forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	width := l.KernelSize * l.InChannels
	kernel := mat.NewDense(width, l.Filters, l.Kernel.Value)
	out := tensor.New(x.N, l.outLen, l.Filters)

	parallel.ParallelizeWithThreshold(x.N, 1, func(start, end int) {
		cols := make([]float64, l.outLen*width)
		colsMat := mat.NewDense(l.outLen, width, cols)
		for n := start; n < end; n++ {
			l.im2col(x, n, cols)
			z := out.Sample(n)
			mat.NewDense(l.outLen, l.Filters, z).Mul(colsMat, kernel)
			for t := 0; t < l.outLen; t++ {
				row := z[t*l.Filters : (t+1)*l.Filters]
				for f := range row {
					row[f] += l.Bias.Value[f]
				}
			}
			l.Activation.apply(z)
		}
	})

	l.input, l.output = x, out
	return out
}

// Backward implements Layer. Per-sample kernel gradients are summed in sample
// order so results do not depend on scheduling.
func (l *Conv1D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	x := l.input
	cin := l.InChannels
	width := l.KernelSize * cin
	kernel := mat.NewDense(width, l.Filters, l.Kernel.Value)

	dz := make([]float64, len(grad.Data))
	copy(dz, grad.Data)
	l.Activation.derivative(dz, l.output.Data)

	dx := tensor.New(x.N, l.length, cin)
	partial := make([]float64, x.N*width*l.Filters)

	parallel.ParallelizeWithThreshold(x.N, 1, func(start, end int) {
		cols := make([]float64, l.outLen*width)
		colsMat := mat.NewDense(l.outLen, width, cols)
		dcols := mat.NewDense(l.outLen, width, nil)
		for n := start; n < end; n++ {
			l.im2col(x, n, cols)
			dzn := mat.NewDense(l.outLen, l.Filters, dz[n*l.outLen*l.Filters:(n+1)*l.outLen*l.Filters])

			mat.NewDense(width, l.Filters, partial[n*width*l.Filters:(n+1)*width*l.Filters]).
				Mul(colsMat.T(), dzn)

			dcols.Mul(dzn, kernel.T())
			sample := dx.Sample(n)
			for t := 0; t < l.outLen; t++ {
				row := dcols.RawRowView(t)
				for k := 0; k < l.KernelSize; k++ {
					src := t + k - l.padL
					if src < 0 || src >= l.length {
						continue
					}
					dst := sample[src*cin : (src+1)*cin]
					for c := range dst {
						dst[c] += row[k*cin+c]
					}
				}
			}
		}
	})

	kg := l.Kernel.Grad()
	bg := l.Bias.Grad()
	size := width * l.Filters
	for n := 0; n < x.N; n++ {
		p := partial[n*size : (n+1)*size]
		for i, v := range p {
			kg[i] += v
		}
		for t := 0; t < l.outLen; t++ {
			row := dz[(n*l.outLen+t)*l.Filters : (n*l.outLen+t+1)*l.Filters]
			for f, v := range row {
				bg[f] += v
			}
		}
	}
	return dx
}
