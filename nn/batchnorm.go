package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
	"github.com/YuminosukeSato/exotrain/tensor"
)

// BatchNorm normalizes each channel over the batch and length axes. Training
// uses batch statistics and updates the moving averages; inference uses the
// moving averages.
type BatchNorm struct {
	LayerName string
	Momentum  float64
	Epsilon   float64

	Gamma      *Param
	Beta       *Param
	MovingMean []float64
	MovingVar  []float64

	shape []int

	xhat   []float64
	invStd []float64
}

// NewBatchNorm creates a batch normalization layer with momentum 0.99 and
// epsilon 1e-3.
func NewBatchNorm() *BatchNorm {
	return &BatchNorm{Momentum: 0.99, Epsilon: 1e-3}
}

func (l *BatchNorm) Name() string        { return l.LayerName }
func (l *BatchNorm) setName(name string) { l.LayerName = name }

// Params returns gamma and beta. The moving statistics are not trainable.
func (l *BatchNorm) Params() []*Param { return []*Param{l.Gamma, l.Beta} }

func (l *BatchNorm) channels() int {
	return l.shape[len(l.shape)-1]
}

// Build implements Layer.
func (l *BatchNorm) Build(input []int, _ *rand.Rand) ([]int, error) {
	if len(input) < 1 || len(input) > 2 {
		return nil, errors.NewInputShapeError("BatchNorm.Build", []int{-1, -1}, input)
	}
	if l.Momentum < 0 || l.Momentum >= 1 {
		return nil, errors.NewValidationError("momentum", "must be in [0, 1)", l.Momentum)
	}
	if l.Epsilon <= 0 {
		return nil, errors.NewValidationError("epsilon", "must be positive", l.Epsilon)
	}
	l.shape = append([]int(nil), input...)
	c := l.channels()

	if !l.Gamma.ready(c) {
		l.Gamma = newParam("gamma", c)
		for i := range l.Gamma.Value {
			l.Gamma.Value[i] = 1
		}
	}
	if !l.Beta.ready(c) {
		l.Beta = newParam("beta", c)
	}
	if len(l.MovingMean) != c {
		l.MovingMean = make([]float64, c)
	}
	if len(l.MovingVar) != c {
		l.MovingVar = make([]float64, c)
		for i := range l.MovingVar {
			l.MovingVar[i] = 1
		}
	}
	return l.shape, nil
}

// Forward implements Layer.
func (l *BatchNorm) Forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	c := l.channels()
	m := len(x.Data) / c
	out := &tensor.Tensor{N: x.N, Length: x.Length, Channels: x.Channels, Data: make([]float64, len(x.Data))}

	if !training {
		for ch := 0; ch < c; ch++ {
			inv := 1 / math.Sqrt(l.MovingVar[ch]+l.Epsilon)
			g, b, mu := l.Gamma.Value[ch], l.Beta.Value[ch], l.MovingMean[ch]
			for i := ch; i < len(x.Data); i += c {
				out.Data[i] = g*(x.Data[i]-mu)*inv + b
			}
		}
		return out
	}

	l.xhat = make([]float64, len(x.Data))
	l.invStd = make([]float64, c)
	column := make([]float64, m)
	for ch := 0; ch < c; ch++ {
		for i, j := ch, 0; i < len(x.Data); i, j = i+c, j+1 {
			column[j] = x.Data[i]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		inv := 1 / math.Sqrt(variance+l.Epsilon)
		l.invStd[ch] = inv

		g, b := l.Gamma.Value[ch], l.Beta.Value[ch]
		for i := ch; i < len(x.Data); i += c {
			xh := (x.Data[i] - mean) * inv
			l.xhat[i] = xh
			out.Data[i] = g*xh + b
		}

		l.MovingMean[ch] = l.MovingMean[ch]*l.Momentum + mean*(1-l.Momentum)
		l.MovingVar[ch] = l.MovingVar[ch]*l.Momentum + variance*(1-l.Momentum)
	}
	return out
}

// Backward implements Layer for the training-mode forward pass.
func (l *BatchNorm) Backward(grad *tensor.Tensor) *tensor.Tensor {
	c := l.channels()
	m := float64(len(grad.Data) / c)
	dx := &tensor.Tensor{N: grad.N, Length: grad.Length, Channels: grad.Channels, Data: make([]float64, len(grad.Data))}
	gg, bg := l.Gamma.Grad(), l.Beta.Grad()

	for ch := 0; ch < c; ch++ {
		var sumG, sumGX float64
		for i := ch; i < len(grad.Data); i += c {
			sumG += grad.Data[i]
			sumGX += grad.Data[i] * l.xhat[i]
		}
		gg[ch] += sumGX
		bg[ch] += sumG

		scale := l.Gamma.Value[ch] * l.invStd[ch] / m
		for i := ch; i < len(grad.Data); i += c {
			dx.Data[i] = scale * (m*grad.Data[i] - sumG - l.xhat[i]*sumGX)
		}
	}
	return dx
}
