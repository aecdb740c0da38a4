package nn

import (
	"math"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// Loss scores predictions against targets and differentiates the score.
type Loss interface {
	Name() string
	// Loss returns the mean loss over the batch.
	Loss(pred, target []float64) float64
	// Gradient returns dLoss/dPred for the mean loss.
	Gradient(pred, target []float64) []float64
}

// BinaryCrossEntropy is the mean binary cross-entropy of probabilities.
// Predictions are clipped to [Epsilon, 1-Epsilon]; a zero Epsilon means 1e-7.
type BinaryCrossEntropy struct {
	Epsilon float64
}

func (l BinaryCrossEntropy) eps() float64 {
	if l.Epsilon > 0 {
		return l.Epsilon
	}
	return 1e-7
}

// Name implements Loss.
func (BinaryCrossEntropy) Name() string { return "binary_crossentropy" }

// Loss implements Loss.
func (l BinaryCrossEntropy) Loss(pred, target []float64) float64 {
	eps := l.eps()
	var sum float64
	for i, p := range pred {
		p = errors.ClipValue(p, eps, 1-eps)
		y := target[i]
		sum -= y*math.Log(p) + (1-y)*math.Log(1-p)
	}
	return sum / float64(len(pred))
}

// Gradient implements Loss. Inside the clipping range the gradient is
// (p - y) / (p (1 - p)) / N; outside it is zero.
func (l BinaryCrossEntropy) Gradient(pred, target []float64) []float64 {
	eps := l.eps()
	n := float64(len(pred))
	grad := make([]float64, len(pred))
	for i, p := range pred {
		if p < eps || p > 1-eps {
			continue
		}
		y := target[i]
		grad[i] = (-y/p + (1-y)/(1-p)) / n
	}
	return grad
}

// logitLoss is implemented by losses that can be computed from the
// pre-sigmoid logits, which stays accurate when the sigmoid saturates.
type logitLoss interface {
	LossFromLogits(logits, target []float64) float64
	GradientFromLogits(logits, target []float64) []float64
}

// LossFromLogits returns the mean of max(z,0) - z*y + log(1+exp(-|z|)).
func (BinaryCrossEntropy) LossFromLogits(logits, target []float64) float64 {
	var sum float64
	for i, z := range logits {
		sum += math.Max(z, 0) - z*target[i] + math.Log1p(math.Exp(-math.Abs(z)))
	}
	return sum / float64(len(logits))
}

// GradientFromLogits returns (sigmoid(z) - y) / N.
func (BinaryCrossEntropy) GradientFromLogits(logits, target []float64) []float64 {
	n := float64(len(logits))
	grad := make([]float64, len(logits))
	for i, z := range logits {
		grad[i] = (sigmoid(z) - target[i]) / n
	}
	return grad
}
