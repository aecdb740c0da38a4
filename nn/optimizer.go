package nn

import (
	"math"

	"github.com/YuminosukeSato/exotrain/core/model"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	model.ParameterGetter
	Step(params []*Param) error
}

// Adam is the Adam optimizer with optional per-element gradient clipping.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	// ClipValue bounds every gradient element to [-ClipValue, ClipValue] before
	// the update. Zero disables clipping.
	ClipValue float64

	iterations int
	m          map[*Param][]float64
	v          map[*Param][]float64
}

// AdamOption configures Adam.
type AdamOption func(*Adam)

// WithClipValue clips each gradient element to [-c, c].
func WithClipValue(c float64) AdamOption {
	return func(a *Adam) {
		a.ClipValue = c
	}
}

// WithBetas sets the decay rates of the moment estimates.
func WithBetas(beta1, beta2 float64) AdamOption {
	return func(a *Adam) {
		a.Beta1, a.Beta2 = beta1, beta2
	}
}

// WithEpsilon sets the denominator fuzz term.
func WithEpsilon(eps float64) AdamOption {
	return func(a *Adam) {
		a.Epsilon = eps
	}
}

// NewAdam creates Adam with beta1 0.9, beta2 0.999 and epsilon 1e-7.
func NewAdam(learningRate float64, options ...AdamOption) *Adam {
	a := &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		m:            make(map[*Param][]float64),
		v:            make(map[*Param][]float64),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Iterations returns the number of steps taken.
func (a *Adam) Iterations() int {
	return a.iterations
}

// GetParams returns the optimizer's hyperparameters.
func (a *Adam) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate": a.LearningRate,
		"beta_1":        a.Beta1,
		"beta_2":        a.Beta2,
		"epsilon":       a.Epsilon,
		"clipvalue":     a.ClipValue,
	}
}

func (a *Adam) validate() error {
	if a.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", a.LearningRate)
	}
	if a.Beta1 < 0 || a.Beta1 >= 1 || a.Beta2 < 0 || a.Beta2 >= 1 {
		return errors.NewValidationError("betas", "must be in [0, 1)", []float64{a.Beta1, a.Beta2})
	}
	if a.ClipValue < 0 {
		return errors.NewValidationError("clipvalue", "must not be negative", a.ClipValue)
	}
	return nil
}

// Step applies one update to every parameter and clears its gradient.
//
//	lr_t = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g^2
//	w -= lr_t * m / (sqrt(v) + epsilon)
func (a *Adam) Step(params []*Param) error {
	if err := a.validate(); err != nil {
		return err
	}
	if a.m == nil {
		a.m = make(map[*Param][]float64)
		a.v = make(map[*Param][]float64)
	}

	a.iterations++
	t := float64(a.iterations)
	lrT := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for _, p := range params {
		g := p.Grad()
		m, ok := a.m[p]
		if !ok {
			m = make([]float64, len(p.Value))
			a.m[p] = m
			a.v[p] = make([]float64, len(p.Value))
		}
		v := a.v[p]

		for i := range p.Value {
			gi := g[i]
			if a.ClipValue > 0 {
				gi = errors.ClipValue(gi, -a.ClipValue, a.ClipValue)
			}
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*gi
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*gi*gi
			p.Value[i] -= lrT * m[i] / (math.Sqrt(v[i]) + a.Epsilon)
		}
		if err := errors.CheckValues("Adam.Step", p.Value, a.iterations); err != nil {
			return err
		}
		p.ZeroGrad()
	}
	return nil
}
