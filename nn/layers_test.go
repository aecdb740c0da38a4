package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/exotrain/tensor"
)

func randomTensor(rng *rand.Rand, n int, shape []int) *tensor.Tensor {
	t := asTensor(n, shape, make([]float64, n*shapeSize(shape)))
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64()
	}
	return t
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// checkGradients compares Backward against central differences of
// L = sum(out * r) for a random r, both for the input and every parameter.
func checkGradients(t *testing.T, layer Layer, inShape []int, n int) {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	outShape, err := layer.Build(inShape, rng)
	require.NoError(t, err)

	x := randomTensor(rng, n, inShape)
	r := make([]float64, n*shapeSize(outShape))
	for i := range r {
		r[i] = rng.NormFloat64()
	}
	objective := func() float64 {
		return dot(layer.Forward(x, true).Data, r)
	}

	for _, p := range layer.Params() {
		p.ZeroGrad()
	}
	out := layer.Forward(x, true)
	dx := layer.Backward(asTensor(n, outShape, append([]float64(nil), r...)))
	require.Equal(t, len(out.Data), len(r))
	require.Equal(t, len(x.Data), len(dx.Data))

	const h = 1e-6
	tolerance := func(want float64) float64 { return 1e-5 + 1e-4*math.Abs(want) }

	for i := range x.Data {
		orig := x.Data[i]
		x.Data[i] = orig + h
		plus := objective()
		x.Data[i] = orig - h
		minus := objective()
		x.Data[i] = orig
		numeric := (plus - minus) / (2 * h)
		assert.InDelta(t, numeric, dx.Data[i], tolerance(numeric), "%s input[%d]", layer.Name(), i)
	}

	for _, p := range layer.Params() {
		grad := append([]float64(nil), p.Grad()...)
		for i := range p.Value {
			orig := p.Value[i]
			p.Value[i] = orig + h
			plus := objective()
			p.Value[i] = orig - h
			minus := objective()
			p.Value[i] = orig
			numeric := (plus - minus) / (2 * h)
			assert.InDelta(t, numeric, grad[i], tolerance(numeric), "%s %s[%d]", layer.Name(), p.Name, i)
		}
	}
}

func TestConv1DGradients(t *testing.T) {
	t.Run("same relu", func(t *testing.T) {
		checkGradients(t, NewConv1D(3, 5, "same", ReLU), []int{7, 2}, 3)
	})
	t.Run("valid linear", func(t *testing.T) {
		checkGradients(t, NewConv1D(2, 3, "valid", Linear), []int{6, 1}, 2)
	})
}

func TestConv1DSamePaddingMatchesDirectSum(t *testing.T) {
	layer := NewConv1D(1, 3, "same", Linear)
	_, err := layer.Build([]int{4, 1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	copy(layer.Kernel.Value, []float64{1, 2, 3})
	layer.Bias.Value[0] = 0.5

	x := &tensor.Tensor{N: 1, Length: 4, Channels: 1, Data: []float64{1, 0, -1, 2}}
	out := layer.Forward(x, false)
	// y[t] = x[t-1]*1 + x[t]*2 + x[t+1]*3 + 0.5, zero outside the sequence
	want := []float64{
		0*1 + 1*2 + 0*3 + 0.5,
		1*1 + 0*2 + -1*3 + 0.5,
		0*1 + -1*2 + 2*3 + 0.5,
		-1*1 + 2*2 + 0*3 + 0.5,
	}
	assert.InDeltaSlice(t, want, out.Data, 1e-12)
	assert.Equal(t, []int{1, 4, 1}, out.Shape())
}

func TestBatchNormGradients(t *testing.T) {
	t.Run("sequence", func(t *testing.T) {
		bn := NewBatchNorm()
		checkGradients(t, bn, []int{5, 3}, 4)
	})
	t.Run("flat", func(t *testing.T) {
		checkGradients(t, NewBatchNorm(), []int{4}, 6)
	})
}

func TestBatchNormStatistics(t *testing.T) {
	bn := NewBatchNorm()
	_, err := bn.Build([]int{2, 1}, nil)
	require.NoError(t, err)

	x := &tensor.Tensor{N: 2, Length: 2, Channels: 1, Data: []float64{1, 2, 3, 4}}
	out := bn.Forward(x, true)

	var mean, sq float64
	for _, v := range out.Data {
		mean += v
		sq += v * v
	}
	assert.InDelta(t, 0, mean/4, 1e-12)
	// variance 1.25 normalized with epsilon 1e-3
	assert.InDelta(t, 1.25/(1.25+1e-3), sq/4, 1e-9)

	assert.InDelta(t, 0.01*2.5, bn.MovingMean[0], 1e-12)
	assert.InDelta(t, 0.99+0.01*1.25, bn.MovingVar[0], 1e-12)

	inf := bn.Forward(x, false)
	want := (1 - bn.MovingMean[0]) / math.Sqrt(bn.MovingVar[0]+1e-3)
	assert.InDelta(t, want, inf.Data[0], 1e-12, "inference uses moving statistics")
}

func TestMaxPool1D(t *testing.T) {
	pool := NewMaxPool1D(2)
	out, err := pool.Build([]int{5, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, out, "the trailing step is dropped")

	x := &tensor.Tensor{N: 1, Length: 5, Channels: 2, Data: []float64{
		1, 8,
		3, 2,
		5, 5,
		4, 6,
		9, 9,
	}}
	y := pool.Forward(x, true)
	assert.Equal(t, []float64{3, 8, 5, 6}, y.Data)

	dx := pool.Backward(&tensor.Tensor{N: 1, Length: 2, Channels: 2, Data: []float64{10, 20, 30, 40}})
	assert.Equal(t, []float64{0, 20, 10, 0, 30, 0, 0, 40, 0, 0}, dx.Data)

	checkGradients(t, NewMaxPool1D(2), []int{6, 3}, 2)
}

func TestFlattenRoundTrip(t *testing.T) {
	f := NewFlatten()
	out, err := f.Build([]int{3, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, out)

	x := &tensor.Tensor{N: 2, Length: 3, Channels: 2, Data: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}
	y := f.Forward(x, true)
	assert.Equal(t, []int{2, 1, 6}, y.Shape())

	dx := f.Backward(y)
	assert.Equal(t, []int{2, 3, 2}, dx.Shape())
	assert.Equal(t, x.Data, dx.Data)
}

func TestDenseGradients(t *testing.T) {
	for _, act := range []Activation{Linear, ReLU, Sigmoid} {
		t.Run(string(act), func(t *testing.T) {
			checkGradients(t, NewDense(3, act), []int{5}, 4)
		})
	}
}

func TestDenseBuildRejectsSequences(t *testing.T) {
	_, err := NewDense(3, ReLU).Build([]int{4, 2}, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestDropout(t *testing.T) {
	d := NewDropout(0.5)
	_, err := d.Build([]int{1000}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	x := &tensor.Tensor{N: 1, Length: 1, Channels: 1000, Data: make([]float64, 1000)}
	for i := range x.Data {
		x.Data[i] = 1
	}

	assert.Equal(t, x.Data, d.Forward(x, false).Data, "inference is the identity")

	out := d.Forward(x, true)
	zeros := 0
	for _, v := range out.Data {
		if v == 0 {
			zeros++
		} else {
			assert.Equal(t, 2.0, v, "survivors are scaled by 1/(1-rate)")
		}
	}
	assert.InDelta(t, 500, zeros, 60)

	grad := d.Backward(x)
	assert.Equal(t, out.Data, grad.Data, "gradient uses the same mask")

	_, err = NewDropout(1).Build([]int{3}, nil)
	assert.Error(t, err)
}
