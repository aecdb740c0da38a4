package nn

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/metrics"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
	"github.com/YuminosukeSato/exotrain/pkg/log"
	"github.com/YuminosukeSato/exotrain/tensor"
)

// Sequential is a linear stack of layers.
type Sequential struct {
	ModelName  string
	InputShape []int
	Layers     []Layer
	// Seed drives weight initialization, shuffling and dropout masks.
	Seed int64

	optimizer   Optimizer
	loss        Loss
	rng         *rand.Rand
	layerShapes [][]int
	built       bool
}

// NewSequential builds a model for samples of inputShape, [Length, Channels].
func NewSequential(name string, inputShape []int, seed int64, layers ...Layer) (*Sequential, error) {
	s := &Sequential{
		ModelName:  name,
		InputShape: append([]int(nil), inputShape...),
		Layers:     layers,
		Seed:       seed,
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func layerKind(l Layer) string {
	switch l.(type) {
	case *Conv1D:
		return "conv1d"
	case *BatchNorm:
		return "batch_normalization"
	case *MaxPool1D:
		return "max_pooling1d"
	case *Flatten:
		return "flatten"
	case *Dense:
		return "dense"
	case *Dropout:
		return "dropout"
	}
	return strings.ToLower(reflect.TypeOf(l).Elem().Name())
}

func (s *Sequential) build() error {
	if len(s.InputShape) != 2 || s.InputShape[0] < 1 || s.InputShape[1] < 1 {
		return errors.NewInputShapeError("Sequential.build", []int{-1, -1}, s.InputShape)
	}
	if len(s.Layers) == 0 {
		return errors.NewValueError("Sequential.build", "model has no layers")
	}

	s.rng = rand.New(rand.NewSource(s.Seed))
	seen := make(map[string]int)
	shape := s.InputShape
	s.layerShapes = s.layerShapes[:0]
	for _, l := range s.Layers {
		kind := layerKind(l)
		if l.Name() == "" {
			name := kind
			if n := seen[kind]; n > 0 {
				name += "_" + strconv.Itoa(n)
			}
			l.setName(name)
		}
		seen[kind]++

		out, err := l.Build(shape, s.rng)
		if err != nil {
			return errors.Wrapf(err, "build %s", l.Name())
		}
		s.layerShapes = append(s.layerShapes, out)
		shape = out
	}
	s.built = true
	return nil
}

// OutputShape returns the per-sample output shape.
func (s *Sequential) OutputShape() []int {
	if len(s.layerShapes) == 0 {
		return nil
	}
	return s.layerShapes[len(s.layerShapes)-1]
}

// Params returns every trainable parameter in layer order.
func (s *Sequential) Params() []*Param {
	var ps []*Param
	for _, l := range s.Layers {
		ps = append(ps, l.Params()...)
	}
	return ps
}

// Compile sets the optimizer and loss used by Fit.
func (s *Sequential) Compile(opt Optimizer, loss Loss) {
	s.optimizer = opt
	s.loss = loss
}

func (s *Sequential) checkInput(op string, x *tensor.Tensor, n int) error {
	if x == nil || x.N == 0 {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	if x.Length != s.InputShape[0] || x.Channels != s.InputShape[1] {
		return errors.NewInputShapeError(op, s.InputShape, []int{x.Length, x.Channels})
	}
	if n >= 0 && n != x.N {
		return errors.NewDimensionError(op, x.N, n, 0)
	}
	return nil
}

func (s *Sequential) forward(x *tensor.Tensor, training bool) *tensor.Tensor {
	for _, l := range s.Layers {
		x = l.Forward(x, training)
	}
	return x
}

// sigmoidHead returns the final layer when it is a sigmoid Dense layer and the
// loss can be taken from its logits.
func (s *Sequential) sigmoidHead(loss Loss) (*Dense, logitLoss) {
	d, ok := s.Layers[len(s.Layers)-1].(*Dense)
	if !ok || d.Activation != Sigmoid {
		return nil, nil
	}
	ll, ok := loss.(logitLoss)
	if !ok {
		return nil, nil
	}
	return d, ll
}

// lossOf returns the mean loss of the last forward pass.
func (s *Sequential) lossOf(loss Loss, out *tensor.Tensor, y []float64) float64 {
	if head, ll := s.sigmoidHead(loss); head != nil {
		return ll.LossFromLogits(head.Logits(), y)
	}
	return loss.Loss(out.Data, y)
}

// backward backpropagates the loss of the last forward pass through every
// layer, accumulating parameter gradients.
func (s *Sequential) backward(loss Loss, out *tensor.Tensor, y []float64) {
	last := len(s.Layers) - 1
	var grad *tensor.Tensor
	if head, ll := s.sigmoidHead(loss); head != nil {
		grad = head.backwardLinear(out.N, ll.GradientFromLogits(head.Logits(), y))
	} else {
		g := loss.Gradient(out.Data, y)
		grad = s.Layers[last].Backward(&tensor.Tensor{N: out.N, Length: out.Length, Channels: out.Channels, Data: g})
	}
	for i := last - 1; i >= 0; i-- {
		grad = s.Layers[i].Backward(grad)
	}
}

// ValidationData is scored after every epoch and never trained on.
type ValidationData struct {
	X *tensor.Tensor
	Y []float64
}

// FitConfig controls Fit.
type FitConfig struct {
	Epochs    int
	BatchSize int
	// NoShuffle keeps the sample order fixed. By default samples are shuffled
	// at the start of every epoch.
	NoShuffle  bool
	Validation *ValidationData
	// Progress receives one line per epoch. Nil discards it.
	Progress io.Writer
	Logger   log.Logger
}

// Fit trains the model with mini-batch gradient descent. The context is checked
// between mini-batches.
func (s *Sequential) Fit(ctx context.Context, x *tensor.Tensor, y []float64, cfg FitConfig) (*History, error) {
	if s.optimizer == nil || s.loss == nil {
		return nil, errors.NewModelError("Sequential.Fit", "model is not compiled", nil)
	}
	if err := s.checkInput("Sequential.Fit", x, len(y)); err != nil {
		return nil, err
	}
	if cfg.Epochs < 1 {
		return nil, errors.NewValidationError("epochs", "must be positive", cfg.Epochs)
	}
	if cfg.BatchSize < 1 {
		return nil, errors.NewValidationError("batch_size", "must be positive", cfg.BatchSize)
	}
	if v := cfg.Validation; v != nil {
		if err := s.checkInput("Sequential.Fit validation", v.X, len(v.Y)); err != nil {
			return nil, err
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	progress := cfg.Progress
	if progress == nil {
		progress = io.Discard
	}

	logger.Info("training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, x.N,
		log.EpochsKey, cfg.Epochs,
		log.BatchSizeKey, cfg.BatchSize,
	)

	steps := (x.N + cfg.BatchSize - 1) / cfg.BatchSize
	params := s.Params()
	for _, p := range params {
		p.ZeroGrad()
	}

	history := &History{}
	order := make([]int, x.N)
	for i := range order {
		order[i] = i
	}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		if !cfg.NoShuffle {
			s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var sumLoss float64
		var correct int
		for b := 0; b < steps; b++ {
			if err := ctx.Err(); err != nil {
				return history, errors.Wrapf(err, "epoch %d interrupted", epoch)
			}
			lo, hi := b*cfg.BatchSize, (b+1)*cfg.BatchSize
			if hi > x.N {
				hi = x.N
			}
			idx := order[lo:hi]
			xb := x.Gather(idx)
			yb := make([]float64, len(idx))
			for i, k := range idx {
				yb[i] = y[k]
			}

			out := s.forward(xb, true)
			batchLoss := s.lossOf(s.loss, out, yb)
			if err := errors.CheckScalar("Sequential.Fit loss", batchLoss, epoch); err != nil {
				return history, err
			}
			s.backward(s.loss, out, yb)
			if err := s.optimizer.Step(params); err != nil {
				return history, errors.Wrapf(err, "epoch %d step %d", epoch, b+1)
			}

			sumLoss += batchLoss * float64(len(idx))
			correct += countCorrect(out.Data, yb)
		}

		logs := EpochLogs{
			Epoch:    epoch,
			Loss:     sumLoss / float64(x.N),
			Accuracy: float64(correct) / float64(x.N),
			Steps:    steps,
		}
		if v := cfg.Validation; v != nil {
			valLoss, valAcc, err := s.Evaluate(v.X, v.Y, cfg.BatchSize)
			if err != nil {
				return history, errors.Wrapf(err, "validate epoch %d", epoch)
			}
			logs.ValLoss, logs.ValAccuracy, logs.HasValidation = valLoss, valAcc, true
		}
		logs.Duration = time.Since(start)
		history.Append(logs)

		fmt.Fprintf(progress, "Epoch %d/%d\n%s\n", epoch, cfg.Epochs, logs)
		fields := []any{
			log.EpochKey, epoch,
			log.LossKey, logs.Loss,
			log.AccuracyKey, logs.Accuracy,
			log.DurationMsKey, logs.Duration.Milliseconds(),
		}
		if logs.HasValidation {
			fields = append(fields, log.ValLossKey, logs.ValLoss, log.ValAccuracyKey, logs.ValAccuracy)
		}
		logger.Info("epoch finished", fields...)
	}
	return history, nil
}

func countCorrect(prob, y []float64) int {
	n := 0
	for i, p := range prob {
		pred := 0.0
		if p > 0.5 {
			pred = 1
		}
		if pred == y[i] {
			n++
		}
	}
	return n
}

// Predict returns the model output for every sample, in inference mode.
func (s *Sequential) Predict(x *tensor.Tensor, batchSize int) ([]float64, error) {
	probs, _, err := s.predict(x, batchSize, false)
	return probs, err
}

func (s *Sequential) predict(x *tensor.Tensor, batchSize int, wantLogits bool) (probs, logits []float64, err error) {
	if !s.built {
		return nil, nil, errors.NewNotFittedError("Sequential", "Predict")
	}
	if err := s.checkInput("Sequential.Predict", x, -1); err != nil {
		return nil, nil, err
	}
	if batchSize < 1 {
		batchSize = 32
	}
	head, _ := s.Layers[len(s.Layers)-1].(*Dense)
	for lo := 0; lo < x.N; lo += batchSize {
		hi := lo + batchSize
		if hi > x.N {
			hi = x.N
		}
		idx := make([]int, hi-lo)
		for i := range idx {
			idx[i] = lo + i
		}
		out := s.forward(x.Gather(idx), false)
		probs = append(probs, out.Data...)
		if wantLogits && head != nil {
			logits = append(logits, head.Logits()...)
		}
	}
	return probs, logits, nil
}

// Evaluate returns the compiled loss (binary cross-entropy if the model was
// never compiled) and the accuracy at threshold 0.5.
func (s *Sequential) Evaluate(x *tensor.Tensor, y []float64, batchSize int) (loss, accuracy float64, err error) {
	if err := s.checkInput("Sequential.Evaluate", x, len(y)); err != nil {
		return 0, 0, err
	}
	lossFn := s.loss
	if lossFn == nil {
		lossFn = BinaryCrossEntropy{}
	}
	head, ll := s.sigmoidHead(lossFn)
	probs, logits, err := s.predict(x, batchSize, head != nil)
	if err != nil {
		return 0, 0, err
	}
	if len(probs) != len(y) {
		return 0, 0, errors.NewDimensionError("Sequential.Evaluate", len(y), len(probs), 1)
	}

	if head != nil {
		loss = ll.LossFromLogits(logits, y)
	} else {
		loss = lossFn.Loss(probs, y)
	}
	accuracy, err = metrics.BinaryAccuracy(mat.NewVecDense(len(y), y), mat.NewVecDense(len(probs), probs), 0.5)
	if err != nil {
		return 0, 0, err
	}
	return loss, accuracy, nil
}

// CountParams returns the trainable and non-trainable scalar counts. The
// batch-normalization moving statistics are non-trainable.
func (s *Sequential) CountParams() (trainable, nonTrainable int) {
	for _, l := range s.Layers {
		for _, p := range l.Params() {
			trainable += p.Size()
		}
		if bn, ok := l.(*BatchNorm); ok {
			nonTrainable += len(bn.MovingMean) + len(bn.MovingVar)
		}
	}
	return trainable, nonTrainable
}

// Summary writes a table of layers, output shapes and parameter counts.
func (s *Sequential) Summary(w io.Writer) error {
	if !s.built {
		return errors.NewNotFittedError("Sequential", "Summary")
	}
	fmt.Fprintf(w, "Model: %q\n", s.ModelName)
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "Layer (type)\tOutput Shape\tParam #")

	for i, l := range s.Layers {
		n := 0
		for _, p := range l.Params() {
			n += p.Size()
		}
		if bn, ok := l.(*BatchNorm); ok {
			n += len(bn.MovingMean) + len(bn.MovingVar)
		}
		fmt.Fprintf(tw, "%s (%s)\t%s\t%d\n", l.Name(), reflect.TypeOf(l).Elem().Name(), formatShape(s.layerShapes[i]), n)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	trainable, nonTrainable := s.CountParams()
	fmt.Fprintf(w, "Total params: %d\nTrainable params: %d\nNon-trainable params: %d\n",
		trainable+nonTrainable, trainable, nonTrainable)
	return nil
}

func formatShape(shape []int) string {
	parts := []string{"None"}
	for _, d := range shape {
		parts = append(parts, strconv.Itoa(d))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
