// Package pipeline runs the exoplanet training job end to end: ingestion,
// cleaning, label extraction, re-split, scaling, oversampling, reshaping,
// training, persistence and evaluation.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/dataset"
	"github.com/YuminosukeSato/exotrain/metrics"
	"github.com/YuminosukeSato/exotrain/nn"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
	"github.com/YuminosukeSato/exotrain/pkg/log"
	"github.com/YuminosukeSato/exotrain/preprocessing"
	"github.com/YuminosukeSato/exotrain/report"
	"github.com/YuminosukeSato/exotrain/sampling"
	"github.com/YuminosukeSato/exotrain/tensor"
)

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Boundary int
	Missing  int

	TrainCounts     map[float64]int
	TestCounts      map[float64]int
	ResampledCounts map[float64]int
	Synthetic       int

	// TestLabels are the labels the model is validated and scored on, in row
	// order. ResampledLabels are the training labels after oversampling.
	TestLabels      []float64
	ResampledLabels []float64

	Scaler  *preprocessing.StandardScaler
	Model   *nn.Sequential
	History *nn.History

	ScalerPath string
	ModelPath  string
	PlotPath   string

	TestReport *metrics.Report
	TestAUC    float64
}

// Pipeline executes one training run.
type Pipeline struct {
	cfg    *Config
	logger log.Logger
	out    io.Writer
	runID  string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger. The default discards records.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithOutput sets where progress lines, confirmations and the report are
// printed. The default is standard output.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) {
		p.out = w
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		p.runID = id
	}
}

// New creates a Pipeline for cfg.
func New(cfg *Config, options ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, logger: log.Nop(), out: os.Stdout}
	for _, opt := range options {
		opt(p)
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	p.logger = p.logger.With(log.RunIDKey, p.runID)
	return p, nil
}

// RunID returns the identifier attached to every log record of the run.
func (p *Pipeline) RunID() string {
	return p.runID
}

// stage runs fn as a named step, converting panics to errors and logging its
// duration.
func (p *Pipeline) stage(name, phase string, fn func() error) error {
	start := time.Now()
	logger := p.logger.With(log.StageKey, name, log.PhaseKey, phase)
	logger.Debug("stage started")

	err := errors.SafeExecute(name, fn)
	if err != nil {
		logger.Error("stage failed",
			"error", err,
			log.ErrorTypeKey, fmt.Sprintf("%T", errors.Cause(err)),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
		return errors.Wrapf(err, "stage %s", name)
	}
	logger.Info("stage finished", log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// Run executes every stage in order. Cancelling ctx stops training between
// mini-batches; artifacts already written stay on disk.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.cfg
	res := &Result{RunID: p.runID}

	var (
		combined      *dataset.RawTable
		frame         *dataset.Frame
		features      *dataset.Frame
		labels        []float64
		train, test   dataset.Partition
		trainScaled   *dataset.Frame
		testScaled    *dataset.Frame
		resampled     *sampling.Result
		xTrain, xTest *tensor.Tensor
		nFeatures     int
	)

	if err := p.stage("ingest", log.PhaseIngestion, func() error {
		trainTbl, err := dataset.ReadCSV(cfg.TrainPath())
		if err != nil {
			return err
		}
		testTbl, err := dataset.ReadCSV(cfg.TestPath())
		if err != nil {
			return err
		}
		combined, res.Boundary, err = dataset.Concat(trainTbl, testTbl)
		if err != nil {
			return err
		}
		p.logger.Info("tables loaded",
			log.SamplesKey, combined.NRows(),
			log.FeaturesKey, len(combined.Header),
			log.BoundaryKey, res.Boundary,
		)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage("clean", log.PhasePreprocessing, func() error {
		var err error
		frame, err = combined.ToFrame(cfg.Placeholder)
		if err != nil {
			return err
		}
		res.Missing = frame.FillMissing(cfg.FillValue)
		p.logger.Info("missing cells filled", log.MissingKey, res.Missing)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage("labels", log.PhasePreprocessing, func() error {
		var err error
		features, labels, err = dataset.SplitLabel(frame, cfg.LabelColumn, cfg.LabelMap, cfg.StrictLabels)
		return err
	}); err != nil {
		return nil, err
	}

	if err := p.stage("split", log.PhasePreprocessing, func() error {
		var err error
		train, test, err = dataset.SplitAt(features, labels, res.Boundary)
		if err != nil {
			return err
		}
		res.TrainCounts = dataset.ClassCounts(train.Y)
		res.TestCounts = dataset.ClassCounts(test.Y)
		_, nFeatures = train.X.Dims()
		p.logger.Info("partitions recovered",
			log.SamplesKey, train.Len(),
			log.FeaturesKey, nFeatures,
			log.ClassCountsKey, countsField(res.TrainCounts),
		)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage("scale", log.PhasePreprocessing, func() error {
		scaler := preprocessing.NewStandardScalerDefault()
		if err := scaler.FitFrame(train.X); err != nil {
			return err
		}
		var err error
		if trainScaled, err = scaler.TransformFrame(train.X); err != nil {
			return err
		}
		if testScaled, err = scaler.TransformFrame(test.X); err != nil {
			return err
		}
		res.Scaler = scaler
		res.ScalerPath = cfg.ScalerPath()
		if err := scaler.Save(res.ScalerPath); err != nil {
			return err
		}
		fmt.Fprintf(p.out, "✅ Scaler saved to %s\n", res.ScalerPath)
		p.logger.Info("scaler saved", log.PathKey, res.ScalerPath, log.OperationKey, log.OperationSave)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage("resample", log.PhasePreprocessing, func() error {
		smote := sampling.NewSMOTE(
			sampling.WithKNeighbors(cfg.KNeighbors),
			sampling.WithRandomState(cfg.Seed),
		)
		var err error
		resampled, err = smote.FitResample(trainScaled.Data, train.Y)
		if err != nil {
			return err
		}
		res.Synthetic = resampled.NSynthetic
		res.ResampledLabels = resampled.Y
		res.ResampledCounts = dataset.ClassCounts(resampled.Y)
		p.logger.Info("training set rebalanced",
			log.OperationKey, log.OperationFitResample,
			log.SyntheticKey, resampled.NSynthetic,
			log.ClassCountsKey, countsField(res.ResampledCounts),
			log.KNeighborsKey, cfg.KNeighbors,
			log.RandomSeedKey, cfg.Seed,
		)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage("reshape", log.PhasePreprocessing, func() error {
		xTrain = preprocessing.ExpandDims(resampled.X)
		xTest = preprocessing.ExpandDims(testScaled.Data)
		res.TestLabels = test.Y
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.stage("train", log.PhaseTraining, func() error {
		model, err := nn.ExoplanetCNN(nFeatures, cfg.Seed)
		if err != nil {
			return err
		}
		opt := nn.NewAdam(cfg.LearningRate, nn.WithClipValue(cfg.ClipValue))
		model.Compile(opt, nn.BinaryCrossEntropy{})
		trainable, nonTrainable := model.CountParams()
		p.logger.Info("model compiled",
			log.ModelNameKey, nn.ExoplanetCNNName,
			log.ParamsKey, trainable+nonTrainable,
			log.LearningRateKey, cfg.LearningRate,
			log.ClipValueKey, cfg.ClipValue,
			log.OptimizerKey, opt.GetParams(),
		)

		res.Model = model
		res.History, err = model.Fit(ctx, xTrain, resampled.Y, nn.FitConfig{
			Epochs:     cfg.Epochs,
			BatchSize:  cfg.BatchSize,
			Validation: &nn.ValidationData{X: xTest, Y: test.Y},
			Progress:   p.out,
			Logger:     p.logger.With(log.ComponentKey, "nn"),
		})
		return err
	}); err != nil {
		return nil, err
	}

	if err := p.stage("persist", log.PhasePersistence, func() error {
		res.ModelPath = cfg.ModelPath()
		if err := res.Model.Save(res.ModelPath); err != nil {
			return err
		}
		fmt.Fprintf(p.out, "✅ Model saved to %s\n", res.ModelPath)
		p.logger.Info("model saved", log.PathKey, res.ModelPath, log.OperationKey, log.OperationSave)

		if path := cfg.PlotPath(); path != "" {
			if err := report.PlotHistory(res.History, path); err != nil {
				return err
			}
			res.PlotPath = path
			p.logger.Info("history chart written", log.PathKey, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if cfg.Report {
		if err := p.stage("evaluate", log.PhaseValidation, func() error {
			ev, err := evaluate(res.Model, xTest, test.Y, cfg)
			if err != nil {
				return err
			}
			res.TestReport, res.TestAUC = ev.Report, ev.AUC
			fmt.Fprintf(p.out, "\n%s", ev.Report)
			p.logger.Info("test partition scored",
				log.OperationKey, log.OperationEvaluate,
				log.AccuracyKey, ev.Report.Accuracy,
				log.AUCKey, ev.AUC,
			)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Evaluation holds the scores of a model on a labelled set.
type Evaluation struct {
	Samples       int
	Probabilities []float64
	Report        *metrics.Report
	AUC           float64
	LogLoss       float64
}

func evaluate(model *nn.Sequential, x *tensor.Tensor, y []float64, cfg *Config) (*Evaluation, error) {
	probs, err := model.Predict(x, cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	pred := make([]float64, len(probs))
	for i, p := range probs {
		if p > 0.5 {
			pred[i] = 1
		}
	}
	yTrue := mat.NewVecDense(len(y), y)
	yProb := mat.NewVecDense(len(probs), probs)

	rep, err := metrics.ClassificationReport(yTrue, mat.NewVecDense(len(pred), pred), cfg.ClassNames)
	if err != nil {
		return nil, err
	}
	auc, err := metrics.AUC(yTrue, yProb)
	if err != nil {
		return nil, err
	}
	logLoss, err := metrics.BinaryLogLoss(yTrue, yProb)
	if err != nil {
		return nil, err
	}
	return &Evaluation{Samples: len(y), Probabilities: probs, Report: rep, AUC: auc, LogLoss: logLoss}, nil
}

func countsField(counts map[float64]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[fmt.Sprint(k)] = v
	}
	return out
}
