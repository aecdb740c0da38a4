package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/YuminosukeSato/exotrain/dataset"
	"github.com/YuminosukeSato/exotrain/nn"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
	"github.com/YuminosukeSato/exotrain/pkg/log"
	"github.com/YuminosukeSato/exotrain/preprocessing"
)

// Artifacts are the persisted outputs of a training run.
type Artifacts struct {
	Scaler *preprocessing.StandardScaler
	Model  *nn.Sequential
}

// LoadArtifacts reads the scaler and the model named by cfg.
func LoadArtifacts(cfg *Config) (*Artifacts, error) {
	scaler, err := preprocessing.LoadStandardScaler(cfg.ScalerPath())
	if err != nil {
		return nil, errors.Wrap(err, "load scaler")
	}
	model, err := nn.Load(cfg.ModelPath())
	if err != nil {
		return nil, errors.Wrap(err, "load model")
	}
	return &Artifacts{Scaler: scaler, Model: model}, nil
}

// Evaluate scores the saved artifacts on a labelled CSV laid out like the
// training tables, printing the classification report and ranking scores to w.
func Evaluate(ctx context.Context, cfg *Config, csvPath string, w io.Writer, logger log.Logger) (*Evaluation, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	art, err := LoadArtifacts(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("artifacts loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, cfg.ModelPath(),
		log.ModelNameKey, art.Model.ModelName,
	)

	tbl, err := dataset.ReadCSV(csvPath)
	if err != nil {
		return nil, err
	}
	frame, err := tbl.ToFrame(cfg.Placeholder)
	if err != nil {
		return nil, err
	}
	missing := frame.FillMissing(cfg.FillValue)

	features, labels, err := dataset.SplitLabel(frame, cfg.LabelColumn, cfg.LabelMap, cfg.StrictLabels)
	if err != nil {
		return nil, err
	}
	scaled, err := art.Scaler.TransformFrame(features)
	if err != nil {
		return nil, err
	}

	ev, err := evaluate(art.Model, preprocessing.ExpandDims(scaled.Data), labels, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("artifacts evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.PathKey, csvPath,
		log.SamplesKey, ev.Samples,
		log.MissingKey, missing,
		log.AccuracyKey, ev.Report.Accuracy,
		log.AUCKey, ev.AUC,
	)

	fmt.Fprintf(w, "%s\n", ev.Report)
	fmt.Fprintf(w, "roc_auc: %.4f\nlog_loss: %.4f\n", ev.AUC, ev.LogLoss)
	return ev, nil
}

// Inspect prints what the saved artifacts contain: scaler statistics and the
// layer table of the model.
func Inspect(cfg *Config, w io.Writer) error {
	art, err := LoadArtifacts(cfg)
	if err != nil {
		return err
	}

	s := art.Scaler
	fmt.Fprintf(w, "Scaler: %s\n", cfg.ScalerPath())
	fmt.Fprintf(w, "  features: %d\n  samples seen: %d\n", len(s.Mean), s.NSamplesSeen)
	if len(s.ZeroVarianceFeatures) > 0 {
		fmt.Fprintf(w, "  zero-variance features: %v\n", s.ZeroVarianceFeatures)
	}
	fmt.Fprintf(w, "\nModel: %s\n", cfg.ModelPath())
	return art.Model.Summary(w)
}
