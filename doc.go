// Package exotrain trains a one-dimensional convolutional network that flags
// stars whose light curves show an exoplanet transit.
//
// The training job lives in package pipeline and is driven by the exotrain
// command:
//
//	exotrain train --data-dir ./data --output-dir ./artifacts
//	exotrain evaluate ./data/exoTest.csv --output-dir ./artifacts
//	exotrain inspect --output-dir ./artifacts
//
// A run reads exoTrain.csv and exoTest.csv, fills placeholder readings with
// zero, remaps the labels to 0 (no transit) and 1 (exoplanet), standardizes
// the flux with statistics of the training rows, oversamples the minority
// class with SMOTE and trains the network with Adam. The scaler and the model
// are written as gob files.
//
// # Packages
//
//   - dataset: CSV ingestion, missing-value handling, label extraction
//   - preprocessing: StandardScaler and reshaping to (samples, length, channels)
//   - sampling: SMOTE oversampling
//   - tensor: the rank-3 batch container used by the network
//   - nn: Conv1D, BatchNorm, MaxPool1D, Dense, Dropout, Adam and the Sequential model
//   - metrics: accuracy, log loss, ROC AUC and the classification report
//   - report: training-history charts
//   - pipeline: configuration and the end-to-end run
//
// # Using the library directly
//
//	cfg := pipeline.DefaultConfig()
//	cfg.DataDir = "./data"
//	p, err := pipeline.New(cfg)
//	if err != nil {
//	    return err
//	}
//	res, err := p.Run(ctx)
package exotrain
