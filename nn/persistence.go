package nn

import (
	"encoding/gob"

	"github.com/YuminosukeSato/exotrain/core/model"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// ModelKind identifies Sequential artifacts on disk.
const ModelKind = "Sequential"

func init() {
	gob.Register(&Conv1D{})
	gob.Register(&BatchNorm{})
	gob.Register(&MaxPool1D{})
	gob.Register(&Flatten{})
	gob.Register(&Dense{})
	gob.Register(&Dropout{})
}

// Save writes the topology, weights and batch-normalization moving statistics
// to path, replacing any existing file. Optimizer state is not saved.
func (s *Sequential) Save(path string) error {
	if !s.built {
		return errors.NewNotFittedError("Sequential", "Save")
	}
	return model.SaveModel(ModelKind, s, path)
}

// Load reads a model written by Save. The returned model predicts exactly like
// the saved one and must be compiled again before further training.
func Load(path string) (*Sequential, error) {
	var s Sequential
	if err := model.LoadModel(ModelKind, &s, path); err != nil {
		return nil, err
	}
	if err := s.build(); err != nil {
		return nil, errors.Wrap(err, "rebuild loaded model")
	}
	return &s, nil
}
