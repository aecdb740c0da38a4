package model

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// envelope wraps every artifact so that loading a scaler file as a model (or the
// reverse) fails with a clear error instead of a partially decoded value.
type envelope struct {
	Kind    string
	Payload []byte
}

// SaveModel gob-encodes v under kind into filename, overwriting any existing
// file. Parent directories are created.
//
//	err := model.SaveModel("StandardScaler", scaler, "scaler.gob")
func SaveModel(kind string, v interface{}, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}

	w := bufio.NewWriter(file)
	if err := SaveModelToWriter(kind, v, w); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return errors.Wrap(err, "failed to flush file")
	}
	return errors.Wrap(file.Close(), "failed to close file")
}

// LoadModel decodes an artifact written by SaveModel into v, which must be a
// pointer. The stored kind must equal kind.
//
//	var scaler preprocessing.StandardScaler
//	err := model.LoadModel("StandardScaler", &scaler, "scaler.gob")
func LoadModel(kind string, v interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return LoadModelFromReader(kind, v, bufio.NewReader(file))
}

// SaveModelToWriter writes an artifact to w.
func SaveModelToWriter(kind string, v interface{}, w io.Writer) error {
	payload, err := encode(v)
	if err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	if err := gob.NewEncoder(w).Encode(envelope{Kind: kind, Payload: payload}); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader reads an artifact from r into v.
func LoadModelFromReader(kind string, v interface{}, r io.Reader) error {
	var env envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	if env.Kind != kind {
		return errors.NewValueError("LoadModel", "artifact holds "+env.Kind+", expected "+kind)
	}
	if err := decode(env.Payload, v); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
