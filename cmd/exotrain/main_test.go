package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/exotrain/pipeline"
)

const cliTrain = `LABEL,FLUX.1,FLUX.2,FLUX.3,FLUX.4,FLUX.5
2,3.1,2.8,-,3.5,2.9
1,0.2,0.4,0.1,-0.3,0.5
1,-0.5,0.3,0.8,0.2,-0.1
2,2.7,3.3,2.9,2.4,3.0
1,0.6,-0.2,0.4,0.9,0.1
1,0.1,0.7,-0.4,0.3,0.6
`

const cliTest = `LABEL,FLUX.1,FLUX.2,FLUX.3,FLUX.4,FLUX.5
1,0.3,0.2,0.5,0.1,0.4
2,2.9,3.1,2.6,3.2,-
1,-0.2,0.6,0.3,0.4,0.2
`

// resetFlags restores every persistent flag so each test starts from the
// defaults.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
		configPath = ""
		noReport = false
		*flagValues = *pipeline.DefaultConfig()
	})
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exoTrain.csv"), []byte(cliTrain), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exoTest.csv"), []byte(cliTest), 0o644))
	return dir
}

func TestTrainEvaluateInspect(t *testing.T) {
	resetFlags(t)
	dir := writeTables(t)
	outDir := filepath.Join(dir, "out")
	common := []string{
		"--data-dir", dir,
		"--output-dir", outDir,
		"--epochs", "1",
		"--batch-size", "4",
		"--log-format", "json",
		"--log-level", "error",
	}

	out, err := execute(t, append([]string{"train"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Scaler saved to "+filepath.Join(outDir, "scaler.gob"))
	assert.Contains(t, out, "✅ Model saved to "+filepath.Join(outDir, "exoplanet_cnn_model.gob"))
	assert.Contains(t, out, "Epoch 1/1")
	assert.Equal(t, 1, cfg.Epochs)

	out, err = execute(t, append([]string{"evaluate", filepath.Join(dir, "exoTest.csv")}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "roc_auc:")

	out, err = execute(t, append([]string{"inspect"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "exoplanet_cnn")
	assert.Contains(t, out, "features: 5")
}

func TestRootCommandTrains(t *testing.T) {
	resetFlags(t)
	dir := writeTables(t)

	out, err := execute(t, "--data-dir", dir, "--output-dir", dir, "--epochs", "1", "--no-report",
		"--log-format", "json", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Model saved to")
	assert.NotContains(t, out, "precision")
	assert.False(t, cfg.Report)
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "exotrain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: 7\nbatch_size: 16\ndata_dir: "+dir+"\n"), 0o644))

	// inspect fails without artifacts, after the config has been resolved
	_, err := execute(t, "inspect", "--config", path, "--epochs", "3", "--log-level", "error")
	require.Error(t, err)

	require.NotNil(t, cfg)
	assert.Equal(t, 3, cfg.Epochs, "flags override the file")
	assert.Equal(t, 16, cfg.BatchSize, "the file overrides the defaults")
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 1e-4, cfg.LearningRate)
}

func TestInvalidFlags(t *testing.T) {
	resetFlags(t)
	tests := [][]string{
		{"train", "--epochs", "0"},
		{"train", "--log-format", "xml"},
		{"train", "--log-level", "loud"},
		{"train", "--config", filepath.Join(t.TempDir(), "missing.yaml")},
		{"inspect", "extra"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			resetFlags(t)
			_, err := execute(t, args...)
			assert.Error(t, err)
		})
	}
}
