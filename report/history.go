// Package report renders training results.
package report

import (
	"bufio"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/exotrain/nn"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// Chart dimensions.
const (
	ChartWidth  = 12 * vg.Inch
	ChartHeight = 4.5 * vg.Inch
)

func curve(epochs []int, values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(epochs[i])
		pts[i].Y = v
	}
	return pts
}

func newPanel(title, yLabel string, h *nn.History, train, val []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	lines := []interface{}{"train", curve(h.Epoch, train)}
	if h.HasValidation() {
		lines = append(lines, "validation", curve(h.Epoch, val))
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return nil, errors.Wrapf(err, "plot %s", title)
	}
	p.Legend.Top = true
	return p, nil
}

// PlotHistory writes a PNG with the loss curves on the left and the accuracy
// curves on the right. Validation curves are drawn when every epoch has them.
func PlotHistory(h *nn.History, path string) error {
	if h == nil || h.Len() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "PlotHistory")
	}

	loss, err := newPanel("Loss", "binary cross-entropy", h, h.Loss, h.ValLoss)
	if err != nil {
		return err
	}
	acc, err := newPanel("Accuracy", "accuracy", h, h.Accuracy, h.ValAccuracy)
	if err != nil {
		return err
	}

	img := vgimg.New(ChartWidth, ChartHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1, Cols: 2,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 2,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align([][]*plot.Plot{{loss, acc}}, tiles, dc)
	loss.Draw(canvases[0][0])
	acc.Draw(canvases[0][1])

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create chart file")
	}
	w := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		f.Close()
		return errors.Wrap(err, "encode chart")
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, "write chart")
	}
	return errors.Wrap(f.Close(), "close chart file")
}
