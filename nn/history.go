package nn

import (
	"fmt"
	"strings"
	"time"
)

// EpochLogs holds the metrics of one epoch.
type EpochLogs struct {
	Epoch         int
	Loss          float64
	Accuracy      float64
	ValLoss       float64
	ValAccuracy   float64
	HasValidation bool
	Steps         int
	Duration      time.Duration
}

// String renders the logs the way the progress writer prints them.
func (e EpochLogs) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d - %.0fs - loss: %.4f - accuracy: %.4f",
		e.Steps, e.Steps, e.Duration.Seconds(), e.Loss, e.Accuracy)
	if e.HasValidation {
		fmt.Fprintf(&b, " - val_loss: %.4f - val_accuracy: %.4f", e.ValLoss, e.ValAccuracy)
	}
	return b.String()
}

// History records per-epoch training and validation metrics.
type History struct {
	Epoch       []int
	Loss        []float64
	Accuracy    []float64
	ValLoss     []float64
	ValAccuracy []float64
}

// Append adds one epoch. Validation columns are only filled when the epoch has
// validation metrics.
func (h *History) Append(e EpochLogs) {
	h.Epoch = append(h.Epoch, e.Epoch)
	h.Loss = append(h.Loss, e.Loss)
	h.Accuracy = append(h.Accuracy, e.Accuracy)
	if e.HasValidation {
		h.ValLoss = append(h.ValLoss, e.ValLoss)
		h.ValAccuracy = append(h.ValAccuracy, e.ValAccuracy)
	}
}

// Len returns the number of recorded epochs.
func (h *History) Len() int {
	return len(h.Epoch)
}

// HasValidation reports whether every epoch has validation metrics.
func (h *History) HasValidation() bool {
	return h.Len() > 0 && len(h.ValLoss) == h.Len()
}
