package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// logLossEpsilon keeps BinaryLogLoss finite for predictions of exactly 0 or 1.
const logLossEpsilon = 1e-15

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinaryLabels(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1, got "+strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	return nil
}

// Accuracy returns the fraction of positions where yPred equals yTrue.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// BinaryAccuracy thresholds probabilities (p > threshold means 1) and returns
// the fraction matching yTrue.
func BinaryAccuracy(yTrue, yProb *mat.VecDense, threshold float64) (float64, error) {
	n, err := checkPair("BinaryAccuracy", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		pred := 0.0
		if yProb.AtVec(i) > threshold {
			pred = 1
		}
		if pred == yTrue.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError returns 1 - Accuracy.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// BinaryLogLoss returns the mean binary cross-entropy of probabilities yPred
// against 0/1 labels. Predictions are clipped to [1e-15, 1-1e-15].
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), logLossEpsilon, 1-logLossEpsilon)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// AUC returns the area under the ROC curve, computed as the normalised
// Mann-Whitney U statistic with tied scores given their average rank. When only
// one class is present the area is undefined and 0.5 is returned with an
// UndefinedMetricWarning.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("AUC", yTrue); err != nil {
		return 0, err
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return yPred.AtVec(order[a]) < yPred.AtVec(order[b])
	})

	var nPos, nNeg int
	var rankSumPos float64
	for i := 0; i < n; {
		j := i
		for j < n && yPred.AtVec(order[j]) == yPred.AtVec(order[i]) {
			j++
		}
		// ranks i+1..j share their mean
		avgRank := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			if yTrue.AtVec(order[k]) == 1 {
				nPos++
				rankSumPos += avgRank
			} else {
				nNeg++
			}
		}
		i = j
	}

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	u := rankSumPos - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// AUCMatrix computes AUC on the first column of each matrix.
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 || rPred == 0 || cPred == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}
	return AUC(
		mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)),
		mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)),
	)
}

// ConfusionMatrix counts (true, predicted) label pairs. Rows are true labels and
// columns predicted labels, both in the ascending order of the returned labels.
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*mat.Dense, []float64, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}

	index := make(map[float64]int)
	for i := 0; i < n; i++ {
		index[yTrue.AtVec(i)] = 0
		index[yPred.AtVec(i)] = 0
	}
	labels := make([]float64, 0, len(index))
	for l := range index {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	for i, l := range labels {
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, c := index[yTrue.AtVec(i)], index[yPred.AtVec(i)]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, labels, nil
}

// PrecisionRecallF1 returns precision, recall and F1 for the positive label. A
// ratio with a zero denominator is 0 and emits an UndefinedMetricWarning.
func PrecisionRecallF1(yTrue, yPred *mat.VecDense, positive float64) (precision, recall, f1 float64, err error) {
	n, err := checkPair("PrecisionRecallF1", yTrue, yPred)
	if err != nil {
		return 0, 0, 0, err
	}
	var tp, fp, fn int
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i) == positive, yPred.AtVec(i) == positive
		switch {
		case t && p:
			tp++
		case p:
			fp++
		case t:
			fn++
		}
	}
	precision = ratio("precision", "no predicted samples", tp, tp+fp)
	recall = ratio("recall", "no true samples", tp, tp+fn)
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1, nil
}

func ratio(metric, condition string, num, den int) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
		return 0
	}
	return float64(num) / float64(den)
}

// ClassScores holds the per-class rows of a ClassificationReport.
type ClassScores struct {
	Name      string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a per-class precision/recall/F1 summary.
type Report struct {
	Classes     []ClassScores
	Accuracy    float64
	MacroAvg    ClassScores
	WeightedAvg ClassScores
}

// ClassificationReport scores every label of yTrue and yPred. names maps label
// values to display names; labels without a name are printed as numbers.
func ClassificationReport(yTrue, yPred *mat.VecDense, names map[float64]string) (*Report, error) {
	_, labels, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	rep := &Report{Accuracy: acc}
	total := 0
	for _, label := range labels {
		p, r, f, err := PrecisionRecallF1(yTrue, yPred, label)
		if err != nil {
			return nil, err
		}
		support := 0
		for i := 0; i < yTrue.Len(); i++ {
			if yTrue.AtVec(i) == label {
				support++
			}
		}
		name, ok := names[label]
		if !ok {
			name = strconv.FormatFloat(label, 'g', -1, 64)
		}
		rep.Classes = append(rep.Classes, ClassScores{Name: name, Precision: p, Recall: r, F1: f, Support: support})
		total += support
	}

	k := float64(len(rep.Classes))
	rep.MacroAvg = ClassScores{Name: "macro avg", Support: total}
	rep.WeightedAvg = ClassScores{Name: "weighted avg", Support: total}
	for _, c := range rep.Classes {
		rep.MacroAvg.Precision += c.Precision / k
		rep.MacroAvg.Recall += c.Recall / k
		rep.MacroAvg.F1 += c.F1 / k
		if total > 0 {
			w := float64(c.Support) / float64(total)
			rep.WeightedAvg.Precision += c.Precision * w
			rep.WeightedAvg.Recall += c.Recall * w
			rep.WeightedAvg.F1 += c.F1 * w
		}
	}
	return rep, nil
}

// String renders the report as a fixed-width table.
func (r *Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		if len(c.Name) > width {
			width = len(c.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	row := func(c ClassScores) {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	for _, c := range r.Classes {
		row(c)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	row(r.MacroAvg)
	row(r.WeightedAvg)
	return b.String()
}
