package training

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Metrics is the structured result of the problem's metric function.
type Metrics struct {
	Accuracy float64 `json:"accuracy"`
	MacroF1  float64 `json:"macro_f1"`
	MicroF1  float64 `json:"micro_f1"`
}

// ConfusionMatrix accumulates classification outcomes and derives the
// evaluation metrics from them.
type ConfusionMatrix struct {
	NumClasses   int
	Matrix       [][]int // [true class][predicted class]
	TotalSamples int
}

// NewConfusionMatrix creates an empty confusion matrix.
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}
	return &ConfusionMatrix{
		NumClasses: numClasses,
		Matrix:     matrix,
	}
}

// Update adds a stacked block of predictions. Each logits row is reduced by
// argmax against the corresponding true label.
func (cm *ConfusionMatrix) Update(actuals []int, logits *mat.Dense) error {
	rows, cols := logits.Dims()
	if rows != len(actuals) {
		return fmt.Errorf("labels length mismatch: expected %d, got %d", rows, len(actuals))
	}
	if cols != cm.NumClasses {
		return fmt.Errorf("class count mismatch: expected %d, got %d", cm.NumClasses, cols)
	}

	for i := 0; i < rows; i++ {
		pred := argmaxRow(logits, i)
		actual := actuals[i]
		if actual < 0 || actual >= cm.NumClasses {
			return fmt.Errorf("label %d out of range [0, %d)", actual, cm.NumClasses)
		}
		cm.Matrix[actual][pred]++
		cm.TotalSamples++
	}
	return nil
}

// Accuracy returns the fraction of samples on the matrix diagonal.
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.TotalSamples == 0 {
		return 0.0
	}
	correct := 0
	for i := 0; i < cm.NumClasses; i++ {
		correct += cm.Matrix[i][i]
	}
	return float64(correct) / float64(cm.TotalSamples)
}

// MacroF1 returns the harmonic mean of macro-averaged precision and recall.
func (cm *ConfusionMatrix) MacroF1() float64 {
	precision := cm.macroPrecision()
	recall := cm.macroRecall()
	if precision+recall == 0 {
		return 0.0
	}
	return 2 * (precision * recall) / (precision + recall)
}

// MicroF1 returns the harmonic mean of micro-averaged precision and recall.
func (cm *ConfusionMatrix) MicroF1() float64 {
	precision := cm.microPrecision()
	recall := cm.microRecall()
	if precision+recall == 0 {
		return 0.0
	}
	return 2 * (precision * recall) / (precision + recall)
}

// Summary collects the derived metrics into a Metrics value.
func (cm *ConfusionMatrix) Summary() Metrics {
	return Metrics{
		Accuracy: cm.Accuracy(),
		MacroF1:  cm.MacroF1(),
		MicroF1:  cm.MicroF1(),
	}
}

func (cm *ConfusionMatrix) macroPrecision() float64 {
	sum := 0.0
	validClasses := 0
	for class := 0; class < cm.NumClasses; class++ {
		tp := float64(cm.Matrix[class][class])
		fp := 0.0
		for other := 0; other < cm.NumClasses; other++ {
			if other != class {
				fp += float64(cm.Matrix[other][class])
			}
		}
		if tp+fp > 0 {
			sum += tp / (tp + fp)
			validClasses++
		}
	}
	if validClasses == 0 {
		return 0.0
	}
	return sum / float64(validClasses)
}

func (cm *ConfusionMatrix) macroRecall() float64 {
	sum := 0.0
	validClasses := 0
	for class := 0; class < cm.NumClasses; class++ {
		tp := float64(cm.Matrix[class][class])
		fn := 0.0
		for other := 0; other < cm.NumClasses; other++ {
			if other != class {
				fn += float64(cm.Matrix[class][other])
			}
		}
		if tp+fn > 0 {
			sum += tp / (tp + fn)
			validClasses++
		}
	}
	if validClasses == 0 {
		return 0.0
	}
	return sum / float64(validClasses)
}

func (cm *ConfusionMatrix) microPrecision() float64 {
	totalTP := 0.0
	totalFP := 0.0
	for class := 0; class < cm.NumClasses; class++ {
		totalTP += float64(cm.Matrix[class][class])
		for other := 0; other < cm.NumClasses; other++ {
			if other != class {
				totalFP += float64(cm.Matrix[other][class])
			}
		}
	}
	if totalTP+totalFP == 0 {
		return 0.0
	}
	return totalTP / (totalTP + totalFP)
}

func (cm *ConfusionMatrix) microRecall() float64 {
	totalTP := 0.0
	totalFN := 0.0
	for class := 0; class < cm.NumClasses; class++ {
		totalTP += float64(cm.Matrix[class][class])
		for other := 0; other < cm.NumClasses; other++ {
			if other != class {
				totalFN += float64(cm.Matrix[class][other])
			}
		}
	}
	if totalTP+totalFN == 0 {
		return 0.0
	}
	return totalTP / (totalTP + totalFN)
}

func argmaxRow(m *mat.Dense, row int) int {
	_, cols := m.Dims()
	maxIdx := 0
	maxVal := m.At(row, 0)
	for j := 1; j < cols; j++ {
		if v := m.At(row, j); v > maxVal {
			maxVal = v
			maxIdx = j
		}
	}
	return maxIdx
}
