package training

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestConfusionMatrixAccuracy(t *testing.T) {
	cm := NewConfusionMatrix(3)

	// Rows argmax to classes 0, 1, 2, 1 against labels 0, 1, 2, 2.
	logits := mat.NewDense(4, 3, []float64{
		2.0, 0.1, 0.1,
		0.1, 3.0, 0.1,
		0.1, 0.1, 1.5,
		0.2, 0.9, 0.1,
	})
	if err := cm.Update([]int{0, 1, 2, 2}, logits); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if acc := cm.Accuracy(); math.Abs(acc-0.75) > 1e-12 {
		t.Errorf("expected accuracy 0.75, got %f", acc)
	}
	if cm.TotalSamples != 4 {
		t.Errorf("expected 4 samples, got %d", cm.TotalSamples)
	}
}

func TestConfusionMatrixPerfectPrediction(t *testing.T) {
	cm := NewConfusionMatrix(2)
	logits := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		1, 0,
		0, 1,
	})
	if err := cm.Update([]int{0, 1, 0, 1}, logits); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	summary := cm.Summary()
	if summary.Accuracy != 1.0 {
		t.Errorf("expected accuracy 1.0, got %f", summary.Accuracy)
	}
	if summary.MacroF1 != 1.0 {
		t.Errorf("expected macro F1 1.0, got %f", summary.MacroF1)
	}
	if summary.MicroF1 != 1.0 {
		t.Errorf("expected micro F1 1.0, got %f", summary.MicroF1)
	}
}

func TestConfusionMatrixShapeErrors(t *testing.T) {
	cm := NewConfusionMatrix(3)

	if err := cm.Update([]int{0, 1}, mat.NewDense(3, 3, nil)); err == nil {
		t.Error("expected error for label/prediction length mismatch")
	}
	if err := cm.Update([]int{0, 1}, mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected error for class count mismatch")
	}
	if err := cm.Update([]int{0, 7}, mat.NewDense(2, 3, nil)); err == nil {
		t.Error("expected error for out-of-range label")
	}
}

func TestMicroF1EqualsAccuracyForSingleLabel(t *testing.T) {
	// With one label per sample, micro precision == micro recall == accuracy.
	cm := NewConfusionMatrix(3)
	logits := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		1, 0, 0,
		0, 0, 1,
	})
	if err := cm.Update([]int{0, 1, 2}, logits); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if math.Abs(cm.MicroF1()-cm.Accuracy()) > 1e-12 {
		t.Errorf("micro F1 %f != accuracy %f", cm.MicroF1(), cm.Accuracy())
	}
}
