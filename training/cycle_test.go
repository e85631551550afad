package training

import "testing"

func TestCycleFirstEpochNeverRestarts(t *testing.T) {
	c := NewCycleState(2)
	if restarted := c.Advance(); restarted {
		t.Error("first epoch must not trigger a restart even with period 1")
	}
	if c.Period != 1 || c.Pos != 1 {
		t.Errorf("after first epoch: expected period 1 pos 1, got period %d pos %d", c.Period, c.Pos)
	}
}

func TestCycleDoublingPattern(t *testing.T) {
	c := NewCycleState(2)

	var periods []int
	for epoch := 0; epoch < 200 && len(periods) < 5; epoch++ {
		if c.Advance() {
			periods = append(periods, c.Period)
			if c.Pos != 0 {
				t.Errorf("restart %d: position not reset, got %d", len(periods), c.Pos)
			}
		}
	}

	expected := []int{2, 4, 8, 16, 32}
	if len(periods) != len(expected) {
		t.Fatalf("expected %d restarts, got %d", len(expected), len(periods))
	}
	for i, period := range periods {
		if period != expected[i] {
			t.Errorf("restart %d: expected period %d, got %d", i, expected[i], period)
		}
	}
}

func TestCycleCustomMultiplier(t *testing.T) {
	c := NewCycleState(3)

	var periods []int
	for epoch := 0; epoch < 300 && len(periods) < 3; epoch++ {
		if c.Advance() {
			periods = append(periods, c.Period)
		}
	}

	expected := []int{3, 9, 27}
	for i, period := range periods {
		if period != expected[i] {
			t.Errorf("restart %d: expected period %d, got %d", i, expected[i], period)
		}
	}
}

func TestCyclePositionStaysWithinPeriod(t *testing.T) {
	c := NewCycleState(2)
	for epoch := 0; epoch < 100; epoch++ {
		c.Advance()
		if c.Pos < 0 || c.Pos > c.Period {
			t.Fatalf("epoch %d: position %d outside [0, %d]", epoch, c.Pos, c.Period)
		}
	}
}

func TestCycleDefaultMultiplier(t *testing.T) {
	c := NewCycleState(0)
	if c.Mult != 2 {
		t.Errorf("expected default multiplier 2, got %d", c.Mult)
	}
}
