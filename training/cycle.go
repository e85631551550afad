package training

// CycleState tracks warm-restart bookkeeping for the cosine schedule: the
// current period length in epochs, the growth factor applied at each restart,
// and the position within the current period. It is advanced exactly once per
// epoch, after all batches of that epoch.
type CycleState struct {
	Period int `json:"period"`
	Mult   int `json:"mult"`
	Pos    int `json:"pos"`
}

// NewCycleState returns the initial cycle: period 1, position 0. A mult of
// zero or less falls back to the default doubling factor.
func NewCycleState(mult int) CycleState {
	if mult <= 0 {
		mult = 2
	}
	return CycleState{Period: 1, Mult: mult, Pos: 0}
}

// Advance moves the cycle forward by one epoch and reports whether a warm
// restart occurred. A restart grows the period by Mult and resets the
// position; it triggers only when the position is a nonzero multiple of the
// period, so the very first epoch never restarts even with period 1.
func (c *CycleState) Advance() bool {
	if c.Pos%c.Period == 0 && c.Pos > 0 {
		c.Period *= c.Mult
		c.Pos = 0
		return true
	}
	c.Pos++
	return false
}
