package indicator

// Cascade is the state of the four-stage Laguerre filter at one bar.
// The zero value is the seed used before warm-up.
type Cascade struct {
	L0, L1, L2, L3 float64
}

// Step advances the cascade by one bar with input x and coefficient gamma
// and returns the new state. prev is not modified.
func (prev Cascade) Step(x, gamma float64) Cascade {
	var c Cascade
	c.L0 = (1-gamma)*x + gamma*prev.L0
	c.L1 = -gamma*c.L0 + prev.L0 + gamma*prev.L1
	c.L2 = -gamma*c.L1 + prev.L1 + gamma*prev.L2
	c.L3 = -gamma*c.L2 + prev.L2 + gamma*prev.L3
	return c
}

// SumUpDown aggregates the three adjacent stage differences independently.
func (c Cascade) SumUpDown() (cu, cd float64) {
	stages := [4]float64{c.L0, c.L1, c.L2, c.L3}
	for k := 0; k < 3; k++ {
		d := stages[k] - stages[k+1]
		if d > 0 {
			cu += d
		} else {
			cd -= d
		}
	}
	return cu, cd
}

// CarryUpDown aggregates the stage differences with cumulative carry: each
// comparison starts from the totals left by the previous one.
func (c Cascade) CarryUpDown() (cu, cd float64) {
	var cu1, cd1 float64
	if c.L0 >= c.L1 {
		cu1 = c.L0 - c.L1
	} else {
		cd1 = c.L1 - c.L0
	}

	cu2, cd2 := cu1, cd1
	if c.L1 >= c.L2 {
		cu2 = cu1 + c.L1 - c.L2
	} else {
		cd2 = cd1 + c.L2 - c.L1
	}

	cu, cd = cu2, cd2
	if c.L2 >= c.L3 {
		cu = cu2 + c.L2 - c.L3
	} else {
		cd = cd2 + c.L3 - c.L2
	}
	return cu, cd
}

// oscillatorValue maps up/down congestion to [0,100], 0 when both are 0.
func oscillatorValue(cu, cd float64) float64 {
	if cu+cd == 0 {
		return 0
	}
	return 100 * cu / (cu + cd)
}
