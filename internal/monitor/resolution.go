package monitor

// Resolution is the dispatch loop's decision for how the trapped program
// proceeds. The two outcomes are deliberately asymmetric: Resume means the
// interrupt was acknowledged and the debuggee continues where it stopped,
// while Step means the interrupt controller was re-armed and the trap stays
// pending until the step budget expires.
type Resolution struct {
	step  bool
	count uint64
}

// Resume resolves the trap as fully serviced.
func Resume() Resolution { return Resolution{} }

// Step resolves the trap by arming a re-entry after count instructions.
func Step(count uint64) Resolution { return Resolution{step: true, count: count} }

// IsStep reports whether the resolution re-arms instead of resuming.
func (r Resolution) IsStep() bool { return r.step }

// Steps returns the requested instruction count of a step resolution.
func (r Resolution) Steps() uint64 { return r.count }

// Code maps the resolution onto the numeric handler contract: 0 for a
// resume, the step count otherwise.
func (r Resolution) Code() uint64 {
	if !r.step {
		return 0
	}
	return r.count
}
