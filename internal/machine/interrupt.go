package machine

// Halt vectors carried into the monitor when the core traps.
const (
	// VecTrap is raised for an explicit trap: initial monitor entry and
	// faults on unprogrammed (all-zero) words.
	VecTrap = 1
	// VecBreak is raised when execution reaches a breakpoint opcode.
	VecBreak = 2
	// VecStep is raised when an armed single-step budget is exhausted.
	VecStep = 3
)

// IntController is the slice of interrupt fabric the monitor drives. The
// step arm is one-shot: taking any trap clears it, so the monitor re-arms
// before every step resolution.
type IntController struct {
	pending   int
	stepArmed bool
	acks      int
}

// NewIntController returns a controller with nothing pending.
func NewIntController() *IntController {
	return &IntController{}
}

// Raise records vec as the pending trap and clears the one-shot step arm.
func (c *IntController) Raise(vec int) {
	c.pending = vec
	c.stepArmed = false
}

// Pending returns the vector of the trap being serviced, zero when none.
func (c *IntController) Pending() int { return c.pending }

// ArmSingleStep arms a one-shot trap after the next step budget.
func (c *IntController) ArmSingleStep() { c.stepArmed = true }

// SingleStepArmed reports whether the step arm is set.
func (c *IntController) SingleStepArmed() bool { return c.stepArmed }

// Acknowledge retires the pending trap. Resuming without acknowledging
// leaves the vector pending for the next episode, which is exactly what the
// step resolutions rely on.
func (c *IntController) Acknowledge() {
	c.pending = 0
	c.acks++
}

// AckCount returns how many traps have been acknowledged.
func (c *IntController) AckCount() int { return c.acks }
