package cpu

import "fmt"

// State is the DEX run state machine: Idle -> Running -> one of
// Halted, Faulted, Paused.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateHalted
	StateFaulted
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateHalted:
		return "Halted"
	case StateFaulted:
		return "Faulted"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// FaultKind enumerates the non-recoverable execution errors DEX can
// raise. A fault is distinct from an interrupt: it stops execution and
// is reported, never retried.
type FaultKind int

const (
	FaultInvalidOpcode FaultKind = iota
	FaultDivideError
	FaultUnhandledInterrupt
	FaultOutOfBudget
)

func (k FaultKind) String() string {
	switch k {
	case FaultInvalidOpcode:
		return "InvalidOpcode"
	case FaultDivideError:
		return "DivideError"
	case FaultUnhandledInterrupt:
		return "UnhandledInterrupt"
	case FaultOutOfBudget:
		return "OutOfBudget"
	default:
		return "Unknown"
	}
}

// Fault is returned by Step/Run when execution cannot continue.
type Fault struct {
	Kind FaultKind
	IP   uint16
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault %s at IP=0x%04X", f.Kind, f.IP)
}

// Step decodes and executes exactly one instruction. It returns a
// *Fault if the instruction cannot execute, or nil on a normal step
// (which may set Halted, in which case State becomes StateHalted and
// subsequent Step calls are no-ops that return nil).
func (c *CPU) Step() error {
	if c.Halted {
		c.State = StateHalted
		return nil
	}
	c.State = StateRunning
	instr := c.decode()
	if err := c.execute(instr); err != nil {
		c.State = StateFaulted
		return err
	}
	if c.Halted {
		c.State = StateHalted
	}
	return nil
}

// Run executes up to max instructions (max <= 0 means unbounded),
// stopping early on Halted, a fault, or a breakpoint address in stop.
// It returns the number of instructions actually executed. If max is
// positive and is reached without the loop otherwise terminating, Run
// returns a *Fault{Kind: FaultOutOfBudget} rather than a bare (n, nil)
// so a caller can tell "ran out of budget" apart from every other exit.
func (c *CPU) Run(max int, stop func(ip uint16) bool) (int, error) {
	n := 0
	for max <= 0 || n < max {
		if c.Halted {
			return n, nil
		}
		if stop != nil && stop(c.IP) {
			c.State = StatePaused
			return n, nil
		}
		if err := c.Step(); err != nil {
			return n, err
		}
		n++
	}
	if c.Halted {
		return n, nil
	}
	c.State = StateFaulted
	return n, &Fault{Kind: FaultOutOfBudget, IP: c.IP}
}
