// Package host provides the session-oriented façade a front-end drives:
// assemble/load/step/run/run_to_breakpoint/reset/breakpoints/memory/
// registers, bundled with the internal/debug tooling behind one
// serialising lock per session, grounded on cpu_x86_runner.go's
// CPUX86Runner (LoadProgramData, Run, Step, Reset, the execMu
// single-runner guard) generalised from one hard-coded machine to an
// assemble-then-load 8086 session.
package host

import (
	"fmt"
	"sync"
	"time"

	"github.com/coresim/sim8086/internal/asm"
	"github.com/coresim/sim8086/internal/cpu"
	"github.com/coresim/sim8086/internal/debug"
)

// noBreakpoint is a physical address outside the 1 MiB address space,
// used as the "no breakpoint to skip past" sentinel for lastBreak.
const noBreakpoint = 0xFFFFFFFF

// Session owns one CPU + Memory + breakpoint set, plus the
// step/instruction counters original_source/profiler.py collects and
// CPUX86Runner.Run reports through its PerfEnabled/InstructionCount
// fields. Every exported method takes its lock, so a Session is safe
// to share across goroutines even though the bare CPU it wraps is not.
type Session struct {
	mu  sync.Mutex
	CPU *cpu.CPU
	Mem *cpu.Memory
	Bps *debug.Breakpoints

	lastBreak uint32 // physical address of the breakpoint most recently resumed from

	PerfEnabled      bool
	InstructionCount uint64
	perfStart        time.Time
}

// New returns a fresh session with a zeroed 1 MiB address space and no
// breakpoints, matching CPU.Reset's power-on state.
func New() *Session {
	mem := cpu.NewMemory()
	return &Session{
		CPU:       cpu.New(mem),
		Mem:       mem,
		Bps:       debug.New(),
		lastBreak: noBreakpoint,
	}
}

// Assemble translates source text into a Program without touching
// session state.
func (s *Session) Assemble(source string) (*asm.Program, error) {
	return asm.Assemble(source)
}

// Load copies a Program's code at CS:0 and data at DS:0, sets
// IP=EntryOffset, and resets flags/SP/registers to power-on state.
func (s *Session) Load(prog *asm.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mem.Reset()
	s.CPU.Reset()
	s.Mem.LoadBytes(cpu.Phys(s.CPU.CS, 0), prog.Code)
	s.Mem.LoadBytes(cpu.Phys(s.CPU.DS, 0), prog.Data)
	s.CPU.IP = prog.EntryOffset
	s.lastBreak = noBreakpoint
}

// Step executes exactly one instruction, or reports a BreakpointHit
// (State() becomes StatePaused, no instruction executed) instead if
// IP sits on a live breakpoint. The breakpoint most recently paused at
// is skipped exactly once, the same rule runLocked below applies to
// Run/RunToBreakpoint, so resuming from a breakpoint with a single
// Step doesn't just retrigger it.
func (s *Session) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := cpu.Phys(s.CPU.CS, s.CPU.IP)
	if addr != s.lastBreak && s.Bps.StopFunc(s.CPU)(s.CPU.IP) {
		s.CPU.State = cpu.StatePaused
		s.lastBreak = addr
		return nil
	}

	err := s.CPU.Step()
	s.countInstruction(1)
	if s.CPU.State == cpu.StatePaused {
		s.lastBreak = cpu.Phys(s.CPU.CS, s.CPU.IP)
	} else {
		s.lastBreak = noBreakpoint
	}
	return err
}

// Run executes up to max instructions, stopping early on Halted, a
// fault, or an unconditional/conditional breakpoint.
func (s *Session) Run(max int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(max)
}

// RunToBreakpoint runs unbounded until Halted, a fault, or a
// breakpoint hit. The address a previous run/step just paused at is
// not re-checked on the very next call, so resuming from a breakpoint
// doesn't immediately retrigger it.
func (s *Session) RunToBreakpoint() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(0)
}

func (s *Session) runLocked(max int) (int, error) {
	base := s.Bps.StopFunc(s.CPU)
	resume := s.lastBreak
	first := true
	stop := func(ip uint16) bool {
		addr := cpu.Phys(s.CPU.CS, ip)
		if first {
			first = false
			if addr == resume {
				return false
			}
		}
		return base(ip)
	}
	n, err := s.CPU.Run(max, stop)
	s.countInstruction(uint64(n))
	if s.CPU.State == cpu.StatePaused {
		s.lastBreak = cpu.Phys(s.CPU.CS, s.CPU.IP)
	} else {
		s.lastBreak = noBreakpoint
	}
	return n, err
}

func (s *Session) countInstruction(n uint64) {
	if !s.PerfEnabled {
		return
	}
	if s.InstructionCount == 0 {
		s.perfStart = time.Now()
	}
	s.InstructionCount += n
}

// MIPS reports the instructions-per-second rate since the perf
// counters were last zeroed by Reset, matching CPUX86Runner.Run's
// own MIPS report — informational only, no bearing on step()/run()
// semantics.
func (s *Session) MIPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.perfStart).Seconds()
	if elapsed <= 0 || s.InstructionCount == 0 {
		return 0
	}
	return float64(s.InstructionCount) / elapsed / 1_000_000
}

// Reset restores power-on register/memory state and clears breakpoints
// and perf counters. It and Load (which also resets the CPU) are the
// only ways to leave the Halted or Faulted states.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mem.Reset()
	s.CPU.Reset()
	s.Bps.ClearAll()
	s.lastBreak = noBreakpoint
	s.InstructionCount = 0
}

// AddBreakpoint installs an unconditional breakpoint at a physical
// address.
func (s *Session) AddBreakpoint(phys uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Bps.Set(phys)
}

// AddConditionalBreakpoint installs a breakpoint that only fires when
// expr evaluates truthy.
func (s *Session) AddConditionalBreakpoint(phys uint32, expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Bps.SetConditional(phys, expr)
}

// RemoveBreakpoint clears the breakpoint at a physical address.
func (s *Session) RemoveBreakpoint(phys uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Bps.Clear(phys)
}

// ReadMemory returns a copy of n bytes starting at a physical address.
func (s *Session) ReadMemory(phys uint32, n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Mem.Snapshot(phys, n)
}

// WriteMemory copies data into memory starting at a physical address,
// bypassing the Observer the same way program loading does.
func (s *Session) WriteMemory(phys uint32, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mem.LoadBytes(phys, data)
}

// Registers returns a snapshot of the register file.
func (s *Session) Registers() cpu.RegisterSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CPU.Registers()
}

// Flags returns a snapshot of the flag bits.
func (s *Session) Flags() cpu.FlagSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CPU.FlagsSnapshot()
}

// Disassemble decodes count instructions forward from a physical
// address without touching CPU state.
func (s *Session) Disassemble(phys uint32, count int) []debug.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return debug.Disassemble(s.Mem, phys, count)
}

// State reports the DEX run-state machine's current state.
func (s *Session) State() cpu.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CPU.State
}

// AssembleAndLoad is the common assemble()+load() sequence a CLI or
// REPL front-end drives on startup, surfaced as one call so callers
// don't need to unwrap the Program themselves before every Load.
func (s *Session) AssembleAndLoad(source string) error {
	prog, err := s.Assemble(source)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}
	s.Load(prog)
	return nil
}
