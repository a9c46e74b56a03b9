package debug

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coresim/sim8086/internal/cpu"
)

// Breakpoint is one instruction-fetch breakpoint, keyed by physical
// address rather than segment:offset since CS can change underneath a
// fixed offset. Cond is nil for an unconditional breakpoint.
type Breakpoint struct {
	Addr     uint32
	Cond     *Condition
	CondText string
	HitCount uint64
}

// Watchpoint fires when the byte at Addr changes value; Last holds the
// value observed the last time the watchpoint was checked.
type Watchpoint struct {
	Addr uint32
	Last byte
}

// Breakpoints owns the synchronous breakpoint/watchpoint state a debug
// console drives internal/cpu.CPU.Run with. Unlike DebugX86, which
// polls breakpoints from a background goroutine (trapLoop in
// debug_cpu_x86.go) against Freeze/Resume, this type does no polling
// of its own: the session's run-to-breakpoint path calls CPU.Run once
// with StopFunc as the stop predicate, and Run's own bounded loop is
// the only control flow — there is nothing to suspend and nothing to
// resume.
type Breakpoints struct {
	mu          sync.Mutex
	breakpoints map[uint32]*Breakpoint
	watchpoints map[uint32]*Watchpoint
}

// New returns an empty breakpoint/watchpoint set.
func New() *Breakpoints {
	return &Breakpoints{
		breakpoints: make(map[uint32]*Breakpoint),
		watchpoints: make(map[uint32]*Watchpoint),
	}
}

// Set installs an unconditional breakpoint at a physical address.
func (b *Breakpoints) Set(addr uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breakpoints[addr] = &Breakpoint{Addr: addr}
}

// SetConditional installs a breakpoint that only fires when expr
// evaluates truthy against the register/flag/memory snapshot at the
// time it's hit — see condition.go.
func (b *Breakpoints) SetConditional(addr uint32, expr string) error {
	cond, err := CompileCondition(expr)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breakpoints[addr] = &Breakpoint{Addr: addr, Cond: cond, CondText: expr}
	return nil
}

// Clear removes the breakpoint at addr, if any.
func (b *Breakpoints) Clear(addr uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.breakpoints, addr)
}

// ClearAll removes every breakpoint.
func (b *Breakpoints) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breakpoints = make(map[uint32]*Breakpoint)
}

// Has reports whether a breakpoint (conditional or not) is set at addr.
func (b *Breakpoints) Has(addr uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.breakpoints[addr]
	return ok
}

// List returns every breakpoint address in ascending order.
func (b *Breakpoints) List() []*Breakpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Breakpoint, 0, len(b.breakpoints))
	for _, bp := range b.breakpoints {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// SetWatchpoint arms a watchpoint on the byte at addr, capturing its
// current value from mem as the baseline.
func (b *Breakpoints) SetWatchpoint(mem *cpu.Memory, addr uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchpoints[addr] = &Watchpoint{Addr: addr, Last: mem.Snapshot(addr, 1)[0]}
}

// ClearWatchpoint disarms the watchpoint at addr, if any.
func (b *Breakpoints) ClearWatchpoint(addr uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.watchpoints, addr)
}

// ClearAllWatchpoints disarms every watchpoint.
func (b *Breakpoints) ClearAllWatchpoints() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchpoints = make(map[uint32]*Watchpoint)
}

// ListWatchpoints returns every watchpoint address in ascending order.
func (b *Breakpoints) ListWatchpoints() []*Watchpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Watchpoint, 0, len(b.watchpoints))
	for _, wp := range b.watchpoints {
		out = append(out, wp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// CheckWatchpoints re-reads every armed watchpoint's byte from mem and
// returns the addresses whose value changed since the last check,
// updating Last as it goes. A debug console calls this after each
// step/run rather than wiring a live Observer, since the CPU core is
// synchronous and a step boundary is exactly where a watchpoint is
// meaningful to report.
func (b *Breakpoints) CheckWatchpoints(mem *cpu.Memory) []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var fired []uint32
	for addr, wp := range b.watchpoints {
		cur := mem.Snapshot(addr, 1)[0]
		if cur != wp.Last {
			fired = append(fired, addr)
			wp.Last = cur
		}
	}
	sort.Slice(fired, func(i, j int) bool { return fired[i] < fired[j] })
	return fired
}

// StopFunc returns the predicate run_to_breakpoint hands to
// internal/cpu.CPU.Run: it converts the current IP to a physical
// address against c's current CS, checks it against the breakpoint
// set, and evaluates any attached condition. A hit increments
// HitCount and returns true so Run stops before executing that
// instruction, leaving c.State as StatePaused.
func (b *Breakpoints) StopFunc(c *cpu.CPU) func(ip uint16) bool {
	return func(ip uint16) bool {
		addr := cpu.Phys(c.CS, ip)
		b.mu.Lock()
		bp, ok := b.breakpoints[addr]
		b.mu.Unlock()
		if !ok {
			return false
		}
		if bp.Cond != nil && !bp.Cond.Eval(c) {
			return false
		}
		b.mu.Lock()
		bp.HitCount++
		b.mu.Unlock()
		return true
	}
}

// Describe formats a breakpoint the way a debug console lists it.
func Describe(bp *Breakpoint) string {
	if bp.Cond == nil {
		return fmt.Sprintf("0x%05X (hits=%d)", bp.Addr, bp.HitCount)
	}
	return fmt.Sprintf("0x%05X if %s (hits=%d)", bp.Addr, bp.CondText, bp.HitCount)
}
