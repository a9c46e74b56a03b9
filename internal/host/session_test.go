package host

import (
	"context"
	"testing"

	"github.com/coresim/sim8086/internal/cpu"
)

func TestSessionAssembleLoadRun(t *testing.T) {
	s := New()
	if err := s.AssembleAndLoad(`
		MOV AX, 10
		MOV BX, 20
		ADD AX, BX
		HLT
	`); err != nil {
		t.Fatalf("AssembleAndLoad: %v", err)
	}
	if _, err := s.Run(20); err != nil {
		t.Fatalf("Run: %v", err)
	}
	regs := s.Registers()
	if regs.AX != 30 {
		t.Errorf("AX=%d, want 30", regs.AX)
	}
	if s.State() != cpu.StateHalted {
		t.Errorf("state=%v, want Halted", s.State())
	}
}

func TestSessionRunToBreakpointResumesPastIt(t *testing.T) {
	s := New()
	prog, err := s.Assemble(`
		MOV CX, 3
		MOV AX, 0
	L:	ADD AX, CX
		DEC CX
		JNZ L
		HLT
	`)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	s.Load(prog)
	target := cpu.Phys(s.CPU.CS, prog.Symbols["L"].Offset)
	s.AddBreakpoint(target)

	if _, err := s.RunToBreakpoint(); err != nil {
		t.Fatalf("RunToBreakpoint: %v", err)
	}
	if s.State() != cpu.StatePaused {
		t.Fatalf("state=%v, want Paused after first breakpoint hit", s.State())
	}
	firstAX := s.Registers().AX

	// Resuming must step past the breakpoint instead of re-triggering
	// immediately at the same address.
	if _, err := s.RunToBreakpoint(); err != nil {
		t.Fatalf("RunToBreakpoint (resume): %v", err)
	}
	if s.State() != cpu.StatePaused {
		t.Fatalf("state=%v, want Paused after second breakpoint hit", s.State())
	}
	secondAX := s.Registers().AX
	if secondAX == firstAX {
		t.Errorf("AX did not change across the resume (%d == %d), breakpoint retriggered without executing", firstAX, secondAX)
	}

	s.RemoveBreakpoint(target)
	if _, err := s.RunToBreakpoint(); err != nil {
		t.Fatalf("RunToBreakpoint (final): %v", err)
	}
	if s.State() != cpu.StateHalted {
		t.Fatalf("state=%v, want Halted once the breakpoint is cleared", s.State())
	}
}

func TestSessionStepStopsAtBreakpointThenStepsPastIt(t *testing.T) {
	s := New()
	prog, err := s.Assemble(`
		MOV AX, 1
		MOV BX, 2
	L:	MOV CX, 3
		HLT
	`)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	s.Load(prog)
	target := cpu.Phys(s.CPU.CS, prog.Symbols["L"].Offset)
	s.AddBreakpoint(target)

	// MOV AX, 1
	if err := s.Step(); err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	if s.State() != cpu.StateRunning {
		t.Fatalf("state=%v after step 1, want Running", s.State())
	}
	// MOV BX, 2
	if err := s.Step(); err != nil {
		t.Fatalf("Step 2: %v", err)
	}

	// Next Step would execute "MOV CX, 3" at the breakpoint address —
	// it must report the hit instead of executing.
	if err := s.Step(); err != nil {
		t.Fatalf("Step 3 (breakpoint): %v", err)
	}
	if s.State() != cpu.StatePaused {
		t.Fatalf("state=%v, want Paused at breakpoint", s.State())
	}
	if cx := s.Registers().CX; cx != 0 {
		t.Errorf("CX=%d, want 0 (MOV CX, 3 must not have executed yet)", cx)
	}

	// The very next Step must step past the breakpoint instead of
	// re-reporting it immediately.
	if err := s.Step(); err != nil {
		t.Fatalf("Step 4 (past breakpoint): %v", err)
	}
	if s.State() == cpu.StatePaused {
		t.Fatal("Step retriggered the breakpoint instead of stepping past it")
	}
	if cx := s.Registers().CX; cx != 3 {
		t.Errorf("CX=%d, want 3 (MOV CX, 3 should have executed)", cx)
	}
}

func TestSessionResetClearsStateAndCounters(t *testing.T) {
	s := New()
	s.PerfEnabled = true
	if err := s.AssembleAndLoad("MOV AX, 1\nHLT\n"); err != nil {
		t.Fatalf("AssembleAndLoad: %v", err)
	}
	if _, err := s.Run(10); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.InstructionCount == 0 {
		t.Fatal("expected non-zero instruction count before reset")
	}
	s.Reset()
	if s.InstructionCount != 0 {
		t.Errorf("InstructionCount=%d after Reset, want 0", s.InstructionCount)
	}
	if s.Registers().AX != 0 {
		t.Errorf("AX=%d after Reset, want 0", s.Registers().AX)
	}
}

func TestSessionMemoryReadWrite(t *testing.T) {
	s := New()
	s.WriteMemory(0x500, []byte{1, 2, 3})
	got := s.ReadMemory(0x500, 3)
	want := []byte{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSessionPoolBoundsConcurrency(t *testing.T) {
	pool := NewSessionPool(1)
	s := New()
	if err := s.AssembleAndLoad("MOV AX, 1\nHLT\n"); err != nil {
		t.Fatalf("AssembleAndLoad: %v", err)
	}
	if !pool.TryAcquire() {
		t.Fatal("expected first TryAcquire to succeed")
	}
	if pool.TryAcquire() {
		t.Fatal("expected second TryAcquire to fail while the first slot is held")
	}
	pool.Release()

	n, err := pool.RunBounded(context.Background(), s, 10)
	if err != nil {
		t.Fatalf("RunBounded: %v", err)
	}
	if n == 0 {
		t.Error("RunBounded executed zero instructions")
	}
}
