package debug

import (
	"strings"
	"testing"

	"github.com/coresim/sim8086/internal/asm"
	"github.com/coresim/sim8086/internal/cpu"
)

func assembleAndLoad(t *testing.T, source string) (*cpu.CPU, *cpu.Memory, *asm.Program) {
	t.Helper()
	prog, err := asm.Assemble(source)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	mem := cpu.NewMemory()
	c := cpu.New(mem)
	mem.LoadBytes(cpu.Phys(c.CS, 0), prog.Code)
	c.IP = prog.EntryOffset
	return c, mem, prog
}

func TestUnconditionalBreakpointStopsRun(t *testing.T) {
	c, _, prog := assembleAndLoad(t, `
		MOV AX, 1
		MOV BX, 2
	L:	MOV CX, 3
		HLT
	`)
	bps := New()
	target := cpu.Phys(c.CS, prog.Symbols["L"].Offset)
	bps.Set(target)

	n, err := c.Run(20, bps.StopFunc(c))
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if c.State != cpu.StatePaused {
		t.Fatalf("state=%v, want StatePaused", c.State)
	}
	if c.IP != prog.Symbols["L"].Offset {
		t.Errorf("IP=0x%04X, want breakpoint offset 0x%04X", c.IP, prog.Symbols["L"].Offset)
	}
	if n != 2 {
		t.Errorf("executed %d instructions before stopping, want 2", n)
	}
	bp := bps.List()[0]
	if bp.HitCount != 1 {
		t.Errorf("HitCount=%d, want 1", bp.HitCount)
	}
}

func TestConditionalBreakpointOnlyFiresWhenTrue(t *testing.T) {
	c, _, prog := assembleAndLoad(t, `
		MOV CX, 5
		MOV AX, 0
	L:	ADD AX, CX
		DEC CX
		JNZ L
		HLT
	`)
	bps := New()
	target := cpu.Phys(c.CS, prog.Symbols["L"].Offset)
	if err := bps.SetConditional(target, "CX == 2"); err != nil {
		t.Fatalf("SetConditional: %v", err)
	}

	if _, err := c.Run(30, bps.StopFunc(c)); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if c.State != cpu.StatePaused {
		t.Fatalf("state=%v, want StatePaused", c.State)
	}
	cx, _ := c.GetRegister("CX")
	if cx != 2 {
		t.Errorf("CX=%d, want 2 (condition should hold exactly when CX==2)", cx)
	}
}

func TestConditionalBreakpointBadExprNeverFires(t *testing.T) {
	c, _, _ := assembleAndLoad(t, `
		MOV AX, 1
		HLT
	`)
	bps := New()
	bps.SetConditional(cpu.Phys(c.CS, 0), "this is not lua (((")
	if _, err := c.Run(10, bps.StopFunc(c)); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if !c.Halted {
		t.Fatal("run should have completed to HLT since the malformed condition never fires")
	}
}

func TestWatchpointDetectsMemoryChange(t *testing.T) {
	prog, err := asm.Assemble(`
		.DATA
	v	DB 0
		.CODE
		MOV AX, @DATA
		MOV DS, AX
		MOV BYTE PTR [v], 42
		HLT
	`)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	mem := cpu.NewMemory()
	c := cpu.New(mem)
	mem.LoadBytes(cpu.Phys(c.CS, 0), prog.Code)
	mem.LoadBytes(cpu.Phys(cpu.DefaultDS, 0), prog.Data)
	c.IP = prog.EntryOffset

	target := cpu.Phys(cpu.DefaultDS, prog.Symbols["v"].Offset)
	bps := New()
	bps.SetWatchpoint(mem, target)

	if fired := bps.CheckWatchpoints(mem); len(fired) != 0 {
		t.Fatalf("watchpoint fired before any write: %v", fired)
	}
	if _, err := c.Run(10, nil); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	fired := bps.CheckWatchpoints(mem)
	if len(fired) != 1 || fired[0] != target {
		t.Errorf("fired=%v, want [0x%05X]", fired, target)
	}
}

func TestDisassembleRoundTripsMnemonics(t *testing.T) {
	prog, err := asm.Assemble(`
		MOV AX, 10
		ADD AX, BX
		JZ next
	next:	HLT
	`)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	mem := cpu.NewMemory()
	mem.LoadBytes(0, prog.Code)

	lines := Disassemble(mem, 0, 4)
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	if !strings.HasPrefix(lines[0].Mnemonic, "MOV AX, 0x000A") {
		t.Errorf("line0=%q", lines[0].Mnemonic)
	}
	if !strings.HasPrefix(lines[1].Mnemonic, "ADD AX, BX") {
		t.Errorf("line1=%q", lines[1].Mnemonic)
	}
	if !lines[2].IsBranch {
		t.Errorf("line2=%q should be flagged as a branch", lines[2].Mnemonic)
	}
	if lines[3].Mnemonic != "HLT" {
		t.Errorf("line3=%q, want HLT", lines[3].Mnemonic)
	}
}

func TestFormatFlagsUppercasesSetBits(t *testing.T) {
	c, _, _ := assembleAndLoad(t, `
		MOV AX, 0
		DEC AX
		HLT
	`)
	if _, err := c.Run(10, nil); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	flags := FormatFlags(c)
	if !strings.Contains(flags, "S") {
		t.Errorf("flags=%q, want sign flag set after 0-1 underflow", flags)
	}
}

func TestFormatMemoryHexDump(t *testing.T) {
	mem := cpu.NewMemory()
	mem.LoadBytes(0, []byte("Hi$"))
	out := FormatMemory(mem, 0, 3)
	if !strings.Contains(out, "48 69 24") {
		t.Errorf("dump=%q, want hex bytes 48 69 24", out)
	}
	if !strings.Contains(out, "Hi$") {
		t.Errorf("dump=%q, want ascii gutter Hi$", out)
	}
}
