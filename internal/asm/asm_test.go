package asm

import (
	"bytes"
	"testing"

	"github.com/coresim/sim8086/internal/cpu"
)

// load assembles source and runs it on a fresh CPU to completion,
// returning the CPU for register/flag assertions.
func load(t *testing.T, source string, max int) *cpu.CPU {
	t.Helper()
	prog, err := Assemble(source)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	mem := cpu.NewMemory()
	c := cpu.New(mem)
	mem.LoadBytes(cpu.Phys(c.CS, 0), prog.Code)
	mem.LoadBytes(cpu.Phys(c.DS, 0), prog.Data)
	c.IP = prog.EntryOffset
	_, err = c.Run(max, nil)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if !c.Halted {
		t.Fatalf("program did not halt within %d instructions", max)
	}
	return c
}

func TestS1ArithmeticChain(t *testing.T) {
	c := load(t, `
		MOV AX, 10
		MOV BX, 20
		MOV CX, 30
		MOV DX, 40
		ADD AX, BX
		ADD AX, CX
		ADD AX, DX
		HLT
	`, 20)
	if c.AX != 100 || c.BX != 20 || c.CX != 30 || c.DX != 40 {
		t.Errorf("registers: AX=%d BX=%d CX=%d DX=%d", c.AX, c.BX, c.CX, c.DX)
	}
	if c.CF() || c.ZF() {
		t.Errorf("flags: CF=%v ZF=%v, want both false", c.CF(), c.ZF())
	}
}

func TestS2DecJnzLoop(t *testing.T) {
	c := load(t, `
		MOV CX, 5
		MOV AX, 0
	L:	ADD AX, CX
		DEC CX
		JNZ L
		HLT
	`, 50)
	if c.AX != 15 || c.CX != 0 || !c.ZF() {
		t.Errorf("AX=%d CX=%d ZF=%v, want AX=15 CX=0 ZF=true", c.AX, c.CX, c.ZF())
	}
}

func TestS3LoopInstruction(t *testing.T) {
	c := load(t, `
		MOV CX, 5
		MOV AX, 0
	L:	INC AX
		LOOP L
		HLT
	`, 50)
	if c.AX != 5 || c.CX != 0 {
		t.Errorf("AX=%d CX=%d, want AX=5 CX=0", c.AX, c.CX)
	}
}

func TestS4Cbw(t *testing.T) {
	c := load(t, `
		MOV AL, 0x80
		CBW
		HLT
	`, 10)
	if c.AX != 0xFF80 {
		t.Errorf("AX=0x%04X, want 0xFF80", c.AX)
	}
}

func TestS5MulDiv(t *testing.T) {
	c := load(t, `
		MOV AL, 5
		MOV BL, 10
		MUL BL
		MOV AX, 100
		MOV BL, 3
		DIV BL
		HLT
	`, 20)
	al, _ := c.GetRegister("AL")
	ah, _ := c.GetRegister("AH")
	if al != 33 || ah != 1 {
		t.Errorf("AL=%d AH=%d, want AL=33 AH=1", al, ah)
	}
}

func TestS5MulSetsFlags(t *testing.T) {
	c := load(t, `
		MOV AL, 5
		MOV BL, 10
		MUL BL
		HLT
	`, 10)
	if c.AX != 0x0032 || c.CF() || c.OF() {
		t.Errorf("AX=0x%04X CF=%v OF=%v, want AX=0x0032 CF=OF=false", c.AX, c.CF(), c.OF())
	}
}

func TestS6RolRor(t *testing.T) {
	c := load(t, `
		MOV AL, 0x81
		ROL AL, 1
		HLT
	`, 10)
	al, _ := c.GetRegister("AL")
	if al != 0x03 || !c.CF() {
		t.Errorf("AL=0x%02X CF=%v, want AL=0x03 CF=true", al, c.CF())
	}

	c = load(t, `
		MOV AL, 0x81
		ROR AL, 1
		HLT
	`, 10)
	al, _ = c.GetRegister("AL")
	if al != 0xC0 || !c.CF() {
		t.Errorf("AL=0x%02X CF=%v, want AL=0xC0 CF=true", al, c.CF())
	}
}

func TestS7DosPrint(t *testing.T) {
	var out bytes.Buffer
	prog, err := Assemble(`
		.DATA
	msg	DB 'Hi$'
		.CODE
		MOV AX, @DATA
		MOV DS, AX
		MOV AH, 9
		MOV DX, OFFSET msg
		INT 21h
		MOV AX, 0x4C00
		INT 21h
	`)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	mem := cpu.NewMemory()
	c := cpu.New(mem)
	c.Stdout = &out
	mem.LoadBytes(cpu.Phys(c.CS, 0), prog.Code)
	mem.LoadBytes(cpu.Phys(cpu.DefaultDS, 0), prog.Data)
	c.IP = prog.EntryOffset
	if _, err := c.Run(20, nil); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if !c.Halted {
		t.Fatal("program did not halt")
	}
	if out.String() != "Hi" {
		t.Errorf("stdout=%q, want %q", out.String(), "Hi")
	}
	al, _ := c.GetRegister("AL")
	if al != 0 {
		t.Errorf("AL=%d, want 0", al)
	}
}

func TestUnknownMnemonic(t *testing.T) {
	_, err := Assemble("FROBNICATE AX, BX\n")
	ae, ok := err.(*AssemblyError)
	if !ok {
		t.Fatalf("expected *AssemblyError, got %v", err)
	}
	if ae.Kind != UnknownMnemonic {
		t.Errorf("kind=%v, want UnknownMnemonic", ae.Kind)
	}
}

func TestDuplicateLabel(t *testing.T) {
	_, err := Assemble(`
	L:	NOP
	L:	NOP
		HLT
	`)
	ae, ok := err.(*AssemblyError)
	if !ok || ae.Kind != DuplicateLabel {
		t.Fatalf("err=%v, want AssemblyError{DuplicateLabel}", err)
	}
}

func TestUndefinedLabel(t *testing.T) {
	_, err := Assemble("JMP nowhere\n")
	ae, ok := err.(*AssemblyError)
	if !ok || ae.Kind != UndefinedLabel {
		t.Fatalf("err=%v, want AssemblyError{UndefinedLabel}", err)
	}
}

func TestJumpOutOfRange(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("JZ far_away\n")
	for i := 0; i < 200; i++ {
		b.WriteString("NOP\n")
	}
	b.WriteString("far_away: HLT\n")
	_, err := Assemble(b.String())
	ae, ok := err.(*AssemblyError)
	if !ok || ae.Kind != JumpOutOfRange {
		t.Fatalf("err=%v, want AssemblyError{JumpOutOfRange}", err)
	}
}

func TestRepMovsb(t *testing.T) {
	prog, err := Assemble(`
		.DATA
	src	DB 1, 2, 3, 4, 5
	dst	DB 0, 0, 0, 0, 0
		.CODE
		MOV AX, @DATA
		MOV DS, AX
		MOV ES, AX
		MOV SI, OFFSET src
		MOV DI, OFFSET dst
		MOV CX, 5
		CLD
		REP MOVSB
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
	if _, err := c.Run(50, nil); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if c.CX != 0 {
		t.Errorf("CX=%d, want 0", c.CX)
	}
	got := mem.Snapshot(cpu.Phys(cpu.DefaultDS, 5), 5)
	want := []byte{1, 2, 3, 4, 5}
	if !bytes.Equal(got, want) {
		t.Errorf("dst=%v, want %v", got, want)
	}
}

func TestEquConstant(t *testing.T) {
	c := load(t, `
	COUNT EQU 7
		MOV AX, COUNT
		HLT
	`, 10)
	if c.AX != 7 {
		t.Errorf("AX=%d, want 7", c.AX)
	}
}

// TestFarCallRoundTrip assembles a CALL FAR seg:off / RET FAR pair:
// the far routine is placed right after the HLT so CALL's return
// address lands exactly on it.
func TestFarCallRoundTrip(t *testing.T) {
	c := load(t, `
		MOV AX, 1
		CALL FAR 0x10:9
		HLT
		ADD AX, 5
		RETF
	`, 20)
	if c.AX != 6 {
		t.Errorf("AX=%d, want 6", c.AX)
	}
}
