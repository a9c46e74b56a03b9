package cpu

import (
	"bytes"
	"testing"
)

func newTestCPU(prog []byte) *CPU {
	mem := NewMemory()
	c := New(mem)
	mem.LoadBytes(Phys(c.CS, 0), prog)
	return c
}

func runToHalt(t *testing.T, c *CPU, max int) {
	t.Helper()
	_, err := c.Run(max, nil)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if !c.Halted {
		t.Fatalf("program did not halt within %d instructions", max)
	}
}

// TestRegisterAccess exercises the 8/16-bit register aliasing rules:
// AL/AH are the low/high bytes of AX, and so on for BX/CX/DX.
func TestRegisterAccess(t *testing.T) {
	c := New(NewMemory())
	c.AX = 0x1234
	if v, _ := c.GetRegister("AL"); v != 0x34 {
		t.Errorf("AL: got 0x%02X, want 0x34", v)
	}
	if v, _ := c.GetRegister("AH"); v != 0x12 {
		t.Errorf("AH: got 0x%02X, want 0x12", v)
	}
	c.SetRegister("BL", 0xAB)
	c.SetRegister("BH", 0xCD)
	if c.BX != 0xCDAB {
		t.Errorf("BX after SetBL/SetBH: got 0x%04X, want 0xCDAB", c.BX)
	}
}

func TestFlags(t *testing.T) {
	c := New(NewMemory())
	c.setFlag(FlagCF, true)
	if !c.CF() {
		t.Error("CF should be set")
	}
	c.setFlag(FlagCF, false)
	if c.CF() {
		t.Error("CF should be clear")
	}
	if !parity(0x03) {
		t.Error("parity(0x03) should be even (two bits set)")
	}
	if parity(0x01) {
		t.Error("parity(0x01) should be odd")
	}
}

// TestS1ArithmeticChain is spec scenario S1: four immediate loads
// followed by three chained ADDs.
func TestS1ArithmeticChain(t *testing.T) {
	prog := []byte{
		0xB8, 0x0A, 0x00, // MOV AX,10
		0xBB, 0x14, 0x00, // MOV BX,20
		0xB9, 0x1E, 0x00, // MOV CX,30
		0xBA, 0x28, 0x00, // MOV DX,40
		0x01, 0xD8, // ADD AX,BX
		0x01, 0xC8, // ADD AX,CX
		0x01, 0xD0, // ADD AX,DX
		0xF4, // HLT
	}
	c := newTestCPU(prog)
	runToHalt(t, c, 20)

	if c.AX != 100 {
		t.Errorf("AX: got %d, want 100", c.AX)
	}
	if c.BX != 20 || c.CX != 30 || c.DX != 40 {
		t.Errorf("BX/CX/DX: got %d/%d/%d, want 20/30/40", c.BX, c.CX, c.DX)
	}
	if c.ZF() {
		t.Error("ZF should be clear")
	}
	if c.CF() {
		t.Error("CF should be clear")
	}
}

// TestS2DecJnzLoop is spec scenario S2.
func TestS2DecJnzLoop(t *testing.T) {
	prog := []byte{
		0xB9, 0x05, 0x00, // MOV CX,5
		0xB8, 0x00, 0x00, // MOV AX,0
		0x01, 0xC8, // L: ADD AX,CX
		0x49,       // DEC CX
		0x75, 0xFB, // JNZ L
		0xF4, // HLT
	}
	c := newTestCPU(prog)
	runToHalt(t, c, 100)

	if c.AX != 15 {
		t.Errorf("AX: got %d, want 15", c.AX)
	}
	if c.CX != 0 {
		t.Errorf("CX: got %d, want 0", c.CX)
	}
	if !c.ZF() {
		t.Error("ZF should be set")
	}
}

// TestS3LoopInstruction is spec scenario S3.
func TestS3LoopInstruction(t *testing.T) {
	prog := []byte{
		0xB9, 0x05, 0x00, // MOV CX,5
		0xB8, 0x00, 0x00, // MOV AX,0
		0x40,       // L: INC AX
		0xE2, 0xFD, // LOOP L
		0xF4, // HLT
	}
	c := newTestCPU(prog)
	runToHalt(t, c, 100)

	if c.AX != 5 {
		t.Errorf("AX: got %d, want 5", c.AX)
	}
	if c.CX != 0 {
		t.Errorf("CX: got %d, want 0", c.CX)
	}
}

// TestS4Cbw is spec scenario S4: sign-extending AL into AX.
func TestS4Cbw(t *testing.T) {
	prog := []byte{
		0xB0, 0x80, // MOV AL,0x80
		0x98, // CBW
		0xF4, // HLT
	}
	c := newTestCPU(prog)
	runToHalt(t, c, 10)

	if c.AX != 0xFF80 {
		t.Errorf("AX: got 0x%04X, want 0xFF80", c.AX)
	}
}

// TestS5MulDiv is spec scenario S5.
func TestS5MulDiv(t *testing.T) {
	mulProg := []byte{
		0xB0, 0x05, // MOV AL,5
		0xB3, 0x0A, // MOV BL,10
		0xF6, 0xE3, // MUL BL
		0xF4, // HLT
	}
	c := newTestCPU(mulProg)
	runToHalt(t, c, 10)
	if c.AX != 0x0032 {
		t.Errorf("AX after MUL: got 0x%04X, want 0x0032", c.AX)
	}
	if c.CF() || c.OF() {
		t.Error("CF and OF should be clear after MUL 5*10")
	}

	divProg := []byte{
		0xB8, 0x64, 0x00, // MOV AX,100
		0xB3, 0x03, // MOV BL,3
		0xF6, 0xF3, // DIV BL
		0xF4, // HLT
	}
	c = newTestCPU(divProg)
	runToHalt(t, c, 10)
	if al := byte(c.AX); al != 33 {
		t.Errorf("AL after DIV: got %d, want 33", al)
	}
	if ah := byte(c.AX >> 8); ah != 1 {
		t.Errorf("AH after DIV: got %d, want 1", ah)
	}
}

// TestS6RolRor is spec scenario S6.
func TestS6RolRor(t *testing.T) {
	rolProg := []byte{
		0xB0, 0x81, // MOV AL,0x81
		0xD0, 0xC0, // ROL AL,1
		0xF4, // HLT
	}
	c := newTestCPU(rolProg)
	runToHalt(t, c, 10)
	if al := byte(c.AX); al != 0x03 {
		t.Errorf("AL after ROL: got 0x%02X, want 0x03", al)
	}
	if !c.CF() {
		t.Error("CF should be set after ROL 0x81,1")
	}

	rorProg := []byte{
		0xB0, 0x81, // MOV AL,0x81
		0xD0, 0xC8, // ROR AL,1
		0xF4, // HLT
	}
	c = newTestCPU(rorProg)
	runToHalt(t, c, 10)
	if al := byte(c.AX); al != 0xC0 {
		t.Errorf("AL after ROR: got 0x%02X, want 0xC0", al)
	}
	if !c.CF() {
		t.Error("CF should be set after ROR 0x81,1")
	}
}

// TestS7DosPrint is spec scenario S7: the DOS INT 21h print/exit stub.
func TestS7DosPrint(t *testing.T) {
	prog := []byte{
		0xB4, 0x09, // MOV AH,9
		0xBA, 0x00, 0x01, // MOV DX,0x0100
		0xCD, 0x21, // INT 21h
		0xB8, 0x00, 0x4C, // MOV AX,0x4C00
		0xCD, 0x21, // INT 21h
	}
	c := newTestCPU(prog)
	c.Mem.LoadBytes(Phys(c.DS, 0x0100), []byte("Hi$"))

	var out bytes.Buffer
	c.Stdout = &out

	runToHalt(t, c, 10)

	if out.String() != "Hi" {
		t.Errorf("stdout: got %q, want %q", out.String(), "Hi")
	}
	if !c.Halted {
		t.Error("CPU should be halted after INT 21h AH=4Ch")
	}
	if al := byte(c.AX); al != 0 {
		t.Errorf("AL exit code: got %d, want 0", al)
	}
}

// TestDivideByZeroFaults verifies DIV 0 raises a DivideError fault
// rather than being treated as a retryable condition.
func TestDivideByZeroFaults(t *testing.T) {
	prog := []byte{
		0xB8, 0x0A, 0x00, // MOV AX,10
		0xB3, 0x00, // MOV BL,0
		0xF6, 0xF3, // DIV BL
		0xF4, // HLT
	}
	c := newTestCPU(prog)
	_, err := c.Run(10, nil)
	f, ok := err.(*Fault)
	if !ok {
		t.Fatalf("expected *Fault, got %v", err)
	}
	if f.Kind != FaultDivideError {
		t.Errorf("fault kind: got %v, want DivideError", f.Kind)
	}
}

// TestUndefinedOpcodeFaults verifies an unmapped opcode byte raises
// FaultInvalidOpcode.
func TestUndefinedOpcodeFaults(t *testing.T) {
	c := newTestCPU([]byte{0x0F, 0xFF}) // 0F is not decoded by this core
	_, err := c.Run(1, nil)
	f, ok := err.(*Fault)
	if !ok {
		t.Fatalf("expected *Fault, got %v", err)
	}
	if f.Kind != FaultInvalidOpcode {
		t.Errorf("fault kind: got %v, want InvalidOpcode", f.Kind)
	}
}

// TestRunOutOfBudgetFaults verifies Run reports FaultOutOfBudget,
// rather than a bare (n, nil), when max is exhausted without the loop
// otherwise halting, faulting, or hitting a breakpoint.
func TestRunOutOfBudgetFaults(t *testing.T) {
	prog := []byte{
		0xB8, 0x01, 0x00, // MOV AX,1
		0xEB, 0xFB, // JMP back to offset 0: loops forever
	}
	c := newTestCPU(prog)
	n, err := c.Run(5, nil)
	f, ok := err.(*Fault)
	if !ok {
		t.Fatalf("expected *Fault, got %v", err)
	}
	if f.Kind != FaultOutOfBudget {
		t.Errorf("fault kind: got %v, want OutOfBudget", f.Kind)
	}
	if n != 5 {
		t.Errorf("n=%d, want 5", n)
	}
	if c.State != StateFaulted {
		t.Errorf("state=%v, want StateFaulted", c.State)
	}
}

// TestFarCallAndReturn exercises 0x9A (CALL ptr16:16) and 0xCB (RET
// far): a far call pushes CS then IP, so a matching far return must
// pop IP then CS to land back on the instruction after the call with
// CS restored to its original value.
func TestFarCallAndReturn(t *testing.T) {
	prog := []byte{
		0xB8, 0x01, 0x00, // 0: MOV AX,1
		0x9A, 0x09, 0x00, 0x10, 0x00, // 3: CALL FAR 0x0010:0x0009
		0xF4,             // 8: HLT
		0x05, 0x05, 0x00, // 9: ADD AX,5
		0xCB, // 12: RET FAR
	}
	c := newTestCPU(prog)
	wantCS := c.CS
	runToHalt(t, c, 20)
	if c.AX != 6 {
		t.Errorf("AX=%d, want 6", c.AX)
	}
	if c.CS != wantCS {
		t.Errorf("CS=0x%04X, want 0x%04X (restored by far return)", c.CS, wantCS)
	}
	if c.IP != 9 {
		t.Errorf("IP after HLT fetch=%d, want 9", c.IP)
	}
}

// TestFarReturnWithImmPopsExtraStackBytes exercises 0xCA (RET far
// imm16): like 0xC2, the immediate is extra bytes discarded from the
// stack after the far return address is popped, e.g. to unwind
// arguments a far caller pushed before CALLing.
func TestFarReturnWithImmPopsExtraStackBytes(t *testing.T) {
	prog := []byte{
		0xCA, 0x04, 0x00, // RET FAR 4
	}
	c := newTestCPU(prog)
	c.SP = 0x100
	c.pushWord(0xAAAA) // extra word below the return address, discarded by the imm16
	c.pushWord(0xBBBB) // extra word below the return address, discarded by the imm16
	c.pushWord(0x1234) // CS
	c.pushWord(0x0050) // IP, on top of the stack
	spBefore := c.SP
	if err := c.Step(); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if c.IP != 0x0050 {
		t.Errorf("IP=0x%04X, want 0x0050", c.IP)
	}
	if c.CS != 0x1234 {
		t.Errorf("CS=0x%04X, want 0x1234", c.CS)
	}
	if c.SP != spBefore+2+2+4 {
		t.Errorf("SP=0x%04X, want 0x%04X", c.SP, spBefore+2+2+4)
	}
}

// TestMovsbRep exercises the REP-prefixed string move, copying a
// small buffer from DS:SI to ES:DI with CX as the counter.
func TestMovsbRep(t *testing.T) {
	prog := []byte{0xF3, 0xA4} // REP MOVSB
	c := newTestCPU(prog)

	src := []byte("abc")
	c.Mem.LoadBytes(Phys(c.DS, 0x0200), src)
	c.SI = 0x0200
	c.DI = 0x0300
	c.CX = uint16(len(src))

	if _, err := c.Run(1, nil); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if c.CX != 0 {
		t.Errorf("CX: got %d, want 0", c.CX)
	}
	got := c.Mem.Snapshot(Phys(c.ES, 0x0300), len(src))
	if string(got) != "abc" {
		t.Errorf("copied bytes: got %q, want %q", got, "abc")
	}
}

// TestScasbRepneFindsByte exercises REPNE SCASB scanning for a byte,
// stopping as soon as it matches (ZF=1).
func TestScasbRepneFindsByte(t *testing.T) {
	prog := []byte{0xF2, 0xAE} // REPNE SCASB
	c := newTestCPU(prog)

	c.Mem.LoadBytes(Phys(c.ES, 0x0400), []byte("xxxYzzz"))
	c.DI = 0x0400
	c.CX = 10
	c.AX = uint16('Y')

	if _, err := c.Run(1, nil); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if !c.ZF() {
		t.Error("ZF should be set: SCASB found the target byte")
	}
	if c.DI != 0x0404 {
		t.Errorf("DI: got 0x%04X, want 0x0404 (stopped just past the match)", c.DI)
	}
	if c.CX != 6 {
		t.Errorf("CX: got %d, want 6 (4 bytes scanned)", c.CX)
	}
}

func TestAccessCounter(t *testing.T) {
	mem := NewMemory()
	ac := NewAccessCounter()
	mem.SetObserver(ac)
	c := New(mem)
	mem.LoadBytes(Phys(c.CS, 0), []byte{0xF4}) // HLT

	if err := c.Step(); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	snap := ac.Snapshot()
	var executes uint64
	for _, counts := range snap {
		executes += counts.Executes
	}
	if executes == 0 {
		t.Error("expected at least one recorded execute access")
	}
}
