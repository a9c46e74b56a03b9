package debug

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/coresim/sim8086/internal/cpu"
)

// Condition is a compiled conditional-breakpoint expression: a Lua
// boolean expression evaluated against a snapshot of the register
// file, flags, and memory at the moment a breakpoint's address is
// reached. This generalises debug_conditions.go's hand-rolled
// `lhs OP rhs` parser (register==value, [addr]==value, hitcount>N)
// into arbitrary Lua ("AX > 10 and mem(0x100) == 0"), using the
// gopher-lua dependency already in go.mod.
type Condition struct {
	source string
}

// CompileCondition parses expr just enough to catch an empty string;
// full syntax validation happens lazily on first Eval, since gopher-lua
// has no standalone parse-without-run entry point worth adding a
// dependency edge for.
func CompileCondition(expr string) (*Condition, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty condition")
	}
	return &Condition{source: expr}, nil
}

// Eval runs the condition against c's current state. A Lua error
// (bad syntax, unknown identifier) or a non-boolean result is treated
// as false rather than propagated, matching debug_conditions.go's
// evaluateCondition, which returns false rather than firing on an
// unknown register.
func (cond *Condition) Eval(c *cpu.CPU) bool {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	regs := c.Registers()
	flags := c.FlagsSnapshot()
	set := func(name string, v uint16) { L.SetGlobal(name, lua.LNumber(v)) }
	set("AX", regs.AX)
	set("BX", regs.BX)
	set("CX", regs.CX)
	set("DX", regs.DX)
	set("SP", regs.SP)
	set("BP", regs.BP)
	set("SI", regs.SI)
	set("DI", regs.DI)
	set("CS", regs.CS)
	set("DS", regs.DS)
	set("ES", regs.ES)
	set("SS", regs.SS)
	set("IP", regs.IP)
	set("FLAGS", regs.Flags)
	set("AL", uint16(byte(regs.AX)))
	set("AH", uint16(byte(regs.AX>>8)))
	set("BL", uint16(byte(regs.BX)))
	set("BH", uint16(byte(regs.BX>>8)))
	set("CL", uint16(byte(regs.CX)))
	set("CH", uint16(byte(regs.CX>>8)))
	set("DL", uint16(byte(regs.DX)))
	set("DH", uint16(byte(regs.DX>>8)))

	setb := func(name string, v bool) { L.SetGlobal(name, lua.LBool(v)) }
	setb("CF", flags.CF)
	setb("PF", flags.PF)
	setb("AF", flags.AF)
	setb("ZF", flags.ZF)
	setb("SF", flags.SF)
	setb("TF", flags.TF)
	setb("IFLAG", flags.IF)
	setb("DF", flags.DF)
	setb("OF", flags.OF)

	mem := c.Mem
	L.SetGlobal("mem", L.NewFunction(func(L *lua.LState) int {
		addr := uint32(L.CheckNumber(1))
		L.Push(lua.LNumber(mem.Snapshot(addr, 1)[0]))
		return 1
	}))

	if err := L.DoString("__cond_result = (" + cond.source + ")"); err != nil {
		return false
	}
	result := L.GetGlobal("__cond_result")
	switch v := result.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return v != 0
	default:
		return false
	}
}

// String returns the original expression text.
func (cond *Condition) String() string { return cond.source }
