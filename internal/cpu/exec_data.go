package cpu

// execData handles data-movement instructions: MOV (all forms),
// segment-register MOV, XCHG, LEA, and the PUSH/POP family including
// PUSHF/POPF.
func (c *CPU) execData(instr Instruction) error {
	switch instr.Op {
	case OpMOV, OpMOVSEG:
		v := c.readOperand(instr.Src, instr.Width)
		c.writeOperand(instr.Dst, instr.Width, v)

	case OpXCHG:
		a := c.readOperand(instr.Dst, instr.Width)
		b := c.readOperand(instr.Src, instr.Width)
		c.writeOperand(instr.Dst, instr.Width, b)
		c.writeOperand(instr.Src, instr.Width, a)

	case OpLEA:
		c.writeOperand(instr.Dst, 2, instr.Src.Imm)

	case OpPUSH:
		v := c.readOperand(instr.Src, 2)
		c.pushWord(v)

	case OpPOP:
		v := c.popWord()
		c.writeOperand(instr.Dst, 2, v)

	case OpPUSHF:
		c.pushWord(c.Flags)

	case OpPOPF:
		c.Flags = c.popWord()
	}
	return nil
}
