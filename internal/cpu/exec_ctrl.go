package cpu

// evalCond evaluates one of the 16 standard 8086 jump conditions.
func (c *CPU) evalCond(cond byte) bool {
	switch cond {
	case condO:
		return c.OF()
	case condNO:
		return !c.OF()
	case condB:
		return c.CF()
	case condNB:
		return !c.CF()
	case condZ:
		return c.ZF()
	case condNZ:
		return !c.ZF()
	case condBE:
		return c.CF() || c.ZF()
	case condNBE:
		return !c.CF() && !c.ZF()
	case condS:
		return c.SF()
	case condNS:
		return !c.SF()
	case condP:
		return c.PF()
	case condNP:
		return !c.PF()
	case condL:
		return c.SF() != c.OF()
	case condNL:
		return c.SF() == c.OF()
	case condLE:
		return c.ZF() || c.SF() != c.OF()
	case condNLE:
		return !c.ZF() && c.SF() == c.OF()
	}
	return false
}

// execCtrl handles all control-flow instructions: unconditional and
// conditional jumps, LOOP/LOOPE/LOOPNE/JCXZ, near and far JMP/CALL/RET,
// and INT/INT3/IRET. A far CALL pushes CS before IP and a far RET pops
// IP before CS, the reverse order of how they're pushed.
func (c *CPU) execCtrl(instr Instruction) error {
	switch instr.Op {
	case OpJMP:
		c.IP = instr.Target

	case OpJMPFAR:
		c.IP = instr.Target
		c.CS = instr.TargetSeg

	case OpJMPIND:
		c.IP = c.readOperand(instr.Dst, 2)

	case OpJcc:
		if c.evalCond(instr.Cond) {
			c.IP = instr.Target
		}

	case OpLOOP:
		c.CX--
		if c.CX != 0 {
			c.IP = instr.Target
		}

	case OpLOOPE:
		c.CX--
		if c.CX != 0 && c.ZF() {
			c.IP = instr.Target
		}

	case OpLOOPNE:
		c.CX--
		if c.CX != 0 && !c.ZF() {
			c.IP = instr.Target
		}

	case OpJCXZ:
		if c.CX == 0 {
			c.IP = instr.Target
		}

	case OpCALL:
		c.pushWord(c.IP)
		c.IP = instr.Target

	case OpCALLFAR:
		c.pushWord(c.CS)
		c.pushWord(c.IP)
		c.IP = instr.Target
		c.CS = instr.TargetSeg

	case OpCALLIND:
		target := c.readOperand(instr.Dst, 2)
		c.pushWord(c.IP)
		c.IP = target

	case OpRET:
		c.IP = c.popWord()

	case OpRETIMM:
		newIP := c.popWord()
		c.IP = newIP
		c.SP += instr.Target

	case OpRETFAR:
		c.IP = c.popWord()
		c.CS = c.popWord()

	case OpRETFARIMM:
		newIP := c.popWord()
		newCS := c.popWord()
		c.IP = newIP
		c.CS = newCS
		c.SP += instr.Target

	case OpINT3:
		return c.raiseInterrupt(3)

	case OpINT:
		return c.raiseInterrupt(byte(instr.Src.Imm))

	case OpIRET:
		c.IP = c.popWord()
		c.CS = c.popWord()
		c.Flags = c.popWord()
	}
	return nil
}
