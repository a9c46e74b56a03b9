package cpu

// readOperand loads the value of a decoded operand at the given
// width (1 or 2 bytes read as a right-justified uint16).
func (c *CPU) readOperand(o Operand, width byte) uint16 {
	switch o.Kind {
	case OpReg8:
		return uint16(c.getReg8(o.Reg))
	case OpReg16:
		return c.getReg16(o.Reg)
	case OpSegRegKind:
		return c.getSegReg(o.Reg)
	case OpMem:
		if width == 1 {
			return uint16(c.readByteAt(o.Seg, o.Off))
		}
		return c.readWordAt(o.Seg, o.Off)
	case OpImmKind:
		return o.Imm
	}
	return 0
}

// writeOperand stores v into a decoded operand at the given width.
func (c *CPU) writeOperand(o Operand, width byte, v uint16) {
	switch o.Kind {
	case OpReg8:
		c.setReg8(o.Reg, byte(v))
	case OpReg16:
		c.setReg16(o.Reg, v)
	case OpSegRegKind:
		c.setSegReg(o.Reg, v)
	case OpMem:
		if width == 1 {
			c.writeByteAt(o.Seg, o.Off, byte(v))
		} else {
			c.writeWordAt(o.Seg, o.Off, v)
		}
	}
}

// execute dispatches a fully-decoded Instruction to its handler. This
// single exhaustive switch, fed by one decode() call per instruction,
// is the DEX's execution core: every opcode this simulator supports
// has exactly one case here.
func (c *CPU) execute(instr Instruction) error {
	switch instr.Op {
	case OpMOV, OpMOVSEG, OpXCHG, OpLEA,
		OpPUSH, OpPOP, OpPUSHF, OpPOPF:
		return c.execData(instr)

	case OpADD, OpOR, OpADC, OpSBB, OpAND, OpSUB, OpXOR, OpCMP,
		OpINC, OpDEC, OpNOT, OpNEG, OpTEST,
		OpMUL, OpIMUL, OpDIV, OpIDIV,
		OpCBW, OpCWD, OpLAHF, OpSAHF:
		return c.execArith(instr)

	case OpSHL, OpSHR, OpSAR, OpROL, OpROR, OpRCL, OpRCR:
		return c.execShift(instr)

	case OpCLC, OpSTC, OpCLI, OpSTI, OpCLD, OpSTD, OpNOP, OpHLT:
		return c.execFlagsMisc(instr)

	case OpJMP, OpJMPFAR, OpJMPIND, OpJcc, OpLOOP, OpLOOPE, OpLOOPNE, OpJCXZ,
		OpCALL, OpCALLFAR, OpCALLIND, OpRET, OpRETIMM, OpRETFAR, OpRETFARIMM,
		OpINT, OpINT3, OpIRET:
		return c.execCtrl(instr)

	case OpMOVSB, OpMOVSW, OpSTOSB, OpSTOSW, OpLODSB, OpLODSW,
		OpCMPSB, OpCMPSW, OpSCASB, OpSCASW:
		return c.execString(instr)

	case OpUndefined:
		return &Fault{Kind: FaultInvalidOpcode, IP: instr.StartIP}
	}
	return &Fault{Kind: FaultInvalidOpcode, IP: instr.StartIP}
}
