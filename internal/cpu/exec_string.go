package cpu

// execString handles the MOVS/STOS/LODS/CMPS/SCAS family. Source
// operands address DS:SI (DS honouring a segment-override prefix per
// the 8086 manual); destination operands always address ES:DI, which
// cannot be overridden. SI/DI advance by the operand width, forward
// when DF=0 and backward when DF=1.
//
// A REP/REPE/REPNE prefix turns the single decoded instruction into a
// CX-governed loop: each iteration repeats the body, decrements CX,
// and (for REPE/REPNE only) also checks ZF from the body's own effect
// on flags (CMPS/SCAS) to decide whether to continue.
func (c *CPU) execString(instr Instruction) error {
	step := int16(instr.Width)
	if c.DF() {
		step = -step
	}

	body := func() bool {
		switch instr.Op {
		case OpMOVSB, OpMOVSW:
			v := c.readOperand(Operand{Kind: OpMem, Seg: c.segmentFor(SegDS), Off: c.SI}, instr.Width)
			c.writeOperand(Operand{Kind: OpMem, Seg: c.ES, Off: c.DI}, instr.Width, v)
			c.SI = uint16(int32(c.SI) + int32(step))
			c.DI = uint16(int32(c.DI) + int32(step))
			return true

		case OpSTOSB, OpSTOSW:
			v := c.AX
			if instr.Width == 1 {
				v = c.AX & 0xFF
			}
			c.writeOperand(Operand{Kind: OpMem, Seg: c.ES, Off: c.DI}, instr.Width, v)
			c.DI = uint16(int32(c.DI) + int32(step))
			return true

		case OpLODSB, OpLODSW:
			v := c.readOperand(Operand{Kind: OpMem, Seg: c.segmentFor(SegDS), Off: c.SI}, instr.Width)
			if instr.Width == 1 {
				c.AX = c.AX&0xFF00 | v
			} else {
				c.AX = v
			}
			c.SI = uint16(int32(c.SI) + int32(step))
			return true

		case OpCMPSB, OpCMPSW:
			a := c.readOperand(Operand{Kind: OpMem, Seg: c.segmentFor(SegDS), Off: c.SI}, instr.Width)
			b := c.readOperand(Operand{Kind: OpMem, Seg: c.ES, Off: c.DI}, instr.Width)
			c.subWith(a, b, false, instr.Width)
			c.SI = uint16(int32(c.SI) + int32(step))
			c.DI = uint16(int32(c.DI) + int32(step))
			return true

		case OpSCASB, OpSCASW:
			a := c.AX
			if instr.Width == 1 {
				a = c.AX & 0xFF
			}
			b := c.readOperand(Operand{Kind: OpMem, Seg: c.ES, Off: c.DI}, instr.Width)
			c.subWith(a, b, false, instr.Width)
			c.DI = uint16(int32(c.DI) + int32(step))
			return true
		}
		return false
	}

	switch instr.Rep {
	case RepNone:
		body()

	case RepZ:
		for c.CX != 0 {
			body()
			c.CX--
			if isCompareString(instr.Op) && !c.ZF() {
				break
			}
		}

	case RepNZ:
		for c.CX != 0 {
			body()
			c.CX--
			if isCompareString(instr.Op) && c.ZF() {
				break
			}
		}
	}

	return nil
}

func isCompareString(op Opcode) bool {
	switch op {
	case OpCMPSB, OpCMPSW, OpSCASB, OpSCASW:
		return true
	}
	return false
}
