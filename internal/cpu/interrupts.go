package cpu

// raiseInterrupt implements the built-in DOS INT 21h print/exit stub
// (the only BIOS/DOS surface this core provides, per its Non-goal on
// emulating a real BIOS) and the fallback policy for any other
// interrupt vector, since no vector table is populated: a
// StrictInterrupts host raises Fault{UnhandledInterrupt}, otherwise
// the interrupt is a documented no-op.
func (c *CPU) raiseInterrupt(vector byte) error {
	if vector == 0x21 {
		if c.dosInterrupt() {
			return nil
		}
	}
	if c.StrictInterrupts {
		return &Fault{Kind: FaultUnhandledInterrupt, IP: c.IP}
	}
	return nil
}

// dosInterrupt answers the AH function codes the sample programs use:
// 02h (print character in DL), 09h (print $-terminated string at
// DS:DX), and 4Ch (terminate with AL as exit code). Returns false for
// any other AH so the caller can fall through to the generic policy.
func (c *CPU) dosInterrupt() bool {
	ah := byte(c.AX >> 8)
	switch ah {
	case 0x02:
		c.writeStdout(byte(c.DX))
		return true
	case 0x09:
		off := c.DX
		for {
			ch := c.readByteAt(c.DS, off)
			if ch == '$' {
				break
			}
			c.writeStdout(ch)
			off++
		}
		return true
	case 0x4C:
		c.Halted = true
		return true
	}
	return false
}

func (c *CPU) writeStdout(b byte) {
	if c.Stdout != nil {
		c.Stdout.WriteByte(b)
	}
}
