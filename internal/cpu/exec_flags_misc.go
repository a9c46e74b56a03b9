package cpu

// execFlagsMisc handles the single-flag-bit instructions and the two
// no-payload control instructions NOP and HLT.
func (c *CPU) execFlagsMisc(instr Instruction) error {
	switch instr.Op {
	case OpCLC:
		c.setFlag(FlagCF, false)
	case OpSTC:
		c.setFlag(FlagCF, true)
	case OpCLI:
		c.setFlag(FlagIF, false)
	case OpSTI:
		c.setFlag(FlagIF, true)
	case OpCLD:
		c.setFlag(FlagDF, false)
	case OpSTD:
		c.setFlag(FlagDF, true)
	case OpNOP:
		// no state change
	case OpHLT:
		c.Halted = true
	}
	return nil
}
