package cpu

// FLAGS bit positions used by the 8086 subset this core implements.
const (
	FlagCF = 1 << 0
	FlagPF = 1 << 2
	FlagAF = 1 << 4
	FlagZF = 1 << 6
	FlagSF = 1 << 7
	FlagTF = 1 << 8
	FlagIF = 1 << 9
	FlagDF = 1 << 10
	FlagOF = 1 << 11
)

func (c *CPU) getFlag(bit uint16) bool { return c.Flags&bit != 0 }

func (c *CPU) setFlag(bit uint16, v bool) {
	if v {
		c.Flags |= bit
	} else {
		c.Flags &^= bit
	}
}

func (c *CPU) CF() bool { return c.getFlag(FlagCF) }
func (c *CPU) PF() bool { return c.getFlag(FlagPF) }
func (c *CPU) AF() bool { return c.getFlag(FlagAF) }
func (c *CPU) ZF() bool { return c.getFlag(FlagZF) }
func (c *CPU) SF() bool { return c.getFlag(FlagSF) }
func (c *CPU) TF() bool { return c.getFlag(FlagTF) }
func (c *CPU) IF() bool { return c.getFlag(FlagIF) }
func (c *CPU) DF() bool { return c.getFlag(FlagDF) }
func (c *CPU) OF() bool { return c.getFlag(FlagOF) }

// parity reports even parity (true) of the low byte of v, per the 8086
// PF definition.
func parity(v byte) bool {
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v&1 == 0
}

// FlagSnapshot is a plain-value copy of the flag bits a host can
// retain and format without holding a reference to the CPU.
type FlagSnapshot struct {
	CF, PF, AF, ZF, SF, TF, IF, DF, OF bool
}

// FlagsSnapshot returns a snapshot of the current flag bits.
func (c *CPU) FlagsSnapshot() FlagSnapshot {
	return FlagSnapshot{
		CF: c.CF(), PF: c.PF(), AF: c.AF(), ZF: c.ZF(), SF: c.SF(),
		TF: c.TF(), IF: c.IF(), DF: c.DF(), OF: c.OF(),
	}
}

// addFlags8/16 and subFlags8/16 are the single implementation of
// arithmetic flag update every handler (ADD, ADC, SUB, SBB, CMP, INC,
// DEC) calls — never duplicated per opcode. a and b are the two
// natural-width operands (before the operation); result is the
// unmasked sum/difference in the next wider type so overflow into the
// carry position is visible directly.

func (c *CPU) addFlags8(a, b byte, result uint16) {
	r := byte(result)
	c.setFlag(FlagCF, result > 0xFF)
	c.setFlag(FlagZF, r == 0)
	c.setFlag(FlagSF, r&0x80 != 0)
	c.setFlag(FlagPF, parity(r))
	c.setFlag(FlagAF, (a&0x0F)+(b&0x0F) > 0x0F)
	c.setFlag(FlagOF, (^(a^b))&(a^r)&0x80 != 0)
}

func (c *CPU) addFlags16(a, b uint16, result uint32) {
	r := uint16(result)
	c.setFlag(FlagCF, result > 0xFFFF)
	c.setFlag(FlagZF, r == 0)
	c.setFlag(FlagSF, r&0x8000 != 0)
	c.setFlag(FlagPF, parity(byte(r)))
	c.setFlag(FlagAF, (a&0x0F)+(b&0x0F) > 0x0F)
	c.setFlag(FlagOF, (^(a^b))&(a^r)&0x8000 != 0)
}

func (c *CPU) subFlags8(a, b byte, result uint16) {
	r := byte(result)
	c.setFlag(FlagCF, result > 0xFF)
	c.setFlag(FlagZF, r == 0)
	c.setFlag(FlagSF, r&0x80 != 0)
	c.setFlag(FlagPF, parity(r))
	c.setFlag(FlagAF, a&0x0F < b&0x0F)
	c.setFlag(FlagOF, (a^b)&(a^r)&0x80 != 0)
}

func (c *CPU) subFlags16(a, b uint16, result uint32) {
	r := uint16(result)
	c.setFlag(FlagCF, result > 0xFFFF)
	c.setFlag(FlagZF, r == 0)
	c.setFlag(FlagSF, r&0x8000 != 0)
	c.setFlag(FlagPF, parity(byte(r)))
	c.setFlag(FlagAF, a&0x0F < b&0x0F)
	c.setFlag(FlagOF, (a^b)&(a^r)&0x8000 != 0)
}

// logicFlags8/16 sets flags after AND/OR/XOR/TEST: CF and OF are
// always cleared, AF is fixed to 0 (an explicit Open Question
// decision — see DESIGN.md), and ZF/SF/PF derive from the result.
func (c *CPU) logicFlags8(result byte) {
	c.setFlag(FlagCF, false)
	c.setFlag(FlagOF, false)
	c.setFlag(FlagAF, false)
	c.setFlag(FlagZF, result == 0)
	c.setFlag(FlagSF, result&0x80 != 0)
	c.setFlag(FlagPF, parity(result))
}

func (c *CPU) logicFlags16(result uint16) {
	c.setFlag(FlagCF, false)
	c.setFlag(FlagOF, false)
	c.setFlag(FlagAF, false)
	c.setFlag(FlagZF, result == 0)
	c.setFlag(FlagSF, result&0x8000 != 0)
	c.setFlag(FlagPF, parity(byte(result)))
}

// addBytesWithFlags computes a+b(+carry) at byte width, updates flags,
// and returns the wrapped 8-bit result.
func (c *CPU) addBytesWithFlags(a, b byte, carryIn bool) byte {
	cin := uint16(0)
	if carryIn {
		cin = 1
	}
	sum := uint16(a) + uint16(b) + cin
	c.addFlags8(a, b, sum)
	// AF must also account for the incoming carry into bit 3.
	c.setFlag(FlagAF, (a&0x0F)+(b&0x0F)+byte(cin) > 0x0F)
	return byte(sum)
}

// addWordsWithFlags is addBytesWithFlags at word width.
func (c *CPU) addWordsWithFlags(a, b uint16, carryIn bool) uint16 {
	cin := uint32(0)
	if carryIn {
		cin = 1
	}
	sum := uint32(a) + uint32(b) + cin
	c.addFlags16(a, b, sum)
	c.setFlag(FlagAF, (a&0x0F)+(b&0x0F)+uint16(cin) > 0x0F)
	return uint16(sum)
}

// subBytesWithFlags computes a-b(-borrow) at byte width.
func (c *CPU) subBytesWithFlags(a, b byte, borrowIn bool) byte {
	bin := uint16(0)
	if borrowIn {
		bin = 1
	}
	diff := uint16(a) - uint16(b) - bin
	c.subFlags8(a, b, diff)
	c.setFlag(FlagAF, int(a&0x0F)-int(b&0x0F)-int(bin) < 0)
	return byte(diff)
}

// subWordsWithFlags is subBytesWithFlags at word width.
func (c *CPU) subWordsWithFlags(a, b uint16, borrowIn bool) uint16 {
	bin := uint32(0)
	if borrowIn {
		bin = 1
	}
	diff := uint32(a) - uint32(b) - bin
	c.subFlags16(a, b, diff)
	c.setFlag(FlagAF, int(a&0x0F)-int(b&0x0F)-int(bin) < 0)
	return uint16(diff)
}

// incByteFlags/decByteFlags and their word forms update all flags
// except CF, which INC/DEC leave untouched per the 8086 definition.
func (c *CPU) incByteFlags(a byte) byte {
	saved := c.CF()
	r := c.addBytesWithFlags(a, 1, false)
	c.setFlag(FlagCF, saved)
	return r
}

func (c *CPU) decByteFlags(a byte) byte {
	saved := c.CF()
	r := c.subBytesWithFlags(a, 1, false)
	c.setFlag(FlagCF, saved)
	return r
}

func (c *CPU) incWordFlags(a uint16) uint16 {
	saved := c.CF()
	r := c.addWordsWithFlags(a, 1, false)
	c.setFlag(FlagCF, saved)
	return r
}

func (c *CPU) decWordFlags(a uint16) uint16 {
	saved := c.CF()
	r := c.subWordsWithFlags(a, 1, false)
	c.setFlag(FlagCF, saved)
	return r
}
