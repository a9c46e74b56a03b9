package cpu

// Size is the fixed 1 MiB address space of the simulated machine
// (spec: "a flat 1 MiB byte array").
const Size = 1 << 20

// Memory is the flat, segmented-by-convention 1 MiB address space
// shared by the MRF and DEX. Every read and write is reported to the
// attached Observer, in program order, before the access itself is
// applied for writes and after it for reads — matching
// original_source/memory.py's profiler-hook-on-every-access shape,
// generalised here into the Observer interface.
type Memory struct {
	bytes    [Size]byte
	observer Observer
}

// NewMemory returns a zeroed 1 MiB address space with a no-op observer.
func NewMemory() *Memory {
	return &Memory{observer: NopObserver{}}
}

// SetObserver installs obs as the memory's access observer. Passing
// nil restores the no-op observer.
func (m *Memory) SetObserver(obs Observer) {
	if obs == nil {
		obs = NopObserver{}
	}
	m.observer = obs
}

// ReadByte reads one byte at a physical address and reports the
// access to the observer.
func (m *Memory) ReadByte(addr uint32) byte {
	addr &= Size - 1
	v := m.bytes[addr]
	m.observer.OnRead(addr, 1)
	return v
}

// WriteByte writes one byte at a physical address, reporting the
// access to the observer before the byte is stored.
func (m *Memory) WriteByte(addr uint32, v byte) {
	addr &= Size - 1
	m.observer.OnWrite(addr, 1, uint16(v))
	m.bytes[addr] = v
}

// ReadWord reads a little-endian 16-bit word at a physical address.
func (m *Memory) ReadWord(addr uint32) uint16 {
	lo := m.ReadByte(addr)
	hi := m.ReadByte(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// WriteWord writes a little-endian 16-bit word at a physical address.
func (m *Memory) WriteWord(addr uint32, v uint16) {
	m.WriteByte(addr, byte(v))
	m.WriteByte(addr+1, byte(v>>8))
}

// LoadBytes copies data into memory starting at a physical address,
// bypassing the observer — used by Load to seed a program image, which
// is not itself a simulated memory access.
func (m *Memory) LoadBytes(addr uint32, data []byte) {
	for i, b := range data {
		m.bytes[(addr+uint32(i))&(Size-1)] = b
	}
}

// Snapshot copies n bytes starting at a physical address, bypassing
// the observer — used by the disassembler and debug memory dumps,
// neither of which are simulated program accesses.
func (m *Memory) Snapshot(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = m.bytes[(addr+uint32(i))&(Size-1)]
	}
	return out
}

// Reset zeroes memory, preserving the installed observer.
func (m *Memory) Reset() {
	obs := m.observer
	m.bytes = [Size]byte{}
	m.observer = obs
}

// phys is the segment:offset accessor used by CPU's own memory ops.
func (c *CPU) phys(seg, off uint16) uint32 {
	return Phys(seg, off)
}

// segmentFor returns the effective segment for a memory operand,
// honouring a segment-override prefix if one is active.
func (c *CPU) segmentFor(deflt int) uint16 {
	seg := deflt
	if c.prefixSeg >= 0 {
		seg = c.prefixSeg
	}
	switch seg {
	case SegES:
		return c.ES
	case SegCS:
		return c.CS
	case SegSS:
		return c.SS
	default:
		return c.DS
	}
}

// fetchByte reads the byte at CS:IP and advances IP, reporting the
// access to the observer as an execute-phase fetch.
func (c *CPU) fetchByte() byte {
	addr := c.phys(c.CS, c.IP)
	v := c.Mem.bytes[addr&(Size-1)]
	c.Mem.observer.OnExecute(addr, 1)
	c.IP++
	return v
}

// fetchWord reads a little-endian word at CS:IP and advances IP by 2.
func (c *CPU) fetchWord() uint16 {
	lo := c.fetchByte()
	hi := c.fetchByte()
	return uint16(lo) | uint16(hi)<<8
}

// readByteAt reads a byte at seg:off through the memory observer —
// used for operand reads distinct from instruction fetch.
func (c *CPU) readByteAt(seg, off uint16) byte {
	return c.Mem.ReadByte(c.phys(seg, off))
}

func (c *CPU) writeByteAt(seg, off uint16, v byte) {
	c.Mem.WriteByte(c.phys(seg, off), v)
}

func (c *CPU) readWordAt(seg, off uint16) uint16 {
	return c.Mem.ReadWord(c.phys(seg, off))
}

func (c *CPU) writeWordAt(seg, off uint16, v uint16) {
	c.Mem.WriteWord(c.phys(seg, off), v)
}

// pushWord decrements SP by 2 (wrapping modulo 0x10000, a documented
// behaviour rather than a fault) and stores v at SS:SP.
func (c *CPU) pushWord(v uint16) {
	c.SP -= 2
	c.writeWordAt(c.SS, c.SP, v)
}

// popWord loads the word at SS:SP and increments SP by 2 (wrapping).
func (c *CPU) popWord() uint16 {
	v := c.readWordAt(c.SS, c.SP)
	c.SP += 2
	return v
}
