package debug

import (
	"fmt"
	"strings"

	"github.com/coresim/sim8086/internal/cpu"
)

// RegisterInfo names one register for display, specialised from
// debug_interface.go's variable-CPU (Name, BitWidth, Value, Group)
// shape down to the fixed 8086 register set: every register here is
// always 16 bits wide and Group is always one of "general", "pointer",
// "index", "segment", "flags".
type RegisterInfo struct {
	Name  string
	Value uint16
	Group string
}

// RegisterList returns every 8086 register in the conventional debug
// display order.
func RegisterList(c *cpu.CPU) []RegisterInfo {
	r := c.Registers()
	return []RegisterInfo{
		{"AX", r.AX, "general"}, {"BX", r.BX, "general"},
		{"CX", r.CX, "general"}, {"DX", r.DX, "general"},
		{"SP", r.SP, "pointer"}, {"BP", r.BP, "pointer"},
		{"SI", r.SI, "index"}, {"DI", r.DI, "index"},
		{"CS", r.CS, "segment"}, {"DS", r.DS, "segment"},
		{"ES", r.ES, "segment"}, {"SS", r.SS, "segment"},
		{"IP", r.IP, "pointer"}, {"FLAGS", r.Flags, "flags"},
	}
}

// FormatRegisters renders the register file the way the debug console's
// `r` key prints it, four registers per line.
func FormatRegisters(c *cpu.CPU) string {
	regs := RegisterList(c)
	var b strings.Builder
	for i, r := range regs {
		fmt.Fprintf(&b, "%-5s=%04X ", r.Name, r.Value)
		if (i+1)%4 == 0 {
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), " \n")
}

// FormatFlags renders the flag bits as the conventional 8086 mnemonic
// string, uppercase when set, lowercase when clear.
func FormatFlags(c *cpu.CPU) string {
	f := c.FlagsSnapshot()
	bit := func(set bool, ch byte) byte {
		if set {
			return ch - 32
		}
		return ch
	}
	return string([]byte{
		bit(f.OF, 'o'), bit(f.DF, 'd'), bit(f.IF, 'i'), bit(f.TF, 't'),
		bit(f.SF, 's'), bit(f.ZF, 'z'), bit(f.AF, 'a'), bit(f.PF, 'p'), bit(f.CF, 'c'),
	})
}

// FormatMemory renders a hex dump of n bytes starting at a physical
// address, sixteen bytes per line with an ASCII gutter — the output of
// the debug console's `m` key (address, length), grounded on
// original_source/dump_memory.py's layout and debug_cpu_x86.go's
// ReadMemory.
func FormatMemory(mem *cpu.Memory, addr uint32, n int) string {
	data := mem.Snapshot(addr, n)
	var b strings.Builder
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[i:end]
		fmt.Fprintf(&b, "%05X: ", addr+uint32(i))
		for j := 0; j < 16; j++ {
			if j < len(row) {
				fmt.Fprintf(&b, "%02X ", row[j])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString(" ")
		for _, c := range row {
			if c >= 0x20 && c < 0x7F {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
