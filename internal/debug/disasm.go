// Package debug supplies the tooling layered on top of internal/cpu
// that the core itself has no need for: breakpoints, watchpoints,
// conditional breakpoints, a non-mutating disassembler, and snapshot
// formatting for a debug console.
package debug

import (
	"fmt"
	"strings"

	"github.com/coresim/sim8086/internal/cpu"
)

// Line is one disassembled instruction: the address it starts at, its
// raw bytes, the formatted mnemonic, and branch-target annotation for
// a console that wants to highlight jump destinations.
type Line struct {
	Addr        uint32
	Bytes       []byte
	Mnemonic    string
	Size        int
	IsBranch    bool
	BranchTarget uint16
}

// reader is the byte source a disassembly walk pulls from — always
// Memory.Snapshot, never Memory.ReadByte, so disassembling never trips
// the Observer the way a live fetch would.
type reader struct {
	mem  *cpu.Memory
	base uint32
	pos  uint32
}

func (r *reader) u8() byte {
	b := r.mem.Snapshot(r.base+r.pos, 1)[0]
	r.pos++
	return b
}

func (r *reader) u16() uint16 {
	lo := r.u8()
	hi := r.u8()
	return uint16(lo) | uint16(hi)<<8
}

// Disassemble decodes count instructions starting at the physical
// address addr, without touching CPU execution state — it reads
// through Memory.Snapshot exactly as debug_disasm_x86.go's x86Disasm
// reads through a readMem closure, rather than reusing internal/cpu's
// own decode(), which advances IP and consumes prefix state as a side
// effect of fetching.
func Disassemble(mem *cpu.Memory, addr uint32, count int) []Line {
	out := make([]Line, 0, count)
	r := &reader{mem: mem, base: addr}
	for i := 0; i < count; i++ {
		start := r.pos
		mnemonic, isBranch, target := decodeOne(r)
		size := int(r.pos - start)
		out = append(out, Line{
			Addr:         addr + start,
			Bytes:        mem.Snapshot(addr+start, size),
			Mnemonic:     mnemonic,
			Size:         size,
			IsBranch:     isBranch,
			BranchTarget: target,
		})
	}
	return out
}

var jccNames = [16]string{
	"JO", "JNO", "JB", "JAE", "JE", "JNE", "JBE", "JA",
	"JS", "JNS", "JP", "JNP", "JL", "JGE", "JLE", "JG",
}

var grp1Names = [8]string{"ADD", "OR", "ADC", "SBB", "AND", "SUB", "XOR", "CMP"}
var grp2Names = [8]string{"ROL", "ROR", "RCL", "RCR", "SHL", "SHR", "SHL", "SAR"}

// decodeOne decodes exactly one instruction from r, returning its
// formatted mnemonic plus branch annotation. Its opcode table is kept
// by hand in step with internal/cpu/decode.go's dispatch; nothing in
// the code links the two, so only tests catch a divergence. It never
// mutates a CPU.
func decodeOne(r *reader) (mnemonic string, isBranch bool, target uint16) {
	segOverride := ""
	rep := ""
prefixLoop:
	for {
		op := r.mem.Snapshot(r.base+r.pos, 1)[0]
		switch op {
		case 0x26:
			segOverride = "ES:"
			r.pos++
		case 0x2E:
			segOverride = "CS:"
			r.pos++
		case 0x36:
			segOverride = "SS:"
			r.pos++
		case 0x3E:
			segOverride = "DS:"
			r.pos++
		case 0xF2:
			rep = "REPNE "
			r.pos++
		case 0xF3:
			rep = "REP "
			r.pos++
		default:
			break prefixLoop
		}
	}

	op := r.u8()
	body, branch, tgt := decodeOpcode(r, op, segOverride)
	return rep + body, branch, tgt
}

func decodeOpcode(r *reader, op byte, seg string) (string, bool, uint16) {
	if op < 0x40 {
		if tag, ok := aluName(op); ok {
			return decodeALU(r, op, tag, seg), false, 0
		}
	}

	switch op {
	case 0x06:
		return "PUSH ES", false, 0
	case 0x07:
		return "POP ES", false, 0
	case 0x0E:
		return "PUSH CS", false, 0
	case 0x16:
		return "PUSH SS", false, 0
	case 0x17:
		return "POP SS", false, 0
	case 0x1E:
		return "PUSH DS", false, 0
	case 0x1F:
		return "POP DS", false, 0

	case 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47:
		return "INC " + cpu.Reg16Name(op-0x40), false, 0
	case 0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F:
		return "DEC " + cpu.Reg16Name(op-0x48), false, 0
	case 0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57:
		return "PUSH " + cpu.Reg16Name(op-0x50), false, 0
	case 0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F:
		return "POP " + cpu.Reg16Name(op-0x58), false, 0

	case 0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x76, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F:
		rel := int8(r.u8())
		target := uint16(int32(int32(r.base)+int32(r.pos)) + int32(rel))
		return fmt.Sprintf("%s 0x%04X", jccNames[op-0x70], target), true, target

	case 0x80:
		return decodeGrp1(r, 1, false, seg), false, 0
	case 0x81:
		return decodeGrp1(r, 2, false, seg), false, 0
	case 0x83:
		return decodeGrp1(r, 2, true, seg), false, 0

	case 0x84:
		return decodeRMReg(r, "TEST", 1, seg), false, 0
	case 0x85:
		return decodeRMReg(r, "TEST", 2, seg), false, 0
	case 0x86:
		return decodeRMReg(r, "XCHG", 1, seg), false, 0
	case 0x87:
		return decodeRMReg(r, "XCHG", 2, seg), false, 0

	case 0x88:
		return decodeMOVEbGb(r, 1, false, seg), false, 0
	case 0x89:
		return decodeMOVEbGb(r, 2, false, seg), false, 0
	case 0x8A:
		return decodeMOVEbGb(r, 1, true, seg), false, 0
	case 0x8B:
		return decodeMOVEbGb(r, 2, true, seg), false, 0
	case 0x8C:
		reg, rm := decodeModRM(r, 2, seg)
		return fmt.Sprintf("MOV %s, %s", rm, cpu.SegRegName(reg)), false, 0
	case 0x8D:
		reg, rm := decodeModRMOffsetOnly(r)
		return fmt.Sprintf("LEA %s, %s", cpu.Reg16Name(reg), rm), false, 0
	case 0x8E:
		reg, rm := decodeModRM(r, 2, seg)
		return fmt.Sprintf("MOV %s, %s", cpu.SegRegName(reg), rm), false, 0
	case 0x8F:
		_, rm := decodeModRM(r, 2, seg)
		return "POP " + rm, false, 0

	case 0x90:
		return "NOP", false, 0
	case 0x98:
		return "CBW", false, 0
	case 0x99:
		return "CWD", false, 0
	case 0x9A:
		ip := r.u16()
		cs := r.u16()
		return fmt.Sprintf("CALL FAR 0x%04X:0x%04X", cs, ip), true, ip
	case 0x9C:
		return "PUSHF", false, 0
	case 0x9D:
		return "POPF", false, 0
	case 0x9E:
		return "SAHF", false, 0
	case 0x9F:
		return "LAHF", false, 0

	case 0xA4:
		return "MOVSB", false, 0
	case 0xA5:
		return "MOVSW", false, 0
	case 0xA6:
		return "CMPSB", false, 0
	case 0xA7:
		return "CMPSW", false, 0
	case 0xA8:
		imm := r.u8()
		return fmt.Sprintf("TEST AL, 0x%02X", imm), false, 0
	case 0xA9:
		imm := r.u16()
		return fmt.Sprintf("TEST AX, 0x%04X", imm), false, 0
	case 0xAA:
		return "STOSB", false, 0
	case 0xAB:
		return "STOSW", false, 0
	case 0xAC:
		return "LODSB", false, 0
	case 0xAD:
		return "LODSW", false, 0
	case 0xAE:
		return "SCASB", false, 0
	case 0xAF:
		return "SCASW", false, 0

	case 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7:
		imm := r.u8()
		return fmt.Sprintf("MOV %s, 0x%02X", cpu.Reg8Name(op-0xB0), imm), false, 0
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF:
		imm := r.u16()
		return fmt.Sprintf("MOV %s, 0x%04X", cpu.Reg16Name(op-0xB8), imm), false, 0

	case 0xC0:
		return decodeGrp2(r, 1, true, seg), false, 0
	case 0xC1:
		return decodeGrp2(r, 2, true, seg), false, 0
	case 0xC2:
		imm := r.u16()
		return fmt.Sprintf("RET 0x%04X", imm), false, 0
	case 0xC3:
		return "RET", false, 0
	case 0xC6:
		_, rm := decodeModRM(r, 1, seg)
		imm := r.u8()
		return fmt.Sprintf("MOV %s, 0x%02X", rm, imm), false, 0
	case 0xC7:
		_, rm := decodeModRM(r, 2, seg)
		imm := r.u16()
		return fmt.Sprintf("MOV %s, 0x%04X", rm, imm), false, 0

	case 0xCA:
		imm := r.u16()
		return fmt.Sprintf("RET FAR 0x%04X", imm), false, 0
	case 0xCB:
		return "RET FAR", false, 0
	case 0xCC:
		return "INT3", false, 0
	case 0xCD:
		imm := r.u8()
		return fmt.Sprintf("INT 0x%02X", imm), false, 0
	case 0xCF:
		return "IRET", false, 0

	case 0xD0:
		return decodeGrp2Fixed(r, 1, 1, seg), false, 0
	case 0xD1:
		return decodeGrp2Fixed(r, 2, 1, seg), false, 0
	case 0xD2:
		return decodeGrp2CL(r, 1, seg), false, 0
	case 0xD3:
		return decodeGrp2CL(r, 2, seg), false, 0

	case 0xE0, 0xE1, 0xE2, 0xE3:
		rel := int8(r.u8())
		target := uint16(int32(int32(r.base)+int32(r.pos)) + int32(rel))
		name := map[byte]string{0xE0: "LOOPNE", 0xE1: "LOOPE", 0xE2: "LOOP", 0xE3: "JCXZ"}[op]
		return fmt.Sprintf("%s 0x%04X", name, target), true, target

	case 0xE8:
		rel := int16(r.u16())
		target := uint16(int32(int32(r.base)+int32(r.pos)) + int32(rel))
		return fmt.Sprintf("CALL 0x%04X", target), true, target
	case 0xE9:
		rel := int16(r.u16())
		target := uint16(int32(int32(r.base)+int32(r.pos)) + int32(rel))
		return fmt.Sprintf("JMP 0x%04X", target), true, target
	case 0xEA:
		ip := r.u16()
		cs := r.u16()
		return fmt.Sprintf("JMP FAR 0x%04X:0x%04X", cs, ip), true, ip
	case 0xEB:
		rel := int8(r.u8())
		target := uint16(int32(int32(r.base)+int32(r.pos)) + int32(rel))
		return fmt.Sprintf("JMP SHORT 0x%04X", target), true, target

	case 0xF4:
		return "HLT", false, 0
	case 0xF6:
		return decodeGrp3(r, 1, seg), false, 0
	case 0xF7:
		return decodeGrp3(r, 2, seg), false, 0
	case 0xF8:
		return "CLC", false, 0
	case 0xF9:
		return "STC", false, 0
	case 0xFA:
		return "CLI", false, 0
	case 0xFB:
		return "STI", false, 0
	case 0xFC:
		return "CLD", false, 0
	case 0xFD:
		return "STD", false, 0
	case 0xFE:
		return decodeGrp45(r, 1, seg), false, 0
	case 0xFF:
		return decodeGrp45(r, 2, seg), false, 0
	}

	return fmt.Sprintf("DB 0x%02X", op), false, 0
}

func aluName(op byte) (string, bool) {
	base := op &^ 0x07
	if op-base > 5 {
		return "", false
	}
	names := map[byte]string{
		0x00: "ADD", 0x08: "OR", 0x10: "ADC", 0x18: "SBB",
		0x20: "AND", 0x28: "SUB", 0x30: "XOR", 0x38: "CMP",
	}
	name, ok := names[base]
	return name, ok
}

func decodeALU(r *reader, op byte, tag, seg string) string {
	sub := op & 0x07
	switch sub {
	case 0:
		reg, rm := decodeModRM(r, 1, seg)
		return fmt.Sprintf("%s %s, %s", tag, rm, cpu.Reg8Name(reg))
	case 1:
		reg, rm := decodeModRM(r, 2, seg)
		return fmt.Sprintf("%s %s, %s", tag, rm, cpu.Reg16Name(reg))
	case 2:
		reg, rm := decodeModRM(r, 1, seg)
		return fmt.Sprintf("%s %s, %s", tag, cpu.Reg8Name(reg), rm)
	case 3:
		reg, rm := decodeModRM(r, 2, seg)
		return fmt.Sprintf("%s %s, %s", tag, cpu.Reg16Name(reg), rm)
	case 4:
		imm := r.u8()
		return fmt.Sprintf("%s AL, 0x%02X", tag, imm)
	default:
		imm := r.u16()
		return fmt.Sprintf("%s AX, 0x%04X", tag, imm)
	}
}

func decodeMOVEbGb(r *reader, width byte, toReg bool, seg string) string {
	reg, rm := decodeModRM(r, width, seg)
	regName := cpu.Reg16Name(reg)
	if width == 1 {
		regName = cpu.Reg8Name(reg)
	}
	if toReg {
		return fmt.Sprintf("MOV %s, %s", regName, rm)
	}
	return fmt.Sprintf("MOV %s, %s", rm, regName)
}

func decodeRMReg(r *reader, tag string, width byte, seg string) string {
	reg, rm := decodeModRM(r, width, seg)
	regName := cpu.Reg16Name(reg)
	if width == 1 {
		regName = cpu.Reg8Name(reg)
	}
	return fmt.Sprintf("%s %s, %s", tag, rm, regName)
}

func decodeGrp1(r *reader, width byte, signExtendImm8 bool, seg string) string {
	reg, rm := decodeModRM(r, width, seg)
	var imm int32
	if signExtendImm8 {
		imm = int32(int8(r.u8()))
	} else if width == 1 {
		imm = int32(r.u8())
	} else {
		imm = int32(r.u16())
	}
	return fmt.Sprintf("%s %s, 0x%X", grp1Names[reg&7], rm, uint16(imm))
}

func decodeGrp2(r *reader, width byte, _ bool, seg string) string {
	reg, rm := decodeModRM(r, width, seg)
	count := r.u8()
	return fmt.Sprintf("%s %s, %d", grp2Names[reg&7], rm, count)
}

func decodeGrp2Fixed(r *reader, width byte, count byte, seg string) string {
	reg, rm := decodeModRM(r, width, seg)
	return fmt.Sprintf("%s %s, %d", grp2Names[reg&7], rm, count)
}

func decodeGrp2CL(r *reader, width byte, seg string) string {
	reg, rm := decodeModRM(r, width, seg)
	return fmt.Sprintf("%s %s, CL", grp2Names[reg&7], rm)
}

var grp3Names = [8]string{"TEST", "TEST", "NOT", "NEG", "MUL", "IMUL", "DIV", "IDIV"}

func decodeGrp3(r *reader, width byte, seg string) string {
	reg, rm := decodeModRM(r, width, seg)
	tag := grp3Names[reg&7]
	if tag == "TEST" {
		var imm int32
		if width == 1 {
			imm = int32(r.u8())
		} else {
			imm = int32(r.u16())
		}
		return fmt.Sprintf("TEST %s, 0x%X", rm, uint16(imm))
	}
	return fmt.Sprintf("%s %s", tag, rm)
}

func decodeGrp45(r *reader, width byte, seg string) string {
	reg, rm := decodeModRM(r, width, seg)
	switch reg & 7 {
	case 0:
		return "INC " + rm
	case 1:
		return "DEC " + rm
	case 2:
		return "CALL " + rm
	case 4:
		return "JMP " + rm
	case 6:
		return "PUSH " + rm
	}
	return "DB ??"
}

// decodeModRM fetches a ModR/M byte (and any displacement) and returns
// the reg field plus a formatted r/m operand string, honouring a
// segment-override prefix on memory forms.
func decodeModRM(r *reader, width byte, seg string) (byte, string) {
	modrm := r.u8()
	reg := (modrm >> 3) & 7
	mod := (modrm >> 6) & 3
	rm := modrm & 7

	if mod == 3 {
		if width == 1 {
			return reg, cpu.Reg8Name(rm)
		}
		return reg, cpu.Reg16Name(rm)
	}

	return reg, seg + formatMem(r, mod, rm)
}

// decodeModRMOffsetOnly is decodeModRM's LEA-only counterpart: the
// r/m form is always memory (LEA's second operand can't be a register)
// and no segment override applies since LEA loads an offset only.
func decodeModRMOffsetOnly(r *reader) (byte, string) {
	modrm := r.u8()
	reg := (modrm >> 3) & 7
	mod := (modrm >> 6) & 3
	rm := modrm & 7
	return reg, formatMem(r, mod, rm)
}

var memBases = [8]string{"BX+SI", "BX+DI", "BP+SI", "BP+DI", "SI", "DI", "", "BX"}

// formatMem renders the fixed 8086 16-bit-only effective-address table
// as a `[base+disp]` string, consuming any displacement bytes.
func formatMem(r *reader, mod, rm byte) string {
	base := memBases[rm]
	if rm == 6 && mod == 0 {
		disp := r.u16()
		return fmt.Sprintf("[0x%04X]", disp)
	}
	var disp int32
	switch mod {
	case 1:
		disp = int32(int8(r.u8()))
	case 2:
		disp = int32(int16(r.u16()))
	}
	if disp == 0 {
		return "[" + base + "]"
	}
	sign := "+"
	if disp < 0 {
		sign = "-"
		disp = -disp
	}
	return fmt.Sprintf("[%s%s0x%X]", base, sign, disp)
}

// FormatLine renders a Line the way a debug console prints a
// disassembly listing: address, raw bytes, mnemonic.
func FormatLine(l Line) string {
	hex := make([]string, len(l.Bytes))
	for i, b := range l.Bytes {
		hex[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("%05X: %-15s %s", l.Addr, strings.Join(hex, " "), l.Mnemonic)
}
