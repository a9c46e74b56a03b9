package asm

import (
	"strings"

	"github.com/coresim/sim8086/internal/cpu"
)

// encCtx carries what encodeInstruction needs beyond the parsed
// operands: the instruction's own address (for relative-branch math),
// whether label lookups and range checks are enforced (false in pass 1,
// where addresses are still provisional and only lengths matter), and
// the label resolver.
type encCtx struct {
	line     int
	addr     uint16
	strict   bool
	resolve  func(name string) (offset uint16, isCode bool, ok bool)
}

func (c encCtx) resolveLabel(name string) (uint16, bool, error) {
	off, isCode, ok := c.resolve(name)
	if !ok {
		if c.strict {
			return 0, false, errf(c.line, UndefinedLabel, "undefined label %q", name)
		}
		return 0, false, nil
	}
	return off, isCode, nil
}

// grp1Index gives an ALU mnemonic's base opcode and Grp1 reg field —
// both derived from the same 0..7 index, matching the 8086's own
// opcode layout (base = index*8, e.g. ADD=0x00, SUB=0x28).
var grp1Index = map[string]byte{
	"ADD": 0, "OR": 1, "ADC": 2, "SBB": 3, "AND": 4, "SUB": 5, "XOR": 6, "CMP": 7,
}

var grp2Index = map[string]byte{
	"ROL": 0, "ROR": 1, "RCL": 2, "RCR": 3, "SHL": 4, "SAL": 4, "SHR": 5, "SAR": 7,
}

var jccCond = map[string]byte{
	"JO": 0, "JNO": 1,
	"JB": 2, "JC": 2, "JNAE": 2,
	"JNB": 3, "JNC": 3, "JAE": 3,
	"JE": 4, "JZ": 4,
	"JNE": 5, "JNZ": 5,
	"JBE": 6, "JNA": 6,
	"JA": 7, "JNBE": 7,
	"JS": 8, "JNS": 9,
	"JP": 10, "JPE": 10,
	"JNP": 11, "JPO": 11,
	"JL": 12, "JNGE": 12,
	"JNL": 13, "JGE": 13,
	"JLE": 14, "JNG": 14,
	"JG": 15, "JNLE": 15,
}

var noOperandOps = map[string]byte{
	"NOP": 0x90, "HLT": 0xF4,
	"CBW": 0x98, "CWD": 0x99,
	"LAHF": 0x9F, "SAHF": 0x9E,
	"PUSHF": 0x9C, "POPF": 0x9D,
	"CLC": 0xF8, "STC": 0xF9,
	"CLI": 0xFA, "STI": 0xFB,
	"CLD": 0xFC, "STD": 0xFD,
	"RET": 0xC3, "IRET": 0xCF, "INT3": 0xCC,
	"MOVSB": 0xA4, "MOVSW": 0xA5,
	"STOSB": 0xAA, "STOSW": 0xAB,
	"LODSB": 0xAC, "LODSW": 0xAD,
	"CMPSB": 0xA6, "CMPSW": 0xA7,
	"SCASB": 0xAE, "SCASW": 0xAF,
}

// encodeInstruction produces the machine code for one mnemonic and its
// already-parsed operands. Pass 1 calls this with ctx.strict==false to
// get only a byte count (label values are irrelevant to length, except
// for the JumpOutOfRange check, which is skipped until pass 2).
func encodeInstruction(ctx encCtx, mnemonic string, ops []Operand) ([]byte, error) {
	if op, ok := noOperandOps[mnemonic]; ok {
		return []byte{op}, nil
	}
	if cond, ok := jccCond[mnemonic]; ok {
		return encodeShortBranch(ctx, 0x70+cond, ops)
	}
	if base, ok := grp1Index[mnemonic]; ok {
		return encodeALU(ctx, base*8, ops)
	}

	switch mnemonic {
	case "MOV":
		return encodeMOV(ctx, ops)
	case "PUSH":
		return encodePUSH(ctx, ops)
	case "POP":
		return encodePOP(ctx, ops)
	case "XCHG":
		return encodeXCHG(ctx, ops)
	case "LEA":
		return encodeLEA(ctx, ops)
	case "INC":
		return encodeIncDec(ctx, ops, 0)
	case "DEC":
		return encodeIncDec(ctx, ops, 1)
	case "NOT":
		return encodeGrp3Unary(ctx, ops, 2)
	case "NEG":
		return encodeGrp3Unary(ctx, ops, 3)
	case "MUL":
		return encodeGrp3Unary(ctx, ops, 4)
	case "IMUL":
		return encodeGrp3Unary(ctx, ops, 5)
	case "DIV":
		return encodeGrp3Unary(ctx, ops, 6)
	case "IDIV":
		return encodeGrp3Unary(ctx, ops, 7)
	case "TEST":
		return encodeTEST(ctx, ops)
	case "SHL", "SAL", "SHR", "SAR", "ROL", "ROR", "RCL", "RCR":
		return encodeShift(ctx, mnemonic, ops)
	case "JMP":
		return encodeJMP(ctx, ops)
	case "CALL":
		return encodeCALL(ctx, ops)
	case "RETN", "RET":
		if len(ops) == 0 {
			return []byte{0xC3}, nil
		}
		imm, err := requireImm(ctx, ops[0])
		if err != nil {
			return nil, err
		}
		return []byte{0xC2, byte(imm), byte(imm >> 8)}, nil
	case "LOOP":
		return encodeShortBranch(ctx, 0xE2, ops)
	case "LOOPE", "LOOPZ":
		return encodeShortBranch(ctx, 0xE1, ops)
	case "LOOPNE", "LOOPNZ":
		return encodeShortBranch(ctx, 0xE0, ops)
	case "JCXZ":
		return encodeShortBranch(ctx, 0xE3, ops)
	case "INT":
		imm, err := requireImm(ctx, ops[0])
		if err != nil {
			return nil, err
		}
		return []byte{0xCD, byte(imm)}, nil
	}
	return nil, errf(ctx.line, UnknownMnemonic, "unknown mnemonic %q", mnemonic)
}

func requireImm(ctx encCtx, o Operand) (int32, error) {
	if o.Kind != KindImm {
		return 0, errf(ctx.line, BadOperand, "expected an immediate operand")
	}
	return o.Imm, nil
}

// widthOf reports the operand width (1 or 2) implied by a register
// operand, or 0 if the operand carries no width information on its own
// (memory or immediate).
func widthOf(o Operand) byte {
	switch o.Kind {
	case KindReg8:
		return 1
	case KindReg16, KindSegReg:
		return 2
	}
	if o.Kind == KindMem && o.Mem.SegSize != 0 {
		return o.Mem.SegSize
	}
	return 0
}

// resolveWidth picks the operand width from whichever operand carries
// one; mem,mem or imm,imm pairs (never valid on real 8086) fall
// through to an error at the call site instead.
func resolveWidth(a, b Operand) byte {
	if w := widthOf(a); w != 0 {
		return w
	}
	return widthOf(b)
}

func encodeModRM(ctx encCtx, reg byte, rm Operand) (byte, []byte, error) {
	switch rm.Kind {
	case KindReg8, KindReg16:
		return 0xC0 | (reg << 3) | rm.Reg, nil, nil
	case KindMem:
		return encodeMemModRM(ctx, reg, rm.Mem)
	}
	return 0, nil, errf(ctx.line, BadOperand, "expected a register or memory operand")
}

// memRM maps a base+index combination to its ModR/M rm field, mirroring
// internal/cpu/decode.go's effectiveAddress16 table in reverse.
func memRM(base, index string) (byte, bool) {
	switch {
	case base == "BX" && index == "SI":
		return 0, true
	case base == "BX" && index == "DI":
		return 1, true
	case base == "BP" && index == "SI":
		return 2, true
	case base == "BP" && index == "DI":
		return 3, true
	case base == "" && index == "SI":
		return 4, true
	case base == "" && index == "DI":
		return 5, true
	case base == "BP" && index == "":
		return 6, true
	case base == "BX" && index == "":
		return 7, true
	}
	return 0, false
}

func encodeMemModRM(ctx encCtx, reg byte, m MemRef) (byte, []byte, error) {
	// A label with no base/index is the direct-address form: mod=00,
	// rm=110, disp16 = the label's (plus any literal) offset.
	if m.Base == "" && m.Index == "" {
		if m.Label == "" {
			// bare numeric displacement, e.g. [0x200]
			modrm := 0x06 | (reg << 3)
			return modrm, []byte{byte(m.Disp), byte(m.Disp >> 8)}, nil
		}
		off, _, err := ctx.resolveLabel(m.Label)
		if err != nil {
			return 0, nil, err
		}
		addr := int32(off) + m.Disp
		modrm := 0x06 | (reg << 3)
		return modrm, []byte{byte(addr), byte(addr >> 8)}, nil
	}

	rm, ok := memRM(m.Base, m.Index)
	if !ok {
		return 0, nil, errf(ctx.line, BadOperand, "unsupported base/index combination %s+%s", m.Base, m.Index)
	}

	disp := m.Disp
	if m.Label != "" {
		off, _, err := ctx.resolveLabel(m.Label)
		if err != nil {
			return 0, nil, err
		}
		disp += int32(off)
	}

	// [BP] with a zero displacement must still use mod=01/disp8=0 —
	// mod=00,rm=110 is reserved for the direct-address form above.
	bpAlone := m.Base == "BP" && m.Index == ""
	switch {
	case disp == 0 && !bpAlone:
		return (reg << 3) | rm, nil, nil
	case disp >= -128 && disp <= 127:
		return 0x40 | (reg << 3) | rm, []byte{byte(disp)}, nil
	default:
		return 0x80 | (reg << 3) | rm, []byte{byte(disp), byte(disp >> 8)}, nil
	}
}

func encodeALU(ctx encCtx, base byte, ops []Operand) ([]byte, error) {
	if len(ops) != 2 {
		return nil, errf(ctx.line, BadOperand, "expected two operands")
	}
	dst, src := ops[0], ops[1]

	if dst.Kind == KindReg8 && dst.Reg == 0 && src.Kind == KindImm {
		return []byte{base + 4, byte(src.Imm)}, nil
	}
	if dst.Kind == KindReg16 && dst.Reg == 0 && src.Kind == KindImm {
		return []byte{base + 5, byte(src.Imm), byte(src.Imm >> 8)}, nil
	}
	if src.Kind == KindImm {
		w := widthOf(dst)
		if w == 0 {
			return nil, errf(ctx.line, BadOperand, "ambiguous operand width: use BYTE PTR/WORD PTR")
		}
		reg := byte(grp1Tag(base))
		modrm, extra, err := encodeModRM(ctx, reg, dst)
		if err != nil {
			return nil, err
		}
		op := byte(0x80)
		var imm []byte
		if w == 1 {
			imm = []byte{byte(src.Imm)}
		} else {
			op = 0x81
			imm = []byte{byte(src.Imm), byte(src.Imm >> 8)}
		}
		out := append([]byte{op, modrm}, extra...)
		return append(out, imm...), nil
	}

	return encodeTwoOperandRM(ctx, base, base+1, base+2, base+3, dst, src)
}

// grp1Tag maps an ALU base opcode back to its Grp1 reg field (they use
// the same index, base = index*8).
func grp1Tag(base byte) byte { return base / 8 }

// encodeTwoOperandRM handles the common Eb,Gb/Ev,Gv (write to rm) and
// Gb,Eb/Gv,Ev (write to reg) opcode pairs shared by ALU ops, MOV, and
// TEST: dst=mem requires the Eb/Ev form, dst=reg with src=mem requires
// the Gb/Ev form, and reg,reg uses the Eb/Ev form by convention.
func encodeTwoOperandRM(ctx encCtx, opEb, opEv, opGb, opGv byte, dst, src Operand) ([]byte, error) {
	switch {
	case dst.Kind == KindMem && (src.Kind == KindReg8 || src.Kind == KindReg16):
		w := widthOf(src)
		op := opEb
		if w == 2 {
			op = opEv
		}
		modrm, extra, err := encodeModRM(ctx, src.Reg, dst)
		if err != nil {
			return nil, err
		}
		return append([]byte{op, modrm}, extra...), nil

	case (dst.Kind == KindReg8 || dst.Kind == KindReg16) && src.Kind == KindMem:
		w := widthOf(dst)
		op := opGb
		if w == 2 {
			op = opGv
		}
		modrm, extra, err := encodeModRM(ctx, dst.Reg, src)
		if err != nil {
			return nil, err
		}
		return append([]byte{op, modrm}, extra...), nil

	case dst.Kind == KindReg8 && src.Kind == KindReg8:
		modrm, _, _ := encodeModRM(ctx, src.Reg, dst)
		return []byte{opEb, modrm}, nil

	case dst.Kind == KindReg16 && src.Kind == KindReg16:
		modrm, _, _ := encodeModRM(ctx, src.Reg, dst)
		return []byte{opEv, modrm}, nil
	}
	return nil, errf(ctx.line, BadOperand, "unsupported operand combination")
}

func encodeMOV(ctx encCtx, ops []Operand) ([]byte, error) {
	if len(ops) != 2 {
		return nil, errf(ctx.line, BadOperand, "MOV expects two operands")
	}
	dst, src := ops[0], ops[1]

	switch {
	case dst.Kind == KindReg8 && src.Kind == KindImm:
		return []byte{0xB0 + dst.Reg, byte(src.Imm)}, nil
	case dst.Kind == KindReg16 && src.Kind == KindImm:
		return []byte{0xB8 + dst.Reg, byte(src.Imm), byte(src.Imm >> 8)}, nil
	case dst.Kind == KindReg16 && src.Kind == KindOffset:
		off, _, err := ctx.resolveLabel(src.Label)
		if err != nil {
			return nil, err
		}
		return []byte{0xB8 + dst.Reg, byte(off), byte(off >> 8)}, nil
	case dst.Kind == KindReg16 && src.Kind == KindLabel:
		off, _, err := ctx.resolveLabel(src.Label)
		if err != nil {
			return nil, err
		}
		return []byte{0xB8 + dst.Reg, byte(off), byte(off >> 8)}, nil
	case dst.Kind == KindMem && src.Kind == KindImm:
		w := widthOf(dst)
		if w == 0 {
			return nil, errf(ctx.line, BadOperand, "ambiguous operand width: use BYTE PTR/WORD PTR")
		}
		op := byte(0xC6)
		modrm, extra, err := encodeModRM(ctx, 0, dst)
		if err != nil {
			return nil, err
		}
		out := append([]byte{op, modrm}, extra...)
		if w == 1 {
			return append(out, byte(src.Imm)), nil
		}
		out[0] = 0xC7
		return append(out, byte(src.Imm), byte(src.Imm>>8)), nil
	case dst.Kind == KindSegReg && (src.Kind == KindReg16 || src.Kind == KindMem):
		modrm, extra, err := encodeModRM(ctx, dst.Reg, src)
		if err != nil {
			return nil, err
		}
		return append([]byte{0x8E, modrm}, extra...), nil
	case (dst.Kind == KindReg16 || dst.Kind == KindMem) && src.Kind == KindSegReg:
		modrm, extra, err := encodeModRM(ctx, src.Reg, dst)
		if err != nil {
			return nil, err
		}
		return append([]byte{0x8C, modrm}, extra...), nil
	}
	return encodeTwoOperandRM(ctx, 0x88, 0x89, 0x8A, 0x8B, dst, src)
}

func encodePUSH(ctx encCtx, ops []Operand) ([]byte, error) {
	if len(ops) != 1 {
		return nil, errf(ctx.line, BadOperand, "PUSH expects one operand")
	}
	switch o := ops[0]; o.Kind {
	case KindReg16:
		return []byte{0x50 + o.Reg}, nil
	case KindSegReg:
		return []byte{[4]byte{0x06, 0x0E, 0x16, 0x1E}[o.Reg]}, nil
	case KindMem:
		modrm, extra, err := encodeModRM(ctx, 6, o)
		if err != nil {
			return nil, err
		}
		return append([]byte{0xFF, modrm}, extra...), nil
	}
	return nil, errf(ctx.line, BadOperand, "unsupported PUSH operand")
}

func encodePOP(ctx encCtx, ops []Operand) ([]byte, error) {
	if len(ops) != 1 {
		return nil, errf(ctx.line, BadOperand, "POP expects one operand")
	}
	switch o := ops[0]; o.Kind {
	case KindReg16:
		return []byte{0x58 + o.Reg}, nil
	case KindSegReg:
		table := [4]byte{0x07, 0x00, 0x17, 0x1F} // CS (index 1) has no POP form
		if o.Reg == cpu.SegCS {
			return nil, errf(ctx.line, BadOperand, "POP CS is not a valid instruction")
		}
		return []byte{table[o.Reg]}, nil
	case KindMem:
		modrm, extra, err := encodeModRM(ctx, 0, o)
		if err != nil {
			return nil, err
		}
		return append([]byte{0x8F, modrm}, extra...), nil
	}
	return nil, errf(ctx.line, BadOperand, "unsupported POP operand")
}

func encodeXCHG(ctx encCtx, ops []Operand) ([]byte, error) {
	if len(ops) != 2 {
		return nil, errf(ctx.line, BadOperand, "XCHG expects two operands")
	}
	return encodeTwoOperandRM(ctx, 0x86, 0x87, 0x86, 0x87, ops[0], ops[1])
}

func encodeLEA(ctx encCtx, ops []Operand) ([]byte, error) {
	if len(ops) != 2 || ops[0].Kind != KindReg16 || ops[1].Kind != KindMem {
		return nil, errf(ctx.line, BadOperand, "LEA expects reg16, memory")
	}
	modrm, extra, err := encodeModRM(ctx, ops[0].Reg, ops[1])
	if err != nil {
		return nil, err
	}
	return append([]byte{0x8D, modrm}, extra...), nil
}

func encodeIncDec(ctx encCtx, ops []Operand, grp45Reg byte) ([]byte, error) {
	if len(ops) != 1 {
		return nil, errf(ctx.line, BadOperand, "expected one operand")
	}
	switch o := ops[0]; o.Kind {
	case KindReg16:
		base := byte(0x40)
		if grp45Reg == 1 {
			base = 0x48
		}
		return []byte{base + o.Reg}, nil
	case KindReg8:
		modrm := 0xC0 | (grp45Reg << 3) | o.Reg
		return []byte{0xFE, modrm}, nil
	case KindMem:
		w := widthOf(o)
		if w == 0 {
			return nil, errf(ctx.line, BadOperand, "ambiguous operand width: use BYTE PTR/WORD PTR")
		}
		modrm, extra, err := encodeModRM(ctx, grp45Reg, o)
		if err != nil {
			return nil, err
		}
		op := byte(0xFE)
		if w == 2 {
			op = 0xFF
		}
		return append([]byte{op, modrm}, extra...), nil
	}
	return nil, errf(ctx.line, BadOperand, "unsupported operand")
}

func encodeGrp3Unary(ctx encCtx, ops []Operand, reg byte) ([]byte, error) {
	if len(ops) != 1 {
		return nil, errf(ctx.line, BadOperand, "expected one operand")
	}
	w := widthOf(ops[0])
	if w == 0 {
		return nil, errf(ctx.line, BadOperand, "ambiguous operand width: use BYTE PTR/WORD PTR")
	}
	modrm, extra, err := encodeModRM(ctx, reg, ops[0])
	if err != nil {
		return nil, err
	}
	op := byte(0xF6)
	if w == 2 {
		op = 0xF7
	}
	return append([]byte{op, modrm}, extra...), nil
}

func encodeTEST(ctx encCtx, ops []Operand) ([]byte, error) {
	if len(ops) != 2 {
		return nil, errf(ctx.line, BadOperand, "TEST expects two operands")
	}
	dst, src := ops[0], ops[1]
	if src.Kind == KindImm {
		if dst.Kind == KindReg8 && dst.Reg == 0 {
			return []byte{0xA8, byte(src.Imm)}, nil
		}
		if dst.Kind == KindReg16 && dst.Reg == 0 {
			return []byte{0xA9, byte(src.Imm), byte(src.Imm >> 8)}, nil
		}
		w := widthOf(dst)
		if w == 0 {
			return nil, errf(ctx.line, BadOperand, "ambiguous operand width: use BYTE PTR/WORD PTR")
		}
		modrm, extra, err := encodeModRM(ctx, 0, dst)
		if err != nil {
			return nil, err
		}
		op := byte(0xF6)
		var imm []byte
		if w == 1 {
			imm = []byte{byte(src.Imm)}
		} else {
			op = 0xF7
			imm = []byte{byte(src.Imm), byte(src.Imm >> 8)}
		}
		out := append([]byte{op, modrm}, extra...)
		return append(out, imm...), nil
	}
	return encodeTwoOperandRM(ctx, 0x84, 0x85, 0x84, 0x85, dst, src)
}

func encodeShift(ctx encCtx, mnemonic string, ops []Operand) ([]byte, error) {
	if len(ops) != 2 {
		return nil, errf(ctx.line, BadOperand, "%s expects two operands", mnemonic)
	}
	dst, src := ops[0], ops[1]
	w := widthOf(dst)
	if w == 0 {
		return nil, errf(ctx.line, BadOperand, "ambiguous operand width: use BYTE PTR/WORD PTR")
	}
	reg := grp2Index[mnemonic]

	switch {
	case src.Kind == KindImm && src.Imm == 1:
		modrm, extra, err := encodeModRM(ctx, reg, dst)
		if err != nil {
			return nil, err
		}
		op := byte(0xD0)
		if w == 2 {
			op = 0xD1
		}
		return append([]byte{op, modrm}, extra...), nil

	case src.Kind == KindImm:
		modrm, extra, err := encodeModRM(ctx, reg, dst)
		if err != nil {
			return nil, err
		}
		op := byte(0xC0)
		if w == 2 {
			op = 0xC1
		}
		out := append([]byte{op, modrm}, extra...)
		return append(out, byte(src.Imm)), nil

	case src.Kind == KindReg8 && src.Reg == 1: // CL
		modrm, extra, err := encodeModRM(ctx, reg, dst)
		if err != nil {
			return nil, err
		}
		op := byte(0xD2)
		if w == 2 {
			op = 0xD3
		}
		return append([]byte{op, modrm}, extra...), nil
	}
	return nil, errf(ctx.line, BadOperand, "%s count must be 1, an immediate, or CL", mnemonic)
}

// encodeShortBranch implements Jcc/LOOP*/JCXZ: always a 2-byte
// opcode+rel8 encoding. A branch target out of int8 range is a
// JumpOutOfRange error rather than silently widened to a longer form.
func encodeShortBranch(ctx encCtx, op byte, ops []Operand) ([]byte, error) {
	if len(ops) != 1 || ops[0].Kind != KindLabel {
		return nil, errf(ctx.line, BadOperand, "expected a label operand")
	}
	nextIP := ctx.addr + 2
	target, _, err := ctx.resolveLabel(ops[0].Label)
	if err != nil {
		return nil, err
	}
	rel := int32(target) - int32(nextIP)
	if ctx.strict && (rel < -128 || rel > 127) {
		return nil, errf(ctx.line, JumpOutOfRange, "branch target out of short-jump range (%d)", rel)
	}
	return []byte{op, byte(int8(rel))}, nil
}

func encodeJMP(ctx encCtx, ops []Operand) ([]byte, error) {
	if len(ops) != 1 {
		return nil, errf(ctx.line, BadOperand, "JMP expects one operand")
	}
	if ops[0].Kind == KindLabel && ops[0].Label != "" && len(ops) == 1 {
		// "JMP SHORT label" is parsed as a two-word mnemonic upstream;
		// plain "JMP label" always uses the near (3-byte) form so its
		// size never depends on the eventual branch distance.
		nextIP := ctx.addr + 3
		target, _, err := ctx.resolveLabel(ops[0].Label)
		if err != nil {
			return nil, err
		}
		rel := int32(target) - int32(nextIP)
		return []byte{0xE9, byte(rel), byte(rel >> 8)}, nil
	}
	return nil, errf(ctx.line, BadOperand, "unsupported JMP operand")
}

func encodeCALL(ctx encCtx, ops []Operand) ([]byte, error) {
	if len(ops) != 1 || ops[0].Kind != KindLabel {
		return nil, errf(ctx.line, BadOperand, "CALL expects a label operand")
	}
	nextIP := ctx.addr + 3
	target, _, err := ctx.resolveLabel(ops[0].Label)
	if err != nil {
		return nil, err
	}
	rel := int32(target) - int32(nextIP)
	return []byte{0xE8, byte(rel), byte(rel >> 8)}, nil
}

// encodeJmpShort is used by the assembler driver for the explicit
// "JMP SHORT label" spelling, which chooses the 2-byte encoding and is
// therefore range-checked like Jcc.
func encodeJmpShort(ctx encCtx, ops []Operand) ([]byte, error) {
	return encodeShortBranch(ctx, 0xEB, ops)
}

// encodeJmpFar and encodeCallFar handle the explicit "JMP FAR
// seg:off" / "CALL FAR seg:off" spellings: a far transfer loads both
// CS and IP from the operand rather than computing a relative
// displacement, so unlike every other branch form here the operand is
// an absolute seg:off pair, not a label.
func encodeJmpFar(ctx encCtx, op Operand) ([]byte, error) {
	seg, off, err := requireFarPtr(ctx, op)
	if err != nil {
		return nil, err
	}
	return []byte{0xEA, byte(off), byte(off >> 8), byte(seg), byte(seg >> 8)}, nil
}

func encodeCallFar(ctx encCtx, op Operand) ([]byte, error) {
	seg, off, err := requireFarPtr(ctx, op)
	if err != nil {
		return nil, err
	}
	return []byte{0x9A, byte(off), byte(off >> 8), byte(seg), byte(seg >> 8)}, nil
}

// encodeRetFar handles "RET FAR" (bare far return, 0xCB) and
// "RET FAR imm16" (0xCA, popping imm16 extra bytes off the stack
// after the far return address).
func encodeRetFar(ctx encCtx, operandStr string) ([]byte, error) {
	operandStr = strings.TrimSpace(operandStr)
	if operandStr == "" {
		return []byte{0xCB}, nil
	}
	imm, ok := parseNumeric(operandStr)
	if !ok {
		return nil, errf(ctx.line, BadOperand, "expected an immediate operand for RET FAR")
	}
	return []byte{0xCA, byte(imm), byte(imm >> 8)}, nil
}

func requireFarPtr(ctx encCtx, op Operand) (seg uint16, off uint16, err error) {
	if op.Kind != KindFarPtr {
		return 0, 0, errf(ctx.line, BadOperand, "expected a seg:off far pointer operand")
	}
	return op.FarSeg, uint16(op.Imm), nil
}
